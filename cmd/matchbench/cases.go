// README: Benchmark cases: environment, job posting, matching and cache behaviour, assignment races, throughput.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: StatusFail, Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: StatusFail, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "Apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: StatusSkip, Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: StatusFail, Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: StatusFail, Note: err.Error()}
					}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "Tables from migrations/0001_init.sql exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: StatusFail, Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: StatusFail, Note: err.Error()}
					}
					if !exists {
						return Result{Status: StatusFail, Note: "missing table: " + t}
					}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name:  "Seed: bench vehicle",
			Focus: "Idle truck in Berlin for matching and assignment",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: StatusSkip, Note: "db not configured"}
				}
				_, err := r.db.Exec(ctx, `
INSERT INTO vehicles (id, type, capacity_kg, fuel_l_per_100km, status, base_city, base_country)
VALUES ($1, 'truck', 24000, 30, 'idle', 'Berlin', 'DE')
ON CONFLICT (id) DO UPDATE SET status = 'idle', updated_at = NOW()`, r.vehicleID)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},

		httpCaseMethod("API: health", http.MethodGet, base+"/health", nil, []int{200}, nil),

		// Vehicles
		httpCaseMethod("Vehicle: position update", http.MethodPut, base+"/api/vehicles/bench-truck-1/position",
			map[string]any{"lat": 52.52, "lng": 13.405}, []int{204}, []int{404}),
		httpCaseMethod("Vehicle: invalid coords -> 400", http.MethodPut, base+"/api/vehicles/bench-truck-1/position",
			map[string]any{"lat": 123.0, "lng": 456.0}, []int{400}, nil),
		httpCaseMethod("Vehicle: nearby", http.MethodGet, base+"/api/vehicles/nearby?lat=52.52&lng=13.405&radius_km=25", nil, []int{200}, nil),

		// Jobs
		{
			Name:  "Job: post (valid)",
			Focus: "New job is stored and invalidates job caches",
			Run: func(ctx context.Context, r *Runner) Result {
				var out struct {
					ID string `json:"id"`
				}
				res := r.postJSON(ctx, base+"/api/jobs", benchJob(), []int{201}, &out)
				r.jobID = out.ID
				return res
			},
		},
		httpCase("Job: post (missing fields -> 400)", base+"/api/jobs", map[string]any{}, []int{400}, nil),

		// Matching
		httpCaseMethod("Match: best matches", http.MethodGet, base+"/api/matches?limit=5", nil, []int{200}, nil),
		httpCaseMethod("Match: invalid limit -> 400", http.MethodGet, base+"/api/matches?limit=0", nil, []int{400}, nil),
		httpCaseMethod("Match: bad urgency -> 400", http.MethodGet, base+"/api/matches?urgency=asap", nil, []int{400}, nil),
		httpCaseMethod("Match: unknown filter -> 400", http.MethodGet, base+"/api/matches?urgncy=high", nil, []int{400}, nil),
		httpCaseMethod("Match: urgent preset", http.MethodGet, base+"/api/matches/urgent", nil, []int{200}, nil),
		httpCaseMethod("Match: per vehicle", http.MethodGet, base+"/api/vehicles/bench-truck-1/matches", nil, []int{200}, nil),
		{
			Name:  "Match: cached repeat is faster",
			Focus: "Second identical query is served from the results cache",
			Run: func(ctx context.Context, r *Runner) Result {
				url := base + "/api/matches?limit=7&min_score=10"
				cold := r.get(ctx, url, []int{200})
				if cold.Status != StatusPass {
					return cold
				}
				warm := r.get(ctx, url, []int{200})
				if warm.Status != StatusPass {
					return warm
				}
				note := fmt.Sprintf("cold=%s warm=%s", cold.Latency, warm.Latency)
				if warm.Latency > cold.Latency {
					return Result{Status: StatusPending, Latency: warm.Latency, Note: note}
				}
				return Result{Status: StatusPass, Latency: warm.Latency, Note: note}
			},
		},

		// Cache
		httpCaseMethod("Cache: stats", http.MethodGet, base+"/api/cache/stats", nil, []int{200}, nil),
		httpCase("Cache: invalidate job", base+"/api/cache/invalidate", map[string]any{"kind": "job"}, []int{200}, nil),
		httpCase("Cache: invalidate unknown -> 400", base+"/api/cache/invalidate", map[string]any{"kind": "weather"}, []int{400}, nil),
		httpCaseMethod("Metrics: performance", http.MethodGet, base+"/api/metrics", nil, []int{200}, nil),

		// Assignment
		{
			Name:  "Concurrency: multi assign same job",
			Focus: "Only one assignment wins the optimistic transition",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.jobID == "" {
					return Result{Status: StatusSkip, Note: "no posted job"}
				}
				return concurrentAssign(ctx, r, base+"/api/assignments")
			},
		},
		{
			Name:  "Assignment: complete",
			Focus: "Taken job completes and frees the vehicle",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.jobID == "" {
					return Result{Status: StatusSkip, Note: "no posted job"}
				}
				return r.postJSON(ctx, base+"/api/assignments/complete",
					map[string]any{"job_id": r.jobID, "vehicle_id": r.vehicleID}, []int{200}, nil)
			},
		},
		manualCase("Error: DB down -> degraded matches", "stop postgres and check degraded=true with last-good results"),
		manualCase("Error: Redis down -> base positions", "stop redis and check vehicles fall back to home base"),

		// Performance
		{
			Name:  "Perf: position update throughput",
			Focus: "Sustained telemetry ingestion",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodPut, base+"/api/vehicles/bench-truck-1/position",
					map[string]any{"lat": 52.52, "lng": 13.405})
			},
		},
		{
			Name:  "Perf: match query throughput",
			Focus: "Cached ranking reads",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodGet, base+"/api/matches?limit=10", nil)
			},
		},
	}
}

func benchJob() map[string]any {
	now := time.Now().UTC()
	return map[string]any{
		"origin":      map[string]any{"city": "Berlin", "country": "DE", "coords": map[string]float64{"lat": 52.52, "lng": 13.405}},
		"destination": map[string]any{"city": "Warsaw", "country": "PL", "coords": map[string]float64{"lat": 52.2297, "lng": 21.0122}},
		"weight_kg":   8000,
		"price":       map[string]any{"amount": 1200, "currency": "EUR"},
		"urgency":     "high",
		"loading_at":  now.Add(2 * time.Hour),
		"delivery_at": now.Add(20 * time.Hour),
	}
}

func httpCase(name, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses, pendingStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			return r.do(ctx, method, url, body, okStatuses, pendingStatuses, nil)
		},
	}
}

func (r *Runner) get(ctx context.Context, url string, ok []int) Result {
	return r.do(ctx, http.MethodGet, url, nil, ok, nil, nil)
}

func (r *Runner) postJSON(ctx context.Context, url string, body any, ok []int, out any) Result {
	return r.do(ctx, http.MethodPost, url, body, ok, nil, out)
}

func (r *Runner) do(ctx context.Context, method, url string, body any, okStatuses, pendingStatuses []int, out any) Result {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	defer resp.Body.Close()
	if out != nil && contains(okStatuses, resp.StatusCode) {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	latency := time.Since(start)

	note := fmt.Sprintf("status=%d", resp.StatusCode)
	switch {
	case contains(okStatuses, resp.StatusCode):
		return Result{Status: StatusPass, Latency: latency, Note: note}
	case contains(pendingStatuses, resp.StatusCode):
		return Result{Status: StatusPending, Latency: latency, Note: note}
	default:
		return Result{Status: StatusFail, Latency: latency, Note: note}
	}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: StatusSkip, Note: note}
		},
	}
}

func concurrentAssign(ctx context.Context, r *Runner, url string) Result {
	b, _ := json.Marshal(map[string]any{"job_id": r.jobID, "vehicle_id": r.vehicleID})
	var wg sync.WaitGroup
	var succ, conflict atomic.Int32

	for range r.cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			resp, err := r.httpc.Do(req)
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				succ.Add(1)
			case resp.StatusCode == http.StatusConflict:
				conflict.Add(1)
			}
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d", succ.Load(), conflict.Load())
	if succ.Load() == 1 {
		return Result{Status: StatusPass, Note: note}
	}
	return Result{Status: StatusFail, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, method, url string, payload any) Result {
	var b []byte
	if payload != nil {
		b, _ = json.Marshal(payload)
	}
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for range r.cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				var body io.Reader
				if b != nil {
					body = bytes.NewReader(b)
				}
				req, _ := http.NewRequestWithContext(ctx, method, url, body)
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				if err != nil {
					errCount.Add(1)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				if resp.StatusCode >= 500 {
					errCount.Add(1)
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: StatusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	matches := createTableRe.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
