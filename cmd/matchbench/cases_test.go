package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQL(t *testing.T) {
	stmts := splitSQL(`-- header
CREATE TABLE IF NOT EXISTS a (id TEXT);

CREATE INDEX IF NOT EXISTS idx_a ON a (id);
-- trailing
`)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS a (id TEXT)", stmts[0])
}

func TestExtractTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init.sql")
	require.NoError(t, os.WriteFile(path, []byte("create table if not exists cargo_jobs (id text);\nCREATE TABLE IF NOT EXISTS vehicles (id text);"), 0o600))

	tables, err := extractTables(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cargo_jobs", "vehicles"}, tables)
}

func TestHTTPCaseStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	r := NewRunner(Config{BaseURL: srv.URL, Concurrency: 1, Duration: time.Second})
	ctx := context.Background()

	assert.Equal(t, StatusPass, httpCaseMethod("ok", http.MethodGet, srv.URL+"/ok", nil, []int{200}, nil).Run(ctx, r).Status)
	assert.Equal(t, StatusPending, httpCaseMethod("missing", http.MethodGet, srv.URL+"/missing", nil, []int{200}, []int{404}).Run(ctx, r).Status)
	assert.Equal(t, StatusFail, httpCase("teapot", srv.URL+"/brew", map[string]any{"x": 1}, []int{200}, nil).Run(ctx, r).Status)
}

func TestPostJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"job-42"}`))
	}))
	defer srv.Close()

	r := NewRunner(Config{BaseURL: srv.URL})
	var out struct {
		ID string `json:"id"`
	}
	res := r.postJSON(context.Background(), srv.URL+"/api/jobs", benchJob(), []int{201}, &out)
	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, "job-42", out.ID)
}

func TestSummarize(t *testing.T) {
	counts := summarize([]Result{{Status: StatusPass}, {Status: StatusPass}, {Status: StatusSkip}})
	assert.Equal(t, 2, counts[StatusPass])
	assert.Equal(t, 0, counts[StatusFail])
}
