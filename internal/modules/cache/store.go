// README: In-memory TTL cache shared by the feeds facade and the matching engine.
package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// sweepBatch bounds how many keys the sweeper deletes per write-lock hold.
const sweepBatch = 256

// unsizedEntryBytes is charged for values that cannot be JSON encoded.
const unsizedEntryBytes = 64

type entry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration // <= 0 never expires
	size      int
}

// expired reports !(now - createdAt < ttl).
func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) >= e.ttl
}

type Options struct {
	Now    func() time.Time
	Logger logrus.FieldLogger
	// SizeOf estimates an entry's payload size for Stats.ApproxBytes.
	SizeOf func(any) int
}

// Store is a concurrency-safe key/value map with per-entry TTL.
// Expired entries are dropped lazily on read and by Purge/RunSweeper.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	bytes   int64

	now    func() time.Time
	sizeOf func(any) int
	log    logrus.FieldLogger

	hits   atomic.Uint64
	misses atomic.Uint64
}

type Stats struct {
	Entries     int     `json:"entries"`
	Expired     int     `json:"expired"`
	ApproxBytes int64   `json:"approx_bytes"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
}

func NewStore(opts Options) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     opts.Now,
		sizeOf:  opts.SizeOf,
		log:     opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sizeOf == nil {
		s.sizeOf = jsonSize
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

func jsonSize(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return unsizedEntryBytes
	}
	return len(b)
}

// Set stores value under key, replacing any previous entry and restarting its TTL.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	e := &entry{value: value, createdAt: s.now(), ttl: ttl, size: s.sizeOf(value)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[key]; ok {
		s.bytes -= int64(old.size)
	}
	s.entries[key] = e
	s.bytes += int64(e.size)
}

// Get returns the live value for key. A stale entry counts as a miss and is removed.
func (s *Store) Get(key string) (any, bool) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.entries[key]
	if ok && !e.expired(now) {
		v := e.value
		s.mu.RUnlock()
		s.hits.Add(1)
		return v, true
	}
	s.mu.RUnlock()

	s.misses.Add(1)
	if ok {
		s.evictIfExpired(key, now)
	}
	return nil, false
}

// GetAs is Get with a type assertion; a value of another type is a miss.
func GetAs[T any](s *Store, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Has reports whether Get would hit, without touching the hit/miss counters.
func (s *Store) Has(key string) bool {
	now := s.now()

	s.mu.RLock()
	e, ok := s.entries[key]
	live := ok && !e.expired(now)
	s.mu.RUnlock()

	if ok && !live {
		s.evictIfExpired(key, now)
	}
	return live
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		s.removeLocked(key, e)
	}
}

// DeleteByPrefix removes every key starting with prefix and returns how many were removed.
func (s *Store) DeleteByPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) {
			s.removeLocked(k, e)
			n++
		}
	}
	return n
}

// Keys returns the live keys in lexical order.
func (s *Store) Keys() []string {
	now := s.now()
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (s *Store) Stats() Stats {
	now := s.now()
	s.mu.RLock()
	st := Stats{Entries: len(s.entries), ApproxBytes: s.bytes}
	for _, e := range s.entries {
		if e.expired(now) {
			st.Expired++
		}
	}
	s.mu.RUnlock()

	st.Hits = s.hits.Load()
	st.Misses = s.misses.Load()
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}

// Purge runs one sweep pass. Expired keys are collected under the read lock
// and deleted in short write-locked batches, re-checking each entry so a key
// rewritten in between survives.
func (s *Store) Purge() int {
	now := s.now()

	s.mu.RLock()
	var stale []string
	for k, e := range s.entries {
		if e.expired(now) {
			stale = append(stale, k)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for start := 0; start < len(stale); start += sweepBatch {
		end := min(start+sweepBatch, len(stale))
		s.mu.Lock()
		for _, k := range stale[start:end] {
			if e, ok := s.entries[k]; ok && e.expired(now) {
				s.removeLocked(k, e)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// RunSweeper purges expired entries every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Purge()
			st := s.Stats()
			s.log.WithFields(logrus.Fields{
				"removed":      removed,
				"entries":      st.Entries,
				"approx_bytes": st.ApproxBytes,
				"hit_rate":     st.HitRate,
			}).Debug("cache sweep")
		}
	}
}

func (s *Store) evictIfExpired(key string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.expired(now) {
		s.removeLocked(key, e)
	}
}

// removeLocked requires s.mu held for writing.
func (s *Store) removeLocked(key string, e *entry) {
	delete(s.entries, key)
	s.bytes -= int64(e.size)
}
