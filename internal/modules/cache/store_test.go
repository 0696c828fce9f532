package cache

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(clock *fakeClock) *Store {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewStore(Options{Now: clock.Now, Logger: log})
}

func TestStore_SetGet_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.Set("v1", "X", 30*time.Second)
	v, ok := s.Get("v1")
	require.True(t, ok)
	assert.Equal(t, "X", v)

	clock.Advance(31 * time.Second)
	_, ok = s.Get("v1")
	assert.False(t, ok)
	assert.False(t, s.Has("v1"))
	assert.Equal(t, 0, s.Stats().Entries, "stale entry must be evicted on read")
}

func TestStore_TTLBoundary(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ttl := 30 * time.Second

	s.Set("k", 1, ttl)
	clock.Advance(ttl - time.Millisecond)
	assert.True(t, s.Has("k"), "must be live just before ttl")

	clock.Advance(time.Millisecond)
	assert.False(t, s.Has("k"), "must miss exactly at ttl")
}

func TestStore_OverwriteRestartsTTL(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.Set("k", "a", 10*time.Second)
	clock.Advance(8 * time.Second)
	s.Set("k", "b", 10*time.Second)
	clock.Advance(8 * time.Second)

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 1, s.Stats().Entries)
}

func TestStore_NoExpiry(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.Set("forever", 42, 0)
	clock.Advance(365 * 24 * time.Hour)
	assert.True(t, s.Has("forever"))
}

func TestGetAs(t *testing.T) {
	s := newTestStore(newFakeClock())
	s.Set("ints", []int{1, 2}, time.Minute)

	got, ok := GetAs[[]int](s, "ints")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, got)

	_, ok = GetAs[string](s, "ints")
	assert.False(t, ok, "wrong type is a miss")
}

func TestStore_DeleteAndPrefix(t *testing.T) {
	s := newTestStore(newFakeClock())
	s.Set(PrefixJobs+"all", 1, time.Minute)
	s.Set(PrefixJobs+"urgency=high", 2, time.Minute)
	s.Set(PrefixPositions+"all", 3, time.Minute)
	s.Set(PrefixMatchResults+"limit=5", 4, time.Minute)

	s.Delete("does-not-exist")
	assert.Equal(t, 2, s.DeleteByPrefix(PrefixJobs))
	assert.Equal(t, 0, s.DeleteByPrefix("nothing:"))

	assert.Equal(t, []string{PrefixMatchResults + "limit=5", PrefixPositions + "all"}, s.Keys())

	s.Delete(PrefixPositions + "all")
	assert.False(t, s.Has(PrefixPositions+"all"))
}

func TestStore_StatsHitRate(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(Options{Now: clock.Now, SizeOf: func(any) int { return 10 }})

	s.Set("a", 1, time.Second)
	s.Set("b", 2, time.Minute)
	s.Get("a")
	s.Get("a")
	s.Get("missing")
	s.Has("a") // not counted

	st := s.Stats()
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.InDelta(t, 2.0/3.0, st.HitRate, 1e-9)
	assert.Equal(t, int64(20), st.ApproxBytes)

	clock.Advance(2 * time.Second)
	st = s.Stats()
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, 1, st.Expired)
}

func TestStore_EmptyStatsHitRate(t *testing.T) {
	s := newTestStore(newFakeClock())
	assert.Zero(t, s.Stats().HitRate)
}

func TestStore_Purge(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(Options{Now: clock.Now, SizeOf: func(any) int { return 1 }})

	for i := range 600 {
		s.Set(fmt.Sprintf("short:%d", i), i, time.Second)
	}
	s.Set("long", "x", time.Hour)
	clock.Advance(2 * time.Second)

	assert.Equal(t, 600, s.Purge())
	st := s.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, int64(1), st.ApproxBytes)
	assert.Equal(t, 0, s.Purge())
}

func TestStore_RunSweeperStopsOnCancel(t *testing.T) {
	s := newTestStore(newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				key := fmt.Sprintf("k%d", i%20)
				switch (w + i) % 5 {
				case 0:
					s.Set(key, i, time.Duration(i%3)*time.Second)
				case 1:
					if v, ok := s.Get(key); ok {
						_ = v.(int)
					}
				case 2:
					s.Has(key)
				case 3:
					s.Purge()
				default:
					clock.Advance(time.Millisecond * 10)
					s.Stats()
				}
			}
		}()
	}
	wg.Wait()

	st := s.Stats()
	assert.LessOrEqual(t, st.Entries, 20)
	assert.GreaterOrEqual(t, st.ApproxBytes, int64(0))
}
