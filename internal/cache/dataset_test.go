package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"retaildash/internal/core"
)

type countingReader struct {
	src   string
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (r *countingReader) Source() string { return r.src }

func (r *countingReader) ReadTransactions(ctx context.Context) (core.Dataset, error) {
	n := r.calls.Add(1)
	time.Sleep(r.delay)
	if r.err != nil {
		return core.Dataset{}, r.err
	}
	rows := make([]core.Transaction, n)
	return core.Dataset{Source: r.src, Rows: rows}, nil
}

func TestDatasetCacheMemoizes(t *testing.T) {
	r := &countingReader{src: "a.csv"}
	c := NewDatasetCache(nil, 4, time.Hour)
	key := c.Add(r)

	for i := 0; i < 3; i++ {
		ds, err := c.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ds.Len() != 1 {
			t.Fatalf("rows = %d, want the first load", ds.Len())
		}
	}
	if got := r.calls.Load(); got != 1 {
		t.Fatalf("reader called %d times, want 1", got)
	}
}

func TestDatasetCacheSharesConcurrentLoads(t *testing.T) {
	r := &countingReader{src: "slow.csv", delay: 50 * time.Millisecond}
	c := NewDatasetCache(nil, 4, time.Hour)
	key := c.Add(r)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), key); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := r.calls.Load(); got != 1 {
		t.Fatalf("reader called %d times, want 1", got)
	}
}

func TestDatasetCacheInvalidate(t *testing.T) {
	r := &countingReader{src: "a.csv"}
	c := NewDatasetCache(nil, 4, time.Hour)
	key := c.Add(r)

	var notified []string
	c.OnInvalidate(func(k string) { notified = append(notified, k) })

	if _, err := c.Get(context.Background(), key); err != nil {
		t.Fatal(err)
	}
	c.Invalidate(key)
	ds, err := c.Get(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected a reload, rows = %d", ds.Len())
	}

	c.InvalidateAll()
	if len(notified) != 2 || notified[0] != key || notified[1] != "" {
		t.Fatalf("notified = %v", notified)
	}
	if _, err := c.Get(context.Background(), key); err != nil {
		t.Fatal(err)
	}
	if got := r.calls.Load(); got != 3 {
		t.Fatalf("reader called %d times, want 3", got)
	}
}

func TestDatasetCacheLoadError(t *testing.T) {
	boom := errors.New("boom")
	r := &countingReader{src: "bad.csv", err: boom}
	c := NewDatasetCache(nil, 4, time.Hour)
	key := c.Add(r)

	if _, err := c.Get(context.Background(), key); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := c.Get(context.Background(), key); !errors.Is(err, boom) {
		t.Fatalf("errors must not be cached, err = %v", err)
	}
	if got := r.calls.Load(); got != 2 {
		t.Fatalf("reader called %d times, want 2", got)
	}
}

func TestDatasetCacheUnknownKey(t *testing.T) {
	c := NewDatasetCache(nil, 4, time.Hour)
	if _, err := c.Get(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestDatasetCacheCancelledCallerDoesNotAbortLoad(t *testing.T) {
	r := &countingReader{src: "a.csv"}
	c := NewDatasetCache(nil, 4, time.Hour)
	key := c.Add(r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Get(ctx, key); err != nil {
		t.Fatalf("Get with cancelled ctx: %v", err)
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != key {
		t.Fatalf("Keys() = %v", keys)
	}
}

func TestDatasetCacheZeroTTLKeepsSnapshot(t *testing.T) {
	r := &countingReader{src: "session.csv"}
	c := NewDatasetCache(nil, 4, 0)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.entries.now = clock.now
	key := c.Add(r)

	if _, err := c.Get(context.Background(), key); err != nil {
		t.Fatalf("Get: %v", err)
	}
	clock.advance(24 * time.Hour)
	if removed := c.CleanExpired(); removed != 0 {
		t.Errorf("CleanExpired() removed %d, want 0", removed)
	}
	if _, err := c.Get(context.Background(), key); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := r.calls.Load(); got != 1 {
		t.Errorf("reader called %d times without invalidation, want 1", got)
	}

	c.Invalidate(key)
	if _, err := c.Get(context.Background(), key); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := r.calls.Load(); got != 2 {
		t.Errorf("reader called %d times after invalidation, want 2", got)
	}
}
