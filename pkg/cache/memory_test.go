package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type payload struct {
	Numbers []int  `json:"numbers"`
	Version string `json:"version"`
}

func newTestCache(t *testing.T, opts ...MemoryOption) (*MemoryCache, *time.Time) {
	t.Helper()
	mc := NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mc.Close() })
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	return mc, &now
}

func TestMemoryRoundTripsJSON(t *testing.T) {
	mc, _ := newTestCache(t)
	ctx := context.Background()
	in := payload{Numbers: []int{3, 26, 0}, Version: "1.0"}
	if err := mc.Set(ctx, "snap", in, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	in.Numbers[0] = 99

	var out payload
	if err := mc.Get(ctx, "snap", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Version != "1.0" || len(out.Numbers) != 3 || out.Numbers[0] != 3 {
		t.Fatalf("unexpected value %+v", out)
	}

	var s string
	_ = mc.Set(ctx, "plain", "hello", 0)
	if err := mc.Get(ctx, "plain", &s); err != nil || s != "hello" {
		t.Fatalf("string round trip: %q %v", s, err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	mc, now := newTestCache(t)
	ctx := context.Background()
	_ = mc.Set(ctx, "k", 1, time.Minute)

	*now = now.Add(30 * time.Second)
	if ok, _ := mc.Exists(ctx, "k"); !ok {
		t.Fatalf("expected key to be alive")
	}
	*now = now.Add(time.Minute)
	var v int
	if err := mc.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryExpireAndPersist(t *testing.T) {
	mc, now := newTestCache(t)
	ctx := context.Background()
	_ = mc.Set(ctx, "k", 1, time.Second)
	if ok, _ := mc.Expire(ctx, "k", 0); !ok {
		t.Fatalf("expire on live key must succeed")
	}
	*now = now.Add(time.Hour)
	if ok, _ := mc.Exists(ctx, "k"); !ok {
		t.Fatalf("persisted key expired")
	}
	if ok, _ := mc.Expire(ctx, "missing", time.Second); ok {
		t.Fatalf("expire on missing key must report false")
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	mc, now := newTestCache(t, WithMemoryMaxSize(2))
	ctx := context.Background()
	_ = mc.Set(ctx, "a", 1, 0)
	*now = now.Add(time.Second)
	_ = mc.Set(ctx, "b", 2, 0)
	*now = now.Add(time.Second)
	var v int
	_ = mc.Get(ctx, "a", &v)
	*now = now.Add(time.Second)
	_ = mc.Set(ctx, "c", 3, 0)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok || mc.Len() != 2 {
		t.Fatalf("a and c must survive")
	}
}

func TestMemoryDelete(t *testing.T) {
	mc, _ := newTestCache(t)
	ctx := context.Background()
	_ = mc.Set(ctx, "a", 1, 0)
	_ = mc.Delete(ctx, "a", "missing")
	if ok, _ := mc.Exists(ctx, "a"); ok {
		t.Fatalf("a should be gone")
	}
}

func TestKey(t *testing.T) {
	if got := Key("tracker", "snapshot", 2); got != "tracker:snapshot:2" {
		t.Fatalf("unexpected key %q", got)
	}
}
