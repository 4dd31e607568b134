package cache

import (
	"testing"
	"time"
)

func TestRevisionCache(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewRevisionCache(time.Minute)
	c.now = func() time.Time { return now }

	calls := 0
	compute := func() int { calls++; return calls }

	if v, hit := GetOrCompute(c, "summary", 1, compute); hit || v != 1 {
		t.Fatalf("first call: v=%d hit=%v", v, hit)
	}
	if v, hit := GetOrCompute(c, "summary", 1, compute); !hit || v != 1 {
		t.Fatalf("same revision should hit: v=%d hit=%v", v, hit)
	}
	if v, hit := GetOrCompute(c, "summary", 2, compute); hit || v != 2 {
		t.Fatalf("new revision should miss: v=%d hit=%v", v, hit)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("summary", 2); ok {
		t.Fatal("entry should have expired")
	}
}
