package backtest

import (
	"testing"
	"time"
)

func TestResultCache(t *testing.T) {
	c := NewResultCache(time.Hour)
	defer c.Close()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	res := &Result{Strategy: "lbmom"}
	id := c.Put(res)
	if got, ok := c.Get(id); !ok || got != res {
		t.Fatalf("Get(%q) = %v, %v, want the stored result", id, got, ok)
	}
	if _, ok := c.Get("not-a-uuid"); ok {
		t.Error("Get() of a malformed id succeeded")
	}
	if _, ok := c.Get("6ba7b810-9dad-11d1-80b4-00c04fd430c8"); ok {
		t.Error("Get() of an unknown id succeeded")
	}
	if other := c.Put(res); other == id {
		t.Errorf("Put() returned the same id twice: %q", id)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get(id); ok {
		t.Error("Get() returned an expired run")
	}
	c.sweep()
	if c.Len() != 0 {
		t.Errorf("Len() after sweep = %d, want 0", c.Len())
	}

	c.Put(res)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	c.Close()
}

func TestSweepInterval(t *testing.T) {
	testCases := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{time.Minute, time.Minute},
		{time.Hour, 5 * time.Minute},
	}
	for _, tc := range testCases {
		if got := sweepInterval(tc.ttl); got != tc.want {
			t.Errorf("sweepInterval(%v) = %v, want %v", tc.ttl, got, tc.want)
		}
	}
	c := NewResultCache(0)
	defer c.Close()
	if c.ttl != DefaultCacheTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultCacheTTL)
	}
}
