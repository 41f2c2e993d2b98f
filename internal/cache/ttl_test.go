package cache

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestTTLExpiry(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTL[string, int](time.Minute, clk)

	c.Put("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get fresh = %v, %v", v, ok)
	}

	clk.now = clk.now.Add(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry expired too early")
	}

	clk.now = clk.now.Add(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("stale entry returned")
	}
	if c.Len() != 0 {
		t.Errorf("stale entry not evicted, len=%d", c.Len())
	}
}

func TestGetOrLoadFallsThroughOnMiss(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := NewTTL[string, string](time.Minute, clk)
	calls := 0
	load := func() (string, error) {
		calls++
		return "fresh", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("k", load)
		if err != nil || v != "fresh" {
			t.Fatalf("GetOrLoad = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load calls = %d, want 1", calls)
	}

	clk.now = clk.now.Add(2 * time.Minute)
	if _, err := c.GetOrLoad("k", load); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expired entry did not trigger reload, calls=%d", calls)
	}
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := NewTTL[int, int](time.Minute, nil)
	boom := errors.New("boom")
	if _, err := c.GetOrLoad(1, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("error result was cached")
	}
}

func TestDisabledCache(t *testing.T) {
	c := NewTTL[string, int](0, nil)
	c.Put("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Fatal("disabled cache returned a value")
	}
}

func TestPurge(t *testing.T) {
	clk := &fakeClock{now: time.Unix(100, 0)}
	c := NewTTL[string, int](time.Second, clk)
	c.Put("a", 1)
	clk.now = clk.now.Add(500 * time.Millisecond)
	c.Put("b", 2)
	clk.now = clk.now.Add(600 * time.Millisecond)
	if n := c.Purge(); n != 1 {
		t.Fatalf("Purge = %d, want 1", n)
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("fresh entry purged")
	}
}
