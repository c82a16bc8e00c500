package cache

import (
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute, 0)
	defer c.Stop()

	c.Set("k", "v", 0)

	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("expected hit with v, got %v (ok=%v)", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestCacheExpiration(t *testing.T) {
	c := NewCache(10*time.Millisecond, 0)
	defer c.Stop()

	c.Set("k", "v", 0)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired item must not be returned")
	}
}

func TestCacheDelete(t *testing.T) {
	c := NewCache(time.Minute, 0)
	defer c.Stop()

	c.Set("k", "v", 0)
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Fatal("deleted item must not be returned")
	}
}

func TestCacheStopIdempotent(t *testing.T) {
	c := NewCache(time.Minute, time.Minute)

	done := make(chan struct{})
	go func() {
		c.Stop()
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("repeated Stop must not block")
	}
}

func TestStatusCacheDisabled(t *testing.T) {
	sc := NewStatusCache(StatusCacheOptions{
		StatusTTL: time.Minute,
		ListTTL:   time.Minute,
		Enabled:   false,
	})
	defer sc.Stop()

	sc.SetTaskStatus("t1", "payload")
	if _, ok := sc.GetTaskStatus("t1"); ok {
		t.Fatal("disabled cache must not serve entries")
	}
}

func TestStatusCacheInvalidateFileList(t *testing.T) {
	sc := NewStatusCache(StatusCacheOptions{
		StatusTTL: time.Minute,
		ListTTL:   time.Minute,
		Enabled:   true,
	})
	defer sc.Stop()

	sc.SetFileList("listing")
	if _, ok := sc.GetFileList(); !ok {
		t.Fatal("expected cached listing")
	}

	sc.InvalidateFileList()
	if _, ok := sc.GetFileList(); ok {
		t.Fatal("invalidated listing must not be served")
	}
}
