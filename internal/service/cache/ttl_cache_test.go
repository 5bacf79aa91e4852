package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache()

	if err := c.SetBytes("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}
	got, ok, err := c.GetBytes("k")
	if err != nil || !ok {
		t.Fatalf("GetBytes: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Fatalf("got %q, want %q", got, "v")
	}
}

func TestTTLCacheMissingKey(t *testing.T) {
	c := NewTTLCache()
	if _, ok, err := c.GetBytes("absent"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()

	if err := c.SetBytes("short", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := c.GetBytes("short"); ok {
		t.Fatalf("expected entry to expire")
	}
	// Expired entries are removed on read.
	c.mu.RLock()
	_, still := c.entries["short"]
	c.mu.RUnlock()
	if still {
		t.Fatalf("expired entry left in map")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()

	if err := c.SetBytes("pinned", []byte("x"), 0); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := c.GetBytes("pinned"); !ok {
		t.Fatalf("zero ttl entry should persist")
	}
}

func TestTTLCacheOverwriteRefreshesDeadline(t *testing.T) {
	c := NewTTLCache()

	if err := c.SetBytes("k", []byte("old"), 10*time.Millisecond); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}
	if err := c.SetBytes("k", []byte("new"), time.Minute); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	got, ok, _ := c.GetBytes("k")
	if !ok {
		t.Fatalf("refreshed entry should survive the old deadline")
	}
	if !bytes.Equal(got, []byte("new")) {
		t.Fatalf("got %q, want %q", got, "new")
	}
}
