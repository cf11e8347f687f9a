package cache

import (
	"testing"
	"time"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("donor@example.org", "uid-1", time.Minute)

	uid, ok := c.Get("donor@example.org")
	if !ok || uid != "uid-1" {
		t.Fatalf("got %q %v", uid, ok)
	}

	c.Delete("donor@example.org")
	if _, ok := c.Get("donor@example.org"); ok {
		t.Fatal("entry survived delete")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("donor@example.org", "uid-1", time.Nanosecond)
	time.Sleep(time.Millisecond)

	if _, ok := c.Get("donor@example.org"); ok {
		t.Fatal("expired entry returned")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("donor@example.org", "uid-1", 0)

	if _, ok := c.Get("donor@example.org"); !ok {
		t.Fatal("zero-ttl entry missing")
	}
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	var c NoopCache[string, string]
	c.Set("donor@example.org", "uid-1", time.Minute)
	if _, ok := c.Get("donor@example.org"); ok {
		t.Fatal("noop cache returned a hit")
	}
}
