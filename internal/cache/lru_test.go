package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRUGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[string](2, time.Minute)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("empty cache should miss")
	}

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	if v, ok := c.Get(ctx, "a"); !ok || v != "1" {
		t.Errorf("got %q, %v", v, ok)
	}

	// "a" was just used, so inserting "c" evicts "b".
	c.Set(ctx, "c", "3")
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Error("a should survive")
	}
	if c.Size() != 2 {
		t.Errorf("size = %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[int](10, 10*time.Millisecond)
	c.Set(ctx, "k", 42)
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expired entry should miss")
	}
}

func TestLRUDelete(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[int](10, time.Minute)
	c.Set(ctx, "k", 1)
	c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("deleted entry should miss")
	}
}
