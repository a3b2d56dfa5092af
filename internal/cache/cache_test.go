package cache

import (
	"testing"

	"github.com/lotas/forumhilfe/internal/types"
)

func rec(title string) *types.PostRecord {
	return &types.PostRecord{Title: title}
}

func TestCacheGetPutDelete(t *testing.T) {
	c := New()

	if got := c.Get("https://forum.example/t/a/1"); got != nil {
		t.Fatalf("expected nil for missing key, got %+v", got)
	}

	c.Put("https://forum.example/t/a/1", rec("a"))
	if got := c.Get("https://forum.example/t/a/1"); got == nil || got.Title != "a" {
		t.Fatalf("unexpected entry: %+v", got)
	}

	// Same key resolves to the same entry.
	c.Put("https://forum.example/t/a/1", rec("a2"))
	if c.Len() != 1 {
		t.Errorf("expected 1 entry after re-put, got %d", c.Len())
	}

	c.Delete("https://forum.example/t/a/1")
	if c.Get("https://forum.example/t/a/1") != nil {
		t.Error("entry survived Delete")
	}
	// Deleting a missing key is a no-op.
	c.Delete("https://forum.example/t/a/1")
}

func TestCacheClear(t *testing.T) {
	c := New()
	c.Put("k1", rec("1"))
	c.Put("k2", rec("2"))
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d entries", c.Len())
	}
}

func TestRegistryBindReturnsPrevious(t *testing.T) {
	r := NewRegistry()

	if prev := r.Bind(7, "keyA"); prev != "" {
		t.Errorf("expected empty prev for fresh tab, got %q", prev)
	}
	if prev := r.Bind(7, "keyB"); prev != "keyA" {
		t.Errorf("expected prev keyA, got %q", prev)
	}
	if key, ok := r.Lookup(7); !ok || key != "keyB" {
		t.Errorf("lookup = %q, %v", key, ok)
	}
}

func TestRegistryUnbind(t *testing.T) {
	r := NewRegistry()
	r.Bind(1, "keyA")

	key, ok := r.Unbind(1)
	if !ok || key != "keyA" {
		t.Fatalf("unbind = %q, %v", key, ok)
	}
	if _, ok := r.Unbind(1); ok {
		t.Error("second unbind reported a binding")
	}
	if _, ok := r.Lookup(1); ok {
		t.Error("lookup succeeded after unbind")
	}
}

func TestRegistryRefCount(t *testing.T) {
	r := NewRegistry()
	r.Bind(1, "keyA")
	r.Bind(2, "keyA")
	r.Bind(3, "keyB")

	if n := r.RefCount("keyA"); n != 2 {
		t.Errorf("refcount keyA = %d, want 2", n)
	}
	r.Unbind(1)
	if n := r.RefCount("keyA"); n != 1 {
		t.Errorf("refcount keyA after unbind = %d, want 1", n)
	}
	if n := r.RefCount("keyC"); n != 0 {
		t.Errorf("refcount unknown key = %d, want 0", n)
	}
}
