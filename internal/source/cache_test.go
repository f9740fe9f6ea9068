package source

import "testing"

func TestCountCache_GetSet(t *testing.T) {
	v1 := fileStamp{size: 100, modTime: 1}
	c := newCountCache(2)
	if _, ok := c.Get("a", v1); ok {
		t.Fatal("expected miss")
	}
	c.Set("a", 3, v1)
	if n, ok := c.Get("a", v1); !ok || n != 3 {
		t.Errorf("Get: got %d, %v", n, ok)
	}
	c.Set("b", 4, v1)
	c.Get("a", v1)    // a is now most recent
	c.Set("c", 5, v1) // evicts b
	if _, ok := c.Get("b", v1); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a", v1); !ok {
		t.Error("expected a to remain")
	}
	c.Set("a", 7, v1)
	if n, _ := c.Get("a", v1); n != 7 {
		t.Errorf("update: got %d", n)
	}
}

func TestCountCache_StaleStamp(t *testing.T) {
	c := newCountCache(4)
	c.Set("a", 3, fileStamp{size: 100, modTime: 1})
	if _, ok := c.Get("a", fileStamp{size: 180, modTime: 2}); ok {
		t.Error("a rewritten file must miss")
	}
	if c.Len() != 0 {
		t.Errorf("stale entry kept: len %d", c.Len())
	}
}

func TestCountCache_SkipsUnreadable(t *testing.T) {
	c := newCountCache(4)
	c.Set("a", 0, fileStamp{})
	c.Set("b", -1, fileStamp{})
	if c.Len() != 0 {
		t.Errorf("zero counts cached: len %d", c.Len())
	}
}

func TestCountCache_Delete(t *testing.T) {
	c := newCountCache(4)
	c.Set("a", 1, fileStamp{})
	c.Delete("a")
	c.Delete("missing")
	if _, ok := c.Get("a", fileStamp{}); ok || c.Len() != 0 {
		t.Error("expected empty cache")
	}
}
