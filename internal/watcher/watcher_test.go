package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *recorder) add(key string) {
	r.mu.Lock()
	r.keys = append(r.keys, key)
	r.mu.Unlock()
}

func (r *recorder) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k == key {
			return true
		}
	}
	return false
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func startWatcher(t *testing.T, root string, rec *recorder, opts ...Option) *Watcher {
	t.Helper()
	opts = append([]Option{WithDebounce(20 * time.Millisecond)}, opts...)
	w := NewWatcher(root, true, rec.add, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_ReportsPDFKeys(t *testing.T) {
	root := t.TempDir()
	docs := filepath.Join(root, "documents", "b1")
	if err := os.MkdirAll(docs, 0755); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	startWatcher(t, root, rec)

	if err := os.WriteFile(filepath.Join(docs, "a.pdf"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return rec.has("documents/b1/a.pdf") }) {
		t.Fatalf("expected change for a.pdf, got %v", rec.snapshot())
	}
	for _, k := range rec.snapshot() {
		if k == "documents/b1/notes.txt" {
			t.Error("non-PDF files should be ignored")
		}
	}
}

func TestWatcher_Debounces(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec, WithDebounce(150*time.Millisecond))

	p := filepath.Join(root, "a.pdf")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(p, []byte{byte(i)}, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if !waitFor(t, func() bool { return rec.has("a.pdf") }) {
		t.Fatal("expected a change")
	}
	time.Sleep(300 * time.Millisecond)
	if n := len(rec.snapshot()); n != 1 {
		t.Errorf("expected one debounced change, got %d", n)
	}
}

func TestWatcher_NewDirectoryAndRemove(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec)

	nested := filepath.Join(root, "documents", "b2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	// Let the watcher pick up the new directories.
	time.Sleep(200 * time.Millisecond)
	p := filepath.Join(nested, "deep.pdf")
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return rec.has("documents/b2/deep.pdf") }) {
		t.Fatalf("expected change in new directory, got %v", rec.snapshot())
	}

	before := len(rec.snapshot())
	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return len(rec.snapshot()) > before }) {
		t.Fatal("expected change on remove")
	}
}

func TestWatcher_IgnoredPrefixes(t *testing.T) {
	root := t.TempDir()
	cache := filepath.Join(root, "cache", "rendered", "d1")
	if err := os.MkdirAll(cache, 0755); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	startWatcher(t, root, rec, WithIgnorePrefixes("cache", "exports/"))

	if err := os.WriteFile(filepath.Join(cache, "x.pdf"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "kept.pdf"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return rec.has("kept.pdf") }) {
		t.Fatal("expected change for kept.pdf")
	}
	time.Sleep(100 * time.Millisecond)
	if rec.has("cache/rendered/d1/x.pdf") {
		t.Error("ignored prefix reported")
	}
}

func TestWatcher_Start_createsMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blobs")
	startWatcher(t, root, &recorder{})
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root should be created: %v", err)
	}
}

func TestWatcher_key(t *testing.T) {
	w := NewWatcher("/data/blobs", true, nil)
	tests := []struct {
		path string
		key  string
		ok   bool
	}{
		{"/data/blobs/documents/a.pdf", "documents/a.pdf", true},
		{"/data/blobs", "", true},
		{"/data/other/a.pdf", "", false},
		{"/data/blobs-old/a.pdf", "", false},
	}
	for _, tt := range tests {
		key, ok := w.key(tt.path)
		if key != tt.key || ok != tt.ok {
			t.Errorf("key(%q) = %q, %v; want %q, %v", tt.path, key, ok, tt.key, tt.ok)
		}
	}
}

func TestIsPDF(t *testing.T) {
	if !isPDF("a/b.PDF") || isPDF("a/b.txt") || isPDF(".blob-123") {
		t.Error("unexpected isPDF result")
	}
}
