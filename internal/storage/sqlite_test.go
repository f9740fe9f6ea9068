package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/pagebind/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Bundle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := &models.Bundle{
		Name:         "Trial bundle",
		UserID:       "u1",
		IncludeIndex: true,
		HeaderFooter: models.HeaderFooter{HeaderLeft: "Case 42", Footer: "Confidential", PageNumbers: true},
		CoverFields:  map[string]string{"court": "High Court"},
	}
	if err := store.CreateBundle(ctx, b); err != nil {
		t.Fatal(err)
	}
	if b.ID == "" {
		t.Fatal("ID should be assigned")
	}

	got, err := store.GetBundle(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Trial bundle" || !got.IncludeIndex || got.IncludeFrontCover {
		t.Errorf("got %+v", got)
	}
	if got.HeaderFooter != b.HeaderFooter {
		t.Errorf("header/footer: got %+v want %+v", got.HeaderFooter, b.HeaderFooter)
	}
	if got.CoverFields["court"] != "High Court" {
		t.Errorf("cover fields: %v", got.CoverFields)
	}

	if err := store.SetIndexHash(ctx, b.ID, "abc"); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetBundle(ctx, b.ID)
	if got.IndexHash != "abc" {
		t.Errorf("index hash = %q", got.IndexHash)
	}

	if _, err := store.GetBundle(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetIndexHash(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_Documents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := &models.Bundle{Name: "b"}
	if err := store.CreateBundle(ctx, b); err != nil {
		t.Fatal(err)
	}
	folder := &models.Document{ID: "f", BundleID: b.ID, Name: "Pleadings", Kind: models.KindFolder, Order: 1}
	parent := "f"
	file := &models.Document{ID: "d", BundleID: b.ID, ParentID: &parent, Name: "Claim", Kind: models.KindFile, StoragePath: "docs/claim.pdf"}
	for _, d := range []*models.Document{folder, file} {
		if err := store.CreateDocument(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.ListDocuments(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(list))
	}
	if list[0].ParentID != nil {
		t.Error("root folder should have nil parent")
	}
	if list[1].ParentID == nil || *list[1].ParentID != "f" {
		t.Errorf("file parent = %v", list[1].ParentID)
	}
	if list[1].Kind != models.KindFile || list[1].StoragePath != "docs/claim.pdf" {
		t.Errorf("got %+v", list[1])
	}

	byPath, err := store.DocumentsByStoragePath(ctx, "docs/claim.pdf")
	if err != nil || len(byPath) != 1 || byPath[0].ID != "d" {
		t.Errorf("DocumentsByStoragePath = %+v, %v", byPath, err)
	}

	if _, err := store.GetDocument(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	n, _ := store.CountDocuments(ctx)
	if n != 2 {
		t.Errorf("CountDocuments = %d", n)
	}
	n, _ = store.CountBundles(ctx)
	if n != 1 {
		t.Errorf("CountBundles = %d", n)
	}
}

func TestSQLiteStorage_Annotations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := &models.Bundle{Name: "b"}
	_ = store.CreateBundle(ctx, b)
	_ = store.CreateDocument(ctx, &models.Document{ID: "d", BundleID: b.ID, Name: "x", Kind: models.KindFile})

	if err := store.CreateHighlight(ctx, &models.Highlight{DocumentID: "d", Page: 1, X: 1, Y: 2, Width: 3, Height: 4}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateRedaction(ctx, &models.Redaction{DocumentID: "d", Page: 2, Width: 5, Height: 5, Opacity: 0.5, BorderWidth: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO redactions (id, document_id, page_number, x, y, width, height) VALUES ('r2', 'd', 3, 0, 0, 1, 1)`); err != nil {
		t.Fatal(err)
	}

	hs, err := store.ListHighlights(ctx, b.ID)
	if err != nil || len(hs) != 1 || hs[0].Height != 4 {
		t.Fatalf("highlights = %+v, %v", hs, err)
	}
	rs, err := store.ListRedactions(ctx, b.ID)
	if err != nil || len(rs) != 2 {
		t.Fatalf("redactions = %+v, %v", rs, err)
	}
	if rs[0].Opacity != 0.5 || rs[0].BorderWidth != 1 {
		t.Errorf("first redaction = %+v", rs[0])
	}
	if rs[1].Opacity != models.DefaultRedactionOpacity {
		t.Errorf("NULL opacity should read as default, got %v", rs[1].Opacity)
	}

	other := &models.Bundle{Name: "other"}
	_ = store.CreateBundle(ctx, other)
	hs, _ = store.ListHighlights(ctx, other.ID)
	if len(hs) != 0 {
		t.Errorf("other bundle should have no highlights, got %d", len(hs))
	}
}

func TestSQLiteStorage_Exports(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := &models.Bundle{Name: "b"}
	_ = store.CreateBundle(ctx, b)
	older := &models.Export{BundleID: b.ID, Path: "exports/a.pdf", Pages: 3, Bytes: 100, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.Export{BundleID: b.ID, Path: "exports/b.pdf", Pages: 4, Bytes: 200}
	for _, e := range []*models.Export{older, newer} {
		if err := store.RecordExport(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	list, err := store.ListExports(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Path != "exports/b.pdf" {
		t.Errorf("expected newest first, got %+v", list)
	}
}
