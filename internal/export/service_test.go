package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/pagebind/internal/assembler"
	"github.com/hyperjump/pagebind/internal/fileid"
	"github.com/hyperjump/pagebind/internal/models"
	"github.com/hyperjump/pagebind/internal/pdfengine/enginetest"
	"github.com/hyperjump/pagebind/internal/source"
	"github.com/hyperjump/pagebind/internal/storage"
	"github.com/hyperjump/pagebind/internal/toc"
)

type env struct {
	svc     *Service
	store   *storage.SQLiteStorage
	blobs   *storage.DiskBlobStore
	made    *[]*enginetest.Recorder
	dir     string
	sources *source.Accessor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "pagebind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	blobs, err := storage.NewDiskBlobStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	tmp := filepath.Join(dir, "tmp")
	require.NoError(t, os.MkdirAll(tmp, 0o755))

	factory, made := enginetest.Factory()
	sources := source.NewAccessor(blobs, source.Tools{},
		source.WithProbe(enginetest.Probe),
		source.WithStrategies(),
		source.WithPageCounters(),
		source.WithTempDir(tmp))
	index := toc.NewEngine(toc.DefaultLayout(), sources, factory, zap.NewNop())
	asm := assembler.New(factory, sources, index,
		assembler.WithProbe(enginetest.Probe),
		assembler.WithTempDir(tmp))
	svc := NewService(store, blobs, asm, index, sources, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }

	return &env{svc: svc, store: store, blobs: blobs, made: made, dir: dir, sources: sources}
}

func (e *env) fixture(t *testing.T, name string, pages int) {
	t.Helper()
	ps := make([]enginetest.Page, pages)
	for i := range ps {
		ps[i] = enginetest.A4
	}
	require.NoError(t, enginetest.WriteFixture(filepath.Join(e.dir, name), ps...))
}

const manifestYAML = `
bundle:
  name: Smith v Jones
  include_front_cover: true
  front_cover_template: "{{.court}}"
  cover_fields:
    court: High Court
  header_footer:
    header_left: Claim HC-1
    page_numbers: true
documents:
  - name: Claim form
    file: claim.pdf
    highlights:
      - {page: 1, x: 10, y: 10, width: 100, height: 20}
  - name: Pleadings
    children:
      - name: Defence
        file: defence.pdf
        redactions:
          - {page: 2, x: 0, y: 0, width: 50, height: 50}
          - {page: 1, x: 0, y: 0, width: 50, height: 50, opacity: 0.4, border_width: 1}
`

func (e *env) importManifest(t *testing.T) *models.Bundle {
	t.Helper()
	e.fixture(t, "claim.pdf", 2)
	e.fixture(t, "defence.pdf", 3)
	p := filepath.Join(e.dir, "bundle.yaml")
	require.NoError(t, os.WriteFile(p, []byte(manifestYAML), 0o644))
	m, err := LoadManifest(p)
	require.NoError(t, err)
	b, err := e.svc.Import(context.Background(), m, e.dir)
	require.NoError(t, err)
	return b
}

func TestImport(t *testing.T) {
	e := newEnv(t)
	b := e.importManifest(t)
	ctx := context.Background()

	got, err := e.store.GetBundle(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IncludeIndex, "index defaults on")
	assert.True(t, got.IncludeFrontCover)
	assert.Equal(t, "High Court", got.CoverFields["court"])
	assert.True(t, got.HeaderFooter.PageNumbers)

	docs, err := e.store.ListDocuments(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, models.KindFolder, docs[1].Kind)
	require.NotNil(t, docs[2].ParentID)
	assert.Equal(t, docs[1].ID, *docs[2].ParentID)
	ok, err := e.blobs.Exists(ctx, docs[2].StoragePath)
	require.NoError(t, err)
	assert.True(t, ok, "file copied into the blob store")

	rs, err := e.store.ListRedactions(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, models.DefaultRedactionOpacity, rs[0].Opacity)
	assert.Equal(t, 0.4, rs[1].Opacity)
}

func TestLoadManifest_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"no name":          "documents: []\n",
		"file and folder":  "bundle: {name: x}\ndocuments:\n  - name: a\n    file: a.pdf\n    children: [{name: b}]\n",
		"folder highlight": "bundle: {name: x}\ndocuments:\n  - name: a\n    highlights: [{page: 1}]\n",
		"bad yaml":         "bundle: [",
	}
	for name, body := range cases {
		p := filepath.Join(dir, "m.yaml")
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		_, err := LoadManifest(p)
		assert.Error(t, err, name)
	}
}

func TestExport(t *testing.T) {
	e := newEnv(t)
	b := e.importManifest(t)
	ctx := context.Background()

	rec, err := e.svc.Export(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "exports/"+b.ID+"/Smith_v_Jones_20240501T093000Z.pdf", rec.Path)
	assert.Equal(t, 7, rec.Pages, "cover, index, and five document pages")
	assert.Positive(t, rec.Bytes)

	data, err := e.blobs.Read(ctx, rec.Path)
	require.NoError(t, err)
	assert.Len(t, data, int(rec.Bytes))

	list, err := e.svc.Exports(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)

	got, _ := e.store.GetBundle(ctx, b.ID)
	entries, err := e.svc.Index(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, toc.Fingerprint(entries), got.IndexHash, "preview matches the exported index")
}

func TestExport_MissingBundle(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Export(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndex(t *testing.T) {
	e := newEnv(t)
	b := e.importManifest(t)

	entries, err := e.svc.Index(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2-3", entries[0].PageRange)
	assert.Equal(t, "2.1", entries[2].Section)
	assert.Equal(t, "4-6", entries[2].PageRange)
	assert.Equal(t, 4, *entries[1].TargetPage)
}

func TestIndex_NoFiles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := &models.Bundle{Name: "empty"}
	require.NoError(t, e.store.CreateBundle(ctx, b))
	_, err := e.svc.Index(ctx, b.ID)
	assert.ErrorIs(t, err, toc.ErrNoIndex)
}

func fileDoc(t *testing.T, e *env, bundleID string) models.Document {
	t.Helper()
	docs, err := e.store.ListDocuments(context.Background(), bundleID)
	require.NoError(t, err)
	for _, d := range docs {
		if d.Kind == models.KindFile {
			return d
		}
	}
	t.Fatal("no file document")
	return models.Document{}
}

func TestRenderDocument_Cached(t *testing.T) {
	e := newEnv(t)
	b := e.importManifest(t)
	doc := fileDoc(t, e, b.ID)
	hf := models.HeaderFooter{Footer: "Draft"}
	ctx := context.Background()

	key, err := e.svc.RenderDocument(ctx, doc.ID, hf)
	require.NoError(t, err)
	assert.Equal(t, fileid.RenderedPath(doc.ID, hf), key)
	ok, _ := e.blobs.Exists(ctx, key)
	assert.True(t, ok)

	renders := len(*e.made)
	_, err = e.svc.RenderDocument(ctx, doc.ID, hf)
	require.NoError(t, err)
	assert.Equal(t, renders, len(*e.made), "second call served from cache")

	other, err := e.svc.RenderDocument(ctx, doc.ID, models.HeaderFooter{Footer: "Final"})
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestRenderDocument_Folder(t *testing.T) {
	e := newEnv(t)
	b := e.importManifest(t)
	docs, _ := e.store.ListDocuments(context.Background(), b.ID)
	_, err := e.svc.RenderDocument(context.Background(), docs[1].ID, models.HeaderFooter{})
	assert.ErrorIs(t, err, ErrNotFile)
}

func TestRenderDocument_UnreadableSource(t *testing.T) {
	e := newEnv(t)
	b := e.importManifest(t)
	doc := fileDoc(t, e, b.ID)
	ctx := context.Background()
	require.NoError(t, e.blobs.Write(ctx, doc.StoragePath, []byte("not a pdf")))
	e.sources.Invalidate(doc.StoragePath)

	_, err := e.svc.RenderDocument(ctx, doc.ID, models.HeaderFooter{Footer: "Draft"})
	assert.ErrorIs(t, err, source.ErrUnreadable)
	ok, _ := e.blobs.Exists(ctx, fileid.RenderedPath(doc.ID, models.HeaderFooter{Footer: "Draft"}))
	assert.False(t, ok, "nothing cached for a failed render")
}

func TestRenderDocument_Concurrent(t *testing.T) {
	e := newEnv(t)
	b := e.importManifest(t)
	doc := fileDoc(t, e, b.ID)

	var wg sync.WaitGroup
	keys := make([]string, 8)
	errs := make([]error, 8)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i], errs[i] = e.svc.RenderDocument(context.Background(), doc.ID, models.HeaderFooter{PageNumbers: true})
		}(i)
	}
	wg.Wait()
	for i := range keys {
		require.NoError(t, errs[i])
		assert.Equal(t, keys[0], keys[i])
	}
}

func TestInvalidateSource(t *testing.T) {
	e := newEnv(t)
	b := e.importManifest(t)
	doc := fileDoc(t, e, b.ID)
	ctx := context.Background()

	key, err := e.svc.RenderDocument(ctx, doc.ID, models.HeaderFooter{})
	require.NoError(t, err)
	assert.Equal(t, 2, e.sources.PageCount(ctx, doc.StoragePath))

	// Replace the stored file with a longer one.
	e.fixture(t, "longer.pdf", 5)
	data, err := os.ReadFile(filepath.Join(e.dir, "longer.pdf"))
	require.NoError(t, err)
	require.NoError(t, e.blobs.Write(ctx, doc.StoragePath, data))

	require.NoError(t, e.svc.InvalidateSource(ctx, doc.StoragePath))
	ok, _ := e.blobs.Exists(ctx, key)
	assert.False(t, ok, "rendered copy dropped")
	assert.Equal(t, 5, e.sources.PageCount(ctx, doc.StoragePath))
}

func TestWriteIndexWorkbook(t *testing.T) {
	five := 5
	entries := []models.IndexEntry{
		{Kind: models.KindFolder, Name: "Pleadings", Section: "1", TargetPage: &five},
		{Kind: models.KindFile, Name: "Defence", Section: "1.1", Level: 1, TargetPage: &five, PageRange: "5-7"},
		{Kind: models.KindFolder, Name: "Empty", Section: "2"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteIndexWorkbook(&buf, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(indexSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Section", "Name", "Kind", "Pages", "First page"}, rows[0])
	assert.Equal(t, []string{"1.1", "  Defence", "file", "5-7", "5"}, rows[2])
	assert.Equal(t, "Empty", rows[3][1])
}
