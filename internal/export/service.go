// Package export turns stored bundles into PDF artifacts and index previews.
package export

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/pagebind/internal/assembler"
	"github.com/hyperjump/pagebind/internal/doctree"
	"github.com/hyperjump/pagebind/internal/fileid"
	"github.com/hyperjump/pagebind/internal/models"
	"github.com/hyperjump/pagebind/internal/source"
	"github.com/hyperjump/pagebind/internal/storage"
	"github.com/hyperjump/pagebind/internal/toc"
	"github.com/hyperjump/pagebind/pkg/utils"
)

// ErrNotFile is returned when a folder is asked to render as a document.
var ErrNotFile = errors.New("not a file document")

// Blobs is the blob store the service writes artifacts to.
type Blobs interface {
	storage.BlobStore
	DeletePrefix(ctx context.Context, prefix string) error
}

// Invalidator drops cached facts about a stored source.
type Invalidator interface {
	Invalidate(key string)
}

// Service exports bundles and serves index previews and rendered documents.
type Service struct {
	store     storage.Storage
	blobs     Blobs
	assembler *assembler.Assembler
	index     *toc.Engine
	sources   Invalidator
	group     singleflight.Group
	now       func() time.Time
	logger    *zap.Logger
}

// NewService wires a Service. sources may be nil when nothing caches page counts.
func NewService(store storage.Storage, blobs Blobs, asm *assembler.Assembler, index *toc.Engine, sources Invalidator, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		blobs:     blobs,
		assembler: asm,
		index:     index,
		sources:   sources,
		now:       time.Now,
		logger:    utils.OrNop(logger),
	}
}

func (s *Service) load(ctx context.Context, bundleID string) (*assembler.Input, error) {
	b, err := s.store.GetBundle(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	hs, err := s.store.ListHighlights(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("list highlights: %w", err)
	}
	rs, err := s.store.ListRedactions(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("list redactions: %w", err)
	}
	return &assembler.Input{Bundle: *b, Documents: docs, Highlights: hs, Redactions: rs}, nil
}

// Export assembles a bundle, writes it to exports/<bundle-id>/, records the
// export, and stores the index fingerprint on the bundle. Nothing is written
// when assembly fails.
func (s *Service) Export(ctx context.Context, bundleID string) (*models.Export, error) {
	in, err := s.load(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	res, err := s.assembler.Assemble(ctx, *in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := fileid.ExportPath(bundleID, in.Bundle.Name, now)
	if err := s.blobs.Write(ctx, key, res.PDF); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}
	rec := &models.Export{
		BundleID:  bundleID,
		Path:      key,
		Pages:     res.Pages,
		Bytes:     int64(len(res.PDF)),
		CreatedAt: now,
	}
	if err := s.store.RecordExport(ctx, rec); err != nil {
		return nil, fmt.Errorf("record export: %w", err)
	}
	if len(res.Entries) > 0 {
		if err := s.store.SetIndexHash(ctx, bundleID, toc.Fingerprint(res.Entries)); err != nil {
			s.logger.Warn("failed to store index fingerprint", zap.String("bundle_id", bundleID), zap.Error(err))
		}
	}
	s.logger.Info("bundle exported",
		zap.String("bundle_id", bundleID),
		zap.String("path", key),
		zap.Int("pages", res.Pages),
		zap.Int64("bytes", rec.Bytes))
	return rec, nil
}

// Index returns the index entries a bundle export would print, without drawing
// the PDF.
func (s *Service) Index(ctx context.Context, bundleID string) ([]models.IndexEntry, error) {
	if _, err := s.store.GetBundle(ctx, bundleID); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	nodes := doctree.Build(docs, nil)
	if doctree.CountFiles(nodes) == 0 {
		return nil, toc.ErrNoIndex
	}
	m, err := s.index.Measure(nodes)
	if err != nil {
		return nil, err
	}
	return s.index.BuildEntries(ctx, nodes, m.Pages), nil
}

// Exports lists a bundle's exports, newest first.
func (s *Service) Exports(ctx context.Context, bundleID string) ([]models.Export, error) {
	if _, err := s.store.GetBundle(ctx, bundleID); err != nil {
		return nil, err
	}
	return s.store.ListExports(ctx, bundleID)
}

// RenderDocument returns the blob key of a document stamped with hf, rendering
// and caching it on first use. Concurrent requests for the same rendering share
// one assembly.
func (s *Service) RenderDocument(ctx context.Context, documentID string, hf models.HeaderFooter) (string, error) {
	key := fileid.RenderedPath(documentID, hf)
	if ok, err := s.blobs.Exists(ctx, key); err == nil && ok {
		return key, nil
	}
	_, err, shared := s.group.Do(key, func() (any, error) {
		return nil, s.render(ctx, documentID, hf, key)
	})
	if err != nil {
		return "", err
	}
	if shared {
		s.logger.Debug("rendered document shared", zap.String("document_id", documentID))
	}
	return key, nil
}

func (s *Service) render(ctx context.Context, documentID string, hf models.HeaderFooter, key string) error {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Kind != models.KindFile {
		return fmt.Errorf("document %s: %w", documentID, ErrNotFile)
	}
	single := *doc
	single.ParentID = nil
	res, err := s.assembler.Assemble(ctx, assembler.Input{
		Bundle:    models.Bundle{ID: doc.BundleID, HeaderFooter: hf},
		Documents: []models.Document{single},
	})
	if errors.Is(err, assembler.ErrNoPages) {
		return fmt.Errorf("document %s: %w", documentID, source.ErrUnreadable)
	}
	if err != nil {
		return err
	}
	if err := s.blobs.Write(ctx, key, res.PDF); err != nil {
		return fmt.Errorf("write rendered document: %w", err)
	}
	s.logger.Debug("document rendered", zap.String("document_id", documentID), zap.String("key", key))
	return nil
}

// InvalidateSource forgets everything derived from the source stored at key:
// its cached page count and every cached rendering of documents using it.
func (s *Service) InvalidateSource(ctx context.Context, key string) error {
	if s.sources != nil {
		s.sources.Invalidate(key)
	}
	docs, err := s.store.DocumentsByStoragePath(ctx, key)
	if err != nil {
		return fmt.Errorf("find documents for %s: %w", key, err)
	}
	var errs []error
	for _, d := range docs {
		if err := s.blobs.DeletePrefix(ctx, path.Join("cache", "rendered", d.ID)); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Debug("source invalidated", zap.String("key", key), zap.Int("documents", len(docs)))
	return errors.Join(errs...)
}
