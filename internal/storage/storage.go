// Package storage defines persistence for bundle records and the blob store for file bytes.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/pagebind/internal/models"
)

// ErrNotFound is returned when a record or blob does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines bundle, document, annotation, and export persistence operations.
type Storage interface {
	// Bundle operations
	CreateBundle(ctx context.Context, b *models.Bundle) error
	GetBundle(ctx context.Context, id string) (*models.Bundle, error)
	SetIndexHash(ctx context.Context, bundleID, hash string) error

	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, bundleID string) ([]models.Document, error)
	DocumentsByStoragePath(ctx context.Context, path string) ([]models.Document, error)

	// Annotation operations
	CreateHighlight(ctx context.Context, h *models.Highlight) error
	CreateRedaction(ctx context.Context, r *models.Redaction) error
	ListHighlights(ctx context.Context, bundleID string) ([]models.Highlight, error)
	ListRedactions(ctx context.Context, bundleID string) ([]models.Redaction, error)

	// Exports
	RecordExport(ctx context.Context, e *models.Export) error
	ListExports(ctx context.Context, bundleID string) ([]models.Export, error)

	// Stats
	CountBundles(ctx context.Context) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}

// BlobStore is an opaque byte store addressed by slash-separated keys.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Size(ctx context.Context, key string) (int64, error)
}

// LocalPather is implemented by blob stores that keep blobs as local files.
type LocalPather interface {
	LocalPath(key string) (string, bool)
}
