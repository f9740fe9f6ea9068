package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/pagebind/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS bundles (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		header_left TEXT,
		header_right TEXT,
		footer TEXT,
		page_numbers INTEGER NOT NULL DEFAULT 0,
		include_index INTEGER NOT NULL DEFAULT 1,
		include_front_cover INTEGER NOT NULL DEFAULT 0,
		include_back_cover INTEGER NOT NULL DEFAULT 0,
		front_cover_template TEXT,
		back_cover_template TEXT,
		cover_fields TEXT,
		index_hash TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		bundle_id TEXT NOT NULL,
		parent_id TEXT,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		storage_path TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (bundle_id) REFERENCES bundles(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_bundle ON documents(bundle_id);
	CREATE INDEX IF NOT EXISTS idx_documents_storage_path ON documents(storage_path);

	CREATE TABLE IF NOT EXISTS highlights (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		width REAL NOT NULL,
		height REAL NOT NULL,
		color_hex TEXT,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS redactions (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		width REAL NOT NULL,
		height REAL NOT NULL,
		fill_hex TEXT,
		border_hex TEXT,
		opacity REAL,
		border_width REAL NOT NULL DEFAULT 0,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		bundle_id TEXT NOT NULL,
		path TEXT NOT NULL,
		pages INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (bundle_id) REFERENCES bundles(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_exports_bundle ON exports(bundle_id, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateBundle inserts a bundle, assigning an ID when empty.
func (s *SQLiteStorage) CreateBundle(ctx context.Context, b *models.Bundle) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	fieldsJSON, err := json.Marshal(b.CoverFields)
	if err != nil {
		return fmt.Errorf("failed to marshal cover fields: %w", err)
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	hf := b.HeaderFooter
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bundles (id, user_id, name, header_left, header_right, footer, page_numbers,
			include_index, include_front_cover, include_back_cover,
			front_cover_template, back_cover_template, cover_fields, index_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, hf.HeaderLeft, hf.HeaderRight, hf.Footer, hf.PageNumbers,
		b.IncludeIndex, b.IncludeFrontCover, b.IncludeBackCover,
		b.FrontCoverTemplate, b.BackCoverTemplate, string(fieldsJSON), b.IndexHash, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

// GetBundle returns a bundle by ID.
func (s *SQLiteStorage) GetBundle(ctx context.Context, id string) (*models.Bundle, error) {
	var b models.Bundle
	var userID, headerLeft, headerRight, footer, front, back, fields, indexHash sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, header_left, header_right, footer, page_numbers,
			include_index, include_front_cover, include_back_cover,
			front_cover_template, back_cover_template, cover_fields, index_hash, created_at, updated_at
		 FROM bundles WHERE id = ?`, id,
	).Scan(&b.ID, &userID, &b.Name, &headerLeft, &headerRight, &footer, &b.HeaderFooter.PageNumbers,
		&b.IncludeIndex, &b.IncludeFrontCover, &b.IncludeBackCover,
		&front, &back, &fields, &indexHash, &b.CreatedAt, &b.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bundle %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	b.UserID = userID.String
	b.HeaderFooter.HeaderLeft = headerLeft.String
	b.HeaderFooter.HeaderRight = headerRight.String
	b.HeaderFooter.Footer = footer.String
	b.FrontCoverTemplate = front.String
	b.BackCoverTemplate = back.String
	b.IndexHash = indexHash.String
	if fields.String != "" && fields.String != "null" {
		if err := json.Unmarshal([]byte(fields.String), &b.CoverFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cover fields: %w", err)
		}
	}
	return &b, nil
}

// SetIndexHash stores the fingerprint of the bundle's latest index.
func (s *SQLiteStorage) SetIndexHash(ctx context.Context, bundleID, hash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE bundles SET index_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now(), bundleID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("bundle %s: %w", bundleID, ErrNotFound)
	}
	return nil
}

// CreateDocument inserts a document or folder record.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, bundle_id, parent_id, name, kind, sort_order, storage_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.BundleID, doc.ParentID, doc.Name, string(doc.Kind), doc.Order, doc.StoragePath, doc.CreatedAt,
	)
	return err
}

const documentColumns = `id, bundle_id, parent_id, name, kind, sort_order, storage_path, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (models.Document, error) {
	var doc models.Document
	var parentID, storagePath sql.NullString
	var kind string
	if err := row.Scan(&doc.ID, &doc.BundleID, &parentID, &doc.Name, &kind, &doc.Order, &storagePath, &doc.CreatedAt); err != nil {
		return doc, err
	}
	if parentID.Valid {
		p := parentID.String
		doc.ParentID = &p
	}
	doc.Kind = models.Kind(kind)
	doc.StoragePath = storagePath.String
	return doc, nil
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns every record of a bundle in insertion order. Tree order
// is the caller's concern.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, bundleID string) ([]models.Document, error) {
	return s.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents WHERE bundle_id = ? ORDER BY rowid`, bundleID)
}

// DocumentsByStoragePath returns the file records backed by the given blob key.
func (s *SQLiteStorage) DocumentsByStoragePath(ctx context.Context, path string) ([]models.Document, error) {
	return s.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents WHERE storage_path = ? ORDER BY rowid`, path)
}

func (s *SQLiteStorage) queryDocuments(ctx context.Context, query string, args ...any) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CreateHighlight inserts a highlight. Rectangles are stored as given.
func (s *SQLiteStorage) CreateHighlight(ctx context.Context, h *models.Highlight) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO highlights (id, document_id, page_number, x, y, width, height, color_hex)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.DocumentID, h.Page, h.X, h.Y, h.Width, h.Height, h.ColorHex,
	)
	return err
}

// CreateRedaction inserts a redaction. Rows written by other tools may carry a
// NULL opacity, which reads back as DefaultRedactionOpacity.
func (s *SQLiteStorage) CreateRedaction(ctx context.Context, r *models.Redaction) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	opacity := sql.NullFloat64{Float64: r.Opacity, Valid: true}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO redactions (id, document_id, page_number, x, y, width, height, fill_hex, border_hex, opacity, border_width)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DocumentID, r.Page, r.X, r.Y, r.Width, r.Height, r.FillHex, r.BorderHex, opacity, r.BorderWidth,
	)
	return err
}

// ListHighlights returns the highlights of every document in a bundle.
func (s *SQLiteStorage) ListHighlights(ctx context.Context, bundleID string) ([]models.Highlight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id, h.document_id, h.page_number, h.x, h.y, h.width, h.height, h.color_hex
		 FROM highlights h JOIN documents d ON d.id = h.document_id
		 WHERE d.bundle_id = ? ORDER BY h.rowid`, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Highlight
	for rows.Next() {
		var h models.Highlight
		var color sql.NullString
		if err := rows.Scan(&h.ID, &h.DocumentID, &h.Page, &h.X, &h.Y, &h.Width, &h.Height, &color); err != nil {
			return nil, err
		}
		h.ColorHex = color.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListRedactions returns the redactions of every document in a bundle.
func (s *SQLiteStorage) ListRedactions(ctx context.Context, bundleID string) ([]models.Redaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.document_id, r.page_number, r.x, r.y, r.width, r.height,
			r.fill_hex, r.border_hex, r.opacity, r.border_width
		 FROM redactions r JOIN documents d ON d.id = r.document_id
		 WHERE d.bundle_id = ? ORDER BY r.rowid`, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Redaction
	for rows.Next() {
		var r models.Redaction
		var fill, border sql.NullString
		var opacity sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Page, &r.X, &r.Y, &r.Width, &r.Height,
			&fill, &border, &opacity, &r.BorderWidth); err != nil {
			return nil, err
		}
		r.FillHex = fill.String
		r.BorderHex = border.String
		r.Opacity = models.DefaultRedactionOpacity
		if opacity.Valid {
			r.Opacity = opacity.Float64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordExport inserts an export row.
func (s *SQLiteStorage) RecordExport(ctx context.Context, e *models.Export) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exports (id, bundle_id, path, pages, bytes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.BundleID, e.Path, e.Pages, e.Bytes, e.CreatedAt,
	)
	return err
}

// ListExports returns a bundle's exports, newest first.
func (s *SQLiteStorage) ListExports(ctx context.Context, bundleID string) ([]models.Export, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bundle_id, path, pages, bytes, created_at FROM exports
		 WHERE bundle_id = ? ORDER BY created_at DESC, rowid DESC`, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Export
	for rows.Next() {
		var e models.Export
		if err := rows.Scan(&e.ID, &e.BundleID, &e.Path, &e.Pages, &e.Bytes, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountBundles returns the total number of bundles.
func (s *SQLiteStorage) CountBundles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bundles`).Scan(&count)
	return count, err
}

// CountDocuments returns the total number of document and folder records.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
