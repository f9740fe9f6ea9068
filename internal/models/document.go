// Package models defines core data structures for bundles, documents, annotations, and index entries.
package models

import "time"

// Kind distinguishes files from folders in a bundle tree.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Document is a persisted bundle record: a file or a folder referencing its parent.
type Document struct {
	ID          string    `json:"id" db:"id"`
	BundleID    string    `json:"bundle_id" db:"bundle_id"`
	ParentID    *string   `json:"parent_id,omitempty" db:"parent_id"`
	Name        string    `json:"name" db:"name"`
	Kind        Kind      `json:"kind" db:"kind"`
	Order       int       `json:"order" db:"sort_order"`
	StoragePath string    `json:"storage_path,omitempty" db:"storage_path"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DocumentNode is the tree view of a Document. Files never have children.
type DocumentNode struct {
	ID          string          `json:"id"`
	ParentID    *string         `json:"parent_id,omitempty"`
	Name        string          `json:"name"`
	Kind        Kind            `json:"kind"`
	Order       int             `json:"order"`
	StoragePath string          `json:"storage_path,omitempty"`
	Children    []*DocumentNode `json:"children,omitempty"`
}

// IsFile reports whether the node is a file leaf.
func (n *DocumentNode) IsFile() bool {
	return n.Kind == KindFile
}

// PageRange is where a file document landed in the merged output.
// Start and End use content numbering: page 1 is the first page after the front cover.
type PageRange struct {
	DocumentID string `json:"document_id"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Count      int    `json:"count"`
}
