package models

import "time"

// HeaderFooter configures the per-page stamps drawn on document pages.
type HeaderFooter struct {
	HeaderLeft  string `json:"header_left,omitempty" yaml:"header_left"`
	HeaderRight string `json:"header_right,omitempty" yaml:"header_right"`
	Footer      string `json:"footer,omitempty" yaml:"footer"`
	PageNumbers bool   `json:"page_numbers,omitempty" yaml:"page_numbers"`
}

// IsZero reports whether no stamp is configured.
func (h HeaderFooter) IsZero() bool {
	return h == HeaderFooter{}
}

// Bundle is a named, ordered collection of documents exported as one PDF.
type Bundle struct {
	ID                 string            `json:"id" db:"id"`
	UserID             string            `json:"user_id" db:"user_id"`
	Name               string            `json:"name" db:"name"`
	HeaderFooter       HeaderFooter      `json:"header_footer" db:"-"`
	IncludeIndex       bool              `json:"include_index" db:"include_index"`
	IncludeFrontCover  bool              `json:"include_front_cover" db:"include_front_cover"`
	IncludeBackCover   bool              `json:"include_back_cover" db:"include_back_cover"`
	FrontCoverTemplate string            `json:"front_cover_template,omitempty" db:"front_cover_template"`
	BackCoverTemplate  string            `json:"back_cover_template,omitempty" db:"back_cover_template"`
	CoverFields        map[string]string `json:"cover_fields,omitempty" db:"cover_fields"`
	IndexHash          string            `json:"index_hash,omitempty" db:"index_hash"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at" db:"updated_at"`
}

// Export records a finished bundle artifact.
type Export struct {
	ID        string    `json:"id" db:"id"`
	BundleID  string    `json:"bundle_id" db:"bundle_id"`
	Path      string    `json:"path" db:"path"`
	Pages     int       `json:"pages" db:"pages"`
	Bytes     int64     `json:"bytes" db:"bytes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
