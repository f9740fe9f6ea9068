package models

// IndexEntry is one row of a bundle's table of contents.
// TargetPage is nil for folders without any file beneath them.
type IndexEntry struct {
	Kind       Kind   `json:"kind"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Section    string `json:"section"`
	TargetPage *int   `json:"target_page,omitempty"`
	PageRange  string `json:"page_range,omitempty"`
	DocumentID string `json:"document_id"`
}

// LinkAnchor is the on-page position of a clickable index row, recorded while the
// index is drawn. Pages are index-local and not yet offset by cover pages; Y is the
// bottom edge of the row in engine units.
type LinkAnchor struct {
	SourcePage int     `json:"source_page"`
	Y          float64 `json:"y"`
	RowHeight  float64 `json:"row_height"`
	Indent     float64 `json:"indent"`
	TargetPage int     `json:"target_page"`
	EntryIndex int     `json:"entry_index"`
}
