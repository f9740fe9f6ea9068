package models

// Highlight is a translucent rectangle authored on a source page.
// Coordinates are PDF points with a top-left origin; Page is 1-based and local
// to the source document.
type Highlight struct {
	ID         string  `json:"id" db:"id"`
	DocumentID string  `json:"document_id" db:"document_id"`
	Page       int     `json:"page" db:"page_number"`
	X          float64 `json:"x" db:"x"`
	Y          float64 `json:"y" db:"y"`
	Width      float64 `json:"width" db:"width"`
	Height     float64 `json:"height" db:"height"`
	ColorHex   string  `json:"color_hex,omitempty" db:"color_hex"`
}

// Valid reports whether the rectangle has a positive area.
func (h Highlight) Valid() bool {
	return h.Width > 0 && h.Height > 0
}

// DefaultRedactionOpacity applies when a stored redaction has no opacity.
const DefaultRedactionOpacity = 1.0

// Redaction is an opaque box with an optional border, in the same space as Highlight.
type Redaction struct {
	ID          string  `json:"id" db:"id"`
	DocumentID  string  `json:"document_id" db:"document_id"`
	Page        int     `json:"page" db:"page_number"`
	X           float64 `json:"x" db:"x"`
	Y           float64 `json:"y" db:"y"`
	Width       float64 `json:"width" db:"width"`
	Height      float64 `json:"height" db:"height"`
	FillHex     string  `json:"fill_hex,omitempty" db:"fill_hex"`
	BorderHex   string  `json:"border_hex,omitempty" db:"border_hex"`
	Opacity     float64 `json:"opacity" db:"opacity"`
	BorderWidth float64 `json:"border_width" db:"border_width"`
}

// Valid reports whether the rectangle has a positive area.
func (r Redaction) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// PageAnnotations groups annotations by document ID, then by source page.
type PageAnnotations[T any] map[string]map[int][]T

// GroupHighlights buckets valid highlights by document and page.
func GroupHighlights(hs []Highlight) PageAnnotations[Highlight] {
	out := make(PageAnnotations[Highlight])
	for _, h := range hs {
		if !h.Valid() {
			continue
		}
		out.add(h.DocumentID, h.Page, h)
	}
	return out
}

// GroupRedactions buckets valid redactions by document and page.
func GroupRedactions(rs []Redaction) PageAnnotations[Redaction] {
	out := make(PageAnnotations[Redaction])
	for _, r := range rs {
		if !r.Valid() {
			continue
		}
		out.add(r.DocumentID, r.Page, r)
	}
	return out
}

func (p PageAnnotations[T]) add(docID string, page int, v T) {
	pages, ok := p[docID]
	if !ok {
		pages = make(map[int][]T)
		p[docID] = pages
	}
	pages[page] = append(pages[page], v)
}
