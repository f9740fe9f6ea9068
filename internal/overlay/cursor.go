// Package overlay stamps headers, footers, page numbers, highlights, and
// redactions onto pages of an output document.
package overlay

import "github.com/hyperjump/pagebind/internal/pdfengine"

// OnPage moves the cursor to page, runs fn, and always returns the cursor to the
// last page, even if fn panics.
func OnPage(doc pdfengine.Document, page int, fn func()) {
	doc.SetPage(page)
	defer doc.SetPage(doc.PageCount())
	fn()
}
