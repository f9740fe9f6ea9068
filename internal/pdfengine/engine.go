// Package pdfengine defines the page-merge capability the assembler draws with and
// provides a gofpdf/gofpdi implementation of it.
//
// All box primitives take the lower-left corner of the box in millimetres, measured
// from the bottom-left corner of the current page, as in PDF user space.
package pdfengine

import (
	"io"

	"github.com/hyperjump/pagebind/pkg/utils"
)

// Orientation of a page.
type Orientation string

const (
	Portrait  Orientation = "P"
	Landscape Orientation = "L"
)

// OrientationOf returns Landscape when the page is wider than it is tall.
func OrientationOf(width, height float64) Orientation {
	if width > height {
		return Landscape
	}
	return Portrait
}

// Draw styles for Rect.
const (
	StyleFill = "F"
	StyleDraw = "D"
)

// Text alignment for TextCell.
type Align string

const (
	AlignLeft   Align = "L"
	AlignCenter Align = "C"
	AlignRight  Align = "R"
)

// Template is an imported source page, sized in millimetres.
type Template struct {
	ID          int
	Width       float64
	Height      float64
	Orientation Orientation
}

// Document is one output PDF under construction. It keeps a single page cursor:
// drawing always targets the current page, and AddPage moves the cursor to the new
// last page. Implementations are not safe for concurrent use.
type Document interface {
	ImportPage(path string, page int) (Template, error)
	AddPage(o Orientation, width, height float64)
	UseTemplate(t Template)

	SetFont(family, style string, size float64)
	SetTextColor(c utils.RGB)
	SetFillColor(c utils.RGB)
	SetDrawColor(c utils.RGB)
	SetAlpha(alpha float64)
	SetLineWidth(w float64)
	Rect(b utils.Box, style string)
	TextCell(b utils.Box, text string, align Align)
	StringWidth(s string) float64

	// PageSize is the size of the current page.
	PageSize() (width, height float64)
	SetPage(n int)
	PageNo() int
	PageCount() int

	AddLink() int
	SetLink(link, page int)
	Link(b utils.Box, link int)

	Output(w io.Writer) error
}

// Factory creates empty documents.
type Factory func() Document
