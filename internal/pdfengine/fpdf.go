package pdfengine

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"

	"github.com/hyperjump/pagebind/pkg/utils"
)

const mediaBox = "/MediaBox"

type pageSize struct {
	w, h float64
}

// Fpdf implements Document with gofpdf, importing source pages through gofpdi.
type Fpdf struct {
	pdf      *gofpdf.Fpdf
	importer *gofpdi.Importer
	tr       func(string) string
	sizes    []pageSize
}

// NewFpdf returns an empty millimetre-based document with automatic page breaks
// and margins disabled; callers place everything explicitly.
func NewFpdf() *Fpdf {
	pdf := gofpdf.New(string(Portrait), "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCellMargin(0)
	return &Fpdf{
		pdf:      pdf,
		importer: gofpdi.NewImporter(),
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// NewDocument is a Factory for Fpdf documents.
func NewDocument() Document {
	return NewFpdf()
}

// ImportPage registers page (1-based) of the PDF at path as a template. gofpdi
// panics on documents it cannot parse; that is reported as an error.
func (d *Fpdf) ImportPage(path string, page int) (tpl Template, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import page %d of %s: %v", page, path, r)
		}
	}()
	id := d.importer.ImportPage(d.pdf, path, page, mediaBox)
	if d.pdf.Err() {
		return Template{}, fmt.Errorf("import page %d of %s: %w", page, path, d.pdf.Error())
	}
	box, ok := d.importer.GetPageSizes()[page][mediaBox]
	if !ok {
		return Template{}, fmt.Errorf("import page %d of %s: no media box", page, path)
	}
	w, h := utils.PtToMM(box["w"]), utils.PtToMM(box["h"])
	return Template{ID: id, Width: w, Height: h, Orientation: OrientationOf(w, h)}, nil
}

// AddPage appends a page of the given visual size and makes it current.
func (d *Fpdf) AddPage(o Orientation, width, height float64) {
	size := gofpdf.SizeType{Wd: width, Ht: height}
	if o == Landscape {
		size = gofpdf.SizeType{Wd: height, Ht: width}
	}
	d.pdf.AddPageFormat(string(o), size)
	d.sizes = append(d.sizes, pageSize{w: width, h: height})
}

// UseTemplate draws t over the whole current page.
func (d *Fpdf) UseTemplate(t Template) {
	w, h := d.PageSize()
	d.importer.UseImportedTemplate(d.pdf, t.ID, 0, d.top(0, h), w, h)
}

func (d *Fpdf) SetFont(family, style string, size float64) {
	d.pdf.SetFont(family, style, size)
}

func (d *Fpdf) SetTextColor(c utils.RGB) { d.pdf.SetTextColor(c.R, c.G, c.B) }
func (d *Fpdf) SetFillColor(c utils.RGB) { d.pdf.SetFillColor(c.R, c.G, c.B) }
func (d *Fpdf) SetDrawColor(c utils.RGB) { d.pdf.SetDrawColor(c.R, c.G, c.B) }

func (d *Fpdf) SetAlpha(alpha float64) {
	d.pdf.SetAlpha(alpha, "Normal")
}

func (d *Fpdf) SetLineWidth(w float64) {
	d.pdf.SetLineWidth(w)
}

func (d *Fpdf) Rect(b utils.Box, style string) {
	d.pdf.Rect(b.X, d.top(b.Y, b.H), b.W, b.H, style)
}

func (d *Fpdf) TextCell(b utils.Box, text string, align Align) {
	d.pdf.SetXY(b.X, d.top(b.Y, b.H))
	d.pdf.CellFormat(b.W, b.H, d.tr(text), "", 0, string(align)+"M", false, 0, "")
}

func (d *Fpdf) StringWidth(s string) float64 {
	return d.pdf.GetStringWidth(d.tr(s))
}

func (d *Fpdf) PageSize() (float64, float64) {
	n := d.pdf.PageNo()
	if n < 1 || n > len(d.sizes) {
		return d.pdf.GetPageSize()
	}
	s := d.sizes[n-1]
	return s.w, s.h
}

func (d *Fpdf) SetPage(n int) { d.pdf.SetPage(n) }
func (d *Fpdf) PageNo() int   { return d.pdf.PageNo() }
func (d *Fpdf) PageCount() int {
	return d.pdf.PageCount()
}

func (d *Fpdf) AddLink() int { return d.pdf.AddLink() }

func (d *Fpdf) SetLink(link, page int) {
	d.pdf.SetLink(link, 0, page)
}

func (d *Fpdf) Link(b utils.Box, link int) {
	d.pdf.Link(b.X, d.top(b.Y, b.H), b.W, b.H, link)
}

// Output writes the finished PDF.
func (d *Fpdf) Output(w io.Writer) error {
	if d.pdf.Err() {
		return fmt.Errorf("pdf: %w", d.pdf.Error())
	}
	return d.pdf.Output(w)
}

// top converts a bottom-left box to gofpdf's top-left y. gofpdf maps y through the
// height of the most recently added page even after SetPage, so that height is
// used here rather than the current page's.
func (d *Fpdf) top(y, h float64) float64 {
	_, lastH := d.pdf.GetPageSize()
	return lastH - y - h
}

// Probe returns the number of pages gofpdi can read from the PDF at path.
func Probe(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("probe %s: %v", path, r)
		}
	}()
	pdf := gofpdf.New(string(Portrait), "mm", "A4", "")
	imp := gofpdi.NewImporter()
	imp.ImportPage(pdf, path, 1, mediaBox)
	if pdf.Err() {
		return 0, fmt.Errorf("probe %s: %w", path, pdf.Error())
	}
	n = len(imp.GetPageSizes())
	if n == 0 {
		return 0, fmt.Errorf("probe %s: no pages", path)
	}
	return n, nil
}
