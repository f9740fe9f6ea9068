package overlay

import (
	"fmt"

	"github.com/hyperjump/pagebind/internal/models"
	"github.com/hyperjump/pagebind/internal/pdfengine"
	"github.com/hyperjump/pagebind/pkg/utils"
)

// Layout positions the header and footer stamps. Distances are millimetres.
type Layout struct {
	FontFamily string
	FontSize   float64
	Margin     float64
	// HeaderOffset is measured down from the top edge, FooterOffset up from the bottom.
	HeaderOffset float64
	FooterOffset float64
	LineHeight   float64
	Color        utils.RGB
}

// DefaultLayout is the stamp layout used by ApplyHeaderFooter.
var DefaultLayout = Layout{
	FontFamily:   "Helvetica",
	FontSize:     9,
	Margin:       12,
	HeaderOffset: 8,
	FooterOffset: 8,
	LineHeight:   5,
	Color:        utils.Black,
}

// ApplyHeaderFooter stamps the current page with DefaultLayout.
func ApplyHeaderFooter(doc pdfengine.Document, pageNumber, totalPages int, hf models.HeaderFooter) {
	DefaultLayout.Apply(doc, pageNumber, totalPages, hf)
}

// PageLabel is the running page number text.
func PageLabel(pageNumber, totalPages int) string {
	return fmt.Sprintf("Page %d of %d", pageNumber, totalPages)
}

// Apply stamps the current page. Each element is drawn only when configured:
// header left and right at the top, footer centred and the page label
// right-aligned at the bottom.
func (l Layout) Apply(doc pdfengine.Document, pageNumber, totalPages int, hf models.HeaderFooter) {
	if hf.IsZero() {
		return
	}
	w, h := doc.PageSize()
	doc.SetFont(l.FontFamily, "", l.FontSize)
	doc.SetTextColor(l.Color)

	half := w/2 - l.Margin
	headerY := h - l.HeaderOffset - l.LineHeight
	if hf.HeaderLeft != "" {
		doc.TextCell(utils.Box{X: l.Margin, Y: headerY, W: half, H: l.LineHeight}, hf.HeaderLeft, pdfengine.AlignLeft)
	}
	if hf.HeaderRight != "" {
		doc.TextCell(utils.Box{X: w / 2, Y: headerY, W: half, H: l.LineHeight}, hf.HeaderRight, pdfengine.AlignRight)
	}

	footerY := l.FooterOffset
	if hf.Footer != "" {
		doc.TextCell(utils.Box{X: l.Margin, Y: footerY, W: w - 2*l.Margin, H: l.LineHeight}, hf.Footer, pdfengine.AlignCenter)
	}
	if hf.PageNumbers {
		doc.TextCell(utils.Box{X: w / 2, Y: footerY, W: half, H: l.LineHeight}, PageLabel(pageNumber, totalPages), pdfengine.AlignRight)
	}
}
