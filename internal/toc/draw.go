package toc

import (
	"fmt"

	"github.com/hyperjump/pagebind/internal/models"
	"github.com/hyperjump/pagebind/internal/pdfengine"
	"github.com/hyperjump/pagebind/pkg/utils"
)

type row struct {
	entry   int
	level   int
	kind    models.Kind
	section string
	name    string
	pages   string
	target  *int
}

// draw lays rows out top to bottom, starting a new page whenever the next row
// would cross the bottom margin. The anchor of a row is recorded before the row
// is drawn so it always names the page the row lands on.
func (e *Engine) draw(doc pdfengine.Document, rows []row) (anchors []models.LinkAnchor, err error) {
	defer func() {
		if r := recover(); r != nil {
			anchors, err = nil, fmt.Errorf("draw index: %v", r)
		}
	}()
	l := e.layout
	contentW := l.PageWidth - l.MarginLeft - l.MarginRight
	pageColX := l.PageWidth - l.MarginRight - l.PageColumnWidth

	doc.AddPage(pdfengine.Portrait, l.PageWidth, l.PageHeight)
	doc.SetTextColor(utils.Black)
	top := l.PageHeight - l.MarginTop
	if l.Title != "" {
		doc.SetFont(l.FontFamily, "B", l.TitleFontSize)
		doc.TextCell(utils.Box{X: l.MarginLeft, Y: top - l.TitleHeight, W: contentW, H: l.TitleHeight}, l.Title, pdfengine.AlignCenter)
		top -= l.TitleHeight
	}

	for _, r := range rows {
		if top-l.RowHeight < l.MarginBottom {
			doc.AddPage(pdfengine.Portrait, l.PageWidth, l.PageHeight)
			top = l.PageHeight - l.MarginTop
		}
		y := top - l.RowHeight
		x := l.MarginLeft + float64(r.level)*l.Indent

		if r.target != nil {
			anchors = append(anchors, models.LinkAnchor{
				SourcePage: doc.PageNo(),
				Y:          y,
				RowHeight:  l.RowHeight,
				Indent:     x,
				TargetPage: *r.target,
				EntryIndex: r.entry,
			})
		}

		style := ""
		if r.kind == models.KindFolder {
			style = "B"
		}
		doc.SetFont(l.FontFamily, style, l.FontSize)
		if r.section != "" {
			doc.TextCell(utils.Box{X: x, Y: y, W: l.SectionWidth, H: l.RowHeight}, r.section, pdfengine.AlignLeft)
		}
		nameX := x + l.SectionWidth
		doc.TextCell(utils.Box{X: nameX, Y: y, W: max(pageColX-nameX, 0), H: l.RowHeight}, r.name, pdfengine.AlignLeft)
		if r.pages != "" {
			doc.TextCell(utils.Box{X: pageColX, Y: y, W: l.PageColumnWidth, H: l.RowHeight}, r.pages, pdfengine.AlignRight)
		}
		top = y
	}
	return anchors, nil
}
