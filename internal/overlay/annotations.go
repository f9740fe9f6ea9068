package overlay

import (
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/pagebind/internal/models"
	"github.com/hyperjump/pagebind/internal/pdfengine"
	"github.com/hyperjump/pagebind/pkg/utils"
)

// HighlightAlpha is the fill opacity of highlights.
const HighlightAlpha = 0.3

// Annotator maps annotations authored on source pages onto the merged document.
type Annotator struct {
	logger *zap.Logger
}

// NewAnnotator returns an Annotator. A nil logger disables logging.
func NewAnnotator(logger *zap.Logger) *Annotator {
	return &Annotator{logger: utils.OrNop(logger)}
}

// ApplyHighlights draws each highlight as a translucent fill and returns how many
// were drawn.
func (a *Annotator) ApplyHighlights(doc pdfengine.Document, byDoc models.PageAnnotations[models.Highlight], ranges map[string]models.PageRange, coverOffset int) int {
	drawn := 0
	each(a, doc, byDoc, ranges, coverOffset, func(h models.Highlight, pageH float64) {
		box := mapBox(h.X, h.Y, h.Width, h.Height, pageH)
		doc.SetFillColor(utils.ParseColor(h.ColorHex, utils.Yellow))
		doc.SetAlpha(HighlightAlpha)
		doc.Rect(box, pdfengine.StyleFill)
		doc.SetAlpha(1)
		drawn++
	})
	return drawn
}

// ApplyRedactions draws each redaction: an opaque border stroke when it has a
// border width, then a fill at its opacity when that is positive. It returns how
// many were drawn.
func (a *Annotator) ApplyRedactions(doc pdfengine.Document, byDoc models.PageAnnotations[models.Redaction], ranges map[string]models.PageRange, coverOffset int) int {
	drawn := 0
	each(a, doc, byDoc, ranges, coverOffset, func(r models.Redaction, pageH float64) {
		box := mapBox(r.X, r.Y, r.Width, r.Height, pageH)
		if r.BorderWidth > 0 {
			doc.SetAlpha(1)
			doc.SetDrawColor(utils.ParseColor(r.BorderHex, utils.Black))
			doc.SetLineWidth(utils.PtToMM(r.BorderWidth))
			doc.Rect(box, pdfengine.StyleDraw)
		}
		if r.Opacity > 0 {
			doc.SetAlpha(min(r.Opacity, 1))
			doc.SetFillColor(utils.ParseColor(r.FillHex, utils.Black))
			doc.Rect(box, pdfengine.StyleFill)
		}
		doc.SetAlpha(1)
		drawn++
	})
	return drawn
}

// mapBox converts a top-left origin rectangle in points to a bottom-left origin
// rectangle in millimetres on a page of height pageH.
func mapBox(x, y, w, h, pageH float64) utils.Box {
	return utils.FlipY(utils.BoxPtToMM(utils.Box{X: x, Y: y, W: w, H: h}), pageH)
}

// GlobalPage maps a page of a placed document to its page in the output.
func GlobalPage(r models.PageRange, page, coverOffset int) int {
	return r.Start + page - 1 + coverOffset
}

// each visits annotations in document then page order, moving the cursor to the
// target page for each group. Annotations for unplaced documents or pages outside
// the document or output are skipped.
func each[T any](a *Annotator, doc pdfengine.Document, byDoc models.PageAnnotations[T], ranges map[string]models.PageRange, coverOffset int, draw func(v T, pageH float64)) {
	docIDs := make([]string, 0, len(byDoc))
	for id := range byDoc {
		docIDs = append(docIDs, id)
	}
	sort.Strings(docIDs)

	total := doc.PageCount()
	for _, id := range docIDs {
		r, ok := ranges[id]
		if !ok || r.Count == 0 {
			a.logger.Debug("annotations for unplaced document skipped", zap.String("document_id", id))
			continue
		}
		pages := byDoc[id]
		nums := make([]int, 0, len(pages))
		for p := range pages {
			nums = append(nums, p)
		}
		sort.Ints(nums)

		for _, p := range nums {
			global := GlobalPage(r, p, coverOffset)
			if p < 1 || p > r.Count || global < 1 || global > total {
				a.logger.Warn("annotation page out of range",
					zap.String("document_id", id), zap.Int("page", p), zap.Int("global_page", global))
				continue
			}
			OnPage(doc, global, func() {
				_, pageH := doc.PageSize()
				for _, v := range pages[p] {
					draw(v, pageH)
				}
			})
		}
	}
}
