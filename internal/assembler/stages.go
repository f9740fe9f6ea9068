package assembler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pagebind/internal/doctree"
	"github.com/hyperjump/pagebind/internal/fileid"
	"github.com/hyperjump/pagebind/internal/models"
	"github.com/hyperjump/pagebind/internal/overlay"
	"github.com/hyperjump/pagebind/internal/toc"
)

func (a *Assembler) initStage(_ context.Context, s *assembly) error {
	s.doc = a.newDoc()
	if s.doc == nil {
		return errors.New("no document")
	}
	s.nodes = doctree.Build(s.in.Documents, nil)
	s.ranges = make(map[string]models.PageRange)
	return nil
}

func (a *Assembler) frontCoverStage(ctx context.Context, s *assembly) error {
	b := s.in.Bundle
	if !b.IncludeFrontCover {
		return nil
	}
	n, err := a.appendCover(ctx, s, "front_cover", b.FrontCoverTemplate, b.CoverFields)
	s.result.CoverPages = n
	return err
}

func (a *Assembler) indexStage(ctx context.Context, s *assembly) error {
	if !s.in.Bundle.IncludeIndex || a.index == nil {
		return nil
	}
	res, err := a.index.Generate(ctx, s.nodes)
	if errors.Is(err, toc.ErrNoIndex) {
		a.logger.Info("index skipped: no documents", zap.String("bundle_id", s.in.Bundle.ID))
		return nil
	}
	if err != nil {
		return err
	}
	s.result.Entries = res.Entries

	path, err := s.stageFile(a.tempDir, "index", res.PDF)
	if err != nil {
		return err
	}
	n, err := a.importAll(s, path, res.Pages)
	s.result.IndexPages = n
	if err != nil {
		return err
	}
	s.index = res
	return nil
}

func (a *Assembler) documentsStage(ctx context.Context, s *assembly) error {
	before := s.doc.PageCount()
	consumed, ranges := a.place(ctx, s, s.nodes, s.result.IndexPages+1)
	s.result.Ranges = ranges
	for _, r := range ranges {
		s.ranges[r.DocumentID] = r
	}
	for _, d := range rangeSkew(s.result.Entries, s.ranges) {
		a.logger.Warn("index disagrees with placed pages",
			zap.String("document_id", d.documentID),
			zap.String("printed", d.printed),
			zap.String("placed", d.placed))
	}

	// Every stamp shares one total, fixed once all pages are placed.
	total := before + consumed
	s.result.TotalPages = total
	hf := s.in.Bundle.HeaderFooter
	if hf.IsZero() {
		return nil
	}
	for p := before + 1; p <= total; p++ {
		overlay.OnPage(s.doc, p, func() {
			a.stamp.Apply(s.doc, p, total, hf)
		})
	}
	return nil
}

type skew struct {
	documentID string
	printed    string
	placed     string
}

// rangeSkew lists files whose printed index range differs from the pages they
// actually occupy. Both use content numbering, so any difference shifts every
// later range and link.
func rangeSkew(entries []models.IndexEntry, placed map[string]models.PageRange) []skew {
	var out []skew
	for _, e := range entries {
		if e.Kind != models.KindFile {
			continue
		}
		got := ""
		if r, ok := placed[e.DocumentID]; ok {
			got = toc.FormatRange(r.Start, r.End)
		}
		if got != e.PageRange {
			out = append(out, skew{documentID: e.DocumentID, printed: e.PageRange, placed: got})
		}
	}
	return out
}

// place imports the files beneath nodes depth-first, the first at content page
// next. It returns the number of pages added and the range of each file that
// contributed pages.
func (a *Assembler) place(ctx context.Context, s *assembly, nodes []*models.DocumentNode, next int) (int, []models.PageRange) {
	consumed := 0
	var ranges []models.PageRange
	for _, n := range nodes {
		if !n.IsFile() {
			c, rs := a.place(ctx, s, n.Children, next+consumed)
			consumed += c
			ranges = append(ranges, rs...)
			continue
		}
		added := a.placeFile(ctx, s, n)
		if added == 0 {
			continue
		}
		start := next + consumed
		ranges = append(ranges, models.PageRange{
			DocumentID: n.ID,
			Start:      start,
			End:        start + added - 1,
			Count:      added,
		})
		consumed += added
	}
	return consumed, ranges
}

// placeFile appends every importable page of one file and returns how many were
// added. Failures cost the file its remaining pages, never the assembly.
func (a *Assembler) placeFile(ctx context.Context, s *assembly, n *models.DocumentNode) int {
	log := a.logger.With(zap.String("document_id", n.ID), zap.String("name", n.Name))
	if n.StoragePath == "" {
		log.Warn("document has no stored file")
		return 0
	}
	if ctx.Err() != nil {
		return 0
	}
	src, err := a.opener.Open(ctx, n.StoragePath)
	if err != nil {
		log.Warn("document skipped", zap.Error(err))
		return 0
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("failed to clean up source", zap.Error(err))
		}
	}()

	added, err := a.importAll(s, src.Path, src.Pages)
	if err != nil {
		log.Warn("document import stopped early", zap.Int("imported", added), zap.Int("pages", src.Pages), zap.Error(err))
	}
	return added
}

func (a *Assembler) linkStage(_ context.Context, s *assembly) error {
	if s.index == nil {
		return nil
	}
	offset := s.result.CoverPages
	total := s.doc.PageCount()
	linked := 0
	for _, anchor := range s.index.Anchors {
		from := anchor.SourcePage + offset
		to := anchor.TargetPage + offset
		if anchor.SourcePage > s.result.IndexPages || to < 1 || to > total {
			a.logger.Debug("index link dropped", zap.Int("entry", anchor.EntryIndex), zap.Int("target", to))
			continue
		}
		link := s.doc.AddLink()
		s.doc.SetLink(link, to)
		box := a.index.LinkBox(anchor)
		overlay.OnPage(s.doc, from, func() {
			s.doc.Link(box, link)
		})
		linked++
	}
	a.logger.Debug("index links rebuilt", zap.Int("links", linked))
	return nil
}

func (a *Assembler) highlightStage(_ context.Context, s *assembly) error {
	if len(s.in.Highlights) == 0 {
		return nil
	}
	n := a.annotator.ApplyHighlights(s.doc, models.GroupHighlights(s.in.Highlights), s.ranges, s.result.CoverPages)
	a.logger.Debug("highlights applied", zap.Int("count", n))
	return nil
}

func (a *Assembler) redactionStage(_ context.Context, s *assembly) error {
	if len(s.in.Redactions) == 0 {
		return nil
	}
	n := a.annotator.ApplyRedactions(s.doc, models.GroupRedactions(s.in.Redactions), s.ranges, s.result.CoverPages)
	a.logger.Debug("redactions applied", zap.Int("count", n))
	return nil
}

func (a *Assembler) backCoverStage(ctx context.Context, s *assembly) error {
	b := s.in.Bundle
	if !b.IncludeBackCover {
		return nil
	}
	_, err := a.appendCover(ctx, s, "back_cover", b.BackCoverTemplate, b.CoverFields)
	return err
}

func (a *Assembler) finalizeStage(_ context.Context, s *assembly) error {
	if s.doc.PageCount() == 0 {
		return ErrNoPages
	}
	var buf bytes.Buffer
	if err := s.doc.Output(&buf); err != nil {
		return err
	}
	s.result.PDF = buf.Bytes()
	s.result.Pages = s.doc.PageCount()
	return nil
}

// appendCover renders a cover and appends its pages, returning how many were added.
func (a *Assembler) appendCover(ctx context.Context, s *assembly, name, tmpl string, fields map[string]string) (int, error) {
	data, err := a.covers.Render(ctx, tmpl, fields)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	path, err := s.stageFile(a.tempDir, name, data)
	if err != nil {
		return 0, err
	}
	pages, err := a.probe(path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return a.importAll(s, path, pages)
}

// importAll appends pages 1..pages of path, stopping at the first failure.
func (a *Assembler) importAll(s *assembly, path string, pages int) (int, error) {
	for i := 1; i <= pages; i++ {
		tpl, err := s.doc.ImportPage(path, i)
		if err != nil {
			return i - 1, err
		}
		s.doc.AddPage(tpl.Orientation, tpl.Width, tpl.Height)
		s.doc.UseTemplate(tpl)
	}
	return pages, nil
}

// stageFile writes generated PDF bytes to a temp file removed when the assembly ends.
func (s *assembly) stageFile(dir, prefix string, data []byte) (string, error) {
	path := filepath.Join(dir, fileid.TempName(prefix, fileid.ContentHash(data), time.Now()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("stage %s: %w", prefix, err)
	}
	s.temps = append(s.temps, path)
	return path, nil
}
