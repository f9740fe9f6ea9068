// Package assembler merges a bundle's documents into one paginated PDF with an
// optional index, covers, page stamps, links, and annotation overlays.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pagebind/internal/cover"
	"github.com/hyperjump/pagebind/internal/models"
	"github.com/hyperjump/pagebind/internal/overlay"
	"github.com/hyperjump/pagebind/internal/pdfengine"
	"github.com/hyperjump/pagebind/internal/source"
	"github.com/hyperjump/pagebind/internal/toc"
	"github.com/hyperjump/pagebind/pkg/utils"
)

// ErrNoPages is returned when nothing in the input produced a page.
var ErrNoPages = errors.New("bundle has no pages")

// Opener resolves a storage key to an importable local PDF.
type Opener interface {
	Open(ctx context.Context, key string) (*source.Source, error)
}

// Input is everything one assembly reads.
type Input struct {
	Bundle     models.Bundle
	Documents  []models.Document
	Highlights []models.Highlight
	Redactions []models.Redaction
}

// StageReport records how one stage went.
type StageReport struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Result is an assembled bundle.
type Result struct {
	PDF []byte
	// Pages is the page count of the output, back cover included.
	Pages int
	// TotalPages is the "of Y" in page stamps: covers, index, and documents,
	// without the back cover.
	TotalPages int
	CoverPages int
	IndexPages int
	Ranges     []models.PageRange
	Entries    []models.IndexEntry
	Stages     []StageReport
}

// Assembler builds bundles. It holds no per-assembly state and may be shared.
type Assembler struct {
	newDoc    pdfengine.Factory
	opener    Opener
	index     *toc.Engine
	covers    cover.Renderer
	annotator *overlay.Annotator
	stamp     overlay.Layout
	probe     func(path string) (int, error)
	tempDir   string
	logger    *zap.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// WithCoverRenderer sets the renderer for front and back covers.
func WithCoverRenderer(r cover.Renderer) Option {
	return func(a *Assembler) { a.covers = r }
}

// WithStampLayout sets the header/footer layout.
func WithStampLayout(l overlay.Layout) Option {
	return func(a *Assembler) { a.stamp = l }
}

// WithProbe sets how generated cover PDFs are counted before import.
func WithProbe(probe func(path string) (int, error)) Option {
	return func(a *Assembler) { a.probe = probe }
}

// WithTempDir sets where generated index and cover PDFs are staged.
func WithTempDir(dir string) Option {
	return func(a *Assembler) { a.tempDir = dir }
}

// New returns an Assembler drawing with newDoc, opening sources with opener,
// and generating indexes with index.
func New(newDoc pdfengine.Factory, opener Opener, index *toc.Engine, opts ...Option) *Assembler {
	a := &Assembler{
		newDoc:  newDoc,
		opener:  opener,
		index:   index,
		stamp:   overlay.DefaultLayout,
		probe:   pdfengine.Probe,
		tempDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = utils.OrNop(a.logger)
	if a.covers == nil {
		a.covers = cover.NewTextRenderer(newDoc)
	}
	a.annotator = overlay.NewAnnotator(a.logger)
	return a
}

type stage struct {
	name  string
	run   func(ctx context.Context, s *assembly) error
	fatal bool
}

func (a *Assembler) stages() []stage {
	return []stage{
		{name: "init", run: a.initStage, fatal: true},
		{name: "front_cover", run: a.frontCoverStage},
		{name: "index", run: a.indexStage},
		{name: "documents", run: a.documentsStage, fatal: true},
		{name: "links", run: a.linkStage},
		{name: "highlights", run: a.highlightStage},
		{name: "redactions", run: a.redactionStage},
		{name: "back_cover", run: a.backCoverStage},
		{name: "finalize", run: a.finalizeStage, fatal: true},
	}
}

// Assemble runs every stage in order. Failures in optional stages are logged
// and the stage is skipped; failures in init, documents, or finalize abort the
// assembly and nothing is returned.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Result, error) {
	s := &assembly{in: in, result: &Result{}}
	defer s.cleanup(a.logger)

	log := a.logger.With(zap.String("bundle_id", in.Bundle.ID))
	for _, st := range a.stages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		err := runStage(ctx, st, s)
		report := StageReport{Name: st.name, Duration: time.Since(start)}
		if err != nil {
			report.Err = err.Error()
		}
		s.result.Stages = append(s.result.Stages, report)

		if err == nil {
			log.Debug("stage complete", zap.String("stage", st.name), zap.Duration("duration", report.Duration))
			continue
		}
		if st.fatal {
			return nil, fmt.Errorf("assemble %s: %s: %w", in.Bundle.ID, st.name, err)
		}
		log.Warn("stage failed, skipped", zap.String("stage", st.name), zap.Error(err))
	}
	log.Info("bundle assembled",
		zap.Int("pages", s.result.Pages),
		zap.Int("documents", len(s.result.Ranges)),
		zap.Int("index_pages", s.result.IndexPages))
	return s.result, nil
}

// runStage converts engine panics into stage errors.
func runStage(ctx context.Context, st stage, s *assembly) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return st.run(ctx, s)
}

// assembly is the state of one Assemble call.
type assembly struct {
	in     Input
	result *Result
	doc    pdfengine.Document
	nodes  []*models.DocumentNode
	index  *toc.Result
	ranges map[string]models.PageRange
	temps  []string
}

func (s *assembly) cleanup(logger *zap.Logger) {
	for _, p := range s.temps {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove temp file", zap.String("path", p), zap.Error(err))
		}
	}
	s.temps = nil
}
