// Package toc lays out a bundle's index. Generation runs three phases: Measure
// counts the index pages, BuildEntries numbers sections and assigns page ranges
// after those pages, and Render draws the final index while recording the anchor
// of every linkable row.
package toc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/pagebind/internal/doctree"
	"github.com/hyperjump/pagebind/internal/models"
	"github.com/hyperjump/pagebind/internal/pdfengine"
	"github.com/hyperjump/pagebind/pkg/utils"
)

// ErrNoIndex is returned when the tree contains no file to index.
var ErrNoIndex = errors.New("no documents to index")

// PageCounter reports the page count of a stored document; 0 when unreadable.
type PageCounter interface {
	PageCount(ctx context.Context, storageKey string) int
}

// MeasurementResult is the outcome of the measuring pass.
type MeasurementResult struct {
	Pages int
	Rows  int
}

// RenderResult is the drawn index.
type RenderResult struct {
	PDF     []byte
	Pages   int
	Anchors []models.LinkAnchor
}

// Result is a generated index.
type Result struct {
	Entries []models.IndexEntry
	RenderResult
}

// Engine generates bundle indexes.
type Engine struct {
	layout  Layout
	counter PageCounter
	newDoc  pdfengine.Factory
	logger  *zap.Logger
}

// NewEngine returns an Engine drawing with newDoc and counting pages with counter.
// Zero layout fields take their defaults.
func NewEngine(layout Layout, counter PageCounter, newDoc pdfengine.Factory, logger *zap.Logger) *Engine {
	return &Engine{
		layout:  layout.withDefaults(),
		counter: counter,
		newDoc:  newDoc,
		logger:  utils.OrNop(logger),
	}
}

// Layout returns the effective layout.
func (e *Engine) Layout() Layout {
	return e.layout
}

// Generate measures, numbers, and renders the index for nodes.
func (e *Engine) Generate(ctx context.Context, nodes []*models.DocumentNode) (*Result, error) {
	if doctree.CountFiles(nodes) == 0 {
		return nil, ErrNoIndex
	}
	m, err := e.Measure(nodes)
	if err != nil {
		return nil, err
	}
	entries := e.BuildEntries(ctx, nodes, m.Pages)
	r, err := e.Render(entries)
	if err != nil {
		return nil, err
	}
	if r.Pages != m.Pages {
		return nil, fmt.Errorf("index measured %d pages but rendered %d", m.Pages, r.Pages)
	}
	e.logger.Debug("index generated", zap.Int("entries", len(entries)), zap.Int("pages", r.Pages))
	return &Result{Entries: entries, RenderResult: *r}, nil
}

// Measure draws every node's name and hierarchy with the final layout and
// counts the resulting pages.
func (e *Engine) Measure(nodes []*models.DocumentNode) (*MeasurementResult, error) {
	var rows []row
	doctree.Walk(nodes, func(n *models.DocumentNode, depth int) bool {
		rows = append(rows, row{entry: len(rows), level: depth, kind: n.Kind, name: e.truncate(n.Name, depth)})
		return true
	})
	doc := e.newDoc()
	if _, err := e.draw(doc, rows); err != nil {
		return nil, err
	}
	return &MeasurementResult{Pages: doc.PageCount(), Rows: len(rows)}, nil
}

// BuildEntries numbers sections and assigns each file the pages following
// offset, in tree order. A folder targets the first page of its first file
// beneath it that has pages, or nothing.
func (e *Engine) BuildEntries(ctx context.Context, nodes []*models.DocumentNode, offset int) []models.IndexEntry {
	var entries []models.IndexEntry
	e.buildLevel(ctx, nodes, 0, "", offset+1, &entries)
	return entries
}

// buildLevel appends the entries for one level and returns the next free page
// and the first target page found beneath it.
func (e *Engine) buildLevel(ctx context.Context, nodes []*models.DocumentNode, level int, prefix string, next int, entries *[]models.IndexEntry) (int, *int) {
	var first *int
	for i, n := range nodes {
		section := strconv.Itoa(i + 1)
		if prefix != "" {
			section = prefix + "." + section
		}
		entry := models.IndexEntry{
			Kind:       n.Kind,
			Name:       e.truncate(n.Name, level),
			Level:      level,
			Section:    section,
			DocumentID: n.ID,
		}
		var target *int
		if n.IsFile() {
			pages := 0
			if n.StoragePath != "" {
				pages = e.counter.PageCount(ctx, n.StoragePath)
			}
			if pages > 0 {
				start := next
				target = &start
				entry.TargetPage = target
				entry.PageRange = FormatRange(start, start+pages-1)
				next += pages
			} else {
				e.logger.Warn("index entry has no pages", zap.String("document_id", n.ID), zap.String("name", n.Name))
			}
			*entries = append(*entries, entry)
		} else {
			idx := len(*entries)
			*entries = append(*entries, entry)
			next, target = e.buildLevel(ctx, n.Children, level+1, section, next, entries)
			(*entries)[idx].TargetPage = target
		}
		if first == nil {
			first = target
		}
	}
	return next, first
}

// Render draws entries and records the anchor of every row with a target.
func (e *Engine) Render(entries []models.IndexEntry) (*RenderResult, error) {
	rows := make([]row, len(entries))
	for i, en := range entries {
		rows[i] = row{
			entry:   i,
			level:   en.Level,
			kind:    en.Kind,
			section: en.Section,
			name:    en.Name,
			pages:   en.PageRange,
			target:  en.TargetPage,
		}
	}
	doc := e.newDoc()
	anchors, err := e.draw(doc, rows)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	return &RenderResult{PDF: buf.Bytes(), Pages: doc.PageCount(), Anchors: anchors}, nil
}

// LinkBox is the clickable area of an anchor: the row from its indent to the
// right margin.
func (e *Engine) LinkBox(a models.LinkAnchor) utils.Box {
	l := e.layout
	return utils.Box{X: a.Indent, Y: a.Y, W: l.PageWidth - l.MarginRight - a.Indent, H: a.RowHeight}
}

func (e *Engine) truncate(name string, level int) string {
	return utils.Truncate(name, e.layout.budget(level))
}

// FormatRange renders a page range as "5" or "5-7".
func FormatRange(start, end int) string {
	if end <= start {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

// Fingerprint returns a stable hash of entries.
func Fingerprint(entries []models.IndexEntry) string {
	data, _ := json.Marshal(entries)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
