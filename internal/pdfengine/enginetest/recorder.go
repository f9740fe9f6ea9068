// Package enginetest provides an in-memory pdfengine.Document for tests.
//
// Recorder "PDFs" are JSON page descriptors rather than real PDF files: Output
// writes one, WriteFixture creates one on disk, and ImportPage reads them back.
package enginetest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hyperjump/pagebind/internal/pdfengine"
	"github.com/hyperjump/pagebind/pkg/utils"
)

// Page is the size of one descriptor page in millimetres.
type Page struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// A4 is a portrait A4 page.
var A4 = Page{W: 210, H: 297}

type descriptor struct {
	Pages []Page `json:"pages"`
}

// WriteFixture writes a descriptor with the given pages to path.
func WriteFixture(path string, pages ...Page) error {
	data, err := json.Marshal(descriptor{Pages: pages})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFixture returns the pages of the descriptor at path.
func ReadFixture(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("not a fixture: %w", err)
	}
	return d.Pages, nil
}

// Probe mirrors pdfengine.Probe for fixtures: the page count, or an error for
// anything that is not a non-empty descriptor.
func Probe(path string) (int, error) {
	pages, err := ReadFixture(path)
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, fmt.Errorf("probe %s: no pages", path)
	}
	return len(pages), nil
}

// Op is one recorded drawing call.
type Op struct {
	Name   string
	Page   int
	Box    utils.Box
	Style  string
	Text   string
	Color  utils.RGB
	Value  float64
	Link   int
	Source string
}

// Recorder records every call and tracks pages, cursor, and links.
type Recorder struct {
	Pages []Page
	Ops   []Op
	// LinkTargets maps link IDs to target pages (0 when unset).
	LinkTargets map[int]int

	cur       int
	nextTpl   int
	templates map[int]string
	fontSize  float64
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{LinkTargets: map[int]int{}, templates: map[int]string{}}
}

// Factory returns a pdfengine.Factory producing Recorders, and exposes every
// Recorder it creates through the returned slice pointer. The factory may be
// called concurrently; read the slice only once those calls are done.
func Factory() (pdfengine.Factory, *[]*Recorder) {
	var (
		mu   sync.Mutex
		made []*Recorder
	)
	return func() pdfengine.Document {
		r := New()
		mu.Lock()
		made = append(made, r)
		mu.Unlock()
		return r
	}, &made
}

func (r *Recorder) record(op Op) {
	op.Page = r.cur
	r.Ops = append(r.Ops, op)
}

// OpsNamed returns the recorded ops with the given name.
func (r *Recorder) OpsNamed(name string) []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Name == name {
			out = append(out, op)
		}
	}
	return out
}

func (r *Recorder) ImportPage(path string, page int) (pdfengine.Template, error) {
	pages, err := ReadFixture(path)
	if err != nil {
		return pdfengine.Template{}, err
	}
	if page < 1 || page > len(pages) {
		return pdfengine.Template{}, fmt.Errorf("page %d out of range", page)
	}
	r.nextTpl++
	r.templates[r.nextTpl] = fmt.Sprintf("%s#%d", path, page)
	p := pages[page-1]
	return pdfengine.Template{
		ID:          r.nextTpl,
		Width:       p.W,
		Height:      p.H,
		Orientation: pdfengine.OrientationOf(p.W, p.H),
	}, nil
}

func (r *Recorder) AddPage(_ pdfengine.Orientation, width, height float64) {
	r.Pages = append(r.Pages, Page{W: width, H: height})
	r.cur = len(r.Pages)
	r.record(Op{Name: "AddPage"})
}

func (r *Recorder) UseTemplate(t pdfengine.Template) {
	r.record(Op{Name: "UseTemplate", Source: r.templates[t.ID]})
}

func (r *Recorder) SetFont(_, _ string, size float64) {
	r.fontSize = size
	r.record(Op{Name: "SetFont", Value: size})
}

func (r *Recorder) SetTextColor(c utils.RGB) { r.record(Op{Name: "SetTextColor", Color: c}) }
func (r *Recorder) SetFillColor(c utils.RGB) { r.record(Op{Name: "SetFillColor", Color: c}) }
func (r *Recorder) SetDrawColor(c utils.RGB) { r.record(Op{Name: "SetDrawColor", Color: c}) }
func (r *Recorder) SetAlpha(a float64)       { r.record(Op{Name: "SetAlpha", Value: a}) }
func (r *Recorder) SetLineWidth(w float64)   { r.record(Op{Name: "SetLineWidth", Value: w}) }

func (r *Recorder) Rect(b utils.Box, style string) {
	r.record(Op{Name: "Rect", Box: b, Style: style})
}

func (r *Recorder) TextCell(b utils.Box, text string, _ pdfengine.Align) {
	r.record(Op{Name: "TextCell", Box: b, Text: text})
}

// StringWidth approximates Helvetica at half an em per character.
func (r *Recorder) StringWidth(s string) float64 {
	return float64(len([]rune(s))) * r.fontSize * 0.5 * utils.MMPerInch / utils.PointsPerInch
}

func (r *Recorder) PageSize() (float64, float64) {
	if r.cur < 1 || r.cur > len(r.Pages) {
		return A4.W, A4.H
	}
	p := r.Pages[r.cur-1]
	return p.W, p.H
}

func (r *Recorder) SetPage(n int) {
	if n > 0 && n <= len(r.Pages) {
		r.cur = n
	}
}

func (r *Recorder) PageNo() int    { return r.cur }
func (r *Recorder) PageCount() int { return len(r.Pages) }

func (r *Recorder) AddLink() int {
	id := len(r.LinkTargets) + 1
	r.LinkTargets[id] = 0
	return id
}

func (r *Recorder) SetLink(link, page int) { r.LinkTargets[link] = page }

func (r *Recorder) Link(b utils.Box, link int) {
	r.record(Op{Name: "Link", Box: b, Link: link})
}

// Output writes a descriptor of the current pages.
func (r *Recorder) Output(w io.Writer) error {
	return json.NewEncoder(w).Encode(descriptor{Pages: r.Pages})
}
