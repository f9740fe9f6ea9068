// Package cover renders bundle cover pages.
package cover

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/hyperjump/pagebind/internal/pdfengine"
	"github.com/hyperjump/pagebind/pkg/utils"
)

// Renderer produces a cover PDF from a template and field values. An empty
// template yields no bytes and no error.
type Renderer interface {
	Render(ctx context.Context, tmpl string, fields map[string]string) ([]byte, error)
}

// TextRenderer fills a text/template with the fields and draws the result as
// centred lines on one A4 page. The first non-blank line is the title.
type TextRenderer struct {
	newDoc pdfengine.Factory
}

// NewTextRenderer returns a TextRenderer drawing with newDoc; nil uses gofpdf.
func NewTextRenderer(newDoc pdfengine.Factory) *TextRenderer {
	if newDoc == nil {
		newDoc = pdfengine.NewDocument
	}
	return &TextRenderer{newDoc: newDoc}
}

const (
	pageW       = 210.0
	pageH       = 297.0
	margin      = 25.0
	topOffset   = 80.0
	titleSize   = 22.0
	titleHeight = 14.0
	bodySize    = 12.0
	lineHeight  = 8.0
)

func (r *TextRenderer) Render(ctx context.Context, tmpl string, fields map[string]string) ([]byte, error) {
	if strings.TrimSpace(tmpl) == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := Fill(tmpl, fields)
	if err != nil {
		return nil, err
	}

	doc := r.newDoc()
	doc.AddPage(pdfengine.Portrait, pageW, pageH)
	doc.SetTextColor(utils.Black)
	top := pageH - topOffset
	titled := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			top -= lineHeight / 2
			continue
		}
		size, h, style := bodySize, lineHeight, ""
		if !titled {
			size, h, style = titleSize, titleHeight, "B"
			titled = true
		}
		if top-h < margin {
			break
		}
		doc.SetFont("Helvetica", style, size)
		doc.TextCell(utils.Box{X: margin, Y: top - h, W: pageW - 2*margin, H: h}, line, pdfengine.AlignCenter)
		top -= h
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render cover: %w", err)
	}
	return buf.Bytes(), nil
}

// Fill executes tmpl against fields. Missing fields render empty.
func Fill(tmpl string, fields map[string]string) (string, error) {
	t, err := template.New("cover").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse cover template: %w", err)
	}
	if fields == nil {
		fields = map[string]string{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, fields); err != nil {
		return "", fmt.Errorf("execute cover template: %w", err)
	}
	return buf.String(), nil
}
