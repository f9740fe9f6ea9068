package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCounter reports the page count of a local PDF.
type PageCounter struct {
	Name  string
	Count func(ctx context.Context, path string) (int, error)
}

// DefaultPageCounters returns the count chain after the engine probe: pdfcpu,
// ledongthuc/pdf, then pdfinfo when configured.
func DefaultPageCounters(t Tools) []PageCounter {
	out := []PageCounter{
		{Name: "pdfcpu", Count: pdfcpuCount},
		{Name: "pdfreader", Count: readerCount},
	}
	if t.PDFInfo != "" {
		out = append(out, PageCounter{Name: "pdfinfo", Count: func(ctx context.Context, path string) (int, error) {
			return pdfinfoCount(ctx, t, path)
		}})
	}
	return out
}

func pdfcpuCount(ctx context.Context, path string) (n int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdfcpu page count: %v", r)
		}
	}()
	return api.PageCountFile(path)
}

func readerCount(ctx context.Context, path string) (n int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdf reader: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

func pdfinfoCount(ctx context.Context, t Tools, path string) (int, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, t.PDFInfo, path).Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	return parsePDFInfoPages(out)
}

func parsePDFInfoPages(out []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Pages" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("pdfinfo pages %q: %w", value, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo: no page count")
}
