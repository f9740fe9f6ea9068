package source

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Strategy rewrites an unreadable PDF at src into a new file at dst.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, src, dst string) error
}

// Tools locates the external programs used for repair and page counting.
// An empty path disables the corresponding step.
type Tools struct {
	Ghostscript string
	QPDF        string
	PDFInfo     string
	Timeout     time.Duration
}

// DefaultStrategies returns the repair chain in order: Ghostscript, QPDF, pdfcpu.
func DefaultStrategies(t Tools) []Strategy {
	var out []Strategy
	if t.Ghostscript != "" {
		out = append(out, &GhostscriptStrategy{Binary: t.Ghostscript, Timeout: t.Timeout})
	}
	if t.QPDF != "" {
		out = append(out, &QPDFStrategy{Binary: t.QPDF, Timeout: t.Timeout})
	}
	return append(out, PdfcpuStrategy{})
}

// GhostscriptStrategy re-distills the file as PDF 1.4 with fonts embedded and page
// streams left uncompressed.
type GhostscriptStrategy struct {
	Binary  string
	Timeout time.Duration
}

func (s *GhostscriptStrategy) Name() string { return "ghostscript" }

func (s *GhostscriptStrategy) Attempt(ctx context.Context, src, dst string) error {
	return runTool(ctx, s.Timeout, s.Binary,
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/prepress",
		"-dEmbedAllFonts=true",
		"-dSubsetFonts=false",
		"-dCompressPages=false",
		"-dNOPAUSE", "-dQUIET", "-dBATCH",
		"-sOutputFile="+dst,
		src,
	)
}

// QPDFStrategy rewrites the file structure without object streams or stream compression.
type QPDFStrategy struct {
	Binary  string
	Timeout time.Duration
}

func (s *QPDFStrategy) Name() string { return "qpdf" }

// qpdf exits 3 when it wrote the output but reported warnings.
const qpdfWarningExit = 3

func (s *QPDFStrategy) Attempt(ctx context.Context, src, dst string) error {
	err := runTool(ctx, s.Timeout, s.Binary,
		"--object-streams=disable",
		"--stream-data=uncompress",
		"--force-version=1.4",
		src, dst,
	)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == qpdfWarningExit {
		return nil
	}
	return err
}

// PdfcpuStrategy rewrites the file in-process with pdfcpu, writing classic
// cross-reference tables.
type PdfcpuStrategy struct{}

func (PdfcpuStrategy) Name() string { return "pdfcpu" }

func (PdfcpuStrategy) Attempt(ctx context.Context, src, dst string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu optimize: %v", r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return api.OptimizeFile(src, dst, conf)
}

func runTool(ctx context.Context, timeout time.Duration, binary string, args ...string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", binary, err, msg)
		}
		return fmt.Errorf("%s: %w", binary, err)
	}
	return nil
}
