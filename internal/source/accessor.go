// Package source opens stored PDFs for page import, repairing files the PDF
// engine cannot read and counting pages for the index.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pagebind/internal/fileid"
	"github.com/hyperjump/pagebind/internal/pdfengine"
	"github.com/hyperjump/pagebind/internal/storage"
	"github.com/hyperjump/pagebind/pkg/utils"
)

// ErrUnreadable is returned when no strategy produced an importable file.
var ErrUnreadable = errors.New("source pdf unreadable")

const defaultCacheSize = 1024

// Source is a local, importable copy of a stored PDF.
type Source struct {
	Key   string
	Path  string
	Pages int
	// Strategy names the repair that produced Path; empty when the original was used.
	Strategy string

	temps []string
}

// Close removes every temporary file created for the source.
func (s *Source) Close() error {
	var errs []error
	for _, p := range s.temps {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	s.temps = nil
	return errors.Join(errs...)
}

// Accessor resolves storage keys to importable local files.
type Accessor struct {
	blobs      storage.BlobStore
	probe      func(path string) (int, error)
	strategies []Strategy
	counters   []PageCounter
	tempDir    string
	cache      *countCache
	logger     *zap.Logger
}

// Option configures an Accessor.
type Option func(*Accessor)

// WithLogger sets the logger for fallback and failure events.
func WithLogger(l *zap.Logger) Option {
	return func(a *Accessor) { a.logger = l }
}

// WithProbe replaces the engine probe used to decide whether a file is importable.
func WithProbe(probe func(path string) (int, error)) Option {
	return func(a *Accessor) { a.probe = probe }
}

// WithStrategies replaces the repair chain.
func WithStrategies(s ...Strategy) Option {
	return func(a *Accessor) { a.strategies = s }
}

// WithPageCounters replaces the page-count fallbacks tried after the probe.
func WithPageCounters(c ...PageCounter) Option {
	return func(a *Accessor) { a.counters = c }
}

// WithTempDir sets where materialised and repaired files are written.
func WithTempDir(dir string) Option {
	return func(a *Accessor) { a.tempDir = dir }
}

// WithCacheSize bounds the page-count cache.
func WithCacheSize(n int) Option {
	return func(a *Accessor) { a.cache = newCountCache(n) }
}

// NewAccessor returns an Accessor over blobs using the gofpdi probe and the
// default chains for tools.
func NewAccessor(blobs storage.BlobStore, tools Tools, opts ...Option) *Accessor {
	a := &Accessor{
		blobs:      blobs,
		probe:      pdfengine.Probe,
		strategies: DefaultStrategies(tools),
		counters:   DefaultPageCounters(tools),
		tempDir:    os.TempDir(),
		cache:      newCountCache(defaultCacheSize),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = utils.OrNop(a.logger)
	return a
}

// Open returns an importable copy of the PDF stored at key. When the engine cannot
// read the original, each strategy is tried in order; the first whose output
// exists, is non-empty, and probes successfully wins. The caller must Close the
// returned Source.
func (a *Accessor) Open(ctx context.Context, key string) (*Source, error) {
	local, temps, err := a.materialise(ctx, key)
	if err != nil {
		return nil, err
	}
	src := &Source{Key: key, temps: temps}

	n, probeErr := a.probe(local)
	if probeErr == nil && n > 0 {
		src.Path = local
		src.Pages = n
		return src, nil
	}
	a.logger.Debug("source not importable, trying repairs", zap.String("key", key), zap.Error(probeErr))

	hash := key
	if data, err := os.ReadFile(local); err == nil {
		hash = fileid.ContentHash(data)
	}
	for _, s := range a.strategies {
		if err := ctx.Err(); err != nil {
			_ = src.Close()
			return nil, err
		}
		dst := filepath.Join(a.tempDir, fileid.TempName(s.Name(), hash, time.Now()))
		n, err := a.attempt(ctx, s, local, dst)
		if err != nil {
			_ = os.Remove(dst)
			a.logger.Debug("repair strategy failed", zap.String("key", key), zap.String("strategy", s.Name()), zap.Error(err))
			continue
		}
		src.temps = append(src.temps, dst)
		src.Path = dst
		src.Pages = n
		src.Strategy = s.Name()
		a.logger.Info("source repaired", zap.String("key", key), zap.String("strategy", s.Name()), zap.Int("pages", n))
		return src, nil
	}

	_ = src.Close()
	return nil, fmt.Errorf("%s: %w", key, ErrUnreadable)
}

func (a *Accessor) attempt(ctx context.Context, s Strategy, src, dst string) (int, error) {
	if err := s.Attempt(ctx, src, dst); err != nil {
		return 0, err
	}
	info, err := os.Stat(dst)
	if err != nil {
		return 0, fmt.Errorf("no output: %w", err)
	}
	if info.Size() == 0 {
		return 0, errors.New("empty output")
	}
	n, err := a.probe(dst)
	if err != nil {
		return 0, fmt.Errorf("output not importable: %w", err)
	}
	if n == 0 {
		return 0, errors.New("output has no pages")
	}
	return n, nil
}

// PageCount returns the number of pages in the PDF stored at key, or 0 when no
// method can read it. Positive results are cached until Invalidate or, for
// local stores, until the file changes size or modification time.
func (a *Accessor) PageCount(ctx context.Context, key string) int {
	stamp := a.stamp(key)
	if n, ok := a.cache.Get(key, stamp); ok {
		return n
	}
	local, temps, err := a.materialise(ctx, key)
	if err != nil {
		a.logger.Warn("page count: source unavailable", zap.String("key", key), zap.Error(err))
		return 0
	}
	defer removeAll(temps)

	n := a.count(ctx, key, local)
	a.cache.Set(key, n, stamp)
	return n
}

// stamp returns the version of the file behind key, or the zero stamp when the
// store keeps no local file.
func (a *Accessor) stamp(key string) fileStamp {
	lp, ok := a.blobs.(storage.LocalPather)
	if !ok {
		return fileStamp{}
	}
	p, ok := lp.LocalPath(key)
	if !ok {
		return fileStamp{}
	}
	info, err := os.Stat(p)
	if err != nil {
		return fileStamp{}
	}
	return stampOf(info)
}

func (a *Accessor) count(ctx context.Context, key, local string) int {
	if n, err := a.probe(local); err == nil && n > 0 {
		return n
	}
	for _, c := range a.counters {
		n, err := c.Count(ctx, local)
		if err == nil && n > 0 {
			a.logger.Info("page count from fallback", zap.String("key", key), zap.String("method", c.Name), zap.Int("pages", n))
			return n
		}
		a.logger.Debug("page count method failed", zap.String("key", key), zap.String("method", c.Name), zap.Error(err))
	}
	a.logger.Warn("page count: unreadable", zap.String("key", key))
	return 0
}

// Invalidate drops the cached page count for key.
func (a *Accessor) Invalidate(key string) {
	a.cache.Delete(key)
}

// materialise returns a local path for key, plus any temp files created to hold it.
func (a *Accessor) materialise(ctx context.Context, key string) (string, []string, error) {
	if lp, ok := a.blobs.(storage.LocalPather); ok {
		if p, ok := lp.LocalPath(key); ok {
			if _, err := os.Stat(p); err == nil {
				return p, nil, nil
			}
		}
	}
	data, err := a.blobs.Read(ctx, key)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", key, err)
	}
	p := filepath.Join(a.tempDir, fileid.TempName("source", fileid.ContentHash(data), time.Now()))
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("materialise %s: %w", key, err)
	}
	return p, []string{p}, nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
