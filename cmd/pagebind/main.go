// Package main is the pagebind CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pagebind/internal/assembler"
	"github.com/hyperjump/pagebind/internal/cli"
	"github.com/hyperjump/pagebind/internal/config"
	"github.com/hyperjump/pagebind/internal/export"
	"github.com/hyperjump/pagebind/internal/models"
	"github.com/hyperjump/pagebind/internal/pdfengine"
	"github.com/hyperjump/pagebind/internal/server"
	"github.com/hyperjump/pagebind/internal/source"
	"github.com/hyperjump/pagebind/internal/storage"
	"github.com/hyperjump/pagebind/internal/toc"
	"github.com/hyperjump/pagebind/internal/watcher"
	"github.com/hyperjump/pagebind/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/pagebind/config.yaml"

// loadConfig loads config from path. When path is the default and a config.yaml
// exists in the current directory, that file is used instead so running from a
// project checkout picks up the project's config. A missing default config falls
// back to built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "load":
		runLoad()
	case "export":
		runExport()
	case "index":
		runIndex()
	case "render":
		runRender()
	case "version", "--version", "-v":
		fmt.Printf("pagebind version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, creates the logger, and wires every component.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode),
	)
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (repairs, cache invalidation, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.EnabledOrDefault() {
		svc := components.Service
		w := watcher.NewWatcher(
			components.Blobs.Root(),
			cfg.Watch.RecursiveOrDefault(),
			func(key string) {
				if err := svc.InvalidateSource(context.Background(), key); err != nil {
					logger.Warn("source invalidation failed", zap.String("key", key), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
			watcher.WithIgnorePrefixes("cache/", "exports/"),
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Service, components.Storage, components.Blobs, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runLoad() {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: pagebind load [flags] <manifest.yaml>")
		os.Exit(1)
	}
	manifestPath, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		fmt.Printf("Invalid path: %v\n", err)
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	m, err := export.LoadManifest(manifestPath)
	if err != nil {
		fmt.Printf("Failed to load manifest: %v\n", err)
		os.Exit(1)
	}
	b, err := components.Service.Import(context.Background(), m, filepath.Dir(manifestPath))
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Bundle loaded: %s (%s)\n", b.ID, b.Name)
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	format := fs.String("format", "text", "output format: text or json")
	out := fs.String("o", "", "also copy the exported PDF to this path")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: pagebind export [flags] <bundle-id>")
		os.Exit(1)
	}
	f := mustFormat(*format)

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	rec, err := components.Service.Export(ctx, fs.Arg(0))
	if err != nil {
		fmt.Printf("Export failed: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		if err := copyBlob(ctx, components.Blobs, rec.Path, *out); err != nil {
			fmt.Printf("Copy failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteExport(os.Stdout, rec, f); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	format := fs.String("format", "text", "output format: text, json, or xlsx")
	out := fs.String("o", "", "write output to this file instead of stdout")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: pagebind index [flags] <bundle-id>")
		os.Exit(1)
	}
	f := mustFormat(*format)
	if f == cli.OutputXLSX && *out == "" {
		fmt.Println("xlsx output requires -o <file>")
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	entries, err := components.Service.Index(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Printf("Index failed: %v\n", err)
		os.Exit(1)
	}
	var w io.Writer = os.Stdout
	if *out != "" {
		file, err := os.Create(*out)
		if err != nil {
			fmt.Printf("Failed to create %s: %v\n", *out, err)
			os.Exit(1)
		}
		defer file.Close()
		w = file
	}
	if err := cli.WriteIndex(w, entries, f); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runRender() {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	headerLeft := fs.String("header-left", "", "header text, top left")
	headerRight := fs.String("header-right", "", "header text, top right")
	footer := fs.String("footer", "", "footer text, bottom centre")
	pageNumbers := fs.Bool("page-numbers", false, `stamp "Page N of M"`)
	out := fs.String("o", "", "copy the rendered PDF to this path")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: pagebind render [flags] <document-id>")
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	hf := models.HeaderFooter{
		HeaderLeft:  *headerLeft,
		HeaderRight: *headerRight,
		Footer:      *footer,
		PageNumbers: *pageNumbers,
	}
	key, err := components.Service.RenderDocument(ctx, fs.Arg(0), hf)
	if err != nil {
		fmt.Printf("Render failed: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		if err := copyBlob(ctx, components.Blobs, key, *out); err != nil {
			fmt.Printf("Copy failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Rendered: %s\n", *out)
		return
	}
	fmt.Printf("Rendered: %s\n", key)
}

func mustFormat(s string) cli.OutputFormat {
	f, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return f
}

func copyBlob(ctx context.Context, blobs storage.BlobStore, key, dst string) error {
	data, err := blobs.Read(ctx, key)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Blobs     *storage.DiskBlobStore
	Sources   *source.Accessor
	Index     *toc.Engine
	Assembler *assembler.Assembler
	Service   *export.Service
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	blobs, err := storage.NewDiskBlobStore(cfg.Storage.BlobRoot)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	tempDir := cfg.Tools.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	sources := source.NewAccessor(blobs, toolsFrom(cfg.Tools),
		source.WithLogger(logger),
		source.WithTempDir(tempDir),
		source.WithCacheSize(cfg.Cache.PageCountSize))
	index := toc.NewEngine(indexLayout(cfg.Layout), sources, pdfengine.NewDocument, logger)
	asm := assembler.New(pdfengine.NewDocument, sources, index,
		assembler.WithLogger(logger),
		assembler.WithTempDir(tempDir))
	svc := export.NewService(store, blobs, asm, index, sources, logger)

	return &Components{
		Storage:   store,
		Blobs:     blobs,
		Sources:   sources,
		Index:     index,
		Assembler: asm,
		Service:   svc,
	}, nil
}

// toolsFrom maps tool config onto the source chains; "none" disables a tool.
func toolsFrom(t config.ToolsConfig) source.Tools {
	return source.Tools{
		Ghostscript: t.Path(t.Ghostscript),
		QPDF:        t.Path(t.QPDF),
		PDFInfo:     t.Path(t.PDFInfo),
		Timeout:     t.Timeout(),
	}
}

// indexLayout applies config overrides to the built-in index layout.
func indexLayout(c config.LayoutConfig) toc.Layout {
	l := toc.DefaultLayout()
	if c.Title != nil {
		l.Title = *c.Title
	}
	if c.FontFamily != "" {
		l.FontFamily = c.FontFamily
	}
	override := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	override(&l.FontSize, c.FontSize)
	override(&l.RowHeight, c.RowHeight)
	override(&l.Indent, c.Indent)
	override(&l.MarginTop, c.MarginTop)
	override(&l.MarginBottom, c.MarginBottom)
	override(&l.MarginLeft, c.MarginLeft)
	override(&l.MarginRight, c.MarginRight)
	if len(c.NameBudget) > 0 {
		l.NameBudget = append([]int(nil), c.NameBudget...)
	}
	return l
}

func printUsage() {
	fmt.Println(`pagebind - Court bundle assembly with a hyperlinked index

Usage:
  pagebind server [flags]                Start the HTTP server
  pagebind load [flags] <manifest>       Load a bundle from a YAML manifest
  pagebind export [flags] <bundle-id>    Assemble and store a bundle PDF
  pagebind index [flags] <bundle-id>     Preview a bundle's index
  pagebind render [flags] <document-id>  Render one document with header and footer
  pagebind version                       Show version
  pagebind help                          Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/pagebind/config.yaml)

Server Flags:
  --debug            Enable debug logging

Export Flags:
  --format string    Output format: text or json (default: text)
  --o string         Also copy the PDF to this path

Index Flags:
  --format string    Output format: text, json, or xlsx (default: text)
  --o string         Write to this file (required for xlsx)

Render Flags:
  --header-left, --header-right, --footer string   Stamp text
  --page-numbers                                   Stamp "Page N of M"
  --o string                                       Copy the PDF to this path

Examples:
  pagebind load ./bundles/smith-v-jones.yaml
  pagebind index 3f1c...
  pagebind index --format xlsx -o index.xlsx 3f1c...
  pagebind export -o bundle.pdf 3f1c...
  pagebind render --footer "Draft" --page-numbers 9a2b...`)
}
