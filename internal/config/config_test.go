package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" || cfg.Storage.BlobRoot == "" {
		t.Error("storage paths should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	cfg, err := Load(writeConfig(t, "debug: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/pagebind.db"
  blob_root: "./data/blobs"
tools:
  temp_dir: "./tmp"
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "db", "pagebind.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "blobs"); cfg.Storage.BlobRoot != want {
		t.Errorf("BlobRoot = %q, want %q", cfg.Storage.BlobRoot, want)
	}
	if want := filepath.Join(dir, "tmp"); cfg.Tools.TempDir != want {
		t.Errorf("TempDir = %q, want %q", cfg.Tools.TempDir, want)
	}
}

func TestLoad_toolsAndLayout(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
tools:
  ghostscript: /opt/gs/bin/gs
  qpdf: none
  timeout_seconds: 5
layout:
  title: ""
  row_height: 8
  name_budget: [40, 30]
watch:
  enabled: false
`))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Tools.Path(cfg.Tools.Ghostscript); got != "/opt/gs/bin/gs" {
		t.Errorf("ghostscript = %q", got)
	}
	if got := cfg.Tools.Path(cfg.Tools.QPDF); got != "" {
		t.Errorf("qpdf should be disabled, got %q", got)
	}
	if cfg.Tools.PDFInfo != "pdfinfo" {
		t.Errorf("pdfinfo default = %q", cfg.Tools.PDFInfo)
	}
	if cfg.Tools.Timeout() != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Tools.Timeout())
	}
	if cfg.Layout.Title == nil || *cfg.Layout.Title != "" {
		t.Error("explicit empty title should be kept")
	}
	if cfg.Layout.RowHeight != 8 || len(cfg.Layout.NameBudget) != 2 {
		t.Errorf("layout = %+v", cfg.Layout)
	}
	if cfg.Watch.EnabledOrDefault() {
		t.Error("watch should be disabled")
	}
	if !cfg.Watch.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Server.Port != 8080 || cfg.Export.MaxConcurrent != 4 || cfg.Cache.PageCountSize != 1024 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Tools.TimeoutSeconds != 120 {
		t.Errorf("timeout default = %d", cfg.Tools.TimeoutSeconds)
	}
	if !cfg.Watch.EnabledOrDefault() {
		t.Error("watch should default to enabled")
	}
}
