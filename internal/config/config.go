// Package config provides configuration loading and structs for the pagebind server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Tools   ToolsConfig   `yaml:"tools"`
	Layout  LayoutConfig  `yaml:"layout"`
	Export  ExportConfig  `yaml:"export"`
	Cache   CacheConfig   `yaml:"cache"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database path and the blob store root.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	BlobRoot     string `yaml:"blob_root"`
}

// Disabled turns off an external tool when used as its path.
const Disabled = "none"

// ToolsConfig locates external repair and inspection programs.
type ToolsConfig struct {
	Ghostscript    string `yaml:"ghostscript"`
	QPDF           string `yaml:"qpdf"`
	PDFInfo        string `yaml:"pdfinfo"`
	TempDir        string `yaml:"temp_dir"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Path returns the configured program path, or "" when the tool is disabled.
func (t ToolsConfig) Path(p string) string {
	if p == Disabled {
		return ""
	}
	return p
}

// Timeout returns the per-invocation limit for external tools.
func (t ToolsConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// LayoutConfig overrides the index layout. Zero values keep the built-in layout.
type LayoutConfig struct {
	Title        *string `yaml:"title"`
	FontFamily   string  `yaml:"font_family"`
	FontSize     float64 `yaml:"font_size"`
	RowHeight    float64 `yaml:"row_height"`
	Indent       float64 `yaml:"indent"`
	MarginTop    float64 `yaml:"margin_top"`
	MarginBottom float64 `yaml:"margin_bottom"`
	MarginLeft   float64 `yaml:"margin_left"`
	MarginRight  float64 `yaml:"margin_right"`
	NameBudget   []int   `yaml:"name_budget"`
}

// ExportConfig bounds export work.
type ExportConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// CacheConfig sizes in-memory caches.
type CacheConfig struct {
	PageCountSize int `yaml:"page_count_size"`
}

// WatchConfig controls invalidation when stored sources change on disk.
type WatchConfig struct {
	Enabled   *bool `yaml:"enabled"`
	Recursive *bool `yaml:"recursive"`
}

// EnabledOrDefault returns whether to watch the blob root; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BlobRoot = expandPath(cfg.Storage.BlobRoot, configDir)
	if cfg.Tools.TempDir != "" {
		cfg.Tools.TempDir = expandPath(cfg.Tools.TempDir, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
