package export

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/pagebind/internal/models"
)

// Manifest describes a bundle to load: its settings and a tree of folders and files.
type Manifest struct {
	Bundle    ManifestBundle `yaml:"bundle"`
	Documents []ManifestNode `yaml:"documents"`
}

// ManifestBundle holds bundle settings.
type ManifestBundle struct {
	Name               string              `yaml:"name"`
	UserID             string              `yaml:"user_id"`
	IncludeIndex       *bool               `yaml:"include_index"`
	IncludeFrontCover  bool                `yaml:"include_front_cover"`
	IncludeBackCover   bool                `yaml:"include_back_cover"`
	FrontCoverTemplate string              `yaml:"front_cover_template"`
	BackCoverTemplate  string              `yaml:"back_cover_template"`
	CoverFields        map[string]string   `yaml:"cover_fields"`
	HeaderFooter       models.HeaderFooter `yaml:"header_footer"`
}

// ManifestNode is a folder (Children) or a file (File, relative to the manifest).
type ManifestNode struct {
	Name       string              `yaml:"name"`
	File       string              `yaml:"file"`
	Children   []ManifestNode      `yaml:"children"`
	Highlights []ManifestHighlight `yaml:"highlights"`
	Redactions []ManifestRedaction `yaml:"redactions"`
}

// ManifestHighlight is a highlight in points from the top-left of the page.
type ManifestHighlight struct {
	Page   int     `yaml:"page"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Color  string  `yaml:"color"`
}

// ManifestRedaction is a redaction box; a missing opacity means fully opaque.
type ManifestRedaction struct {
	Page        int      `yaml:"page"`
	X           float64  `yaml:"x"`
	Y           float64  `yaml:"y"`
	Width       float64  `yaml:"width"`
	Height      float64  `yaml:"height"`
	Fill        string   `yaml:"fill"`
	Border      string   `yaml:"border"`
	Opacity     *float64 `yaml:"opacity"`
	BorderWidth float64  `yaml:"border_width"`
}

// LoadManifest reads a YAML manifest.
func LoadManifest(p string) (*Manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Bundle.Name == "" {
		return nil, fmt.Errorf("manifest: bundle name is required")
	}
	if err := validateNodes(m.Documents); err != nil {
		return nil, err
	}
	return &m, nil
}

func validateNodes(nodes []ManifestNode) error {
	for _, n := range nodes {
		if n.Name == "" {
			return fmt.Errorf("manifest: document without a name")
		}
		if n.File != "" && len(n.Children) > 0 {
			return fmt.Errorf("manifest: %q has both a file and children", n.Name)
		}
		if n.File == "" && (len(n.Highlights) > 0 || len(n.Redactions) > 0) {
			return fmt.Errorf("manifest: folder %q cannot carry annotations", n.Name)
		}
		if err := validateNodes(n.Children); err != nil {
			return err
		}
	}
	return nil
}

// Import creates the bundle, its documents, and annotations, copying each file
// into the blob store. File paths are resolved against baseDir.
func (s *Service) Import(ctx context.Context, m *Manifest, baseDir string) (*models.Bundle, error) {
	includeIndex := true
	if m.Bundle.IncludeIndex != nil {
		includeIndex = *m.Bundle.IncludeIndex
	}
	b := &models.Bundle{
		Name:               m.Bundle.Name,
		UserID:             m.Bundle.UserID,
		HeaderFooter:       m.Bundle.HeaderFooter,
		IncludeIndex:       includeIndex,
		IncludeFrontCover:  m.Bundle.IncludeFrontCover,
		IncludeBackCover:   m.Bundle.IncludeBackCover,
		FrontCoverTemplate: m.Bundle.FrontCoverTemplate,
		BackCoverTemplate:  m.Bundle.BackCoverTemplate,
		CoverFields:        m.Bundle.CoverFields,
	}
	if err := s.store.CreateBundle(ctx, b); err != nil {
		return nil, fmt.Errorf("create bundle: %w", err)
	}
	if err := s.importNodes(ctx, b.ID, nil, m.Documents, baseDir); err != nil {
		return nil, err
	}
	s.logger.Info("manifest imported", zap.String("bundle_id", b.ID), zap.String("name", b.Name))
	return b, nil
}

func (s *Service) importNodes(ctx context.Context, bundleID string, parentID *string, nodes []ManifestNode, baseDir string) error {
	for i, n := range nodes {
		doc := &models.Document{
			ID:       uuid.New().String(),
			BundleID: bundleID,
			ParentID: parentID,
			Name:     n.Name,
			Kind:     models.KindFolder,
			Order:    i + 1,
		}
		if n.File != "" {
			src := n.File
			if !filepath.IsAbs(src) {
				src = filepath.Join(baseDir, src)
			}
			data, err := os.ReadFile(src)
			if err != nil {
				return fmt.Errorf("read %s: %w", n.Name, err)
			}
			doc.Kind = models.KindFile
			doc.StoragePath = path.Join("documents", bundleID, doc.ID+".pdf")
			if err := s.blobs.Write(ctx, doc.StoragePath, data); err != nil {
				return fmt.Errorf("store %s: %w", n.Name, err)
			}
		}
		if err := s.store.CreateDocument(ctx, doc); err != nil {
			return fmt.Errorf("create document %s: %w", n.Name, err)
		}
		if err := s.importAnnotations(ctx, doc.ID, n); err != nil {
			return err
		}
		if len(n.Children) > 0 {
			id := doc.ID
			if err := s.importNodes(ctx, bundleID, &id, n.Children, baseDir); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) importAnnotations(ctx context.Context, docID string, n ManifestNode) error {
	for _, h := range n.Highlights {
		if err := s.store.CreateHighlight(ctx, &models.Highlight{
			DocumentID: docID,
			Page:       h.Page,
			X:          h.X,
			Y:          h.Y,
			Width:      h.Width,
			Height:     h.Height,
			ColorHex:   h.Color,
		}); err != nil {
			return fmt.Errorf("create highlight on %s: %w", n.Name, err)
		}
	}
	for _, r := range n.Redactions {
		opacity := models.DefaultRedactionOpacity
		if r.Opacity != nil {
			opacity = *r.Opacity
		}
		if err := s.store.CreateRedaction(ctx, &models.Redaction{
			DocumentID:  docID,
			Page:        r.Page,
			X:           r.X,
			Y:           r.Y,
			Width:       r.Width,
			Height:      r.Height,
			FillHex:     r.Fill,
			BorderHex:   r.Border,
			Opacity:     opacity,
			BorderWidth: r.BorderWidth,
		}); err != nil {
			return fmt.Errorf("create redaction on %s: %w", n.Name, err)
		}
	}
	return nil
}
