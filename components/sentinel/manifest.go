package sentinel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	manifestVersionV1 = "1"
	// ManifestVersion exposes the current manifest format version for tooling.
	ManifestVersion = manifestVersionV1
)

// PanelManifestDocument tunes registered panels from YAML.
type PanelManifestDocument struct {
	Version string          `yaml:"version"`
	Name    string          `yaml:"name,omitempty"`
	Panels  []ManifestPanel `yaml:"panels"`
	Source  string          `yaml:"-"`
}

// ManifestPanel overrides one panel.
type ManifestPanel struct {
	Code            string            `yaml:"code"`
	Enabled         *bool             `yaml:"enabled,omitempty"`
	IntervalSeconds int               `yaml:"interval_seconds,omitempty"`
	Name            string            `yaml:"name,omitempty"`
	NameLocalized   map[string]string `yaml:"name_localized,omitempty"`
}

// LoadManifestFile reads a manifest from disk and applies it to the registry.
func (r *Registry) LoadManifestFile(path string, validator ConfigValidator) (*PanelManifestDocument, error) {
	doc, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	if err := r.ApplyManifest(doc, validator); err != nil {
		return nil, err
	}
	return doc, nil
}

// ApplyManifest validates every override against its panel schema and applies it.
func (r *Registry) ApplyManifest(doc *PanelManifestDocument, validator ConfigValidator) error {
	if doc == nil {
		return errors.New("sentinel: manifest document is nil")
	}
	if validator == nil {
		validator = noopConfigValidator{}
	}
	for _, panel := range doc.Panels {
		def, ok := r.Definition(panel.Code)
		if !ok {
			return fmt.Errorf("sentinel: manifest %s references unknown panel %s", doc.Source, panel.Code)
		}
		if panel.IntervalSeconds != 0 {
			if err := validator.Validate(def, map[string]any{"interval_seconds": panel.IntervalSeconds}); err != nil {
				return err
			}
		}
		if err := r.Override(panel.Code, time.Duration(panel.IntervalSeconds)*time.Second, panel.Enabled); err != nil {
			return err
		}
		if panel.Name != "" || len(panel.NameLocalized) > 0 {
			def, _ = r.Definition(panel.Code)
			if panel.Name != "" {
				def.Name = panel.Name
			}
			if len(panel.NameLocalized) > 0 {
				def.NameLocalized = panel.NameLocalized
			}
			if err := r.RegisterDefinition(def); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadManifest loads a manifest file without applying it.
func ReadManifest(path string) (*PanelManifestDocument, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("sentinel: open manifest %s: %w", path, err)
	}
	defer f.Close()
	doc, err := DecodeManifest(f)
	if err != nil {
		return nil, fmt.Errorf("sentinel: decode manifest %s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// DecodeManifest reads a manifest from any reader. Unknown fields are rejected.
func DecodeManifest(r io.Reader) (*PanelManifestDocument, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var doc PanelManifestDocument
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("sentinel: manifest is empty")
		}
		return nil, fmt.Errorf("sentinel: parse manifest: %w", err)
	}
	if doc.Version == "" {
		doc.Version = manifestVersionV1
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks structural requirements. Interval bounds are enforced by the panel schema.
func (doc *PanelManifestDocument) Validate() error {
	if doc.Version != manifestVersionV1 {
		return fmt.Errorf("sentinel: unsupported manifest version %q", doc.Version)
	}
	seen := make(map[string]struct{}, len(doc.Panels))
	for idx, panel := range doc.Panels {
		if panel.Code == "" {
			return fmt.Errorf("sentinel: manifest panel at index %d is missing code", idx)
		}
		if panel.IntervalSeconds < 0 {
			return fmt.Errorf("sentinel: manifest panel %s has a negative interval", panel.Code)
		}
		if _, exists := seen[panel.Code]; exists {
			return fmt.Errorf("sentinel: manifest duplicates panel code %s", panel.Code)
		}
		seen[panel.Code] = struct{}{}
	}
	return nil
}
