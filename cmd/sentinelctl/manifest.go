package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	core "github.com/goliatone/go-sentinel/components/sentinel"
)

type manifestCmd struct {
	Path     string            `arg:"" type:"path" help:"Manifest YAML file to create or update."`
	Code     string            `required:"" help:"Panel code (see --list)."`
	Interval int               `help:"Refresh interval in seconds (0 keeps the default)."`
	Enable   bool              `xor:"state" help:"Enable the panel."`
	Disable  bool              `xor:"state" help:"Disable the panel."`
	Name     string            `help:"Display name override."`
	Label    map[string]string `help:"Localized names as locale=name pairs."`
	Title    string            `help:"Manifest name recorded in the document."`
}

func (cmd *manifestCmd) Run(_ context.Context) error {
	registry := core.NewRegistry()
	def, ok := registry.Definition(cmd.Code)
	if !ok {
		return fmt.Errorf("sentinelctl: unknown panel %s (known: %s)", cmd.Code, strings.Join(knownCodes(registry), ", "))
	}
	path, err := filepath.Abs(cmd.Path)
	if err != nil {
		return fmt.Errorf("sentinelctl: resolve manifest path: %w", err)
	}
	doc, err := loadOrInitManifest(path)
	if err != nil {
		return err
	}
	if cmd.Title != "" {
		doc.Name = cmd.Title
	}

	entry := core.ManifestPanel{Code: def.Code}
	idx := -1
	for i, panel := range doc.Panels {
		if panel.Code == def.Code {
			entry, idx = panel, i
			break
		}
	}
	if cmd.Interval != 0 {
		entry.IntervalSeconds = cmd.Interval
	}
	if cmd.Enable || cmd.Disable {
		enabled := cmd.Enable
		entry.Enabled = &enabled
	}
	if cmd.Name != "" {
		entry.Name = cmd.Name
	}
	for locale, name := range cmd.Label {
		if entry.NameLocalized == nil {
			entry.NameLocalized = map[string]string{}
		}
		entry.NameLocalized[strings.ToLower(locale)] = name
	}
	if idx >= 0 {
		doc.Panels[idx] = entry
	} else {
		doc.Panels = append(doc.Panels, entry)
	}
	sort.Slice(doc.Panels, func(i, j int) bool {
		return doc.Panels[i].Code < doc.Panels[j].Code
	})

	// Reject overrides the dashboard would refuse at startup.
	if err := core.NewRegistry().ApplyManifest(doc, core.NewJSONSchemaValidator()); err != nil {
		return err
	}
	if err := writeManifest(path, doc); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Updated %s in %s\n", def.Code, path)
	return nil
}

func knownCodes(registry *core.Registry) []string {
	defs := registry.Definitions()
	codes := make([]string, 0, len(defs))
	for _, def := range defs {
		codes = append(codes, def.Code)
	}
	return codes
}

func loadOrInitManifest(path string) (*core.PanelManifestDocument, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &core.PanelManifestDocument{
				Version: core.ManifestVersion,
				Panels:  []core.ManifestPanel{},
				Source:  path,
			}, nil
		}
		return nil, fmt.Errorf("sentinelctl: stat manifest: %w", err)
	}
	return core.ReadManifest(path)
}

func writeManifest(path string, doc *core.PanelManifestDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sentinelctl: mkdir %s: %w", filepath.Dir(path), err)
	}
	file, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("sentinelctl: create manifest %s: %w", path, err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	defer encoder.Close()
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("sentinelctl: write manifest: %w", err)
	}
	return nil
}
