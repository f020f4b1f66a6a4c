package sentinel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileSettingsStore persists settings as a YAML document. The CLI uses it as its
// durable local storage.
type FileSettingsStore struct {
	mu   sync.Mutex
	path string
}

// NewFileSettingsStore returns a store backed by path. The file is created lazily.
func NewFileSettingsStore(path string) *FileSettingsStore {
	return &FileSettingsStore{path: path}
}

// Get loads a value.
func (s *FileSettingsStore) Get(_ context.Context, scope, key string) (string, bool, error) {
	if scope == "" {
		return "", false, errMissingScope
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	value, ok := doc[scope][key]
	return value, ok, nil
}

// Set stores a value and rewrites the file.
func (s *FileSettingsStore) Set(_ context.Context, scope, key, value string) error {
	if scope == "" {
		return errMissingScope
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc[scope] == nil {
		doc[scope] = map[string]string{}
	}
	doc[scope][key] = value
	return s.write(doc)
}

// Delete removes a value and rewrites the file.
func (s *FileSettingsStore) Delete(_ context.Context, scope, key string) error {
	if scope == "" {
		return errMissingScope
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc[scope][key]; !ok {
		return nil
	}
	delete(doc[scope], key)
	return s.write(doc)
}

func (s *FileSettingsStore) read() (map[string]map[string]string, error) {
	doc := map[string]map[string]string{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sentinel: read settings %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sentinel: parse settings %s: %w", s.path, err)
	}
	if doc == nil {
		doc = map[string]map[string]string{}
	}
	return doc, nil
}

func (s *FileSettingsStore) write(doc map[string]map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("sentinel: mkdir %s: %w", filepath.Dir(s.path), err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sentinel: encode settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("sentinel: write settings %s: %w", s.path, err)
	}
	return nil
}
