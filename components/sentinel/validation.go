package sentinel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ConfigValidator checks a panel's per-mount configuration.
type ConfigValidator interface {
	Validate(def PanelDefinition, config map[string]any) error
}

// ValidationError lists the offending config fields of one panel.
type ValidationError struct {
	Panel  string
	Fields []FieldError
}

// FieldError is one schema violation. Path is a JSON pointer ("" is the root).
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		path := field.Path
		if path == "" {
			path = "/"
		}
		parts = append(parts, path+": "+field.Message)
	}
	return fmt.Sprintf("sentinel: invalid config for %s: %s", e.Panel, strings.Join(parts, "; "))
}

// UserMessage is shown on the panel banner.
func (e *ValidationError) UserMessage() string {
	if len(e.Fields) == 0 {
		return "Configuration invalide"
	}
	return "Configuration invalide: " + e.Fields[0].Message
}

// JSONSchemaValidator compiles each distinct panel schema once. Compiled schemas are
// keyed by content so a registry override with a new schema recompiles.
type JSONSchemaValidator struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator builds a draft 2020-12 validator.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{compiled: map[string]*jsonschema.Schema{}}
}

// Validate returns a *ValidationError when config violates the panel schema. A nil
// config is validated as an empty object.
func (v *JSONSchemaValidator) Validate(def PanelDefinition, config map[string]any) error {
	if len(def.Schema) == 0 {
		return nil
	}
	schema, err := v.schemaFor(def)
	if err != nil {
		return err
	}
	instance, err := jsonInstance(config)
	if err != nil {
		return fmt.Errorf("sentinel: config for %s is not JSON: %w", def.Code, err)
	}
	err = schema.Validate(instance)
	if err == nil {
		return nil
	}
	var schemaErr *jsonschema.ValidationError
	if !errors.As(err, &schemaErr) {
		return fmt.Errorf("sentinel: validate config for %s: %w", def.Code, err)
	}
	return &ValidationError{Panel: def.Code, Fields: fieldErrors(schemaErr)}
}

func (v *JSONSchemaValidator) schemaFor(def PanelDefinition) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(def.Schema)
	if err != nil {
		return nil, fmt.Errorf("sentinel: encode schema for %s: %w", def.Code, err)
	}
	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:8])

	v.mu.Lock()
	defer v.mu.Unlock()
	if schema, ok := v.compiled[key]; ok {
		return schema, nil
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := "sentinel://panels/" + def.Code + "/" + key + ".json"
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("sentinel: load schema for %s: %w", def.Code, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("sentinel: compile schema for %s: %w", def.Code, err)
	}
	v.compiled[key] = schema
	return schema, nil
}

// jsonInstance round-trips config through JSON so Go ints and structs match the
// types the schema library expects.
func jsonInstance(config map[string]any) (any, error) {
	if config == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// fieldErrors flattens the error tree to its leaves, sorted by path.
func fieldErrors(root *jsonschema.ValidationError) []FieldError {
	var out []FieldError
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, FieldError{Path: e.InstanceLocation, Message: e.Message})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(root)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

type noopConfigValidator struct{}

func (noopConfigValidator) Validate(PanelDefinition, map[string]any) error { return nil }
