package sentinel

import (
	"fmt"
	"sync"
	"time"
)

// PanelHook lets packages register panels during init().
type PanelHook func(reg *Registry) error

var (
	globalHookMu sync.Mutex
	globalHooks  []PanelHook
)

// RegisterPanelHook registers a hook executed against new registries.
func RegisterPanelHook(h PanelHook) {
	globalHookMu.Lock()
	defer globalHookMu.Unlock()
	globalHooks = append(globalHooks, h)
}

// Registry stores panel definitions in registration order.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]PanelDefinition
	order       []string
}

// NewRegistry builds a registry holding the default panels and applies global hooks.
func NewRegistry() *Registry {
	reg := NewEmptyRegistry()
	for _, def := range DefaultPanelDefinitions() {
		_ = reg.RegisterDefinition(def)
	}
	_ = reg.ApplyHooks()
	return reg
}

// NewEmptyRegistry builds a registry without defaults or hooks.
func NewEmptyRegistry() *Registry {
	return &Registry{definitions: map[string]PanelDefinition{}}
}

// ApplyHooks executes registered panel hooks.
func (r *Registry) ApplyHooks() error {
	globalHookMu.Lock()
	defer globalHookMu.Unlock()
	for _, hook := range globalHooks {
		if err := hook(r); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDefinition stores or replaces a panel definition.
func (r *Registry) RegisterDefinition(def PanelDefinition) error {
	if def.Code == "" {
		return fmt.Errorf("sentinel: panel definition code is required")
	}
	if def.Interval <= 0 {
		return fmt.Errorf("sentinel: panel %s requires a positive interval", def.Code)
	}
	if len(def.Endpoints) == 0 {
		return fmt.Errorf("sentinel: panel %s declares no endpoints", def.Code)
	}
	for _, ep := range def.Endpoints {
		if ep.Key == "" || ep.Path == "" || ep.Decode == nil {
			return fmt.Errorf("sentinel: panel %s has an incomplete endpoint %q", def.Code, ep.Key)
		}
	}
	if def.Schema == nil {
		def.Schema = panelConfigSchema()
	}
	def.normalizeLocalizedFields()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[def.Code]; !exists {
		r.order = append(r.order, def.Code)
	}
	r.definitions[def.Code] = def
	return nil
}

// Definition fetches a panel definition by code.
func (r *Registry) Definition(code string) (PanelDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[code]
	return def, ok
}

// Definitions returns enabled definitions in registration order.
func (r *Registry) Definitions() []PanelDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]PanelDefinition, 0, len(r.order))
	for _, code := range r.order {
		if def := r.definitions[code]; !def.Disabled {
			defs = append(defs, def)
		}
	}
	return defs
}

// Override adjusts the interval and enabled flag of a registered panel.
func (r *Registry) Override(code string, interval time.Duration, enabled *bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.definitions[code]
	if !ok {
		return fmt.Errorf("sentinel: panel %s not found", code)
	}
	if interval > 0 {
		def.Interval = interval
	}
	if enabled != nil {
		def.Disabled = !*enabled
	}
	r.definitions[code] = def
	return nil
}
