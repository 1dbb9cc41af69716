package handlers

import (
	"fmt"
	"sync"

	"github.com/flowforge/ruleengine/pkg/types"
)

// Registry maps function name to Handler. Built-ins are inserted at
// construction; custom handlers supplied by the caller are registered on
// top and may shadow a built-in of the same name. Populated during engine
// construction, read-only thereafter.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns a Registry pre-populated with the six built-in
// function handlers.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.MustRegister(types.FuncParseJSON, &ParseJSONHandler{})
	r.MustRegister(types.FuncParseXML, &ParseXMLHandler{})
	r.MustRegister(types.FuncMap, &MapHandler{})
	r.MustRegister(types.FuncValidation, &ValidationHandler{})
	r.MustRegister(types.FuncPublishJSON, &PublishJSONHandler{})
	r.MustRegister(types.FuncPublishXML, &PublishXMLHandler{})
	return r
}

// Register installs h under name, replacing any existing handler
// (including a built-in) registered under the same name.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("handler name must not be empty")
	}
	if h == nil {
		return fmt.Errorf("handler for %q must not be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return nil
}

// MustRegister is Register, panicking on error. Used for the fixed set of
// built-ins known not to fail.
func (r *Registry) MustRegister(name string, h Handler) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler registered for name, if any.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// RegisterCustomFunctions installs a caller-supplied name→Handler map on
// top of the built-ins, honoring the "custom shadows built-in" tie-break
// rule for any name collision.
func (r *Registry) RegisterCustomFunctions(custom map[string]Handler) error {
	for name, h := range custom {
		if err := r.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}
