// Package builtin provides ready-made leaf units: JSONPath extraction,
// JSON schema validation, templates, delays, JavaScript and Lua scripts.
//
// Units can be built directly:
//
//	extract, err := builtin.JSONPath("user", "$.user.name")
//
// or by type name through a Registry, which validates the config first:
//
//	r := builtin.Default()
//	unit, err := r.Parse("jsonpath:$.user.name")
package builtin

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/agentstation/runnable"
)

var (
	// ErrUnknownType is returned for unit types that are not registered.
	ErrUnknownType = errors.New("builtin: unknown unit type")

	// ErrInvalid is matched by every ValidationError.
	ErrInvalid = errors.New("builtin: invalid document")
)

// Builder creates units of one type.
type Builder interface {
	Metadata() UnitMetadata
	Build(name string, config map[string]any) (runnable.Runnable, error)
}

// Registry maps unit type names to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Default returns a registry holding every builtin unit type.
func Default() *Registry {
	r := NewRegistry()
	for _, b := range []Builder{
		JSONPathBuilder{},
		ValidateBuilder{},
		TemplateBuilder{},
		DelayBuilder{},
		JavaScriptBuilder{},
		LuaBuilder{},
	} {
		r.Register(b)
	}
	return r
}

// Register adds b under its metadata type, replacing any previous builder.
func (r *Registry) Register(b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[b.Metadata().Type] = b
}

// Get returns the builder of typ.
func (r *Registry) Get(typ string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[typ]
	return b, ok
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for typ := range r.builders {
		out = append(out, typ)
	}
	slices.Sort(out)
	return out
}

// Build validates config against the type's schema and builds the unit.
func (r *Registry) Build(typ, name string, config map[string]any) (runnable.Runnable, error) {
	b, ok := r.Get(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	meta := b.Metadata()
	if err := ValidateConfig(meta, config); err != nil {
		return nil, err
	}
	if name == "" {
		name = typ
	}
	unit, err := b.Build(name, config)
	if err != nil {
		return nil, fmt.Errorf("builtin: build %s: %w", typ, err)
	}
	return unit, nil
}

// Parse builds a unit from a "type:argument" step. The argument fills the
// type's shorthand config key; a bare "type" builds with an empty config.
func (r *Registry) Parse(step string) (runnable.Runnable, error) {
	typ, arg, hasArg := strings.Cut(step, ":")
	b, ok := r.Get(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	config := map[string]any{}
	if hasArg {
		key := b.Metadata().Shorthand
		if key == "" {
			return nil, fmt.Errorf("builtin: %s takes no argument", typ)
		}
		config[key] = arg
	}
	return r.Build(typ, typ, config)
}
