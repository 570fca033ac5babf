package tools

import (
	"reflect"
	"sync"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
)

// Registry is the single source of truth mapping a tool name to its
// descriptor and, on demand, to a live instance. Descriptors are immutable
// once registered; instances are created lazily and shared across sessions.
type Registry struct {
	cfg *core.Config

	mu           sync.RWMutex
	descriptors  map[string]core.ToolDescriptor
	order        []string
	constructors map[string]core.ToolConstructor
	instances    map[string]core.Tool
}

// NewRegistry creates an empty registry bound to the given config.
func NewRegistry(cfg *core.Config) *Registry {
	if cfg == nil {
		cfg = core.NewConfig()
	}
	return &Registry{
		cfg:          cfg,
		descriptors:  make(map[string]core.ToolDescriptor),
		constructors: make(map[string]core.ToolConstructor),
		instances:    make(map[string]core.Tool),
	}
}

// RegisterConstructor binds a descriptor Type tag to a constructor.
// Registering an empty tag or re-registering an existing tag is a Config
// error: both indicate a programmer mistake and should fail at startup.
func (r *Registry) RegisterConstructor(typeTag string, ctor core.ToolConstructor) error {
	if typeTag == "" || ctor == nil {
		return errors.New(errors.Config, "tool constructor requires a type tag and a function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[typeTag]; exists {
		return errors.WithFields(
			errors.New(errors.Config, "constructor already registered for type"),
			errors.Fields{"type": typeTag},
		)
	}
	r.constructors[typeTag] = ctor
	return nil
}

// RegisterDescriptor adds a tool descriptor. Registering the same name
// twice is tolerated only when the parameter schema is identical; a
// conflicting re-registration is a Config error.
func (r *Registry) RegisterDescriptor(desc core.ToolDescriptor) error {
	if desc.Name == "" {
		return errors.New(errors.Config, "tool descriptor requires a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, exists := r.descriptors[desc.Name]; exists {
		if reflect.DeepEqual(existing.ParameterSchema, desc.ParameterSchema) {
			return nil
		}
		return errors.WithFields(
			errors.New(errors.Config, "descriptor already registered with a conflicting schema"),
			errors.Fields{"name": desc.Name},
		)
	}
	r.descriptors[desc.Name] = desc
	r.order = append(r.order, desc.Name)
	return nil
}

// Descriptor returns the descriptor registered under name.
func (r *Registry) Descriptor(name string) (core.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []core.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Names returns registered tool names in stable registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Instance returns the live tool for name, instantiating it on first use.
// It returns (nil, false) when no descriptor or no constructor is
// registered, or when construction fails; callers must check the bool
// rather than expect an error.
func (r *Registry) Instance(name string) (core.Tool, bool) {
	r.mu.RLock()
	if inst, ok := r.instances[name]; ok {
		r.mu.RUnlock()
		return inst, true
	}
	desc, hasDesc := r.descriptors[name]
	r.mu.RUnlock()
	if !hasDesc {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-checked: another session may have created it while we waited.
	if inst, ok := r.instances[name]; ok {
		return inst, true
	}
	ctor, ok := r.constructors[desc.Type]
	if !ok {
		r.cfg.Logger().Warn("no constructor registered for tool type",
			"tool", name, "type", desc.Type)
		return nil, false
	}
	inst, err := ctor(desc, r.cfg)
	if err != nil {
		r.cfg.Logger().Error("tool construction failed",
			"tool", name, "type", desc.Type, "err", err)
		return nil, false
	}
	r.instances[name] = inst
	return inst, true
}

// ClearInstances drops all cached instances; the next access re-creates
// them. Descriptors and constructors are untouched.
func (r *Registry) ClearInstances() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]core.Tool)
}
