package tool

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/logging"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// ErrFrozen is returned by Register once the registry has been frozen.
var ErrFrozen = errors.New("tool registry is frozen")

// Constructor builds a fresh tool instance.
type Constructor func() Tool

type registration struct {
	descriptor  types.ToolDescriptor
	constructor Constructor
}

// Registry maps tool names to constructors. It is populated during startup
// and frozen before serving; lookups are case-sensitive.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]registration
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registration)}
}

// Register adds a tool. It fails with DuplicateTool when the name is taken.
func (r *Registry) Register(desc types.ToolDescriptor, ctor Constructor) error {
	if desc.Name == "" {
		return types.NewError(types.KindInvalidParameters, "tool descriptor has no name")
	}
	if ctor == nil {
		return types.NewError(types.KindInvalidParameters, "tool %q has no constructor", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	if _, ok := r.tools[desc.Name]; ok {
		return types.NewError(types.KindDuplicateTool, "tool %q is already registered", desc.Name)
	}
	r.tools[desc.Name] = registration{descriptor: desc, constructor: ctor}
	logging.Debug().Str("tool", desc.Name).Str("sideEffect", string(desc.SideEffect)).Msg("tool registered")
	return nil
}

// MustRegister is Register that panics on failure. Registry misuse is a
// startup error.
func (r *Registry) MustRegister(desc types.ToolDescriptor, ctor Constructor) {
	if err := r.Register(desc, ctor); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Resolve returns a freshly constructed tool.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, types.NewError(types.KindUnknownTool, "unknown tool %q", name)
	}
	return reg.constructor(), nil
}

// Descriptor returns the registered descriptor of name.
func (r *Registry) Descriptor(name string) (types.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	return reg.descriptor, ok
}

// Descriptors returns all descriptors sorted by name.
func (r *Registry) Descriptors() []types.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]types.ToolDescriptor, 0, len(r.tools))
	for _, reg := range r.tools {
		descs = append(descs, reg.descriptor)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Names returns all tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Require fails with UnknownTool when any of names is not registered.
func (r *Registry) Require(names ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, name := range names {
		if _, ok := r.tools[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return types.NewError(types.KindUnknownTool, "required tools not registered: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Builtin pairs a built-in tool descriptor with its constructor.
type Builtin struct {
	Descriptor  types.ToolDescriptor
	Constructor Constructor
}

// Builtins returns the built-in file tools operating on fs.
func Builtins(fs afero.Fs) []Builtin {
	return []Builtin{
		{ReadDescriptor, func() Tool { return NewReadTool(fs) }},
		{WriteDescriptor, func() Tool { return NewWriteTool(fs) }},
		{EditDescriptor, func() Tool { return NewEditTool(fs) }},
		{MultiEditDescriptor, func() Tool { return NewMultiEditTool(fs) }},
		{ListDescriptor, func() Tool { return NewListTool(fs) }},
		{GlobDescriptor, func() Tool { return NewGlobTool(fs) }},
	}
}

// DefaultRegistry creates a frozen registry with all built-in tools.
func DefaultRegistry(fs afero.Fs) *Registry {
	return ConfiguredRegistry(fs, nil)
}

// ConfiguredRegistry creates a frozen registry with the built-in tools that
// cfg leaves enabled.
func ConfiguredRegistry(fs afero.Fs, cfg *types.Config) *Registry {
	r := NewRegistry()
	for _, b := range Builtins(fs) {
		if !cfg.ToolEnabled(b.Descriptor.Name) {
			logging.Info().Str("tool", b.Descriptor.Name).Msg("tool disabled by configuration")
			continue
		}
		r.MustRegister(b.Descriptor, b.Constructor)
	}
	r.Freeze()
	return r
}
