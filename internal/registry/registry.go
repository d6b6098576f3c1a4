package registry

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/specialistvlad/sweptgrid/internal/config"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
)

// Module is the interface that all plugin modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// RegisteredEquation holds the compiled Go parts of an equation plugin.
type RegisteredEquation struct {
	// NewArgs returns a pointer to a fresh argument struct holding the
	// defaults. Nil means the equation takes no arguments.
	NewArgs func() any
	New     func(args any, p kernel.Params) (kernel.Kernel, error)

	inputs map[string]*config.InputDefinition
}

// RegisteredInitial holds the compiled Go parts of an initial condition.
type RegisteredInitial struct {
	NewArgs func() any
	New     func(args any, d kernel.Domain) (kernel.Initial, error)

	inputs map[string]*config.InputDefinition
}

// Registry holds every plugin of a single application instance.
type Registry struct {
	equations map[string]*RegisteredEquation
	initials  map[string]*RegisteredInitial
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		equations: make(map[string]*RegisteredEquation),
		initials:  make(map[string]*RegisteredInitial),
	}
}

// RegisterEquation registers an equation under name.
func (r *Registry) RegisterEquation(name string, eq *RegisteredEquation) {
	if _, exists := r.equations[name]; exists {
		panic(fmt.Sprintf("equation with name '%s' already registered", name))
	}
	slog.Debug("Registering equation.", "name", name)
	r.equations[name] = eq
}

// RegisterInitial registers an initial condition under name.
func (r *Registry) RegisterInitial(name string, ic *RegisteredInitial) {
	if _, exists := r.initials[name]; exists {
		panic(fmt.Sprintf("initial condition with name '%s' already registered", name))
	}
	slog.Debug("Registering initial condition.", "name", name)
	r.initials[name] = ic
}

// Equations lists the registered equation names, sorted.
func (r *Registry) Equations() []string {
	return sortedKeys(r.equations)
}

// Initials lists the registered initial condition names, sorted.
func (r *Registry) Initials() []string {
	return sortedKeys(r.initials)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
