// Package constant provides the "constant" initial condition.
package constant

import (
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Args are the initial condition arguments. Values, when given, holds one
// value per variable and overrides Value.
type Args struct {
	Value  float64   `arg:"value,optional"`
	Values []float64 `arg:"values,optional"`
}

// Register registers the initial condition with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInitial("constant", &registry.RegisteredInitial{
		NewArgs: func() any { return new(Args) },
		New: func(args any, d kernel.Domain) (kernel.Initial, error) {
			return New(args.(*Args), d)
		},
	})
}
