// Package identity provides the "identity" equation, which copies every
// variable forward unchanged. It is the reference for decomposition tests: any
// correct schedule leaves the field bit-identical.
package identity

import (
	"github.com/specialistvlad/sweptgrid/internal/geometry"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Kernel copies level src into level counter.
type Kernel struct {
	vars int
}

// Step implements kernel.Kernel.
func (k Kernel) Step(f kernel.Field, pts []geometry.Point, src, counter int) error {
	for _, p := range pts {
		for v := 0; v < k.vars; v++ {
			f.Set(counter, v, p.Row, p.Col, f.At(src, v, p.Row, p.Col))
		}
	}
	return nil
}

// Register registers the equation with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterEquation("identity", &registry.RegisteredEquation{
		New: func(_ any, p kernel.Params) (kernel.Kernel, error) {
			return Kernel{vars: p.Vars}, nil
		},
	})
}
