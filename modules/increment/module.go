// Package increment provides the "increment" equation: every full time step
// adds Step to each value, spread evenly over the intermediate levels. With
// any decomposition, full level w holds the initial value plus w*Step.
package increment

import (
	"github.com/specialistvlad/sweptgrid/internal/geometry"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Args are the equation arguments.
type Args struct {
	Step float64 `arg:"step,optional"`
}

// Kernel is the increment stepping kernel.
type Kernel struct {
	step float64
	tso  int
	vars int
}

// New builds a Kernel for the given solver settings.
func New(args *Args, p kernel.Params) *Kernel {
	return &Kernel{step: args.Step, tso: max(p.TSO, 1), vars: p.Vars}
}

// Step implements kernel.Kernel. Full levels are computed from the previous
// full level so intermediate rounding never accumulates.
func (k *Kernel) Step(f kernel.Field, pts []geometry.Point, src, counter int) error {
	full := counter%k.tso == 0
	for _, p := range pts {
		for v := 0; v < k.vars; v++ {
			if full {
				f.Set(counter, v, p.Row, p.Col, f.At(counter-k.tso, v, p.Row, p.Col)+k.step)
			} else {
				f.Set(counter, v, p.Row, p.Col, f.At(src, v, p.Row, p.Col)+k.step/float64(k.tso))
			}
		}
	}
	return nil
}

// Register registers the equation with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterEquation("increment", &registry.RegisteredEquation{
		NewArgs: func() any { return &Args{Step: 1} },
		New: func(args any, p kernel.Params) (kernel.Kernel, error) {
			return New(args.(*Args), p), nil
		},
	})
}
