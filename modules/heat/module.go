// Package heat provides the "heat" equation: explicit 5-point diffusion of
// every variable, u_t = alpha * (u_xx + u_yy), on a uniform grid of spacing
// dx.
//
// With tso = 1 each level is a forward Euler step. With tso = 2 odd levels
// hold the midpoint predictor and even levels the full RK2 step taken from
// the previous full level.
package heat

import (
	"fmt"

	"github.com/specialistvlad/sweptgrid/internal/geometry"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Args are the equation arguments.
type Args struct {
	Alpha float64 `arg:"alpha"`
	Dx    float64 `arg:"dx,optional"`
}

// Kernel is the diffusion stepping kernel.
type Kernel struct {
	// coef is alpha*dt/dx^2.
	coef float64
	tso  int
	vars int
}

// maxCoef bounds alpha*dt/dx^2 for the explicit scheme to stay stable.
const maxCoef = 0.25

// New validates the arguments against the solver settings and builds a
// Kernel.
func New(args *Args, p kernel.Params) (*Kernel, error) {
	switch {
	case args.Alpha < 0:
		return nil, fmt.Errorf("alpha must not be negative, got %v", args.Alpha)
	case args.Dx <= 0:
		return nil, fmt.Errorf("dx must be positive, got %v", args.Dx)
	case p.Ops < 1:
		return nil, fmt.Errorf("the 5-point stencil needs ops >= 1, got %d", p.Ops)
	case p.TSO != 1 && p.TSO != 2:
		return nil, fmt.Errorf("tso must be 1 or 2, got %d", p.TSO)
	}
	coef := args.Alpha * p.Dt / (args.Dx * args.Dx)
	if coef > maxCoef {
		return nil, fmt.Errorf("alpha*dt/dx^2 = %v exceeds the stability limit %v", coef, maxCoef)
	}
	return &Kernel{coef: coef, tso: p.TSO, vars: p.Vars}, nil
}

func laplacian(f kernel.Field, level, v, r, c int) float64 {
	return f.At(level, v, r-1, c) + f.At(level, v, r+1, c) +
		f.At(level, v, r, c-1) + f.At(level, v, r, c+1) -
		4*f.At(level, v, r, c)
}

// Step implements kernel.Kernel.
func (k *Kernel) Step(f kernel.Field, pts []geometry.Point, src, counter int) error {
	predictor := k.tso == 2 && counter%2 == 1
	for _, p := range pts {
		for v := 0; v < k.vars; v++ {
			lap := laplacian(f, src, v, p.Row, p.Col)
			switch {
			case k.tso == 1:
				f.Set(counter, v, p.Row, p.Col, f.At(src, v, p.Row, p.Col)+k.coef*lap)
			case predictor:
				f.Set(counter, v, p.Row, p.Col, f.At(src, v, p.Row, p.Col)+0.5*k.coef*lap)
			default:
				f.Set(counter, v, p.Row, p.Col, f.At(counter-2, v, p.Row, p.Col)+k.coef*lap)
			}
		}
	}
	return nil
}

// Register registers the equation with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterEquation("heat", &registry.RegisteredEquation{
		NewArgs: func() any { return &Args{Dx: 1} },
		New: func(args any, p kernel.Params) (kernel.Kernel, error) {
			k, err := New(args.(*Args), p)
			if err != nil {
				return nil, err
			}
			return k, nil
		},
	})
}
