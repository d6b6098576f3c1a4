// Package gaussian provides the "gaussian" initial condition: a single bump
//
//	background + amplitude * exp(-d^2 / (2 sigma^2))
//
// where d is the distance to the center, measured the short way around in
// the periodic column direction.
package gaussian

import (
	"fmt"
	"math"

	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Args are the initial condition arguments. Center is (row, col) and
// defaults to the middle of the domain.
type Args struct {
	Amplitude  float64   `arg:"amplitude"`
	Sigma      float64   `arg:"sigma"`
	Center     []float64 `arg:"center,optional"`
	Background float64   `arg:"background,optional"`
}

// Bump is the generated field.
type Bump struct {
	args     Args
	row, col float64
	cols     float64
}

// New validates args against the domain and builds a Bump.
func New(args *Args, d kernel.Domain) (*Bump, error) {
	if args.Sigma <= 0 {
		return nil, fmt.Errorf("sigma must be positive, got %v", args.Sigma)
	}
	b := &Bump{args: *args, row: float64(d.Rows) / 2, col: float64(d.Cols) / 2, cols: float64(d.Cols)}
	switch len(args.Center) {
	case 0:
	case 2:
		b.row, b.col = args.Center[0], args.Center[1]
	default:
		return nil, fmt.Errorf("center must be [row, col], got %d values", len(args.Center))
	}
	return b, nil
}

// Value implements kernel.Initial. Every variable gets the same bump.
func (b *Bump) Value(_, row, col int) float64 {
	dr := float64(row) - b.row
	dc := math.Abs(float64(col) - b.col)
	dc = math.Min(dc, b.cols-dc)
	d2 := dr*dr + dc*dc
	return b.args.Background + b.args.Amplitude*math.Exp(-d2/(2*b.args.Sigma*b.args.Sigma))
}

// Register registers the initial condition with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInitial("gaussian", &registry.RegisteredInitial{
		NewArgs: func() any { return new(Args) },
		New: func(args any, d kernel.Domain) (kernel.Initial, error) {
			b, err := New(args.(*Args), d)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	})
}
