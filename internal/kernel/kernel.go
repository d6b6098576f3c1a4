// Package kernel defines the contracts between the decomposition engine and
// the pluggable numerical pieces: the stepping kernel and the initial
// condition generator.
package kernel

import (
	"math"

	"github.com/specialistvlad/sweptgrid/internal/geometry"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
)

// Field is the multi-level state a kernel reads and writes. Rows are node
// buffer rows; columns wrap.
type Field interface {
	At(level, v, row, col int) float64
	Set(level, v, row, col int, x float64)
}

// Params carries the solver settings a kernel may depend on.
type Params struct {
	Ops  int
	TSO  int
	Vars int
	Dt   float64
}

// Kernel advances a set of points by one level.
//
// Step writes level counter at every point, reading level src (= counter-1)
// within ±ops of each point and, at the point itself only, any level down to
// counter-TSO. Whether counter denotes a full or an intermediate step is the
// kernel's own business.
type Kernel interface {
	Step(f Field, pts []geometry.Point, src, counter int) error
}

// Func adapts a function to the Kernel interface.
type Func func(f Field, pts []geometry.Point, src, counter int) error

// Step implements Kernel.
func (fn Func) Step(f Field, pts []geometry.Point, src, counter int) error {
	return fn(f, pts, src, counter)
}

// Domain is the global extent initial conditions are generated over.
type Domain struct {
	Rows int
	Cols int
	Vars int
}

// Initial produces the value of variable v at a global grid point.
type Initial interface {
	Value(v, row, col int) float64
}

// InitialFunc adapts a function to the Initial interface.
type InitialFunc func(v, row, col int) float64

// Value implements Initial.
func (fn InitialFunc) Value(v, row, col int) float64 { return fn(v, row, col) }

// CheckFinite reports a computation error for the first NaN or Inf written at
// level among pts.
func CheckFinite(f Field, pts []geometry.Point, level, vars int) error {
	for _, p := range pts {
		for v := 0; v < vars; v++ {
			x := f.At(level, v, p.Row, p.Col)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return runerr.New(runerr.Computation, "kernel",
					"non-finite value %v for variable %d at (%d,%d) level %d", x, v, p.Row, p.Col, level)
			}
		}
	}
	return nil
}
