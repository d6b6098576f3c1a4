// Package geometry builds the index sets the swept decomposition advances a
// block through.
//
// All sets are expressed in block-local coordinates [0, blockSize)². Up and
// Y-bridge sets sit on the block itself; X-bridge and down sets are centred on
// the block corner and are placed with a half-block row and/or column offset
// by the scheduler. For a given sub-step k the four shapes tile the block
// exactly once.
package geometry

import (
	"github.com/specialistvlad/sweptgrid/internal/runerr"
)

// Point is a (row, col) offset.
type Point struct {
	Row int
	Col int
}

// Set is an ordered, row-major list of points valid for one sub-step.
type Set []Point

// Geometry bundles every set sequence for one (blockSize, ops) pair.
type Geometry struct {
	BlockSize int
	Ops       int
	MPSS      int

	Up         []Set
	Down       []Set
	XBridge    []Set
	YBridge    []Set
	Octahedron []Set
}

// MPSS returns the number of sub-steps a block can advance before its
// interior vanishes.
func MPSS(blockSize, ops int) (int, error) {
	if ops < 1 {
		return 0, runerr.New(runerr.Configuration, "geometry", "ops must be at least 1, got %d", ops)
	}
	if blockSize <= 0 || blockSize%2 != 0 {
		return 0, runerr.New(runerr.Configuration, "geometry", "block size must be a positive even number, got %d", blockSize)
	}
	m := blockSize/(2*ops) - 1
	if m < 1 {
		return 0, runerr.New(runerr.Configuration, "geometry", "block size %d is too small for ops %d", blockSize, ops)
	}
	return m, nil
}

// Build computes all set sequences.
func Build(blockSize, ops int) (*Geometry, error) {
	m, err := MPSS(blockSize, ops)
	if err != nil {
		return nil, err
	}
	up, _ := UpSets(blockSize, ops)
	down, _ := DownSets(blockSize, ops)
	xb, yb, _ := BridgeSets(blockSize, ops)
	oct, _ := OctahedronSets(blockSize, ops)
	return &Geometry{
		BlockSize:  blockSize,
		Ops:        ops,
		MPSS:       m,
		Up:         up,
		Down:       down,
		XBridge:    xb,
		YBridge:    yb,
		Octahedron: oct,
	}, nil
}

// UpSets returns the shrinking pyramid: set k covers [k·ops, bs-k·ops)².
func UpSets(blockSize, ops int) ([]Set, error) {
	m, err := MPSS(blockSize, ops)
	if err != nil {
		return nil, err
	}
	sets := make([]Set, m)
	for k := 1; k <= m; k++ {
		lo, hi := k*ops, blockSize-k*ops
		sets[k-1] = rect(lo, hi, lo, hi)
	}
	return sets, nil
}

// DownSets returns the expanding pyramid centred on the block midpoint.
func DownSets(blockSize, ops int) ([]Set, error) {
	m, err := MPSS(blockSize, ops)
	if err != nil {
		return nil, err
	}
	half := blockSize / 2
	sets := make([]Set, m)
	for k := 1; k <= m; k++ {
		lo, hi := half-k*ops, half+k*ops
		sets[k-1] = rect(lo, hi, lo, hi)
	}
	return sets, nil
}

// BridgeSets returns the x-oriented and y-oriented wing families. The x
// family grows in rows and shrinks in columns, the y family the reverse.
func BridgeSets(blockSize, ops int) (x, y []Set, err error) {
	m, err := MPSS(blockSize, ops)
	if err != nil {
		return nil, nil, err
	}
	half := blockSize / 2
	x = make([]Set, m)
	y = make([]Set, m)
	for k := 1; k <= m; k++ {
		grow0, grow1 := half-k*ops, half+k*ops
		shrink0, shrink1 := k*ops, blockSize-k*ops
		x[k-1] = rect(grow0, grow1, shrink0, shrink1)
		y[k-1] = rect(shrink0, shrink1, grow0, grow1)
	}
	return x, y, nil
}

// OctahedronSets is the down pyramid followed by the up pyramid.
func OctahedronSets(blockSize, ops int) ([]Set, error) {
	down, err := DownSets(blockSize, ops)
	if err != nil {
		return nil, err
	}
	up, _ := UpSets(blockSize, ops)
	oct := make([]Set, 0, len(down)+len(up))
	oct = append(oct, down...)
	return append(oct, up...), nil
}

func rect(r0, r1, c0, c1 int) Set {
	if r1 <= r0 || c1 <= c0 {
		return Set{}
	}
	s := make(Set, 0, (r1-r0)*(c1-c0))
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			s = append(s, Point{Row: r, Col: c})
		}
	}
	return s
}

// Full returns the whole block as one set, the only set a conventional
// (non-swept) step needs.
func Full(blockSize int) Set {
	return rect(0, blockSize, 0, blockSize)
}
