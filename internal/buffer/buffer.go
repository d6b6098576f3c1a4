// Package buffer implements the shared time buffer: a ring of time levels over
// a node's owned rows plus halo padding.
//
// Level l lives in slot l mod capacity. Columns are periodic and addressed
// modulo the column count, so no column halo is stored. The buffer does no
// locking; callers guarantee that concurrent writers address disjoint cells.
package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrLevelEvicted is returned when a level is outside the live window.
	ErrLevelEvicted = errors.New("time level outside the live window")
	// ErrOutOfRange is returned for regions outside the stored rows or columns.
	ErrOutOfRange = errors.New("region out of range")
	// ErrShape is returned when two buffers or a buffer and a strip disagree
	// on capacity, variables, columns or base level.
	ErrShape = errors.New("shape mismatch")
)

// Range is a half-open interval [Lo, Hi).
type Range struct {
	Lo int `msgpack:"lo"`
	Hi int `msgpack:"hi"`
}

// Len returns Hi-Lo.
func (r Range) Len() int { return r.Hi - r.Lo }

// Contains reports whether o lies within r.
func (r Range) Contains(o Range) bool { return o.Lo >= r.Lo && o.Hi <= r.Hi && o.Lo <= o.Hi }

// Spec describes the shape of a buffer.
type Spec struct {
	Capacity int
	Vars     int
	Cols     int
	// Owned is the row range the buffer is responsible for. Rows are stored
	// from Owned.Lo-Halo to Owned.Hi+Halo.
	Owned Range
	Halo  int
}

// Region is a rectangle of rows and columns, all variables.
type Region struct {
	Rows Range
	Cols Range
}

// Buffer is the time-level ring.
type Buffer struct {
	spec   Spec
	stored Range
	base   int
	data   []float64
}

// New allocates a zeroed buffer.
func New(spec Spec) (*Buffer, error) {
	if spec.Capacity < 1 || spec.Vars < 1 || spec.Cols < 1 {
		return nil, fmt.Errorf("invalid buffer spec %+v", spec)
	}
	if spec.Owned.Len() < 0 || spec.Halo < 0 {
		return nil, fmt.Errorf("invalid buffer rows %+v halo %d", spec.Owned, spec.Halo)
	}
	stored := Range{Lo: spec.Owned.Lo - spec.Halo, Hi: spec.Owned.Hi + spec.Halo}
	return &Buffer{
		spec:   spec,
		stored: stored,
		data:   make([]float64, spec.Capacity*spec.Vars*stored.Len()*spec.Cols),
	}, nil
}

// Spec returns the buffer shape.
func (b *Buffer) Spec() Spec { return b.spec }

// Owned returns the owned row range.
func (b *Buffer) Owned() Range { return b.spec.Owned }

// Stored returns the stored row range including halo rows.
func (b *Buffer) Stored() Range { return b.stored }

// Base returns the oldest live level.
func (b *Buffer) Base() int { return b.base }

// Window returns the live level range [base, base+capacity).
func (b *Buffer) Window() Range { return Range{Lo: b.base, Hi: b.base + b.spec.Capacity} }

// Bytes returns the size of the backing array.
func (b *Buffer) Bytes() uint64 { return uint64(len(b.data)) * 8 }

func (b *Buffer) index(level, v, row, col int) int {
	slot := level % b.spec.Capacity
	col %= b.spec.Cols
	if col < 0 {
		col += b.spec.Cols
	}
	return ((slot*b.spec.Vars+v)*b.stored.Len()+(row-b.stored.Lo))*b.spec.Cols + col
}

// rowSpan returns the offset of (slot, v, row, 0) and is used for bulk copies.
func (b *Buffer) rowSpan(slot, v, row int) int {
	return ((slot*b.spec.Vars+v)*b.stored.Len() + (row - b.stored.Lo)) * b.spec.Cols
}

// At returns the value of variable v at (row, col) for a level. It performs
// no window checks.
func (b *Buffer) At(level, v, row, col int) float64 {
	return b.data[b.index(level, v, row, col)]
}

// Set stores a value. It performs no window checks.
func (b *Buffer) Set(level, v, row, col int, x float64) {
	b.data[b.index(level, v, row, col)] = x
}

func (b *Buffer) check(level int, reg Region) error {
	if !b.Window().Contains(Range{Lo: level, Hi: level + 1}) {
		return fmt.Errorf("level %d, window %v: %w", level, b.Window(), ErrLevelEvicted)
	}
	if !b.stored.Contains(reg.Rows) || !(Range{Hi: b.spec.Cols}).Contains(reg.Cols) {
		return fmt.Errorf("region %+v: %w", reg, ErrOutOfRange)
	}
	return nil
}

// Read copies a region of one level, laid out variable, row, column.
func (b *Buffer) Read(level int, reg Region) ([]float64, error) {
	if err := b.check(level, reg); err != nil {
		return nil, err
	}
	out := make([]float64, 0, b.spec.Vars*reg.Rows.Len()*reg.Cols.Len())
	slot := level % b.spec.Capacity
	for v := 0; v < b.spec.Vars; v++ {
		for r := reg.Rows.Lo; r < reg.Rows.Hi; r++ {
			off := b.rowSpan(slot, v, r)
			out = append(out, b.data[off+reg.Cols.Lo:off+reg.Cols.Hi]...)
		}
	}
	return out, nil
}

// Write stores values laid out as Read returns them.
func (b *Buffer) Write(level int, reg Region, values []float64) error {
	if err := b.check(level, reg); err != nil {
		return err
	}
	want := b.spec.Vars * reg.Rows.Len() * reg.Cols.Len()
	if len(values) != want {
		return fmt.Errorf("got %d values for region %+v, want %d: %w", len(values), reg, want, ErrShape)
	}
	slot := level % b.spec.Capacity
	i := 0
	for v := 0; v < b.spec.Vars; v++ {
		for r := reg.Rows.Lo; r < reg.Rows.Hi; r++ {
			off := b.rowSpan(slot, v, r)
			i += copy(b.data[off+reg.Cols.Lo:off+reg.Cols.Hi], values[i:])
		}
	}
	return nil
}

// Roll advances the window by shift levels, discarding the oldest ones.
func (b *Buffer) Roll(shift int) error {
	if shift < 0 {
		return fmt.Errorf("cannot roll by %d levels", shift)
	}
	b.base += shift
	return nil
}

// RollTo advances the window so that level becomes the oldest live level.
// Earlier targets are ignored.
func (b *Buffer) RollTo(level int) {
	if level > b.base {
		b.base = level
	}
}
