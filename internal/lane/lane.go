// Package lane dispatches phases to the compute resources of a node.
//
// A node's owned rows are split into bands at partition time; every band is
// served by exactly one Lane, either the CPU worker pool or one device. The
// scheduler dispatches every phase to every lane and waits for all of them.
package lane

import (
	"context"
	"fmt"

	"github.com/specialistvlad/sweptgrid/internal/buffer"
	"github.com/specialistvlad/sweptgrid/internal/geometry"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
)

// Kind identifies a lane implementation.
type Kind int

const (
	CPU Kind = iota
	GPU
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == GPU {
		return "gpu"
	}
	return "cpu"
}

// Phase is one dispatchable unit of the schedule: a sequence of index sets
// applied to every block, starting from level Counter. Set i produces level
// Counter+i+1.
type Phase struct {
	Name      string
	Counter   int
	Sets      []geometry.Set
	ColOffset int
}

// Levels returns the range of levels the phase produces.
func (p Phase) Levels() buffer.Range {
	return buffer.Range{Lo: p.Counter + 1, Hi: p.Counter + len(p.Sets) + 1}
}

// Lane runs phases over its band of blocks.
type Lane interface {
	Kind() Kind
	// Rows is the band of buffer rows this lane owns.
	Rows() buffer.Range
	Dispatch(ctx context.Context, p Phase) error
	Close() error
}

// Config is shared by both lane kinds.
type Config struct {
	Host      *buffer.Buffer
	Rows      buffer.Range
	BlockSize int
	Kernel    kernel.Kernel
	Params    kernel.Params
}

func (c Config) blocks() []geometry.Block {
	return geometry.Blocks(c.Rows.Lo, c.Rows.Hi, c.Host.Spec().Cols, c.BlockSize)
}

// runBlock advances one block through every set of the phase.
func runBlock(f kernel.Field, cfg Config, p Phase, b geometry.Block, scratch []geometry.Point) ([]geometry.Point, error) {
	cols := cfg.Host.Spec().Cols
	for i, set := range p.Sets {
		counter := p.Counter + i + 1
		scratch = geometry.Place(scratch, set, b, p.ColOffset, cols)
		if err := cfg.Kernel.Step(f, scratch, counter-1, counter); err != nil {
			return scratch, runerr.Wrap(runerr.Computation, "kernel",
				fmt.Errorf("%s block (%d,%d) level %d: %w", p.Name, b.Row, b.Col, counter, err))
		}
		if err := kernel.CheckFinite(f, scratch, counter, cfg.Params.Vars); err != nil {
			return scratch, fmt.Errorf("%s block (%d,%d): %w", p.Name, b.Row, b.Col, err)
		}
	}
	return scratch, nil
}
