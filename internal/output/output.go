// Package output receives completed time levels from the scheduler.
//
// A write-out is the values of one full time level over one node's owned
// rows. Stores enforce that every node's write counters strictly increase,
// so a level once flushed is never rewritten.
package output

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/sweptgrid/internal/buffer"
)

// ErrNotMonotonic is returned when a node writes a counter it already wrote
// or one older than its last write.
var ErrNotMonotonic = errors.New("write counter is not monotonic")

// Slice is one write-out. Values are laid out variable, row, column.
type Slice struct {
	Rank         int          `msgpack:"rank"`
	WriteCounter int          `msgpack:"write_counter"`
	Level        int          `msgpack:"level"`
	Rows         buffer.Range `msgpack:"rows"`
	Cols         buffer.Range `msgpack:"cols"`
	Vars         int          `msgpack:"vars"`
	Values       []float64    `msgpack:"values"`
}

// Validate checks the slice is internally consistent.
func (s Slice) Validate() error {
	want := s.Vars * s.Rows.Len() * s.Cols.Len()
	if want <= 0 || len(s.Values) != want {
		return fmt.Errorf("slice of %d values for %d vars x rows %+v x cols %+v", len(s.Values), s.Vars, s.Rows, s.Cols)
	}
	return nil
}

// Writer is the output collaborator.
type Writer interface {
	WriteSlice(ctx context.Context, s Slice) error
}

// monotonic tracks the last write counter per rank. It is not safe for
// concurrent use on its own.
type monotonic struct {
	last map[int]int
}

func (m *monotonic) accept(s Slice) error {
	if m.last == nil {
		m.last = make(map[int]int)
	}
	if last, ok := m.last[s.Rank]; ok && s.WriteCounter <= last {
		return fmt.Errorf("rank %d wrote counter %d after %d: %w", s.Rank, s.WriteCounter, last, ErrNotMonotonic)
	}
	m.last[s.Rank] = s.WriteCounter
	return nil
}
