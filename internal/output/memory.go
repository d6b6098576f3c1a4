package output

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Memory assembles the global field of every write counter in memory. It is
// shared by all nodes of an in-process run.
type Memory struct {
	rows, cols, vars int

	mu     sync.Mutex
	mono   monotonic
	fields map[int][]float64
	levels map[int]int
	writes map[int]int
}

// NewMemory creates a store for a rows x cols domain with vars variables.
func NewMemory(rows, cols, vars int) *Memory {
	return &Memory{
		rows: rows, cols: cols, vars: vars,
		fields: make(map[int][]float64),
		levels: make(map[int]int),
		writes: make(map[int]int),
	}
}

// WriteSlice implements Writer.
func (m *Memory) WriteSlice(_ context.Context, s Slice) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Vars != m.vars || s.Rows.Lo < 0 || s.Rows.Hi > m.rows || s.Cols.Lo < 0 || s.Cols.Hi > m.cols {
		return fmt.Errorf("slice rows %+v cols %+v vars %d outside a %dx%dx%d domain", s.Rows, s.Cols, s.Vars, m.vars, m.rows, m.cols)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.mono.accept(s); err != nil {
		return err
	}
	field, ok := m.fields[s.WriteCounter]
	if !ok {
		field = make([]float64, m.vars*m.rows*m.cols)
		m.fields[s.WriteCounter] = field
		m.levels[s.WriteCounter] = s.Level
	}
	i := 0
	for v := 0; v < s.Vars; v++ {
		for r := s.Rows.Lo; r < s.Rows.Hi; r++ {
			off := (v*m.rows+r)*m.cols + s.Cols.Lo
			i += copy(field[off:off+s.Cols.Len()], s.Values[i:])
		}
	}
	m.writes[s.Rank]++
	return nil
}

// Counters returns the write counters seen so far, ascending.
func (m *Memory) Counters() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.fields))
	for c := range m.fields {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Field returns a copy of the global field for a write counter, laid out
// variable, row, column.
func (m *Memory) Field(counter int) ([]float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fields[counter]
	if !ok {
		return nil, false
	}
	return slices.Clone(f), true
}

// At returns one value of a write counter's field.
func (m *Memory) At(counter, v, row, col int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fields[counter][(v*m.rows+row)*m.cols+col]
}

// Level returns the time level a write counter holds.
func (m *Memory) Level(counter int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[counter]
}

// Writes returns how many slices a rank wrote.
func (m *Memory) Writes(rank int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[rank]
}
