package output

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/sweptgrid/internal/buffer"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slice(rank, counter int, rows buffer.Range, fill float64) Slice {
	vals := make([]float64, rows.Len()*2)
	for i := range vals {
		vals[i] = fill
	}
	return Slice{Rank: rank, WriteCounter: counter, Level: 2 * counter, Rows: rows, Cols: buffer.Range{Hi: 2}, Vars: 1, Values: vals}
}

func TestMemory_AssemblesGlobalField(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4, 2, 1)

	require.NoError(t, m.WriteSlice(ctx, slice(0, 0, buffer.Range{Lo: 0, Hi: 2}, 1)))
	require.NoError(t, m.WriteSlice(ctx, slice(1, 0, buffer.Range{Lo: 2, Hi: 4}, 2)))
	require.NoError(t, m.WriteSlice(ctx, slice(0, 1, buffer.Range{Lo: 0, Hi: 2}, 3)))

	f, ok := m.Field(0)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 1, 1, 1, 2, 2, 2, 2}, f)
	assert.Equal(t, []int{0, 1}, m.Counters())
	assert.Equal(t, 3.0, m.At(1, 0, 1, 1))
	assert.Equal(t, 2, m.Level(1))
	assert.Equal(t, 2, m.Writes(0))
	_, ok = m.Field(7)
	assert.False(t, ok)
}

func TestMemory_RejectsRewrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4, 2, 1)
	require.NoError(t, m.WriteSlice(ctx, slice(0, 1, buffer.Range{Hi: 2}, 1)))

	assert.ErrorIs(t, m.WriteSlice(ctx, slice(0, 1, buffer.Range{Hi: 2}, 1)), ErrNotMonotonic)
	assert.ErrorIs(t, m.WriteSlice(ctx, slice(0, 0, buffer.Range{Hi: 2}, 1)), ErrNotMonotonic)
	assert.NoError(t, m.WriteSlice(ctx, slice(1, 0, buffer.Range{Lo: 2, Hi: 4}, 1)), "ranks are tracked independently")
	assert.Error(t, m.WriteSlice(ctx, slice(1, 1, buffer.Range{Lo: 2, Hi: 6}, 1)), "outside the domain")

	bad := slice(0, 5, buffer.Range{Hi: 2}, 1)
	bad.Values = bad.Values[:1]
	assert.Error(t, m.WriteSlice(ctx, bad))
}

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	w, err := NewFile(dir, 3)
	require.NoError(t, err)
	want := []Slice{slice(3, 0, buffer.Range{Lo: 8, Hi: 10}, 0.5), slice(3, 1, buffer.Range{Lo: 8, Hi: 10}, 1.5)}

	for _, s := range want {
		require.NoError(t, w.WriteSlice(ctx, s))
	}
	assert.ErrorIs(t, w.WriteSlice(ctx, want[0]), ErrNotMonotonic)
	require.NoError(t, w.Close())

	got, err := ReadFile(FileName(dir, 3))
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadFile mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, FileName(dir, 3), w.Path())
}

func TestSummarize(t *testing.T) {
	st := Summarize([]float64{1, -2, 4})
	assert.Equal(t, Stats{Min: -2, Max: 4, Mean: 1}, st)

	empty := Summarize(nil)
	assert.True(t, math.IsNaN(empty.Mean))
}

type countingRecorder map[int]int

func (c countingRecorder) WriteOut(rank int) { c[rank]++ }

func TestLogged(t *testing.T) {
	var logs bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))
	rec := countingRecorder{}
	w := Logged{Next: NewMemory(2, 2, 1), Recorder: rec}

	require.NoError(t, w.WriteSlice(ctx, slice(0, 0, buffer.Range{Hi: 2}, 7)))

	assert.Equal(t, 1, rec[0])
	assert.Contains(t, logs.String(), "write_counter=0")
	assert.Contains(t, logs.String(), "max=7")
}
