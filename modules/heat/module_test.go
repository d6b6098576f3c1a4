package heat

import (
	"testing"

	"github.com/specialistvlad/sweptgrid/internal/buffer"
	"github.com/specialistvlad/sweptgrid/internal/geometry"
	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spike returns a 5x5 field, zero except for 1 at (2,2) on level 0.
func spike(t *testing.T) (*buffer.Buffer, []geometry.Point) {
	t.Helper()
	b, err := buffer.New(buffer.Spec{Capacity: 3, Vars: 1, Cols: 5, Owned: buffer.Range{Hi: 5}, Halo: 1})
	require.NoError(t, err)
	b.Set(0, 0, 2, 2, 1)
	var pts []geometry.Point
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			pts = append(pts, geometry.Point{Row: r, Col: c})
		}
	}
	return b, pts
}

func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		args    Args
		params  kernel.Params
		wantErr string
	}{
		{name: "negative alpha", args: Args{Alpha: -1, Dx: 1}, params: kernel.Params{Ops: 1, TSO: 1, Dt: 0.1}, wantErr: "alpha must not be negative"},
		{name: "zero dx", args: Args{Alpha: 1}, params: kernel.Params{Ops: 1, TSO: 1, Dt: 0.1}, wantErr: "dx must be positive"},
		{name: "no stencil room", args: Args{Alpha: 1, Dx: 1}, params: kernel.Params{TSO: 1, Dt: 0.1}, wantErr: "needs ops >= 1"},
		{name: "tso 3", args: Args{Alpha: 1, Dx: 1}, params: kernel.Params{Ops: 1, TSO: 3, Dt: 0.1}, wantErr: "tso must be 1 or 2"},
		{name: "unstable", args: Args{Alpha: 1, Dx: 1}, params: kernel.Params{Ops: 1, TSO: 1, Dt: 0.5}, wantErr: "exceeds the stability limit"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(&tc.args, tc.params)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestKernel_ForwardEuler(t *testing.T) {
	// Arrange
	b, pts := spike(t)
	k, err := New(&Args{Alpha: 0.1, Dx: 1}, kernel.Params{Ops: 1, TSO: 1, Vars: 1, Dt: 1})
	require.NoError(t, err)

	// Act
	require.NoError(t, k.Step(b, pts, 0, 1))

	// Assert
	assert.InDelta(t, 0.6, b.At(1, 0, 2, 2), 1e-12)
	assert.InDelta(t, 0.1, b.At(1, 0, 1, 2), 1e-12)
	assert.InDelta(t, 0.1, b.At(1, 0, 2, 3), 1e-12)
	assert.Equal(t, 0.0, b.At(1, 0, 1, 1))
}

func TestKernel_MidpointStep(t *testing.T) {
	// Arrange
	b, pts := spike(t)
	k, err := New(&Args{Alpha: 0.1, Dx: 1}, kernel.Params{Ops: 1, TSO: 2, Vars: 1, Dt: 1})
	require.NoError(t, err)

	// Act
	require.NoError(t, k.Step(b, pts, 0, 1))
	require.NoError(t, k.Step(b, pts, 1, 2))

	// Assert
	assert.InDelta(t, 0.8, b.At(1, 0, 2, 2), 1e-12, "predictor")
	assert.InDelta(t, 0.05, b.At(1, 0, 2, 1), 1e-12, "predictor")
	assert.InDelta(t, 0.7, b.At(2, 0, 2, 2), 1e-12)
}

func TestKernel_ConstantFieldIsSteady(t *testing.T) {
	b, pts := spike(t)
	for r := -1; r <= 5; r++ {
		for c := 0; c < 5; c++ {
			b.Set(0, 0, r, c, 3)
		}
	}
	k, err := New(&Args{Alpha: 0.2, Dx: 1}, kernel.Params{Ops: 1, TSO: 1, Vars: 1, Dt: 1})
	require.NoError(t, err)

	require.NoError(t, k.Step(b, pts, 0, 1))

	for _, p := range pts {
		require.Equal(t, 3.0, b.At(1, 0, p.Row, p.Col))
	}
}
