package gaussian

import (
	"math"
	"testing"

	"github.com/specialistvlad/sweptgrid/internal/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBump_Value(t *testing.T) {
	// Arrange
	d := kernel.Domain{Rows: 8, Cols: 16, Vars: 1}

	// Act
	b, err := New(&Args{Amplitude: 2, Sigma: 1, Center: []float64{4, 1}, Background: 0.5}, d)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2.5, b.Value(0, 4, 1), "peak at the center")
	assert.Equal(t, b.Value(0, 4, 3), b.Value(0, 4, 15), "columns wrap")
	assert.InDelta(t, 0.5+2*math.Exp(-0.5), b.Value(0, 5, 1), 1e-12)
}

func TestBump_DefaultCenter(t *testing.T) {
	b, err := New(&Args{Amplitude: 1, Sigma: 2}, kernel.Domain{Rows: 8, Cols: 16, Vars: 1})

	require.NoError(t, err)
	assert.Equal(t, 1.0, b.Value(0, 4, 8))
}

func TestNew_Errors(t *testing.T) {
	d := kernel.Domain{Rows: 8, Cols: 8, Vars: 1}

	_, err := New(&Args{Amplitude: 1}, d)
	assert.EqualError(t, err, "sigma must be positive, got 0")

	_, err = New(&Args{Amplitude: 1, Sigma: 1, Center: []float64{1, 2, 3}}, d)
	assert.EqualError(t, err, "center must be [row, col], got 3 values")
}
