package runerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_KeepsExistingKind(t *testing.T) {
	// Arrange
	inner := New(Computation, "kernel", "value at (%d,%d) is NaN", 1, 2)

	// Act
	err := Wrap(Communication, "barrier", fmt.Errorf("phase failed: %w", inner))

	// Assert
	require.Error(t, err)
	assert.True(t, IsKind(err, Computation))
	assert.Contains(t, err.Error(), "computation error in kernel")
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(Resource, "devices", nil))
}

func TestErrorsIs_MatchesKind(t *testing.T) {
	err := fmt.Errorf("setup: %w", New(Configuration, "partition", "rows %d not divisible by %d", 30, 8))

	assert.True(t, errors.Is(err, &Error{Kind: Configuration}))
	assert.True(t, errors.Is(err, &Error{Kind: Configuration, Op: "partition"}))
	assert.False(t, errors.Is(err, &Error{Kind: Configuration, Op: "geometry"}))
	assert.False(t, errors.Is(err, &Error{Kind: Resource}))
}

func TestKindOf_Untyped(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "kind(0)", Kind(0).String())
}
