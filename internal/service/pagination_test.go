package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNumPages(t *testing.T) {
	tests := []struct {
		itemCount, pageSize, want int
	}{
		{0, 5, 0},
		{1, 5, 0},
		{5, 5, 0},
		{6, 5, 2},
		{10, 5, 2},
		{11, 5, 3},
		{23, 5, 5},
		{7, 0, 0},
		{7, -3, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeNumPages(tt.itemCount, tt.pageSize), "itemCount=%d pageSize=%d", tt.itemCount, tt.pageSize)
	}
}

func TestPageBounds(t *testing.T) {
	offset, ok, err := pageBounds(3, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 15, offset)

	_, _, err = pageBounds(-1, 5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = pageBounds(0, 0)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "pageSize", inputErr.Field)

	_, ok, err = pageBounds(math.MaxInt, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}
