package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](5)

	// Push well beyond capacity; contents must equal the last 5 pushes
	// in arrival order.
	for i := 0; i < 12; i++ {
		r.Push(i)
	}

	assert.Equal(t, 5, r.Len())
	assert.Equal(t, []int{7, 8, 9, 10, 11}, r.Items())
}

func TestRingRecent(t *testing.T) {
	r := NewRing[int](10)
	for i := 0; i < 6; i++ {
		r.Push(i)
	}

	assert.Equal(t, []int{3, 4, 5}, r.Recent(3))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, r.Recent(0), "zero returns everything")
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, r.Recent(100), "overshoot returns everything")
}

func TestRingClear(t *testing.T) {
	r := NewRing[string](3)
	r.Push("a")
	r.Push("b")

	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Items())

	// Still usable after clearing.
	r.Push("c")
	assert.Equal(t, []string{"c"}, r.Items())
}

func TestRingCopiesOut(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1)
	r.Push(2)

	items := r.Items()
	items[0] = 99

	require.Equal(t, []int{1, 2}, r.Items())
}
