package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestIndexIntersecting(t *testing.T) {
	parcels := []orb.MultiPolygon{
		square(0, 0, 10),
		square(10, 0, 10),
		square(0, 10, 10),
		square(100, 100, 10),
		nil,
	}
	idx := NewIndex(parcels)

	// Straddles the boundary between parcels 0 and 1.
	assert.Equal(t, []int{0, 1}, idx.Intersecting(square(8, 2, 4)))
	// Inside parcel 3 only.
	assert.Equal(t, []int{3}, idx.Intersecting(square(102, 102, 1)))
	// Nowhere.
	assert.Empty(t, idx.Intersecting(square(50, 50, 1)))
	assert.Empty(t, idx.Intersecting(nil))
}
