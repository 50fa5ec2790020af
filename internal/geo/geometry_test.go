package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func square(x, y, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{orb.Ring{
		{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y},
	}}}
}

func TestAreaAndCentroid(t *testing.T) {
	sq := square(10, 20, 4)

	assert.InDelta(t, 16.0, Area(sq), 1e-9)
	c := Centroid(sq)
	assert.InDelta(t, 12.0, c[0], 1e-9)
	assert.InDelta(t, 22.0, c[1], 1e-9)
}

func TestIntersects(t *testing.T) {
	base := square(0, 0, 10)

	cases := []struct {
		name  string
		other orb.MultiPolygon
		want  bool
	}{
		{"overlapping", square(5, 5, 10), true},
		{"contained", square(2, 2, 2), true},
		{"containing", square(-5, -5, 30), true},
		{"touching edge", square(10, 0, 5), true},
		{"touching corner", square(10, 10, 5), true},
		{"disjoint", square(20, 20, 5), false},
		{"bbox overlap only", orb.MultiPolygon{{orb.Ring{{8, 14}, {14, 14}, {14, 8}, {8, 14}}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Intersects(base, tc.other))
			assert.Equal(t, tc.want, Intersects(tc.other, base))
		})
	}
}

func TestIntersectsRespectsHoles(t *testing.T) {
	donut := orb.MultiPolygon{{
		orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}},
		orb.Ring{{3, 3}, {7, 3}, {7, 7}, {3, 7}, {3, 3}},
	}}

	assert.False(t, Intersects(donut, square(4, 4, 2)))
	assert.True(t, Intersects(donut, square(2, 4, 2)))
}

func TestAsMultiPolygon(t *testing.T) {
	poly := orb.Polygon{orb.Ring{{0, 0}, {0, 1}, {1, 1}, {0, 0}}}

	mp, ok := AsMultiPolygon(poly)
	assert.True(t, ok)
	assert.Len(t, mp, 1)

	_, ok = AsMultiPolygon(orb.Point{1, 2})
	assert.False(t, ok)
}
