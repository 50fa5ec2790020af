package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToStatePlaneOrigin(t *testing.T) {
	pt := ToStatePlane(lon0Deg, phi0Deg)

	assert.InDelta(t, spFalseEasting, pt[0], 1e-6)
	assert.InDelta(t, spFalseNorthing, pt[1], 1e-6)
}

func TestStatePlaneRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		lon, lat float64
	}{
		{"allston", -71.1313, 42.3539},
		{"brighton center", -71.1506, 42.3484},
		{"cape cod", -70.2962, 41.6688},
		{"pittsfield", -73.2454, 42.4501},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lon, lat := ToWGS84(ToStatePlane(tc.lon, tc.lat))
			assert.InDelta(t, tc.lon, lon, 1e-6)
			assert.InDelta(t, tc.lat, lat, 1e-6)
		})
	}
}

func TestToStatePlaneOrientation(t *testing.T) {
	west := ToStatePlane(-71.2, 42.35)
	east := ToStatePlane(-71.1, 42.35)
	south := ToStatePlane(-71.15, 42.30)
	north := ToStatePlane(-71.15, 42.40)

	assert.Greater(t, east[0], west[0])
	assert.Greater(t, north[1], south[1])
	// 0.1 degree of longitude at 42.35N is roughly 8.2 km.
	assert.InDelta(t, 8230, east[0]-west[0], 60)
}
