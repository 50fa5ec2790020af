package voters

import (
	"github.com/mmcloughlin/geohash"
	"github.com/umahmood/haversine"

	"parcellink/internal/geo"
	"parcellink/internal/types"
)

// cellIndex buckets building centroids by geohash so a point's candidate
// buildings are those in its own cell and the eight around it. The cell
// must be at least maxDistanceM wide for that to be exhaustive.
type cellIndex struct {
	chars uint
	cells map[string][]centroid
}

type centroid struct {
	structID string
	coord    haversine.Coord
}

// cellChars picks the longest geohash whose cells at Boston's latitude are
// still wider than maxDistanceM. 7 chars is about 113 x 153 m, 6 chars
// about 0.9 x 1.2 km, 5 chars about 3.6 x 4.9 km.
func cellChars(maxDistanceM float64) uint {
	switch {
	case maxDistanceM <= 100:
		return 7
	case maxDistanceM <= 800:
		return 6
	default:
		return 5
	}
}

func newCellIndex(buildings []types.Building, maxDistanceM float64) *cellIndex {
	idx := &cellIndex{
		chars: cellChars(maxDistanceM),
		cells: make(map[string][]centroid),
	}
	for _, b := range buildings {
		if len(b.Footprint) == 0 {
			continue
		}
		lon, lat := geo.ToWGS84(b.Centroid)
		cell := geohash.EncodeWithPrecision(lat, lon, idx.chars)
		idx.cells[cell] = append(idx.cells[cell], centroid{
			structID: b.StructID,
			coord:    haversine.Coord{Lat: lat, Lon: lon},
		})
	}
	return idx
}

// nearest returns the closest building within maxDistanceM of (lat, lon).
// Equal distances go to the lower struct id.
func (idx *cellIndex) nearest(lat, lon, maxDistanceM float64) (string, float64, bool) {
	cell := geohash.EncodeWithPrecision(lat, lon, idx.chars)
	from := haversine.Coord{Lat: lat, Lon: lon}

	var (
		best     string
		bestDist float64
		found    bool
	)
	for _, c := range append(geohash.Neighbors(cell), cell) {
		for _, cand := range idx.cells[c] {
			_, km := haversine.Distance(from, cand.coord)
			d := km * 1000
			if d > maxDistanceM {
				continue
			}
			if !found || d < bestDist || (d == bestDist && cand.structID < best) {
				best, bestDist, found = cand.structID, d, true
			}
		}
	}
	return best, bestDist, found
}
