package resolve

import (
	"sort"

	"github.com/paulmach/orb"

	"parcellink/internal/geo"
	"parcellink/internal/types"
)

// Linker answers "which parcels does this footprint touch" against an
// R-tree over the parcel layer.
type Linker struct {
	parcels []types.Parcel
	index   *geo.Index
}

// NewLinker indexes parcels. Parcels and the buildings later passed to Link
// must share a coordinate reference system.
func NewLinker(parcels []types.Parcel) *Linker {
	shapes := make([]orb.MultiPolygon, len(parcels))
	for i, p := range parcels {
		shapes[i] = p.Footprint
	}
	return &Linker{
		parcels: parcels,
		index:   geo.NewIndex(shapes),
	}
}

// Link returns the parcels whose footprint intersects b, one entry per
// parcel id, ordered by parcel id. When several polygons share a parcel id
// the first one in layer order is returned.
func (l *Linker) Link(b types.Building) []types.Parcel {
	hits := l.index.Intersecting(b.Footprint)
	if len(hits) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(hits))
	out := make([]types.Parcel, 0, len(hits))
	for _, i := range hits {
		p := l.parcels[i]
		if seen[p.ParcelID] {
			continue
		}
		seen[p.ParcelID] = true
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ParcelID < out[j].ParcelID
	})
	return out
}
