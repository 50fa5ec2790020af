package geo

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// Index is an R-tree over polygon bounding boxes. Items are referred to by
// their position in the slice passed to NewIndex.
type Index struct {
	tree   rtree.RTreeG[int]
	shapes []orb.MultiPolygon
}

// NewIndex bulk-loads shapes into a new Index.
func NewIndex(shapes []orb.MultiPolygon) *Index {
	idx := &Index{shapes: shapes}
	for i, s := range shapes {
		if len(s) == 0 {
			continue
		}
		b := s.Bound()
		idx.tree.Insert([2]float64(b.Min), [2]float64(b.Max), i)
	}
	return idx
}

// Intersecting returns the positions of every indexed shape that intersects
// mp, in ascending order.
func (idx *Index) Intersecting(mp orb.MultiPolygon) []int {
	if len(mp) == 0 {
		return nil
	}
	b := mp.Bound()

	var hits []int
	idx.tree.Search([2]float64(b.Min), [2]float64(b.Max), func(_, _ [2]float64, i int) bool {
		if Intersects(mp, idx.shapes[i]) {
			hits = append(hits, i)
		}
		return true
	})
	sort.Ints(hits)
	return hits
}
