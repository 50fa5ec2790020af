package resolve

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcellink/internal/types"
)

func TestLinkSortedAndDeduplicated(t *testing.T) {
	parcels := append(fixtureParcels(),
		// second polygon of P2 (condo footprint) overlapping the first
		types.Parcel{ParcelID: "2100002000", LocID: "L2b", Footprint: square(12, 2, 2)},
	)
	l := NewLinker(parcels)

	got := l.Link(building("B", nil, square(8, 1, 6)))
	require.Len(t, got, 2)
	assert.Equal(t, "2100001000", got[0].ParcelID)
	assert.Equal(t, "2100002000", got[1].ParcelID)
	assert.Equal(t, "L2", got[1].LocID)
}

func TestMergeKeepsBuildingWithoutParcelAsNullRow(t *testing.T) {
	log, _ := test.NewNullLogger()

	rows, _ := NewMerger(NewExtractor("Bos"), log).Merge([]types.Building{
		building("B1", nil, square(18, 2, 4)),
		building("B2", nil, square(50, 50, 1)),
	}, fixtureParcels())
	require.Len(t, rows, 3)

	assert.Equal(t, "B1", rows[0].StructID)
	assert.Equal(t, "2100002000", *rows[0].ParcelID)
	assert.Equal(t, "2100003000", *rows[1].ParcelID)
	assert.Equal(t, "B2", rows[2].StructID)
	assert.Nil(t, rows[2].ParcelID)
	assert.Equal(t, types.ProvenanceUnmapped, rows[2].Provenance)
}
