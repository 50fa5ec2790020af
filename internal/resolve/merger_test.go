package resolve

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcellink/internal/geo"
	"parcellink/internal/types"
)

func square(x, y, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y}}}}
}

func building(id string, localID *string, fp orb.MultiPolygon) types.Building {
	return types.Building{StructID: id, LocalID: localID, Footprint: fp, AreaSqFt: geo.Area(fp) * geo.SqFtPerSqM}
}

// Parcels P1 [0,10]x[0,10], P2 [10,20]x[0,10], P3 [20,30]x[0,10].
func fixtureParcels() []types.Parcel {
	return []types.Parcel{
		{ParcelID: "2100003000", LocID: "L3", Footprint: square(20, 0, 10)},
		{ParcelID: "2100001000", LocID: "L1", Footprint: square(0, 0, 10)},
		{ParcelID: "2100002000", LocID: "L2", Footprint: square(10, 0, 10)},
	}
}

func rowsFor(rows []types.Mapping, structID string) []types.Mapping {
	var out []types.Mapping
	for _, r := range rows {
		if r.StructID == structID {
			out = append(out, r)
		}
	}
	return out
}

func TestMerge(t *testing.T) {
	log, hook := test.NewNullLogger()
	parcels := fixtureParcels()

	buildings := []types.Building{
		// official id wins even though the footprint sits on P2 and P3
		building("B1", strPtr("Bos_2100001000_B0"), square(18, 2, 4)),
		building("B2", strPtr("Bos_2100001000_B1"), square(2, 2, 2)),
		// no local id, straddles P2/P3
		building("B3", nil, square(18, 2, 4)),
		// official id unknown, footprint on P1
		building("B4", strPtr("Bos_9999999999_B0"), square(4, 4, 1)),
		// unknown official id and nothing underneath
		building("B5", strPtr("Bos_9999999999_B1"), square(100, 100, 1)),
		// nothing at all
		building("B6", strPtr("garbage"), square(200, 200, 1)),
	}

	rows, stats := NewMerger(NewExtractor("Bos"), log).Merge(buildings, parcels)

	b1 := rowsFor(rows, "B1")
	require.Len(t, b1, 1)
	assert.Equal(t, types.ProvenanceOfficial, b1[0].Provenance)
	assert.Equal(t, "2100001000", *b1[0].ParcelID)
	assert.Equal(t, "L1", b1[0].ParcelLocID)

	b3 := rowsFor(rows, "B3")
	require.Len(t, b3, 2)
	assert.Equal(t, "2100002000", *b3[0].ParcelID)
	assert.Equal(t, "2100003000", *b3[1].ParcelID)
	for _, r := range b3 {
		assert.Equal(t, types.ProvenanceSpatial, r.Provenance)
		assert.Equal(t, types.FlagNone, r.Flag)
	}

	b4 := rowsFor(rows, "B4")
	require.Len(t, b4, 1)
	assert.Equal(t, types.ProvenanceSpatial, b4[0].Provenance)
	assert.Equal(t, types.FlagOfficialIDNotInParcels, b4[0].Flag)
	assert.Equal(t, "9999999999", *b4[0].OfficialID)
	assert.Equal(t, "2100001000", *b4[0].ParcelID)

	b5 := rowsFor(rows, "B5")
	require.Len(t, b5, 1)
	assert.Nil(t, b5[0].ParcelID)
	assert.Equal(t, types.ProvenanceUnmapped, b5[0].Provenance)
	assert.Equal(t, types.FlagOfficialIDNotInParcels, b5[0].Flag)

	b6 := rowsFor(rows, "B6")
	require.Len(t, b6, 1)
	assert.Nil(t, b6[0].ParcelID)
	assert.Equal(t, types.FlagNoIntersectingParcel, b6[0].Flag)

	assert.Equal(t, MergeStats{
		Buildings:             6,
		Rows:                  7,
		Official:              2,
		Spatial:               3,
		Unmapped:              2,
		Discrepancies:         2,
		UniqueParcels:         3,
		MaxBuildingsPerParcel: 3,
	}, stats)

	discrepancies := 0
	for _, e := range hook.AllEntries() {
		if _, ok := e.Data["official_id"]; ok {
			discrepancies++
		}
	}
	assert.Equal(t, 2, discrepancies)
}

func TestMergeKeepsEveryBuilding(t *testing.T) {
	log, _ := test.NewNullLogger()
	parcels := fixtureParcels()

	var buildings []types.Building
	for i, fp := range []orb.MultiPolygon{square(1, 1, 1), square(9, 9, 2), square(50, 50, 1), square(15, 5, 10)} {
		buildings = append(buildings, building(string(rune('A'+i)), nil, fp))
	}

	rows, _ := NewMerger(NewExtractor("Bos"), log).Merge(buildings, parcels)

	for _, b := range buildings {
		got := rowsFor(rows, b.StructID)
		require.NotEmpty(t, got, b.StructID)
		for _, r := range got {
			if r.ParcelID == nil {
				continue
			}
			assert.Equal(t, types.ProvenanceSpatial, r.Provenance)
			var fp orb.MultiPolygon
			for _, p := range parcels {
				if p.ParcelID == *r.ParcelID {
					fp = p.Footprint
				}
			}
			assert.True(t, geo.Intersects(b.Footprint, fp), "%s / %s", b.StructID, *r.ParcelID)
		}
	}
}

func TestMergeOrderIsStable(t *testing.T) {
	log, _ := test.NewNullLogger()
	parcels := fixtureParcels()
	buildings := []types.Building{
		building("Z", nil, square(5, 5, 10)),
		building("A", nil, square(15, 5, 10)),
	}

	rows, _ := NewMerger(NewExtractor("Bos"), log).Merge(buildings, parcels)

	reversed := []types.Building{buildings[1], buildings[0]}
	again, _ := NewMerger(NewExtractor("Bos"), log).Merge(reversed, parcels)

	assert.Equal(t, rows, again)
	require.Len(t, rows, 4)
	assert.Equal(t, "A", rows[0].StructID)
	assert.Equal(t, "2100002000", *rows[0].ParcelID)
	assert.Equal(t, "2100003000", *rows[1].ParcelID)
}
