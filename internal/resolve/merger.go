package resolve

import (
	"sort"

	"github.com/sirupsen/logrus"

	"parcellink/internal/ingest"
	"parcellink/internal/types"
)

// MergeStats summarizes a merge for logging and the summary report.
type MergeStats struct {
	Buildings             int
	Rows                  int
	Official              int
	Spatial               int
	Unmapped              int
	Discrepancies         int
	UniqueParcels         int
	MaxBuildingsPerParcel int
}

// Merger combines identifier-based and geometry-based parcel links into a
// single mapping table.
type Merger struct {
	extractor *Extractor
	log       logrus.FieldLogger
}

func NewMerger(extractor *Extractor, log logrus.FieldLogger) *Merger {
	return &Merger{extractor: extractor, log: log}
}

// Merge produces the building-parcel mapping. A building whose local id
// names a known parcel gets exactly one official row and is never linked
// spatially. Every other building gets one spatial_intersection row per
// intersecting parcel, or a single unmapped row when it touches none.
// Official ids that are not in the parcel layer are logged and flagged on
// the building's rows. The result is ordered by struct id, then parcel id.
func (m *Merger) Merge(buildings []types.Building, parcels []types.Parcel) ([]types.Mapping, MergeStats) {
	byID := make(map[string]*types.Parcel, len(parcels))
	for i := range parcels {
		if _, ok := byID[parcels[i].ParcelID]; !ok {
			byID[parcels[i].ParcelID] = &parcels[i]
		}
	}

	var linker *Linker
	stats := MergeStats{Buildings: len(buildings)}
	rows := make([]types.Mapping, 0, len(buildings))

	for _, b := range buildings {
		base := types.Mapping{
			StructID: b.StructID,
			AreaSqFt: b.AreaSqFt,
			Source:   b.Source,
			LocalID:  b.LocalID,
		}

		if raw, ok := m.extractor.Extract(b.LocalID); ok {
			id := ingest.CanonicalParcelID(raw)
			base.OfficialID = &id

			if p, found := byID[id]; found {
				rows = append(rows, withParcel(base, p, types.ProvenanceOfficial))
				stats.Official++
				continue
			}

			stats.Discrepancies++
			base.Flag = types.FlagOfficialIDNotInParcels
			m.log.WithFields(logrus.Fields{
				"struct_id":   b.StructID,
				"official_id": id,
			}).Warn("Official parcel id not found in parcel layer; falling back to geometry")
		}

		if linker == nil {
			linker = NewLinker(parcels)
		}
		hits := linker.Link(b)
		if len(hits) == 0 {
			row := base
			row.Provenance = types.ProvenanceUnmapped
			if row.Flag == types.FlagNone {
				row.Flag = types.FlagNoIntersectingParcel
			}
			rows = append(rows, row)
			stats.Unmapped++
			continue
		}
		for i := range hits {
			rows = append(rows, withParcel(base, &hits[i], types.ProvenanceSpatial))
			stats.Spatial++
		}
	}

	SortMappings(rows)

	perParcel := make(map[string]int)
	for _, r := range rows {
		if r.ParcelID != nil {
			perParcel[*r.ParcelID]++
		}
	}
	stats.Rows = len(rows)
	stats.UniqueParcels = len(perParcel)
	for _, n := range perParcel {
		if n > stats.MaxBuildingsPerParcel {
			stats.MaxBuildingsPerParcel = n
		}
	}

	m.log.WithFields(logrus.Fields{
		"buildings":     stats.Buildings,
		"official":      stats.Official,
		"spatial":       stats.Spatial,
		"unmapped":      stats.Unmapped,
		"discrepancies": stats.Discrepancies,
	}).Info("Merged building-parcel mapping")

	return rows, stats
}

func withParcel(base types.Mapping, p *types.Parcel, prov types.Provenance) types.Mapping {
	id := p.ParcelID
	base.ParcelID = &id
	base.Provenance = prov
	base.ParcelLocID = p.LocID
	base.ParcelPolyType = p.PolyType
	base.ParcelMapNo = p.MapNo
	base.ParcelTownID = p.TownID
	return base
}

// SortMappings orders rows by struct id, then parcel id, with a missing
// parcel first.
func SortMappings(rows []types.Mapping) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].StructID != rows[j].StructID {
			return rows[i].StructID < rows[j].StructID
		}
		return parcelKey(rows[i].ParcelID) < parcelKey(rows[j].ParcelID)
	})
}

func parcelKey(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
