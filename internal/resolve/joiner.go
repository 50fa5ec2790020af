package resolve

import (
	"parcellink/internal/ingest"
	"parcellink/internal/types"
)

// LatestAssessments keys records by canonical property id, keeping the one
// with the greatest fiscal year. Among records sharing that year the one
// with the larger total value wins, and after that the one read last.
func LatestAssessments(records []types.Assessment) map[string]*types.Assessment {
	latest := make(map[string]*types.Assessment, len(records))
	for i := range records {
		r := &records[i]
		id := ingest.CanonicalParcelID(r.PropertyID)
		if id == "" {
			continue
		}
		cur, ok := latest[id]
		if !ok || supersedes(r, cur) {
			latest[id] = r
		}
	}
	return latest
}

func supersedes(next, cur *types.Assessment) bool {
	if next.FiscalYear != cur.FiscalYear {
		return next.FiscalYear > cur.FiscalYear
	}
	switch {
	case next.TotalValue == nil && cur.TotalValue != nil:
		return false
	case next.TotalValue != nil && cur.TotalValue == nil:
		return true
	case next.TotalValue != nil && *next.TotalValue != *cur.TotalValue:
		return *next.TotalValue > *cur.TotalValue
	}
	return true
}

// Join attaches the latest assessment to every mapping row by parcel id.
// Rows without a parcel or without a matching record keep a nil
// Assessment; every building on a parcel receives the same record.
func Join(rows []types.Mapping, latest map[string]*types.Assessment) ([]types.BuildingAssessment, int) {
	out := make([]types.BuildingAssessment, len(rows))
	matched := 0
	for i, r := range rows {
		out[i] = types.BuildingAssessment{Mapping: r}
		if r.ParcelID == nil {
			continue
		}
		if a, ok := latest[ingest.CanonicalParcelID(*r.ParcelID)]; ok {
			out[i].Assessment = a
			matched++
		}
	}
	return out, matched
}
