package report

import (
	"io"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"parcellink/internal/resolve"
	"parcellink/internal/types"
)

// Summary is the content of mapping_summary.txt.
type Summary struct {
	resolve.MergeStats
	TotalParcels          int
	AssessmentsMatched    int
	AvgBuildingsPerParcel float64
	MultiBuildingParcels  int
	TopParcels            []ParcelCount
}

type ParcelCount struct {
	ParcelID  string
	Buildings int
}

// NewSummary derives the summary of a resolution run. totalParcels is the
// number of parcel polygons loaded.
func NewSummary(res resolve.Result, totalParcels int) Summary {
	s := Summary{
		MergeStats:         res.Stats,
		TotalParcels:       totalParcels,
		AssessmentsMatched: res.Matched,
	}

	perParcel := make(map[string]int)
	linked := 0
	for _, r := range res.Mappings {
		if r.ParcelID != nil {
			perParcel[*r.ParcelID]++
			linked++
		}
	}
	if len(perParcel) > 0 {
		s.AvgBuildingsPerParcel = float64(linked) / float64(len(perParcel))
	}
	for id, n := range perParcel {
		if n > 1 {
			s.MultiBuildingParcels++
			s.TopParcels = append(s.TopParcels, ParcelCount{ParcelID: id, Buildings: n})
		}
	}
	sort.Slice(s.TopParcels, func(i, j int) bool {
		if s.TopParcels[i].Buildings != s.TopParcels[j].Buildings {
			return s.TopParcels[i].Buildings > s.TopParcels[j].Buildings
		}
		return s.TopParcels[i].ParcelID < s.TopParcels[j].ParcelID
	})
	if len(s.TopParcels) > 5 {
		s.TopParcels = s.TopParcels[:5]
	}
	return s
}

// WriteSummary writes s as "key: value" lines with thousands separators.
func WriteSummary(w io.Writer, s Summary) error {
	p := message.NewPrinter(language.English)

	lines := []struct {
		key   string
		value interface{}
	}{
		{"total_buildings", s.Buildings},
		{"total_parcels", s.TotalParcels},
		{"total_rows", s.Rows},
		{"official_rows", s.Official},
		{"spatial_intersection_rows", s.Spatial},
		{"unmapped_buildings", s.Unmapped},
		{"official_id_discrepancies", s.Discrepancies},
		{"unique_parcels_linked", s.UniqueParcels},
		{"avg_buildings_per_parcel", s.AvgBuildingsPerParcel},
		{"max_buildings_per_parcel", s.MaxBuildingsPerParcel},
		{"parcels_with_multiple_buildings", s.MultiBuildingParcels},
		{"rows_with_assessment", s.AssessmentsMatched},
	}

	if _, err := p.Fprintf(w, "Building-Parcel Mapping Summary\n%s\n\n", strings.Repeat("=", 50)); err != nil {
		return err
	}
	for _, l := range lines {
		var err error
		switch v := l.value.(type) {
		case float64:
			_, err = p.Fprintf(w, "%s: %.2f\n", l.key, v)
		default:
			_, err = p.Fprintf(w, "%s: %d\n", l.key, v)
		}
		if err != nil {
			return err
		}
	}

	if len(s.TopParcels) > 0 {
		if _, err := p.Fprintf(w, "\nParcels with the most buildings:\n"); err != nil {
			return err
		}
		for _, pc := range s.TopParcels {
			if _, err := p.Fprintf(w, "  %s: %d\n", pc.ParcelID, pc.Buildings); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlaggedRows returns the first row of each building an analyst should
// look at (flagged or unmapped), in row order.
func FlaggedRows(rows []types.Mapping) []types.Mapping {
	var out []types.Mapping
	seen := make(map[string]bool)
	for _, r := range rows {
		if seen[r.StructID] {
			continue
		}
		if r.Flag != types.FlagNone || r.Provenance == types.ProvenanceUnmapped {
			seen[r.StructID] = true
			out = append(out, r)
		}
	}
	return out
}
