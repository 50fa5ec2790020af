package resolve

import (
	"github.com/sirupsen/logrus"

	"parcellink/internal/types"
)

// Result is the output of one resolution run.
type Result struct {
	Mappings []types.Mapping
	Joined   []types.BuildingAssessment
	Stats    MergeStats
	Matched  int
}

// Run merges buildings onto parcels and joins the latest assessment onto
// each row. All inputs must already be loaded, validated and in one CRS.
func Run(prefix string, buildings []types.Building, parcels []types.Parcel, assessments []types.Assessment, log logrus.FieldLogger) Result {
	rows, stats := NewMerger(NewExtractor(prefix), log).Merge(buildings, parcels)
	joined, matched := Join(rows, LatestAssessments(assessments))

	log.WithFields(logrus.Fields{
		"rows":    len(joined),
		"matched": matched,
	}).Info("Joined assessments")

	return Result{
		Mappings: rows,
		Joined:   joined,
		Stats:    stats,
		Matched:  matched,
	}
}
