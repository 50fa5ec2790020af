package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcellink/internal/types"
)

func TestReviewedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed", reviewedFile)

	got, err := loadReviewed(path)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, saveReviewed(path, "B7"))
	require.NoError(t, saveReviewed(path, "B7"))
	require.NoError(t, saveReviewed(path, "B2"))

	got, err = loadReviewed(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"B7": true, "B2": true}, got)
}

func TestReviewLine(t *testing.T) {
	official := "2100004000"
	r := types.Mapping{
		StructID:   "B7",
		Provenance: types.ProvenanceSpatial,
		Flag:       types.FlagOfficialIDNotInParcels,
		OfficialID: &official,
		AreaSqFt:   1234.4,
	}
	line := reviewLine(r, true)
	assert.Contains(t, line, "B7")
	assert.Contains(t, line, "official_id_not_in_parcels")
	assert.Contains(t, line, "2100004000")
	assert.Contains(t, line, "1234 sqft")

	r = types.Mapping{StructID: "B9", Provenance: types.ProvenanceUnmapped}
	assert.Contains(t, reviewLine(r, false), "unmapped")
	assert.Contains(t, reviewLine(r, false), "official -")
}
