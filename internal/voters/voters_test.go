package voters

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcellink/internal/geo"
	"parcellink/internal/types"
)

func TestNormalizeStreet(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Cambridge Street", "CAMBRIDGE ST"},
		{"CAMBRIDGE ST.", "CAMBRIDGE ST"},
		{"  cambridge   st ", "CAMBRIDGE ST"},
		{"Commonwealth Avenue", "COMMONWEALTH AVE"},
		{"Commonwealth Av", "COMMONWEALTH AVE"},
		{"Oak Square", "OAK SQ"},
		{"Chestnut Hill Ave", "CHESTNUT HILL AVE"},
		{"Façade Terrace", "FACADE TER"},
		{"Street", "STREET"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStreet(tt.in))
		})
	}
}

func TestAddressKey(t *testing.T) {
	assert.Equal(t, "12 CAMBRIDGE ST", AddressKey("12.0", "Cambridge Street"))
	assert.Equal(t, "12A OAK SQ", AddressKey("12 a", "Oak Square"))
	assert.Equal(t, AddressKey("5", "Market ST"), AddressKey("5", "market street"))
	assert.Empty(t, AddressKey("", "Market St"))
	assert.Empty(t, AddressKey("5", ""))
}

func building(id, num, street string, lon, lat float64) types.Building {
	c := geo.ToStatePlane(lon, lat)
	return types.Building{
		StructID:  id,
		Footprint: orb.MultiPolygon{{{c, c, c, c}}},
		Centroid:  c,
		Address:   &types.Address{StreetNumber: num, StreetName: street},
	}
}

func ptr(f float64) *float64 { return &f }

func TestLink(t *testing.T) {
	log, hook := test.NewNullLogger()
	buildings := []types.Building{
		building("S9", "5", "Cambridge Street", -71.1400, 42.3530),
		building("S2", "5", "Cambridge St", -71.1400, 42.3530),
		building("S3", "12", "Oak Square Ave", -71.1590, 42.3500),
		{StructID: "S4"},
	}
	voters := []types.Voter{
		{ResID: "R1", StreetNumber: "5", StreetName: "CAMBRIDGE ST"},
		{ResID: "R2", StreetNumber: "12", StreetName: "Oak Square Avenue", Latitude: ptr(42.3500), Longitude: ptr(-71.1590)},
		{ResID: "R3", StreetNumber: "12", StreetSuffix: "A", StreetName: "Oak Square Ave"},
		{ResID: "R4", StreetNumber: "12", StreetName: "Oak Square Ave", Latitude: ptr(42.3600), Longitude: ptr(-71.1590)},
	}

	links, stats := NewLinker(buildings, 75, log).Link(voters)
	require.Len(t, links, 4)

	require.NotNil(t, links[0].StructID)
	assert.Equal(t, "S2", *links[0].StructID)
	assert.Nil(t, links[0].DistanceM)

	require.NotNil(t, links[1].StructID)
	assert.Equal(t, "S3", *links[1].StructID)
	require.NotNil(t, links[1].DistanceM)
	assert.InDelta(t, 0, *links[1].DistanceM, 0.5)

	assert.Nil(t, links[2].StructID)
	assert.Equal(t, "12A OAK SQUARE AVE", links[2].AddressKey)

	require.NotNil(t, links[3].DistanceM)
	assert.InDelta(t, 1112, *links[3].DistanceM, 15)

	assert.Equal(t, Stats{Voters: 4, Linked: 3, Unmatched: 1, Ambiguous: 1, Far: 1}, stats)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "Linked voters to buildings", last.Message)
	assert.Equal(t, 1, last.Data["far"])
}

func TestLinkNearestFallback(t *testing.T) {
	log, _ := test.NewNullLogger()
	buildings := []types.Building{
		building("S1", "5", "Cambridge St", -71.1400, 42.3530),
		building("S2", "7", "Cambridge St", -71.1403, 42.3530),
		building("S3", "12", "Oak Square Ave", -71.1590, 42.3500),
	}
	voters := []types.Voter{
		// ~17 m east of S1, ~42 m from S2
		{ResID: "R1", StreetNumber: "5R", StreetName: "Cambridge St", Latitude: ptr(42.3530), Longitude: ptr(-71.1398)},
		// no building within 75 m
		{ResID: "R2", StreetNumber: "1", StreetName: "Nowhere Rd", Latitude: ptr(42.3700), Longitude: ptr(-71.1000)},
		{ResID: "R3", StreetNumber: "12", StreetName: "Oak Square Ave"},
	}

	linker := NewLinker(buildings, 75, log)
	linker.EnableNearest(buildings)
	links, stats := linker.Link(voters)
	require.Len(t, links, 3)

	require.NotNil(t, links[0].StructID)
	assert.Equal(t, "S1", *links[0].StructID)
	assert.Equal(t, types.MatchNearest, links[0].Match)
	assert.InDelta(t, 16.5, *links[0].DistanceM, 1)

	assert.Nil(t, links[1].StructID)
	assert.Empty(t, links[1].Match)

	assert.Equal(t, types.MatchAddress, links[2].Match)
	assert.Equal(t, Stats{Voters: 3, Linked: 2, Unmatched: 1, Nearest: 1}, stats)
}

func TestCellChars(t *testing.T) {
	assert.Equal(t, uint(7), cellChars(75))
	assert.Equal(t, uint(6), cellChars(500))
	assert.Equal(t, uint(5), cellChars(2000))
}
