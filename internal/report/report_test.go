package report

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcellink/internal/config"
	"parcellink/internal/geo"
	"parcellink/internal/ingest"
	"parcellink/internal/resolve"
	"parcellink/internal/types"
)

func square(x, y, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y}}}}
}

func strPtr(s string) *string { return &s }

func money(v float64) *float64 { return &v }

func fixture() ([]types.Building, []types.Parcel, []types.Assessment) {
	buildings := []types.Building{
		{StructID: "B3", Footprint: square(8, 2, 4), AreaSqFt: 172.22},
		{StructID: "B1", LocalID: strPtr("Bos_2100001000_B0"), Footprint: square(1, 1, 2), AreaSqFt: 43.06, Source: "city"},
		{StructID: "B2", LocalID: strPtr("Bos_2100001000_B1"), Footprint: square(5, 5, 2), AreaSqFt: 43.06, Source: "city"},
		{StructID: "B4", Footprint: square(100, 100, 1), AreaSqFt: 10.76},
	}
	parcels := []types.Parcel{
		{ParcelID: "2100002000", LocID: "F_2", Footprint: square(10, 0, 10)},
		{ParcelID: "2100001000", LocID: "F_1", Footprint: square(0, 0, 10)},
	}
	assessments := []types.Assessment{
		{PropertyID: "2100001000.0", FiscalYear: 2024, TotalValue: money(812000), OwnerNames: []string{"SMITH JOHN", "SMITH, JANE"}},
		{PropertyID: "2100001000", FiscalYear: 2023, TotalValue: money(790000)},
	}
	return buildings, parcels, assessments
}

func render(t *testing.T, res resolve.Result) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteMappings(&buf, res.Mappings))
	require.NoError(t, WriteAssessments(&buf, res.Joined))
	require.NoError(t, WriteSummary(&buf, NewSummary(res, 2)))
	return buf.String()
}

func TestPipelineOutputIsByteIdentical(t *testing.T) {
	log, _ := test.NewNullLogger()

	b, p, a := fixture()
	first := render(t, resolve.Run("Bos", b, p, a, log))

	b, p, a = fixture()
	// reversed input order must not change the output
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	p[0], p[1] = p[1], p[0]
	second := render(t, resolve.Run("Bos", b, p, a, log))

	assert.Equal(t, first, second)
}

func TestWriteMappingsAndAssessments(t *testing.T) {
	log, _ := test.NewNullLogger()
	b, p, a := fixture()
	res := resolve.Run("Bos", b, p, a, log)

	var buf bytes.Buffer
	require.NoError(t, WriteMappings(&buf, res.Mappings))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "STRUCT_ID,MAP_PAR_ID,provenance,flag,LOC_ID,POLY_TYPE,MAP_NO,TOWN_ID,AREA_SQ_FT,SOURCE,LOCAL_ID,official_id", lines[0])
	assert.Equal(t, "B1,2100001000,official,,F_1,,,,43.06,city,Bos_2100001000_B0,2100001000", lines[1])
	assert.Equal(t, "B3,2100001000,spatial_intersection,,F_1,,,,172.22,,,", lines[3])
	assert.Equal(t, "B3,2100002000,spatial_intersection,,F_2,,,,172.22,,,", lines[4])
	assert.Equal(t, "B4,,unmapped,no_intersecting_parcel,,,,,10.76,,,", lines[5])

	buf.Reset()
	require.NoError(t, WriteAssessments(&buf, res.Joined))
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, `B1,2100001000,official,,43.06,2024,,,812000,,"SMITH JOHN; SMITH, JANE",,`, lines[1])
	assert.Equal(t, `B2,2100001000,official,,43.06,2024,,,812000,,"SMITH JOHN; SMITH, JANE",,`, lines[2])
	assert.Equal(t, "B3,2100002000,spatial_intersection,,172.22,,,,,,,,", lines[4])
}

func TestWriteSummary(t *testing.T) {
	s := Summary{
		MergeStats:            resolve.MergeStats{Buildings: 12345, Rows: 12400, Official: 9000, MaxBuildingsPerParcel: 4},
		TotalParcels:          98765,
		AvgBuildingsPerParcel: 1.5,
		TopParcels:            []ParcelCount{{ParcelID: "2100001000", Buildings: 4}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, s))

	out := buf.String()
	assert.Contains(t, out, "total_buildings: 12,345\n")
	assert.Contains(t, out, "total_parcels: 98,765\n")
	assert.Contains(t, out, "avg_buildings_per_parcel: 1.50\n")
	assert.Contains(t, out, "  2100001000: 4\n")
}

func TestFlaggedRows(t *testing.T) {
	rows := []types.Mapping{
		{StructID: "A", Provenance: types.ProvenanceOfficial},
		{StructID: "B", Provenance: types.ProvenanceSpatial, Flag: types.FlagOfficialIDNotInParcels},
		{StructID: "B", Provenance: types.ProvenanceSpatial, Flag: types.FlagOfficialIDNotInParcels},
		{StructID: "C", Provenance: types.ProvenanceUnmapped, Flag: types.FlagNoIntersectingParcel},
	}
	got := FlaggedRows(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].StructID)
	assert.Equal(t, "C", got[1].StructID)
}

func TestAddressesRoundTrip(t *testing.T) {
	c := geo.ToStatePlane(-71.1590, 42.3500)
	buildings := []types.Building{
		{StructID: "B1", Centroid: c, Address: &types.Address{StreetNumber: "12", StreetName: "Oak Square Ave", Zip: "02135", Formatted: "12 Oak Square Ave, Boston, MA 02135"}},
		{StructID: "B2", Centroid: c},
	}

	path := filepath.Join(t.TempDir(), "out", AddressFile)
	require.NoError(t, WriteFile(path, func(w io.Writer) error { return WriteAddresses(w, buildings) }))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "B1,12,Oak Square Ave,02135,")
	assert.NotContains(t, string(data), "B2,")

	log, _ := test.NewNullLogger()
	addrs, err := ingest.NewLoader(config.ResolveConfig{}, log).LoadAddresses(path)
	require.NoError(t, err)
	require.Len(t, addrs, 1)

	fresh := []types.Building{{StructID: "B1"}, {StructID: "B2"}}
	assert.Equal(t, 1, ingest.ApplyAddresses(fresh, addrs))
	assert.Equal(t, "Oak Square Ave", fresh[0].Address.StreetName)
	assert.Nil(t, fresh[1].Address)
}
