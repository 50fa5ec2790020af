package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"parcellink/internal/geo"
	"parcellink/internal/types"
)

// File names written to the output directory.
const (
	MappingFile     = "building_parcel_mapping.csv"
	AssessmentFile  = "building_assessments.csv"
	SummaryFile     = "mapping_summary.txt"
	VoterLinkFile   = "voters_buildings.csv"
	AddressFile     = "building_addresses.csv"
	ScrapedFile     = "scraped_assessments.csv"
	ScrapeFailsFile = "scrape_failures.csv"
)

// WriteFile creates path (and its directory) and hands it to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(f *float64, prec int) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', prec, 64)
}

func area(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

var mappingHeader = []string{
	"STRUCT_ID", "MAP_PAR_ID", "provenance", "flag", "LOC_ID", "POLY_TYPE", "MAP_NO", "TOWN_ID",
	"AREA_SQ_FT", "SOURCE", "LOCAL_ID", "official_id",
}

// WriteMappings writes the building-parcel mapping in row order.
func WriteMappings(w io.Writer, rows []types.Mapping) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(mappingHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.StructID, str(r.ParcelID), string(r.Provenance), string(r.Flag),
			r.ParcelLocID, r.ParcelPolyType, r.ParcelMapNo, r.ParcelTownID,
			area(r.AreaSqFt), r.Source, str(r.LocalID), str(r.OfficialID),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var assessmentHeader = []string{
	"STRUCT_ID", "MAP_PAR_ID", "provenance", "flag", "AREA_SQ_FT",
	"fiscal_year", "building_value", "land_value", "total_value",
	"use_code", "owner_names", "site_address", "year_built",
}

// WriteAssessments writes the mapping-assessment join. Rows without an
// assessment have empty assessment columns.
func WriteAssessments(w io.Writer, rows []types.BuildingAssessment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(assessmentHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.StructID, str(r.ParcelID), string(r.Provenance), string(r.Flag), area(r.AreaSqFt)}
		if a := r.Assessment; a != nil {
			yearBuilt := ""
			if a.YearBuilt != nil {
				yearBuilt = strconv.Itoa(*a.YearBuilt)
			}
			rec = append(rec,
				strconv.Itoa(a.FiscalYear), num(a.BuildingValue, 0), num(a.LandValue, 0), num(a.TotalValue, 0),
				a.UseCode, strings.Join(a.OwnerNames, "; "), a.SiteAddress, yearBuilt,
			)
		} else {
			rec = append(rec, "", "", "", "", "", "", "", "")
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteVoterLinks writes one row per voter; unmatched voters have an empty
// STRUCT_ID.
func WriteVoterLinks(w io.Writer, links []types.VoterLink) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"res_id", "STRUCT_ID", "address_key", "match", "distance_m"}); err != nil {
		return err
	}
	for _, l := range links {
		if err := cw.Write([]string{l.ResID, str(l.StructID), l.AddressKey, l.Match, num(l.DistanceM, 1)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAddresses writes the street address of every building that has one,
// with the centroid in WGS-84.
func WriteAddresses(w io.Writer, buildings []types.Building) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"STRUCT_ID", "street_number", "street_name", "zip", "formatted_address", "latitude", "longitude"}); err != nil {
		return err
	}
	for _, b := range buildings {
		if b.Address == nil {
			continue
		}
		lon, lat := geo.ToWGS84(b.Centroid)
		if err := cw.Write([]string{
			b.StructID, b.Address.StreetNumber, b.Address.StreetName, b.Address.Zip, b.Address.Formatted,
			strconv.FormatFloat(lat, 'f', 7, 64), strconv.FormatFloat(lon, 'f', 7, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
