package database

import (
	"strings"

	"github.com/paulmach/orb/encoding/wkt"

	"parcellink/internal/types"
)

// noParcelKey stands in for a missing parcel in primary keys. Oracle stores
// '' as NULL, so an empty string cannot be used.
const noParcelKey = "-"

// Statements use $n placeholders; oracleSQL rewrites them for go-ora.
const (
	insertBuildingSQL = `INSERT INTO buildings
		(struct_id, local_id, source, area_sqft, centroid_x, centroid_y, geom_wkt, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertMappingSQL = `INSERT INTO building_parcel_map
		(struct_id, parcel_key, parcel_id, provenance, flag, area_sqft, source, local_id, official_id,
		 loc_id, poly_type, map_no, town_id, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	insertAssessmentSQL = `INSERT INTO building_assessments
		(struct_id, parcel_key, parcel_id, provenance, flag, area_sqft, source, local_id, official_id,
		 fiscal_year, building_value, land_value, total_value, use_code, owner_names, site_address, year_built, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	insertVoterLinkSQL = `INSERT INTO voters_buildings_map
		(res_id, struct_id, address_key, match_method, distance_m, run_id)
		VALUES ($1, $2, $3, $4, $5, $6)`

	selectAssessmentColumns = `SELECT struct_id, parcel_id, provenance, flag, area_sqft, source, local_id, official_id,
		fiscal_year, building_value, land_value, total_value, use_code, owner_names, site_address, year_built
		FROM building_assessments`

	selectByStructSQL = selectAssessmentColumns + ` WHERE struct_id = $1 ORDER BY parcel_key`
	selectByParcelSQL = selectAssessmentColumns + ` WHERE parcel_id = $1 ORDER BY struct_id`
)

func oracleSQL(q string) string {
	return strings.ReplaceAll(q, "$", ":")
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func derefString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return nullString(*s)
}

func derefFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func derefInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func parcelKeyOf(id *string) string {
	if id == nil || *id == "" {
		return noParcelKey
	}
	return *id
}

func buildingArgs(runID string, b types.Building) []interface{} {
	return []interface{}{
		b.StructID, derefString(b.LocalID), nullString(b.Source), b.AreaSqFt,
		b.Centroid.X(), b.Centroid.Y(), wkt.MarshalString(b.Footprint), runID,
	}
}

func mappingArgs(runID string, r types.Mapping) []interface{} {
	return []interface{}{
		r.StructID, parcelKeyOf(r.ParcelID), derefString(r.ParcelID), string(r.Provenance), nullString(string(r.Flag)),
		r.AreaSqFt, nullString(r.Source), derefString(r.LocalID), derefString(r.OfficialID),
		nullString(r.ParcelLocID), nullString(r.ParcelPolyType), nullString(r.ParcelMapNo), nullString(r.ParcelTownID), runID,
	}
}

func assessmentArgs(runID string, r types.BuildingAssessment) []interface{} {
	args := []interface{}{
		r.StructID, parcelKeyOf(r.ParcelID), derefString(r.ParcelID), string(r.Provenance), nullString(string(r.Flag)),
		r.AreaSqFt, nullString(r.Source), derefString(r.LocalID), derefString(r.OfficialID),
	}
	a := r.Assessment
	if a == nil {
		args = append(args, nil, nil, nil, nil, nil, nil, nil, nil)
	} else {
		args = append(args,
			a.FiscalYear, derefFloat(a.BuildingValue), derefFloat(a.LandValue), derefFloat(a.TotalValue),
			nullString(a.UseCode), nullString(strings.Join(a.OwnerNames, "; ")), nullString(a.SiteAddress), derefInt(a.YearBuilt),
		)
	}
	return append(args, runID)
}

func voterLinkArgs(runID string, l types.VoterLink) []interface{} {
	return []interface{}{l.ResID, derefString(l.StructID), nullString(l.AddressKey), nullString(l.Match), derefFloat(l.DistanceM), runID}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanBuildingAssessment reads one row of selectAssessmentColumns. The
// assessment is nil when the row carried no fiscal year.
func scanBuildingAssessment(s scanner) (types.BuildingAssessment, error) {
	var (
		r                                    types.BuildingAssessment
		provenance                           string
		flag, source, useCode, owners, site  *string
		fiscalYear, yearBuilt                *int
		buildingValue, landValue, totalValue *float64
	)
	err := s.Scan(
		&r.StructID, &r.ParcelID, &provenance, &flag, &r.AreaSqFt, &source, &r.LocalID, &r.OfficialID,
		&fiscalYear, &buildingValue, &landValue, &totalValue, &useCode, &owners, &site, &yearBuilt,
	)
	if err != nil {
		return r, err
	}

	r.Provenance = types.Provenance(provenance)
	if flag != nil {
		r.Flag = types.Flag(*flag)
	}
	if source != nil {
		r.Source = *source
	}

	if fiscalYear != nil {
		a := &types.Assessment{
			FiscalYear:    *fiscalYear,
			BuildingValue: buildingValue,
			LandValue:     landValue,
			TotalValue:    totalValue,
			YearBuilt:     yearBuilt,
		}
		if r.ParcelID != nil {
			a.PropertyID = *r.ParcelID
		}
		if useCode != nil {
			a.UseCode = *useCode
		}
		if site != nil {
			a.SiteAddress = *site
		}
		if owners != nil {
			for _, o := range strings.Split(*owners, ";") {
				if o = strings.TrimSpace(o); o != "" {
					a.OwnerNames = append(a.OwnerNames, o)
				}
			}
		}
		r.Assessment = a
	}
	return r, nil
}

// summaryQueries are shared by both drivers.
const (
	countByProvenanceSQL = `SELECT provenance, COUNT(*) FROM building_parcel_map GROUP BY provenance`
	countBuildingsSQL    = `SELECT COUNT(DISTINCT struct_id) FROM building_parcel_map`
	countFlaggedSQL      = `SELECT COUNT(*) FROM building_parcel_map WHERE flag IS NOT NULL`
	countAssessedSQL     = `SELECT COUNT(*) FROM building_assessments WHERE fiscal_year IS NOT NULL`
	countVoterLinksSQL   = `SELECT COUNT(*) FROM voters_buildings_map WHERE struct_id IS NOT NULL`
	latestRunSQL         = `SELECT MAX(run_id) FROM building_parcel_map`
)
