package server

import (
	"encoding/json"
	"net/http"

	"parcellink/internal/types"
)

const (
	ErrCodeNotFound = "not_found"
	ErrCodeInternal = "internal_server_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// AssessmentDTO is the JSON form of a building's parcel assessment.
type AssessmentDTO struct {
	FiscalYear    int      `json:"fiscal_year"`
	BuildingValue *float64 `json:"building_value"`
	LandValue     *float64 `json:"land_value"`
	TotalValue    *float64 `json:"total_value"`
	UseCode       string   `json:"use_code,omitempty"`
	OwnerNames    []string `json:"owner_names,omitempty"`
	SiteAddress   string   `json:"site_address,omitempty"`
	YearBuilt     *int     `json:"year_built,omitempty"`
}

// MappingDTO is one building-parcel row with its assessment, if any.
type MappingDTO struct {
	StructID   string         `json:"struct_id"`
	ParcelID   *string        `json:"parcel_id"`
	Provenance string         `json:"provenance"`
	Flag       string         `json:"flag,omitempty"`
	AreaSqFt   float64        `json:"area_sq_ft"`
	Assessment *AssessmentDTO `json:"assessment"`
}

func toDTOs(rows []types.BuildingAssessment) []MappingDTO {
	out := make([]MappingDTO, len(rows))
	for i, r := range rows {
		out[i] = MappingDTO{
			StructID:   r.StructID,
			ParcelID:   r.ParcelID,
			Provenance: string(r.Provenance),
			Flag:       string(r.Flag),
			AreaSqFt:   r.AreaSqFt,
		}
		if a := r.Assessment; a != nil {
			out[i].Assessment = &AssessmentDTO{
				FiscalYear:    a.FiscalYear,
				BuildingValue: a.BuildingValue,
				LandValue:     a.LandValue,
				TotalValue:    a.TotalValue,
				UseCode:       a.UseCode,
				OwnerNames:    a.OwnerNames,
				SiteAddress:   a.SiteAddress,
				YearBuilt:     a.YearBuilt,
			}
		}
	}
	return out
}
