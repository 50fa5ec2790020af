package scrape

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"parcellink/internal/types"
)

var resultHeader = []string{
	"parcel_id", "fiscal_year", "property_type", "assessed_value",
	"building_value", "land_value", "total_assessed_value",
	"address", "classification_code", "year_built", "owner_name", "current_owners",
	"assessment_date", "scraped_at",
}

// WriteResults writes successful outcomes as CSV, one row per value-history
// fiscal year (or one row for the current year when the page has no
// history). Building and land values are only known for the current year.
// The file reads back through the assessment loader.
func WriteResults(w io.Writer, outcomes []Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultHeader); err != nil {
		return err
	}

	for _, o := range outcomes {
		if !o.Success || o.Details == nil {
			continue
		}
		d := o.Details
		current := d.Assessment(o.ParcelID)

		owner := ""
		if len(current.OwnerNames) > 0 {
			owner = current.OwnerNames[0]
		}
		yearBuilt := ""
		if current.YearBuilt != nil {
			yearBuilt = strconv.Itoa(*current.YearBuilt)
		}

		history := d.History
		if len(history) == 0 && current.FiscalYear > 0 {
			history = []types.ValueHistoryEntry{{
				FiscalYear:    current.FiscalYear,
				PropertyType:  d.Fields["Property Type"],
				AssessedValue: current.TotalValue,
			}}
		}
		history = append(history[:0:0], history...)
		sort.SliceStable(history, func(i, j int) bool { return history[i].FiscalYear > history[j].FiscalYear })

		for _, h := range history {
			var bldg, land, total string
			total = money(h.AssessedValue)
			if h.FiscalYear == current.FiscalYear {
				bldg = money(current.BuildingValue)
				land = money(current.LandValue)
				if current.TotalValue != nil {
					total = money(current.TotalValue)
				}
			}
			err := cw.Write([]string{
				o.ParcelID, strconv.Itoa(h.FiscalYear), h.PropertyType, money(h.AssessedValue),
				bldg, land, total,
				current.SiteAddress, current.UseCode, yearBuilt, owner, strings.Join(current.OwnerNames, "; "),
				d.AssessmentDate, o.ScrapedAt.Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFailures writes the parcel id and reason of every failed outcome.
func WriteFailures(w io.Writer, outcomes []Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"parcel_id", "reason", "scraped_at"}); err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.Success {
			continue
		}
		if err := cw.Write([]string{o.ParcelID, o.Reason, o.ScrapedAt.Format(time.RFC3339)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func money(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
