package scrape

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"parcellink/internal/ingest"
	"parcellink/internal/types"
)

// Details is what the assessing details page says about one parcel.
// Fields holds every two-column label/value row keyed by its label with
// the trailing colon removed ("Year Built" -> "1925").
type Details struct {
	Fields         map[string]string         `json:"fields"`
	History        []types.ValueHistoryEntry `json:"history,omitempty"`
	Owners         []string                  `json:"owners,omitempty"`
	AssessmentDate string                    `json:"assessment_date,omitempty"`
}

var (
	fyValueLabel    = regexp.MustCompile(`(?i)^FY\s*(\d{4})\s+(building|land|total assessed) value$`)
	assessmentAsOf  = regexp.MustCompile(`Assessment as of ([^,]+),`)
	historyYearOnly = regexp.MustCompile(`^\d{4}$`)
)

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// parseDetails reads the label/value rows, the value-history table and the
// current-owners block from a details page.
func parseDetails(doc *goquery.Document) *Details {
	d := &Details{Fields: make(map[string]string)}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() > 1 && isHistoryHeader(cellText(rows.First())) {
			d.History = append(d.History, parseHistory(rows.Slice(1, goquery.ToEnd))...)
			return
		}

		inOwners := false
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td, th")
			if cells.Length() < 2 {
				return
			}
			label := strings.TrimSuffix(cellText(cells.Eq(0)), ":")
			value := cellText(cells.Eq(1))

			if strings.Contains(label, "Current Owner/s") {
				inOwners = true
				return
			}
			if inOwners {
				if value != "" && value != "Current Owner/s" {
					d.Owners = append(d.Owners, value)
				}
				return
			}
			if label == "" {
				return
			}
			if _, exists := d.Fields[label]; !exists {
				d.Fields[label] = value
			}
		})
	})

	if m := assessmentAsOf.FindStringSubmatch(doc.Text()); m != nil {
		d.AssessmentDate = strings.TrimSpace(m[1])
	}
	return d
}

func isHistoryHeader(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "fiscal year") && strings.Contains(t, "assessed value")
}

func parseHistory(rows *goquery.Selection) []types.ValueHistoryEntry {
	var out []types.ValueHistoryEntry
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 3 {
			return
		}
		year := cellText(cells.Eq(0))
		value := cellText(cells.Eq(2))
		if !historyYearOnly.MatchString(year) || !strings.HasPrefix(value, "$") {
			return
		}
		fy, _ := strconv.Atoi(year)
		e := types.ValueHistoryEntry{FiscalYear: fy, PropertyType: cellText(cells.Eq(1))}
		if v, ok := ingest.ParseDollar(value); ok {
			e.AssessedValue = &v
		}
		out = append(out, e)
	})
	return out
}

// Assessment summarizes the page as the current fiscal year's record.
// The fiscal year comes from the "FYnnnn ... Value" labels, falling back to
// the latest value-history year.
func (d *Details) Assessment(parcelID string) types.Assessment {
	a := types.Assessment{
		PropertyID:  parcelID,
		SiteAddress: d.Fields["Address"],
		UseCode:     firstNonEmpty(d.Fields["Classification Code"], d.Fields["Land Use"]),
	}

	for label := range d.Fields {
		if m := fyValueLabel.FindStringSubmatch(label); m != nil {
			if fy, _ := strconv.Atoi(m[1]); fy > a.FiscalYear {
				a.FiscalYear = fy
			}
		}
	}
	for label, value := range d.Fields {
		m := fyValueLabel.FindStringSubmatch(label)
		if m == nil {
			continue
		}
		// Only the newest year's values; older years stay in History.
		if fy, _ := strconv.Atoi(m[1]); fy != a.FiscalYear {
			continue
		}
		v, ok := ingest.ParseDollar(value)
		if !ok {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "building":
			a.BuildingValue = &v
		case "land":
			a.LandValue = &v
		case "total assessed":
			a.TotalValue = &v
		}
	}

	if a.FiscalYear == 0 {
		for _, h := range d.History {
			if h.FiscalYear > a.FiscalYear {
				a.FiscalYear = h.FiscalYear
				a.TotalValue = h.AssessedValue
			}
		}
	}

	if y, err := strconv.Atoi(strings.TrimSpace(d.Fields["Year Built"])); err == nil && y > 0 {
		a.YearBuilt = &y
	}

	a.OwnerNames = append(a.OwnerNames, d.Owners...)
	if len(a.OwnerNames) == 0 {
		var labels []string
		for label, value := range d.Fields {
			if strings.HasPrefix(label, "Owner on") && value != "" {
				labels = append(labels, label)
			}
		}
		sort.Strings(labels)
		if len(labels) > 0 {
			a.OwnerNames = append(a.OwnerNames, d.Fields[labels[0]])
		}
	}
	return a
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
