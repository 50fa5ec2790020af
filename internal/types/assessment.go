package types

// Assessment holds one fiscal year of assessing data for a property.
// Nullable numeric fields are pointers so a blank or malformed cell stays
// distinguishable from a real zero.
type Assessment struct {
	PropertyID string `validate:"required"`
	FiscalYear int    `validate:"gte=1900,lte=2100"`

	BuildingValue *float64
	LandValue     *float64
	TotalValue    *float64

	UseCode     string
	OwnerNames  []string
	SiteAddress string
	YearBuilt   *int
}

// ValueHistoryEntry is one row of the assessed-value history table on a
// parcel's details page.
type ValueHistoryEntry struct {
	FiscalYear    int
	PropertyType  string
	AssessedValue *float64
}
