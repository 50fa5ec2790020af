package types

// Provenance records which method produced a building-parcel row.
type Provenance string

const (
	ProvenanceOfficial Provenance = "official"
	ProvenanceSpatial  Provenance = "spatial_intersection"
	ProvenanceUnmapped Provenance = "unmapped"
)

// Flag marks a data-quality condition on a mapping row.
type Flag string

const (
	FlagNone                   Flag = ""
	FlagOfficialIDNotInParcels Flag = "official_id_not_in_parcels"
	FlagNoIntersectingParcel   Flag = "no_intersecting_parcel"
)

// Mapping is one building-parcel connection. ParcelID is nil when the
// building could not be placed on any parcel.
type Mapping struct {
	StructID   string
	ParcelID   *string
	Provenance Provenance
	AreaSqFt   float64
	Source     string
	Flag       Flag

	LocalID    *string
	OfficialID *string

	// Parcel attributes copied from the parcel layer when ParcelID is set.
	ParcelLocID    string
	ParcelPolyType string
	ParcelMapNo    string
	ParcelTownID   string
}

// BuildingAssessment is a mapping row with the parcel's latest assessment
// attached. Assessment is nil when no record exists for the parcel.
type BuildingAssessment struct {
	Mapping
	Assessment *Assessment
}
