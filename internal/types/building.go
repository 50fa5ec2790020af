package types

import "github.com/paulmach/orb"

// Building is one structure footprint from the building layer. Area and
// Centroid are derived at load time; Address is filled in later by the
// reverse geocoder or an address column on the layer.
type Building struct {
	StructID  string  `validate:"required"`
	LocalID   *string // raw LOCAL_ID text; may encode the parcel reference
	Source    string
	Footprint orb.MultiPolygon `validate:"required,min=1"`

	Centroid orb.Point
	AreaSqFt float64

	Address *Address
}

// Parcel is one tax lot from the parcel layer.
type Parcel struct {
	ParcelID  string `validate:"required"`
	LocID     string
	PolyType  string
	MapNo     string
	TownID    string
	Footprint orb.MultiPolygon `validate:"required,min=1"`
}

// Address is a street-level address as used for voter matching.
type Address struct {
	StreetNumber string
	StreetName   string
	Zip          string
	Formatted    string
}
