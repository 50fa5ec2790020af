package types

// Voter is one resident row from the voter roll.
type Voter struct {
	ResID        string `validate:"required"`
	LastName     string
	FirstName    string
	StreetNumber string
	StreetSuffix string
	StreetName   string
	Apartment    string
	Zip          string
	Ward         string
	Precinct     string
	DOB          string
	Occupation   string

	Latitude  *float64
	Longitude *float64
}

// Match methods for a VoterLink.
const (
	MatchAddress = "address"
	MatchNearest = "nearest"
)

// VoterLink ties a voter to the building at their address. Match is empty
// for an unmatched voter.
type VoterLink struct {
	ResID      string
	StructID   *string
	AddressKey string
	Match      string
	DistanceM  *float64
}
