package server

// Route paths served by the report API.
const (
	Health          = "/healthz"
	SummaryRoute    = "/api/summary"
	BuildingRoute   = "/api/buildings/{structID}"
	ParcelBuildings = "/api/parcels/{parcelID}/buildings"
)
