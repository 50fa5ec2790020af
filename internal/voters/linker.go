package voters

import (
	"github.com/sirupsen/logrus"
	"github.com/umahmood/haversine"

	"parcellink/internal/geo"
	"parcellink/internal/types"
)

// Stats summarizes a linking run.
type Stats struct {
	Voters    int
	Linked    int
	Unmatched int
	Ambiguous int
	Far       int
	Nearest   int
}

// Linker matches voters to buildings by standardized street address.
type Linker struct {
	byKey        map[string]*types.Building
	ambiguous    map[string]bool
	maxDistanceM float64
	nearby       *cellIndex
	log          logrus.FieldLogger
}

// NewLinker indexes buildings by address key. When several buildings share
// an address the lowest struct id is used. maxDistanceM > 0 makes Link
// warn about voters whose coordinates are farther than that from the
// matched building.
func NewLinker(buildings []types.Building, maxDistanceM float64, log logrus.FieldLogger) *Linker {
	l := &Linker{
		byKey:        make(map[string]*types.Building),
		ambiguous:    make(map[string]bool),
		maxDistanceM: maxDistanceM,
		log:          log,
	}
	for i := range buildings {
		b := &buildings[i]
		if b.Address == nil {
			continue
		}
		key := AddressKey(b.Address.StreetNumber, b.Address.StreetName)
		if key == "" {
			continue
		}
		if cur, ok := l.byKey[key]; ok {
			l.ambiguous[key] = true
			if b.StructID >= cur.StructID {
				continue
			}
		}
		l.byKey[key] = b
	}
	return l
}

// VoterKey builds the address key for a voter. The roll splits the house
// number suffix ("Sffx") from the number.
func VoterKey(v types.Voter) string {
	return AddressKey(v.StreetNumber+v.StreetSuffix, v.StreetName)
}

// EnableNearest makes Link fall back to the nearest building centroid
// within the linker's max distance for voters that have coordinates but
// whose address matches no building. It is a no-op when the max distance
// is not positive.
func (l *Linker) EnableNearest(buildings []types.Building) {
	if l.maxDistanceM <= 0 {
		return
	}
	l.nearby = newCellIndex(buildings, l.maxDistanceM)
}

// Link returns one VoterLink per voter, in input order. Unmatched voters
// get a nil StructID.
func (l *Linker) Link(voters []types.Voter) ([]types.VoterLink, Stats) {
	stats := Stats{Voters: len(voters)}
	links := make([]types.VoterLink, 0, len(voters))

	for _, v := range voters {
		key := VoterKey(v)
		link := types.VoterLink{ResID: v.ResID, AddressKey: key}

		b, ok := l.byKey[key]
		if key == "" || !ok {
			if l.nearby != nil && v.Latitude != nil && v.Longitude != nil {
				if id, d, found := l.nearby.nearest(*v.Latitude, *v.Longitude, l.maxDistanceM); found {
					link.StructID = &id
					link.DistanceM = &d
					link.Match = types.MatchNearest
					stats.Linked++
					stats.Nearest++
					links = append(links, link)
					continue
				}
			}
			stats.Unmatched++
			links = append(links, link)
			continue
		}

		id := b.StructID
		link.StructID = &id
		link.Match = types.MatchAddress
		stats.Linked++
		if l.ambiguous[key] {
			stats.Ambiguous++
		}

		if v.Latitude != nil && v.Longitude != nil && len(b.Footprint) > 0 {
			lon, lat := geo.ToWGS84(b.Centroid)
			_, km := haversine.Distance(
				haversine.Coord{Lat: *v.Latitude, Lon: *v.Longitude},
				haversine.Coord{Lat: lat, Lon: lon},
			)
			d := km * 1000
			link.DistanceM = &d
			if l.maxDistanceM > 0 && d > l.maxDistanceM {
				stats.Far++
				l.log.WithFields(logrus.Fields{
					"res_id":     v.ResID,
					"struct_id":  id,
					"distance_m": d,
				}).Warn("Voter coordinates far from matched building")
			}
		}
		links = append(links, link)
	}

	l.log.WithFields(logrus.Fields{
		"voters":    stats.Voters,
		"linked":    stats.Linked,
		"unmatched": stats.Unmatched,
		"ambiguous": stats.Ambiguous,
		"far":       stats.Far,
		"nearest":   stats.Nearest,
	}).Info("Linked voters to buildings")
	return links, stats
}
