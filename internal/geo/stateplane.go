package geo

// WGS-84 <-> NAD83 / Massachusetts Mainland (EPSG:26986) Lambert Conformal
// Conic, metres. MassGIS parcel and structure layers ship in this CRS; the
// WGS-84 datum shift is ignored (sub-metre at this scale).

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	spFalseEasting  = 200000.0
	spFalseNorthing = 750000.0
	phi0Deg         = 41.0              // latitude of origin
	phi1Deg         = 42.68333333333333 // standard parallel 1
	phi2Deg         = 41.71666666666667 // standard parallel 2
	lon0Deg         = -71.5             // central meridian

	semiMajorM = 6378137.0        // GRS80 semi-major axis (metres)
	ecc2       = 0.00669438002290 // GRS80 eccentricity squared

	// SqFtPerSqM converts planar areas in this CRS to square feet.
	SqFtPerSqM = 10.763910416709722
)

// lcc holds the derived cone constants for one projection.
type lcc struct {
	e    float64
	n    float64
	aF   float64
	rho0 float64
}

var maMainland = newLCC(phi0Deg, phi1Deg, phi2Deg)

func newLCC(lat0, lat1, lat2 float64) lcc {
	e := math.Sqrt(ecc2)
	phi0 := lat0 * math.Pi / 180
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180

	m := func(phi float64) float64 {
		return math.Cos(phi) / math.Sqrt(1-ecc2*math.Sin(phi)*math.Sin(phi))
	}

	m1, m2 := m(phi1), m(phi2)
	t1, t2, t0 := lccT(phi1, e), lccT(phi2, e), lccT(phi0, e)

	n := math.Log(m1/m2) / math.Log(t1/t2)
	aF := semiMajorM * m1 / (n * math.Pow(t1, n))
	return lcc{
		e:    e,
		n:    n,
		aF:   aF,
		rho0: aF * math.Pow(t0, n),
	}
}

func lccT(phi, e float64) float64 {
	es := e * math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-es)/(1+es), e/2)
}

// ToStatePlane converts WGS-84 longitude/latitude in decimal degrees to
// Massachusetts Mainland easting/northing in metres.
func ToStatePlane(lonDeg, latDeg float64) orb.Point {
	p := maMainland
	phi := latDeg * math.Pi / 180
	theta := p.n * (lonDeg - lon0Deg) * math.Pi / 180

	rho := p.aF * math.Pow(lccT(phi, p.e), p.n)
	return orb.Point{
		rho*math.Sin(theta) + spFalseEasting,
		p.rho0 - rho*math.Cos(theta) + spFalseNorthing,
	}
}

// ToWGS84 is the inverse of ToStatePlane. It returns (lon, lat) degrees.
func ToWGS84(pt orb.Point) (lonDeg, latDeg float64) {
	p := maMainland
	x := pt[0] - spFalseEasting
	y := p.rho0 - (pt[1] - spFalseNorthing)

	rho := math.Copysign(math.Hypot(x, y), p.n)
	theta := math.Atan2(x, y)
	t := math.Pow(rho/p.aF, 1/p.n)

	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		es := p.e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), p.e/2))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}

	lonDeg = theta/p.n*180/math.Pi + lon0Deg
	latDeg = phi * 180 / math.Pi
	return lonDeg, latDeg
}

// ProjectMultiPolygon returns a copy of mp with every vertex converted from
// WGS-84 to state plane.
func ProjectMultiPolygon(mp orb.MultiPolygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, len(mp))
	for i, poly := range mp {
		out[i] = make(orb.Polygon, len(poly))
		for j, ring := range poly {
			r := make(orb.Ring, len(ring))
			for k, pt := range ring {
				r[k] = ToStatePlane(pt[0], pt[1])
			}
			out[i][j] = r
		}
	}
	return out
}
