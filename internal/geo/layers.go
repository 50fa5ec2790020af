package geo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrMissingInput is returned when a layer file does not exist.
var ErrMissingInput = errors.New("input file not found")

// Feature is one polygonal record from a vector layer together with its
// attribute values, all rendered as strings.
type Feature struct {
	Geometry orb.MultiPolygon
	Attrs    map[string]string
}

// LoadLayer reads polygon features from an ESRI shapefile (.shp) or a
// GeoJSON FeatureCollection (.geojson/.json). Non-polygon records are
// skipped and counted.
func LoadLayer(path string) ([]Feature, int, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, 0, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return loadShapefile(path)
	case ".geojson", ".json":
		return loadGeoJSON(path)
	default:
		return nil, 0, fmt.Errorf("unsupported layer format %q", filepath.Ext(path))
	}
}

// loadShapefile converts every polygon record in the shapefile to a
// Feature. Clockwise rings start a new polygon; counter-clockwise rings are
// holes of the polygon before them.
func loadShapefile(path string) ([]Feature, int, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()

	var features []Feature
	skipped := 0
	for r.Next() {
		idx, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}

		mp := shapefileRings(poly)
		if len(mp) == 0 {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			attrs[strings.Trim(f.String(), "\x00 ")] = strings.Trim(r.ReadAttribute(idx, i), "\x00 \t\r\n")
		}

		features = append(features, Feature{Geometry: mp, Attrs: attrs})
	}
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read shapefile %s: %w", path, err)
	}
	return features, skipped, nil
}

func shapefileRings(poly *shp.Polygon) orb.MultiPolygon {
	numParts := len(poly.Parts)
	var mp orb.MultiPolygon

	for partIdx := 0; partIdx < numParts; partIdx++ {
		start := poly.Parts[partIdx]
		end := int32(len(poly.Points))
		if partIdx+1 < numParts {
			end = poly.Parts[partIdx+1]
		}
		if end-start < 4 {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for i := start; i < end; i++ {
			pt := poly.Points[i]
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}

		if ring.Orientation() == orb.CW || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		last := len(mp) - 1
		mp[last] = append(mp[last], ring)
	}
	return mp
}

func loadGeoJSON(path string) ([]Feature, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse GeoJSON %s: %w", path, err)
	}

	features := make([]Feature, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		mp, ok := AsMultiPolygon(f.Geometry)
		if !ok || len(mp) == 0 {
			skipped++
			continue
		}
		attrs := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			if s, ok := propertyString(v); ok {
				attrs[k] = s
			}
		}
		features = append(features, Feature{Geometry: mp, Attrs: attrs})
	}
	return features, skipped, nil
}

// propertyString renders a decoded JSON value. Whole floats print without a
// decimal part so numeric identifiers survive the round trip.
func propertyString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}
