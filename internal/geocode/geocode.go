package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"googlemaps.github.io/maps"

	"parcellink/internal/config"
	"parcellink/internal/geo"
	"parcellink/internal/types"
)

// ErrMissingAPIKey is returned by New when no Google Maps key is configured.
var ErrMissingAPIKey = errors.New("google maps api key not set (GOOGLE_MAPS_API_KEY)")

// ErrNoAddress is returned when the service has no street address for a
// point.
var ErrNoAddress = errors.New("no street address for location")

// ReverseGeocoder is the part of *maps.Client used here.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// Geocoder derives street addresses for buildings from their centroids.
type Geocoder struct {
	client ReverseGeocoder
	region string
	log    logrus.FieldLogger
}

// New builds a Geocoder on the Google Maps client. Requests are paced by
// the client's own rate limiter.
func New(cfg config.GeocodeConfig, log logrus.FieldLogger) (*Geocoder, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.RatePerSecond > 0 {
		opts = append(opts, maps.WithRateLimit(cfg.RatePerSecond))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return NewWithClient(client, cfg.Region, log), nil
}

func NewWithClient(client ReverseGeocoder, region string, log logrus.FieldLogger) *Geocoder {
	return &Geocoder{client: client, region: region, log: log}
}

// Address reverse geocodes a state-plane point.
func (g *Geocoder) Address(ctx context.Context, pt orb.Point) (*types.Address, error) {
	lon, lat := geo.ToWGS84(pt)
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:     &maps.LatLng{Lat: lat, Lng: lon},
		ResultType: []string{"street_address", "premise"},
		Region:     g.region,
	})
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if a := fromResult(r); a != nil {
			return a, nil
		}
	}
	return nil, ErrNoAddress
}

// fromResult picks the street number, route and postal code out of a
// result. Results without both a number and a route are not addresses.
func fromResult(r maps.GeocodingResult) *types.Address {
	a := &types.Address{Formatted: r.FormattedAddress}
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			switch t {
			case "street_number":
				a.StreetNumber = c.LongName
			case "route":
				a.StreetName = c.LongName
			case "postal_code":
				a.Zip = c.LongName
			}
		}
	}
	if a.StreetNumber == "" || a.StreetName == "" {
		return nil
	}
	if a.Formatted == "" {
		a.Formatted = strings.TrimSpace(a.StreetNumber + " " + a.StreetName)
	}
	return a
}

// Stats counts the outcome of a Fill.
type Stats struct {
	Attempted int
	Geocoded  int
	Failed    int
	Skipped   int
}

// Fill sets Address on buildings that lack one, up to limit lookups (0 means
// no limit). A failed lookup is logged and counted; cancellation stops the
// loop and is returned.
func (g *Geocoder) Fill(ctx context.Context, buildings []types.Building, limit int) (Stats, error) {
	var s Stats
	for i := range buildings {
		b := &buildings[i]
		if b.Address != nil {
			s.Skipped++
			continue
		}
		if limit > 0 && s.Attempted >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return s, err
		}

		s.Attempted++
		a, err := g.Address(ctx, b.Centroid)
		if err != nil {
			if ctx.Err() != nil {
				return s, ctx.Err()
			}
			s.Failed++
			g.log.WithField("struct_id", b.StructID).WithError(err).Warn("Reverse geocoding failed")
			continue
		}
		b.Address = a
		s.Geocoded++

		if s.Attempted%100 == 0 {
			g.log.Infof("Reverse geocoded %d buildings (%d failed)", s.Geocoded, s.Failed)
		}
	}
	return s, nil
}
