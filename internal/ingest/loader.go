package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"parcellink/internal/config"
	"parcellink/internal/geo"
	"parcellink/internal/types"
)

// Loader turns raw layer features and delimited files into validated,
// typed records. Rows that fail validation are logged and skipped; cells
// that fail to parse become nil.
type Loader struct {
	fields   config.ResolveConfig
	log      logrus.FieldLogger
	validate *validator.Validate
}

// NewLoader returns a Loader using the attribute names in fields.
func NewLoader(fields config.ResolveConfig, log logrus.FieldLogger) *Loader {
	return &Loader{
		fields:   fields,
		log:      log,
		validate: validator.New(),
	}
}

// LoadBuildings reads the building layer at path. When wgs84 is true the
// footprints are projected to state plane before area and centroid are
// computed.
func (l *Loader) LoadBuildings(path string, wgs84 bool) ([]types.Building, error) {
	features, skipped, err := geo.LoadLayer(path)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		l.log.WithField("path", path).Warnf("Skipped %d non-polygon building records", skipped)
	}
	return l.Buildings(features, wgs84), nil
}

// Buildings converts building features. Duplicate structure ids keep the
// first occurrence.
func (l *Loader) Buildings(features []geo.Feature, wgs84 bool) []types.Building {
	seen := make(map[string]bool, len(features))
	buildings := make([]types.Building, 0, len(features))

	for i, f := range features {
		fp := f.Geometry
		if wgs84 {
			fp = geo.ProjectMultiPolygon(fp)
		}

		b := types.Building{
			StructID:  strings.TrimSpace(f.Attrs[l.fields.StructIDField]),
			LocalID:   optional(f.Attrs[l.fields.LocalIDField]),
			Source:    f.Attrs[l.fields.SourceField],
			Footprint: fp,
		}
		if err := l.validate.Struct(b); err != nil {
			l.log.WithField("feature", i).WithError(err).Warn("Skipping invalid building record")
			continue
		}
		if seen[b.StructID] {
			l.log.WithField("struct_id", b.StructID).Warn("Duplicate structure id; keeping first occurrence")
			continue
		}
		seen[b.StructID] = true

		// Prefer the layer's own area attribute.
		if v, ok := ParseDollar(f.Attrs[l.fields.AreaField]); ok && v > 0 {
			b.AreaSqFt = v
		} else {
			b.AreaSqFt = geo.Area(fp) * geo.SqFtPerSqM
		}
		b.Centroid = geo.Centroid(fp)

		num := f.Attrs[l.fields.AddressNumField]
		street := f.Attrs[l.fields.AddressStField]
		if num != "" && street != "" {
			b.Address = &types.Address{
				StreetNumber: num,
				StreetName:   street,
				Formatted:    num + " " + street,
			}
		}

		buildings = append(buildings, b)
	}

	l.log.Infof("Loaded %d buildings", len(buildings))
	return buildings
}

// LoadParcels reads the parcel layer at path.
func (l *Loader) LoadParcels(path string, wgs84 bool) ([]types.Parcel, error) {
	features, skipped, err := geo.LoadLayer(path)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		l.log.WithField("path", path).Warnf("Skipped %d non-polygon parcel records", skipped)
	}
	return l.Parcels(features, wgs84), nil
}

// Parcels converts parcel features. Every polygon is kept, including
// several polygons sharing one parcel id (condo and multi-part lots).
func (l *Loader) Parcels(features []geo.Feature, wgs84 bool) []types.Parcel {
	parcels := make([]types.Parcel, 0, len(features))
	for i, f := range features {
		fp := f.Geometry
		if wgs84 {
			fp = geo.ProjectMultiPolygon(fp)
		}

		p := types.Parcel{
			ParcelID:  CanonicalParcelID(f.Attrs[l.fields.ParcelIDField]),
			LocID:     f.Attrs[l.fields.ParcelLocField],
			PolyType:  f.Attrs[l.fields.PolyTypeField],
			MapNo:     f.Attrs[l.fields.MapNoField],
			TownID:    f.Attrs[l.fields.TownIDField],
			Footprint: fp,
		}
		if err := l.validate.Struct(p); err != nil {
			l.log.WithField("feature", i).WithError(err).Warn("Skipping invalid parcel record")
			continue
		}
		parcels = append(parcels, p)
	}

	l.log.Infof("Loaded %d parcels", len(parcels))
	return parcels
}

// LoadAssessments reads a comma- or pipe-delimited assessment file. Column
// names from the MassGIS L3 table and the scraper output are both accepted.
func (l *Loader) LoadAssessments(path string) ([]types.Assessment, error) {
	var out []types.Assessment
	warnings := 0

	err := readTable(path, func(row int, rec map[string]string) {
		a, problems := assessmentFromRecord(rec)
		for _, p := range problems {
			warnings++
			l.log.WithField("row", row).WithField("prop_id", a.PropertyID).Debug(p)
		}
		if err := l.validate.Struct(a); err != nil {
			warnings++
			l.log.WithField("row", row).WithError(err).Warn("Skipping invalid assessment record")
			return
		}
		out = append(out, a)
	}, func(row int, err error) {
		warnings++
		l.log.WithField("row", row).WithError(err).Warn("Skipping malformed assessment row")
	})
	if err != nil {
		return nil, err
	}

	if warnings > 0 {
		l.log.Warnf("Assessment file had %d problems; affected cells were left empty", warnings)
	}
	l.log.Infof("Loaded %d assessment records", len(out))
	return out, nil
}

func assessmentFromRecord(rec map[string]string) (types.Assessment, []string) {
	var problems []string

	a := types.Assessment{
		PropertyID:  CanonicalParcelID(firstOf(rec, "PROP_ID", "PID", "parcel_id", "MAP_PAR_ID")),
		UseCode:     firstOf(rec, "USE_CODE", "LU", "land_use", "classification_code"),
		SiteAddress: firstOf(rec, "SITE_ADDR", "LOCATION", "address"),
	}

	fy := firstOf(rec, "FY", "FISCAL_YEAR", "fiscal_year")
	if y, ok := parseYear(fy); ok {
		a.FiscalYear = y
	} else {
		problems = append(problems, fmt.Sprintf("unparseable fiscal year %q", fy))
	}

	money := func(label string, columns ...string) *float64 {
		raw := firstOf(rec, columns...)
		if raw == "" {
			return nil
		}
		v, ok := ParseDollar(raw)
		if !ok {
			problems = append(problems, fmt.Sprintf("unparseable %s %q", label, raw))
			return nil
		}
		return &v
	}
	a.BuildingValue = money("building value", "BLDG_VAL", "BLDG_VALUE", "building_value")
	a.LandValue = money("land value", "LAND_VAL", "LAND_VALUE", "land_value")
	a.TotalValue = money("total value", "TOTAL_VAL", "TOTAL_VALUE", "total_assessed_value", "assessed_value")

	if raw := firstOf(rec, "YEAR_BUILT", "YR_BUILT", "year_built"); raw != "" {
		if y, ok := parseYear(raw); ok {
			a.YearBuilt = &y
		} else {
			problems = append(problems, fmt.Sprintf("unparseable year built %q", raw))
		}
	}

	for _, col := range []string{"OWNER1", "OWNER", "owner_name", "OWNER2"} {
		if v := strings.TrimSpace(rec[col]); v != "" {
			a.OwnerNames = appendUnique(a.OwnerNames, v)
		}
	}
	if list := strings.TrimSpace(rec["current_owners"]); list != "" {
		for _, o := range strings.Split(list, ";") {
			if o = strings.TrimSpace(o); o != "" {
				a.OwnerNames = appendUnique(a.OwnerNames, o)
			}
		}
	}

	return a, problems
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return list
		}
	}
	return append(list, v)
}

// LoadVoters reads the cleaned voter roll.
func (l *Loader) LoadVoters(path string) ([]types.Voter, error) {
	var out []types.Voter
	err := readTable(path, func(row int, rec map[string]string) {
		v := types.Voter{
			ResID:        firstOf(rec, "Res ID", "res_id"),
			LastName:     firstOf(rec, "Last Name", "last_name"),
			FirstName:    firstOf(rec, "First Name", "first_name"),
			StreetNumber: strings.TrimSuffix(firstOf(rec, "Street .", "Street #", "street_number"), ".0"),
			StreetSuffix: firstOf(rec, "Sffx", "street_suffix"),
			StreetName:   firstOf(rec, "Street Name", "street_name"),
			Apartment:    firstOf(rec, "Apt .", "Apt #", "apartment"),
			Zip:          firstOf(rec, "Zip", "zip"),
			Ward:         firstOf(rec, "Ward", "ward"),
			Precinct:     firstOf(rec, "Precinct", "precinct"),
			DOB:          firstOf(rec, "DOB", "dob"),
			Occupation:   firstOf(rec, "Occupation", "occupation"),
		}
		if lat, lon, ok := parseLatLon(firstOf(rec, "latitude", "Latitude"), firstOf(rec, "longitude", "Longitude")); ok {
			v.Latitude, v.Longitude = &lat, &lon
		}
		if err := l.validate.Struct(v); err != nil {
			l.log.WithField("row", row).WithError(err).Warn("Skipping voter without resident id")
			return
		}
		out = append(out, v)
	}, func(row int, err error) {
		l.log.WithField("row", row).WithError(err).Warn("Skipping malformed voter row")
	})
	if err != nil {
		return nil, err
	}
	l.log.Infof("Loaded %d voters", len(out))
	return out, nil
}

// LoadAddresses reads a building address file (STRUCT_ID, street_number,
// street_name, zip, formatted_address) keyed by struct id.
func (l *Loader) LoadAddresses(path string) (map[string]types.Address, error) {
	out := make(map[string]types.Address)
	err := readTable(path, func(row int, rec map[string]string) {
		id := firstOf(rec, "STRUCT_ID", "struct_id")
		a := types.Address{
			StreetNumber: firstOf(rec, "street_number", "house_number"),
			StreetName:   firstOf(rec, "street_name", "street"),
			Zip:          firstOf(rec, "zip", "postcode"),
			Formatted:    firstOf(rec, "formatted_address", "full_address"),
		}
		if id == "" || a.StreetNumber == "" || a.StreetName == "" {
			l.log.WithField("row", row).Debug("Skipping address row without struct id or street")
			return
		}
		out[id] = a
	}, func(row int, err error) {
		l.log.WithField("row", row).WithError(err).Warn("Skipping malformed address row")
	})
	if err != nil {
		return nil, err
	}
	l.log.Infof("Loaded %d building addresses", len(out))
	return out, nil
}

// ApplyAddresses sets Address on buildings found in addrs, keeping any
// address already present.
func ApplyAddresses(buildings []types.Building, addrs map[string]types.Address) int {
	n := 0
	for i := range buildings {
		if buildings[i].Address != nil {
			continue
		}
		if a, ok := addrs[buildings[i].StructID]; ok {
			a := a
			buildings[i].Address = &a
			n++
		}
	}
	return n
}

// LoadMappedParcelIDs returns the distinct canonical parcel ids of a
// building-parcel mapping file, sorted. Unmapped rows are ignored.
func (l *Loader) LoadMappedParcelIDs(path string) ([]string, error) {
	seen := make(map[string]bool)
	err := readTable(path, func(row int, rec map[string]string) {
		if id := CanonicalParcelID(firstOf(rec, "MAP_PAR_ID", "parcel_id")); id != "" {
			seen[id] = true
		}
	}, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	l.log.Infof("Found %d distinct mapped parcels", len(ids))
	return ids, nil
}
