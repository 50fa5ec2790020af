package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"

	"parcellink/internal/types"
)

const (
	maxConnectRetries = 5
	connectTimeout    = 5 * time.Second
	initialBackoff    = 500 * time.Millisecond
)

// srid is Massachusetts Mainland state plane (metres).
const srid = 26986

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS buildings (
		struct_id  TEXT PRIMARY KEY,
		local_id   TEXT,
		source     TEXT,
		area_sqft  DOUBLE PRECISION,
		centroid_x DOUBLE PRECISION,
		centroid_y DOUBLE PRECISION,
		geom_wkt   TEXT,
		run_id     UUID NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS building_parcel_map (
		struct_id   TEXT NOT NULL,
		parcel_key  TEXT NOT NULL,
		parcel_id   TEXT,
		provenance  TEXT NOT NULL,
		flag        TEXT,
		area_sqft   DOUBLE PRECISION,
		source      TEXT,
		local_id    TEXT,
		official_id TEXT,
		loc_id      TEXT,
		poly_type   TEXT,
		map_no      TEXT,
		town_id     TEXT,
		run_id      UUID NOT NULL,
		PRIMARY KEY (struct_id, parcel_key))`,
	`CREATE TABLE IF NOT EXISTS building_assessments (
		struct_id      TEXT NOT NULL,
		parcel_key     TEXT NOT NULL,
		parcel_id      TEXT,
		provenance     TEXT NOT NULL,
		flag           TEXT,
		area_sqft      DOUBLE PRECISION,
		source         TEXT,
		local_id       TEXT,
		official_id    TEXT,
		fiscal_year    INTEGER,
		building_value DOUBLE PRECISION,
		land_value     DOUBLE PRECISION,
		total_value    DOUBLE PRECISION,
		use_code       TEXT,
		owner_names    TEXT,
		site_address   TEXT,
		year_built     INTEGER,
		run_id         UUID NOT NULL,
		PRIMARY KEY (struct_id, parcel_key))`,
	`CREATE INDEX IF NOT EXISTS building_assessments_parcel_idx ON building_assessments (parcel_id)`,
	`CREATE TABLE IF NOT EXISTS voters_buildings_map (
		res_id       TEXT PRIMARY KEY,
		struct_id    TEXT,
		address_key  TEXT,
		match_method TEXT,
		distance_m   DOUBLE PRECISION,
		run_id       UUID NOT NULL)`,
}

// PostGIS adds a geometry column filled from geom_wkt when the extension
// is installed.
var postgisSchema = []string{
	fmt.Sprintf(`ALTER TABLE buildings ADD COLUMN IF NOT EXISTS geom geometry(MultiPolygon, %d)`, srid),
	`CREATE INDEX IF NOT EXISTS buildings_geom_idx ON buildings USING GIST (geom)`,
}

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool    *pgxpool.Pool
	log     logrus.FieldLogger
	postgis bool
}

func postgresURL(config DBConfig) string {
	q := url.Values{}
	if config.SSLMode != "" {
		q.Set("sslmode", config.SSLMode)
	}
	return (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(config.Username, config.Password),
		Host:     config.Host + ":" + config.Port,
		Path:     "/" + config.Name,
		RawQuery: q.Encode(),
	}).String()
}

// NewPostgres connects with exponential backoff and pings the pool.
func NewPostgres(ctx context.Context, config DBConfig, log logrus.FieldLogger) (*Postgres, error) {
	connURL := postgresURL(config)

	var (
		pool    *pgxpool.Pool
		err     error
		backoff = initialBackoff
	)
	for i := 1; i <= maxConnectRetries; i++ {
		pool, err = connectPool(ctx, connURL)
		if err == nil {
			log.Infof("Connected to Postgres on attempt %d", i)
			break
		}

		log.WithError(err).Warnf("Failed to connect to Postgres on attempt %d/%d. Retrying in %v...", i, maxConnectRetries, backoff)
		if i == maxConnectRetries {
			return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", maxConnectRetries, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return &Postgres{pool: pool, log: log}, nil
}

func connectPool(ctx context.Context, connURL string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.Connect(ctx, connURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// EnsureSchema creates the derived tables and, when PostGIS is available,
// the footprint geometry column.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, ddl := range postgresSchema {
		if _, err := p.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	var installed bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'postgis')`).Scan(&installed)
	if err != nil {
		return fmt.Errorf("failed to check for postgis: %w", err)
	}
	if !installed {
		p.log.Info("PostGIS not installed; footprints stored as WKT text only")
		return nil
	}

	for _, ddl := range postgisSchema {
		if _, err := p.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create postgis columns: %w", err)
		}
	}
	p.postgis = true
	return nil
}

// replace clears table and inserts all rows through one batch inside a
// transaction.
func (p *Postgres) replace(ctx context.Context, table, insert string, n int, args func(i int) []interface{}) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	batch := &pgx.Batch{}
	for i := 0; i < n; i++ {
		batch.Queue(insert, args(i)...)
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert row %d into %s: %w", i, table, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	p.log.WithField("table", table).Infof("Wrote %d rows", n)
	return nil
}

func (p *Postgres) ReplaceBuildings(ctx context.Context, runID string, buildings []types.Building) error {
	if err := p.replace(ctx, "buildings", insertBuildingSQL, len(buildings), func(i int) []interface{} {
		return buildingArgs(runID, buildings[i])
	}); err != nil {
		return err
	}
	if !p.postgis {
		return nil
	}
	_, err := p.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE buildings SET geom = ST_Multi(ST_GeomFromText(geom_wkt, %d)) WHERE geom_wkt IS NOT NULL`, srid))
	if err != nil {
		return fmt.Errorf("failed to build footprint geometry: %w", err)
	}
	return nil
}

func (p *Postgres) ReplaceMappings(ctx context.Context, runID string, rows []types.Mapping) error {
	return p.replace(ctx, "building_parcel_map", insertMappingSQL, len(rows), func(i int) []interface{} {
		return mappingArgs(runID, rows[i])
	})
}

func (p *Postgres) ReplaceAssessments(ctx context.Context, runID string, rows []types.BuildingAssessment) error {
	return p.replace(ctx, "building_assessments", insertAssessmentSQL, len(rows), func(i int) []interface{} {
		return assessmentArgs(runID, rows[i])
	})
}

func (p *Postgres) ReplaceVoterLinks(ctx context.Context, runID string, links []types.VoterLink) error {
	return p.replace(ctx, "voters_buildings_map", insertVoterLinkSQL, len(links), func(i int) []interface{} {
		return voterLinkArgs(runID, links[i])
	})
}

func (p *Postgres) Summary(ctx context.Context) (*Summary, error) {
	s := &Summary{ByProvenance: make(map[string]int)}

	rows, err := p.pool.Query(ctx, countByProvenanceSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	for rows.Next() {
		var prov string
		var n int
		if err := rows.Scan(&prov, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.ByProvenance[prov] = n
		s.Rows += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}

	var runID *string
	if err := p.pool.QueryRow(ctx, `SELECT MAX(run_id::text) FROM building_parcel_map`).Scan(&runID); err != nil {
		return nil, fmt.Errorf("failed to query run id: %w", err)
	}
	if runID != nil {
		s.RunID = *runID
	}

	for _, c := range []struct {
		query string
		dest  *int
	}{
		{countBuildingsSQL, &s.Buildings},
		{countFlaggedSQL, &s.Flagged},
		{countAssessedSQL, &s.Assessed},
		{countVoterLinksSQL, &s.VoterLinks},
	} {
		if err := p.pool.QueryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to query summary: %w", err)
		}
	}
	return s, nil
}

func (p *Postgres) BuildingAssessments(ctx context.Context, structID string) ([]types.BuildingAssessment, error) {
	return p.queryAssessments(ctx, selectByStructSQL, structID)
}

func (p *Postgres) ParcelBuildings(ctx context.Context, parcelID string) ([]types.BuildingAssessment, error) {
	return p.queryAssessments(ctx, selectByParcelSQL, parcelID)
}

func (p *Postgres) queryAssessments(ctx context.Context, query, arg string) ([]types.BuildingAssessment, error) {
	rows, err := p.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query building assessments: %w", err)
	}
	defer rows.Close()

	var out []types.BuildingAssessment
	for rows.Next() {
		r, err := scanBuildingAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan building assessment: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
