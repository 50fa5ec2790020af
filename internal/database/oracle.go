package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	_ "github.com/sijms/go-ora/v2"

	"parcellink/internal/types"
)

// dsn builds a properly encoded connection string for Oracle Autonomous Database
func dsn(username, password, host, port, service string, walletLocation string) string {
	if walletLocation != "" {
		// Use wallet-based mTLS connection
		return fmt.Sprintf(
			"oracle://%s:%s@%s:%s/%s?ssl=true&wallet_location=%s",
			url.PathEscape(username), url.PathEscape(password), host, port, service, url.PathEscape(walletLocation))
	}

	return (&url.URL{
		Scheme:   "oracle",
		User:     url.UserPassword(username, password), // escapes automatically
		Host:     host + ":" + port,
		Path:     "/" + service, // keep full service name
		RawQuery: "ssl=true",    // ADB requires TCPS on 1522
	}).String()
}

var oracleSchema = []string{
	`CREATE TABLE buildings (
		struct_id  VARCHAR2(64) PRIMARY KEY,
		local_id   VARCHAR2(128),
		source     VARCHAR2(64),
		area_sqft  NUMBER,
		centroid_x NUMBER,
		centroid_y NUMBER,
		geom_wkt   CLOB,
		run_id     VARCHAR2(36) NOT NULL)`,
	`CREATE TABLE building_parcel_map (
		struct_id   VARCHAR2(64) NOT NULL,
		parcel_key  VARCHAR2(64) NOT NULL,
		parcel_id   VARCHAR2(64),
		provenance  VARCHAR2(32) NOT NULL,
		flag        VARCHAR2(64),
		area_sqft   NUMBER,
		source      VARCHAR2(64),
		local_id    VARCHAR2(128),
		official_id VARCHAR2(64),
		loc_id      VARCHAR2(64),
		poly_type   VARCHAR2(32),
		map_no      VARCHAR2(32),
		town_id     VARCHAR2(16),
		run_id      VARCHAR2(36) NOT NULL,
		PRIMARY KEY (struct_id, parcel_key))`,
	`CREATE TABLE building_assessments (
		struct_id      VARCHAR2(64) NOT NULL,
		parcel_key     VARCHAR2(64) NOT NULL,
		parcel_id      VARCHAR2(64),
		provenance     VARCHAR2(32) NOT NULL,
		flag           VARCHAR2(64),
		area_sqft      NUMBER,
		source         VARCHAR2(64),
		local_id       VARCHAR2(128),
		official_id    VARCHAR2(64),
		fiscal_year    NUMBER(4),
		building_value NUMBER,
		land_value     NUMBER,
		total_value    NUMBER,
		use_code       VARCHAR2(16),
		owner_names    VARCHAR2(1000),
		site_address   VARCHAR2(256),
		year_built     NUMBER(4),
		run_id         VARCHAR2(36) NOT NULL,
		PRIMARY KEY (struct_id, parcel_key))`,
	`CREATE TABLE voters_buildings_map (
		res_id       VARCHAR2(64) PRIMARY KEY,
		struct_id    VARCHAR2(64),
		address_key  VARCHAR2(256),
		match_method VARCHAR2(16),
		distance_m   NUMBER,
		run_id       VARCHAR2(36) NOT NULL)`,
}

// Oracle is a Store backed by database/sql and go-ora.
type Oracle struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// NewOracle opens and pings an Oracle connection.
func NewOracle(ctx context.Context, config DBConfig, log logrus.FieldLogger) (*Oracle, error) {
	connStr := dsn(config.Username, config.Password, config.Host, config.Port, config.Service, config.WalletLocation)

	log.WithFields(logrus.Fields{"host": config.Host, "service": config.Service}).Info("Connecting to Oracle")

	db, err := sql.Open("oracle", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Oracle{db: db, log: log}, nil
}

// Close closes the database connection
func (o *Oracle) Close() error {
	return o.db.Close()
}

// EnsureSchema creates missing tables. ORA-00955 (name already used) is
// not an error.
func (o *Oracle) EnsureSchema(ctx context.Context) error {
	for _, ddl := range oracleSchema {
		if _, err := o.db.ExecContext(ctx, ddl); err != nil {
			if strings.Contains(err.Error(), "ORA-00955") {
				continue
			}
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// replace deletes every row of table and inserts one row per args entry in
// one transaction.
func (o *Oracle) replace(ctx context.Context, table, insert string, n int, args func(i int) []interface{}) error {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, oracleSQL(insert))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	o.log.WithField("table", table).Infof("Wrote %d rows", n)
	return nil
}

func (o *Oracle) ReplaceBuildings(ctx context.Context, runID string, buildings []types.Building) error {
	return o.replace(ctx, "buildings", insertBuildingSQL, len(buildings), func(i int) []interface{} {
		return buildingArgs(runID, buildings[i])
	})
}

func (o *Oracle) ReplaceMappings(ctx context.Context, runID string, rows []types.Mapping) error {
	return o.replace(ctx, "building_parcel_map", insertMappingSQL, len(rows), func(i int) []interface{} {
		return mappingArgs(runID, rows[i])
	})
}

func (o *Oracle) ReplaceAssessments(ctx context.Context, runID string, rows []types.BuildingAssessment) error {
	return o.replace(ctx, "building_assessments", insertAssessmentSQL, len(rows), func(i int) []interface{} {
		return assessmentArgs(runID, rows[i])
	})
}

func (o *Oracle) ReplaceVoterLinks(ctx context.Context, runID string, links []types.VoterLink) error {
	return o.replace(ctx, "voters_buildings_map", insertVoterLinkSQL, len(links), func(i int) []interface{} {
		return voterLinkArgs(runID, links[i])
	})
}

// Summary reports row counts from the derived tables.
func (o *Oracle) Summary(ctx context.Context) (*Summary, error) {
	s := &Summary{ByProvenance: make(map[string]int)}

	rows, err := o.db.QueryContext(ctx, countByProvenanceSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var prov string
		var n int
		if err := rows.Scan(&prov, &n); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.ByProvenance[prov] = n
		s.Rows += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}

	var runID sql.NullString
	if err := o.db.QueryRowContext(ctx, latestRunSQL).Scan(&runID); err != nil {
		return nil, fmt.Errorf("failed to query run id: %w", err)
	}
	s.RunID = runID.String

	for _, c := range []struct {
		query string
		dest  *int
	}{
		{countBuildingsSQL, &s.Buildings},
		{countFlaggedSQL, &s.Flagged},
		{countAssessedSQL, &s.Assessed},
		{countVoterLinksSQL, &s.VoterLinks},
	} {
		if err := o.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to query summary: %w", err)
		}
	}
	return s, nil
}

func (o *Oracle) BuildingAssessments(ctx context.Context, structID string) ([]types.BuildingAssessment, error) {
	return o.queryAssessments(ctx, selectByStructSQL, structID)
}

func (o *Oracle) ParcelBuildings(ctx context.Context, parcelID string) ([]types.BuildingAssessment, error) {
	return o.queryAssessments(ctx, selectByParcelSQL, parcelID)
}

func (o *Oracle) queryAssessments(ctx context.Context, query, arg string) ([]types.BuildingAssessment, error) {
	rows, err := o.db.QueryContext(ctx, oracleSQL(query), arg)
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
