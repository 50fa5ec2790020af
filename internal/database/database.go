package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"parcellink/internal/types"
)

// DBConfig holds database connection configuration. Name is the Postgres
// database; Service and WalletLocation are Oracle-only.
type DBConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	Service        string `mapstructure:"service"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	WalletLocation string `mapstructure:"wallet_location"`
	SSLMode        string `mapstructure:"sslmode"`
}

// ErrUnknownDriver is returned by Open for drivers other than postgres and
// oracle.
var ErrUnknownDriver = errors.New("unknown database driver")

// Summary is the store-side view of the latest run.
type Summary struct {
	RunID        string         `json:"run_id"`
	Buildings    int            `json:"buildings"`
	Rows         int            `json:"rows"`
	ByProvenance map[string]int `json:"by_provenance"`
	Flagged      int            `json:"flagged"`
	Assessed     int            `json:"assessed"`
	VoterLinks   int            `json:"voter_links"`
}

// Reader is the read side used by the report server.
type Reader interface {
	Summary(ctx context.Context) (*Summary, error)
	BuildingAssessments(ctx context.Context, structID string) ([]types.BuildingAssessment, error)
	ParcelBuildings(ctx context.Context, parcelID string) ([]types.BuildingAssessment, error)
}

// Store is the relational write boundary of a pipeline run. Each Replace
// call swaps the table's contents for rows in a single transaction.
type Store interface {
	Reader
	EnsureSchema(ctx context.Context) error
	ReplaceBuildings(ctx context.Context, runID string, buildings []types.Building) error
	ReplaceMappings(ctx context.Context, runID string, rows []types.Mapping) error
	ReplaceAssessments(ctx context.Context, runID string, rows []types.BuildingAssessment) error
	ReplaceVoterLinks(ctx context.Context, runID string, links []types.VoterLink) error
	Close() error
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, driver string, config DBConfig, log logrus.FieldLogger) (Store, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgis":
		return NewPostgres(ctx, config, log)
	case "oracle":
		return NewOracle(ctx, config, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
