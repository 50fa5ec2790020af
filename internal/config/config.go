package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"parcellink/internal/database"
)

// Config is built once by the CLI and handed to each stage explicitly.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Inputs  InputConfig   `mapstructure:"inputs"`
	Output  OutputConfig  `mapstructure:"output"`
	Resolve ResolveConfig `mapstructure:"resolve"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Geocode GeocodeConfig `mapstructure:"geocode"`
	Store   StoreConfig   `mapstructure:"store"`
	Server  ServerConfig  `mapstructure:"server"`
}

// InputConfig names the source files. CRS values are "stateplane" (already
// projected, the parcel layer's native CRS) or "wgs84" (longitude/latitude,
// projected on load).
type InputConfig struct {
	Buildings    string `mapstructure:"buildings"`
	BuildingsCRS string `mapstructure:"buildings_crs"`
	Parcels      string `mapstructure:"parcels"`
	ParcelsCRS   string `mapstructure:"parcels_crs"`
	Assessments  string `mapstructure:"assessments"`
	Voters       string `mapstructure:"voters"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// ResolveConfig holds the attribute names of the source layers and the
// municipality prefix used in building local identifiers.
type ResolveConfig struct {
	LocalIDPrefix   string `mapstructure:"local_id_prefix"`
	StructIDField   string `mapstructure:"struct_id_field"`
	LocalIDField    string `mapstructure:"local_id_field"`
	SourceField     string `mapstructure:"source_field"`
	ParcelIDField   string `mapstructure:"parcel_id_field"`
	ParcelLocField  string `mapstructure:"parcel_loc_field"`
	PolyTypeField   string `mapstructure:"poly_type_field"`
	MapNoField      string `mapstructure:"map_no_field"`
	TownIDField     string `mapstructure:"town_id_field"`
	AddressNumField string `mapstructure:"address_num_field"`
	AddressStField  string `mapstructure:"address_street_field"`
	AreaField       string `mapstructure:"area_field"`
}

type ScrapeConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Delay           time.Duration `mapstructure:"delay"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	CheckpointEvery int           `mapstructure:"checkpoint_every"`
	CheckpointPath  string        `mapstructure:"checkpoint_path"`
	UserAgent       string        `mapstructure:"user_agent"`
}

type GeocodeConfig struct {
	APIKey        string  `mapstructure:"api_key"`
	RatePerSecond int     `mapstructure:"rate_per_second"`
	MaxBuildings  int     `mapstructure:"max_buildings"`
	Region        string  `mapstructure:"region"`
	MaxDistanceM  float64 `mapstructure:"max_distance_m"`

	// NearestFallback links a voter whose address matches no building to
	// the nearest building centroid within MaxDistanceM.
	NearestFallback bool `mapstructure:"nearest_fallback"`
}

// StoreConfig selects the relational write target. An empty driver means
// "files only".
type StoreConfig struct {
	Driver string            `mapstructure:"driver"`
	DB     database.DBConfig `mapstructure:"db"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ErrInvalidConfig is returned when a loaded configuration cannot drive a run.
var ErrInvalidConfig = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", getEnvOrDefault("LOG_LEVEL", "info"))

	v.SetDefault("inputs.buildings", filepath.Join("data", "allston_brighton_buildings.geojson"))
	v.SetDefault("inputs.buildings_crs", "stateplane")
	v.SetDefault("inputs.parcels", filepath.Join("data", "allston_brighton_parcels.geojson"))
	v.SetDefault("inputs.parcels_crs", "stateplane")
	v.SetDefault("inputs.assessments", filepath.Join("data", "allston_brighton_assessments.csv"))
	v.SetDefault("inputs.voters", filepath.Join("data", "voter_list_cleaned.csv"))

	v.SetDefault("output.dir", filepath.Join("data", "processed"))

	v.SetDefault("resolve.local_id_prefix", "Bos")
	v.SetDefault("resolve.struct_id_field", "STRUCT_ID")
	v.SetDefault("resolve.local_id_field", "LOCAL_ID")
	v.SetDefault("resolve.source_field", "SOURCE")
	v.SetDefault("resolve.parcel_id_field", "MAP_PAR_ID")
	v.SetDefault("resolve.parcel_loc_field", "LOC_ID")
	v.SetDefault("resolve.poly_type_field", "POLY_TYPE")
	v.SetDefault("resolve.map_no_field", "MAP_NO")
	v.SetDefault("resolve.town_id_field", "TOWN_ID")
	v.SetDefault("resolve.address_num_field", "ST_NUM")
	v.SetDefault("resolve.address_street_field", "ST_NAME")
	v.SetDefault("resolve.area_field", "AREA_SQ_FT")

	v.SetDefault("scrape.base_url", "https://www.cityofboston.gov/assessing/search/")
	v.SetDefault("scrape.delay", 2*time.Second)
	v.SetDefault("scrape.timeout", 30*time.Second)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.checkpoint_every", 50)
	v.SetDefault("scrape.checkpoint_path", filepath.Join("data", "processed", "parcel_scraping.db"))
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	v.SetDefault("geocode.api_key", os.Getenv("GOOGLE_MAPS_API_KEY"))
	v.SetDefault("geocode.rate_per_second", 10)
	v.SetDefault("geocode.max_buildings", 0)
	v.SetDefault("geocode.region", "us")
	v.SetDefault("geocode.max_distance_m", 75.0)
	v.SetDefault("geocode.nearest_fallback", false)

	v.SetDefault("store.driver", getEnvOrDefault("DB_DRIVER", ""))
	v.SetDefault("store.db.host", getEnvOrDefault("DB_HOST", "localhost"))
	v.SetDefault("store.db.port", getEnvOrDefault("DB_PORT", "5432"))
	v.SetDefault("store.db.name", getEnvOrDefault("DB_NAME", "abcdc_spatial"))
	v.SetDefault("store.db.service", getEnvOrDefault("DB_SERVICE", "XE"))
	v.SetDefault("store.db.username", getEnvOrDefault("DB_USERNAME", getEnvOrDefault("DB_USER", "")))
	v.SetDefault("store.db.password", getEnvOrDefault("DB_PASSWORD", ""))
	v.SetDefault("store.db.wallet_location", getEnvOrDefault("DB_WALLET_LOCATION", ""))
	v.SetDefault("store.db.sslmode", getEnvOrDefault("DB_SSLMODE", "disable"))

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.allowed_origins", []string{"*"})
}

// Load builds a Config from defaults, an optional YAML file and PARCELLINK_*
// environment variables. The environment overrides the file, which overrides
// the defaults. A .env file only sets variables not already in the
// environment.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PARCELLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that every command relies on.
func (c *Config) Validate() error {
	if c.Resolve.LocalIDPrefix == "" {
		return fmt.Errorf("%w: resolve.local_id_prefix is empty", ErrInvalidConfig)
	}
	for _, crs := range []string{c.Inputs.BuildingsCRS, c.Inputs.ParcelsCRS} {
		if crs != "stateplane" && crs != "wgs84" {
			return fmt.Errorf("%w: unknown CRS %q (want stateplane or wgs84)", ErrInvalidConfig, crs)
		}
	}
	switch c.Store.Driver {
	case "", "postgres", "oracle":
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.Scrape.MaxRetries < 0 {
		return fmt.Errorf("%w: scrape.max_retries must be >= 0", ErrInvalidConfig)
	}
	if c.Scrape.CheckpointEvery <= 0 {
		return fmt.Errorf("%w: scrape.checkpoint_every must be > 0", ErrInvalidConfig)
	}
	return nil
}
