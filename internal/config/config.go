// Package config loads pipeline configuration from an optional YAML file
// with environment overrides. A .env file in the working directory is
// honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DB holds connection settings for the relational store.
type DB struct {
	URL             string        `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	// FallbackPath is the embedded SQLite file used when no primary URL
	// is configured.
	FallbackPath string `yaml:"fallback_path"`
}

// Fetch holds upstream HTTP client settings.
type Fetch struct {
	OddsAPIKey     string        `yaml:"odds_api_key" env:"ODDS_API_KEY"`
	OddsAPIBase    string        `yaml:"odds_api_base"`
	MLBStatsBase   string        `yaml:"mlb_stats_base"`
	SavantBase     string        `yaml:"savant_base"`
	WeatherAPIBase string        `yaml:"weather_api_base"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	// OddsRatePerMin caps Odds API calls; the free tier is 500/month.
	OddsRatePerMin int `yaml:"odds_rate_per_min"`
}

// Alerts holds webhook alerting settings.
type Alerts struct {
	WebhookURL     string `yaml:"webhook_url" env:"DISCORD_WEBHOOK_URL"`
	ThresholdsJSON string `yaml:"thresholds_json" env:"ALERT_THRESHOLDS_JSON"`
	DashboardURL   string `yaml:"dashboard_url"`
}

// Backfill holds historical backfill tuning.
type Backfill struct {
	Workers       int `yaml:"workers"`
	BulkChunkDays int `yaml:"bulk_chunk_days"`
}

// Grading holds settlement policy knobs.
type Grading struct {
	// ClosingLinePolicy selects how the closing snapshot is chosen:
	// "latest_pregame" or "best_available".
	ClosingLinePolicy string `yaml:"closing_line_policy"`
}

// Config is the immutable process configuration.
type Config struct {
	DB       DB       `yaml:"db"`
	Fetch    Fetch    `yaml:"fetch"`
	Alerts   Alerts   `yaml:"alerts"`
	Backfill Backfill `yaml:"backfill"`
	Grading  Grading  `yaml:"grading"`
	HTTPAddr string   `yaml:"http_addr"`
	// DataDir receives backtest CSV exports.
	DataDir string `yaml:"data_dir"`
}

// Default returns the baseline configuration before file/env overlays.
func Default() Config {
	return Config{
		DB: DB{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    30 * time.Second,
			FallbackPath:    "mlbedge.db",
		},
		Fetch: Fetch{
			OddsAPIBase:    "https://api.the-odds-api.com/v4",
			MLBStatsBase:   "https://statsapi.mlb.com/api/v1",
			SavantBase:     "https://baseballsavant.mlb.com",
			WeatherAPIBase: "https://api.open-meteo.com/v1",
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			OddsRatePerMin: 10,
		},
		Backfill: Backfill{
			Workers:       4,
			BulkChunkDays: 60,
		},
		Grading: Grading{
			ClosingLinePolicy: "latest_pregame",
		},
		HTTPAddr: ":8090",
		DataDir:  "data",
	}
}

// dbURLEnvKeys is the accepted priority order for the primary DB URL.
var dbURLEnvKeys = []string{
	"SUPABASE_DB_URL",
	"DATABASE_URL",
	"SUPABASE_DATABASE_URL",
	"POSTGRES_URL",
	"POSTGRESQL_URL",
}

// resolveDBURL returns the first configured DB URL env var, falling back
// to assembling one from PG* parts when PGHOST is set.
func resolveDBURL() string {
	for _, key := range dbURLEnvKeys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	host := os.Getenv("PGHOST")
	if host == "" {
		return ""
	}
	port := os.Getenv("PGPORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("PGUSER")
	if user == "" {
		user = "postgres"
	}
	dbname := os.Getenv("PGDATABASE")
	if dbname == "" {
		dbname = "postgres"
	}
	pass := os.Getenv("PGPASSWORD")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, dbname)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s", user, host, port, dbname)
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when empty or missing), then environment overrides.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if url := resolveDBURL(); url != "" {
		cfg.DB.URL = url
	}
	if v := os.Getenv("ODDS_API_KEY"); v != "" {
		cfg.Fetch.OddsAPIKey = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.WebhookURL = v
	}
	if v := os.Getenv("ALERT_THRESHOLDS_JSON"); v != "" {
		cfg.Alerts.ThresholdsJSON = v
	}
	if v := os.Getenv("BACKFILL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Backfill.Workers = n
		}
	}
	if cfg.Backfill.Workers <= 0 {
		cfg.Backfill.Workers = 4
	}
	return cfg, nil
}
