// Package config loads process configuration from GRIDBOARD_* environment
// variables. Command-line flags override the loaded values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables:
//
//	GRIDBOARD_ADDR: listen address for serve (default :8080)
//	GRIDBOARD_API_URL: base URL the terminal client talks to (default http://localhost:8080)
//	GRIDBOARD_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	GRIDBOARD_SQLITE_PATH: sqlite file when driver=sqlite (default ./gridboard.db)
//	GRIDBOARD_POSTGRES_DSN: postgres DSN when driver=postgres
//	GRIDBOARD_BLOB_DRIVER: fs|s3|memory for export artifacts (default memory)
//	GRIDBOARD_BLOB_FS_ROOT: directory root when blob driver=fs (default ./exports)
//	GRIDBOARD_BLOB_S3_BUCKET / _REGION / _ENDPOINT / _PATH_STYLE: s3 blob settings
//	GRIDBOARD_SEED_PATH: optional JSON snapshot applied at startup
//	GRIDBOARD_WATCH_SEED: true to re-apply the seed file when it changes
//	GRIDBOARD_LOG_LEVEL: debug|info|warn|error (default info)
//	GRIDBOARD_REFRESH: terminal client polling interval (default 5s)
const envPrefix = "GRIDBOARD_"

// Config holds every tunable of the server and the terminal client.
type Config struct {
	Addr          string
	APIURL        string
	StorageDriver string
	SQLitePath    string
	PostgresDSN   string
	Blob          BlobConfig
	SeedPath      string
	WatchSeed     bool
	LogLevel      slog.Level
	Refresh       time.Duration
}

// BlobConfig selects the artifact store used by dashboard exports.
type BlobConfig struct {
	Driver      string
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:          ":8080",
		APIURL:        "http://localhost:8080",
		StorageDriver: "memory",
		SQLitePath:    "gridboard.db",
		Blob:          BlobConfig{Driver: "memory", FSRoot: "exports", S3Region: "us-east-1"},
		LogLevel:      slog.LevelInfo,
		Refresh:       5 * time.Second,
	}
}

// Load overlays environment variables read through lookup onto the defaults.
// Passing nil uses os.LookupEnv.
func Load(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	cfg := Default()
	if v, ok := get("ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := get("API_URL"); ok {
		cfg.APIURL = strings.TrimSuffix(v, "/")
	}
	if v, ok := get("STORAGE_DRIVER"); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v, ok := get("SQLITE_PATH"); ok {
		cfg.SQLitePath = v
	}
	if v, ok := get("POSTGRES_DSN"); ok {
		cfg.PostgresDSN = v
	}
	if v, ok := get("BLOB_DRIVER"); ok {
		cfg.Blob.Driver = strings.ToLower(v)
	}
	if v, ok := get("BLOB_FS_ROOT"); ok {
		cfg.Blob.FSRoot = v
	}
	if v, ok := get("BLOB_S3_BUCKET"); ok {
		cfg.Blob.S3Bucket = v
	}
	if v, ok := get("BLOB_S3_REGION"); ok {
		cfg.Blob.S3Region = v
	}
	if v, ok := get("BLOB_S3_ENDPOINT"); ok {
		cfg.Blob.S3Endpoint = v
	}
	if v, ok := get("BLOB_S3_PATH_STYLE"); ok {
		cfg.Blob.S3PathStyle = strings.EqualFold(v, "true")
	}
	if v, ok := get("SEED_PATH"); ok {
		cfg.SeedPath = v
	}
	if v, ok := get("WATCH_SEED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%sWATCH_SEED: %w", envPrefix, err)
		}
		cfg.WatchSeed = b
	}
	if v, ok := get("LOG_LEVEL"); ok {
		lvl, err := ParseLevel(v)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = lvl
	}
	if v, ok := get("REFRESH"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%sREFRESH: %w", envPrefix, err)
		}
		cfg.Refresh = d
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown drivers and incomplete driver settings.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case "memory", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("%sPOSTGRES_DSN required for postgres driver", envPrefix)
		}
	default:
		return fmt.Errorf("unknown storage driver %s", c.StorageDriver)
	}
	switch c.Blob.Driver {
	case "memory", "fs":
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("%sBLOB_S3_BUCKET required for s3 driver", envPrefix)
		}
	default:
		return fmt.Errorf("unknown blob driver %s", c.Blob.Driver)
	}
	if c.Refresh <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%sLOG_LEVEL: %w", envPrefix, err)
	}
	return lvl, nil
}
