// Package config handles configuration for the storage engine and HNSW
// neighbor cache via a YAML file, with environment variables available to
// override individual fields for container deployments.
//
// Configuration is loaded with Load() (or started from Default()), may be
// overridden from the environment with ApplyEnv(), and should be validated
// with Validate() before use.
//
// Example Usage:
//
//	cfg, err := config.Load("helixdb.yaml")
//	if err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	cfg.ApplyEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Environment Variables:
//
//   - HELIXDB_DATA_DIR
//   - HELIXDB_IN_MEMORY=true|false
//   - HELIXDB_SYNC_WRITES=true|false
//   - HELIXDB_HNSW_M, HELIXDB_HNSW_EF_CONSTRUCTION, HELIXDB_HNSW_EF_SEARCH
//   - HELIXDB_ENCRYPTION_ENABLED=true|false
//   - HELIXDB_LOG_LEVEL=debug|info|warn|error
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a running instance.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	HNSW       HNSWConfig       `yaml:"hnsw"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Logging    LoggingConfig    `yaml:"logging"`
	Features   FeatureFlags     `yaml:"features"`
}

// StorageConfig controls the BadgerDB-backed storage engine.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	InMemory    bool   `yaml:"in_memory"`
	SyncWrites  bool   `yaml:"sync_writes"`
	MemoryLimit string `yaml:"memory_limit"` // human-readable, e.g. "512M"
}

// HNSWConfig controls the in-memory approximate nearest-neighbor index and
// its initial overlay sizing hint for the transactional neighbor cache.
type HNSWConfig struct {
	M                  int `yaml:"m"`
	EfConstruction     int `yaml:"ef_construction"`
	EfSearch           int `yaml:"ef_search"`
	OverlayInitBuckets int `yaml:"overlay_init_buckets"`
}

// EncryptionConfig controls at-rest encryption of vector payloads.
type EncryptionConfig struct {
	Enabled bool   `yaml:"enabled"`
	KeyFile string `yaml:"key_file"`
}

// LoggingConfig controls log verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns sensible defaults for a standalone instance.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:     "./data",
			InMemory:    false,
			SyncWrites:  true,
			MemoryLimit: "512M",
		},
		HNSW: HNSWConfig{
			M:                  16,
			EfConstruction:     200,
			EfSearch:           100,
			OverlayInitBuckets: 1024,
		},
		Encryption: EncryptionConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Features: defaultFeatureFlags(),
	}
}

// Load reads a YAML config file from path, falling back to Default() values
// for any field the file omits.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields of an already-loaded Config with environment
// variables, for deployments that prefer not to ship a YAML file at all.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("HELIXDB_DATA_DIR"); ok {
		c.Storage.DataDir = v
	}
	if v, ok := lookupBool("HELIXDB_IN_MEMORY"); ok {
		c.Storage.InMemory = v
	}
	if v, ok := lookupBool("HELIXDB_SYNC_WRITES"); ok {
		c.Storage.SyncWrites = v
	}
	if v, ok := lookupInt("HELIXDB_HNSW_M"); ok {
		c.HNSW.M = v
	}
	if v, ok := lookupInt("HELIXDB_HNSW_EF_CONSTRUCTION"); ok {
		c.HNSW.EfConstruction = v
	}
	if v, ok := lookupInt("HELIXDB_HNSW_EF_SEARCH"); ok {
		c.HNSW.EfSearch = v
	}
	if v, ok := lookupBool("HELIXDB_ENCRYPTION_ENABLED"); ok {
		c.Encryption.Enabled = v
	}
	if v, ok := os.LookupEnv("HELIXDB_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("config: storage.data_dir is required unless storage.in_memory is true")
	}
	if c.HNSW.M <= 0 {
		return fmt.Errorf("config: hnsw.m must be positive, got %d", c.HNSW.M)
	}
	if c.HNSW.EfConstruction <= 0 {
		return fmt.Errorf("config: hnsw.ef_construction must be positive, got %d", c.HNSW.EfConstruction)
	}
	if c.HNSW.EfSearch <= 0 {
		return fmt.Errorf("config: hnsw.ef_search must be positive, got %d", c.HNSW.EfSearch)
	}
	if c.Encryption.Enabled && strings.TrimSpace(c.Encryption.KeyFile) == "" {
		return fmt.Errorf("config: encryption.key_file is required when encryption.enabled is true")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is not one of debug|info|warn|error", c.Logging.Level)
	}
	return nil
}

func lookupBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseMemorySize parses a human-readable memory size string such as "512M"
// or "4G" into a byte count. Accepts B/K/KB/M/MB/G/GB suffixes (case
// insensitive) or a bare integer byte count.
func ParseMemorySize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("config: empty memory size")
	}

	upper := strings.ToUpper(s)
	multiplier := int64(1)
	numPart := upper

	switch {
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		numPart = strings.TrimSuffix(upper, "GB")
	case strings.HasSuffix(upper, "G"):
		multiplier = 1024 * 1024 * 1024
		numPart = strings.TrimSuffix(upper, "G")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		numPart = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "M"):
		multiplier = 1024 * 1024
		numPart = strings.TrimSuffix(upper, "M")
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		numPart = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "K"):
		multiplier = 1024
		numPart = strings.TrimSuffix(upper, "K")
	case strings.HasSuffix(upper, "B"):
		numPart = strings.TrimSuffix(upper, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(numPart), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid memory size %q: %w", s, err)
	}
	return n * multiplier, nil
}
