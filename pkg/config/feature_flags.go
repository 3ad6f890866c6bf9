package config

import (
	"os"
	"sync/atomic"
)

// Feature flag environment variables. Unlike the rest of Config these are
// process-global toggles, read at startup and again by ApplyFeatureFlags,
// mirroring how experimental
// behavior is normally staged before it earns a proper config field.
const (
	// EnvCompactionOnReplaceEnabled enables an experimental background pass
	// that deletes an HNSW vertex's previously committed out-edges once a
	// later transaction replaces its neighbor set. The neighbor cache itself
	// never deletes (see the commit materializer's write-only contract);
	// this flag only controls whether such a pass runs at all.
	EnvCompactionOnReplaceEnabled = "HELIXDB_COMPACTION_ON_REPLACE_ENABLED"

	// EnvWALEnabled enables write-ahead logging for crash recovery.
	EnvWALEnabled = "HELIXDB_WAL_ENABLED"
)

// FeatureFlags is the YAML-serializable view of the same toggles exposed as
// atomics below, so a config file can set defaults that ApplyFeatureFlags may
// then override per-deployment.
type FeatureFlags struct {
	CompactionOnReplace bool `yaml:"compaction_on_replace"`
	WAL                 bool `yaml:"wal"`
}

func defaultFeatureFlags() FeatureFlags {
	return FeatureFlags{
		CompactionOnReplace: false,
		WAL:                 true,
	}
}

var (
	compactionOnReplaceEnabled atomic.Bool
	walEnabled                 atomic.Bool
)

func init() {
	walEnabled.Store(true)
	if env := os.Getenv(EnvWALEnabled); env == "false" || env == "0" {
		walEnabled.Store(false)
	}
	if env := os.Getenv(EnvCompactionOnReplaceEnabled); env == "true" || env == "1" {
		compactionOnReplaceEnabled.Store(true)
	}
}

// ApplyFeatureFlags seeds the process-global atomics from a loaded Config,
// then lets environment variables override them, for parity with the rest
// of Config's env-override story.
func (c *Config) ApplyFeatureFlags() {
	compactionOnReplaceEnabled.Store(c.Features.CompactionOnReplace)
	walEnabled.Store(c.Features.WAL)

	if env := os.Getenv(EnvCompactionOnReplaceEnabled); env == "true" || env == "1" {
		compactionOnReplaceEnabled.Store(true)
	} else if env == "false" || env == "0" {
		compactionOnReplaceEnabled.Store(false)
	}
	if env := os.Getenv(EnvWALEnabled); env == "false" || env == "0" {
		walEnabled.Store(false)
	} else if env == "true" || env == "1" {
		walEnabled.Store(true)
	}
}

// IsCompactionOnReplaceEnabled reports whether the experimental
// delete-stale-edges-on-replace pass should run.
func IsCompactionOnReplaceEnabled() bool { return compactionOnReplaceEnabled.Load() }

// IsWALEnabled reports whether write-ahead logging is active.
func IsWALEnabled() bool { return walEnabled.Load() }

// EnableCompactionOnReplace is a runtime toggle, primarily for tests.
func EnableCompactionOnReplace() { compactionOnReplaceEnabled.Store(true) }

// DisableCompactionOnReplace is a runtime toggle, primarily for tests.
func DisableCompactionOnReplace() { compactionOnReplaceEnabled.Store(false) }
