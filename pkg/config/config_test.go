package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "helixdb.yaml")
	yamlContent := `
storage:
  data_dir: /var/lib/helixdb
  sync_writes: false
hnsw:
  m: 32
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/helixdb", cfg.Storage.DataDir)
	assert.False(t, cfg.Storage.SyncWrites)
	assert.Equal(t, 32, cfg.HNSW.M)
	// Fields the file didn't set keep Default()'s values.
	assert.Equal(t, 200, cfg.HNSW.EfConstruction)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnvOverridesLoadedConfig(t *testing.T) {
	cfg := Default()

	t.Setenv("HELIXDB_DATA_DIR", "/tmp/envdata")
	t.Setenv("HELIXDB_IN_MEMORY", "true")
	t.Setenv("HELIXDB_HNSW_EF_SEARCH", "64")
	t.Setenv("HELIXDB_ENCRYPTION_ENABLED", "true")

	cfg.ApplyEnv()

	assert.Equal(t, "/tmp/envdata", cfg.Storage.DataDir)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, 64, cfg.HNSW.EfSearch)
	assert.True(t, cfg.Encryption.Enabled)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	t.Run("missing data dir without in_memory", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.DataDir = ""
		cfg.Storage.InMemory = false
		assert.Error(t, cfg.Validate())
	})

	t.Run("non positive hnsw m", func(t *testing.T) {
		cfg := Default()
		cfg.HNSW.M = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("encryption enabled without key file", func(t *testing.T) {
		cfg := Default()
		cfg.Encryption.Enabled = true
		cfg.Encryption.KeyFile = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "verbose"
		assert.Error(t, cfg.Validate())
	})
}

func TestParseMemorySize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"bytes numeric", "1024", 1024},
		{"bytes with B suffix", "1024B", 1024},
		{"kilobytes K", "1K", 1024},
		{"kilobytes KB", "1KB", 1024},
		{"megabytes M", "1M", 1024 * 1024},
		{"megabytes MB lowercase", "512mb", 512 * 1024 * 1024},
		{"gigabytes G", "1G", 1024 * 1024 * 1024},
		{"gigabytes GB lowercase", "2gb", 2 * 1024 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMemorySize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseMemorySize("not-a-size")
		assert.Error(t, err)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseMemorySize("")
		assert.Error(t, err)
	})
}
