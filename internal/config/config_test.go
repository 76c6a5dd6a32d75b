package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lifepulse/internal/storage"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, storage.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, storage.DefaultNamespace, cfg.Storage.Namespace)
	assert.Equal(t, int64(storage.DefaultCapacity), cfg.Storage.Capacity)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, 7*24*time.Hour, cfg.Sync.Retention)
	assert.Equal(t, 5*time.Second, cfg.Connectivity.PollInterval)
	assert.True(t, cfg.Connectivity.InitialOnline)
	assert.Equal(t, SubmitterHTTP, cfg.Remote.Submitter)
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifepulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: memory
sync:
  interval: 1m
  max_retries: 2
remote:
  submitter: redis
  redis:
    channel: dispatch
`), 0o600))

	t.Setenv("LIFEPULSE_SYNC_INTERVAL", "10s")
	t.Setenv("LIFEPULSE_REMOTE_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("LIFEPULSE_CONNECTIVITY_PROBE_URL", "https://api.example.org/health")
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, storage.DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.Sync.Interval, "environment wins over the file")
	assert.Equal(t, 2, cfg.Sync.MaxRetries)
	assert.Equal(t, SubmitterRedis, cfg.Remote.Submitter)
	assert.Equal(t, "dispatch", cfg.Remote.Redis.Channel)
	assert.Equal(t, "redis://cache:6379/1", cfg.Remote.Redis.URL)
	assert.Equal(t, "https://api.example.org/health", cfg.Connectivity.ProbeURL)
	assert.Equal(t, 8080, cfg.Server.Port, "only prefixed variables apply")

	broker := cfg.ToBrokerConfig()
	assert.Equal(t, "redis://cache:6379/1", broker.URL)
	assert.Equal(t, 10*time.Second, cfg.ToSyncConfig().Interval)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		return cfg
	}

	tests := map[string]func(c *Config){
		"unknown driver":     func(c *Config) { c.Storage.Driver = "floppy" },
		"missing dsn":        func(c *Config) { c.Storage.DSN = "" },
		"zero interval":      func(c *Config) { c.Sync.Interval = 0 },
		"negative retries":   func(c *Config) { c.Sync.MaxRetries = -1 },
		"zero retention":     func(c *Config) { c.Sync.Retention = 0 },
		"unknown submitter":  func(c *Config) { c.Remote.Submitter = "carrier-pigeon" },
		"http without url":   func(c *Config) { c.Remote.Endpoint = "" },
		"bad port":           func(c *Config) { c.Server.Port = 70000 },
		"zero poll interval": func(c *Config) { c.Connectivity.PollInterval = 0 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := valid()
	cfg.Storage.Driver = storage.DriverMemory
	cfg.Storage.DSN = ""
	assert.NoError(t, cfg.Validate(), "memory storage needs no dsn")
}
