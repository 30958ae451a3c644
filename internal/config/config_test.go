package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.Debounce)
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.FastDebounce)
	assert.Zero(t, cfg.Scheduler.AnalysisTimeout)
	assert.Equal(t, 128, cfg.Cache.AnalysisEntries)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gocontext.yaml")
	content := `
db_path: /tmp/index.db
scheduler:
  debounce: 250ms
  analysis_timeout: 5s
cache:
  analysis_entries: 16
watcher:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/index.db", cfg.DBPath)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.Debounce)
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.FastDebounce, "unset keys keep defaults")
	assert.Equal(t, 5*time.Second, cfg.Scheduler.AnalysisTimeout)
	assert.Equal(t, 16, cfg.Cache.AnalysisEntries)
	assert.False(t, cfg.Watcher.Enabled)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler: [not, a, map]\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("GOCONTEXT_DB_PATH", "/env/index.db")
	t.Setenv("GOCONTEXT_DEBOUNCE", "1s")
	t.Setenv("GOCONTEXT_WORKERS", "3")
	t.Setenv("GOCONTEXT_WATCH", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/index.db", cfg.DBPath)
	assert.Equal(t, time.Second, cfg.Scheduler.Debounce)
	assert.Equal(t, 3, cfg.Indexer.Workers)
	assert.False(t, cfg.Watcher.Enabled)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	env := map[string]string{
		"GOCONTEXT_DEBOUNCE": "soon",
		"GOCONTEXT_WORKERS":  "many",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOCONTEXT_DEBOUNCE")
	assert.Contains(t, err.Error(), "GOCONTEXT_WORKERS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"negative debounce", func(c *Config) { c.Scheduler.Debounce = -time.Second }},
		{"negative cache size", func(c *Config) { c.Cache.ParseEntries = -1 }},
		{"negative max age", func(c *Config) { c.Cache.MaxAge = -time.Second }},
		{"negative workers", func(c *Config) { c.Indexer.Workers = -2 }},
		{"negative watcher debounce", func(c *Config) { c.Watcher.Debounce = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
