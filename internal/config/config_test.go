package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psidex/graphmind/internal/explorer"
	"github.com/psidex/graphmind/internal/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// chdir changes the working directory for the duration of the test,
// restoring the previous one on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, explorer.GeminiBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, store.DefaultDepth, cfg.Hub.SnapshotDepth)
}

func TestLoadYAML(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeFile(t, ".", "custom.yaml", `
logLevel: debug
hub:
  addr: ":9000"
  shutdownTimeout: 3s
store:
  backend: sqlite
  path: graph.db
explorer:
  workers: 4
  maxGenerated: 12
layout:
  minRadius: 1
  maxRadius: 2
  minSize: 3
  maxSize: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.Hub.Addr)
	assert.Equal(t, 3*time.Second, cfg.Hub.ShutdownTimeout.Duration)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 4, cfg.Explorer.Workers)
	assert.Equal(t, 12, cfg.Explorer.MaxGenerated)
	assert.Equal(t, 16, cfg.Explorer.QueueSize, "unset keys keep their default")
	assert.Equal(t, 4.0, cfg.Layout.MaxSize)
}

func TestLoadMissingFile(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load("nope.yaml")
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Hub.Addr, cfg.Hub.Addr)
}

func TestLoadDefaultFile(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, ".", DefaultFile, "hub:\n  addr: \":7000\"\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Hub.Addr)
}

func TestEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GRAPHMIND_ADDR", ":6000")
	t.Setenv("GRAPHMIND_WORKERS", "3")
	t.Setenv("GRAPHMIND_LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Hub.Addr)
	assert.Equal(t, 3, cfg.Explorer.Workers)
	assert.Equal(t, "gemini-key", cfg.LLM.APIKey)

	t.Setenv("GRAPHMIND_WORKERS", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "GRAPHMIND_WORKERS")
}

func TestDotEnv(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, ".", ".env", "GRAPHMIND_STORE_PATH=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("GRAPHMIND_STORE_PATH") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Store.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"no workers", func(c *Config) { c.Explorer.Workers = 0 }},
		{"no queue", func(c *Config) { c.Explorer.QueueSize = 0 }},
		{"inverted sizes", func(c *Config) { c.Layout.MinSize = 40 }},
		{"deep snapshots", func(c *Config) { c.Hub.SnapshotDepth = 11 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
