// Package config loads graphmind's settings. Defaults are overridden by a YAML file,
// then by GRAPHMIND_* environment variables (a .env file is read first if present),
// and finally by command line flags, which the caller applies.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/psidex/graphmind/internal/explorer"
	"github.com/psidex/graphmind/internal/layout"
	"github.com/psidex/graphmind/internal/lib"
	"github.com/psidex/graphmind/internal/protocol"
	"github.com/psidex/graphmind/internal/store"
)

// DefaultFile is read when no config file is named and it exists.
const DefaultFile = "graphmind.yaml"

type HubConfig struct {
	Addr            string       `yaml:"addr"`
	StaticDir       string       `yaml:"staticDir"`
	AllowedOrigins  []string     `yaml:"allowedOrigins"`
	ShutdownTimeout lib.Duration `yaml:"shutdownTimeout"`
	// SnapshotDepth is how deep snapshots sent to viewers go.
	SnapshotDepth int `yaml:"snapshotDepth"`
}

type StoreConfig struct {
	// Backend is "fs" or "sqlite".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type ExplorerConfig struct {
	Workers          int `yaml:"workers"`
	QueueSize        int `yaml:"queueSize"`
	explorer.Options `yaml:",inline"`
}

type ClientConfig struct {
	HubURL  string       `yaml:"hubUrl"`
	Timeout lib.Duration `yaml:"timeout"`
}

type Config struct {
	LogLevel string             `yaml:"logLevel"`
	Hub      HubConfig          `yaml:"hub"`
	Store    StoreConfig        `yaml:"store"`
	Explorer ExplorerConfig     `yaml:"explorer"`
	LLM      explorer.LLMConfig `yaml:"llm"`
	Layout   layout.Config      `yaml:"layout"`
	Client   ClientConfig       `yaml:"client"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Hub: HubConfig{
			Addr:            "127.0.0.1:8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: lib.DurationFrom(10 * time.Second),
			SnapshotDepth:   store.DefaultDepth,
		},
		Store: StoreConfig{
			Backend: "fs",
			Path:    "knowledges",
		},
		Explorer: ExplorerConfig{
			Workers:   1,
			QueueSize: 16,
			Options:   explorer.Options{MaxGenerated: 200},
		},
		LLM:    explorer.DefaultLLMConfig(),
		Layout: layout.DefaultConfig(),
		Client: ClientConfig{
			HubURL:  "http://127.0.0.1:8080",
			Timeout: lib.DurationFrom(30 * time.Second),
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path and the
// environment. An empty path reads DefaultFile if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return cfg, fmt.Errorf("loading .env: %w", err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"GRAPHMIND_LOG_LEVEL":     &c.LogLevel,
		"GRAPHMIND_ADDR":          &c.Hub.Addr,
		"GRAPHMIND_STATIC_DIR":    &c.Hub.StaticDir,
		"GRAPHMIND_STORE_BACKEND": &c.Store.Backend,
		"GRAPHMIND_STORE_PATH":    &c.Store.Path,
		"GRAPHMIND_HUB_URL":       &c.Client.HubURL,
		"GRAPHMIND_LLM_BASE_URL":  &c.LLM.BaseURL,
		"GRAPHMIND_LLM_MODEL":     &c.LLM.Model,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	// The first key found wins.
	for _, key := range []string{"GRAPHMIND_LLM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY"} {
		if v := os.Getenv(key); v != "" {
			c.LLM.APIKey = v
			break
		}
	}

	ints := map[string]*int{
		"GRAPHMIND_WORKERS":       &c.Explorer.Workers,
		"GRAPHMIND_MAX_GENERATED": &c.Explorer.MaxGenerated,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks the settings every command relies on. The LLM key is only checked
// when a generator is built.
func (c Config) Validate() error {
	if _, err := lib.ParseSLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	switch c.Store.Backend {
	case "fs", "sqlite":
	default:
		return fmt.Errorf("store.backend: %w: %q", store.ErrUnknownBackend, c.Store.Backend)
	}
	if c.Store.Path == "" {
		return errors.New("store.path is empty")
	}
	if c.Explorer.Workers < 1 || c.Explorer.QueueSize < 1 {
		return fmt.Errorf("explorer: need at least one worker and queue slot, got %d and %d",
			c.Explorer.Workers, c.Explorer.QueueSize)
	}
	if c.Hub.SnapshotDepth < 0 || c.Hub.SnapshotDepth > protocol.MaxDepth {
		return fmt.Errorf("hub.snapshotDepth must be between 0 and %d", protocol.MaxDepth)
	}
	return nil
}
