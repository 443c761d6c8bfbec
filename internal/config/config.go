package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"huntforge.ai/internal/hunt/index"
)

type Config struct {
	Addr string `yaml:"addr"`

	DataDir      string `yaml:"data_dir"`
	SnapshotPath string `yaml:"snapshot_path"`
	RuntimeDir   string `yaml:"runtime_dir"`

	DefaultLanguage string `yaml:"default_language"`

	WS      WSConfig      `yaml:"ws"`
	Logging LoggingConfig `yaml:"logging"`
	Bounds  Bounds        `yaml:"bounds"`
}

type WSConfig struct {
	MaxQueue        int `yaml:"max_queue"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
}

type LoggingConfig struct {
	// QueryLog enables the compressed JSONL query log under RuntimeDir.
	QueryLog bool `yaml:"query_log"`
	// SessionLog enables the websocket session audit log under RuntimeDir.
	SessionLog bool `yaml:"session_log"`
	// IndexBackend selects the read-model index: "sqlite" or "none".
	IndexBackend string `yaml:"index_backend"`
}

// Bounds is the inclusive coordinate range of the game map.
type Bounds struct {
	MinX int `yaml:"min_x"`
	MinY int `yaml:"min_y"`
	MaxX int `yaml:"max_x"`
	MaxY int `yaml:"max_y"`
}

func (b Bounds) Contains(x, y int) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

func Defaults() Config {
	return Config{
		Addr:            ":8080",
		DataDir:         "./data",
		RuntimeDir:      "./runtime",
		DefaultLanguage: string(index.DefaultLanguage),
		WS: WSConfig{
			MaxQueue:        16,
			ReadTimeoutSec:  120,
			WriteTimeoutSec: 5,
		},
		Logging: LoggingConfig{
			QueryLog:     false,
			IndexBackend: "none",
		},
		Bounds: Bounds{MinX: -88, MinY: -70, MaxX: 36, MaxY: 48},
	}
}

// Load reads a YAML config on top of Defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Addr = strings.TrimSpace(c.Addr)
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.SnapshotPath = strings.TrimSpace(c.SnapshotPath)
	c.RuntimeDir = strings.TrimSpace(c.RuntimeDir)
	c.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.DefaultLanguage))
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = string(index.DefaultLanguage)
	}
	if c.WS.MaxQueue <= 0 {
		c.WS.MaxQueue = 16
	}
	if c.WS.MaxQueue > 256 {
		c.WS.MaxQueue = 256
	}
	if c.WS.ReadTimeoutSec <= 0 {
		c.WS.ReadTimeoutSec = 120
	}
	if c.WS.WriteTimeoutSec <= 0 {
		c.WS.WriteTimeoutSec = 5
	}
	c.Logging.IndexBackend = strings.ToLower(strings.TrimSpace(c.Logging.IndexBackend))
	switch c.Logging.IndexBackend {
	case "", "off", "disabled":
		c.Logging.IndexBackend = "none"
	}
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.DataDir == "" && c.SnapshotPath == "" {
		return fmt.Errorf("one of data_dir or snapshot_path is required")
	}
	if _, ok := index.ParseLanguage(c.DefaultLanguage); !ok {
		return fmt.Errorf("default_language %q is not one of %v", c.DefaultLanguage, index.LanguageCodes())
	}
	switch c.Logging.IndexBackend {
	case "none", "sqlite":
	default:
		return fmt.Errorf("unsupported logging.index_backend: %s", c.Logging.IndexBackend)
	}
	if (c.Logging.QueryLog || c.Logging.SessionLog || c.Logging.IndexBackend != "none") && c.RuntimeDir == "" {
		return fmt.Errorf("runtime_dir is required when query logging is enabled")
	}
	if c.Bounds.MinX > c.Bounds.MaxX || c.Bounds.MinY > c.Bounds.MaxY {
		return fmt.Errorf("bounds are empty: %+v", c.Bounds)
	}
	return nil
}
