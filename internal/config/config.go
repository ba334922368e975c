// Package config loads kundali.yaml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joelkehle/kundali/internal/dasha"
	"github.com/joelkehle/kundali/internal/zodiac"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Store     Store     `yaml:"store"`
	Engine    Engine    `yaml:"engine"`
	Render    Render    `yaml:"render"`
	Telemetry Telemetry `yaml:"telemetry"`
	Logging   Logging   `yaml:"logging"`
}

type Server struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

type Store struct {
	// Backend is one of sqlite, file or memory.
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type Engine struct {
	Language    string `yaml:"language"`
	Granularity string `yaml:"granularity"`
	Drift       string `yaml:"drift"`
	Depth       int    `yaml:"depth"`
}

type Render struct {
	WebDir     string `yaml:"web_dir"`
	ChromePath string `yaml:"chrome_path"`
}

type Telemetry struct {
	// Endpoint is an OTLP/HTTP collector address; empty disables export.
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

var ValidBackends = []string{"sqlite", "file", "memory"}

func Default() *Config {
	return &Config{
		Server: Server{
			Addr:         ":8080",
			ReadTimeout:  "15s",
			WriteTimeout: "60s",
		},
		Store: Store{
			Backend: "sqlite",
			Path:    "data/kundali.db",
		},
		Engine: Engine{
			Language:    string(zodiac.LanguageEnglish),
			Granularity: dasha.DefaultGranularity.String(),
			Drift:       string(dasha.DriftAbsorb),
			Depth:       dasha.MaxDepth,
		},
		Telemetry: Telemetry{
			ServiceName: "kundali",
		},
		Logging: Logging{
			Level: "info",
			JSON:  true,
		},
	}
}

// Load reads a YAML file over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.Server.Addr = ":" + port
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Store.Path = path
	}
	if backend := os.Getenv("KUNDALI_STORE"); backend != "" {
		c.Store.Backend = backend
	}
	if lang := os.Getenv("KUNDALI_LANGUAGE"); lang != "" {
		c.Engine.Language = lang
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Telemetry.Endpoint = endpoint
	}
	if level := os.Getenv("KUNDALI_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func (c *Config) Validate() error {
	if !slices.Contains(ValidBackends, c.Store.Backend) {
		return fmt.Errorf("invalid store backend: %s (valid: %v)", c.Store.Backend, ValidBackends)
	}
	if _, err := c.Engine.GranularityDuration(); err != nil {
		return err
	}
	switch dasha.DriftPolicy(c.Engine.Drift) {
	case dasha.DriftAbsorb, dasha.DriftPreserve:
	default:
		return fmt.Errorf("invalid drift policy: %s", c.Engine.Drift)
	}
	if c.Engine.Depth < 1 || c.Engine.Depth > dasha.MaxDepth {
		return fmt.Errorf("engine depth %d outside 1..%d", c.Engine.Depth, dasha.MaxDepth)
	}
	return nil
}

func (e Engine) GranularityDuration() (time.Duration, error) {
	d, err := time.ParseDuration(e.Granularity)
	if err != nil {
		return 0, fmt.Errorf("invalid engine granularity %q: %w", e.Granularity, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("engine granularity must be positive, got %s", d)
	}
	return d, nil
}

// Expander builds the dasha expander for sys from the engine settings.
// Load has already validated them.
func (e Engine) Expander(sys dasha.System) dasha.Expander {
	ex := dasha.NewExpander(sys)
	if d, err := e.GranularityDuration(); err == nil {
		ex.Granularity = d
	}
	if e.Drift != "" {
		ex.Drift = dasha.DriftPolicy(e.Drift)
	}
	if e.Depth > 0 {
		ex.Depth = e.Depth
	}
	return ex
}

func (s Server) Timeouts() (read, write time.Duration) {
	read, _ = time.ParseDuration(s.ReadTimeout)
	write, _ = time.ParseDuration(s.WriteTimeout)
	return read, write
}
