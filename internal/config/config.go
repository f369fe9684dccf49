package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"testops/internal/logging"
	"testops/internal/validator"

	"gopkg.in/yaml.v3"
)

// Config holds all testops configuration.
type Config struct {
	// Structural validator
	Validator ValidatorConfig `yaml:"validator"`

	// Draft generation
	Generator GeneratorConfig `yaml:"generator"`

	// HTTP surface
	Server ServerConfig `yaml:"server"`

	// Run history
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ValidatorConfig configures the structural validator.
type ValidatorConfig struct {
	Namespace       string `yaml:"namespace"`        // reporting framework identifier
	DecoratorPolicy string `yaml:"decorator_policy"` // attribute_or_call, call_only
	ParseTimeout    string `yaml:"parse_timeout"`    // bound on a single parse, "0" disables
	Jobs            int    `yaml:"jobs"`             // concurrent files for batch validation
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	MaxConns     int    `yaml:"max_conns"` // zero means unlimited
}

// StoreConfig configures the SQLite run history.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Validator: ValidatorConfig{
			Namespace:       validator.DefaultNamespace,
			DecoratorPolicy: string(validator.DecoratorAttributeOrCall),
			ParseTimeout:    "10s",
			Jobs:            4,
		},

		Generator: DefaultGeneratorConfig(),

		Server: ServerConfig{
			Addr:         ":8000",
			ReadTimeout:  "15s",
			WriteTimeout: "150s",
			MaxBodyBytes: 1 << 20,
			MaxConns:     64,
		},

		Store: StoreConfig{
			Enabled: false,
			Path:    ".testops/history.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults (with environment overrides applied).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Generator.APIKey = key
	}
	if p := os.Getenv("TESTOPS_PROVIDER"); p != "" {
		c.Generator.Provider = p
	}
	if addr := os.Getenv("TESTOPS_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("TESTOPS_DB"); path != "" {
		c.Store.Path = path
		c.Store.Enabled = true
	}
	if ns := os.Getenv("TESTOPS_NAMESPACE"); ns != "" {
		c.Validator.Namespace = ns
	}
}

// ValidatorOptions returns the validator options described by the config.
func (c *Config) ValidatorOptions() (validator.Options, error) {
	policy, err := validator.ParseDecoratorPolicy(c.Validator.DecoratorPolicy)
	if err != nil {
		return validator.Options{}, err
	}
	return validator.Options{
		Namespace:       c.Validator.Namespace,
		DecoratorPolicy: policy,
	}, nil
}

// GetParseTimeout returns the parse bound. Zero disables it.
func (c *Config) GetParseTimeout() time.Duration {
	return parseDuration(c.Validator.ParseTimeout, 10*time.Second)
}

// GetGeneratorTimeout returns the generator timeout as a duration.
func (c *Config) GetGeneratorTimeout() time.Duration {
	return parseDuration(c.Generator.Timeout, 120*time.Second)
}

// GetReadTimeout returns the server read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the server write timeout as a duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 150*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := c.ValidatorOptions(); err != nil {
		return err
	}
	if c.Validator.Namespace == "" {
		return fmt.Errorf("validator namespace must not be empty")
	}
	if c.Validator.Jobs < 0 {
		return fmt.Errorf("validator jobs must not be negative: %d", c.Validator.Jobs)
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.Generator.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid generator provider: %s (valid: %v)", c.Generator.Provider, ValidProviders)
	}
	if c.Generator.Provider == "gemini" && c.Generator.APIKey == "" {
		return fmt.Errorf("gemini provider needs an API key (set GEMINI_API_KEY)")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Server.MaxConns < 0 {
		return fmt.Errorf("server max_conns must not be negative: %d", c.Server.MaxConns)
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store enabled without a path")
	}

	return nil
}
