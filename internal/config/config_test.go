package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"testops/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "TESTOPS_PROVIDER", "TESTOPS_ADDR", "TESTOPS_DB", "TESTOPS_NAMESPACE"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "allure", cfg.Validator.Namespace)
	assert.Equal(t, "stub", cfg.Generator.Provider)
	assert.Equal(t, "Generate Allure test for {req}", cfg.Generator.PromptTemplate)
	assert.False(t, cfg.Store.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "testops.yaml")

	cfg := DefaultConfig()
	cfg.Validator.DecoratorPolicy = "call_only"
	cfg.Server.Addr = ":9090"
	cfg.Logging.Categories = map[string]bool{"store": false}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	opts, err := loaded.ValidatorOptions()
	require.NoError(t, err)
	assert.Equal(t, validator.DecoratorCallOnly, opts.DecoratorPolicy)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "testops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("validator:\n  namespace: qa\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qa", cfg.Validator.Namespace)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("validator: [\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("TESTOPS_PROVIDER", "gemini")
	t.Setenv("TESTOPS_ADDR", "127.0.0.1:7000")
	t.Setenv("TESTOPS_DB", "/tmp/h.db")
	t.Setenv("TESTOPS_NAMESPACE", "qa")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.Generator.APIKey)
	assert.Equal(t, "gemini", cfg.Generator.Provider)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "/tmp/h.db", cfg.Store.Path)
	assert.Equal(t, "qa", cfg.Validator.Namespace)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad policy", func(c *Config) { c.Validator.DecoratorPolicy = "strict" }},
		{"empty namespace", func(c *Config) { c.Validator.Namespace = "" }},
		{"negative jobs", func(c *Config) { c.Validator.Jobs = -1 }},
		{"bad provider", func(c *Config) { c.Generator.Provider = "openai" }},
		{"gemini without key", func(c *Config) { c.Generator.Provider = "gemini" }},
		{"negative max conns", func(c *Config) { c.Server.MaxConns = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"store without path", func(c *Config) { c.Store.Enabled = true; c.Store.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.GetParseTimeout())
	assert.Equal(t, 120*time.Second, cfg.GetGeneratorTimeout())

	cfg.Validator.ParseTimeout = "0"
	assert.Equal(t, time.Duration(0), cfg.GetParseTimeout())

	cfg.Server.ReadTimeout = "soon"
	assert.Equal(t, 15*time.Second, cfg.GetReadTimeout())
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{DebugMode: true, Categories: map[string]bool{"server": false}}
	assert.False(t, lc.IsCategoryEnabled("server"))
	assert.True(t, lc.IsCategoryEnabled("store"))

	lc.DebugMode = false
	assert.False(t, lc.IsCategoryEnabled("store"))
	assert.False(t, lc.ToLogging().DebugMode)
}
