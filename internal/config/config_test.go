package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesLayerOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
template_dir: ./templates
default_level: aggressive
watch: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./templates", cfg.TemplateDir)
	assert.Equal(t, "aggressive", cfg.DefaultLevel)
	assert.True(t, cfg.Watch)
	// Untouched fields keep their defaults.
	assert.Equal(t, 256, cfg.CacheSize)
	assert.Equal(t, "gpt-4", cfg.TokenModel)
	assert.Equal(t, 128, cfg.AnalyticsBuffer)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("template_dir: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(*Config) {}, false},
		{"empty level valid", func(c *Config) { c.DefaultLevel = "" }, false},
		{"negative cache", func(c *Config) { c.CacheSize = -1 }, true},
		{"negative buffer", func(c *Config) { c.AnalyticsBuffer = -5 }, true},
		{"unknown level", func(c *Config) { c.DefaultLevel = "extreme" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
