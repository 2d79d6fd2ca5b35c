package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "exofit.yml")

	validConfig := `version: "1.0"
filter:
  min_radius: 1.5
  max_radius: 3.5
sampler:
  chains: 2
  draws: 500
  seed: 7
`
	require.NoError(t, os.WriteFile(configPath, []byte(validConfig), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, 1.5, *config.Filter.MinRadius)
	assert.Equal(t, 3.5, *config.Filter.MaxRadius)
	assert.Equal(t, 2, config.Sampler.Chains)
	assert.Equal(t, 500, config.Sampler.Draws)
	assert.Equal(t, uint64(7), *config.Sampler.Seed)

	// Untouched sections receive defaults
	assert.Equal(t, 1000, *config.Sampler.Tune)
	assert.Equal(t, "pl_rade", config.Catalog.Columns.Radius)
	assert.Equal(t, -5.0, config.Priors.LogS.Min)
	assert.Equal(t, 5.0, config.Priors.LogS.Max)
}

func TestLoad_ZeroTuneKept(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "exofit.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: \"1.0\"\nsampler:\n  tune: 0\n"), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, config.Sampler.Tune)
	assert.Equal(t, 0, *config.Sampler.Tune)

	// Survives a write and reload.
	require.NoError(t, Write(configPath, config))
	reloaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 0, *reloaded.Sampler.Tune)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/exofit.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "exofit.yml")

	invalidYAML := `version: "1.0"
sampler:
  - this is invalid
    yaml syntax
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_EnvOverridesRedisURL(t *testing.T) {
	t.Setenv(RedisURLEnv, "redis://example:6390/2")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "exofit.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: \"1.0\"\n"), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "redis://example:6390/2", config.Store.RedisURL)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	config, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, 4, config.Sampler.Chains)
}

func TestValidate(t *testing.T) {
	floatPtr := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		config  ExofitConfig
		wantErr string
	}{
		{
			name:    "unsupported version",
			config:  ExofitConfig{Version: "2.0"},
			wantErr: "unsupported version",
		},
		{
			name: "inverted radius bounds",
			config: ExofitConfig{
				Version: "1.0",
				Filter:  &FilterConfig{MinRadius: floatPtr(4), MaxRadius: floatPtr(1)},
			},
			wantErr: "min_radius",
		},
		{
			name: "empty prior interval",
			config: ExofitConfig{
				Version: "1.0",
				Priors:  &PriorsConfig{A: &BoundsConfig{Min: 1, Max: 1}},
			},
			wantErr: "priors.a",
		},
		{
			name: "target accept out of range",
			config: ExofitConfig{
				Version: "1.0",
				Sampler: &SamplerConfig{TargetAccept: 1.5},
			},
			wantErr: "target_accept",
		},
		{
			name: "negative chains",
			config: ExofitConfig{
				Version: "1.0",
				Sampler: &SamplerConfig{Chains: -1},
			},
			wantErr: "sampler.chains",
		},
		{
			name: "negative tune",
			config: ExofitConfig{
				Version: "1.0",
				Sampler: &SamplerConfig{Tune: func() *int { v := -5; return &v }()},
			},
			wantErr: "sampler.tune",
		},
		{
			name: "missing mass column",
			config: ExofitConfig{
				Version: "1.0",
				Catalog: &CatalogConfig{Columns: &ColumnsConfig{
					Radius: "r", RadiusErrUpper: "ru", RadiusErrLower: "rl",
					MassErrUpper: "mu", MassErrLower: "ml",
				}},
			},
			wantErr: "catalog.columns.mass",
		},
		{
			name: "bad quantiles",
			config: ExofitConfig{
				Version: "1.0",
				Predict: &PredictConfig{LowerQ: 0.6, UpperQ: 0.9},
			},
			wantErr: "quantiles",
		},
		{
			name: "namespace with colon",
			config: ExofitConfig{
				Version: "1.0",
				Store:   &StoreConfig{Namespace: "a:b"},
			},
			wantErr: "store.namespace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exofit.yml")
	require.NoError(t, Write(path, Default()))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Sampler.Draws, loaded.Sampler.Draws)
	assert.Equal(t, Default().Catalog.Endpoint, loaded.Catalog.Endpoint)
}
