package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file exofit looks for in the working directory.
const DefaultPath = "exofit.yml"

// RedisURLEnv overrides store.redis_url when set.
const RedisURLEnv = "EXOFIT_REDIS_URL"

// ExofitConfig represents the top-level exofit.yml configuration
type ExofitConfig struct {
	Version string         `yaml:"version"`
	Catalog *CatalogConfig `yaml:"catalog,omitempty"`
	Filter  *FilterConfig  `yaml:"filter,omitempty"`
	Priors  *PriorsConfig  `yaml:"priors,omitempty"`
	Sampler *SamplerConfig `yaml:"sampler,omitempty"`
	Predict *PredictConfig `yaml:"predict,omitempty"`
	Store   *StoreConfig   `yaml:"store,omitempty"`
}

// CatalogConfig describes where the mass-radius table comes from.
type CatalogConfig struct {
	Endpoint string         `yaml:"endpoint"`          // TAP sync endpoint
	Table    string         `yaml:"table"`             // e.g. "ps" or "pscomppars"
	Where    string         `yaml:"where,omitempty"`   // optional ADQL where clause
	Timeout  string         `yaml:"timeout,omitempty"` // Go duration, default 60s
	Columns  *ColumnsConfig `yaml:"columns,omitempty"`
}

// ColumnsConfig maps catalog fields onto CSV header names.
type ColumnsConfig struct {
	Name           string `yaml:"name,omitempty"`
	Radius         string `yaml:"radius"`
	RadiusErrUpper string `yaml:"radius_err_upper"`
	RadiusErrLower string `yaml:"radius_err_lower"`
	Mass           string `yaml:"mass"`
	MassErrUpper   string `yaml:"mass_err_upper"`
	MassErrLower   string `yaml:"mass_err_lower"`
}

// FilterConfig bounds the radius range kept for the fit (Earth radii, exclusive).
type FilterConfig struct {
	MinRadius *float64 `yaml:"min_radius,omitempty"`
	MaxRadius *float64 `yaml:"max_radius,omitempty"`
}

// PriorsConfig holds the uniform prior bounds of each model parameter.
type PriorsConfig struct {
	A    *BoundsConfig `yaml:"a,omitempty"`
	B    *BoundsConfig `yaml:"b,omitempty"`
	LogS *BoundsConfig `yaml:"log_s,omitempty"`
}

// BoundsConfig is a closed interval [Min, Max].
type BoundsConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// SamplerConfig mirrors the knobs handed to the MCMC sampler.
type SamplerConfig struct {
	Chains       int      `yaml:"chains,omitempty"`
	Draws        int      `yaml:"draws,omitempty"`
	Tune         *int     `yaml:"tune,omitempty"` // 0 skips tuning
	TargetAccept float64  `yaml:"target_accept,omitempty"`
	Seed         *uint64  `yaml:"seed,omitempty"`
	InitJitter   *float64 `yaml:"init_jitter,omitempty"`
	UseMAP       *bool    `yaml:"use_map,omitempty"` // start chains at the MAP estimate (default true)
}

// PredictConfig controls the posterior-predictive band.
type PredictConfig struct {
	GridPoints int     `yaml:"grid_points,omitempty"`
	LowerQ     float64 `yaml:"lower_quantile,omitempty"`
	UpperQ     float64 `yaml:"upper_quantile,omitempty"`
}

// StoreConfig points at the Redis instance holding saved runs.
type StoreConfig struct {
	RedisURL  string `yaml:"redis_url,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	Image     string `yaml:"image,omitempty"` // image used by `exofit store up`
}

// Default returns a fully populated configuration.
func Default() *ExofitConfig {
	c := &ExofitConfig{Version: "1.0"}
	// Validate only fills defaults here and cannot fail on an empty config.
	_ = c.Validate()
	return c
}

// Validate performs strict validation on the configuration and applies defaults
// for every missing section.
func (c *ExofitConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Catalog == nil {
		c.Catalog = &CatalogConfig{}
	}
	if err := c.Catalog.validate(); err != nil {
		return err
	}

	if c.Filter == nil {
		c.Filter = &FilterConfig{}
	}
	if c.Filter.MinRadius == nil {
		v := 1.0
		c.Filter.MinRadius = &v
	}
	if c.Filter.MaxRadius == nil {
		v := 4.0
		c.Filter.MaxRadius = &v
	}
	if *c.Filter.MinRadius < 0 || *c.Filter.MinRadius >= *c.Filter.MaxRadius {
		return fmt.Errorf("filter: min_radius must be >= 0 and below max_radius (got %g, %g)",
			*c.Filter.MinRadius, *c.Filter.MaxRadius)
	}

	if c.Priors == nil {
		c.Priors = &PriorsConfig{}
	}
	for name, b := range map[string]**BoundsConfig{"a": &c.Priors.A, "b": &c.Priors.B, "log_s": &c.Priors.LogS} {
		if *b == nil {
			*b = &BoundsConfig{Min: -5, Max: 5}
		}
		if !((*b).Min < (*b).Max) || math.IsInf((*b).Min, 0) || math.IsInf((*b).Max, 0) {
			return fmt.Errorf("priors.%s: min must be finite and below max (got %g, %g)", name, (*b).Min, (*b).Max)
		}
	}

	if c.Sampler == nil {
		c.Sampler = &SamplerConfig{}
	}
	if err := c.Sampler.validate(); err != nil {
		return err
	}

	if c.Predict == nil {
		c.Predict = &PredictConfig{}
	}
	if c.Predict.GridPoints == 0 {
		c.Predict.GridPoints = 50
	}
	if c.Predict.LowerQ == 0 {
		c.Predict.LowerQ = 0.16
	}
	if c.Predict.UpperQ == 0 {
		c.Predict.UpperQ = 0.84
	}
	if c.Predict.GridPoints < 2 {
		return fmt.Errorf("predict.grid_points must be >= 2, got %d", c.Predict.GridPoints)
	}
	if !(0 < c.Predict.LowerQ && c.Predict.LowerQ < 0.5 && 0.5 < c.Predict.UpperQ && c.Predict.UpperQ < 1) {
		return fmt.Errorf("predict: quantiles must satisfy 0 < lower < 0.5 < upper < 1 (got %g, %g)",
			c.Predict.LowerQ, c.Predict.UpperQ)
	}

	if c.Store == nil {
		c.Store = &StoreConfig{}
	}
	if c.Store.RedisURL == "" {
		c.Store.RedisURL = "redis://localhost:6379/0"
	}
	if c.Store.Namespace == "" {
		c.Store.Namespace = "default"
	}
	if c.Store.Image == "" {
		c.Store.Image = "redis:7-alpine"
	}
	if strings.ContainsAny(c.Store.Namespace, ": ") {
		return fmt.Errorf("store.namespace must not contain ':' or spaces: %q", c.Store.Namespace)
	}

	return nil
}

func (cc *CatalogConfig) validate() error {
	if cc.Endpoint == "" {
		cc.Endpoint = "https://exoplanetarchive.ipac.caltech.edu/TAP/sync"
	}
	if cc.Table == "" {
		cc.Table = "ps"
	}
	if cc.Timeout == "" {
		cc.Timeout = "60s"
	}
	if cc.Columns == nil {
		cc.Columns = &ColumnsConfig{
			Name:           "pl_name",
			Radius:         "pl_rade",
			RadiusErrUpper: "pl_radeerr1",
			RadiusErrLower: "pl_radeerr2",
			Mass:           "pl_bmasse",
			MassErrUpper:   "pl_bmasseerr1",
			MassErrLower:   "pl_bmasseerr2",
		}
	}

	required := map[string]string{
		"radius":           cc.Columns.Radius,
		"radius_err_upper": cc.Columns.RadiusErrUpper,
		"radius_err_lower": cc.Columns.RadiusErrLower,
		"mass":             cc.Columns.Mass,
		"mass_err_upper":   cc.Columns.MassErrUpper,
		"mass_err_lower":   cc.Columns.MassErrLower,
	}
	for field, col := range required {
		if col == "" {
			return fmt.Errorf("catalog.columns.%s is required", field)
		}
	}
	return nil
}

func (sc *SamplerConfig) validate() error {
	if sc.Chains == 0 {
		sc.Chains = 4
	}
	if sc.Draws == 0 {
		sc.Draws = 2000
	}
	if sc.Tune == nil {
		tune := 1000
		sc.Tune = &tune
	}
	if sc.TargetAccept == 0 {
		sc.TargetAccept = 0.3
	}
	if sc.Seed == nil {
		seed := uint64(42)
		sc.Seed = &seed
	}
	if sc.InitJitter == nil {
		jitter := 0.1
		sc.InitJitter = &jitter
	}
	if sc.UseMAP == nil {
		useMAP := true
		sc.UseMAP = &useMAP
	}

	if sc.Chains < 1 {
		return fmt.Errorf("sampler.chains must be >= 1, got %d", sc.Chains)
	}
	if sc.Draws < 1 {
		return fmt.Errorf("sampler.draws must be >= 1, got %d", sc.Draws)
	}
	if *sc.Tune < 0 {
		return fmt.Errorf("sampler.tune must be >= 0, got %d", *sc.Tune)
	}
	if sc.TargetAccept <= 0 || sc.TargetAccept >= 1 {
		return fmt.Errorf("sampler.target_accept must be in (0, 1), got %g", sc.TargetAccept)
	}
	if *sc.InitJitter < 0 {
		return fmt.Errorf("sampler.init_jitter must be >= 0, got %g", *sc.InitJitter)
	}
	return nil
}

// Load reads and validates exofit.yml from the specified path.
// The EXOFIT_REDIS_URL environment variable overrides store.redis_url.
func Load(path string) (*ExofitConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config ExofitConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	applyEnv(&config)
	return &config, nil
}

// LoadOrDefault behaves like Load but returns the defaults when path does not exist.
func LoadOrDefault(path string) (*ExofitConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c := Default()
		applyEnv(c)
		return c, nil
	}
	return Load(path)
}

// Write serializes the configuration as YAML to path.
func Write(path string, c *ExofitConfig) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func applyEnv(c *ExofitConfig) {
	if url := os.Getenv(RedisURLEnv); url != "" {
		c.Store.RedisURL = url
	}
}
