// Package config provides configuration loading and management for pradfield.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"pradfield/internal/models"
	"pradfield/pkg/diagnostics"
	"pradfield/pkg/refine"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Solver parameters for Gauss-Seidel refinement
	Solver struct {
		// Tolerance is the residual ratio at which refinement stops
		Tolerance float64 `yaml:"tolerance"`

		// MaxIterations caps the number of sweeps
		MaxIterations int `yaml:"maxIterations"`

		// Talk logs the residual every Talk sweeps; 0 disables it
		Talk int `yaml:"talk"`

		// PotentialBoundary and CoefficientBoundary name the ghost-cell
		// policies: periodic, dirichlet or neumann
		PotentialBoundary   string `yaml:"potentialBoundary"`
		CoefficientBoundary string `yaml:"coefficientBoundary"`
	} `yaml:"solver"`

	// Analysis parameters
	Analysis struct {
		// FluxFloor is the count below which bins are treated as sparse
		FluxFloor float64 `yaml:"fluxFloor"`
	} `yaml:"analysis"`

	// Physical holds the setup used when a run file does not carry one
	Physical models.PhysicalParameters `yaml:"physical"`

	// Output parameters
	Output struct {
		// IntermediaryDir receives the pipeline stage grids when set
		IntermediaryDir string `yaml:"intermediaryDir"`

		// SnapshotDir receives grayscale images of the result grids when set
		SnapshotDir string `yaml:"snapshotDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Solver.Tolerance = refine.DefaultTolerance
	cfg.Solver.MaxIterations = refine.DefaultMaxIterations
	cfg.Solver.Talk = 100
	op := refine.DefaultOperator()
	cfg.Solver.PotentialBoundary = op.Potential.String()
	cfg.Solver.CoefficientBoundary = op.Coefficient.String()

	cfg.Analysis.FluxFloor = diagnostics.DefaultFluxFloor

	cfg.Physical = models.PhysicalParameters{
		SourceToRegionCM:   1.0,
		SourceToDetectorCM: 30.0,
		ProtonEnergyMeV:    14.7,
	}

	cfg.Output.Verbose = false

	return cfg
}

// Operator parses the configured boundary policies.
func (c *Config) Operator() (refine.Operator, error) {
	pot, err := refine.ParseBoundary(c.Solver.PotentialBoundary)
	if err != nil {
		return refine.Operator{}, fmt.Errorf("solver.potentialBoundary: %w", err)
	}
	coef, err := refine.ParseBoundary(c.Solver.CoefficientBoundary)
	if err != nil {
		return refine.Operator{}, fmt.Errorf("solver.coefficientBoundary: %w", err)
	}
	return refine.Operator{Potential: pot, Coefficient: coef}, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
