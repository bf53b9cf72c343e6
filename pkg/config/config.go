// Package config provides configuration loading and management for dixonsep.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Pipeline parameters
	Pipeline struct {
		// TargetMax is the upper bound of the canonical intensity range.
		// Every normalization step rescales to [0, TargetMax]; it must be
		// either 1 (float pipeline) or 255 (8-bit display pipeline) and is
		// applied consistently across all stages.
		TargetMax float64 `yaml:"targetMax"`

		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`
	} `yaml:"pipeline"`

	// Gaussian denoising parameters
	Denoise struct {
		// KernelSize is the side length of the Gaussian kernel in pixels.
		// Must be a positive odd integer.
		KernelSize int `yaml:"kernelSize"`

		// Sigma is the Gaussian standard deviation. Zero derives sigma
		// from the kernel size the way OpenCV does.
		Sigma float64 `yaml:"sigma"`
	} `yaml:"denoise"`

	// Contrast enhancement parameters
	Enhance struct {
		// Bins is the number of histogram levels used for equalization
		Bins int `yaml:"bins"`
	} `yaml:"enhance"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save intermediary processing results
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// MontagePanelWidth caps the width in pixels of each montage panel.
		// Larger panels are downscaled; zero keeps the native size.
		MontagePanelWidth int `yaml:"montagePanelWidth"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Float pipeline by default; all cores
	cfg.Pipeline.TargetMax = 1.0
	cfg.Pipeline.NumCores = runtime.NumCPU()

	// 5x5 kernel with derived sigma, matching the reference acquisition setup
	cfg.Denoise.KernelSize = 5
	cfg.Denoise.Sigma = 0

	// 256 levels, matching 8-bit display depth
	cfg.Enhance.Bins = 256

	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.MontagePanelWidth = 0

	return cfg
}

// Validate checks the configuration for parameter errors.
// Invalid kernel or histogram parameters are rejected here, at configuration
// time, rather than surfacing as per-pixel failures during processing.
func (cfg *Config) Validate() error {
	if cfg.Pipeline.TargetMax != 1.0 && cfg.Pipeline.TargetMax != 255.0 {
		return fmt.Errorf("targetMax must be 1 or 255, got %v", cfg.Pipeline.TargetMax)
	}

	if cfg.Pipeline.NumCores < 1 {
		return fmt.Errorf("numCores must be at least 1, got %d", cfg.Pipeline.NumCores)
	}

	if cfg.Denoise.KernelSize < 1 || cfg.Denoise.KernelSize%2 == 0 {
		return fmt.Errorf("kernelSize must be a positive odd integer, got %d", cfg.Denoise.KernelSize)
	}

	if cfg.Denoise.Sigma < 0 || math.IsNaN(cfg.Denoise.Sigma) || math.IsInf(cfg.Denoise.Sigma, 0) {
		return fmt.Errorf("sigma must be finite and non-negative, got %v", cfg.Denoise.Sigma)
	}

	if cfg.Enhance.Bins < 2 {
		return fmt.Errorf("bins must be at least 2, got %d", cfg.Enhance.Bins)
	}

	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
