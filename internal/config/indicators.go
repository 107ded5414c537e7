package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	ModeCombinatorial = "combinatorial"
	ModeBinarizedDot  = "binarized_dot"

	DefaultSamples         = 20
	DefaultCheckpointEvery = 10_000_000
	DefaultWindow          = 3
	DefaultReuseThreshold  = 1
	DefaultEdgeFraction    = 0.8
)

var ErrInvalidConfig = errors.New("invalid indicator configuration")

// MatrixConfig is the co-occurrence policy shared by every indicator.
type MatrixConfig struct {
	Variable string `yaml:"variable"`
	Mode     string `yaml:"mode"`
	Weighted bool   `yaml:"weighted"`
	KeepDiag bool   `yaml:"keepDiag"`
}

func (m *MatrixConfig) validate(indicator string) error {
	if m.Variable == "" {
		return fmt.Errorf("%w: %s.variable is required", ErrInvalidConfig, indicator)
	}
	switch m.Mode {
	case "":
		m.Mode = ModeCombinatorial
	case ModeCombinatorial, ModeBinarizedDot:
	default:
		return fmt.Errorf("%w: %s.mode %q", ErrInvalidConfig, indicator, m.Mode)
	}
	if m.Mode == ModeBinarizedDot && m.Weighted {
		return fmt.Errorf("%w: %s cannot be weighted in %s mode", ErrInvalidConfig, indicator, m.Mode)
	}
	return nil
}

// AtypicalityConfig parameterises the null-model z-score indicator.
type AtypicalityConfig struct {
	MatrixConfig    `yaml:",inline"`
	Samples         int    `yaml:"samples"`
	CheckpointEvery int    `yaml:"checkpointEvery"`
	Workers         int    `yaml:"workers"`
	Seed            uint64 `yaml:"seed"`
}

func (c *AtypicalityConfig) Validate() error {
	if err := c.validate("atypicality"); err != nil {
		return err
	}
	if c.Samples == 0 {
		c.Samples = DefaultSamples
	}
	if c.CheckpointEvery == 0 {
		c.CheckpointEvery = DefaultCheckpointEvery
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Samples < 2 {
		return fmt.Errorf("%w: atypicality.samples must be at least 2, got %d", ErrInvalidConfig, c.Samples)
	}
	if c.CheckpointEvery < 0 || c.Workers < 0 {
		return fmt.Errorf("%w: atypicality.checkpointEvery and workers must be positive", ErrInvalidConfig)
	}
	return nil
}

// CommonnessConfig parameterises the association-ratio indicator.
type CommonnessConfig struct {
	MatrixConfig `yaml:",inline"`
}

func (c *CommonnessConfig) Validate() error {
	return c.validate("commonness")
}

// WangConfig parameterises the novelty indicator's time windows.
type WangConfig struct {
	MatrixConfig     `yaml:",inline"`
	PastWindow       int `yaml:"pastWindow"`
	FutureWindow     int `yaml:"futureWindow"`
	DifficultyWindow int `yaml:"difficultyWindow"`
	ReuseThreshold   int `yaml:"reuseThreshold"`
}

func (c *WangConfig) Validate() error {
	if err := c.validate("novelty"); err != nil {
		return err
	}
	if c.PastWindow == 0 {
		c.PastWindow = DefaultWindow
	}
	if c.FutureWindow == 0 {
		c.FutureWindow = DefaultWindow
	}
	if c.DifficultyWindow == 0 {
		c.DifficultyWindow = DefaultWindow
	}
	if c.ReuseThreshold == 0 {
		c.ReuseThreshold = DefaultReuseThreshold
	}
	if c.PastWindow < 0 || c.FutureWindow < 0 || c.DifficultyWindow < 0 {
		return fmt.Errorf("%w: novelty windows must be positive", ErrInvalidConfig)
	}
	if c.ReuseThreshold < 1 {
		return fmt.Errorf("%w: novelty.reuseThreshold must be at least 1, got %d", ErrInvalidConfig, c.ReuseThreshold)
	}
	return nil
}

// FosterConfig parameterises the community-based indicator.
type FosterConfig struct {
	MatrixConfig `yaml:",inline"`
	Samples      int     `yaml:"samples"`
	EdgeFraction float64 `yaml:"edgeFraction"`
	Seed         uint64  `yaml:"seed"`
}

func (c *FosterConfig) Validate() error {
	if err := c.validate("foster"); err != nil {
		return err
	}
	if c.Samples == 0 {
		c.Samples = DefaultSamples
	}
	if c.EdgeFraction == 0 {
		c.EdgeFraction = DefaultEdgeFraction
	}
	if c.Samples < 1 {
		return fmt.Errorf("%w: foster.samples must be positive, got %d", ErrInvalidConfig, c.Samples)
	}
	if c.EdgeFraction < 0 || c.EdgeFraction > 1 {
		return fmt.Errorf("%w: foster.edgeFraction must be in (0, 1], got %v", ErrInvalidConfig, c.EdgeFraction)
	}
	return nil
}

// DistanceConfig parameterises the embedding-distance indicator.
type DistanceConfig struct {
	Variable string `yaml:"variable"`
}

func (c *DistanceConfig) Validate() error {
	if c.Variable == "" {
		return fmt.Errorf("%w: distance.variable is required", ErrInvalidConfig)
	}
	return nil
}

// IndicatorsConfig holds one optional configuration value per indicator.
type IndicatorsConfig struct {
	Atypicality *AtypicalityConfig `yaml:"atypicality"`
	Commonness  *CommonnessConfig  `yaml:"commonness"`
	Novelty     *WangConfig        `yaml:"novelty"`
	Foster      *FosterConfig      `yaml:"foster"`
	Distance    *DistanceConfig    `yaml:"distance"`
}

// Validate validates and fills defaults for every configured indicator.
func (c *IndicatorsConfig) Validate() error {
	validators := []interface{ Validate() error }{}
	if c.Atypicality != nil {
		validators = append(validators, c.Atypicality)
	}
	if c.Commonness != nil {
		validators = append(validators, c.Commonness)
	}
	if c.Novelty != nil {
		validators = append(validators, c.Novelty)
	}
	if c.Foster != nil {
		validators = append(validators, c.Foster)
	}
	if c.Distance != nil {
		validators = append(validators, c.Distance)
	}
	if len(validators) == 0 {
		return fmt.Errorf("%w: no indicator configured", ErrInvalidConfig)
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParseIndicators decodes and validates an indicators YAML document.
func ParseIndicators(data []byte) (*IndicatorsConfig, error) {
	cfg := &IndicatorsConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing indicators config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadIndicators reads the indicators file at path.
func LoadIndicators(path string) (*IndicatorsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading indicators config %s: %w", path, err)
	}
	return ParseIndicators(data)
}
