package splitmerge

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MergeConfig holds the settings of a merge round. It is usually read from
// a YAML file like
//
//	merge_rate: 0.5
//	workers: 4
//	weight_formula: symmetric
//	early_stop:
//	  enabled: true
//	  threshold: 1.0
//	  keep_boundary: true
//	normalize_after_merge: false
type MergeConfig struct {
	// Fraction of all candidates to merge, in (0, 1]
	MergeRate float64 `yaml:"merge_rate"`

	// Number of candidates ranked concurrently, 0 means GOMAXPROCS
	Workers int `yaml:"workers"`

	WeightFormula WeightFormula   `yaml:"weight_formula"`
	EarlyStop     EarlyStopPolicy `yaml:"early_stop"`

	// Renormalize rule probabilities of every parent subsymbol after the
	// round
	NormalizeAfterMerge bool `yaml:"normalize_after_merge"`
}

// DefaultConfig returns the configuration used when nothing is specified
func DefaultConfig() MergeConfig {
	return MergeConfig{
		MergeRate:     0.5,
		WeightFormula: WeightSymmetric,
		EarlyStop: EarlyStopPolicy{
			Enabled:      true,
			Threshold:    1.0,
			KeepBoundary: true,
		},
	}
}

// ParseConfig reads a YAML configuration. Missing fields keep their default
// values
func ParseConfig(data []byte) (MergeConfig, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrap(err, "ParseConfig")
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// LoadConfig reads a YAML configuration file
func LoadConfig(path string) (MergeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), errors.Wrap(err, "LoadConfig")
	}
	return ParseConfig(data)
}

// Validate checks the configuration values. A merge rate above 1 is valid
// and clamped when the round runs
func (c MergeConfig) Validate() error {
	if err := checkRate(c.MergeRate); err != nil {
		return errors.Wrap(err, "merge_rate")
	}
	if c.Workers < 0 {
		return errors.Errorf("workers %d: must not be negative", c.Workers)
	}
	switch c.WeightFormula {
	case "", WeightSymmetric, WeightLegacy:
	default:
		return errors.Errorf("weight_formula %q: symmetric or legacy expected", c.WeightFormula)
	}
	if c.EarlyStop.Enabled && math.IsNaN(c.EarlyStop.Threshold) {
		return errors.New("early_stop.threshold is NaN")
	}
	return nil
}
