package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed overrides.yaml
var defaultOverrides []byte

// Overrides is the versioned set of tables consulted during resolution.
type Overrides struct {
	Version            int               `yaml:"version"`
	NationalCode       string            `yaml:"national_code"`
	Codes              map[string]string `yaml:"codes"`
	GeoIDs             map[string]string `yaml:"geo_ids"`
	Names              map[string]string `yaml:"names"`
	DisplayNames       map[string]string `yaml:"display_names"`
	Populations        map[string]int64  `yaml:"populations"`
	FallbackPopulation int64             `yaml:"fallback_population"`
	Combined           map[string]string `yaml:"combined"`
}

// DefaultOverrides returns the embedded tables.
func DefaultOverrides() (*Overrides, error) {
	return ParseOverrides(defaultOverrides)
}

// LoadOverrides reads tables from path, or the embedded tables when path is empty.
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return DefaultOverrides()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes and validates a YAML override document.
func ParseOverrides(data []byte) (*Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	if o.Version <= 0 {
		return nil, errors.New("overrides: version is required")
	}
	if o.FallbackPopulation <= 0 {
		return nil, errors.New("overrides: fallback_population must be positive")
	}
	for missing, target := range o.Combined {
		if missing == target {
			return nil, fmt.Errorf("overrides: combined entity %s merges into itself", missing)
		}
	}
	return &o, nil
}
