package weights

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #region overrides
// overrideFile is the YAML layout accepted by LoadOverrides:
//
//	weights:
//	  semanticClarity: 0.3
//	  wordCount: 0.01
type overrideFile struct {
	Weights map[string]float64 `yaml:"weights"`
}

// LoadOverrides reads a YAML weight override file. Values are clamped.
func LoadOverrides(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes YAML weight overrides.
func ParseOverrides(data []byte) (map[string]float64, error) {
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	out := make(map[string]float64, len(f.Weights))
	for name, w := range f.Weights {
		out[name] = Clamp(w)
	}
	return out, nil
}
// #endregion overrides
