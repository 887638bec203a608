package replay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/prompt-refiner/internal/orchestrator"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
)

// #region fixture-types

// Fixture is the top-level YAML structure for a replay fixture.
type Fixture struct {
	Description string         `yaml:"description"`
	Defaults    FixtureRequest `yaml:"defaults"`
	Cases       []FixtureCase  `yaml:"cases"`
}

// FixtureRequest carries request parameters. Zero fields fall back to the
// fixture defaults, then to the orchestrator defaults.
type FixtureRequest struct {
	Method               string             `yaml:"method"`
	MaxIterations        int                `yaml:"maxIterations"`
	ConvergenceThreshold float64            `yaml:"convergenceThreshold"`
	Goals                []string           `yaml:"goals"`
	FeatureWeights       map[string]float64 `yaml:"featureWeights"`
}

// FixtureCase is one recorded refinement. Replies are replayed by the text
// generator in order; with no replies the generator echoes its input.
type FixtureCase struct {
	ID             string `yaml:"id"`
	Prompt         string `yaml:"prompt"`
	FixtureRequest `yaml:",inline"`
	Replies        []string `yaml:"replies"`
	Expect         Expect   `yaml:"expect"`
}

// Expect lists the checks applied to a case's result. Zero fields are not
// checked.
type Expect struct {
	StopReason    string   `yaml:"stopReason"`
	Iterations    int      `yaml:"iterations"`
	RefinedPrompt string   `yaml:"refinedPrompt"`
	MinFinalScore float64  `yaml:"minFinalScore"`
	Error         bool     `yaml:"error"`
	MinImprovePct *float64 `yaml:"minImprovementPct"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// ParseFixture decodes fixture YAML and checks that every case has an ID.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(f.Cases))
	for i, c := range f.Cases {
		if c.ID == "" {
			return nil, fmt.Errorf("case %d: missing id", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("case %s: duplicate id", c.ID)
		}
		seen[c.ID] = true
	}
	return &f, nil
}

// ToRequest merges the case with the fixture defaults.
func (c *FixtureCase) ToRequest(defaults FixtureRequest) (orchestrator.Request, error) {
	req := orchestrator.Request{
		Prompt:               c.Prompt,
		MaxIterations:        firstNonZero(c.MaxIterations, defaults.MaxIterations),
		ConvergenceThreshold: firstNonZero(c.ConvergenceThreshold, defaults.ConvergenceThreshold),
		OptimizationGoals:    c.Goals,
		FeatureWeights:       c.FeatureWeights,
	}
	if req.OptimizationGoals == nil {
		req.OptimizationGoals = defaults.Goals
	}
	if req.FeatureWeights == nil {
		req.FeatureWeights = defaults.FeatureWeights
	}
	if name := firstNonZero(c.Method, defaults.Method); name != "" {
		m, err := regression.ParseMethod(name)
		if err != nil {
			return orchestrator.Request{}, fmt.Errorf("case %s: %w", c.ID, err)
		}
		req.RegressionMethod = m
	}
	return req, nil
}

func firstNonZero[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

// #endregion fixture-loader
