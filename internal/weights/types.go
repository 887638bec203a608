package weights

import (
	"time"

	"github.com/danielpatrickdp/prompt-refiner/internal/features"
)

// #region stat
// Stat is the persisted view of one feature weight.
type Stat struct {
	FeatureName   string    `json:"featureName"`
	Weight        float64   `json:"weight"`
	UpdateCount   int       `json:"updateCount"`
	MinWeight     float64   `json:"minWeight"`
	MaxWeight     float64   `json:"maxWeight"`
	AverageWeight float64   `json:"averageWeight"` // derived from weight_history on read
	LastUpdated   time.Time `json:"lastUpdated"`
	CreatedAt     time.Time `json:"createdAt"`
}
// #endregion stat

// #region defaults
// DefaultWeights returns the initial weight table. The values sum to 1.01,
// not 1; scores divide by the weight total so the table is used as is.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		features.SemanticClarity:      0.15,
		features.ContextRelevance:     0.15,
		features.Specificity:          0.12,
		features.Ambiguity:            0.10,
		features.LexicalDiversity:     0.08,
		features.CompletenessScore:    0.08,
		features.HasContext:           0.07,
		features.HasConstraints:       0.06,
		features.StructuralComplexity: 0.05,
		features.WordCount:            0.04,
		features.SentenceCount:        0.03,
		features.AverageWordLength:    0.02,
		features.PunctuationRatio:     0.02,
		features.HasExamples:          0.01,
		features.HasVerbs:             0.01,
		features.HasNouns:             0.01,
		features.HasAdjectives:        0.01,
	}
}
// #endregion defaults

// #region clamp
// Clamp restricts w to [0, 1].
func Clamp(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
// #endregion clamp
