package regression

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/prompt-refiner/internal/features"
)

// NeutralScore is returned whenever a prediction cannot be made.
const NeutralScore = 0.5

// MinSamples is the smallest history any strategy will train on.
const MinSamples = 2

// #region errors
var (
	ErrInsufficientData = errors.New("regression: fewer than 2 historical samples")
	ErrUnderdetermined  = errors.New("regression: more parameters than samples")
	ErrSingular         = errors.New("regression: singular design matrix")
	ErrAllFailed        = errors.New("regression: every ensemble member failed")
)
// #endregion errors

// #region dataset
// Dataset is the historical training set: parallel feature vectors and
// observed quality scores.
type Dataset struct {
	Features []features.Vector
	Scores   []float64
}

// NewDataset pairs feature vectors with scores. The slices must be the same
// length.
func NewDataset(feats []features.Vector, scores []float64) (Dataset, error) {
	if len(feats) != len(scores) {
		return Dataset{}, fmt.Errorf("dataset: %d feature rows, %d scores", len(feats), len(scores))
	}
	return Dataset{Features: feats, Scores: scores}, nil
}

// Len returns the number of samples.
func (d Dataset) Len() int {
	return min(len(d.Features), len(d.Scores))
}
// #endregion dataset

// #region strategy
// Strategy is one regression variant. Predict returns an error rather than a
// fallback value; Predictor turns errors into NeutralScore.
type Strategy interface {
	Method() Method
	Predict(ctx context.Context, x features.Vector, data Dataset) (float64, error)
}
// #endregion strategy

// #region helpers
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
// #endregion helpers
