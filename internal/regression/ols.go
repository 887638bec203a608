package regression

import (
	"context"
	"fmt"
	"math"

	"github.com/danielpatrickdp/prompt-refiner/internal/features"
	"gonum.org/v1/gonum/mat"
)

// #region fit
// fitOLS solves y ≈ β0 + Σ βj·xj by least squares (QR). The returned slice
// holds the intercept followed by one coefficient per column of x.
func fitOLS(x [][]float64, y []float64) ([]float64, error) {
	n := len(x)
	if n == 0 {
		return nil, ErrInsufficientData
	}
	p := len(x[0]) + 1
	if n < p {
		return nil, fmt.Errorf("%w: %d samples for %d parameters", ErrUnderdetermined, n, p)
	}

	a := mat.NewDense(n, p, nil)
	for i, row := range x {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), y...))

	var qr mat.QR
	qr.Factorize(a)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	coef := make([]float64, p)
	for i := range coef {
		coef[i] = beta.AtVec(i)
		if math.IsNaN(coef[i]) || math.IsInf(coef[i], 0) {
			return nil, ErrSingular
		}
	}
	return coef, nil
}

// predictOLS fits history on keys (the current vector's key order; absent
// historical values are 0) and evaluates the model at x.
//
// Extracted vectors are always rank deficient: specificity and ambiguity
// repeat semanticClarity, and completenessScore is a linear combination of
// the has* flags. Fits over real prompt history therefore end in ErrSingular
// and the predictor falls back to NeutralScore.
func predictOLS(x features.Vector, keys []string, hist []features.Vector, scores []float64) (float64, error) {
	rows := make([][]float64, len(hist))
	for i, h := range hist {
		row := make([]float64, len(keys))
		for j, k := range keys {
			row[j] = h[k]
		}
		rows[i] = row
	}

	coef, err := fitOLS(rows, scores)
	if err != nil {
		return 0, err
	}

	pred := coef[0]
	for j, k := range keys {
		pred += coef[j+1] * x[k]
	}
	return clamp(pred), nil
}
// #endregion fit

// #region linear
// Linear is ordinary least squares over the raw feature vector.
type Linear struct{}

func (Linear) Method() Method { return MethodLinear }

func (Linear) Predict(ctx context.Context, x features.Vector, data Dataset) (float64, error) {
	if data.Len() < MinSamples {
		return 0, ErrInsufficientData
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := data.Len()
	return predictOLS(x, x.Keys(), data.Features[:n], data.Scores[:n])
}
// #endregion linear

// #region polynomial
// maxInteractionKeys bounds pairwise product terms to the first five keys
// (ten products).
const maxInteractionKeys = 5

// Polynomial is least squares over the features, their squares, and pairwise
// products of the first five keys.
type Polynomial struct{}

func (Polynomial) Method() Method { return MethodPolynomial }

func (Polynomial) Predict(ctx context.Context, x features.Vector, data Dataset) (float64, error) {
	if data.Len() < MinSamples {
		return 0, ErrInsufficientData
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := data.Len()
	hist := make([]features.Vector, n)
	for i := 0; i < n; i++ {
		hist[i] = expand(data.Features[i])
	}
	px := expand(x)
	return predictOLS(px, px.Keys(), hist, data.Scores[:n])
}

// expand returns v with squared terms for every key and product terms for
// pairs among its first five keys.
func expand(v features.Vector) features.Vector {
	out := v.Clone()
	keys := v.Keys()
	for _, k := range keys {
		out[k+"_squared"] = v[k] * v[k]
	}
	limit := min(maxInteractionKeys, len(keys))
	for i := 0; i < limit; i++ {
		for j := i + 1; j < limit; j++ {
			out[keys[i]+"x"+keys[j]] = v[keys[i]] * v[keys[j]]
		}
	}
	return out
}
// #endregion polynomial
