package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// #region compute
// Compute returns MSE, RMSE, MAE and R² for predicted against actual. R² is 0
// when actual has no variance.
func Compute(actual, predicted []float64) (Result, error) {
	if len(actual) == 0 {
		return Result{}, ErrEmpty
	}
	if len(actual) != len(predicted) {
		return Result{}, ErrLengthMismatch
	}

	residuals := make([]float64, len(actual))
	floats.SubTo(residuals, actual, predicted)

	n := float64(len(actual))
	var sumSq, sumAbs float64
	for _, r := range residuals {
		sumSq += r * r
		sumAbs += math.Abs(r)
	}
	mse := sumSq / n

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, a := range actual {
		ssTot += (a - mean) * (a - mean)
	}
	var r2 float64
	if ssTot > 0 {
		r2 = 1 - sumSq/ssTot
	}

	return Result{
		MSE:      mse,
		RMSE:     math.Sqrt(mse),
		MAE:      sumAbs / n,
		RSquared: r2,
	}, nil
}
// #endregion compute

// #region evaluate
// Evaluate computes a Report, or marks it as insufficient data when fewer
// than MinSamples pairs exist. Mismatched inputs are truncated to the shorter
// length.
func Evaluate(actual, predicted []float64) Report {
	n := min(len(actual), len(predicted))
	if n < MinSamples {
		return Report{TrainingDataSize: n, Status: StatusInsufficientData}
	}
	res, err := Compute(actual[:n], predicted[:n])
	if err != nil {
		return Report{TrainingDataSize: n, Status: StatusInsufficientData}
	}
	return Report{Result: res, TrainingDataSize: n, Status: StatusSuccess}
}
// #endregion evaluate
