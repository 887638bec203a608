package metrics

import "errors"

// #region result
// Result holds the accuracy of predicted against actual scores.
type Result struct {
	MSE      float64 `json:"mse"`
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
	RSquared float64 `json:"rSquared"`
}
// #endregion result

// #region report
// Report statuses.
const (
	StatusSuccess          = "Success"
	StatusInsufficientData = "Insufficient data"
)

// MinSamples is the smallest dataset for which metrics are computed.
const MinSamples = 2

// Report is a Result plus the dataset size and whether it was computed.
type Report struct {
	Result
	TrainingDataSize int    `json:"trainingDataSize"`
	Status           string `json:"status"`
}

// Sufficient reports whether the metrics were actually computed.
func (r Report) Sufficient() bool {
	return r.Status == StatusSuccess
}
// #endregion report

// #region errors
var (
	ErrEmpty          = errors.New("metrics: empty input")
	ErrLengthMismatch = errors.New("metrics: actual and predicted lengths differ")
)
// #endregion errors
