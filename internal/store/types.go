package store

import "time"

// #region refinement-record
// RefinementRecord is one iteration of one refinement session. Records are
// append-only; only Converged is flipped, on the terminal record.
type RefinementRecord struct {
	ID                   string             `json:"id"`
	SessionID            string             `json:"sessionId"`
	Iteration            int                `json:"iteration"`
	OriginalPrompt       string             `json:"originalPrompt"` // prompt the session started from
	RefinedPrompt        string             `json:"refinedPrompt"`  // prompt scored at this iteration
	QualityScore         float64            `json:"qualityScore"`
	PredictedScore       float64            `json:"predictedScore"`
	ClarityScore         float64            `json:"clarityScore"`
	RelevanceScore       float64            `json:"relevanceScore"`
	SpecificityScore     float64            `json:"specificityScore"`
	CompletenessScore    float64            `json:"completenessScore"`
	Method               string             `json:"method"`
	Feedback             string             `json:"feedback"`
	Features             map[string]float64 `json:"features"`
	Converged            bool               `json:"converged"`
	Goals                []string           `json:"goals"`
	ConvergenceThreshold float64            `json:"convergenceThreshold"`
	MaxIterations        int                `json:"maxIterations"`
	PromptTokens         int                `json:"promptTokens"`
	CreatedAt            time.Time          `json:"createdAt"`
}
// #endregion refinement-record

// #region regression-metrics
// Metric statuses.
const (
	StatusSuccess          = "Success"
	StatusInsufficientData = "Insufficient data"
)

// RegressionMetrics summarizes predictor accuracy at the end of a session,
// computed over every persisted record.
type RegressionMetrics struct {
	SessionID         string             `json:"sessionId"`
	Method            string             `json:"method"`
	MSE               float64            `json:"mse"`
	RMSE              float64            `json:"rmse"`
	MAE               float64            `json:"mae"`
	RSquared          float64            `json:"rSquared"`
	TrainingDataSize  int                `json:"trainingDataSize"`
	Status            string             `json:"status"`
	FeatureImportance map[string]float64 `json:"featureImportance"`
	CalculatedAt      time.Time          `json:"calculatedAt"`
}
// #endregion regression-metrics

// #region summaries
// SessionSummary is a one-line view of a session's records.
type SessionSummary struct {
	SessionID      string    `json:"sessionId"`
	OriginalPrompt string    `json:"originalPrompt"`
	Method         string    `json:"method"`
	Iterations     int       `json:"iterations"`
	Converged      bool      `json:"converged"`
	InitialScore   float64   `json:"initialScore"`
	FinalScore     float64   `json:"finalScore"`
	StartedAt      time.Time `json:"startedAt"`
}

// MethodSummary aggregates session metrics per regression method.
type MethodSummary struct {
	Method        string  `json:"method"`
	Sessions      int     `json:"sessions"`
	AvgMSE        float64 `json:"avgMSE"`
	AvgRMSE       float64 `json:"avgRMSE"`
	AvgMAE        float64 `json:"avgMAE"`
	AvgRSquared   float64 `json:"avgRSquared"`
	AvgFinalScore float64 `json:"avgFinalScore"`
}
// #endregion summaries
