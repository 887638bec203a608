package logging

import "time"

// #region decision-entry
// DecisionEntry is a single row in the decision_log table: what the refinement
// loop decided at the end of one iteration and why.
type DecisionEntry struct {
	SessionID  string
	Iteration  int
	Decision   string // "continue" | "converged" | "exhausted" | "failed"
	Reason     string
	Quality    float64
	Predicted  float64
	DeltasJSON string // weight deltas applied after this iteration
	CreatedAt  time.Time
}
// #endregion decision-entry

// #region decisions
const (
	DecisionContinue  = "continue"
	DecisionConverged = "converged"
	DecisionExhausted = "exhausted"
	DecisionFailed    = "failed"
)
// #endregion decisions
