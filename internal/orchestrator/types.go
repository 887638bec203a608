package orchestrator

// #region imports
import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/prompt-refiner/internal/features"
	"github.com/danielpatrickdp/prompt-refiner/internal/metrics"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
)

// #endregion

// #region defaults

const (
	DefaultMaxIterations        = 5
	DefaultConvergenceThreshold = 0.95
	DefaultMethod               = regression.MethodEnsemble
	DefaultLearningRate         = 0.01

	// DeltaTolerance is the score change below which two consecutive
	// iterations count as converged.
	DeltaTolerance = 0.01

	maxIterationsCap = 50
)

// #endregion

// #region stop-reason

// StopReason is the terminal state of a session.
type StopReason string

const (
	StopConverged StopReason = "converged"
	StopExhausted StopReason = "exhausted"
)

// #endregion

// #region iteration-detail

// IterationDetail is the per-iteration view returned to callers.
type IterationDetail struct {
	Iteration      int             `json:"iteration"`
	Prompt         string          `json:"prompt"`
	QualityScore   float64         `json:"qualityScore"`
	PredictedScore float64         `json:"predictedScore"`
	Feedback       string          `json:"feedback"`
	Features       features.Vector `json:"features"`
	Improvement    float64         `json:"improvement"` // score change from the previous iteration
	Decision       string          `json:"decision"`
}

// #endregion

// #region result

// RegressionResult is the session-level accuracy report.
type RegressionResult struct {
	Method string `json:"method"`
	metrics.Report
}

// Result is the outcome of one refinement session.
type Result struct {
	SessionID             string             `json:"sessionId"`
	OriginalPrompt        string             `json:"originalPrompt"`
	RefinedPrompt         string             `json:"refinedPrompt"`
	TotalIterations       int                `json:"totalIterations"`
	Converged             bool               `json:"converged"`
	StopReason            StopReason         `json:"stopReason"`
	InitialScore          float64            `json:"initialScore"`
	FinalScore            float64            `json:"finalScore"`
	ImprovementPercentage *float64           `json:"improvementPercentage"` // nil when the initial score is 0
	Iterations            []IterationDetail  `json:"iterations"`
	RegressionResult      RegressionResult   `json:"regressionResult"`
	FinalFeatures         features.Vector    `json:"finalFeatures"`
	FinalWeights          map[string]float64 `json:"finalWeights"`
	RegressionMethod      regression.Method  `json:"regressionMethod"`
}

// improvementPercentage returns (final-initial)/initial·100, or nil when
// initial is 0.
func improvementPercentage(initial, final float64) *float64 {
	if initial == 0 {
		return nil
	}
	p := (final - initial) / initial * 100
	return &p
}

// #endregion

// #region errors

// ErrInvalidRequest wraps every request validation failure.
var ErrInvalidRequest = errors.New("invalid refinement request")

// SessionError is a fatal collaborator failure inside a session. Iteration is
// -1 for failures before the first iteration.
type SessionError struct {
	SessionID string
	Iteration int
	Op        string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s iteration %d: %s: %v", e.SessionID, e.Iteration, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// #endregion

// #region observer

// Observer receives progress callbacks. Calls happen on the session's
// goroutine.
type Observer interface {
	IterationStart(sessionID string, iteration int, prompt string)
	IterationEnd(sessionID string, detail IterationDetail)
	SessionComplete(result *Result)
}

type nopObserver struct{}

func (nopObserver) IterationStart(string, int, string)   {}
func (nopObserver) IterationEnd(string, IterationDetail) {}
func (nopObserver) SessionComplete(*Result)              {}

// #endregion
