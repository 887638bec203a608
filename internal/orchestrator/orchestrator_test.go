package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/prompt-refiner/internal/features"
	"github.com/danielpatrickdp/prompt-refiner/internal/generator"
	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
	"github.com/danielpatrickdp/prompt-refiner/internal/metrics"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
	"github.com/danielpatrickdp/prompt-refiner/internal/store"
	"github.com/danielpatrickdp/prompt-refiner/internal/weights"
)

// #region fixtures

type harness struct {
	store     *store.Store
	weights   *weights.Store
	decisions *logging.DecisionLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ws, err := weights.NewStore(st.DB())
	require.NoError(t, err)
	dl, err := logging.NewDecisionLog(st.DB())
	require.NoError(t, err)
	return &harness{store: st, weights: ws, decisions: dl}
}

func (h *harness) orchestrator(gen generator.TextGenerator, opts ...Option) *Orchestrator {
	base := []Option{
		WithDecisionLog(h.decisions),
		WithNeuralConfig(regression.NeuralConfig{Hidden1: 8, Hidden2: 4, Epochs: 5, LearningRate: 0.01, Seed: 1}),
	}
	return New(h.store, h.weights, gen, append(base, opts...)...)
}

// vagueWeighted is Σ value·weight of "tell me stuff" under the default table.
const vagueWeighted = 0.12 + 0.03 + 0.02*11.0/3.0 + 0.08 + 0.06 + 0.045 + 0.048 + 0.04 + 0.005 + 0.01 + 0.02

// vagueQuality is the default-weight score of "tell me stuff".
func vagueQuality() float64 {
	var total float64
	for _, w := range weights.DefaultWeights() {
		total += w
	}
	return vagueWeighted / total
}

type countingObserver struct {
	starts, ends, completes int
}

func (c *countingObserver) IterationStart(string, int, string)   { c.starts++ }
func (c *countingObserver) IterationEnd(string, IterationDetail) { c.ends++ }
func (c *countingObserver) SessionComplete(*Result)              { c.completes++ }

type blockingGenerator struct{}

func (blockingGenerator) Rewrite(ctx context.Context, _ string, _ float64, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// #endregion fixtures

// #region scenario-tests

func TestRefine_VaguePromptLinear(t *testing.T) {
	h := newHarness(t)
	gen := generator.NewStatic("Explain the data.", "Describe the data in detail.")
	o := h.orchestrator(gen)

	res, err := o.Refine(context.Background(), Request{
		Prompt:               "tell me stuff",
		MaxIterations:        3,
		ConvergenceThreshold: 0.95,
		RegressionMethod:     regression.MethodLinear,
	})
	require.NoError(t, err)

	first := res.Iterations[0]
	assert.Equal(t, "tell me stuff", first.Prompt)
	assert.InDelta(t, 0.4, first.Features[features.SemanticClarity], 1e-9)
	assert.InDelta(t, vagueQuality(), first.QualityScore, 1e-9)
	assert.InDelta(t, 0.5261, first.QualityScore, 1e-4)
	assert.Equal(t, regression.NeutralScore, first.PredictedScore)
	assert.Equal(t, logging.DecisionContinue, first.Decision)

	require.GreaterOrEqual(t, len(res.Iterations), 2)
	assert.Equal(t, "Explain the data.", res.Iterations[1].Prompt)
	// the session's own records never train its predictor
	assert.Equal(t, regression.NeutralScore, res.Iterations[1].PredictedScore)

	require.GreaterOrEqual(t, gen.CallCount(), 1)
	call := gen.Calls[0]
	assert.Equal(t, "tell me stuff", call.Prompt)
	assert.Equal(t, first.QualityScore, call.Score)
	assert.Equal(t, first.Feedback, call.Feedback)

	recs, err := h.store.SessionRecords(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.Len(t, recs, len(res.Iterations))
	for i, rec := range recs {
		assert.Equal(t, "tell me stuff", rec.OriginalPrompt)
		assert.Equal(t, res.Iterations[i].Prompt, rec.RefinedPrompt, "record %d stores its scored prompt", i)
	}

	assert.Equal(t, regression.MethodLinear, res.RegressionMethod)
	assert.Equal(t, "LINEAR", res.RegressionResult.Method)
	assert.Equal(t, "tell me stuff", res.OriginalPrompt)
	assert.Equal(t, res.Iterations[len(res.Iterations)-1].Prompt, res.RefinedPrompt)
}

func TestRefine_ConvergesOnThreshold(t *testing.T) {
	h := newHarness(t)
	gen := generator.NewStatic("unused")
	o := h.orchestrator(gen)

	res, err := o.Refine(context.Background(), Request{Prompt: "tell me stuff", ConvergenceThreshold: 0.5})
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, StopConverged, res.StopReason)
	assert.Equal(t, 1, res.TotalIterations)
	assert.Equal(t, 0, gen.CallCount())
	assert.Equal(t, res.InitialScore, res.FinalScore)
	require.NotNil(t, res.ImprovementPercentage)
	assert.Equal(t, 0.0, *res.ImprovementPercentage)

	recs, err := h.store.SessionRecords(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Converged)
	assert.Equal(t, "ENSEMBLE", recs[0].Method)
	assert.Equal(t, 3, recs[0].PromptTokens)
}

func TestRefine_ConvergesOnSmallDelta(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(generator.Echo{})

	res, err := o.Refine(context.Background(), Request{Prompt: "tell me stuff", MaxIterations: 5})
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.TotalIterations)
	assert.Less(t, res.Iterations[1].Improvement, DeltaTolerance)
	assert.Greater(t, res.Iterations[1].Improvement, -DeltaTolerance)
	assert.Equal(t, logging.DecisionConverged, res.Iterations[1].Decision)

	recs, err := h.store.SessionRecords(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Converged)
	assert.True(t, recs[1].Converged)
}

func TestRefine_Exhausted(t *testing.T) {
	h := newHarness(t)
	gen := generator.NewStatic("Explain the data.", "tell me stuff")
	obs := &countingObserver{}
	o := h.orchestrator(gen, WithObserver(obs))

	res, err := o.Refine(context.Background(), Request{
		Prompt:               "tell me stuff",
		MaxIterations:        3,
		ConvergenceThreshold: 0.99,
		RegressionMethod:     regression.MethodPolynomial,
	})
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.Equal(t, StopExhausted, res.StopReason)
	assert.Equal(t, 3, res.TotalIterations)
	// no rewrite after the final iteration
	assert.Equal(t, 2, gen.CallCount())
	assert.Equal(t, "tell me stuff", res.RefinedPrompt)
	assert.Equal(t, logging.DecisionExhausted, res.Iterations[2].Decision)
	assert.Equal(t, res.Iterations[2].Features, res.FinalFeatures)

	assert.Equal(t, 3, obs.starts)
	assert.Equal(t, 3, obs.ends)
	assert.Equal(t, 1, obs.completes)

	trail, err := h.decisions.List(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, logging.DecisionContinue, trail[0].Decision)
	assert.NotEmpty(t, trail[0].DeltasJSON)
	assert.Equal(t, logging.DecisionExhausted, trail[2].Decision)

	for _, w := range res.FinalWeights {
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, 1.0)
	}
}

// #endregion scenario-tests

// #region learning-tests

func TestRefine_WeightsStayInUnitInterval(t *testing.T) {
	h := newHarness(t)
	gen := generator.NewStatic("Explain the data.", "tell me stuff")
	// a large learning rate pushes count features against the bounds
	o := h.orchestrator(gen, WithLearningRate(5))

	_, err := o.Refine(context.Background(), Request{
		Prompt:               "tell me stuff",
		MaxIterations:        4,
		ConvergenceThreshold: 0.99,
		RegressionMethod:     regression.MethodLinear,
		FeatureWeights:       map[string]float64{features.HasExamples: 2.5},
	})
	require.NoError(t, err)

	stats, err := h.weights.List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	for _, st := range stats {
		assert.GreaterOrEqual(t, st.Weight, 0.0, st.FeatureName)
		assert.LessOrEqual(t, st.Weight, 1.0, st.FeatureName)
		assert.GreaterOrEqual(t, st.MinWeight, 0.0, st.FeatureName)
		assert.LessOrEqual(t, st.MaxWeight, 1.0, st.FeatureName)
	}
}

func TestApplyGradient_MovesAgainstError(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(generator.Echo{})

	table := map[string]float64{"a": 0.5}
	vec := features.Vector{"a": 2, "b": 1}
	deltas, err := o.applyGradient(context.Background(), table, vec, 0.25)
	require.NoError(t, err)

	// delta = -0.01 · 0.25 · value
	assert.InDelta(t, -0.005, deltas["a"], 1e-12)
	assert.InDelta(t, 0.495, table["a"], 1e-12)
	// b was missing from the table and starts from the default weight
	assert.InDelta(t, features.DefaultWeight-0.0025, table["b"], 1e-12)

	st, ok, err := h.weights.Get(context.Background(), "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, table["b"], st.Weight, 1e-12)
}

// #endregion learning-tests

// #region failure-tests

func TestRefine_GeneratorFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("upstream 503")
	o := h.orchestrator(generator.NewFailing(boom))

	res, err := o.Refine(context.Background(), Request{Prompt: "tell me stuff", ConvergenceThreshold: 0.99})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)

	var serr *SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, serr.Iteration)
	assert.Equal(t, "rewrite prompt", serr.Op)
	assert.NotEmpty(t, serr.SessionID)

	recs, err := h.store.SessionRecords(context.Background(), serr.SessionID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	trail, err := h.decisions.List(context.Background(), serr.SessionID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, logging.DecisionFailed, trail[1].Decision)
}

func TestRefine_SessionTimeout(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(blockingGenerator{}, WithSessionTimeout(50*time.Millisecond))

	_, err := o.Refine(context.Background(), Request{Prompt: "tell me stuff", ConvergenceThreshold: 0.99})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRefine_InvalidRequests(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(generator.Echo{})

	cases := map[string]Request{
		"blank prompt": {Prompt: "   "},
		"too many":     {Prompt: "x", MaxIterations: 51},
		"negative":     {Prompt: "x", MaxIterations: -1},
		"threshold":    {Prompt: "x", ConvergenceThreshold: 1.5},
		"method":       {Prompt: "x", RegressionMethod: regression.Method(9)},
	}
	for name, req := range cases {
		_, err := o.Refine(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest, name)
	}

	_, err := o.Refine(context.Background(), Request{})
	assert.EqualError(t, err, "invalid refinement request: prompt cannot be empty")
}

func TestRefine_UnknownAndBlankGoalsAreSkipped(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(generator.Echo{})

	res, err := o.Refine(context.Background(), Request{
		Prompt:               "tell me stuff",
		MaxIterations:        1,
		ConvergenceThreshold: 0.99,
		OptimizationGoals:    []string{"CLARITY", " ", "BREVITY"},
	})
	require.NoError(t, err)

	fb := res.Iterations[0].Feedback
	assert.Contains(t, fb, "- Improve clarity by using more specific action words and reducing ambiguous terms\n")
	recs := fb[strings.Index(fb, "Recommendations:"):]
	assert.Equal(t, 1, strings.Count(recs, "\n- "))
}

// #endregion failure-tests

// #region metrics-tests

func TestRefine_SessionMetrics(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(generator.Echo{})
	ctx := context.Background()

	first, err := o.Refine(ctx, Request{Prompt: "tell me stuff", ConvergenceThreshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, metrics.StatusInsufficientData, first.RegressionResult.Status)
	assert.Equal(t, 1, first.RegressionResult.TrainingDataSize)

	second, err := o.Refine(ctx, Request{Prompt: "Explain the data.", ConvergenceThreshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, metrics.StatusSuccess, second.RegressionResult.Status)
	assert.Equal(t, 2, second.RegressionResult.TrainingDataSize)

	saved, err := h.store.SessionMetrics(ctx, second.SessionID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSuccess, saved.Status)
	assert.InDelta(t, second.RegressionResult.RMSE, saved.RMSE, 1e-12)
	assert.Len(t, saved.FeatureImportance, len(weights.DefaultWeights()))
}

func TestImprovementPercentage(t *testing.T) {
	assert.Nil(t, improvementPercentage(0, 0.7))
	p := improvementPercentage(0.5, 0.75)
	require.NotNil(t, p)
	assert.InDelta(t, 50.0, *p, 1e-9)
}

// #endregion metrics-tests

// #region wiring-tests

func TestPredictorIsolation(t *testing.T) {
	h := newHarness(t)

	isolated := h.orchestrator(generator.Echo{})
	assert.NotSame(t, isolated.predictorFor(), isolated.predictorFor())

	shared := h.orchestrator(generator.Echo{}, WithSharedModels(true))
	assert.Same(t, shared.predictorFor(), shared.predictorFor())
}

func TestRequest_JSON(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"prompt":"x","regressionMethod":"linear","optimizationGoals":["clarity"]}`), &req))
	req = req.Normalize()

	assert.Equal(t, regression.MethodLinear, req.RegressionMethod)
	assert.Equal(t, DefaultMaxIterations, req.MaxIterations)
	assert.Equal(t, DefaultConvergenceThreshold, req.ConvergenceThreshold)
	assert.Equal(t, []features.Goal{features.GoalClarity}, req.Goals())
	require.NoError(t, req.Validate())
}

func TestResult_JSONNullImprovement(t *testing.T) {
	b, err := json.Marshal(Result{RegressionMethod: regression.MethodNeural})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"improvementPercentage":null`)
	assert.Contains(t, string(b), `"regressionMethod":"NEURAL"`)
	assert.Contains(t, string(b), `"rSquared":0`)
}

// #endregion wiring-tests
