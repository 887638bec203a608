package replay

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/prompt-refiner/internal/orchestrator"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
)

func testConfig(parallelism int) Config {
	cfg := DefaultConfig()
	cfg.Parallelism = parallelism
	cfg.Neural = regression.NeuralConfig{Hidden1: 4, Hidden2: 2, Epochs: 2, LearningRate: 0.01, Seed: 1}
	return cfg
}

// #region fixture-tests

// TestFixture_Scenarios is the scoring regression test: a change to feature
// extraction, default weights or the update rule shows up here as drift.
func TestFixture_Scenarios(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "scenarios.yaml"))
	require.NoError(t, err)
	require.Len(t, f.Cases, 4)

	results, err := Replay(context.Background(), f, testConfig(1))
	require.NoError(t, err)
	require.Len(t, results, len(f.Cases))

	for i, r := range results {
		assert.Equal(t, f.Cases[i].ID, r.ID)
		assert.True(t, r.Passed, "case %s: %v", r.ID, r.Failures)
	}

	sum := Summarize(results)
	assert.Equal(t, Summary{
		Total:          4,
		Passed:         4,
		Converged:      2,
		Exhausted:      1,
		Errors:         1,
		MeanFinalScore: sum.MeanFinalScore,
	}, sum)
	assert.Greater(t, sum.MeanFinalScore, 0.0)
}

func TestReplay_ParallelMatchesSequential(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "scenarios.yaml"))
	require.NoError(t, err)

	seq, err := Replay(context.Background(), f, testConfig(1))
	require.NoError(t, err)
	par, err := Replay(context.Background(), f, testConfig(4))
	require.NoError(t, err)

	require.Len(t, par, len(seq))
	for i := range seq {
		assert.Equal(t, seq[i].ID, par[i].ID)
		assert.Equal(t, seq[i].StopReason, par[i].StopReason)
		assert.Equal(t, seq[i].Iterations, par[i].Iterations)
		assert.InDelta(t, seq[i].FinalScore, par[i].FinalScore, 1e-12)
	}
}

func TestReplay_CancelledContext(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "scenarios.yaml"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Replay(ctx, f, testConfig(1))
	assert.ErrorIs(t, err, context.Canceled)
}

// #endregion fixture-tests

// #region parse-tests

func TestParseFixture_Defaults(t *testing.T) {
	f, err := ParseFixture([]byte(`
defaults:
  method: neural
  maxIterations: 4
  goals: [CLARITY]
cases:
  - id: a
    prompt: hello
  - id: b
    prompt: hello
    method: LINEAR
    maxIterations: 2
    goals: [SPECIFICITY]
`))
	require.NoError(t, err)

	a, err := f.Cases[0].ToRequest(f.Defaults)
	require.NoError(t, err)
	assert.Equal(t, regression.MethodNeural, a.RegressionMethod)
	assert.Equal(t, 4, a.MaxIterations)
	assert.Equal(t, []string{"CLARITY"}, a.OptimizationGoals)

	b, err := f.Cases[1].ToRequest(f.Defaults)
	require.NoError(t, err)
	assert.Equal(t, regression.MethodLinear, b.RegressionMethod)
	assert.Equal(t, 2, b.MaxIterations)
	assert.Equal(t, []string{"SPECIFICITY"}, b.OptimizationGoals)
}

func TestParseFixture_Errors(t *testing.T) {
	_, err := ParseFixture([]byte("cases:\n  - prompt: x\n"))
	assert.ErrorContains(t, err, "missing id")

	_, err = ParseFixture([]byte("cases:\n  - id: a\n  - id: a\n"))
	assert.ErrorContains(t, err, "duplicate id")

	_, err = ParseFixture([]byte("cases: [\n"))
	assert.Error(t, err)

	_, err = LoadFixture(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestToRequest_UnknownMethod(t *testing.T) {
	c := FixtureCase{ID: "x", Prompt: "p", FixtureRequest: FixtureRequest{Method: "quadratic"}}
	_, err := c.ToRequest(FixtureRequest{})
	assert.ErrorContains(t, err, "case x")
}

// #endregion parse-tests

// #region check-tests

func TestCheck(t *testing.T) {
	pct := 10.0
	res := &orchestrator.Result{
		StopReason:            orchestrator.StopExhausted,
		TotalIterations:       3,
		RefinedPrompt:         "p",
		FinalScore:            0.4,
		ImprovementPercentage: &pct,
	}

	assert.Empty(t, check(Expect{StopReason: "EXHAUSTED", Iterations: 3, RefinedPrompt: "p"}, res, nil))

	floor := 20.0
	failures := check(Expect{StopReason: "converged", Iterations: 2, MinFinalScore: 0.5, MinImprovePct: &floor}, res, nil)
	assert.Len(t, failures, 4)

	res.ImprovementPercentage = nil
	assert.Len(t, check(Expect{MinImprovePct: &floor}, res, nil), 1)

	assert.Len(t, check(Expect{Error: true}, res, nil), 1)
	assert.Len(t, check(Expect{}, nil, assert.AnError), 1)
	assert.Empty(t, check(Expect{Error: true}, nil, assert.AnError))
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

// #endregion check-tests
