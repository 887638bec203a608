package replay

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/prompt-refiner/internal/generator"
	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
	"github.com/danielpatrickdp/prompt-refiner/internal/orchestrator"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
	"github.com/danielpatrickdp/prompt-refiner/internal/store"
	"github.com/danielpatrickdp/prompt-refiner/internal/weights"
)

// #region types

// Config controls a replay run.
type Config struct {
	Parallelism  int // cases run at once; <= 0 means 1
	LearningRate float64
	Neural       regression.NeuralConfig
	Logger       logging.Logger
}

// DefaultConfig returns a sequential run with the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		Parallelism:  1,
		LearningRate: orchestrator.DefaultLearningRate,
		Neural:       regression.DefaultNeuralConfig(),
	}
}

// CaseResult captures the outcome of replaying one case.
type CaseResult struct {
	ID            string
	SessionID     string
	StopReason    orchestrator.StopReason
	Iterations    int
	InitialScore  float64
	FinalScore    float64
	RefinedPrompt string
	Err           error

	Passed   bool
	Failures []string
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Total     int
	Passed    int
	Failed    int
	Converged int
	Exhausted int
	Errors    int

	MeanFinalScore float64
}

// #endregion types

// #region replay

// Replay runs every case of f against its own in-memory store, so results do
// not depend on case order or parallelism. Results are returned in fixture
// order. Only setup failures and cancellation are returned as errors; a
// session error is recorded on its CaseResult.
func Replay(ctx context.Context, f *Fixture, cfg Config) ([]CaseResult, error) {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	results := make([]CaseResult, len(f.Cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallelism)
	for i := range f.Cases {
		c := &f.Cases[i]
		g.Go(func() error {
			r, err := runCase(gctx, c, f.Defaults, cfg)
			if err != nil {
				return fmt.Errorf("case %s: %w", c.ID, err)
			}
			results[i] = r
			cfg.Logger.Debug("[REPLAY] case done", "case", c.ID, "passed", r.Passed, "stop", string(r.StopReason))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runCase(ctx context.Context, c *FixtureCase, defaults FixtureRequest, cfg Config) (CaseResult, error) {
	req, err := c.ToRequest(defaults)
	if err != nil {
		return CaseResult{}, err
	}

	st, err := store.NewStore(":memory:")
	if err != nil {
		return CaseResult{}, err
	}
	defer st.Close()
	ws, err := weights.NewStore(st.DB())
	if err != nil {
		return CaseResult{}, err
	}
	decisions, err := logging.NewDecisionLog(st.DB())
	if err != nil {
		return CaseResult{}, err
	}

	var gen generator.TextGenerator = generator.Echo{}
	if len(c.Replies) > 0 {
		gen = generator.NewStatic(c.Replies...)
	}
	opts := []orchestrator.Option{
		orchestrator.WithDecisionLog(decisions),
		orchestrator.WithLogger(cfg.Logger),
	}
	if cfg.LearningRate > 0 {
		opts = append(opts, orchestrator.WithLearningRate(cfg.LearningRate))
	}
	if cfg.Neural.Epochs > 0 {
		opts = append(opts, orchestrator.WithNeuralConfig(cfg.Neural))
	}
	orch := orchestrator.New(st, ws, gen, opts...)

	out := CaseResult{ID: c.ID}
	res, err := orch.Refine(ctx, req)
	if ctx.Err() != nil {
		return CaseResult{}, ctx.Err()
	}
	if err != nil {
		out.Err = err
	} else {
		out.SessionID = res.SessionID
		out.StopReason = res.StopReason
		out.Iterations = res.TotalIterations
		out.InitialScore = res.InitialScore
		out.FinalScore = res.FinalScore
		out.RefinedPrompt = res.RefinedPrompt
	}
	out.Failures = check(c.Expect, res, err)
	out.Passed = len(out.Failures) == 0
	return out, nil
}

// check compares a result against the expectations and returns one message
// per mismatch.
func check(exp Expect, res *orchestrator.Result, err error) []string {
	if exp.Error {
		if err == nil {
			return []string{"expected an error"}
		}
		return nil
	}
	if err != nil {
		return []string{"unexpected error: " + err.Error()}
	}

	var failures []string
	if exp.StopReason != "" && !strings.EqualFold(exp.StopReason, string(res.StopReason)) {
		failures = append(failures, fmt.Sprintf("stop reason: expected %s, got %s", exp.StopReason, res.StopReason))
	}
	if exp.Iterations > 0 && exp.Iterations != res.TotalIterations {
		failures = append(failures, fmt.Sprintf("iterations: expected %d, got %d", exp.Iterations, res.TotalIterations))
	}
	if exp.RefinedPrompt != "" && exp.RefinedPrompt != res.RefinedPrompt {
		failures = append(failures, fmt.Sprintf("refined prompt: expected %q, got %q", exp.RefinedPrompt, res.RefinedPrompt))
	}
	if res.FinalScore < exp.MinFinalScore {
		failures = append(failures, fmt.Sprintf("final score %.4f below %.4f", res.FinalScore, exp.MinFinalScore))
	}
	if exp.MinImprovePct != nil {
		switch {
		case res.ImprovementPercentage == nil:
			failures = append(failures, "improvement undefined for a zero initial score")
		case *res.ImprovementPercentage < *exp.MinImprovePct:
			failures = append(failures, fmt.Sprintf("improvement %.2f%% below %.2f%%", *res.ImprovementPercentage, *exp.MinImprovePct))
		}
	}
	return failures
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []CaseResult) Summary {
	s := Summary{Total: len(results)}
	var scored int
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		if r.Err != nil {
			s.Errors++
			continue
		}
		switch r.StopReason {
		case orchestrator.StopConverged:
			s.Converged++
		case orchestrator.StopExhausted:
			s.Exhausted++
		}
		s.MeanFinalScore += r.FinalScore
		scored++
	}
	if scored > 0 {
		s.MeanFinalScore /= float64(scored)
	}
	return s
}

// #endregion replay
