package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/prompt-refiner/internal/features"
	"github.com/danielpatrickdp/prompt-refiner/internal/generator"
	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
	"github.com/danielpatrickdp/prompt-refiner/internal/metrics"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
	"github.com/danielpatrickdp/prompt-refiner/internal/store"
	"github.com/danielpatrickdp/prompt-refiner/internal/tokens"
	"github.com/danielpatrickdp/prompt-refiner/internal/weights"
)

// #endregion

// #region collaborators

// RecordStore persists iteration records and session metrics.
type RecordStore interface {
	AppendRecord(ctx context.Context, rec *store.RefinementRecord) error
	MarkConverged(ctx context.Context, sessionID string, iteration int) error
	AllRecords(ctx context.Context) ([]store.RefinementRecord, error)
	SaveMetrics(ctx context.Context, m store.RegressionMetrics) error
}

// WeightStore loads the session weight table and applies learned deltas.
type WeightStore interface {
	Initialize(ctx context.Context, overrides map[string]float64) (map[string]float64, error)
	Adjust(ctx context.Context, name string, seed, delta float64) (weights.Stat, error)
}

// DecisionRecorder receives one entry per iteration outcome.
type DecisionRecorder interface {
	Log(ctx context.Context, entry logging.DecisionEntry) error
}

// #endregion

// #region orchestrator-struct

// Orchestrator runs refinement sessions. It is safe for concurrent use; each
// Refine call owns its own prompt, weight copy, and iteration list.
type Orchestrator struct {
	records   RecordStore
	weights   WeightStore
	generator generator.TextGenerator

	learningRate   float64
	sessionTimeout time.Duration
	neural         regression.NeuralConfig
	sharedModels   bool
	shared         *regression.Predictor
	decisions      DecisionRecorder
	observer       Observer
	tokens         tokens.Counter
	logger         logging.Logger
}

// #endregion

// #region options

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLearningRate(lr float64) Option {
	return func(o *Orchestrator) { o.learningRate = lr }
}

// WithSessionTimeout bounds every Refine call.
func WithSessionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.sessionTimeout = d }
}

func WithNeuralConfig(cfg regression.NeuralConfig) Option {
	return func(o *Orchestrator) { o.neural = cfg }
}

// WithSharedModels makes every session use one Predictor, so the neural
// network keeps training across sessions. By default each session gets a
// fresh Predictor.
func WithSharedModels(shared bool) Option {
	return func(o *Orchestrator) { o.sharedModels = shared }
}

func WithDecisionLog(d DecisionRecorder) Option {
	return func(o *Orchestrator) { o.decisions = d }
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

func WithTokenCounter(c tokens.Counter) Option {
	return func(o *Orchestrator) { o.tokens = c }
}

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// #endregion

// #region constructor

// New wires an orchestrator to its collaborators.
func New(records RecordStore, w WeightStore, gen generator.TextGenerator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		records:      records,
		weights:      w,
		generator:    gen,
		learningRate: DefaultLearningRate,
		neural:       regression.DefaultNeuralConfig(),
		observer:     nopObserver{},
		tokens:       tokens.Words{},
		logger:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	if o.tokens == nil {
		o.tokens = tokens.Words{}
	}
	if o.sharedModels {
		o.shared = o.newPredictor()
	}
	return o
}

func (o *Orchestrator) newPredictor() *regression.Predictor {
	return regression.NewPredictor(o.logger, regression.WithNeuralConfig(o.neural))
}

// predictorFor returns the shared predictor or a fresh one for one session.
func (o *Orchestrator) predictorFor() *regression.Predictor {
	if o.shared != nil {
		return o.shared
	}
	return o.newPredictor()
}

// #endregion

// #region refine

// Refine runs one session: score, predict, give feedback, test convergence,
// learn, and rewrite until the prompt converges or the iteration cap is hit.
// Collaborator failures end the session with a *SessionError.
func (o *Orchestrator) Refine(ctx context.Context, req Request) (*Result, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if o.sessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.sessionTimeout)
		defer cancel()
	}

	s := &session{
		id:  uuid.New().String(),
		req: req,
	}

	var err error
	s.weights, err = o.weights.Initialize(ctx, req.FeatureWeights)
	if err != nil {
		return nil, o.fail(ctx, s, -1, "load weights", err)
	}
	history, err := o.records.AllRecords(ctx)
	if err != nil {
		return nil, o.fail(ctx, s, -1, "load history", err)
	}
	s.history = datasetOf(history)
	s.predictor = o.predictorFor()

	o.logger.Info("[ORCH] session start", "session", s.id, "method", req.RegressionMethod.String(),
		"maxIterations", req.MaxIterations, "threshold", req.ConvergenceThreshold, "history", s.history.Len())

	current := req.Prompt
	stop := StopExhausted
	for k := 0; k < req.MaxIterations; k++ {
		if err := ctx.Err(); err != nil {
			return nil, o.fail(ctx, s, k, "iteration", err)
		}
		o.observer.IterationStart(s.id, k, current)

		detail, converged, err := o.iterate(ctx, s, k, current)
		if err != nil {
			return nil, err
		}
		s.details = append(s.details, detail)
		o.observer.IterationEnd(s.id, detail)

		if converged {
			stop = StopConverged
			break
		}
		if k == req.MaxIterations-1 {
			break
		}

		next, err := o.generator.Rewrite(ctx, current, detail.QualityScore, detail.Feedback)
		if err != nil {
			return nil, o.fail(ctx, s, k, "rewrite prompt", err)
		}
		current = next
	}

	res, err := o.finish(ctx, s, stop)
	if err != nil {
		return nil, err
	}
	o.observer.SessionComplete(res)
	return res, nil
}

// #endregion

// #region iterate

// session is the in-memory state owned by one Refine call.
type session struct {
	id        string
	req       Request
	weights   map[string]float64
	history   regression.Dataset // pre-session records only
	predictor *regression.Predictor
	details   []IterationDetail
}

func (s *session) previous() (IterationDetail, bool) {
	if len(s.details) == 0 {
		return IterationDetail{}, false
	}
	return s.details[len(s.details)-1], true
}

// iterate scores prompt, persists the record, and decides whether the
// session has converged. When it has not, weights take one gradient step.
func (o *Orchestrator) iterate(ctx context.Context, s *session, k int, prompt string) (IterationDetail, bool, error) {
	vec := features.Extract(prompt)
	quality := features.Score(vec, s.weights)
	predicted := s.predictor.Predict(ctx, s.req.RegressionMethod, vec, s.history)
	feedback := features.Feedback(vec, s.weights, s.req.Goals())

	detail := IterationDetail{
		Iteration:      k,
		Prompt:         prompt,
		QualityScore:   quality,
		PredictedScore: predicted,
		Feedback:       feedback,
		Features:       vec,
	}

	rec := &store.RefinementRecord{
		SessionID:            s.id,
		Iteration:            k,
		OriginalPrompt:       s.req.Prompt,
		RefinedPrompt:        prompt,
		QualityScore:         quality,
		PredictedScore:       predicted,
		ClarityScore:         vec[features.SemanticClarity],
		RelevanceScore:       vec[features.ContextRelevance],
		SpecificityScore:     vec[features.Specificity],
		CompletenessScore:    vec[features.CompletenessScore],
		Method:               s.req.RegressionMethod.String(),
		Feedback:             feedback,
		Features:             vec,
		Goals:                s.req.OptimizationGoals,
		ConvergenceThreshold: s.req.ConvergenceThreshold,
		MaxIterations:        s.req.MaxIterations,
		PromptTokens:         o.tokens.Count(prompt),
	}
	if err := o.records.AppendRecord(ctx, rec); err != nil {
		return detail, false, o.fail(ctx, s, k, "persist record", err)
	}

	converged, reason := false, ""
	if prev, ok := s.previous(); ok {
		detail.Improvement = quality - prev.QualityScore
		if math.Abs(detail.Improvement) < DeltaTolerance {
			converged = true
			reason = fmt.Sprintf("score changed by %.4f, below %.2f", detail.Improvement, DeltaTolerance)
		}
	}
	if quality >= s.req.ConvergenceThreshold {
		converged = true
		reason = fmt.Sprintf("score %.4f reached threshold %.2f", quality, s.req.ConvergenceThreshold)
	}

	o.logger.Info("[ORCH] iteration", "session", s.id, "iteration", k,
		"quality", quality, "predicted", predicted, "converged", converged)

	if converged {
		if err := o.records.MarkConverged(ctx, s.id, k); err != nil {
			return detail, false, o.fail(ctx, s, k, "mark converged", err)
		}
		detail.Decision = logging.DecisionConverged
		o.logDecision(ctx, s, detail, reason, nil)
		return detail, true, nil
	}

	deltas, err := o.applyGradient(ctx, s.weights, vec, quality-predicted)
	if err != nil {
		return detail, false, o.fail(ctx, s, k, "update weights", err)
	}

	if k == s.req.MaxIterations-1 {
		detail.Decision = logging.DecisionExhausted
		reason = fmt.Sprintf("iteration cap %d reached", s.req.MaxIterations)
	} else {
		detail.Decision = logging.DecisionContinue
		reason = fmt.Sprintf("score %.4f below threshold %.2f", quality, s.req.ConvergenceThreshold)
	}
	o.logDecision(ctx, s, detail, reason, deltas)
	return detail, false, nil
}

// applyGradient takes one gradient-descent step on every feature of vec:
// w ← clamp(w − lr·(quality−predicted)·value). The session table and the
// persisted weights move by the same delta. Returns the deltas applied.
func (o *Orchestrator) applyGradient(ctx context.Context, table map[string]float64, vec features.Vector, errTerm float64) (map[string]float64, error) {
	deltas := make(map[string]float64, len(vec))
	for _, name := range vec.Keys() {
		current, ok := table[name]
		if !ok {
			current = features.DefaultWeight
		}
		delta := -o.learningRate * errTerm * vec[name]
		table[name] = weights.Clamp(current + delta)
		if _, err := o.weights.Adjust(ctx, name, current, delta); err != nil {
			return nil, err
		}
		deltas[name] = delta
	}
	return deltas, nil
}

// #endregion

// #region finish

// finish assembles the result and stores session metrics computed over
// every persisted record, this session's included.
func (o *Orchestrator) finish(ctx context.Context, s *session, stop StopReason) (*Result, error) {
	first := s.details[0]
	last := s.details[len(s.details)-1]

	all, err := o.records.AllRecords(ctx)
	if err != nil {
		return nil, o.fail(ctx, s, last.Iteration, "load records", err)
	}
	actual := make([]float64, len(all))
	predicted := make([]float64, len(all))
	for i, r := range all {
		actual[i] = r.QualityScore
		predicted[i] = r.PredictedScore
	}
	report := metrics.Evaluate(actual, predicted)

	method := s.req.RegressionMethod.String()
	if err := o.records.SaveMetrics(ctx, store.RegressionMetrics{
		SessionID:         s.id,
		Method:            method,
		MSE:               report.MSE,
		RMSE:              report.RMSE,
		MAE:               report.MAE,
		RSquared:          report.RSquared,
		TrainingDataSize:  report.TrainingDataSize,
		Status:            report.Status,
		FeatureImportance: s.weights,
	}); err != nil {
		return nil, o.fail(ctx, s, last.Iteration, "save metrics", err)
	}

	res := &Result{
		SessionID:             s.id,
		OriginalPrompt:        s.req.Prompt,
		RefinedPrompt:         last.Prompt,
		TotalIterations:       len(s.details),
		Converged:             stop == StopConverged,
		StopReason:            stop,
		InitialScore:          first.QualityScore,
		FinalScore:            last.QualityScore,
		ImprovementPercentage: improvementPercentage(first.QualityScore, last.QualityScore),
		Iterations:            s.details,
		RegressionResult:      RegressionResult{Method: method, Report: report},
		FinalFeatures:         last.Features,
		FinalWeights:          s.weights,
		RegressionMethod:      s.req.RegressionMethod,
	}

	o.logger.Info("[ORCH] session complete", "session", s.id, "stop", string(stop),
		"iterations", res.TotalIterations, "initial", res.InitialScore, "final", res.FinalScore,
		"metrics", report.Status)
	return res, nil
}

// #endregion

// #region failures

// fail wraps err as a SessionError and records the failure in the decision
// log on a context that outlives a cancelled session.
func (o *Orchestrator) fail(ctx context.Context, s *session, iteration int, op string, err error) error {
	serr := &SessionError{SessionID: s.id, Iteration: iteration, Op: op, Err: err}
	o.logger.Error("[ORCH] session failed", "session", s.id, "iteration", iteration, "op", op, "err", err)
	if o.decisions != nil {
		entry := logging.DecisionEntry{
			SessionID: s.id,
			Iteration: iteration,
			Decision:  logging.DecisionFailed,
			Reason:    serr.Error(),
		}
		if logErr := o.decisions.Log(context.WithoutCancel(ctx), entry); logErr != nil {
			o.logger.Warn("[ORCH] decision log failed", "session", s.id, "err", logErr)
		}
	}
	return serr
}

// logDecision is best effort: a failed write is logged, never fatal.
func (o *Orchestrator) logDecision(ctx context.Context, s *session, d IterationDetail, reason string, deltas map[string]float64) {
	if o.decisions == nil {
		return
	}
	var deltasJSON string
	if len(deltas) > 0 {
		if b, err := json.Marshal(deltas); err == nil {
			deltasJSON = string(b)
		}
	}
	err := o.decisions.Log(ctx, logging.DecisionEntry{
		SessionID:  s.id,
		Iteration:  d.Iteration,
		Decision:   d.Decision,
		Reason:     reason,
		Quality:    d.QualityScore,
		Predicted:  d.PredictedScore,
		DeltasJSON: deltasJSON,
	})
	if err != nil {
		o.logger.Warn("[ORCH] decision log failed", "session", s.id, "iteration", d.Iteration, "err", err)
	}
}

// #endregion

// #region helpers

// datasetOf turns persisted records into a training set.
func datasetOf(recs []store.RefinementRecord) regression.Dataset {
	feats := make([]features.Vector, len(recs))
	scores := make([]float64, len(recs))
	for i, r := range recs {
		feats[i] = features.Vector(r.Features)
		scores[i] = r.QualityScore
	}
	return regression.Dataset{Features: feats, Scores: scores}
}

// #endregion
