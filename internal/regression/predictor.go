package regression

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/prompt-refiner/internal/features"
	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
)

// Ensemble weights before renormalization.
const (
	LinearWeight     = 0.3
	PolynomialWeight = 0.3
	NeuralWeight     = 0.4
)

// #region predictor
// Predictor dispatches a Method to its strategy and never fails: short
// histories and strategy errors yield NeutralScore.
type Predictor struct {
	linear     Linear
	polynomial Polynomial
	neural     *Neural
	ensemble   *Ensemble
	logger     logging.Logger
}

// Option configures a Predictor.
type Option func(*predictorOptions)

type predictorOptions struct {
	neural NeuralConfig
}

// WithNeuralConfig overrides the neural network configuration.
func WithNeuralConfig(cfg NeuralConfig) Option {
	return func(o *predictorOptions) { o.neural = cfg }
}

// NewPredictor builds the four strategies. The ensemble shares the neural
// instance with MethodNeural, so both see the same trained network.
func NewPredictor(logger logging.Logger, opts ...Option) *Predictor {
	o := predictorOptions{neural: DefaultNeuralConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	p := &Predictor{neural: NewNeural(o.neural), logger: logger}
	p.ensemble = NewEnsemble(
		Member{Strategy: p.linear, Weight: LinearWeight},
		Member{Strategy: p.polynomial, Weight: PolynomialWeight},
		Member{Strategy: p.neural, Weight: NeuralWeight},
	)
	return p
}

// Strategy returns the implementation for m.
func (p *Predictor) Strategy(m Method) (Strategy, error) {
	switch m {
	case MethodLinear:
		return p.linear, nil
	case MethodPolynomial:
		return p.polynomial, nil
	case MethodNeural:
		return p.neural, nil
	case MethodEnsemble:
		return p.ensemble, nil
	}
	return nil, fmt.Errorf("unknown regression method %d", int(m))
}

// Predict estimates the quality of x from data with method m. The result is
// always in [0, 1].
func (p *Predictor) Predict(ctx context.Context, m Method, x features.Vector, data Dataset) float64 {
	if data.Len() < MinSamples {
		return NeutralScore
	}
	s, err := p.Strategy(m)
	if err != nil {
		p.logger.Warn("[REGR] prediction skipped", "method", m.String(), "err", err)
		return NeutralScore
	}
	score, err := safePredict(ctx, s, x, data)
	if err != nil {
		p.logger.Warn("[REGR] prediction failed, using neutral score",
			"method", m.String(), "samples", data.Len(), "err", err)
		return NeutralScore
	}
	return clamp(score)
}

// Reset discards trained model state.
func (p *Predictor) Reset() {
	p.neural.Reset()
}
// #endregion predictor
