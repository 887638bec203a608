package regression

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"github.com/danielpatrickdp/prompt-refiner/internal/features"
)

// #region neural-config
// NeuralConfig sets the network shape and training schedule.
type NeuralConfig struct {
	Hidden1      int
	Hidden2      int
	Epochs       int     // full-batch Adam steps per Predict call
	LearningRate float64 // Adam step size
	Seed         int64
}

// DefaultNeuralConfig returns the 17→32→16→1 network trained for 100 epochs.
func DefaultNeuralConfig() NeuralConfig {
	return NeuralConfig{
		Hidden1:      32,
		Hidden2:      16,
		Epochs:       100,
		LearningRate: 0.001,
		Seed:         123,
	}
}
// #endregion neural-config

// #region neural
// Neural is a feed-forward regressor over the canonical feature catalog:
// two ReLU hidden layers and a sigmoid output, trained on squared error with
// Adam. The network persists across calls and is retrained on the full
// dataset each call; training is serialized by mu. Reset discards it.
type Neural struct {
	mu  sync.Mutex
	cfg NeuralConfig
	net *network
}

// NewNeural creates an untrained Neural strategy.
func NewNeural(cfg NeuralConfig) *Neural {
	return &Neural{cfg: cfg}
}

func (n *Neural) Method() Method { return MethodNeural }

// Reset drops the trained network; the next Predict starts from fresh
// weights.
func (n *Neural) Reset() {
	n.mu.Lock()
	n.net = nil
	n.mu.Unlock()
}

func (n *Neural) Predict(ctx context.Context, x features.Vector, data Dataset) (float64, error) {
	if data.Len() < MinSamples {
		return 0, ErrInsufficientData
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.net == nil {
		n.net = newNetwork(len(features.Catalog), n.cfg)
	}

	count := data.Len()
	inputs := make([][]float64, count)
	for i := 0; i < count; i++ {
		inputs[i] = inputVector(data.Features[i])
	}
	targets := data.Scores[:count]

	for epoch := 0; epoch < n.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n.net.step(inputs, targets, n.cfg.LearningRate)
	}

	out := n.net.forward(inputVector(x)).output
	if math.IsNaN(out) || math.IsInf(out, 0) {
		n.net = nil
		return 0, errors.New("regression: neural output is not finite")
	}
	return clamp(out), nil
}

// inputVector lays v out in catalog order; absent features are 0.
func inputVector(v features.Vector) []float64 {
	in := make([]float64, len(features.Catalog))
	for i, name := range features.Catalog {
		in[i] = v[name]
	}
	return in
}
// #endregion neural

// #region network
type activation int

const (
	actReLU activation = iota
	actSigmoid
)

// layer is a dense layer with Adam moment buffers.
type layer struct {
	in, out int
	w       [][]float64 // out × in
	b       []float64
	act     activation

	mw, vw [][]float64
	mb, vb []float64
}

type network struct {
	layers []*layer
	t      int // Adam step counter
}

func newNetwork(inputs int, cfg NeuralConfig) *network {
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &network{layers: []*layer{
		newLayer(rng, inputs, cfg.Hidden1, actReLU),
		newLayer(rng, cfg.Hidden1, cfg.Hidden2, actReLU),
		newLayer(rng, cfg.Hidden2, 1, actSigmoid),
	}}
}

// newLayer uses Xavier initialization: N(0, 2/(in+out)), zero biases.
func newLayer(rng *rand.Rand, in, out int, act activation) *layer {
	std := math.Sqrt(2.0 / float64(in+out))
	l := &layer{
		in: in, out: out, act: act,
		w: matrix(out, in), mw: matrix(out, in), vw: matrix(out, in),
		b: make([]float64, out), mb: make([]float64, out), vb: make([]float64, out),
	}
	for i := range l.w {
		for j := range l.w[i] {
			l.w[i][j] = rng.NormFloat64() * std
		}
	}
	return l
}

func matrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// pass holds per-layer pre-activations and activations for backprop.
type pass struct {
	acts   [][]float64 // acts[0] is the input
	pre    [][]float64
	output float64
}

func (nw *network) forward(x []float64) pass {
	p := pass{acts: [][]float64{x}}
	cur := x
	for _, l := range nw.layers {
		z := make([]float64, l.out)
		a := make([]float64, l.out)
		for i := 0; i < l.out; i++ {
			s := l.b[i]
			for j, v := range cur {
				s += l.w[i][j] * v
			}
			z[i] = s
			a[i] = activate(l.act, s)
		}
		p.pre = append(p.pre, z)
		p.acts = append(p.acts, a)
		cur = a
	}
	p.output = cur[0]
	return p
}

// step runs one full-batch gradient step of mean squared error with Adam.
func (nw *network) step(inputs [][]float64, targets []float64, lr float64) {
	gw := make([][][]float64, len(nw.layers))
	gb := make([][]float64, len(nw.layers))
	for li, l := range nw.layers {
		gw[li] = matrix(l.out, l.in)
		gb[li] = make([]float64, l.out)
	}

	scale := 2.0 / float64(len(inputs))
	for s, x := range inputs {
		p := nw.forward(x)
		delta := []float64{scale * (p.output - targets[s])}

		for li := len(nw.layers) - 1; li >= 0; li-- {
			l := nw.layers[li]
			for i := 0; i < l.out; i++ {
				delta[i] *= derivative(l.act, p.pre[li][i], p.acts[li+1][i])
			}
			prev := p.acts[li]
			for i := 0; i < l.out; i++ {
				gb[li][i] += delta[i]
				for j := 0; j < l.in; j++ {
					gw[li][i][j] += delta[i] * prev[j]
				}
			}
			if li == 0 {
				break
			}
			back := make([]float64, l.in)
			for j := 0; j < l.in; j++ {
				var sum float64
				for i := 0; i < l.out; i++ {
					sum += l.w[i][j] * delta[i]
				}
				back[j] = sum
			}
			delta = back
		}
	}

	nw.t++
	const beta1, beta2, eps = 0.9, 0.999, 1e-8
	c1 := 1 - math.Pow(beta1, float64(nw.t))
	c2 := 1 - math.Pow(beta2, float64(nw.t))
	adam := func(param, m, v *float64, g float64) {
		*m = beta1*(*m) + (1-beta1)*g
		*v = beta2*(*v) + (1-beta2)*g*g
		*param -= lr * (*m / c1) / (math.Sqrt(*v/c2) + eps)
	}
	for li, l := range nw.layers {
		for i := 0; i < l.out; i++ {
			adam(&l.b[i], &l.mb[i], &l.vb[i], gb[li][i])
			for j := 0; j < l.in; j++ {
				adam(&l.w[i][j], &l.mw[i][j], &l.vw[i][j], gw[li][i][j])
			}
		}
	}
}

func activate(act activation, z float64) float64 {
	if act == actSigmoid {
		return 1 / (1 + math.Exp(-z))
	}
	return math.Max(0, z)
}

// derivative is d(act)/dz, given the pre-activation z and output a.
func derivative(act activation, z, a float64) float64 {
	if act == actSigmoid {
		return a * (1 - a)
	}
	if z > 0 {
		return 1
	}
	return 0
}
// #endregion network
