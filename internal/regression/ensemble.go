package regression

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/prompt-refiner/internal/features"
	"golang.org/x/sync/errgroup"
)

// #region member
// Member is a weighted ensemble participant.
type Member struct {
	Strategy Strategy
	Weight   float64
}
// #endregion member

// #region ensemble
// Ensemble averages its members' predictions by weight. Members that fail are
// left out and the weights renormalized over the ones that succeeded.
type Ensemble struct {
	members []Member
}

// NewEnsemble combines members. Members run concurrently on each Predict.
func NewEnsemble(members ...Member) *Ensemble {
	return &Ensemble{members: members}
}

func (e *Ensemble) Method() Method { return MethodEnsemble }

func (e *Ensemble) Predict(ctx context.Context, x features.Vector, data Dataset) (float64, error) {
	preds := make([]float64, len(e.members))
	errs := make([]error, len(e.members))

	var g errgroup.Group
	for i, m := range e.members {
		g.Go(func() error {
			preds[i], errs[i] = safePredict(ctx, m.Strategy, x, data)
			return nil
		})
	}
	_ = g.Wait()

	var sum, total float64
	for i, m := range e.members {
		if errs[i] != nil {
			continue
		}
		sum += preds[i] * m.Weight
		total += m.Weight
	}
	if total <= 0 {
		return 0, ErrAllFailed
	}
	return sum / total, nil
}

// #endregion ensemble

// #region safe-predict
// safePredict runs s and converts a panic into an error.
func safePredict(ctx context.Context, s Strategy, x features.Vector, data Dataset) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("regression: %s panicked: %v", s.Method(), r)
		}
	}()
	return s.Predict(ctx, x, data)
}
// #endregion safe-predict
