package orchestrator

// #region imports
import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/danielpatrickdp/prompt-refiner/internal/features"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
)

// #endregion

// #region request

// Request is one refinement call. Zero values are replaced by defaults in
// Normalize; a zero ConvergenceThreshold therefore means "use the default".
type Request struct {
	Prompt               string             `json:"prompt" validate:"nonblank" jsonschema:"required,description=Prompt to refine"`
	MaxIterations        int                `json:"maxIterations,omitempty" validate:"min=1,max=50" jsonschema:"minimum=1,maximum=50,default=5"`
	ConvergenceThreshold float64            `json:"convergenceThreshold,omitempty" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1,default=0.95"`
	RegressionMethod     regression.Method  `json:"regressionMethod,omitempty" validate:"regression_method" jsonschema:"description=Regression method used for the predicted score; ENSEMBLE when omitted"`
	OptimizationGoals    []string           `json:"optimizationGoals,omitempty"`
	FeatureWeights       map[string]float64 `json:"featureWeights,omitempty" jsonschema:"description=Weight overrides by feature name; clamped to the unit interval"`
}

// Normalize returns r with defaults applied.
func (r Request) Normalize() Request {
	if r.MaxIterations == 0 {
		r.MaxIterations = DefaultMaxIterations
	}
	if r.ConvergenceThreshold == 0 {
		r.ConvergenceThreshold = DefaultConvergenceThreshold
	}
	if r.RegressionMethod == 0 {
		r.RegressionMethod = DefaultMethod
	}
	return r
}

// Goals converts the goal tags. Unknown tags are kept; they simply produce no
// recommendation line.
func (r Request) Goals() []features.Goal {
	goals := make([]features.Goal, 0, len(r.OptimizationGoals))
	for _, g := range r.OptimizationGoals {
		goals = append(goals, features.Goal(strings.ToUpper(strings.TrimSpace(g))))
	}
	return goals
}

// #endregion

// #region validate

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(fmt.Sprintf("failed to register nonblank validator: %v", err))
	}
	if err := validate.RegisterValidation("regression_method", func(fl validator.FieldLevel) bool {
		m, ok := fl.Field().Interface().(regression.Method)
		return ok && m.Valid()
	}); err != nil {
		panic(fmt.Sprintf("failed to register regression_method validator: %v", err))
	}
}

// Validate checks a normalized request.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt cannot be empty", ErrInvalidRequest)
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		return fmt.Sprintf("%s must be between 1 and %d", fe.Field(), maxIterationsCap)
	case "gte", "lte":
		return fmt.Sprintf("%s must be between 0 and 1", fe.Field())
	case "regression_method":
		return fmt.Sprintf("%s must be one of LINEAR, POLYNOMIAL, NEURAL, ENSEMBLE", fe.Field())
	case "nonblank":
		return fmt.Sprintf("%s cannot be blank", fe.Field())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// #endregion
