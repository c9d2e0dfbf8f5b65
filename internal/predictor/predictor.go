package predictor

import (
	"context"
	"fmt"
	"math"

	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/features"
)

// Probabilities are the class probabilities for one vector, each in [0,1].
type Probabilities struct {
	Failure float64 `json:"failure"`
	Success float64 `json:"success"`
}

// Output is a class together with its probabilities.
type Output struct {
	Class         int           `json:"class"`
	Probabilities Probabilities `json:"probabilities"`
}

// Predictor is a loaded, read-only binary classifier. Implementations must be
// safe for concurrent use and must not change after construction.
type Predictor interface {
	Classify(ctx context.Context, vec features.Vector) (int, error)
	ClassProbabilities(ctx context.Context, vec features.Vector) (Probabilities, error)
}

// Combined is implemented by predictors that can produce class and
// probabilities in a single call.
type Combined interface {
	Predict(ctx context.Context, vec features.Vector) (Output, error)
}

// Info describes where a predictor came from.
type Info struct {
	Format  string `json:"format"`
	Version string `json:"version,omitempty"`
	Source  string `json:"source"`
	Trees   int    `json:"trees,omitempty"`
}

// Describer is implemented by predictors that can report their Info.
type Describer interface {
	Info() Info
}

// probabilityTolerance bounds how far p_failure+p_success may drift from 1.
const probabilityTolerance = 1e-6

// Run invokes p exactly once for vec: a single Predict call when p is
// Combined, otherwise one Classify and one ClassProbabilities call. Any
// failure, including malformed predictor output, is a prediction error.
func Run(ctx context.Context, p Predictor, vec features.Vector) (Output, error) {
	if err := vec.Validate(); err != nil {
		return Output{}, apperrors.NewPredictionError("prediction failed: "+err.Error(), err)
	}

	var (
		out Output
		err error
	)
	if c, ok := p.(Combined); ok {
		out, err = c.Predict(ctx, vec)
	} else {
		out, err = runPair(ctx, p, vec)
	}
	if err != nil {
		return Output{}, apperrors.NewPredictionError("prediction failed: "+err.Error(), err)
	}

	if err := checkOutput(out); err != nil {
		return Output{}, apperrors.NewPredictionError("prediction failed: "+err.Error(), err)
	}
	return out, nil
}

func runPair(ctx context.Context, p Predictor, vec features.Vector) (Output, error) {
	class, err := p.Classify(ctx, vec)
	if err != nil {
		return Output{}, err
	}
	probs, err := p.ClassProbabilities(ctx, vec)
	if err != nil {
		return Output{}, err
	}
	return Output{Class: class, Probabilities: probs}, nil
}

func checkOutput(out Output) error {
	if out.Class != 0 && out.Class != 1 {
		return fmt.Errorf("predictor returned class %d, want 0 or 1", out.Class)
	}
	pf, ps := out.Probabilities.Failure, out.Probabilities.Success
	for _, p := range []float64{pf, ps} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("predictor returned probability %v outside [0,1]", p)
		}
	}
	if math.Abs(pf+ps-1) > probabilityTolerance {
		return fmt.Errorf("predictor probabilities sum to %v, want 1", pf+ps)
	}
	return nil
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
