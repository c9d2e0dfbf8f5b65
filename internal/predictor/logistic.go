package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ZanzyTHEbar/startup-success-predictor/internal/features"
)

// Logistic is a linear model: p_success = sigmoid(w.x + b).
type Logistic struct {
	coefficients []float64
	intercept    float64
	info         Info
}

type logisticDocument struct {
	Envelope
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func decodeLogistic(env Envelope, data []byte) (Predictor, error) {
	var doc logisticDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return NewLogistic(doc.Coefficients, doc.Intercept, Info{Format: env.Format, Version: env.Version})
}

// NewLogistic builds a Logistic with one coefficient per schema field.
func NewLogistic(coefficients []float64, intercept float64, info Info) (*Logistic, error) {
	if len(coefficients) != features.Len() {
		return nil, fmt.Errorf("got %d coefficients, schema has %d features", len(coefficients), features.Len())
	}
	for i, c := range append([]float64{intercept}, coefficients...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("parameter %d is not finite", i)
		}
	}
	if info.Format == "" {
		info.Format = "logistic"
	}
	w := make([]float64, len(coefficients))
	copy(w, coefficients)
	return &Logistic{coefficients: w, intercept: intercept, info: info}, nil
}

// Predict scores vec once. A success probability of exactly 0.5 is class 1.
func (l *Logistic) Predict(_ context.Context, vec features.Vector) (Output, error) {
	if err := vec.Validate(); err != nil {
		return Output{}, err
	}
	z := l.intercept
	for i, w := range l.coefficients {
		z += w * vec[i]
	}
	ps := sigmoid(z)
	class := 0
	if ps >= 0.5 {
		class = 1
	}
	return Output{Class: class, Probabilities: Probabilities{Failure: 1 - ps, Success: ps}}, nil
}

func (l *Logistic) Classify(ctx context.Context, vec features.Vector) (int, error) {
	out, err := l.Predict(ctx, vec)
	return out.Class, err
}

func (l *Logistic) ClassProbabilities(ctx context.Context, vec features.Vector) (Probabilities, error) {
	out, err := l.Predict(ctx, vec)
	return out.Probabilities, err
}

func (l *Logistic) Info() Info { return l.info }
