package prediction

import (
	"context"
	"net/url"
	"time"

	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/features"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/monitoring"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/predictor"
)

const (
	VariantForm = "form"
	VariantAPI  = "api"
)

// Result is the payload rendered by the results view. Exactly one of Error
// or the prediction fields is meaningful.
type Result struct {
	Prediction         int                `json:"prediction"`
	SuccessProbability float64            `json:"confidence_success"`
	FailureProbability float64            `json:"confidence_failure"`
	Tier               Tier               `json:"tier"`
	InputData          map[string]float64 `json:"input_data,omitempty"`
	Error              string             `json:"error,omitempty"`
}

// Failed reports whether r carries an error instead of a prediction.
func (r Result) Failed() bool { return r.Error != "" }

// APIResult is the JSON body of a successful programmatic prediction. It never
// echoes the input.
type APIResult struct {
	Prediction         int     `json:"prediction"`
	SuccessProbability float64 `json:"success_probability"`
	FailureProbability float64 `json:"failure_probability"`
}

// Service turns raw input into predictions. It holds no per-request state.
type Service struct {
	predictor predictor.Predictor
	logger    *monitoring.Logger
	metrics   *monitoring.Metrics
}

// NewService creates a Service. A nil logger or metrics disables that concern.
func NewService(p predictor.Predictor, logger *monitoring.Logger, metrics *monitoring.Metrics) *Service {
	if logger == nil {
		logger = monitoring.NopLogger()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &Service{predictor: p, logger: logger, metrics: metrics}
}

// Predictor returns the underlying predictor.
func (s *Service) Predictor() predictor.Predictor { return s.predictor }

// PredictForm scores a form submission. Failures come back as an
// error-carrying Result rather than an error.
func (s *Service) PredictForm(ctx context.Context, form url.Values) Result {
	start := time.Now()
	raw := features.FromForm(form)

	vec, out, err := s.run(ctx, raw)
	if err != nil {
		s.fail(ctx, VariantForm, err)
		return Result{Error: apperrors.ToAppError(err).Message()}
	}

	successPct := out.Probabilities.Success * 100
	tier := ClassifyTier(successPct)

	result := Result{
		Prediction:         out.Class,
		SuccessProbability: round2(successPct),
		FailureProbability: round2(out.Probabilities.Failure * 100),
		Tier:               tier,
		InputData:          vec.Map(),
	}

	s.done(ctx, VariantForm, len(raw), out.Class, result.SuccessProbability, tier.Label, time.Since(start))
	return result
}

// PredictAPI scores a decoded JSON object.
func (s *Service) PredictAPI(ctx context.Context, body map[string]any) (APIResult, error) {
	start := time.Now()
	raw := features.FromJSON(body)

	_, out, err := s.run(ctx, raw)
	if err != nil {
		s.fail(ctx, VariantAPI, err)
		return APIResult{}, err
	}

	result := APIResult{
		Prediction:         out.Class,
		SuccessProbability: round2(out.Probabilities.Success * 100),
		FailureProbability: round2(out.Probabilities.Failure * 100),
	}

	s.done(ctx, VariantAPI, len(raw), out.Class, result.SuccessProbability, "", time.Since(start))
	return result, nil
}

func (s *Service) run(ctx context.Context, raw features.RawInput) (features.Vector, predictor.Output, error) {
	vec, err := features.Build(raw)
	if err != nil {
		return nil, predictor.Output{}, err
	}
	out, err := predictor.Run(ctx, s.predictor, vec)
	if err != nil {
		return nil, predictor.Output{}, err
	}
	return vec, out, nil
}

func (s *Service) fail(ctx context.Context, variant string, err error) {
	category := string(apperrors.KindOf(err))
	s.metrics.RecordPredictionFailure(category)
	s.logger.PredictionFailureLogger(ctx, variant, category, err)
}

func (s *Service) done(ctx context.Context, variant string, provided, class int, successPct float64, tier string, elapsed time.Duration) {
	s.metrics.RecordPrediction(variant, class, tier, elapsed)
	s.logger.PredictionLogger(ctx, variant, provided, class, successPct, tier, elapsed)
}
