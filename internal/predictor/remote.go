package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/startup-success-predictor/internal/features"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/resilience"
	"github.com/tidwall/gjson"
)

// RemoteConfig configures a Remote scorer.
type RemoteConfig struct {
	URL     string
	Timeout time.Duration
	Breaker resilience.CircuitBreakerConfig
}

// Remote delegates scoring to an external HTTP service hosting the model.
// Each Predict is exactly one POST; failures are never retried.
type Remote struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

type remoteRequest struct {
	Features     []float64 `json:"features"`
	FeatureNames []string  `json:"feature_names"`
}

const (
	// maxErrorBody caps how much of a failed response is quoted in errors.
	maxErrorBody    = 512
	maxResponseBody = 64 << 10
)

// NewRemote creates a Remote scorer.
func NewRemote(config RemoteConfig) *Remote {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: config.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Remote{
		url: config.URL,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		breaker: resilience.NewCircuitBreaker(config.Breaker),
	}
}

// Predict posts the vector and decodes class and probabilities.
func (r *Remote) Predict(ctx context.Context, vec features.Vector) (Output, error) {
	if err := vec.Validate(); err != nil {
		return Output{}, err
	}

	var out Output
	err := r.breaker.CallContext(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.post(ctx, vec)
		return err
	})
	if err != nil {
		return Output{}, fmt.Errorf("remote scorer: %w", err)
	}
	return out, nil
}

func (r *Remote) post(ctx context.Context, vec features.Vector) (Output, error) {
	body, err := json.Marshal(remoteRequest{Features: vec, FeatureNames: features.Names()})
	if err != nil {
		return Output{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Output{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Output{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Output{}, fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(snippet))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Output{}, fmt.Errorf("failed to read response: %w", err)
	}
	return decodeRemote(data)
}

// decodeRemote reads {"prediction": int, "probabilities": [p_fail, p_success]}.
func decodeRemote(data []byte) (Output, error) {
	if !gjson.ValidBytes(data) {
		return Output{}, fmt.Errorf("failed to decode response: invalid JSON")
	}
	doc := gjson.ParseBytes(data)

	class := doc.Get("prediction")
	if class.Type != gjson.Number || class.Float() != math.Trunc(class.Float()) {
		return Output{}, fmt.Errorf("response has no integer prediction")
	}

	probs := doc.Get("probabilities").Array()
	if len(probs) != 2 {
		return Output{}, fmt.Errorf("expected 2 class probabilities, got %d", len(probs))
	}
	for i, p := range probs {
		if p.Type != gjson.Number {
			return Output{}, fmt.Errorf("class probability %d is not a number", i)
		}
	}

	return Output{
		Class: int(class.Int()),
		Probabilities: Probabilities{
			Failure: probs[0].Float(),
			Success: probs[1].Float(),
		},
	}, nil
}

// errorMessage prefers a JSON {"error": "..."} message over the raw body.
func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error"); msg.Type == gjson.String {
		return msg.String()
	}
	return string(bytes.TrimSpace(body))
}

func (r *Remote) Classify(ctx context.Context, vec features.Vector) (int, error) {
	out, err := r.Predict(ctx, vec)
	return out.Class, err
}

func (r *Remote) ClassProbabilities(ctx context.Context, vec features.Vector) (Probabilities, error) {
	out, err := r.Predict(ctx, vec)
	return out.Probabilities, err
}

func (r *Remote) Info() Info {
	return Info{Format: "remote", Source: r.url}
}

// BreakerStats exposes the circuit breaker state for health checks.
func (r *Remote) BreakerStats() map[string]interface{} {
	return r.breaker.Stats()
}

// Close releases idle connections.
func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
