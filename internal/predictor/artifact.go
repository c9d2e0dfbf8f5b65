package predictor

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/features"
)

// Envelope is the header shared by every serialized model artifact.
type Envelope struct {
	Format   string   `json:"format"`
	Version  string   `json:"version"`
	Features []string `json:"features"`
}

// Decoder builds a predictor from a full artifact document.
type Decoder func(env Envelope, data []byte) (Predictor, error)

var decoders = map[string]Decoder{
	"forest":   decodeForest,
	"logistic": decodeLogistic,
}

// Formats lists the artifact formats Load understands.
func Formats() []string {
	out := make([]string, 0, len(decoders))
	for name := range decoders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Load reads and decodes the artifact at path.
func Load(path string) (Predictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.WrapError(err, "failed to read model artifact")
	}

	p, err := Parse(data, path)
	if err != nil {
		return nil, apperrors.WrapError(err, "failed to load model artifact %s", path)
	}
	return p, nil
}

// Parse decodes an artifact document. The artifact's feature list must match
// the schema exactly, names and order both.
func Parse(data []byte, source string) (Predictor, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode artifact envelope: %w", err)
	}

	decode, ok := decoders[env.Format]
	if !ok {
		return nil, fmt.Errorf("unknown artifact format %q (supported: %v)", env.Format, Formats())
	}

	if err := features.Matches(env.Features); err != nil {
		return nil, fmt.Errorf("artifact feature order does not match schema: %w", err)
	}

	p, err := decode(env, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s artifact: %w", env.Format, err)
	}

	switch m := p.(type) {
	case *Forest:
		m.info.Source = source
	case *Logistic:
		m.info.Source = source
	}
	return p, nil
}
