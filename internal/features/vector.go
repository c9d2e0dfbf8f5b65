package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
)

// RawInput maps feature names to submitted values. Values may be strings,
// JSON numbers, booleans or nil.
type RawInput map[string]any

// Vector holds one value per schema field, in schema order.
type Vector []float64

// FromForm adapts form fields into RawInput. The first value of a repeated
// key wins.
func FromForm(values url.Values) RawInput {
	raw := make(RawInput, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			raw[key] = vals[0]
		}
	}
	return raw
}

// FromJSON adapts a decoded JSON object into RawInput.
func FromJSON(body map[string]any) RawInput {
	return RawInput(body)
}

// Build assembles the feature vector. Absent and empty values become 0;
// anything present that is not a finite number fails validation.
func Build(raw RawInput) (Vector, error) {
	vec := make(Vector, len(schema))
	for i, f := range schema {
		v, err := coerce(f.Name, raw[f.Name])
		if err != nil {
			return nil, err
		}
		vec[i] = v
	}
	return vec, nil
}

func coerce(name string, value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case string:
		return parseString(name, v)
	case json.Number:
		return parseString(name, v.String())
	case float64:
		return finite(name, v, v)
	case float32:
		return finite(name, float64(v), v)
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, apperrors.NewFieldError(name, fmt.Sprintf("%v", v), fmt.Errorf("unsupported type %T", v))
	}
}

// parseString accepts decimal numbers with optional surrounding whitespace.
// Only the exact empty string counts as unset.
func parseString(name, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, apperrors.NewFieldError(name, s, errors.New("blank value"))
	}
	if hasHexPrefix(trimmed) {
		return 0, apperrors.NewFieldError(name, s, errors.New("hexadecimal values are not accepted"))
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, apperrors.NewFieldError(name, s, err)
	}
	return finite(name, f, s)
}

func hasHexPrefix(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func finite(name string, f float64, original any) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperrors.NewFieldError(name, fmt.Sprintf("%v", original), fmt.Errorf("value is not finite"))
	}
	return f, nil
}

// Map echoes the vector keyed by feature name.
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, len(v))
	for i, f := range schema {
		if i < len(v) {
			out[f.Name] = v[i]
		}
	}
	return out
}

// Get returns the value for name.
func (v Vector) Get(name string) (float64, bool) {
	i, ok := index[name]
	if !ok || i >= len(v) {
		return 0, false
	}
	return v[i], true
}

// Validate checks the vector has exactly one entry per schema field.
func (v Vector) Validate() error {
	if len(v) != len(schema) {
		return fmt.Errorf("feature vector has %d entries, schema has %d", len(v), len(schema))
	}
	return nil
}
