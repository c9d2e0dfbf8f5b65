package features

import (
	"encoding/json"
	"net/url"
	"testing"

	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaOrder(t *testing.T) {
	n := Names()

	require.Len(t, n, 76)
	assert.Equal(t, "age_first_funding_year", n[0])
	assert.Equal(t, "funding_rounds", n[4])
	assert.Equal(t, "milestones", n[6])
	assert.Equal(t, "tier_relationships", n[35])
	assert.Equal(t, "category_web", n[52])
	assert.Equal(t, "founded_year_1984", n[53])
	assert.Equal(t, "founded_year_1992", n[56])
	assert.Equal(t, "founded_year_1995", n[57])
	assert.Equal(t, "founded_year_2013", n[75])
	assert.Equal(t, Len(), len(n))
}

func TestSchemaNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, name := range Names() {
		assert.False(t, seen[name], "duplicate feature %s", name)
		seen[name] = true
	}
}

func TestNamesReturnsCopy(t *testing.T) {
	n := Names()
	n[0] = "mutated"
	assert.Equal(t, "age_first_funding_year", Names()[0])
}

func TestGroupedPreservesEveryField(t *testing.T) {
	total := 0
	for _, g := range Grouped() {
		assert.NotEmpty(t, g.Fields)
		for _, f := range g.Fields {
			assert.Equal(t, g.Group, f.Group)
		}
		total += len(g.Fields)
	}
	assert.Equal(t, Len(), total)
}

func TestMatches(t *testing.T) {
	assert.NoError(t, Matches(Names()))

	short := Names()[:10]
	assert.Error(t, Matches(short))

	swapped := Names()
	swapped[4], swapped[6] = swapped[6], swapped[4]
	err := Matches(swapped)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature 4")
}

func TestBuildEmptyInputIsZeroVector(t *testing.T) {
	vec, err := Build(RawInput{})
	require.NoError(t, err)
	require.Len(t, vec, Len())
	for i, v := range vec {
		assert.Zero(t, v, "position %d", i)
	}
}

func TestBuildValues(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected float64
	}{
		{"integer string", "2", 2},
		{"decimal string", "1250000.75", 1250000.75},
		{"negative string", "-3.5", -3.5},
		{"scientific string", "1e6", 1e6},
		{"padded string", "  4 ", 4},
		{"empty string", "", 0},
		{"nil", nil, 0},
		{"json float", 7.25, 7.25},
		{"json number", json.Number("12"), 12},
		{"int", 3, 3},
		{"true", true, 1},
		{"false", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec, err := Build(RawInput{"funding_total_usd": tt.value})
			require.NoError(t, err)
			got, ok := vec.Get("funding_total_usd")
			require.True(t, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBuildRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"letters", "abc"},
		{"trailing garbage", "12abc"},
		{"whitespace only", "   "},
		{"tab and spaces", "  \t "},
		{"hex float", "0x1p4"},
		{"signed hex", "-0X10"},
		{"digit separators", "1_000"},
		{"nan", "NaN"},
		{"inf", "Inf"},
		{"array", []any{1.0}},
		{"object", map[string]any{"a": 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec, err := Build(RawInput{"funding_rounds": tt.value})
			require.Error(t, err)
			assert.Nil(t, vec)
			assert.True(t, apperrors.IsValidation(err))

			appErr := apperrors.ToAppError(err)
			assert.Equal(t, "funding_rounds", appErr.Field)
		})
	}
}

func TestBuildIgnoresUnknownKeys(t *testing.T) {
	vec, err := Build(RawInput{"not_a_feature": "abc", "milestones": "1"})
	require.NoError(t, err)
	v, _ := vec.Get("milestones")
	assert.Equal(t, 1.0, v)
}

func TestFromFormScenario(t *testing.T) {
	form := url.Values{}
	for _, name := range Names() {
		form.Set(name, "0")
	}
	form.Set("funding_rounds", "2")
	form.Set("milestones", "1")

	vec, err := Build(FromForm(form))
	require.NoError(t, err)
	require.NoError(t, vec.Validate())

	for i, name := range Names() {
		switch name {
		case "funding_rounds":
			assert.Equal(t, 2.0, vec[i])
		case "milestones":
			assert.Equal(t, 1.0, vec[i])
		default:
			assert.Zero(t, vec[i], name)
		}
	}
}

func TestFromFormFirstValueWins(t *testing.T) {
	raw := FromForm(url.Values{"milestones": {"3", "9"}})
	assert.Equal(t, "3", raw["milestones"])
}

func TestVectorMapAndValidate(t *testing.T) {
	vec, err := Build(RawInput{"has_VC": "1"})
	require.NoError(t, err)

	m := vec.Map()
	assert.Len(t, m, Len())
	assert.Equal(t, 1.0, m["has_VC"])

	assert.Error(t, Vector{1, 2}.Validate())
}
