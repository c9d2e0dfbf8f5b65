package prediction

import (
	"math"

	"github.com/shopspring/decimal"
)

// Tier is the human-readable band for a success percentage.
type Tier struct {
	Label string `json:"label"`
	Style string `json:"style"`
}

var (
	TierHigh     = Tier{Label: "Highly Likely to Succeed", Style: "high-success"}
	TierMedium   = Tier{Label: "Likely to Succeed", Style: "medium-success"}
	TierModerate = Tier{Label: "Moderate Chance", Style: "moderate-success"}
	TierLow      = Tier{Label: "Low Success Probability", Style: "low-success"}
)

// Tiers lists every tier from highest to lowest.
func Tiers() []Tier {
	return []Tier{TierHigh, TierMedium, TierModerate, TierLow}
}

// ClassifyTier maps a success percentage in [0,100] to its tier. Lower bounds
// are inclusive; NaN falls through to the lowest tier.
func ClassifyTier(successPct float64) Tier {
	switch {
	case successPct >= 80:
		return TierHigh
	case successPct >= 60:
		return TierMedium
	case successPct >= 40:
		return TierModerate
	default:
		return TierLow
	}
}

// round2 rounds the decimal form of v half away from zero to two places, so
// 1.005 becomes 1.01 rather than the binary-float 1.00.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}
