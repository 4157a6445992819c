package ranking

import (
	"math"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// sizeBase is the base deal value for a company headcount.
func sizeBase(headcount float64) float64 {
	switch {
	case headcount < 50:
		return 5000
	case headcount < 200:
		return 15000
	case headcount < 1000:
		return 50000
	default:
		return 100000
	}
}

// windowBoost scales close probability by window tier.
func windowBoost(status types.WindowStatus) float64 {
	switch status {
	case types.WindowEarly:
		return 0.6
	case types.WindowBuilding:
		return 0.75
	case types.WindowWatch:
		return 0.85
	case types.WindowOpen:
		return 1.0
	default:
		return 0.5
	}
}

// EstimateDeal derives the deal value and the close probability for one
// scored entity. Unknown sizes fall into the smallest tier.
func EstimateDeal(size string, score, strength int, status types.WindowStatus) (value, probability int) {
	headcount, _ := ParseSize(size)
	combined := float64(score + strength)

	factor := math.Max(0.3, combined/200)
	value = int(math.Round(sizeBase(headcount) * factor))
	probability = int(math.Round((combined / 2) * windowBoost(status)))
	return value, probability
}
