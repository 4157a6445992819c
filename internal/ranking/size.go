package ranking

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// ParseSize reads a representative headcount from values such as "120",
// "51-200", "11-50 employees", "10001+" or "c_00011_00050". Ranges yield
// their midpoint.
func ParseSize(value string) (float64, bool) {
	s := strings.ReplaceAll(value, ",", "")

	var groups []float64
	start := -1
	for i, r := range s + " " {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.ParseFloat(s[start:i], 64)
			if err == nil {
				groups = append(groups, n)
			}
			start = -1
		}
	}

	switch len(groups) {
	case 0:
		return 0, false
	case 1:
		return groups[0], true
	default:
		return (groups[0] + groups[1]) / 2, true
	}
}

// SizeBucket maps a headcount to its discrete bucket.
func SizeBucket(n float64) string {
	switch {
	case n < 50:
		return types.SizeBucketSmall
	case n < 200:
		return types.SizeBucketMid
	case n < 1000:
		return types.SizeBucketLarge
	default:
		return types.SizeBucketEnterprise
	}
}
