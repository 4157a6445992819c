package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// asString renders a resolved raw value as trimmed text. Arrays of scalars
// are joined with ", "; objects yield "".
func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := asString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// asAmount parses money-like values such as 12500000, "$12,500,000" or "12.5M".
func asAmount(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		s := strings.ToUpper(strings.TrimSpace(val))
		s = strings.NewReplacer("$", "", ",", "", " ", "", "USD", "").Replace(s)
		if s == "" {
			return 0
		}
		mult := 1.0
		switch s[len(s)-1] {
		case 'K':
			mult, s = 1e3, s[:len(s)-1]
		case 'M':
			mult, s = 1e6, s[:len(s)-1]
		case 'B':
			mult, s = 1e9, s[:len(s)-1]
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f * mult
	default:
		return 0
	}
}

// asYear reads a year from numbers or from the leading four digits of
// strings like "2015-03-01".
func asYear(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case json.Number:
		n, _ := val.Int64()
		return int(n)
	case string:
		s := strings.TrimSpace(val)
		if len(s) < 4 {
			return 0
		}
		n, err := strconv.Atoi(s[:4])
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
