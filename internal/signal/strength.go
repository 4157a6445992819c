package signal

import (
	"math"
	"strconv"
	"strings"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Stats are the dataset-wide figures signal strength is computed from.
type Stats struct {
	RoleCount    int     `json:"role_count"`
	CompanyCount int     `json:"company_count"`
	FundingTotal float64 `json:"funding_total"`
	LayoffsCount int     `json:"layoffs_count"`
}

// Strength weights and saturation scales. Each component is compressed to
// [0,1) with 1-exp(-x/scale) before weighting.
const (
	roleWeight    = 0.35
	companyWeight = 0.25
	fundingWeight = 0.30
	layoffsWeight = 0.10

	roleScale    = 20.0
	companyScale = 5.0
	fundingScale = 25_000_000.0
	layoffsScale = 5.0
)

// Strength compresses the dataset statistics into a bounded 0-100 figure.
func Strength(s Stats) int {
	total := roleWeight*saturate(float64(s.RoleCount), roleScale) +
		companyWeight*saturate(float64(s.CompanyCount), companyScale) +
		fundingWeight*saturate(s.FundingTotal, fundingScale) +
		layoffsWeight*saturate(float64(s.LayoffsCount), layoffsScale)

	v := int(math.Round(total * 100))
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func saturate(x, scale float64) float64 {
	if x <= 0 || scale <= 0 {
		return 0
	}
	return 1 - math.Exp(-x/scale)
}

// layoffKeys are raw fields some funding and company datasets use for layoffs.
var layoffKeys = []string{"layoffs", "laid_off", "layoffs_count", "Layoffs"}

// CollectStats derives dataset statistics from normalized entities.
func CollectStats(entities []types.Entity) Stats {
	var s Stats
	companies := make(map[string]struct{})
	for i := range entities {
		e := &entities[i]
		if len(e.Roles) > 0 {
			s.RoleCount += len(e.Roles)
		} else if e.Title != "" {
			s.RoleCount++
		}
		if key := companyKey(e); key != "" {
			companies[key] = struct{}{}
		}
		s.FundingTotal += e.FundingAmount
		s.LayoffsCount += layoffs(e.Raw)
	}
	s.CompanyCount = len(companies)
	return s
}

// EntityStrength is the strength of a single entity's own signal.
func EntityStrength(e *types.Entity) int {
	return Strength(CollectStats([]types.Entity{*e}))
}

func companyKey(e *types.Entity) string {
	if e.Domain != "" {
		return e.Domain
	}
	return strings.ToLower(strings.TrimSpace(e.Company))
}

func layoffs(raw types.RawRecord) int {
	for _, k := range layoffKeys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return parsed
			}
		}
	}
	return 0
}
