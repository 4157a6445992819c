package ranking

import (
	"fmt"
	"sort"

	"github.com/saadbelcaidx/connector-os/internal/signal"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// QualityFunc returns the opaque signal-quality figure the ranker sorts by
// first. Higher is better.
type QualityFunc func(e *types.Entity) float64

// DefaultQuality reads the quality supplied upstream on the entity.
func DefaultQuality(e *types.Entity) float64 {
	return e.SignalQuality
}

// Options controls a ranking pass.
type Options struct {
	// Threshold drops results scoring below it. Zero keeps everything.
	Threshold int
	// Quality is the primary sort key. Nil means DefaultQuality.
	Quality QualityFunc
	// Strength overrides the dataset strength computed from the entities.
	Strength *int
}

// WindowStatus classifies an aggregate signal strength. It holds no state;
// the tier is recomputed from the current strength on every call.
func WindowStatus(strength int) types.WindowStatus {
	switch {
	case strength >= 60:
		return types.WindowOpen
	case strength >= 30:
		return types.WindowWatch
	case strength >= 10:
		return types.WindowBuilding
	default:
		return types.WindowEarly
	}
}

// Rank filters results by threshold and sorts them by quality, then score,
// then per-entity signal strength, all descending. The sort is stable so
// ties keep input order.
func Rank(results []types.MatchResult, opts Options) []types.MatchResult {
	quality := opts.Quality
	if quality == nil {
		quality = DefaultQuality
	}

	kept := make([]types.MatchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= opts.Threshold {
			kept = append(kept, r)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		qi, qj := quality(&kept[i].Entity), quality(&kept[j].Entity)
		if qi != qj {
			return qi > qj
		}
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].SignalStrength > kept[j].SignalStrength
	})
	return kept
}

// RankEntities scores every entity against the profile, ranks the results
// and attaches deal estimates. The window status comes from the dataset
// strength; deal estimates use each entity's own strength.
func RankEntities(entities []types.Entity, profile *types.CapabilityProfile, opts Options) (*types.MatchResults, error) {
	if opts.Threshold < 0 || opts.Threshold > maxScore {
		return nil, fmt.Errorf("threshold must be between 0 and %d, got %d", maxScore, opts.Threshold)
	}

	strength := signal.Strength(signal.CollectStats(entities))
	if opts.Strength != nil {
		strength = *opts.Strength
	}
	if strength < 0 || strength > 100 {
		return nil, fmt.Errorf("signal strength must be between 0 and 100, got %d", strength)
	}
	status := WindowStatus(strength)

	results := make([]types.MatchResult, 0, len(entities))
	for _, e := range entities {
		ev := Score(&e, profile)
		results = append(results, types.MatchResult{
			Entity:         e,
			Score:          ev.Score,
			Reasons:        ev.Reasons,
			Breakdown:      ev.Breakdown,
			SignalStrength: signal.EntityStrength(&e),
		})
	}

	ranked := Rank(results, opts)
	for i := range ranked {
		r := &ranked[i]
		r.WindowStatus = status
		r.DealValueEstimate, r.ProbabilityOfClose = EstimateDeal(r.Entity.Size, r.Score, r.SignalStrength, status)
	}

	out := &types.MatchResults{
		SignalStrength: strength,
		WindowStatus:   status,
		Results:        ranked,
	}
	if len(entities) > 0 {
		out.SchemaID = entities[0].SchemaID
	}
	return out, nil
}
