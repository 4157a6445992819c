// Package types provides type definitions for structured data used throughout the connector pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

// ScoreBreakdown keeps the numeric contribution of each scoring rule.
type ScoreBreakdown struct {
	Role      int `json:"role"`
	Industry  int `json:"industry"`
	Size      int `json:"size"`
	PainPoint int `json:"pain_point"`
	Geography int `json:"geography"`
}

// Total returns the uncapped sum of all contributions.
func (b ScoreBreakdown) Total() int {
	return b.Role + b.Industry + b.Size + b.PainPoint + b.Geography
}

// MatchResult is one scored entity. It is recomputed in full on every pass.
type MatchResult struct {
	Entity             Entity         `json:"entity"`
	Score              int            `json:"score"`
	Reasons            []string       `json:"reasons"`
	Breakdown          ScoreBreakdown `json:"breakdown"`
	SignalStrength     int            `json:"signal_strength"`
	DealValueEstimate  int            `json:"deal_value_estimate"`
	ProbabilityOfClose int            `json:"probability_of_close"`
	WindowStatus       WindowStatus   `json:"window_status"`
}

// MatchResults is the serialized output of a scoring pass.
type MatchResults struct {
	SchemaID       string        `json:"schema_id"`
	SignalStrength int           `json:"signal_strength"`
	WindowStatus   WindowStatus  `json:"window_status"`
	Results        []MatchResult `json:"results"`
}
