// Package signal assigns typed, human-meaningful signal labels to normalized entities.
package signal

import (
	"fmt"
	"math"
	"strings"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Label sources recorded in SignalMeta.Source.
const (
	SourceSchema   = "schema"
	SourceOverride = "override"
)

// Input carries the resolved fields the classifier inspects.
type Input struct {
	SignalType    types.SignalType
	Title         string
	Company       string
	FullName      string
	FundingAmount float64
	FundingType   string
	// Override is an explicit "Signal" column value. When set it wins over
	// the schema's default mapping.
	Override string
}

// Classify computes the signal for one record. The returned label is final.
func Classify(in Input) types.SignalMeta {
	title := strings.TrimSpace(in.Title)
	company := strings.TrimSpace(in.Company)
	override := strings.TrimSpace(in.Override)

	if override != "" {
		return types.SignalMeta{
			Kind:   kindFromText(override, defaultKind(in.SignalType)),
			Label:  override,
			Source: SourceOverride,
		}
	}

	switch in.SignalType {
	case types.SignalTypeHiring:
		label := "Hiring"
		if title != "" {
			label = "Hiring " + title
		}
		return types.SignalMeta{Kind: types.SignalKindHiringRole, Label: label, Source: SourceSchema}

	case types.SignalTypePerson:
		switch {
		case title != "" && company != "":
			return types.SignalMeta{Kind: types.SignalKindPersonRole, Label: title + " at " + company, Source: SourceSchema}
		case title != "":
			return types.SignalMeta{Kind: types.SignalKindPersonRole, Label: title, Source: SourceSchema}
		case company != "":
			return types.SignalMeta{Kind: types.SignalKindPersonRole, Label: "Works at " + company, Source: SourceSchema}
		}

	case types.SignalTypeCompany:
		fundingType := strings.TrimSpace(in.FundingType)
		if isAcquisition(fundingType) {
			label := "Acquired"
			if company != "" {
				label = company + " acquired"
			}
			return types.SignalMeta{Kind: types.SignalKindAcquisition, Label: label, Source: SourceSchema}
		}
		if in.FundingAmount > 0 || fundingType != "" {
			return types.SignalMeta{Kind: types.SignalKindFunding, Label: fundingLabel(fundingType, in.FundingAmount), Source: SourceSchema}
		}
		if company != "" {
			return types.SignalMeta{Kind: types.SignalKindGrowth, Label: company + " growing", Source: SourceSchema}
		}
		return types.SignalMeta{Kind: types.SignalKindGrowth, Label: "Growth signal", Source: SourceSchema}

	case types.SignalTypeContact:
		if title != "" {
			return types.SignalMeta{Kind: types.SignalKindContactRole, Label: title, Source: SourceSchema}
		}
		if company != "" {
			return types.SignalMeta{Kind: types.SignalKindContactRole, Label: "Contact at " + company, Source: SourceSchema}
		}
	}

	return types.SignalMeta{Kind: types.SignalKindUnknown, Label: "Unknown signal", Source: SourceSchema}
}

func defaultKind(t types.SignalType) types.SignalKind {
	switch t {
	case types.SignalTypeHiring:
		return types.SignalKindHiringRole
	case types.SignalTypePerson:
		return types.SignalKindPersonRole
	case types.SignalTypeCompany:
		return types.SignalKindGrowth
	case types.SignalTypeContact:
		return types.SignalKindContactRole
	default:
		return types.SignalKindUnknown
	}
}

// kindFromText infers the kind an override string asserts.
func kindFromText(text string, fallback types.SignalKind) types.SignalKind {
	lower := strings.ToLower(text)
	switch {
	case IsHiringShaped(lower):
		return types.SignalKindHiringRole
	case strings.Contains(lower, "acquired") || strings.Contains(lower, "acquisition"):
		return types.SignalKindAcquisition
	case strings.Contains(lower, "raised") || strings.Contains(lower, "funding") || strings.Contains(lower, "series "):
		return types.SignalKindFunding
	default:
		return fallback
	}
}

// IsHiringShaped reports whether a free-text signal describes open hiring.
func IsHiringShaped(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(lower, "hiring") ||
		strings.HasPrefix(lower, "now hiring") ||
		strings.Contains(lower, " is hiring")
}

func isAcquisition(fundingType string) bool {
	lower := strings.ToLower(fundingType)
	return strings.Contains(lower, "acqui") || strings.Contains(lower, "m&a")
}

func fundingLabel(fundingType string, amount float64) string {
	parts := []string{"Raised"}
	if fundingType != "" {
		parts = append(parts, humanizeRound(fundingType))
	}
	if amount > 0 {
		parts = append(parts, FormatAmount(amount))
	}
	return strings.Join(parts, " ")
}

// humanizeRound turns provider codes like "series_a" into "Series A".
func humanizeRound(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		if len(w) == 1 {
			words[i] = strings.ToUpper(w)
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// FormatAmount renders a currency amount compactly, e.g. 12500000 -> "$12.5M".
func FormatAmount(amount float64) string {
	switch {
	case amount >= 1e9:
		return "$" + trimFloat(amount/1e9) + "B"
	case amount >= 1e6:
		return "$" + trimFloat(amount/1e6) + "M"
	case amount >= 1e3:
		return "$" + trimFloat(amount/1e3) + "K"
	default:
		return fmt.Sprintf("$%.0f", amount)
	}
}

func trimFloat(v float64) string {
	v = math.Round(v*10) / 10
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
