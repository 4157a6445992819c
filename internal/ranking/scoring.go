// Package ranking scores normalized entities against a capability profile and ranks them.
package ranking

import (
	"strings"
	"unicode"

	"github.com/saadbelcaidx/connector-os/internal/signal"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Points awarded per rule. The total is capped at maxScore.
const (
	roleWeight      = 40
	industryWeight  = 20
	sizeWeight      = 20
	painPointWeight = 20
	geoWeight       = 5

	maxScore = 100
)

// Evaluation is the itemized result of scoring one entity.
type Evaluation struct {
	Score     int
	Reasons   []string
	Breakdown types.ScoreBreakdown
}

// Score computes the fit of an entity against a profile. A nil profile
// yields zero with no reasons: the entity was not evaluated.
func Score(e *types.Entity, profile *types.CapabilityProfile) Evaluation {
	ev := Evaluation{Reasons: []string{}}
	if profile == nil || e == nil {
		return ev
	}

	if role, ok := matchRole(entityRoles(e), profile.Roles); ok {
		ev.Breakdown.Role = roleWeight
		ev.Reasons = append(ev.Reasons, "Role match: "+role)
	}
	if industry, ok := matchIndustry(e.Industry, profile.Industries); ok {
		ev.Breakdown.Industry = industryWeight
		ev.Reasons = append(ev.Reasons, "Industry match: "+industry)
	}
	if profile.SizeRange != "" {
		if n, ok := ParseSize(e.Size); ok && SizeBucket(n) == profile.SizeRange {
			ev.Breakdown.Size = sizeWeight
			ev.Reasons = append(ev.Reasons, "Size fit: "+profile.SizeRange)
		}
	}
	if pain, ok := matchPainPoint(signal.PainPoints(e.SignalMeta.Kind), profile.PainPoints); ok {
		ev.Breakdown.PainPoint = painPointWeight
		ev.Reasons = append(ev.Reasons, "Pain point match: "+pain)
	}
	if geo, ok := matchGeography(e, profile.Geographies); ok {
		ev.Breakdown.Geography = geoWeight
		ev.Reasons = append(ev.Reasons, "Geography match: "+geo)
	}

	ev.Score = min(ev.Breakdown.Total(), maxScore)
	return ev
}

// entityRoles is the role set an entity is associated with.
func entityRoles(e *types.Entity) []string {
	if len(e.Roles) > 0 {
		return e.Roles
	}
	if e.Title != "" {
		return []string{e.Title}
	}
	return nil
}

// roleAbbreviations expand common title shorthands so "CTO" and
// "Chief Technology Officer" compare equal.
var roleAbbreviations = map[string]string{
	"ceo":  "chief executive officer",
	"cto":  "chief technology officer",
	"cfo":  "chief financial officer",
	"coo":  "chief operating officer",
	"cmo":  "chief marketing officer",
	"cro":  "chief revenue officer",
	"cpo":  "chief product officer",
	"ciso": "chief information security officer",
	"vp":   "vice president",
	"svp":  "senior vice president",
	"evp":  "executive vice president",
	"sdr":  "sales development representative",
	"bdr":  "business development representative",
	"ae":   "account executive",
	"hr":   "human resources",
	"eng":  "engineering",
	"sr":   "senior",
	"jr":   "junior",
}

// normalizeRole lowercases, tokenizes and expands abbreviations, returning
// the tokens space-padded for whole-word containment checks.
func normalizeRole(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		if full, ok := roleAbbreviations[w]; ok {
			words[i] = full
		}
	}
	if len(words) == 0 {
		return ""
	}
	return " " + strings.Join(words, " ") + " "
}

// matchRole reports the first profile role contained, as whole words, in
// any entity role (or the other way round).
func matchRole(entityRoles, profileRoles []string) (string, bool) {
	for _, want := range profileRoles {
		w := normalizeRole(want)
		if w == "" {
			continue
		}
		for _, have := range entityRoles {
			h := normalizeRole(have)
			if h == "" {
				continue
			}
			if strings.Contains(h, w) || strings.Contains(w, h) {
				return strings.TrimSpace(want), true
			}
		}
	}
	return "", false
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// matchIndustry compares normalized industries. Entity values listing
// several industries ("SaaS, Fintech") match on any of them.
func matchIndustry(entityIndustry string, served []string) (string, bool) {
	if entityIndustry == "" {
		return "", false
	}
	parts := strings.FieldsFunc(entityIndustry, func(r rune) bool { return r == ',' || r == ';' })
	for _, want := range served {
		w := normalizeText(want)
		if w == "" {
			continue
		}
		for _, p := range parts {
			if normalizeText(p) == w {
				return strings.TrimSpace(want), true
			}
		}
	}
	return "", false
}

// matchPainPoint substring-matches inferred tags against the profile's
// pain points, in either direction.
func matchPainPoint(tags, solved []string) (string, bool) {
	for _, want := range solved {
		w := normalizeText(want)
		if w == "" {
			continue
		}
		for _, tag := range tags {
			if strings.Contains(w, tag) || strings.Contains(tag, w) {
				return tag, true
			}
		}
	}
	return "", false
}

func matchGeography(e *types.Entity, served []string) (string, bool) {
	candidates := []string{e.Country, e.State, e.City}
	for _, want := range served {
		w := normalizeText(want)
		if w == "" {
			continue
		}
		for _, c := range candidates {
			if c != "" && normalizeText(c) == w {
				return strings.TrimSpace(want), true
			}
		}
	}
	return "", false
}
