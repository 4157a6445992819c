package signal

import (
	"strings"
	"unicode"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// HireCategory is the department a hiring signal points at.
type HireCategory string

const (
	CategoryEngineering HireCategory = "engineering"
	CategorySales       HireCategory = "sales"
	CategoryMarketing   HireCategory = "marketing"
	CategoryFinance     HireCategory = "finance"
	CategoryPeople      HireCategory = "people"
	CategoryOperations  HireCategory = "operations"
	CategoryDesign      HireCategory = "design"
	CategoryGeneral     HireCategory = "general"
)

// DecisionMakerTitles is the default title filter when no department can be inferred.
var DecisionMakerTitles = []string{"Founder", "CEO", "Managing Partner", "Principal", "Partner"}

// categoryKeywords is checked in order; the first category with a keyword hit wins.
var categoryKeywords = []struct {
	category HireCategory
	keywords []string
}{
	{CategoryEngineering, []string{"engineer", "engineering", "developer", "devops", "sre", "software", "platform", "backend", "frontend", "full stack", "fullstack", "data scientist", "machine learning", "cto", "architect", "qa"}},
	{CategorySales, []string{"sales", "account executive", "sdr", "bdr", "business development", "account manager", "revenue"}},
	{CategoryMarketing, []string{"marketing", "growth", "content", "seo", "brand", "demand generation", "cmo"}},
	{CategoryFinance, []string{"finance", "accountant", "accounting", "controller", "cfo", "fpa", "bookkeeper"}},
	{CategoryPeople, []string{"recruiter", "recruiting", "talent", "people", "hr", "human resources"}},
	{CategoryDesign, []string{"designer", "design", "ux", "ui"}},
	{CategoryOperations, []string{"operations", "ops", "coo", "supply chain", "logistics"}},
}

// categoryTitles lists leadership titles aligned with each department.
var categoryTitles = map[HireCategory][]string{
	CategoryEngineering: {"CTO", "VP Engineering", "Head of Engineering", "Engineering Manager", "Founder"},
	CategorySales:       {"CRO", "VP Sales", "Head of Sales", "Sales Director", "Founder"},
	CategoryMarketing:   {"CMO", "VP Marketing", "Head of Marketing", "Head of Growth", "Founder"},
	CategoryFinance:     {"CFO", "VP Finance", "Head of Finance", "Controller", "Founder"},
	CategoryPeople:      {"Head of People", "VP People", "Head of Talent", "CHRO", "Founder"},
	CategoryDesign:      {"Head of Design", "VP Design", "Design Director", "CPO", "Founder"},
	CategoryOperations:  {"COO", "VP Operations", "Head of Operations", "Founder"},
}

// CategorizeTitle infers the department of a job title. Keywords match
// whole words so "Director" never reads as "CTO".
func CategorizeTitle(title string) HireCategory {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return CategoryGeneral
	}
	padded := " " + strings.Join(words, " ") + " "
	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(padded, " "+kw+" ") {
				return ck.category
			}
		}
	}
	return CategoryGeneral
}

// TitlesFor derives the role-alignment title filter for contact lookup.
// Hiring signals map to the leadership of the hiring department so the
// waterfall does not reach the wrong team. Other signals use decision-makers.
func TitlesFor(e *types.Entity) []string {
	if e == nil || e.SignalMeta.Kind != types.SignalKindHiringRole {
		return append([]string(nil), DecisionMakerTitles...)
	}

	candidates := e.Roles
	if len(candidates) == 0 && e.Title != "" {
		candidates = []string{e.Title}
	}
	if len(candidates) == 0 {
		candidates = []string{strings.TrimPrefix(e.SignalMeta.Label, "Hiring ")}
	}

	// Majority category across the posted roles.
	counts := make(map[HireCategory]int)
	best := CategoryGeneral
	for _, role := range candidates {
		c := CategorizeTitle(role)
		if c == CategoryGeneral {
			continue
		}
		counts[c]++
		if best == CategoryGeneral || counts[c] > counts[best] {
			best = c
		}
	}

	if titles, ok := categoryTitles[best]; ok {
		return append([]string(nil), titles...)
	}
	return append([]string(nil), DecisionMakerTitles...)
}
