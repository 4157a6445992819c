package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantKind  types.SignalKind
		wantLabel string
	}{
		{
			name:      "hiring role",
			in:        Input{SignalType: types.SignalTypeHiring, Title: "Senior Engineer", Company: "Acme"},
			wantKind:  types.SignalKindHiringRole,
			wantLabel: "Hiring Senior Engineer",
		},
		{
			name:      "hiring without title",
			in:        Input{SignalType: types.SignalTypeHiring, Company: "Acme"},
			wantKind:  types.SignalKindHiringRole,
			wantLabel: "Hiring",
		},
		{
			name:      "person role",
			in:        Input{SignalType: types.SignalTypePerson, Title: "CTO", Company: "Stripe"},
			wantKind:  types.SignalKindPersonRole,
			wantLabel: "CTO at Stripe",
		},
		{
			name:      "company with funding",
			in:        Input{SignalType: types.SignalTypeCompany, Company: "Initech", FundingType: "series_a", FundingAmount: 12_500_000},
			wantKind:  types.SignalKindFunding,
			wantLabel: "Raised Series A $12.5M",
		},
		{
			name:      "company with funding amount only",
			in:        Input{SignalType: types.SignalTypeCompany, Company: "Initech", FundingAmount: 3_000_000},
			wantKind:  types.SignalKindFunding,
			wantLabel: "Raised $3M",
		},
		{
			name:      "company acquisition",
			in:        Input{SignalType: types.SignalTypeCompany, Company: "Initech", FundingType: "acquisition"},
			wantKind:  types.SignalKindAcquisition,
			wantLabel: "Initech acquired",
		},
		{
			name:      "company falls back to growth",
			in:        Input{SignalType: types.SignalTypeCompany, Company: "Initech"},
			wantKind:  types.SignalKindGrowth,
			wantLabel: "Initech growing",
		},
		{
			name:      "contact uses own title",
			in:        Input{SignalType: types.SignalTypeContact, Title: "Head of Sales", Company: "Globex"},
			wantKind:  types.SignalKindContactRole,
			wantLabel: "Head of Sales",
		},
		{
			name:      "contact with hiring-shaped override",
			in:        Input{SignalType: types.SignalTypeContact, Title: "Head of Sales", Override: "Hiring 3 SDRs"},
			wantKind:  types.SignalKindHiringRole,
			wantLabel: "Hiring 3 SDRs",
		},
		{
			name:      "override beats schema mapping",
			in:        Input{SignalType: types.SignalTypeHiring, Title: "Engineer", Override: "Raised Series B"},
			wantKind:  types.SignalKindFunding,
			wantLabel: "Raised Series B",
		},
		{
			name:      "unknown signal type",
			in:        Input{SignalType: "other", Title: "x"},
			wantKind:  types.SignalKindUnknown,
			wantLabel: "Unknown signal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantLabel, got.Label)
		})
	}
}

func TestClassify_OverrideSource(t *testing.T) {
	got := Classify(Input{SignalType: types.SignalTypeContact, Override: "Opening Austin office"})
	assert.Equal(t, SourceOverride, got.Source)
	assert.Equal(t, types.SignalKindContactRole, got.Kind)
	assert.Equal(t, "Opening Austin office", got.Label)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$2B", FormatAmount(2e9))
	assert.Equal(t, "$12.5M", FormatAmount(12_500_000))
	assert.Equal(t, "$750K", FormatAmount(750_000))
	assert.Equal(t, "$900", FormatAmount(900))
}

func TestPainPoints(t *testing.T) {
	assert.Equal(t,
		[]string{"hiring bottlenecks", "team velocity", "ops scaling", "delivery pressure"},
		PainPoints(types.SignalKindHiringRole))
	assert.Empty(t, PainPoints(types.SignalKindUnknown))
}

func TestCategorizeTitle(t *testing.T) {
	tests := map[string]HireCategory{
		"Senior Software Engineer": CategoryEngineering,
		"Staff SRE":                CategoryEngineering,
		"Account Executive":        CategorySales,
		"Sales Director":           CategorySales,
		"Head of Growth Marketing": CategoryMarketing,
		"Financial Controller":     CategoryFinance,
		"Technical Recruiter":      CategoryPeople,
		"Product Designer":         CategoryDesign,
		"Operations Manager":       CategoryOperations,
		"Office Manager":           CategoryGeneral,
		"":                         CategoryGeneral,
	}
	for title, want := range tests {
		t.Run(title, func(t *testing.T) {
			assert.Equal(t, want, CategorizeTitle(title))
		})
	}
}

func TestTitlesFor(t *testing.T) {
	eng := &types.Entity{
		Roles:      []string{"Backend Engineer", "Frontend Developer", "Account Executive"},
		SignalMeta: types.SignalMeta{Kind: types.SignalKindHiringRole, Label: "Hiring Backend Engineer"},
	}
	assert.Contains(t, TitlesFor(eng), "VP Engineering")
	assert.NotContains(t, TitlesFor(eng), "VP Sales")

	person := &types.Entity{SignalMeta: types.SignalMeta{Kind: types.SignalKindPersonRole}}
	assert.Equal(t, DecisionMakerTitles, TitlesFor(person))

	vague := &types.Entity{
		Title:      "Office Manager",
		SignalMeta: types.SignalMeta{Kind: types.SignalKindHiringRole, Label: "Hiring Office Manager"},
	}
	assert.Equal(t, DecisionMakerTitles, TitlesFor(vague))

	assert.Equal(t, DecisionMakerTitles, TitlesFor(nil))
}

func TestStrength(t *testing.T) {
	assert.Equal(t, 0, Strength(Stats{}))

	huge := Strength(Stats{RoleCount: 10_000, CompanyCount: 10_000, FundingTotal: 1e12, LayoffsCount: 10_000})
	assert.Equal(t, 100, huge)

	small := Strength(Stats{RoleCount: 2, CompanyCount: 1})
	larger := Strength(Stats{RoleCount: 20, CompanyCount: 5})
	assert.Greater(t, larger, small)
	assert.GreaterOrEqual(t, small, 0)
	assert.LessOrEqual(t, larger, 100)
}

func TestCollectStats(t *testing.T) {
	entities := []types.Entity{
		{Domain: "acme.com", Roles: []string{"Engineer", "Designer"}},
		{Domain: "acme.com", Title: "Recruiter"},
		{Company: "Globex", FundingAmount: 1_000_000, Raw: types.RawRecord{"layoffs": 12.0}},
	}

	s := CollectStats(entities)
	assert.Equal(t, 3, s.RoleCount)
	assert.Equal(t, 2, s.CompanyCount)
	assert.Equal(t, 1_000_000.0, s.FundingTotal)
	assert.Equal(t, 12, s.LayoffsCount)
}
