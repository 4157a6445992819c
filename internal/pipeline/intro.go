package pipeline

import (
	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// IntroFacts are the facts an introduction is written from. SignalLabel is
// the entity's label, unmodified.
type IntroFacts struct {
	RecordKey    string             `json:"record_key"`
	Company      string             `json:"company"`
	Domain       string             `json:"domain"`
	SignalKind   types.SignalKind   `json:"signal_kind"`
	SignalLabel  string             `json:"signal_label"`
	ContactName  string             `json:"contact_name"`
	ContactTitle string             `json:"contact_title,omitempty"`
	ContactEmail string             `json:"contact_email"`
	Score        int                `json:"score"`
	Reasons      []string           `json:"reasons"`
	WindowStatus types.WindowStatus `json:"window_status"`
}

// BuildIntroFacts pairs ranked results with found contacts by record key.
// Results without a found contact produce no facts. Order follows results.
func BuildIntroFacts(results []types.MatchResult, contacts []*contact.Result) []IntroFacts {
	found := make(map[string]*contact.Result, len(contacts))
	for _, c := range contacts {
		if c.Found() {
			found[c.RecordKey] = c
		}
	}

	var facts []IntroFacts
	for i := range results {
		r := &results[i]
		c, ok := found[r.Entity.RecordKey]
		if !ok {
			continue
		}
		company := r.Entity.Company
		if company == "" {
			company = c.Contact.Company
		}
		facts = append(facts, IntroFacts{
			RecordKey:    r.Entity.RecordKey,
			Company:      company,
			Domain:       r.Entity.Domain,
			SignalKind:   r.Entity.SignalMeta.Kind,
			SignalLabel:  r.Entity.SignalMeta.Label,
			ContactName:  c.Contact.Name,
			ContactTitle: c.Contact.Title,
			ContactEmail: c.Contact.Email,
			Score:        r.Score,
			Reasons:      append([]string(nil), r.Reasons...),
			WindowStatus: r.WindowStatus,
		})
	}
	return facts
}
