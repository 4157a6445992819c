package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

func TestPrintDetection(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintDetection("job_postings", "Job Postings", types.SignalTypeHiring, 50)

	output := buf.String()
	assert.Contains(t, output, "DETECTED SOURCE")
	assert.Contains(t, output, "job_postings (Job Postings)")
	assert.Contains(t, output, "hiring")
	assert.Contains(t, output, "50")
}

func TestPrintMatchResults(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMatchResults(&types.MatchResults{
		SchemaID:       "job_postings",
		SignalStrength: 72,
		WindowStatus:   types.WindowOpen,
		Results: []types.MatchResult{
			{
				Entity:             types.Entity{Company: "Acme Cloud", Domain: "acme.io", SignalMeta: types.SignalMeta{Label: "Hiring CTO +2 more"}},
				Score:              80,
				Reasons:            []string{"Role match: CTO", "Industry match: SaaS", "Size match: 50-200"},
				DealValueEstimate:  25000,
				ProbabilityOfClose: 64,
			},
			{
				Entity: types.Entity{FirstName: "Grace", LastName: "Hopper", Domain: "bolt.io"},
				Score:  40,
			},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "RANKED MATCHES")
	assert.Contains(t, output, "Acme Cloud")
	assert.Contains(t, output, "Hiring CTO +2 more")
	assert.Contains(t, output, "$25000")
	assert.Contains(t, output, "Role match: CTO; Industry match: SaaS +1")
	assert.NotContains(t, output, "Size match")
	assert.Contains(t, output, "Grace Hopper")
	assert.Contains(t, output, "OPEN")
	assert.Less(t, strings.Index(output, "acme.io"), strings.Index(output, "bolt.io"))
}

func TestPrintMatchResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMatchResults(nil)
	assert.Empty(t, buf.String())

	p.PrintMatchResults(&types.MatchResults{})
	assert.Contains(t, buf.String(), "No results above threshold")
}

func TestPrintContacts(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintContacts([]*contact.Result{
		{RecordKey: "a", Domain: "acme.io", Outcome: contact.OutcomeFound, Step: "static", Charged: true,
			Contact: &types.ContactRecord{Name: "Ada Lovelace", Email: "ada@acme.io"}},
		{RecordKey: "b", Domain: "bolt.io", Outcome: contact.OutcomeNotFound, Error: "provider timeout"},
		nil,
	})
	output := buf.String()

	assert.Contains(t, output, "CONTACTS")
	assert.Contains(t, output, "ada@acme.io")
	assert.Contains(t, output, "not_found (provider timeout)")
	assert.Contains(t, output, "true")
}

func TestPrintContacts_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintContacts(nil)
	assert.Empty(t, buf.String())
}

func TestPrintChargeLedger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintChargeLedger(nil)
	assert.Contains(t, buf.String(), "No charges recorded")

	buf.Reset()
	p.PrintChargeLedger([]types.CacheEntry{
		{Domain: "acme.io", Email: "ada@acme.io", VerifiedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), Status: "charged"},
	})
	assert.Contains(t, buf.String(), "2026-03-01 09:30")
	assert.Contains(t, buf.String(), "charged")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", truncate("éééééééé", 6))
}
