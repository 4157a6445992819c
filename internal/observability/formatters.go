// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxReasonsToShow bounds the reasons column
	maxReasonsToShow = 2
	// labelWidth truncates long signal labels in tables
	labelWidth = 40
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		line = truncate(line, boxWidth-4)
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func (p *Printer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleLight)
	return t
}

// PrintDetection summarizes which schema a dataset matched.
func (p *Printer) PrintDetection(schemaID, name string, signal types.SignalType, records int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Schema:   %s (%s)\n", schemaID, name))
	sb.WriteString(fmt.Sprintf("Signal:   %s\n", signal))
	sb.WriteString(fmt.Sprintf("Records:  %d", records))
	p.printBox("DETECTED SOURCE", sb.String())
}

// PrintMatchResults renders ranked results as a table followed by the
// dataset's window status.
func (p *Printer) PrintMatchResults(results *types.MatchResults) {
	if results == nil {
		return
	}
	if len(results.Results) == 0 {
		p.printBox("RANKED MATCHES", "No results above threshold")
		return
	}

	t := p.newTable()
	t.SetTitle("RANKED MATCHES")
	t.AppendHeader(table.Row{"#", "Company", "Domain", "Signal", "Score", "Deal", "Close %", "Reasons"})
	for i, r := range results.Results {
		reasons := r.Reasons
		more := ""
		if len(reasons) > maxReasonsToShow {
			more = fmt.Sprintf(" +%d", len(reasons)-maxReasonsToShow)
			reasons = reasons[:maxReasonsToShow]
		}
		t.AppendRow(table.Row{
			i + 1,
			companyName(&r.Entity),
			r.Entity.Domain,
			truncate(r.Entity.SignalMeta.Label, labelWidth),
			r.Score,
			fmt.Sprintf("$%d", r.DealValueEstimate),
			r.ProbabilityOfClose,
			strings.Join(reasons, "; ") + more,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Window", results.WindowStatus, "Strength", results.SignalStrength, ""})
	t.Render()
}

// PrintContacts renders contact resolution outcomes.
func (p *Printer) PrintContacts(results []*contact.Result) {
	if len(results) == 0 {
		return
	}

	t := p.newTable()
	t.SetTitle("CONTACTS")
	t.AppendHeader(table.Row{"Record", "Domain", "Outcome", "Step", "Name", "Email", "Charged"})
	found := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		name, email := "", ""
		if r.Contact != nil {
			name, email = r.Contact.Name, r.Contact.Email
		}
		if r.Found() {
			found++
		}
		outcome := string(r.Outcome)
		if r.Error != "" {
			outcome += " (" + truncate(r.Error, 30) + ")"
		}
		t.AppendRow(table.Row{r.RecordKey, r.Domain, outcome, r.Step, name, email, r.Charged})
	}
	t.AppendFooter(table.Row{"", "", "Found", found, "", "", ""})
	t.Render()
}

// PrintChargeLedger renders the charge-guard ledger.
func (p *Printer) PrintChargeLedger(entries []types.CacheEntry) {
	if len(entries) == 0 {
		p.printBox("CHARGE LEDGER", "No charges recorded")
		return
	}

	t := p.newTable()
	t.SetTitle("CHARGE LEDGER")
	t.AppendHeader(table.Row{"Domain", "Email", "Verified At", "Status"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Domain, e.Email, e.VerifiedAt.Format("2006-01-02 15:04"), e.Status})
	}
	t.Render()
}

func companyName(e *types.Entity) string {
	if e.Company != "" {
		return e.Company
	}
	return e.DisplayName()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
