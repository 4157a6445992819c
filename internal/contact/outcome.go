package contact

import (
	"time"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Outcome is the terminal state of one resolution.
type Outcome string

const (
	OutcomeFound      Outcome = "found"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeInProgress Outcome = "in_progress"
)

// Terminal reports whether the outcome should be remembered. Cancelled and
// in-progress resolutions may be retried.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeFound, OutcomeNotFound, OutcomeSkipped:
		return true
	default:
		return false
	}
}

// Step names recorded on results and in metrics.
const (
	StepCache       = "cache"
	StepReverify    = "reverify"
	StepIdempotency = "idempotency"
)

// Result is what Resolve returns for one entity.
type Result struct {
	RecordKey string               `json:"record_key"`
	Domain    string               `json:"domain,omitempty"`
	Outcome   Outcome              `json:"outcome"`
	Contact   *types.ContactRecord `json:"contact,omitempty"`
	// Step names the waterfall step that produced the outcome.
	Step string `json:"step,omitempty"`
	// Charged is true when this resolution was billed. A found contact whose
	// email was charged inside the window is returned with Charged false.
	Charged  bool          `json:"charged"`
	Duration time.Duration `json:"duration_ns"`
	// Error holds a batch-level failure for this entity, if any.
	Error string `json:"error,omitempty"`
}

// Found reports whether a contact with an email was resolved.
func (r *Result) Found() bool {
	return r != nil && r.Outcome == OutcomeFound && r.Contact.HasEmail()
}
