// Package contact resolves a verified contact for an entity through an
// ordered, cost-aware waterfall of providers.
package contact

import (
	"context"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Cache stores resolved contacts keyed by domain. Get returns (nil, nil)
// on a miss.
type Cache interface {
	Get(ctx context.Context, domain string) (*types.ContactRecord, error)
	Put(ctx context.Context, domain string, rec *types.ContactRecord) error
}

// ChargeGuard prevents paying twice for the same verified email.
//
// Check is an atomic compare-and-set: it returns true and records the charge
// in one step when the email was not charged inside the window, and false
// otherwise. Record stores a charge made outside the guard, unconditionally.
type ChargeGuard interface {
	Check(ctx context.Context, email string) (bool, error)
	Record(ctx context.Context, email string) error
}

// Provider is one paid lookup step of the waterfall. Lookup returns
// (nil, nil) when the provider has no match. hint carries what earlier
// steps learned (for example a name without an email) and may be nil.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, domain string, titles []string, hint *types.ContactRecord) (*types.ContactRecord, error)
}

// VerifyStatus is the result of a lightweight email re-verification.
type VerifyStatus string

const (
	VerifyValid   VerifyStatus = "valid"
	VerifyInvalid VerifyStatus = "invalid"
	VerifyUnknown VerifyStatus = "unknown"
)

// Verifier re-checks an existing email without a full search.
type Verifier interface {
	Verify(ctx context.Context, email string) (VerifyStatus, error)
}

// IdempotencyStore tracks in-flight and completed resolutions.
//
// Begin claims a key and returns false when it is already in flight or
// completed. Complete stores a terminal outcome; a non-terminal outcome
// releases the key so the work can be retried. Get returns the stored
// outcome of a completed key.
type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (bool, error)
	Complete(ctx context.Context, key string, outcome Outcome) error
	Get(ctx context.Context, key string) (Outcome, bool, error)
}
