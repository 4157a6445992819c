package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// DefaultChargeWindow is how long a charged email is protected from re-billing.
const DefaultChargeWindow = 30 * 24 * time.Hour

// Default idempotency lifetimes, matching the Redis store.
const (
	DefaultInFlightTTL  = 10 * time.Minute
	DefaultCompletedTTL = 24 * time.Hour
)

// -----------------------------------------------------------------------------
// Contact cache
// -----------------------------------------------------------------------------

// ContactCache is a contact.Cache backed by the contacts table.
type ContactCache struct {
	db *DB
}

// Contacts returns the contact cache view of db.
func (db *DB) Contacts() *ContactCache {
	return &ContactCache{db: db}
}

// Get returns the cached contact for domain, or nil on a miss.
func (c *ContactCache) Get(ctx context.Context, domain string) (*types.ContactRecord, error) {
	var rec types.ContactRecord
	err := c.db.pool.QueryRow(ctx,
		`SELECT domain, name, email, title, linkedin, company, confidence, source, cached_at
		 FROM contacts WHERE domain = $1`,
		normalizeKey(domain),
	).Scan(&rec.Domain, &rec.Name, &rec.Email, &rec.Title, &rec.LinkedIn, &rec.Company,
		&rec.Confidence, &rec.Source, &rec.CachedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached contact: %w", err)
	}
	return &rec, nil
}

// Put upserts the contact for domain.
func (c *ContactCache) Put(ctx context.Context, domain string, rec *types.ContactRecord) error {
	if rec == nil {
		return nil
	}
	cachedAt := rec.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now().UTC()
	}
	_, err := c.db.pool.Exec(ctx,
		`INSERT INTO contacts (domain, name, email, title, linkedin, company, confidence, source, cached_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (domain) DO UPDATE
		 SET name = EXCLUDED.name, email = EXCLUDED.email, title = EXCLUDED.title,
		     linkedin = EXCLUDED.linkedin, company = EXCLUDED.company,
		     confidence = EXCLUDED.confidence, source = EXCLUDED.source, cached_at = EXCLUDED.cached_at`,
		normalizeKey(domain), rec.Name, rec.Email, rec.Title, rec.LinkedIn, rec.Company,
		rec.Confidence, rec.Source, cachedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to cache contact: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Charge ledger
// -----------------------------------------------------------------------------

// ChargeGuard is a contact.ChargeGuard backed by the charges table.
type ChargeGuard struct {
	db     *DB
	window time.Duration
	now    func() time.Time
}

// Charges returns the charge guard view of db. A zero window uses
// DefaultChargeWindow.
func (db *DB) Charges(window time.Duration) *ChargeGuard {
	if window <= 0 {
		window = DefaultChargeWindow
	}
	return &ChargeGuard{db: db, window: window, now: time.Now}
}

// Check records a charge unless one exists inside the window. The upsert
// only rewrites rows older than the cutoff, so exactly one concurrent caller
// gets a row back.
func (g *ChargeGuard) Check(ctx context.Context, email string) (bool, error) {
	now := g.now().UTC()
	var charged string
	err := g.db.pool.QueryRow(ctx,
		`INSERT INTO charges (email, domain, charged_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE
		 SET charged_at = EXCLUDED.charged_at, domain = EXCLUDED.domain
		 WHERE charges.charged_at < $4
		 RETURNING email`,
		normalizeKey(email), emailDomain(email), now, now.Add(-g.window),
	).Scan(&charged)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check charge guard: %w", err)
	}
	return true, nil
}

// Record stores a charge unconditionally, restarting the window.
func (g *ChargeGuard) Record(ctx context.Context, email string) error {
	_, err := g.db.pool.Exec(ctx,
		`INSERT INTO charges (email, domain, charged_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET charged_at = EXCLUDED.charged_at`,
		normalizeKey(email), emailDomain(email), g.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record charge: %w", err)
	}
	return nil
}

// Entries lists the most recent ledger rows.
func (g *ChargeGuard) Entries(ctx context.Context, limit int) ([]types.CacheEntry, error) {
	rows, err := g.db.pool.Query(ctx,
		`SELECT domain, email, charged_at FROM charges ORDER BY charged_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}
	defer rows.Close()

	cutoff := g.now().Add(-g.window)
	var entries []types.CacheEntry
	for rows.Next() {
		var e types.CacheEntry
		if err := rows.Scan(&e.Domain, &e.Email, &e.VerifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan charge: %w", err)
		}
		e.Status = "charged"
		if e.VerifiedAt.Before(cutoff) {
			e.Status = "stale"
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// -----------------------------------------------------------------------------
// Resolution idempotency
// -----------------------------------------------------------------------------

// Idempotency is a contact.IdempotencyStore backed by the resolutions table.
type Idempotency struct {
	db           *DB
	inFlightTTL  time.Duration
	completedTTL time.Duration
}

// Resolutions returns the idempotency store view of db. Zero TTLs use the
// defaults. Expired keys may be claimed again.
func (db *DB) Resolutions(inFlightTTL, completedTTL time.Duration) *Idempotency {
	if inFlightTTL <= 0 {
		inFlightTTL = DefaultInFlightTTL
	}
	if completedTTL <= 0 {
		completedTTL = DefaultCompletedTTL
	}
	return &Idempotency{db: db, inFlightTTL: inFlightTTL, completedTTL: completedTTL}
}

// Begin claims key unless it is in flight or completed.
func (s *Idempotency) Begin(ctx context.Context, key string) (bool, error) {
	now := time.Now().UTC()
	var claimed string
	err := s.db.pool.QueryRow(ctx,
		`INSERT INTO resolutions (key, outcome, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE
		 SET outcome = EXCLUDED.outcome, updated_at = EXCLUDED.updated_at
		 WHERE (resolutions.outcome = $2 AND resolutions.updated_at < $4)
		    OR (resolutions.outcome <> $2 AND resolutions.updated_at < $5)
		 RETURNING key`,
		key, string(contact.OutcomeInProgress), now, now.Add(-s.inFlightTTL), now.Add(-s.completedTTL),
	).Scan(&claimed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return true, nil
}

// Complete stores a terminal outcome or releases the key.
func (s *Idempotency) Complete(ctx context.Context, key string, outcome contact.Outcome) error {
	var err error
	if outcome.Terminal() {
		_, err = s.db.pool.Exec(ctx,
			`UPDATE resolutions SET outcome = $1, updated_at = NOW() WHERE key = $2`,
			string(outcome), key,
		)
	} else {
		_, err = s.db.pool.Exec(ctx, `DELETE FROM resolutions WHERE key = $1`, key)
	}
	if err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

// Get returns the outcome of a completed, unexpired key.
func (s *Idempotency) Get(ctx context.Context, key string) (contact.Outcome, bool, error) {
	var outcome string
	err := s.db.pool.QueryRow(ctx,
		`SELECT outcome FROM resolutions
		 WHERE key = $1 AND outcome <> $2 AND updated_at >= $3`,
		key, string(contact.OutcomeInProgress), time.Now().UTC().Add(-s.completedTTL),
	).Scan(&outcome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	o := contact.Outcome(outcome)
	return o, o.Terminal(), nil
}

func emailDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	return normalizeKey(email[i+1:])
}
