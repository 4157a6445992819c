// Package store provides in-memory and Redis implementations of the contact
// cache, the charge guard and the idempotency store.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// DefaultChargeWindow is how long a charged email is protected from re-billing.
const DefaultChargeWindow = 30 * 24 * time.Hour

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// MemoryCache is a process-local contact cache.
type MemoryCache struct {
	mu       sync.RWMutex
	contacts map[string]types.ContactRecord
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{contacts: make(map[string]types.ContactRecord)}
}

// Get returns a copy of the cached contact, or nil on a miss.
func (c *MemoryCache) Get(_ context.Context, domain string) (*types.ContactRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.contacts[normalizeKey(domain)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put stores a copy of the contact.
func (c *MemoryCache) Put(_ context.Context, domain string, rec *types.ContactRecord) error {
	if rec == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contacts[normalizeKey(domain)] = *rec
	return nil
}

// Len returns the number of cached domains.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.contacts)
}

// MemoryChargeGuard is a mutex-guarded charge ledger.
type MemoryChargeGuard struct {
	mu      sync.Mutex
	charged map[string]time.Time
	window  time.Duration
	now     Clock
}

// NewMemoryChargeGuard creates a guard with the given window. A nil clock
// means time.Now.
func NewMemoryChargeGuard(window time.Duration, now Clock) *MemoryChargeGuard {
	if window <= 0 {
		window = DefaultChargeWindow
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryChargeGuard{charged: make(map[string]time.Time), window: window, now: now}
}

// Check atomically tests and records a charge for email.
func (g *MemoryChargeGuard) Check(_ context.Context, email string) (bool, error) {
	key := normalizeKey(email)
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.charged[key]; ok && now.Sub(last) < g.window {
		return false, nil
	}
	g.charged[key] = now
	return true, nil
}

// Record stores a charge unconditionally.
func (g *MemoryChargeGuard) Record(_ context.Context, email string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charged[normalizeKey(email)] = g.now()
	return nil
}

// Entries lists the ledger, most recent charge first.
func (g *MemoryChargeGuard) Entries() []types.CacheEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	out := make([]types.CacheEntry, 0, len(g.charged))
	for email, at := range g.charged {
		status := "charged"
		if now.Sub(at) >= g.window {
			status = "stale"
		}
		out = append(out, types.CacheEntry{Domain: EmailDomain(email), Email: email, VerifiedAt: at, Status: status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VerifiedAt.After(out[j].VerifiedAt) })
	return out
}

// MemoryIdempotency tracks resolution keys in memory. Keys expire like
// their Redis counterparts: in-flight claims after inFlightTTL, completed
// outcomes after completedTTL.
type MemoryIdempotency struct {
	mu           sync.Mutex
	keys         map[string]idemEntry
	inFlightTTL  time.Duration
	completedTTL time.Duration
	now          Clock
}

type idemEntry struct {
	outcome   contact.Outcome
	expiresAt time.Time
}

// NewMemoryIdempotency creates an empty store. Zero TTLs select the defaults
// and a nil clock uses time.Now.
func NewMemoryIdempotency(inFlightTTL, completedTTL time.Duration, now Clock) *MemoryIdempotency {
	if inFlightTTL <= 0 {
		inFlightTTL = DefaultInFlightTTL
	}
	if completedTTL <= 0 {
		completedTTL = DefaultCompletedTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryIdempotency{
		keys:         make(map[string]idemEntry),
		inFlightTTL:  inFlightTTL,
		completedTTL: completedTTL,
		now:          now,
	}
}

// live returns the unexpired entry for key. Caller holds mu.
func (m *MemoryIdempotency) live(key string) (idemEntry, bool) {
	e, ok := m.keys[key]
	if !ok {
		return idemEntry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.keys, key)
		return idemEntry{}, false
	}
	return e, true
}

// Begin claims key unless it is in flight or completed.
func (m *MemoryIdempotency) Begin(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.keys[key] = idemEntry{outcome: contact.OutcomeInProgress, expiresAt: m.now().Add(m.inFlightTTL)}
	return true, nil
}

// Complete stores a terminal outcome or releases the key.
func (m *MemoryIdempotency) Complete(_ context.Context, key string, outcome contact.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !outcome.Terminal() {
		delete(m.keys, key)
		return nil
	}
	m.keys[key] = idemEntry{outcome: outcome, expiresAt: m.now().Add(m.completedTTL)}
	return nil
}

// Get returns the outcome of a completed, unexpired key.
func (m *MemoryIdempotency) Get(_ context.Context, key string) (contact.Outcome, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || !e.outcome.Terminal() {
		return "", false, nil
	}
	return e.outcome, true, nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EmailDomain returns the host part of an email address.
func EmailDomain(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	return strings.ToLower(domain)
}
