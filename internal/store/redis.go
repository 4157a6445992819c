package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Key prefixes used in Redis.
const (
	contactPrefix = "connector:contact:"
	chargePrefix  = "connector:charge:"
	idemPrefix    = "connector:idem:"
)

// Default idempotency TTLs. In-flight keys expire so a crashed worker
// cannot block an entity forever.
const (
	DefaultInFlightTTL  = 10 * time.Minute
	DefaultCompletedTTL = 24 * time.Hour
)

// NewRedisClient connects to Redis from a URL such as
// redis://:password@localhost:6379/0 and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// RedisCache stores contacts as JSON keyed by domain.
type RedisCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisCache creates a cache. A zero ttl keeps entries until overwritten;
// freshness is decided from CachedAt, not from key expiry.
func NewRedisCache(rdb redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached contact or nil on a miss.
func (c *RedisCache) Get(ctx context.Context, domain string) (*types.ContactRecord, error) {
	raw, err := c.rdb.Get(ctx, contactPrefix+normalizeKey(domain)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached contact: %w", err)
	}
	var rec types.ContactRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode cached contact: %w", err)
	}
	return &rec, nil
}

// Put stores the contact.
func (c *RedisCache) Put(ctx context.Context, domain string, rec *types.ContactRecord) error {
	if rec == nil {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode contact: %w", err)
	}
	if err := c.rdb.Set(ctx, contactPrefix+normalizeKey(domain), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache contact: %w", err)
	}
	return nil
}

// RedisChargeGuard keeps one key per charged email that expires with the
// charge window, so SET NX is the atomic check-and-set.
type RedisChargeGuard struct {
	rdb    redis.Cmdable
	window time.Duration
}

// NewRedisChargeGuard creates a guard.
func NewRedisChargeGuard(rdb redis.Cmdable, window time.Duration) *RedisChargeGuard {
	if window <= 0 {
		window = DefaultChargeWindow
	}
	return &RedisChargeGuard{rdb: rdb, window: window}
}

// Check records a charge when none exists inside the window.
func (g *RedisChargeGuard) Check(ctx context.Context, email string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, chargePrefix+normalizeKey(email), time.Now().UTC().Format(time.RFC3339), g.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check charge guard: %w", err)
	}
	return ok, nil
}

// Record stores a charge unconditionally, restarting the window.
func (g *RedisChargeGuard) Record(ctx context.Context, email string) error {
	if err := g.rdb.Set(ctx, chargePrefix+normalizeKey(email), time.Now().UTC().Format(time.RFC3339), g.window).Err(); err != nil {
		return fmt.Errorf("failed to record charge: %w", err)
	}
	return nil
}

// RedisIdempotency tracks resolution keys with expiring Redis keys.
type RedisIdempotency struct {
	rdb          redis.Cmdable
	inFlightTTL  time.Duration
	completedTTL time.Duration
}

// NewRedisIdempotency creates a store. Zero TTLs use the defaults.
func NewRedisIdempotency(rdb redis.Cmdable, inFlightTTL, completedTTL time.Duration) *RedisIdempotency {
	if inFlightTTL <= 0 {
		inFlightTTL = DefaultInFlightTTL
	}
	if completedTTL <= 0 {
		completedTTL = DefaultCompletedTTL
	}
	return &RedisIdempotency{rdb: rdb, inFlightTTL: inFlightTTL, completedTTL: completedTTL}
}

// Begin claims key with SET NX.
func (s *RedisIdempotency) Begin(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, idemPrefix+key, string(contact.OutcomeInProgress), s.inFlightTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Complete stores a terminal outcome or releases the key.
func (s *RedisIdempotency) Complete(ctx context.Context, key string, outcome contact.Outcome) error {
	var err error
	if outcome.Terminal() {
		err = s.rdb.Set(ctx, idemPrefix+key, string(outcome), s.completedTTL).Err()
	} else {
		err = s.rdb.Del(ctx, idemPrefix+key).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

// Get returns the outcome of a completed key.
func (s *RedisIdempotency) Get(ctx context.Context, key string) (contact.Outcome, bool, error) {
	v, err := s.rdb.Get(ctx, idemPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	o := contact.Outcome(v)
	if !o.Terminal() {
		return "", false, nil
	}
	return o, true, nil
}
