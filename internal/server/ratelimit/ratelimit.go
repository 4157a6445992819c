// Package ratelimit provides per-client token bucket rate limiting with
// endpoint tiers.
package ratelimit

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// TokenBucket allows a number of requests per window, refilling at a
// steady rate up to its capacity.
type TokenBucket struct {
	capacity   int
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	now        Clock
	mu         sync.Mutex
}

func newTokenBucket(capacity int, refillRate float64, now Clock) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now(),
		now:        now,
	}
}

// refill must be called with mu held.
func (tb *TokenBucket) refill() time.Time {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}
	return now
}

// take consumes a token if one is available and reports the bucket state
// afterwards.
func (tb *TokenBucket) take() (allowed bool, remaining int, resetTime time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens--
		allowed = true
	}

	remaining = int(tb.tokens)
	resetTime = now
	if tb.tokens < float64(tb.capacity) && tb.refillRate > 0 {
		missing := float64(tb.capacity) - tb.tokens
		resetTime = now.Add(time.Duration(missing / tb.refillRate * float64(time.Second)))
	}
	return allowed, remaining, resetTime
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Tier       string
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
	// Now is the clock. Nil means time.Now.
	Now Clock
}

// Limiter manages one token bucket per client and tier.
type Limiter struct {
	config     *Config
	now        Clock
	mu         sync.Mutex
	buckets    map[string]*TokenBucket
	lastAccess map[string]time.Time

	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    600,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
		}
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	limiter := &Limiter{
		config:     config,
		now:        now,
		buckets:    make(map[string]*TokenBucket),
		lastAccess: make(map[string]time.Time),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		limiter.cleanupTicker = time.NewTicker(config.CleanupInterval)
		limiter.cleanupStop = make(chan struct{})
		go limiter.cleanup()
	}

	return limiter
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
// Returns true if allowed, false if rate limited, along with rate limit information.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false, Tier: "blacklist"}
	}

	ec := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if ec == nil {
		ec = &EndpointConfig{
			Tier:   TierDefault,
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultLimit,
		}
	}
	if ec.Limit <= 0 || ec.Window <= 0 {
		return true, Info{Allowed: true, Tier: ec.Tier}
	}

	// Endpoints in a tier share a bucket; untiered endpoints get their own.
	scope := ec.Tier
	if scope == "" {
		scope = method + " " + endpoint
	}
	bucket := l.getBucket(clientID+"|"+scope, ec)

	allowed, remaining, resetTime := bucket.take()
	info := Info{
		Allowed:   allowed,
		Tier:      ec.Tier,
		Limit:     ec.Limit,
		Remaining: remaining,
		ResetTime: resetTime,
	}
	if !allowed {
		// One token is enough to retry.
		info.RetryAfter = max(time.Duration(float64(time.Second)/bucket.refillRate), 0)
	}
	return allowed, info
}

func (l *Limiter) getBucket(key string, ec *EndpointConfig) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastAccess[key] = l.now()
	if bucket, ok := l.buckets[key]; ok {
		return bucket
	}
	capacity := ec.Burst
	if capacity <= 0 {
		capacity = ec.Limit
	}
	bucket := newTokenBucket(capacity, float64(ec.Limit)/ec.Window.Seconds(), l.now)
	l.buckets[key] = bucket
	return bucket
}

func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanupBuckets(l.now().Add(-time.Hour))
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupBuckets removes buckets not used since cutoff.
func (l *Limiter) cleanupBuckets(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastAccess, key)
		}
	}
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
