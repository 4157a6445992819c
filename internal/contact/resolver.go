package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saadbelcaidx/connector-os/internal/metrics"
	"github.com/saadbelcaidx/connector-os/internal/signal"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Defaults for Options fields left at zero.
const (
	DefaultFreshness   = 7 * 24 * time.Hour
	DefaultStepTimeout = 20 * time.Second
	DefaultConcurrency = 4
)

// ErrUnknownSupplier is returned when a supplier selection names no
// configured provider.
var ErrUnknownSupplier = errors.New("unknown supplier")

// Deps are the collaborators the resolver works against. Cache, ChargeGuard
// and at least one provider are required.
type Deps struct {
	Cache       Cache
	ChargeGuard ChargeGuard
	// Providers are tried in order: primary first, then fallbacks.
	Providers []Provider
	// Verifier re-checks stale cached emails. Optional.
	Verifier Verifier
	// Idempotency rejects duplicate work. Optional.
	Idempotency IdempotencyStore
}

// Options tunes the waterfall.
type Options struct {
	// Freshness is how long a cached contact is served without re-verification.
	Freshness time.Duration
	// StepTimeout bounds each provider or verifier call.
	StepTimeout time.Duration
	// Concurrency bounds ResolveAll.
	Concurrency int
	Logger      *zap.Logger
	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// Resolver runs the contact waterfall.
type Resolver struct {
	deps      Deps
	opts      Options
	supplier  string
	providers []Provider
	log       *zap.Logger
}

// NewResolver validates the collaborators and applies option defaults.
func NewResolver(deps Deps, opts Options) (*Resolver, error) {
	if deps.Cache == nil {
		return nil, fmt.Errorf("contact cache is required")
	}
	if deps.ChargeGuard == nil {
		return nil, fmt.Errorf("charge guard is required")
	}
	if len(deps.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	seen := make(map[string]bool, len(deps.Providers))
	for _, p := range deps.Providers {
		if p == nil {
			return nil, fmt.Errorf("provider is nil")
		}
		if seen[p.Name()] {
			return nil, fmt.Errorf("duplicate provider name %q", p.Name())
		}
		seen[p.Name()] = true
	}

	if opts.Freshness <= 0 {
		opts.Freshness = DefaultFreshness
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Resolver{
		deps:      deps,
		opts:      opts,
		providers: deps.Providers,
		log:       log.Named("contact"),
	}, nil
}

// WithSupplier returns a resolver restricted to the named provider. The
// restricted resolver never falls back to other providers. An empty name
// returns the resolver unchanged.
func (r *Resolver) WithSupplier(name string) (*Resolver, error) {
	if name == "" {
		return r, nil
	}
	for _, p := range r.deps.Providers {
		if strings.EqualFold(p.Name(), name) {
			cp := *r
			cp.supplier = p.Name()
			cp.providers = []Provider{p}
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSupplier, name)
}

// IdempotencyKey identifies one resolution of an entity.
func IdempotencyKey(e *types.Entity) string {
	return e.RecordKey + "|" + e.Domain
}

// Resolve runs the waterfall for one entity. It returns an error only for
// a nil entity; every provider or store failure degrades to the next step.
func (r *Resolver) Resolve(ctx context.Context, e *types.Entity) (*Result, error) {
	if e == nil {
		return nil, fmt.Errorf("entity is nil")
	}

	start := r.opts.Now()
	res := &Result{RecordKey: e.RecordKey, Domain: e.Domain}
	defer func() {
		res.Duration = r.opts.Now().Sub(start)
		metrics.ResolveDuration.WithLabelValues(string(res.Outcome)).Observe(res.Duration.Seconds())
	}()

	if e.SkipEnrichment || !e.HasDomain() {
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	if r.deps.Idempotency != nil {
		if done := r.checkIdempotency(ctx, e, res); done {
			return res, nil
		}
		key := IdempotencyKey(e)
		defer func() {
			// Record the outcome even when ctx was cancelled mid-waterfall.
			if err := r.deps.Idempotency.Complete(context.WithoutCancel(ctx), key, res.Outcome); err != nil {
				r.log.Warn("failed to complete idempotency key", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	r.waterfall(ctx, e, res)
	return res, nil
}

// checkIdempotency fills res and returns true when the entity was already
// resolved or is being resolved elsewhere.
func (r *Resolver) checkIdempotency(ctx context.Context, e *types.Entity, res *Result) bool {
	key := IdempotencyKey(e)

	outcome, completed, err := r.deps.Idempotency.Get(ctx, key)
	if err != nil {
		r.log.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
	} else if completed {
		if outcome != OutcomeFound {
			res.Outcome = outcome
			res.Step = StepIdempotency
			return true
		}
		// A found outcome is only as good as the cached contact behind it.
		// Once that goes stale the key is released so the waterfall can
		// re-verify it.
		if c, err := r.deps.Cache.Get(ctx, e.Domain); err == nil && c.HasEmail() && r.opts.Now().Sub(c.CachedAt) < r.opts.Freshness {
			res.Outcome = outcome
			res.Step = StepIdempotency
			res.Contact = c
			return true
		}
		if err := r.deps.Idempotency.Complete(ctx, key, OutcomeInProgress); err != nil {
			r.log.Warn("failed to release stale idempotency key", zap.String("key", key), zap.Error(err))
		}
	}

	started, err := r.deps.Idempotency.Begin(ctx, key)
	if err != nil {
		r.log.Warn("idempotency begin failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !started {
		res.Outcome = OutcomeInProgress
		res.Step = StepIdempotency
		return true
	}
	return false
}

func (r *Resolver) waterfall(ctx context.Context, e *types.Entity, res *Result) {
	domain := e.Domain
	log := r.log.With(zap.String("domain", domain), zap.String("record_key", e.RecordKey))
	if r.supplier != "" {
		log = log.With(zap.String("supplier", r.supplier))
	}

	// Step 1: cache. Never incurs a paid call unless the entry is stale.
	if c, ok := r.fromCache(ctx, domain, log); ok {
		res.Outcome = OutcomeFound
		res.Contact = c.rec
		res.Step = c.step
		res.Charged = c.charged
		return
	}
	if ctx.Err() != nil {
		res.Outcome = OutcomeCancelled
		return
	}

	// Steps 2 and 3: providers in order.
	titles := signal.TitlesFor(e)
	var hint *types.ContactRecord
	for _, p := range r.providers {
		step := p.Name()

		stepCtx, cancel := context.WithTimeout(ctx, r.opts.StepTimeout)
		rec, err := p.Lookup(stepCtx, domain, titles, hint)
		cancel()

		if ctx.Err() != nil {
			metrics.WaterfallStepsTotal.WithLabelValues(step, string(OutcomeCancelled)).Inc()
			res.Outcome = OutcomeCancelled
			res.Step = step
			return
		}
		if err != nil {
			metrics.WaterfallStepsTotal.WithLabelValues(step, "error").Inc()
			log.Warn("provider lookup failed", zap.String("step", step), zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		if rec == nil {
			metrics.WaterfallStepsTotal.WithLabelValues(step, "miss").Inc()
			log.Debug("provider miss", zap.String("step", step))
			continue
		}
		if claimed := claimedDomain(rec); !SameDomain(claimed, domain) {
			metrics.WaterfallStepsTotal.WithLabelValues(step, "domain_mismatch").Inc()
			log.Warn("discarding contact from another domain",
				zap.String("step", step),
				zap.String("provider", p.Name()),
				zap.String("returned_domain", claimed))
			continue
		}

		if hint == nil && rec.Name != "" {
			h := *rec
			hint = &h
		}
		if !rec.HasEmail() {
			metrics.WaterfallStepsTotal.WithLabelValues(step, "no_email").Inc()
			continue
		}

		metrics.WaterfallStepsTotal.WithLabelValues(step, string(OutcomeFound)).Inc()
		found := *rec
		found.Domain = domain
		found.Email = strings.ToLower(strings.TrimSpace(found.Email))
		if found.Source == "" {
			found.Source = p.Name()
		}
		if found.Company == "" {
			found.Company = e.Company
		}
		found.CachedAt = r.opts.Now()

		res.Outcome = OutcomeFound
		res.Contact = &found
		res.Step = step
		res.Charged = r.charge(ctx, found.Email, log)

		if err := r.deps.Cache.Put(context.WithoutCancel(ctx), domain, &found); err != nil {
			log.Warn("failed to cache contact", zap.Error(err))
		}
		return
	}

	res.Outcome = OutcomeNotFound
	log.Info("no contact found", zap.Int("providers", len(r.providers)))
}

type cacheHit struct {
	rec     *types.ContactRecord
	step    string
	charged bool
}

// fromCache serves a fresh cached contact, or re-verifies a stale one.
func (r *Resolver) fromCache(ctx context.Context, domain string, log *zap.Logger) (cacheHit, bool) {
	cached, err := r.deps.Cache.Get(ctx, domain)
	if err != nil {
		metrics.WaterfallStepsTotal.WithLabelValues(StepCache, "error").Inc()
		log.Warn("cache lookup failed", zap.Error(err))
		return cacheHit{}, false
	}
	if !cached.HasEmail() {
		metrics.WaterfallStepsTotal.WithLabelValues(StepCache, "miss").Inc()
		return cacheHit{}, false
	}

	now := r.opts.Now()
	if now.Sub(cached.CachedAt) < r.opts.Freshness {
		metrics.WaterfallStepsTotal.WithLabelValues(StepCache, string(OutcomeFound)).Inc()
		return cacheHit{rec: cached, step: StepCache}, true
	}

	metrics.WaterfallStepsTotal.WithLabelValues(StepCache, "stale").Inc()
	if r.deps.Verifier == nil {
		return cacheHit{}, false
	}

	stepCtx, cancel := context.WithTimeout(ctx, r.opts.StepTimeout)
	status, err := r.deps.Verifier.Verify(stepCtx, cached.Email)
	cancel()
	if err != nil {
		metrics.WaterfallStepsTotal.WithLabelValues(StepReverify, "error").Inc()
		log.Warn("re-verification failed", zap.String("step", StepReverify), zap.Error(err))
		return cacheHit{}, false
	}
	if status != VerifyValid {
		metrics.WaterfallStepsTotal.WithLabelValues(StepReverify, string(status)).Inc()
		log.Info("cached email no longer valid", zap.String("status", string(status)))
		return cacheHit{}, false
	}

	metrics.WaterfallStepsTotal.WithLabelValues(StepReverify, string(VerifyValid)).Inc()
	refreshed := *cached
	refreshed.CachedAt = now
	charged := r.charge(ctx, refreshed.Email, log)
	if err := r.deps.Cache.Put(context.WithoutCancel(ctx), domain, &refreshed); err != nil {
		log.Warn("failed to refresh cached contact", zap.Error(err))
	}
	return cacheHit{rec: &refreshed, step: StepReverify, charged: charged}, true
}

// charge asks the guard whether this verified email may be billed. Guard
// failures are treated as "do not charge".
func (r *Resolver) charge(ctx context.Context, email string, log *zap.Logger) bool {
	ok, err := r.deps.ChargeGuard.Check(context.WithoutCancel(ctx), email)
	switch {
	case err != nil:
		metrics.ChargeGuardTotal.WithLabelValues("error").Inc()
		log.Warn("charge guard failed", zap.String("email", email), zap.Error(err))
		return false
	case ok:
		metrics.ChargeGuardTotal.WithLabelValues("charged").Inc()
		return true
	default:
		metrics.ChargeGuardTotal.WithLabelValues("skipped").Inc()
		log.Info("skipping charge for recently charged email", zap.String("email", email))
		return false
	}
}

// SameDomain reports whether a provider-returned domain is consistent with
// the requested one. An empty returned domain does not disagree.
func SameDomain(returned, requested string) bool {
	got := bareHost(returned)
	if got == "" {
		return true
	}
	want := bareHost(requested)
	return got == want || strings.HasSuffix(got, "."+want)
}

// claimedDomain is the domain a provider result belongs to: its Domain
// field, or the email's host when the provider left Domain empty.
func claimedDomain(rec *types.ContactRecord) string {
	if strings.TrimSpace(rec.Domain) != "" {
		return rec.Domain
	}
	if _, host, ok := strings.Cut(strings.TrimSpace(rec.Email), "@"); ok {
		return host
	}
	return ""
}

func bareHost(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/:?#"); i >= 0 {
		d = d[:i]
	}
	return d
}
