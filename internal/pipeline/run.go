// Package pipeline provides the high-level orchestration for a connector run:
// detect, normalize, score and rank a dataset, then optionally resolve
// contacts for the best matches.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/db"
	"github.com/saadbelcaidx/connector-os/internal/events"
	"github.com/saadbelcaidx/connector-os/internal/metrics"
	"github.com/saadbelcaidx/connector-os/internal/normalize"
	"github.com/saadbelcaidx/connector-os/internal/pipeline/steps"
	"github.com/saadbelcaidx/connector-os/internal/ranking"
	"github.com/saadbelcaidx/connector-os/internal/registry"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Store persists runs. *db.DB satisfies it.
type Store interface {
	CreateRun(ctx context.Context, schemaID, operatorID string) (uuid.UUID, error)
	StartRunStep(ctx context.Context, runID uuid.UUID, step string) (*db.RunStep, error)
	FinishRunStep(ctx context.Context, runID uuid.UUID, step, status, errMsg string) error
	SaveResults(ctx context.Context, runID uuid.UUID, results []types.MatchResult) error
	CompleteRun(ctx context.Context, runID uuid.UUID, status string, results *types.MatchResults, errMsg string) error
}

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	Records  []types.RawRecord
	Profile  *types.CapabilityProfile // Required
	Registry *registry.Registry       // Nil means the built-in registry

	Threshold int
	Strength  *int
	Quality   ranking.QualityFunc
	// NoGroup keeps hiring postings one entity per posting.
	NoGroup bool

	// Resolver enables contact resolution for the ResolveTop best results.
	Resolver   *contact.Resolver
	ResolveTop int

	Store      Store            // Optional persistence
	Publisher  events.Publisher // Optional event sink
	OperatorID string

	Logger     *zap.Logger
	OnProgress ProgressCallback
}

// Output is everything a run produced.
type Output struct {
	RunID    string              `json:"run_id,omitempty"`
	SchemaID string              `json:"schema_id"`
	Entities int                 `json:"entities"`
	Results  *types.MatchResults `json:"results"`
	Contacts []*contact.Result   `json:"contacts,omitempty"`
	Intros   []IntroFacts        `json:"intros,omitempty"`
}

// run carries per-invocation state.
type run struct {
	opts  *RunOptions
	log   *zap.Logger
	id    uuid.UUID
	store Store
}

// emitProgress calls the progress callback if configured
func (r *run) emitProgress(step, message string, content any) {
	r.log.Info(message, zap.String("step", step))
	if r.opts.OnProgress == nil {
		return
	}
	ev := ProgressEvent{
		Step:     step,
		Category: steps.StepRegistry[step].Category,
		Message:  fmt.Sprintf("Step %d/%d: %s", steps.Position(step), len(steps.Order), message),
		Content:  content,
	}
	if r.id != uuid.Nil {
		ev.RunID = r.id.String()
	}
	r.opts.OnProgress(ev)
}

// begin and finish track a step in the store. Store failures are logged
// and never fail the run.
func (r *run) begin(ctx context.Context, step string) {
	if r.store == nil {
		return
	}
	if _, err := r.store.StartRunStep(ctx, r.id, step); err != nil {
		r.log.Warn("failed to record step start", zap.String("step", step), zap.Error(err))
	}
}

func (r *run) finish(ctx context.Context, step, status string, stepErr error) {
	if r.store == nil {
		return
	}
	msg := ""
	if stepErr != nil {
		msg = stepErr.Error()
	}
	if err := r.store.FinishRunStep(context.WithoutCancel(ctx), r.id, step, status, msg); err != nil {
		r.log.Warn("failed to record step finish", zap.String("step", step), zap.Error(err))
	}
}

// Detect classifies a dataset and counts the attempt.
func Detect(reg *registry.Registry, records []types.RawRecord) (*registry.Schema, error) {
	schema, err := reg.DetectDataset(records)
	if err != nil {
		metrics.DetectTotal.WithLabelValues("", "rejected").Inc()
		return nil, err
	}
	metrics.DetectTotal.WithLabelValues(schema.ID, "matched").Inc()
	return schema, nil
}

// Run executes the pipeline. A rejected dataset or an invalid profile fails
// the run before anything is persisted.
func Run(ctx context.Context, opts RunOptions) (*Output, error) {
	if opts.Profile == nil {
		return nil, fmt.Errorf("capability profile is required")
	}
	if err := opts.Profile.Validate(); err != nil {
		return nil, err
	}
	reg := opts.Registry
	if reg == nil {
		var err error
		if reg, err = registry.Default(); err != nil {
			return nil, fmt.Errorf("failed to load schema registry: %w", err)
		}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := &run{opts: &opts, log: log.Named("pipeline"), store: opts.Store}

	// Step 1: Detect
	schema, err := Detect(reg, opts.Records)
	if err != nil {
		return nil, fmt.Errorf("schema detection failed: %w", err)
	}
	r.log = r.log.With(zap.String("schema", schema.ID))

	if r.store != nil {
		id, err := r.store.CreateRun(ctx, schema.ID, opts.OperatorID)
		if err != nil {
			r.log.Warn("failed to create run, continuing without persistence", zap.Error(err))
			r.store = nil
		} else {
			r.id = id
			r.log = r.log.With(zap.String("run_id", id.String()))
		}
	}
	r.begin(ctx, steps.Detect)
	r.finish(ctx, steps.Detect, db.StepStatusCompleted, nil)
	r.emitProgress(steps.Detect, fmt.Sprintf("Detected %s (%d records)", schema.Name, len(opts.Records)), schema.ID)

	out, err := r.execute(ctx, schema)
	if err != nil {
		status := db.RunStatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = db.RunStatusCancelled
		}
		r.complete(ctx, status, nil, err)
		return nil, err
	}

	r.complete(ctx, db.RunStatusCompleted, out.Results, nil)
	if r.id != uuid.Nil {
		out.RunID = r.id.String()
	}
	return out, nil
}

func (r *run) execute(ctx context.Context, schema *registry.Schema) (*Output, error) {
	opts := r.opts

	// Step 2: Normalize
	r.begin(ctx, steps.Normalize)
	entities, err := normalize.NormalizeAll(ctx, opts.Records, schema)
	if err != nil {
		r.finish(ctx, steps.Normalize, db.StepStatusFailed, err)
		return nil, fmt.Errorf("normalization failed: %w", err)
	}
	r.finish(ctx, steps.Normalize, db.StepStatusCompleted, nil)
	r.emitProgress(steps.Normalize, fmt.Sprintf("Normalized %d entities", len(entities)), nil)

	// Step 3: Group hiring postings by company
	r.begin(ctx, steps.Group)
	if schema.SignalType == types.SignalTypeHiring && !opts.NoGroup {
		before := len(entities)
		entities = normalize.GroupByDomain(entities)
		r.finish(ctx, steps.Group, db.StepStatusCompleted, nil)
		r.emitProgress(steps.Group, fmt.Sprintf("Grouped %d postings into %d companies", before, len(entities)), nil)
	} else {
		r.finish(ctx, steps.Group, db.StepStatusSkipped, nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline cancelled: %w", err)
	}

	// Step 4: Score, rank and estimate
	r.begin(ctx, steps.Score)
	results, err := ranking.RankEntities(entities, opts.Profile, ranking.Options{
		Threshold: opts.Threshold,
		Quality:   opts.Quality,
		Strength:  opts.Strength,
	})
	if err != nil {
		r.finish(ctx, steps.Score, db.StepStatusFailed, err)
		return nil, fmt.Errorf("scoring failed: %w", err)
	}
	if r.store != nil {
		if err := r.store.SaveResults(ctx, r.id, results.Results); err != nil {
			r.log.Warn("failed to save results", zap.Error(err))
		}
	}
	r.finish(ctx, steps.Score, db.StepStatusCompleted, nil)
	r.emitProgress(steps.Score, fmt.Sprintf("Ranked %d matches (strength %d, window %s)",
		len(results.Results), results.SignalStrength, results.WindowStatus), results)

	out := &Output{
		SchemaID: schema.ID,
		Entities: len(entities),
		Results:  results,
	}

	// Step 5: Resolve contacts for the top matches
	r.begin(ctx, steps.Resolve)
	if opts.Resolver != nil && opts.ResolveTop > 0 && len(results.Results) > 0 {
		top := results.Results[:min(opts.ResolveTop, len(results.Results))]
		targets := make([]types.Entity, len(top))
		for i := range top {
			targets[i] = top[i].Entity
		}
		out.Contacts = opts.Resolver.ResolveAll(ctx, targets, func(done, total int, res *contact.Result) {
			r.emitProgress(steps.Resolve, fmt.Sprintf("Resolved %d/%d (%s: %s)", done, total, res.Domain, res.Outcome), res)
		})
		if err := ctx.Err(); err != nil {
			r.finish(ctx, steps.Resolve, db.StepStatusFailed, err)
			return nil, fmt.Errorf("pipeline cancelled: %w", err)
		}
		r.finish(ctx, steps.Resolve, db.StepStatusCompleted, nil)
		out.Intros = BuildIntroFacts(results.Results, out.Contacts)
	} else {
		r.finish(ctx, steps.Resolve, db.StepStatusSkipped, nil)
	}

	// Step 6: Publish
	r.begin(ctx, steps.Publish)
	if opts.Publisher != nil {
		runID := ""
		if r.id != uuid.Nil {
			runID = r.id.String()
		}
		err := opts.Publisher.PublishMatches(ctx, runID, results.Results)
		if err == nil {
			err = opts.Publisher.PublishContacts(ctx, runID, out.Contacts)
		}
		if err != nil {
			r.log.Warn("failed to publish events", zap.Error(err))
			r.finish(ctx, steps.Publish, db.StepStatusFailed, err)
		} else {
			r.finish(ctx, steps.Publish, db.StepStatusCompleted, nil)
			r.emitProgress(steps.Publish, "Published events", nil)
		}
	} else {
		r.finish(ctx, steps.Publish, db.StepStatusSkipped, nil)
	}

	return out, nil
}

func (r *run) complete(ctx context.Context, status string, results *types.MatchResults, runErr error) {
	if r.store == nil {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := r.store.CompleteRun(context.WithoutCancel(ctx), r.id, status, results, msg); err != nil {
		r.log.Warn("failed to complete run", zap.Error(err))
	}
}
