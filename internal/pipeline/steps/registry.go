// Package steps provides step definitions and dependency validation for the
// connector pipeline.
package steps

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	dbpkg "github.com/saadbelcaidx/connector-os/internal/db"
)

// Step names.
const (
	Detect    = "detect"
	Normalize = "normalize"
	Group     = "group"
	Score     = "score"
	Resolve   = "resolve"
	Publish   = "publish"
)

// Step categories.
const (
	CategoryIngestion  = "ingestion"
	CategoryScoring    = "scoring"
	CategoryEnrichment = "enrichment"
	CategoryDelivery   = "delivery"
)

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name         string
	Category     string
	Dependencies []string
}

// StepRegistry holds all step definitions
var StepRegistry = map[string]StepDefinition{
	Detect: {
		Name:     Detect,
		Category: CategoryIngestion,
	},
	Normalize: {
		Name:         Normalize,
		Category:     CategoryIngestion,
		Dependencies: []string{Detect},
	},
	Group: {
		Name:         Group,
		Category:     CategoryIngestion,
		Dependencies: []string{Normalize},
	},
	Score: {
		Name:         Score,
		Category:     CategoryScoring,
		Dependencies: []string{Normalize},
	},
	Resolve: {
		Name:         Resolve,
		Category:     CategoryEnrichment,
		Dependencies: []string{Score},
	},
	Publish: {
		Name:         Publish,
		Category:     CategoryDelivery,
		Dependencies: []string{Score},
	},
}

// Order is the sequence a full run executes steps in.
var Order = []string{Detect, Normalize, Group, Score, Resolve, Publish}

// Position returns the 1-based position of a step in Order, or 0.
func Position(name string) int {
	for i, s := range Order {
		if s == name {
			return i + 1
		}
	}
	return 0
}

// StepReader reads persisted step state. *db.DB satisfies it.
type StepReader interface {
	GetRunStep(ctx context.Context, runID uuid.UUID, step string) (*dbpkg.RunStep, error)
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s has missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ValidateDependencies checks that every dependency of a step finished.
// A skipped dependency counts as finished.
func ValidateDependencies(ctx context.Context, reader StepReader, runID uuid.UUID, stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		step, err := reader.GetRunStep(ctx, runID, dep)
		if err != nil {
			return fmt.Errorf("failed to check dependency %s: %w", dep, err)
		}
		if step == nil || (step.Status != dbpkg.StepStatusCompleted && step.Status != dbpkg.StepStatusSkipped) {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{Step: stepName, MissingDependencies: missing}
	}
	return nil
}

// GetAvailableSteps returns steps in Order that are neither finished nor
// running and whose dependencies are met.
func GetAvailableSteps(ctx context.Context, reader StepReader, runID uuid.UUID) ([]string, error) {
	var available []string
	for _, name := range Order {
		existing, err := reader.GetRunStep(ctx, runID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check step %s: %w", name, err)
		}
		if existing != nil && existing.Status != dbpkg.StepStatusPending && existing.Status != dbpkg.StepStatusFailed {
			continue
		}
		if err := ValidateDependencies(ctx, reader, runID, name); err != nil {
			continue
		}
		available = append(available, name)
	}
	return available, nil
}
