// Package db provides PostgreSQL storage for pipeline runs, match results,
// the contact cache, the charge ledger and resolution idempotency keys.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// CreateRun creates a new pipeline run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, schemaID, operatorID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO runs (schema_id, operator_id, status)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		schemaID, operatorID, RunStatusRunning,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun marks a pipeline run as finished with the given status.
// errMsg may be empty.
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string, results *types.MatchResults, errMsg string) error {
	var strength, count int
	var window string
	if results != nil {
		strength = results.SignalStrength
		window = string(results.WindowStatus)
		count = len(results.Results)
	}
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	_, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = $1, signal_strength = $2, window_status = $3, result_count = $4,
		     error_message = $5, completed_at = NOW()
		 WHERE id = $6`,
		status, strength, window, count, errPtr, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// SaveResults stores ranked results for a run in one batch. Position is the
// rank order, starting at 1.
func (db *DB) SaveResults(ctx context.Context, runID uuid.UUID, results []types.MatchResult) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range results {
		r := &results[i]
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal result %s: %w", r.Entity.RecordKey, err)
		}
		batch.Queue(
			`INSERT INTO match_results (run_id, record_key, position, company, domain, score,
			                            window_status, deal_value, probability, result)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (run_id, record_key) DO UPDATE
			 SET position = EXCLUDED.position, score = EXCLUDED.score,
			     window_status = EXCLUDED.window_status, deal_value = EXCLUDED.deal_value,
			     probability = EXCLUDED.probability, result = EXCLUDED.result`,
			runID, r.Entity.RecordKey, i+1, r.Entity.Company, r.Entity.Domain, r.Score,
			string(r.WindowStatus), r.DealValueEstimate, r.ProbabilityOfClose, payload,
		)
	}

	br := db.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()
	for range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}
	}
	return nil
}

// GetRun retrieves a pipeline run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, schema_id, operator_id, status, signal_strength, window_status,
		        result_count, error_message, created_at, completed_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.SchemaID, &run.OperatorID, &run.Status, &run.SignalStrength,
		&run.WindowStatus, &run.ResultCount, &run.ErrorMessage, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns retrieves recent pipeline runs
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, schema_id, operator_id, status, signal_strength, window_status,
		        result_count, error_message, created_at, completed_at
		 FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.SchemaID, &run.OperatorID, &run.Status, &run.SignalStrength,
			&run.WindowStatus, &run.ResultCount, &run.ErrorMessage, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetResults returns the full match results of a run in rank order.
func (db *DB) GetResults(ctx context.Context, runID uuid.UUID) ([]types.MatchResult, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT result FROM match_results WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	var results []types.MatchResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		var r types.MatchResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
