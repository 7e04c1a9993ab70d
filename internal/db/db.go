// Package db provides PostgreSQL storage for link runs, discovered pairs
// and failed fetches.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/linkscan/internal/sink"
)

//go:embed schema.sql
var schemaDDL string

// Run statuses stored in link_runs.status.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCanceled  = "canceled"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// RunCounts are the per-run tallies written by CompleteRun.
type RunCounts struct {
	Succeeded int
	Failed    int
	NoLinks   int
	Links     int
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

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

// EnsureSchema creates the tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateRun creates a new run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, inputCount int) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO link_runs (id, input_count, status) VALUES ($1, $2, $3)`,
		id, inputCount, RunStatusRunning,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun stores the final tallies of a run
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string, counts RunCounts) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE link_runs
		 SET status = $1, succeeded = $2, failed = $3, no_links = $4, links = $5, completed_at = NOW()
		 WHERE id = $6`,
		status, counts.Succeeded, counts.Failed, counts.NoLinks, counts.Links, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// SaveLinkGroup stores all pairs of one source in a single transaction.
func (db *DB) SaveLinkGroup(ctx context.Context, runID uuid.UUID, pairs []sink.LinkPair) (err error) {
	if len(pairs) == 0 {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	batch := &pgx.Batch{}
	for _, p := range pairs {
		batch.Queue(
			`INSERT INTO link_pairs (run_id, source_url, linked_url) VALUES ($1, $2, $3)
			 ON CONFLICT DO NOTHING`,
			runID, p.Source, p.Linked,
		)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save link group: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit link group: %w", err)
	}
	return nil
}

// RecordFailedFetch logs a URL that could not be processed.
func (db *DB) RecordFailedFetch(ctx context.Context, runID uuid.UUID, pageURL, kind, message string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO failed_fetches (run_id, url, error_kind, error_message) VALUES ($1, $2, $3, $4)`,
		runID, pageURL, kind, message,
	)
	if err != nil {
		return fmt.Errorf("failed to record failed fetch: %w", err)
	}
	return nil
}

// CountLinks returns the number of pairs stored for a run.
func (db *DB) CountLinks(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM link_pairs WHERE run_id = $1`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return n, nil
}

// GetRunStatus returns the status of a run, or "" if it does not exist.
func (db *DB) GetRunStatus(ctx context.Context, runID uuid.UUID) (string, error) {
	var status string
	err := db.pool.QueryRow(ctx, `SELECT status FROM link_runs WHERE id = $1`, runID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get run status: %w", err)
	}
	return status, nil
}
