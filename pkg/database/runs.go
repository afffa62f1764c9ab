package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// CreateRun records the start of a research run.
func (db *PostgresDB) CreateRun(ctx context.Context, id uuid.UUID, topic string, maxDepth int) error {
	_, err := db.Pool.Exec(ctx,
		"INSERT INTO research_runs (id, topic, max_depth, status) VALUES ($1, $2, $3, $4)",
		id, topic, maxDepth, RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun stores the counters of a successful run.
func (db *PostgresDB) CompleteRun(ctx context.Context, id uuid.UUID, totalFindings, totalSources int) error {
	_, err := db.Pool.Exec(ctx,
		"UPDATE research_runs SET status = $2, total_findings = $3, total_sources = $4, updated_at = NOW() WHERE id = $1",
		id, RunStatusCompleted, totalFindings, totalSources)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// FailRun marks a run as failed with reason.
func (db *PostgresDB) FailRun(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := db.Pool.Exec(ctx,
		"UPDATE research_runs SET status = $2, error = $3, updated_at = NOW() WHERE id = $1",
		id, RunStatusFailed, reason)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return nil
}

// InsertLog appends one log record to a run's progress log.
func (db *PostgresDB) InsertLog(ctx context.Context, runID uuid.UUID, ts time.Time, level, message string, metadata []byte) error {
	_, err := db.Pool.Exec(ctx,
		"INSERT INTO research_logs (run_id, timestamp, level, message, metadata) VALUES ($1, $2, $3, $4, $5)",
		runID, ts, level, message, metadata)
	return err
}
