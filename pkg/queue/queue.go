// Package queue implements an optional Postgres-backed distributed FilePair
// backlog, letting multiple coordinator processes cooperatively drain one
// discovery batch via SKIP LOCKED claims.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is one queued FilePair awaiting a mosaic or preview run.
type Job struct {
	ID         string
	SourcePath string
	OutputDir  string
	Operation  string // "mosaic" | "preview"
	Attempts   int
}

// ClaimNext atomically claims the oldest queued job using the SKIP LOCKED
// pattern, so concurrent coordinator processes never double-claim a file.
// Returns sql.ErrNoRows if no jobs are available.
func ClaimNext(ctx context.Context, db *sql.DB) (*Job, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	var j Job
	row := tx.QueryRowContext(ctx, `
		WITH next AS (
			SELECT id
			FROM file_pair_queue
			WHERE status = $1
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE file_pair_queue q
		SET status = $2,
		    attempts = q.attempts + 1,
		    started_at = NOW(),
		    updated_at = NOW()
		FROM next
		WHERE q.id = next.id
		RETURNING q.id, q.source_path, q.output_dir, q.operation, q.attempts
	`, StatusQueued, StatusRunning)
	if err := row.Scan(&j.ID, &j.SourcePath, &j.OutputDir, &j.Operation, &j.Attempts); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("claim next: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &j, nil
}

func Complete(ctx context.Context, db *sql.DB, jobID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE file_pair_queue
		SET status = $1,
		    finished_at = NOW(),
		    updated_at = NOW()
		WHERE id = $2
	`, StatusDone, jobID)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	return nil
}

func Fail(ctx context.Context, db *sql.DB, jobID string, message string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE file_pair_queue
		SET status = $1,
		    error = $2,
		    finished_at = NOW(),
		    updated_at = NOW()
		WHERE id = $3
	`, StatusFailed, truncate(message, 2000), jobID)
	if err != nil {
		return fmt.Errorf("fail: %w", err)
	}
	return nil
}

// Enqueue inserts a new job in queued state.
func Enqueue(ctx context.Context, db *sql.DB, id, sourcePath, outputDir, operation string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO file_pair_queue (id, source_path, output_dir, operation, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
	`, id, sourcePath, outputDir, operation, StatusQueued, time.Now())
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
