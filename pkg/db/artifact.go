package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordArtifact persists a produced mosaic or preview artifact's path and
// source metadata, for deployments running the optional distributed queue
// where FileDiscovery and the Coordinator live in separate processes.
func RecordArtifact(ctx context.Context, db *sql.DB, sourcePath, artifactPath, kind string, durationSeconds float64) error {
	query := `
		INSERT INTO artifact (source_path, artifact_path, kind, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_path, kind) DO UPDATE
		SET artifact_path = EXCLUDED.artifact_path,
		    duration_seconds = EXCLUDED.duration_seconds,
		    created_at = EXCLUDED.created_at
	`
	_, err := db.ExecContext(ctx, query, sourcePath, artifactPath, kind, durationSeconds, time.Now())
	if err != nil {
		return fmt.Errorf("record artifact: %w", err)
	}
	return nil
}

// ArtifactPath retrieves the path previously recorded for (sourcePath, kind),
// used to short-circuit re-generation across processes sharing one queue.
func ArtifactPath(ctx context.Context, db *sql.DB, sourcePath, kind string) (string, error) {
	query := `SELECT artifact_path FROM artifact WHERE source_path = $1 AND kind = $2`

	var path string
	err := db.QueryRowContext(ctx, query, sourcePath, kind).Scan(&path)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("artifact path: %w", err)
	}
	return path, nil
}
