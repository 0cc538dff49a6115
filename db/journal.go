// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/tallywatch/models"
)

const etagKey = "manifest_etag"

// Journal records the manifest validation token and the history of refresh
// cycles.
type Journal struct {
	conn   *sql.DB
	dbType string
}

// Open connects to the database and migrates it. For sqlite, url is a file
// path whose directory is created if needed.
func Open(dbType, url string) (*Journal, error) {
	dsn := url
	switch dbType {
	case TypeSQLite:
		if dir := filepath.Dir(url); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = sqliteDSN(url)
	case TypePostgres:
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	conn, err := sql.Open(dbType, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(conn, dbType); err != nil {
		conn.Close()
		return nil, err
	}

	return &Journal{conn: conn, dbType: dbType}, nil
}

func (j *Journal) Close() error {
	return j.conn.Close()
}

// LoadETag returns the stored validation token, or "" when none was saved.
func (j *Journal) LoadETag(ctx context.Context) (string, error) {
	var etag string
	err := j.conn.QueryRowContext(ctx,
		rebind(j.dbType, `SELECT value FROM sync_state WHERE key = ?`), etagKey,
	).Scan(&etag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load etag: %w", err)
	}
	return etag, nil
}

// SaveETag stores the validation token. An empty token is stored as well, so
// a reconstructed manifest is not followed by a conditional request.
func (j *Journal) SaveETag(ctx context.Context, etag string) error {
	_, err := j.conn.ExecContext(ctx, rebind(j.dbType, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`), etagKey, etag, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save etag: %w", err)
	}
	return nil
}

// RecordRun stores one refresh cycle and returns it with its ID set.
func (j *Journal) RecordRun(ctx context.Context, run models.SyncRun) (models.SyncRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()

	_, err := j.conn.ExecContext(ctx, rebind(j.dbType, `
		INSERT INTO sync_run (id, started_at, finished_at, outcome, manifest_entries, fetched, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), run.ID, run.StartedAt, run.FinishedAt, run.Outcome, run.ManifestEntries, run.Fetched, run.Error)
	if err != nil {
		return run, fmt.Errorf("failed to record sync run: %w", err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	rows, err := j.conn.QueryContext(ctx, rebind(j.dbType, `
		SELECT id, started_at, finished_at, outcome, manifest_entries, fetched, error
		FROM sync_run
		ORDER BY started_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	runs := []models.SyncRun{}
	for rows.Next() {
		var run models.SyncRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Outcome,
			&run.ManifestEntries, &run.Fetched, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sync runs: %w", err)
	}
	return runs, nil
}
