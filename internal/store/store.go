package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nebula-panel/static-delete/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store keeps the deletion audit log in Postgres.
type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) bootstrap(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS static_deletions (
			id          TEXT PRIMARY KEY,
			location    TEXT NOT NULL,
			path        TEXT NOT NULL,
			method      TEXT NOT NULL,
			remote_addr TEXT NOT NULL DEFAULT '',
			request_id  TEXT NOT NULL DEFAULT '',
			dry_run     BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at  TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("bootstrap static_deletions: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS static_deletions_deleted_at_idx
		ON static_deletions (deleted_at DESC)`)
	if err != nil {
		return fmt.Errorf("bootstrap static_deletions index: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.db.Close()
}

// RecordDeletion stores d, filling in ID and DeletedAt when they are empty.
func (s *Store) RecordDeletion(ctx context.Context, d models.Deletion) (models.Deletion, error) {
	if d.ID == "" {
		d.ID = "del_" + uuid.NewString()
	}
	if d.DeletedAt.IsZero() {
		d.DeletedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO static_deletions (id, location, path, method, remote_addr, request_id, dry_run, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.Location, d.Path, d.Method, d.RemoteAddr, d.RequestID, d.DryRun, d.DeletedAt)
	if err != nil {
		return models.Deletion{}, fmt.Errorf("record deletion: %w", err)
	}
	return d, nil
}

// ListDeletions returns the newest records first.
func (s *Store) ListDeletions(ctx context.Context, limit int) ([]models.Deletion, error) {
	limit = clampLimit(limit)
	rows, err := s.db.Query(ctx, `
		SELECT id, location, path, method, remote_addr, request_id, dry_run, deleted_at
		FROM static_deletions
		ORDER BY deleted_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deletions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Deletion, error) {
		var d models.Deletion
		err := row.Scan(&d.ID, &d.Location, &d.Path, &d.Method, &d.RemoteAddr, &d.RequestID, &d.DryRun, &d.DeletedAt)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("list deletions: %w", err)
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
