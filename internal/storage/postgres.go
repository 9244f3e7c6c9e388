package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"restaurant-pos/internal/database"
)

// PostgresStore keeps snapshots in the pos_snapshots table.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore expects the migrations under migrations/ to have run.
// The store takes ownership of db.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRow(ctx, database.GetSnapshotSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	return s.db.Exec(ctx, database.UpsertSnapshotSQL, key, value)
}

func (s *PostgresStore) SetMany(ctx context.Context, entries map[string]string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for k, v := range entries {
		if _, err := tx.Exec(ctx, database.UpsertSnapshotSQL, k, v); err != nil {
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}
	return tx.Commit(ctx)
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
