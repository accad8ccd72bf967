package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresHiddenStore persists hidden items in Postgres.
type PostgresHiddenStore struct {
	pool *pgxpool.Pool
}

func NewPostgresHiddenStore(pool *pgxpool.Pool) *PostgresHiddenStore {
	return &PostgresHiddenStore{pool: pool}
}

func (s *PostgresHiddenStore) Hide(ctx context.Context, userID string, movieID int64) (HiddenItem, error) {
	const q = `INSERT INTO hidden_items (user_id, tmdb_id)
	           VALUES ($1, $2)
	           RETURNING user_id, tmdb_id, created_at`
	var out HiddenItem
	err := s.pool.QueryRow(ctx, q, userID, movieID).Scan(&out.UserID, &out.MovieID, &out.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return HiddenItem{}, ErrAlreadyHidden
	}
	return out, err
}

func (s *PostgresHiddenStore) Unhide(ctx context.Context, userID string, movieID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM hidden_items WHERE user_id = $1 AND tmdb_id = $2`, userID, movieID)
	return err
}

func (s *PostgresHiddenStore) List(ctx context.Context, userID string) ([]HiddenItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, tmdb_id, created_at
	                                FROM hidden_items
	                                WHERE user_id = $1
	                                ORDER BY created_at DESC, tmdb_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HiddenItem{}
	for rows.Next() {
		var it HiddenItem
		if err := rows.Scan(&it.UserID, &it.MovieID, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PostgresHiddenStore) HiddenMovieIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT tmdb_id FROM hidden_items WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
