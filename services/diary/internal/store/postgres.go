package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const movieColumns = `m.tmdb_id, COALESCE(m.title, ''), COALESCE(m.poster_path, ''), COALESCE(m.backdrop_path, ''),
	COALESCE(to_char(m.release_date, 'YYYY-MM-DD'), ''), m.runtime,
	COALESCE(m.genres, '[]'::jsonb), COALESCE(m.production_countries, '[]'::jsonb),
	COALESCE(m.vote_average, 0), COALESCE(m.cast_data, '[]'::jsonb)`

// movieScan receives movieColumns from a LEFT JOIN.
type movieScan struct {
	id *int64
	m  Movie
}

func (ms *movieScan) dest() []any {
	return []any{&ms.id, &ms.m.Title, &ms.m.PosterPath, &ms.m.BackdropPath, &ms.m.ReleaseDate, &ms.m.Runtime,
		&ms.m.Genres, &ms.m.ProductionCountries, &ms.m.VoteAverage, &ms.m.Cast}
}

func (ms *movieScan) movie() *Movie {
	if ms.id == nil {
		return nil
	}
	m := ms.m
	m.ID = *ms.id
	return &m
}

func (s *PostgresStore) UpsertMovie(ctx context.Context, m Movie) error {
	const q = `INSERT INTO movies (tmdb_id, title, poster_path, backdrop_path, release_date, runtime,
	                               genres, production_countries, vote_average, cast_data)
	           VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, '')::date, $6, $7, $8, $9, $10)
	           ON CONFLICT (tmdb_id) DO UPDATE SET
	             title = EXCLUDED.title,
	             poster_path = EXCLUDED.poster_path,
	             backdrop_path = EXCLUDED.backdrop_path,
	             release_date = EXCLUDED.release_date,
	             runtime = EXCLUDED.runtime,
	             genres = EXCLUDED.genres,
	             production_countries = EXCLUDED.production_countries,
	             vote_average = EXCLUDED.vote_average,
	             cast_data = EXCLUDED.cast_data,
	             updated_at = now()`
	_, err := s.pool.Exec(ctx, q, m.ID, m.Title, m.PosterPath, m.BackdropPath, m.ReleaseDate, m.Runtime,
		nonNil(m.Genres), nonNil(m.ProductionCountries), m.VoteAverage, nonNil(m.Cast))
	return err
}

func (s *PostgresStore) GetMovie(ctx context.Context, id int64) (Movie, error) {
	var ms movieScan
	err := s.pool.QueryRow(ctx, `SELECT `+movieColumns+` FROM movies m WHERE m.tmdb_id = $1`, id).Scan(ms.dest()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Movie{}, ErrMovieNotFound
	}
	if err != nil {
		return Movie{}, err
	}
	return *ms.movie(), nil
}

func (s *PostgresStore) CreateLog(ctx context.Context, l Log) (Log, error) {
	l.ID = uuid.NewString()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO logs (id, user_id, tmdb_id, rating, review, watched_at, is_rewatch, custom_poster_path)
		           VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		           RETURNING created_at`
		if err := tx.QueryRow(ctx, q, l.ID, l.UserID, l.MovieID, l.Rating, l.Review, l.WatchedAt,
			l.IsRewatch, l.CustomPosterPath).Scan(&l.CreatedAt); err != nil {
			return err
		}
		return insertCompanions(ctx, tx, l.ID, l.Companions)
	})
	if err != nil {
		return Log{}, err
	}
	if l.Companions == nil {
		l.Companions = []string{}
	}
	return l, nil
}

func (s *PostgresStore) UpdateLog(ctx context.Context, l Log) (Log, error) {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		const q = `UPDATE logs SET rating = $3, review = $4, watched_at = COALESCE($5, watched_at),
		                           is_rewatch = $6, custom_poster_path = NULLIF($7, '')
		           WHERE id = $1 AND user_id = $2
		           RETURNING tmdb_id, watched_at, created_at`
		var watched *time.Time
		if !l.WatchedAt.IsZero() {
			watched = &l.WatchedAt
		}
		err := tx.QueryRow(ctx, q, l.ID, l.UserID, l.Rating, l.Review, watched, l.IsRewatch,
			l.CustomPosterPath).Scan(&l.MovieID, &l.WatchedAt, &l.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLogNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM log_companions WHERE log_id = $1`, l.ID); err != nil {
			return err
		}
		return insertCompanions(ctx, tx, l.ID, l.Companions)
	})
	if err != nil {
		return Log{}, err
	}
	if l.Companions == nil {
		l.Companions = []string{}
	}
	return l, nil
}

func insertCompanions(ctx context.Context, tx pgx.Tx, logID string, companions []string) error {
	if len(companions) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `INSERT INTO log_companions (log_id, user_id)
	                        SELECT $1, unnest($2::text[])
	                        ON CONFLICT DO NOTHING`, logID, companions)
	return err
}

const logColumns = `l.id, l.user_id, l.tmdb_id, l.rating, COALESCE(l.review, ''), l.watched_at, l.is_rewatch,
	COALESCE(l.custom_poster_path, ''), l.created_at,
	COALESCE((SELECT array_agg(c.user_id ORDER BY c.user_id) FROM log_companions c WHERE c.log_id = l.id), '{}')`

func logDest(l *Log) []any {
	return []any{&l.ID, &l.UserID, &l.MovieID, &l.Rating, &l.Review, &l.WatchedAt, &l.IsRewatch,
		&l.CustomPosterPath, &l.CreatedAt, &l.Companions}
}

func (s *PostgresStore) GetLog(ctx context.Context, id string) (Log, error) {
	var l Log
	err := s.pool.QueryRow(ctx, `SELECT `+logColumns+` FROM logs l WHERE l.id = $1`, id).Scan(logDest(&l)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Log{}, ErrLogNotFound
	}
	return l, err
}

func (s *PostgresStore) ListLogs(ctx context.Context, userID string) ([]LogWithMovie, error) {
	q := `SELECT ` + logColumns + `, ` + movieColumns + `
	      FROM logs l
	      LEFT JOIN movies m ON m.tmdb_id = l.tmdb_id
	      WHERE l.user_id = $1
	      ORDER BY l.watched_at DESC, l.created_at DESC`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LogWithMovie{}
	for rows.Next() {
		var lw LogWithMovie
		var ms movieScan
		if err := rows.Scan(append(logDest(&lw.Log), ms.dest()...)...); err != nil {
			return nil, err
		}
		lw.Movie = ms.movie()
		out = append(out, lw)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddToWatchlist(ctx context.Context, userID string, movieID int64) (WatchlistEntry, error) {
	const q = `INSERT INTO watchlist (user_id, tmdb_id)
	           VALUES ($1, $2)
	           RETURNING user_id, tmdb_id, added_at`
	var e WatchlistEntry
	err := s.pool.QueryRow(ctx, q, userID, movieID).Scan(&e.UserID, &e.MovieID, &e.AddedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return WatchlistEntry{}, ErrAlreadyInWatchlist
	}
	if err != nil {
		return WatchlistEntry{}, err
	}
	if m, err := s.GetMovie(ctx, movieID); err == nil {
		e.Movie = &m
	}
	return e, nil
}

func (s *PostgresStore) RemoveFromWatchlist(ctx context.Context, userID string, movieID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM watchlist WHERE user_id = $1 AND tmdb_id = $2`, userID, movieID)
	return err
}

func (s *PostgresStore) ListWatchlist(ctx context.Context, userID string) ([]WatchlistEntry, error) {
	q := `SELECT w.user_id, w.tmdb_id, w.added_at, ` + movieColumns + `
	      FROM watchlist w
	      LEFT JOIN movies m ON m.tmdb_id = w.tmdb_id
	      WHERE w.user_id = $1
	      ORDER BY w.added_at DESC, w.tmdb_id`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []WatchlistEntry{}
	for rows.Next() {
		var e WatchlistEntry
		var ms movieScan
		if err := rows.Scan(append([]any{&e.UserID, &e.MovieID, &e.AddedAt}, ms.dest()...)...); err != nil {
			return nil, err
		}
		e.Movie = ms.movie()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UserBadges(ctx context.Context, userID string) ([]UserBadge, error) {
	return s.queryBadges(ctx, `SELECT user_id, badge_code, earned_at
	                           FROM user_badges
	                           WHERE user_id = $1
	                           ORDER BY badge_code`, userID)
}

func (s *PostgresStore) AwardBadges(ctx context.Context, userID string, codes []string) ([]UserBadge, error) {
	if len(codes) == 0 {
		return []UserBadge{}, nil
	}
	return s.queryBadges(ctx, `INSERT INTO user_badges (user_id, badge_code)
	                           SELECT $1, unnest($2::text[])
	                           ON CONFLICT (user_id, badge_code) DO NOTHING
	                           RETURNING user_id, badge_code, earned_at`, userID, codes)
}

func (s *PostgresStore) queryBadges(ctx context.Context, q string, args ...any) ([]UserBadge, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []UserBadge{}
	for rows.Next() {
		var b UserBadge
		if err := rows.Scan(&b.UserID, &b.Code, &b.EarnedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
