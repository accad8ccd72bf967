package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads the tables shared with the diary service.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) TopRated(ctx context.Context, userID string, minRating, limit int) ([]int64, error) {
	const q = `SELECT tmdb_id
	           FROM logs
	           WHERE user_id = $1 AND rating >= $2
	           GROUP BY tmdb_id
	           ORDER BY max(watched_at) DESC
	           LIMIT $3`
	return collect[int64](s.pool.Query(ctx, q, userID, minRating, limit))
}

func (s *PostgresStore) CoRaters(ctx context.Context, movieIDs []int64, minRating int, excludeUser string, limit int) ([]string, error) {
	if len(movieIDs) == 0 {
		return []string{}, nil
	}
	const q = `SELECT user_id
	           FROM logs
	           WHERE tmdb_id = ANY($1) AND rating >= $2 AND user_id <> $3
	           LIMIT $4`
	return collect[string](s.pool.Query(ctx, q, movieIDs, minRating, excludeUser, limit))
}

func (s *PostgresStore) Follow(ctx context.Context, follower, following string) error {
	if follower == following {
		return ErrSelfFollow
	}
	const q = `INSERT INTO relationships (follower_id, following_id)
	           VALUES ($1, $2)
	           ON CONFLICT (follower_id, following_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, follower, following)
	return err
}

func (s *PostgresStore) Unfollow(ctx context.Context, follower, following string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM relationships WHERE follower_id = $1 AND following_id = $2`, follower, following)
	return err
}

func (s *PostgresStore) IsFollowing(ctx context.Context, follower, following string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM relationships WHERE follower_id = $1 AND following_id = $2)`
	var ok bool
	err := s.pool.QueryRow(ctx, q, follower, following).Scan(&ok)
	return ok, err
}

func (s *PostgresStore) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return collect[string](s.pool.Query(ctx,
		`SELECT following_id FROM relationships WHERE follower_id = $1 ORDER BY following_id`, userID))
}

func (s *PostgresStore) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return collect[string](s.pool.Query(ctx,
		`SELECT follower_id FROM relationships WHERE following_id = $1 ORDER BY follower_id`, userID))
}

func (s *PostgresStore) Counts(ctx context.Context, userID string) (Counts, error) {
	const q = `SELECT
	             (SELECT count(*) FROM relationships WHERE following_id = $1),
	             (SELECT count(*) FROM relationships WHERE follower_id = $1)`
	var c Counts
	err := s.pool.QueryRow(ctx, q, userID).Scan(&c.Followers, &c.Following)
	return c, err
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p Profile) (Profile, error) {
	const q = `INSERT INTO profiles (id, username, avatar_url)
	           VALUES ($1, $2, NULLIF($3, ''))
	           ON CONFLICT (id) DO UPDATE SET
	             username = EXCLUDED.username,
	             avatar_url = EXCLUDED.avatar_url,
	             updated_at = now()
	           RETURNING id, username, COALESCE(avatar_url, '')`
	var out Profile
	err := s.pool.QueryRow(ctx, q, p.ID, p.Username, p.AvatarURL).Scan(&out.ID, &out.Username, &out.AvatarURL)
	return out, err
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	err := s.pool.QueryRow(ctx, `SELECT id, username, COALESCE(avatar_url, '') FROM profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.Username, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	return p, err
}

func (s *PostgresStore) ProfilesByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	if len(ids) == 0 {
		return []Profile{}, nil
	}
	return s.queryProfiles(ctx, `SELECT id, username, COALESCE(avatar_url, '') FROM profiles WHERE id = ANY($1)`, ids)
}

func (s *PostgresStore) SampleProfiles(ctx context.Context, excludeID string, limit int) ([]Profile, error) {
	return s.queryProfiles(ctx, `SELECT id, username, COALESCE(avatar_url, '')
	                             FROM profiles
	                             WHERE id <> $1
	                             ORDER BY random()
	                             LIMIT $2`, excludeID, limit)
}

func (s *PostgresStore) SearchProfiles(ctx context.Context, query string, limit int) ([]Profile, error) {
	return s.queryProfiles(ctx, `SELECT id, username, COALESCE(avatar_url, '')
	                             FROM profiles
	                             WHERE username ILIKE '%' || $1 || '%' ESCAPE '\'
	                             ORDER BY username
	                             LIMIT $2`, escapeLike(strings.TrimSpace(query)), limit)
}

func (s *PostgresStore) queryProfiles(ctx context.Context, q string, args ...any) ([]Profile, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Profile{}
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.AvatarURL); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Activity(ctx context.Context, userIDs []string, limit int) ([]ActivityItem, error) {
	if len(userIDs) == 0 {
		return []ActivityItem{}, nil
	}
	const q = `SELECT l.id, l.user_id, COALESCE(p.username, ''), COALESCE(p.avatar_url, ''),
	                  l.tmdb_id, COALESCE(m.title, ''), COALESCE(m.poster_path, ''),
	                  l.rating, COALESCE(l.review, ''), l.watched_at
	           FROM logs l
	           LEFT JOIN profiles p ON p.id = l.user_id
	           LEFT JOIN movies m ON m.tmdb_id = l.tmdb_id
	           WHERE l.user_id = ANY($1)
	           ORDER BY l.watched_at DESC
	           LIMIT $2`
	rows, err := s.pool.Query(ctx, q, userIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ActivityItem{}
	for rows.Next() {
		var a ActivityItem
		if err := rows.Scan(&a.LogID, &a.UserID, &a.Username, &a.AvatarURL,
			&a.MovieID, &a.Title, &a.PosterPath, &a.Rating, &a.Review, &a.WatchedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func collect[T any](rows pgx.Rows, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[T])
	if out == nil {
		out = []T{}
	}
	return out, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
