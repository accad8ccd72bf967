package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, m Message) (Message, error) {
	const q = `INSERT INTO chat_messages (id, sender_id, receiver_id, body)
	           VALUES ($1, $2, $3, $4)
	           RETURNING created_at`
	m.ID = uuid.NewString()
	err := s.pool.QueryRow(ctx, q, m.ID, m.SenderID, m.ReceiverID, m.Body).Scan(&m.CreatedAt)
	return m, err
}

func (s *PostgresStore) History(ctx context.Context, a, b string, limit int) ([]Message, error) {
	const q = `SELECT id, sender_id, receiver_id, body, created_at FROM (
	             SELECT id, sender_id, receiver_id, body, created_at
	             FROM chat_messages
	             WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
	             ORDER BY created_at DESC
	             LIMIT $3
	           ) recent
	           ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, q, a, b, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
