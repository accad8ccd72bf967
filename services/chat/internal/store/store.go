// Package store persists direct messages between two users.
package store

import (
	"context"
	"time"
)

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Between reports whether m belongs to the conversation of a and b.
func (m Message) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

type Store interface {
	Save(ctx context.Context, m Message) (Message, error)
	// History returns the latest limit messages of the a/b conversation, oldest first.
	History(ctx context.Context, a, b string, limit int) ([]Message, error)
}
