package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/movie-diary/services/chat/internal/store"
)

func runNATS(t *testing.T) *nats.Conn {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestSubject_SortedPair(t *testing.T) {
	assert.Equal(t, "chat.messages.ana.bob", Subject("bob", "ana"))
	assert.Equal(t, Subject("ana", "bob"), Subject("bob", "ana"))
}

func TestSend_PersistsAndPublishes(t *testing.T) {
	nc := runNATS(t)
	sub, err := nc.SubscribeSync(Subject("me", "ana"))
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	svc := New(store.NewInMemoryStore(), nc, nil, nil)
	sent, err := svc.Send(context.Background(), "me", "ana", "  hola  ")
	require.NoError(t, err)
	assert.Equal(t, "hola", sent.Body)

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var got store.Message
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, sent.ID, got.ID)

	history, err := svc.History(context.Background(), "ana", "me")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestSend_Rejections(t *testing.T) {
	svc := New(store.NewInMemoryStore(), nil, nil, nil)

	_, err := svc.Send(context.Background(), "me", "me", "hi")
	assert.ErrorIs(t, err, ErrSelfMessage)

	_, err = svc.Send(context.Background(), "me", "ana", "   ")
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = svc.Send(context.Background(), "me", "chat.*", "hi")
	assert.ErrorIs(t, err, ErrInvalidPeer)
}
