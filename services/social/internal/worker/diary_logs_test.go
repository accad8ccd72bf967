package worker

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/analytics"
	"github.com/example/movie-diary/services/social/internal/store"
)

func runJetStream(t *testing.T) *nats.Conn {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestDiaryLogConsumer_IndexesLoggedMovies(t *testing.T) {
	nc := runJetStream(t)
	log := zap.NewNop()
	s := store.NewInMemoryStore()

	c, err := NewDiaryLogConsumer(nc, s, 10, 100*time.Millisecond, log)
	require.NoError(t, err)
	t.Cleanup(c.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	pub := analytics.FromConn(nc, log)
	pub.Publish(analytics.SubjectMovieLogged, "diary.logged", "ana", map[string]any{
		"log_id":     "log-1",
		"tmdb_id":    603,
		"title":      "The Matrix",
		"rating":     9,
		"watched_at": time.Now().UTC(),
	})
	pub.Publish(analytics.SubjectMovieLogged, "diary.logged", "", map[string]any{"tmdb_id": 1})

	require.Eventually(t, func() bool {
		top, _ := s.TopRated(context.Background(), "ana", 8, 30)
		return len(top) == 1 && top[0] == 603
	}, 5*time.Second, 50*time.Millisecond)
}
