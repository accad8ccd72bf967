package natsconn

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Embedded is an in-process NATS server with JetStream, used when no broker
// is reachable outside production.
type Embedded struct {
	Server *server.Server
	Conn   *nats.Conn
	dir    string
}

// StartEmbedded boots a loopback-only server on a random port and connects to it.
// storeDir may be empty, in which case a temporary directory is used and
// removed on Close.
func StartEmbedded(name, storeDir string, log *zap.Logger) (*Embedded, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := storeDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "movie-diary-nats-")
		if err != nil {
			return nil, fmt.Errorf("nats embedded: store dir: %w", err)
		}
		dir = tmp
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: name,
		Host:       "127.0.0.1",
		Port:       -1,
		JetStream:  true,
		StoreDir:   dir,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("nats embedded: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("nats embedded: server not ready")
	}

	nc, err := nats.Connect(ns.ClientURL(), nats.Name(name))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("nats embedded connect: %w", err)
	}
	log.Info("embedded nats started", zap.String("url", ns.ClientURL()), zap.String("store_dir", dir))

	e := &Embedded{Server: ns, Conn: nc}
	if storeDir == "" {
		e.dir = dir
	}
	return e, nil
}

func (e *Embedded) Close() {
	e.Conn.Close()
	e.Server.Shutdown()
	e.Server.WaitForShutdown()
	if e.dir != "" {
		_ = os.RemoveAll(e.dir)
	}
}
