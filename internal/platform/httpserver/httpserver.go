// Package httpserver wraps net/http.Server with the router, probes and
// request plumbing every service shares.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Server struct {
	HTTP *http.Server
	log  *zap.Logger
}

type Options struct {
	Addr   string
	Logger *zap.Logger
	// Router defaults to a bare SetupRouter router serving only the probes.
	Router chi.Router
}

// New leaves WriteTimeout unset: websocket and long-poll handlers manage
// their own deadlines.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "http"))
	if opts.Router == nil {
		r := chi.NewRouter()
		SetupRouter(r, RouterConfig{Logger: log})
		opts.Router = r
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           opts.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       90 * time.Second,
		MaxHeaderBytes:    64 << 10,
		ErrorLog:          zap.NewStdLog(log.WithOptions(zap.IncreaseLevel(zap.WarnLevel))),
	}
	return &Server{HTTP: srv, log: log}
}

func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.HTTP.Addr))
	return s.HTTP.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Hijacked websocket connections are not tracked and close with the process.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server draining")
	return s.HTTP.Shutdown(ctx)
}
