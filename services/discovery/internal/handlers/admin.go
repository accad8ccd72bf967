package handlers

import (
	"net/http"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/services/discovery/internal/cache"
)

type purgeResponse struct {
	Purged    bool `json:"purged"`
	Broadcast bool `json:"broadcast"`
}

// PurgeCache handles POST /v1/admin/discovery/cache/purge. The local cache is
// purged directly; other replicas are told over NATS when connected.
func PurgeCache(c cache.Cache, nc *nats.Conn, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.Purge(r.Context()); err != nil {
			log.Error("cache purge failed", zap.Error(err))
			api.Internal(w, requestID(r))
			return
		}
		broadcast := false
		if nc != nil {
			if err := cache.PublishInvalidation(nc, "ALL"); err != nil {
				log.Warn("cache invalidation broadcast failed", zap.Error(err))
			} else {
				broadcast = true
			}
		}
		api.WriteJSON(w, http.StatusOK, purgeResponse{Purged: true, Broadcast: broadcast})
	}
}
