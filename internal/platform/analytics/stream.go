package analytics

import (
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StreamName is the JetStream stream that retains every analytics.> event.
const StreamName = "ANALYTICS"

// EnsureStream creates the ANALYTICS stream when it does not exist yet.
func EnsureStream(js nats.JetStreamContext, log *zap.Logger) error {
	// Publishers set Nats-Msg-Id to the event id, so a retry inside the
	// Duplicates window is stored once.
	cfg := &nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{"analytics.>"},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		MaxAge:     30 * 24 * time.Hour,
		Duplicates: 2 * time.Minute,
	}
	_, err := js.AddStream(cfg)
	if err == nil {
		log.Info("analytics: stream created", zap.String("stream", StreamName))
		return nil
	}
	if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		if _, err := js.UpdateStream(cfg); err != nil {
			log.Warn("analytics: stream update failed", zap.Error(err))
		}
		return nil
	}
	return err
}
