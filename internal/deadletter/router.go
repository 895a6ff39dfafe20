// Package deadletter routes messages that failed processing to a
// dead-letter topic so the main subscription keeps draining.
package deadletter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Publisher sends a payload with attributes to a topic and returns the
// broker-assigned message ID.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Envelope is the dead-letter message body. It carries enough context to
// replay the original object later.
type Envelope struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Router decides the fate of a failed message. With a configured
// publisher it forwards failure context to the dead-letter topic; without
// one every failure is left to broker redelivery.
type Router struct {
	pub Publisher
	log zerolog.Logger
}

// NewRouter creates a Router. pub may be nil when no dead-letter topic is
// configured.
func NewRouter(pub Publisher, log zerolog.Logger) *Router {
	return &Router{pub: pub, log: log}
}

// Route handles a terminal processing failure for the object key.
// It returns true when the failure was captured on the dead-letter topic
// and the original message can be acknowledged, false when the message
// should be redelivered.
func (r *Router) Route(ctx context.Context, key string, reason error) bool {
	if r.pub == nil {
		r.log.Warn().Str("object", key).Err(reason).
			Msg("no dead-letter topic configured, leaving message for redelivery")
		return false
	}

	env := Envelope{
		ID:        uuid.NewString(),
		Filename:  key,
		Error:     reason.Error(),
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		r.log.Error().Str("object", key).Err(err).
			Msg("failed to encode dead-letter envelope")
		return false
	}

	attrs := map[string]string{"origin": "loadstone", "filename": key}
	msgID, err := r.pub.Publish(ctx, data, attrs)
	if err != nil {
		r.log.Error().Str("object", key).Err(err).
			Msg("failed to publish to dead-letter topic")
		return false
	}

	r.log.Info().Str("object", key).Str("message_id", msgID).
		Str("envelope_id", env.ID).Msg("routed failure to dead-letter topic")
	return true
}
