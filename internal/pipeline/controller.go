// Package pipeline orchestrates notification-driven ingestion: decode
// the notification, fetch the object, parse records, write to the
// warehouse, then settle the message.
package pipeline

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/loadstone/loadstone/internal/broker"
	"github.com/loadstone/loadstone/internal/deadletter"
	"github.com/loadstone/loadstone/internal/errors"
	"github.com/loadstone/loadstone/internal/notify"
	"github.com/loadstone/loadstone/internal/observability"
	"github.com/loadstone/loadstone/internal/server"
	"github.com/loadstone/loadstone/internal/storage"
	"github.com/loadstone/loadstone/internal/warehouse"
	"github.com/loadstone/loadstone/pkg/types"
)

// Controller runs the per-message pipeline. It holds only read-only
// handles, so distinct messages may be processed concurrently without
// coordination.
type Controller struct {
	decoder  *notify.Decoder
	store    storage.BlobStore
	writer   *warehouse.Writer
	router   *deadletter.Router
	shutdown *server.ShutdownManager
	metrics  *observability.Metrics
	log      zerolog.Logger
}

// NewController wires the pipeline stages together.
func NewController(
	decoder *notify.Decoder,
	store storage.BlobStore,
	writer *warehouse.Writer,
	router *deadletter.Router,
	shutdown *server.ShutdownManager,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Controller {
	return &Controller{
		decoder:  decoder,
		store:    store,
		writer:   writer,
		router:   router,
		shutdown: shutdown,
		metrics:  metrics,
		log:      log,
	}
}

// Run consumes the subscription until ctx is canceled or shutdown begins.
func (c *Controller) Run(ctx context.Context, listener broker.Listener) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-c.shutdown.ShutdownCh():
			cancel()
		case <-runCtx.Done():
		}
	}()

	return listener.Listen(runCtx, c.HandleMessage)
}

// HandleMessage is the streaming delivery callback. Every delivery ends
// in exactly one Ack or Nack; no error escapes to the broker client.
func (c *Controller) HandleMessage(ctx context.Context, msg broker.Message, ack broker.AckHandle) {
	if !c.shutdown.TrackMessage() {
		ack.Nack()
		return
	}
	defer c.shutdown.UntrackMessage()

	c.metrics.MessagesReceived.Inc()
	start := time.Now()

	key, err := c.process(ctx, msg.Data)
	c.metrics.ProcessingSeconds.Observe(time.Since(start).Seconds())

	if err == nil {
		ack.Ack()
		c.metrics.MessagesAcked.Inc()
		c.log.Info().Str("message_id", msg.ID).Str("object", key).Msg("message processed")
		return
	}

	c.settleFailure(ctx, msg.ID, key, err, ack)
}

// PullOnce fetches up to max messages, processes them sequentially, and
// acknowledges the settled subset in one batched call. Messages that
// fail and cannot be dead-lettered are left unacknowledged so the broker
// redelivers them. It returns the number of messages pulled.
func (c *Controller) PullOnce(ctx context.Context, puller broker.Puller, max int) (int, error) {
	msgs, err := puller.Pull(ctx, max)
	if err != nil {
		return 0, err
	}

	ackIDs := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if !c.shutdown.TrackMessage() {
			break
		}

		c.metrics.MessagesReceived.Inc()
		start := time.Now()
		key, perr := c.process(ctx, msg.Data)
		c.metrics.ProcessingSeconds.Observe(time.Since(start).Seconds())

		switch {
		case perr == nil:
			ackIDs = append(ackIDs, msg.AckID)
			c.metrics.MessagesAcked.Inc()
			c.log.Info().Str("object", key).Msg("message processed")
		case c.routeFailure(ctx, key, perr):
			// Recorded on the dead-letter topic; redelivery would
			// duplicate work.
			ackIDs = append(ackIDs, msg.AckID)
			c.metrics.MessagesAcked.Inc()
		default:
			c.metrics.MessagesNacked.Inc()
			c.log.Warn().Str("object", key).Err(perr).Msg("message left for redelivery")
		}
		c.shutdown.UntrackMessage()
	}

	if err := puller.Acknowledge(ctx, ackIDs); err != nil {
		return len(msgs), err
	}
	return len(msgs), nil
}

// process runs decode, fetch, parse, and write for one payload. It
// returns the object key (empty until decoded) and the stage error.
func (c *Controller) process(ctx context.Context, payload []byte) (string, error) {
	key, err := c.decoder.Decode(payload)
	if err != nil {
		return "", err
	}

	data, err := c.store.Fetch(ctx, key)
	if err != nil {
		return key, classifyFetch(key, err)
	}

	records, err := parseRecords(data)
	if err != nil {
		return key, err
	}

	if err := c.writer.WriteBatch(ctx, records); err != nil {
		return key, err
	}
	c.metrics.RecordsWritten.Add(float64(len(records)))
	return key, nil
}

// settleFailure converts a stage error into the message's terminal
// ack/nack. Decode failures nack directly; everything else consults the
// failure router.
func (c *Controller) settleFailure(ctx context.Context, msgID, key string, err error, ack broker.AckHandle) {
	stage := string(errors.GetCategory(err))
	if stage == "" {
		stage = "UNKNOWN"
	}
	c.metrics.StageFailures.WithLabelValues(stage).Inc()

	if errors.GetCategory(err) == errors.ErrCategoryDecode {
		c.log.Error().Str("message_id", msgID).Err(err).Msg("notification decode failed")
		ack.Nack()
		c.metrics.MessagesNacked.Inc()
		return
	}

	if c.routeFailure(ctx, key, err) {
		ack.Ack()
		c.metrics.MessagesAcked.Inc()
		return
	}
	ack.Nack()
	c.metrics.MessagesNacked.Inc()
	c.log.Warn().Str("message_id", msgID).Str("object", key).Err(err).
		Msg("message nacked for redelivery")
}

func (c *Controller) routeFailure(ctx context.Context, key string, err error) bool {
	if c.router.Route(ctx, key, err) {
		c.metrics.MessagesDeadLetter.Inc()
		return true
	}
	return false
}

// parseRecords interprets the fetched bytes. A JSON object is a
// single-record batch, a JSON array of objects is an N-record batch, and
// every other shape is rejected.
func parseRecords(data []byte) ([]types.Record, error) {
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, errors.NewParseError(errors.CodeBadJSON, "content is not valid JSON", err)
	}

	switch v := decoded.(type) {
	case map[string]interface{}:
		return []types.Record{types.Record(v)}, nil
	case []interface{}:
		records := make([]types.Record, 0, len(v))
		for _, elem := range v {
			obj, ok := elem.(map[string]interface{})
			if !ok {
				return nil, errors.NewParseError(errors.CodeBadShape,
					"array element is not an object", nil)
			}
			records = append(records, types.Record(obj))
		}
		return records, nil
	default:
		return nil, errors.NewParseError(errors.CodeBadShape,
			"content is neither a JSON object nor an array", nil)
	}
}

// classifyFetch maps blob store sentinels onto the error taxonomy.
// Transport failures stay retryable; missing or oversized objects fail
// the same way on every redelivery.
func classifyFetch(key string, err error) error {
	switch {
	case stderrors.Is(err, storage.ErrObjectNotFound):
		return errors.NewFetchError(errors.CodeNotFound, "object not found: "+key, err)
	case stderrors.Is(err, storage.ErrObjectTooLarge):
		return errors.NewFetchError(errors.CodeTooLarge, "object exceeds size limit: "+key, err)
	default:
		return errors.NewFetchError(errors.CodeTransport, "failed to fetch object: "+key, err)
	}
}
