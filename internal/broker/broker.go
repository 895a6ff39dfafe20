// Package broker connects the pipeline to the message broker. It hides
// the Pub/Sub client behind small interfaces so the pipeline can be
// tested without a broker.
package broker

import "context"

// AckHandle settles a single delivered message. Exactly one of Ack or
// Nack must be called per delivery.
type AckHandle interface {
	// Ack confirms the message so the broker stops redelivering it.
	Ack()
	// Nack returns the message for redelivery.
	Nack()
}

// Message is one delivery from the broker.
type Message struct {
	// ID is the broker-assigned message identifier.
	ID string
	// Data is the raw notification payload.
	Data []byte
	// Attributes carries broker metadata such as the event type.
	Attributes map[string]string
}

// Handler processes one delivery and settles it through the handle.
type Handler func(ctx context.Context, msg Message, ack AckHandle)

// Listener delivers messages continuously until the context is canceled.
type Listener interface {
	Listen(ctx context.Context, h Handler) error
	Close() error
}

// PulledMessage is one delivery obtained through a synchronous pull.
// Settlement happens in bulk through the Puller, not per message.
type PulledMessage struct {
	AckID      string
	Data       []byte
	Attributes map[string]string
}

// Puller fetches a bounded batch of messages and acknowledges a chosen
// subset. Unacknowledged messages redeliver after the ack deadline.
type Puller interface {
	Pull(ctx context.Context, max int) ([]PulledMessage, error)
	Acknowledge(ctx context.Context, ackIDs []string) error
	Close() error
}

// TopicPublisher publishes a payload to a topic and returns the
// broker-assigned message ID once the publish is confirmed.
type TopicPublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
	Close() error
}
