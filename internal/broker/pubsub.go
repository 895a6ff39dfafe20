package broker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	subapi "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/rs/zerolog"
)

type pubsubAck struct {
	msg *pubsub.Message
}

func (a pubsubAck) Ack()  { a.msg.Ack() }
func (a pubsubAck) Nack() { a.msg.Nack() }

// PubSubListener implements Listener on a Pub/Sub subscription using the
// streaming pull API.
type PubSubListener struct {
	client *pubsub.Client
	sub    *pubsub.Subscription
	log    zerolog.Logger
}

// NewPubSubListener connects to the subscription. maxOutstanding bounds
// the number of unsettled messages held by the client at once;
// ackDeadline caps how long the client extends a message lease.
func NewPubSubListener(ctx context.Context, projectID, subscriptionID string, maxOutstanding int, ackDeadline time.Duration, log zerolog.Logger) (*PubSubListener, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	sub := client.Subscription(subscriptionID)
	sub.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	if ackDeadline > 0 {
		sub.ReceiveSettings.MaxExtension = ackDeadline
	}
	return &PubSubListener{client: client, sub: sub, log: log}, nil
}

// Listen blocks delivering messages to h until ctx is canceled.
// A canceled context is a clean shutdown, not an error.
func (l *PubSubListener) Listen(ctx context.Context, h Handler) error {
	l.log.Info().Str("subscription", l.sub.ID()).Msg("listening for notifications")
	err := l.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		h(ctx, Message{ID: m.ID, Data: m.Data, Attributes: m.Attributes}, pubsubAck{msg: m})
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("subscription receive failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (l *PubSubListener) Close() error {
	return l.client.Close()
}

// PubSubPuller implements Puller through the low-level subscriber API,
// which exposes the synchronous pull and bulk acknowledge calls the
// high-level client hides.
type PubSubPuller struct {
	client       *subapi.SubscriberClient
	subscription string
	log          zerolog.Logger
}

// NewPubSubPuller connects a synchronous puller to the subscription.
func NewPubSubPuller(ctx context.Context, projectID, subscriptionID string, log zerolog.Logger) (*PubSubPuller, error) {
	client, err := subapi.NewSubscriberClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber client: %w", err)
	}
	name := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subscriptionID)
	return &PubSubPuller{client: client, subscription: name, log: log}, nil
}

// Pull fetches up to max messages. An empty result means the backlog is
// drained right now, not that the subscription is closed.
func (p *PubSubPuller) Pull(ctx context.Context, max int) ([]PulledMessage, error) {
	resp, err := p.client.Pull(ctx, &pubsubpb.PullRequest{
		Subscription: p.subscription,
		MaxMessages:  int32(max),
	})
	if err != nil {
		return nil, fmt.Errorf("pull failed: %w", err)
	}

	out := make([]PulledMessage, 0, len(resp.ReceivedMessages))
	for _, rm := range resp.ReceivedMessages {
		out = append(out, PulledMessage{
			AckID:      rm.AckId,
			Data:       rm.Message.Data,
			Attributes: rm.Message.Attributes,
		})
	}
	p.log.Debug().Int("messages", len(out)).Msg("pulled batch")
	return out, nil
}

// Acknowledge settles the given ack IDs in one call.
func (p *PubSubPuller) Acknowledge(ctx context.Context, ackIDs []string) error {
	if len(ackIDs) == 0 {
		return nil
	}
	err := p.client.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: p.subscription,
		AckIds:       ackIDs,
	})
	if err != nil {
		return fmt.Errorf("acknowledge failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (p *PubSubPuller) Close() error {
	return p.client.Close()
}

// PubSubPublisher implements TopicPublisher on a Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher connects a publisher to the topic.
func NewPubSubPublisher(ctx context.Context, projectID, topicID string) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client, topic: client.Topic(topicID)}, nil
}

// Publish sends one message and blocks until the broker confirms it.
func (p *PubSubPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish failed: %w", err)
	}
	return id, nil
}

// Close flushes pending publishes and releases the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
