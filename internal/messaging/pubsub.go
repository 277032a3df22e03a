package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andresvillarreal/comprabot-backend/pkg/pubsub"
)

const attrMessageType = "message_type"

// PubSubDispatcher publishes token messages to the dispatch topic, where a
// downstream worker fans them out to WhatsApp/SMS/email providers.
type PubSubDispatcher struct {
	client *pubsub.Client
}

// NewPubSubDispatcher wraps the shared Pub/Sub client.
func NewPubSubDispatcher(client *pubsub.Client) (*PubSubDispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	return &PubSubDispatcher{client: client}, nil
}

// DispatchToken publishes one token message and waits for the broker ack.
func (d *PubSubDispatcher) DispatchToken(ctx context.Context, msg TokenMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding token message: %w", err)
	}
	return d.client.Publish(ctx, data, map[string]string{
		attrMessageType: "token_dispatch",
		"channel":       msg.Channel.String(),
	})
}
