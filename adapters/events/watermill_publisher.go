package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/matenet/pin/ports"
)

const DefaultTopic = "pin.session"

// Session event types
const (
	TypeAuthenticated = "authenticated"
	TypeLoggedOut     = "logged_out"
)

// SessionEvent is published whenever the local session starts or ends
type SessionEvent struct {
	Type    string    `json:"type"`
	Address string    `json:"address"`
	Time    time.Time `json:"time"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher, an empty topic
// selects DefaultTopic
func NewWatermillPublisher(publisher message.Publisher, topic string) ports.EventPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
	}
}

func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, address string) error {
	return p.publish(ctx, TypeAuthenticated, address)
}

func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string) error {
	return p.publish(ctx, TypeLoggedOut, address)
}

func (p *WatermillPublisher) publish(ctx context.Context, typ, address string) error {
	event := SessionEvent{
		Type:    typ,
		Address: address,
		Time:    p.now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("type", typ)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
