package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pollpass/vigil/ports"
)

const (
	TopicLogin    = "vigil.login"
	TopicLogout   = "vigil.logout"
	TopicVerified = "vigil.verified"
)

// AuthEvent represents an auth lifecycle event
type AuthEvent struct {
	Address   string `json:"address"`
	SubjectID string `json:"subject_id,omitempty"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, address string, subjectID string) error {
	return p.publish(TopicLogin, AuthEvent{Address: address, SubjectID: subjectID})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string) error {
	return p.publish(TopicLogout, AuthEvent{Address: address})
}

// PublishVerified publishes an identity-verified event
func (p *WatermillPublisher) PublishVerified(ctx context.Context, address string) error {
	return p.publish(TopicVerified, AuthEvent{Address: address})
}

func (p *WatermillPublisher) publish(topic string, event AuthEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
