package ports

import "context"

// EventPublisher publishes auth lifecycle events to notify other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, address string, subjectID string) error
	PublishLogout(ctx context.Context, address string) error
	PublishVerified(ctx context.Context, address string) error
}
