package ports

import "context"

// EventPublisher publishes session lifecycle events
type EventPublisher interface {
	PublishAuthenticated(ctx context.Context, address string) error
	PublishLogout(ctx context.Context, address string) error
}
