package ports

import "context"

// Store is a persisted key/value backing store.
// Get returns core.ErrKeyNotFound when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
