package ports

import "context"

// SessionStore holds at most one session token.
// Get returns core.ErrNoSession when nothing is stored. ClearIf only clears
// while token is still the stored one and reports whether it did.
type SessionStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	ClearIf(ctx context.Context, token string) (bool, error)
}
