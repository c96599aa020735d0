package ports

import "time"

// TokenInspector reads client visible claims from an opaque session token
type TokenInspector interface {
	// ExpiresAt returns the expiry of the token, ok is false when the
	// token carries no readable expiry
	ExpiresAt(token string) (exp time.Time, ok bool)
}
