package pin

import (
	"context"
	"time"

	"github.com/matenet/pin/adapters/token"
)

// SessionInfo describes the stored session token. Subject and ExpiresAt
// are only known for JWT tokens.
type SessionInfo struct {
	Token     string
	Subject   string
	ExpiresAt time.Time
}

// Expires reports whether the token carries an expiry
func (s SessionInfo) Expires() bool {
	return !s.ExpiresAt.IsZero()
}

func describeToken(raw string) SessionInfo {
	info := SessionInfo{Token: raw}
	inspector := token.NewJWTInspector()
	if sub, ok := inspector.Subject(raw); ok {
		info.Subject = sub
	}
	if exp, ok := inspector.ExpiresAt(raw); ok {
		info.ExpiresAt = exp
	}
	return info
}

// Session describes the stored session token
func (c *Client) Session(ctx context.Context) (SessionInfo, error) {
	raw, err := c.sessions.Get(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	return describeToken(raw), nil
}
