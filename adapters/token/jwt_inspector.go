package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matenet/pin/ports"
)

// JWTInspector reads registered claims from session tokens that happen to
// be JWTs. The signature is not checked, only the backend can do that.
type JWTInspector struct {
	parser *jwt.Parser
}

var _ ports.TokenInspector = (*JWTInspector)(nil)

// NewJWTInspector creates a new inspector
func NewJWTInspector() *JWTInspector {
	return &JWTInspector{parser: jwt.NewParser()}
}

// ExpiresAt returns the exp claim. Opaque tokens and JWTs without exp
// report ok == false.
func (j *JWTInspector) ExpiresAt(tokenStr string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := j.parser.ParseUnverified(tokenStr, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Subject returns the sub claim, typically the wallet address
func (j *JWTInspector) Subject(tokenStr string) (string, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := j.parser.ParseUnverified(tokenStr, claims); err != nil {
		return "", false
	}
	return claims.Subject, claims.Subject != ""
}
