// Package gatewaytest provides an in-process stand-in for the pin backend
// REST API, for use in tests.
package gatewaytest

import (
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matenet/pin/core"
	"github.com/shopspring/decimal"
)

// PointsPerPin is credited when a pin is paired
var PointsPerPin = decimal.NewFromInt(100)

// Server is a running stub backend
type Server struct {
	*httptest.Server
	Backend *Backend
}

// NewServer starts a stub backend on a loopback port
func NewServer() *Server {
	b := NewBackend()
	return &Server{Server: httptest.NewServer(setupRouter(b)), Backend: b}
}

// Backend holds the stub state. Hooks may be set before requests are made.
type Backend struct {
	// NonceFunc overrides nonce generation
	NonceFunc func() string
	// VerifyHook, when it returns non-nil, short-circuits verification
	VerifyHook func(message, signature string) *core.VerifyResult
	// Domain, when set, must match the domain of submitted messages
	Domain string
	// NonceCookie binds each nonce to a cookie set by the nonce call.
	// Verification then fails without that cookie.
	NonceCookie bool
	// TokenTTL is the lifetime of issued tokens
	TokenTTL time.Duration

	NonceCalls  atomic.Int64
	VerifyCalls atomic.Int64

	tokens *tokenizer

	mu       sync.Mutex
	nonces   map[string]bool   // nonce -> consumed
	sessions map[string]string // cookie -> nonce
	users    map[string]*core.User
	byNFC    map[string]string
	requests map[string][]core.FriendRequest
}

// NewBackend creates empty stub state
func NewBackend() *Backend {
	return &Backend{
		TokenTTL: time.Hour,
		tokens:   newTokenizer(),
		nonces:   make(map[string]bool),
		sessions: make(map[string]string),
		users:    make(map[string]*core.User),
		byNFC:    make(map[string]string),
		requests: make(map[string][]core.FriendRequest),
	}
}

// IssueToken mints a valid session token for address
func (b *Backend) IssueToken(address string) (string, error) {
	return b.tokens.issue(strings.ToLower(address), b.TokenTTL)
}

// AddUser seeds a user and returns it
func (b *Backend) AddUser(walletAddress, username string) core.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.addUserLocked(walletAddress, username)
}

// UserByAddress returns the stored user for a wallet
func (b *Backend) UserByAddress(walletAddress string) (core.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[strings.ToLower(walletAddress)]
	if !ok {
		return core.User{}, false
	}
	return *u, true
}

// PendingRequests returns the requests waiting on userID
func (b *Backend) PendingRequests(userID string) []core.FriendRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.FriendRequest(nil), b.requests[userID]...)
}

func (b *Backend) addUserLocked(walletAddress, username string) *core.User {
	key := strings.ToLower(walletAddress)
	if u, ok := b.users[key]; ok {
		return u
	}
	u := &core.User{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		Username:      username,
		Points:        decimal.Zero,
	}
	b.users[key] = u
	return u
}

func (b *Backend) userByIDLocked(id string) *core.User {
	for _, u := range b.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (b *Backend) newNonce() string {
	n := strings.ReplaceAll(uuid.NewString(), "-", "")
	if b.NonceFunc != nil {
		n = b.NonceFunc()
	}
	b.mu.Lock()
	b.nonces[n] = false
	b.mu.Unlock()
	return n
}

// bindNonce opens a cookie session for nonce n
func (b *Backend) bindNonce(n string) string {
	sid := uuid.NewString()
	b.mu.Lock()
	b.sessions[sid] = n
	b.mu.Unlock()
	return sid
}

// sessionNonce returns the nonce bound to cookie session sid
func (b *Backend) sessionNonce(sid string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.sessions[sid]
	return n, ok
}

// consumeNonce marks a nonce used and reports whether it was fresh
func (b *Backend) consumeNonce(n string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	used, issued := b.nonces[n]
	if !issued || used {
		return false
	}
	b.nonces[n] = true
	return true
}
