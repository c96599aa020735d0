package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matenet/pin/adapters/gateway"
	"github.com/matenet/pin/adapters/store"
	"github.com/matenet/pin/adapters/token"
	"github.com/matenet/pin/adapters/wallet"
	"github.com/matenet/pin/internal/gatewaytest"
	"github.com/matenet/pin/internal/logging"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishAuthenticated(ctx context.Context, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "authenticated:"+address)
	return nil
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "logged_out:"+address)
	return nil
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type harness struct {
	srv       *gatewaytest.Server
	wallet    *wallet.KeyWallet
	connector *Connector
	session   *SessionStore
	gateway   *gateway.Client
	auth      *AuthService
	events    *recordingPublisher
}

func newHarness(t *testing.T, approve wallet.Approver, nkeys int) *harness {
	t.Helper()
	srv := gatewaytest.NewServer()
	t.Cleanup(srv.Close)
	return newHarnessOn(t, srv, approve, nkeys)
}

// newHarnessOn builds a client side harness against a shared backend
func newHarnessOn(t *testing.T, srv *gatewaytest.Server, approve wallet.Approver, nkeys int) *harness {
	t.Helper()
	logger := logging.Discard()
	h := &harness{
		srv:     srv,
		wallet:  newWallet(t, approve, nkeys),
		session: NewSessionStore(store.NewMemoryStore(), token.NewJWTInspector(), logger),
		events:  &recordingPublisher{},
	}
	h.connector = NewConnector(h.wallet, logger)
	t.Cleanup(h.connector.Close)

	gw, err := gateway.NewClient(srv.URL, h.session, gateway.WithLogger(logger))
	require.NoError(t, err)
	h.gateway = gw

	h.auth, err = NewAuthService(AuthConfig{
		Origin:  "https://app.matenet.io",
		Timeout: 2 * time.Second,
	}, gw, h.connector, h.session, h.events, logger)
	require.NoError(t, err)
	return h
}

// connect authorises the first wallet account
func (h *harness) connect(t *testing.T) string {
	t.Helper()
	acct, err := h.connector.RequestConnection(context.Background())
	require.NoError(t, err)
	return string(acct)
}

// signIn connects and completes a real handshake against the stub
func (h *harness) signIn(t *testing.T) string {
	t.Helper()
	acct := h.connect(t)
	require.NoError(t, h.auth.SignIn(context.Background()))
	return acct
}
