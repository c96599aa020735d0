package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/internal/eth"
	"github.com/matenet/pin/ports"
)

const (
	DefaultStatement = "Sign in with Ethereum to Matenet App, in case of new account, it will be registered automatically."
	DefaultChainID   = 1
	DefaultTimeout   = 15 * time.Second
)

// AuthState is the state of the sign-in handshake
type AuthState int

const (
	StateIdle AuthState = iota
	StateAwaitingNonce
	StateAwaitingSignature
	StateAwaitingVerification
	StateAuthenticated
	StateFailed
)

func (s AuthState) String() string {
	switch s {
	case StateAwaitingNonce:
		return "awaiting_nonce"
	case StateAwaitingSignature:
		return "awaiting_signature"
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// AuthConfig holds the fixed inputs of every sign-in message
type AuthConfig struct {
	// Origin is the page origin the message is bound to, e.g.
	// https://app.matenet.io. Scheme, domain and uri derive from it.
	Origin    string
	Statement string
	ChainID   int64
	// Timeout bounds the nonce and verify calls. The signature prompt is
	// only bounded by the caller's context.
	Timeout time.Duration
}

// AuthService drives the SIWE handshake: nonce, message, signature,
// verification and token commit. A new SignIn supersedes the one in flight.
type AuthService struct {
	gateway   ports.AuthGateway
	connector *Connector
	session   ports.SessionStore
	eventPub  ports.EventPublisher
	log       log.Logger
	now       func() time.Time

	scheme    string
	domain    string
	uri       string
	statement string
	chainID   int64
	timeout   time.Duration

	mu      sync.Mutex
	attempt uint64
	cancel  context.CancelFunc
	state   AuthState
	err     error
	address core.Account
}

// NewAuthService creates a new authentication service
func NewAuthService(
	cfg AuthConfig,
	gateway ports.AuthGateway,
	connector *Connector,
	session ports.SessionStore,
	eventPub ports.EventPublisher,
	logger log.Logger,
) (*AuthService, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("%w: origin %q", core.ErrInvalidInput, cfg.Origin)
	}
	if logger == nil {
		logger = log.Root()
	}
	if eventPub == nil {
		eventPub = nopPublisher{}
	}
	s := &AuthService{
		gateway:   gateway,
		connector: connector,
		session:   session,
		eventPub:  eventPub,
		log:       logger,
		now:       time.Now,
		scheme:    origin.Scheme,
		domain:    origin.Host,
		uri:       origin.Scheme + "://" + origin.Host,
		statement: cfg.Statement,
		chainID:   cfg.ChainID,
		timeout:   cfg.Timeout,
	}
	if s.statement == "" {
		s.statement = DefaultStatement
	}
	if s.chainID == 0 {
		s.chainID = DefaultChainID
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	return s, nil
}

// State returns the handshake state and, when failed, its error
func (s *AuthService) State() (AuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.err
}

// Request returns the fields the message for account and nonce is built from
func (s *AuthService) Request(account core.Account, nonce string) core.SignInRequest {
	return core.SignInRequest{
		Scheme:    s.scheme,
		Domain:    s.domain,
		Address:   account,
		Statement: s.statement,
		URI:       s.uri,
		Version:   eth.Version,
		ChainID:   s.chainID,
		Nonce:     nonce,
		IssuedAt:  s.now(),
	}
}

// BuildMessage serialises a sign-in request
func BuildMessage(req core.SignInRequest) (string, error) {
	addr, err := eth.ParseAddress(string(req.Address))
	if err != nil {
		return "", err
	}
	if req.Version != "" && req.Version != eth.Version {
		return "", fmt.Errorf("%w: version %q", eth.ErrInvalidMessage, req.Version)
	}
	msg, err := eth.NewMessage(eth.Fields{
		Scheme:    req.Scheme,
		Domain:    req.Domain,
		Address:   addr,
		Statement: req.Statement,
		URI:       req.URI,
		ChainID:   req.ChainID,
		Nonce:     req.Nonce,
		IssuedAt:  req.IssuedAt,
	})
	if err != nil {
		return "", err
	}
	return msg.String(), nil
}

// begin supersedes any attempt in flight
func (s *AuthService) begin(parent context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.attempt++
	s.cancel = cancel
	s.state = StateIdle
	s.err = nil
	return ctx, s.attempt
}

func (s *AuthService) end(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == id && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// transition moves the current attempt forward, false when superseded
func (s *AuthService) transition(id uint64, state AuthState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != id {
		return false
	}
	s.log.Debug("Sign-in state", "attempt", id, "state", state)
	s.state = state
	return true
}

func (s *AuthService) fail(id uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != id {
		return core.NewFlowError(core.KindUnexpected, core.ErrSuperseded, nil)
	}
	s.state = StateFailed
	s.err = err
	if core.KindOf(err) == core.KindUnexpected {
		s.log.Error("Sign-in failed", "attempt", id, "err", err)
	} else {
		s.log.Warn("Sign-in failed", "attempt", id, "err", err)
	}
	return err
}

// interrupted reports why the attempt context ended, nil while it is live
func (s *AuthService) interrupted(ctx context.Context, id uint64) error {
	if ctx.Err() == nil {
		return nil
	}
	s.mu.Lock()
	superseded := s.attempt != id
	s.mu.Unlock()
	if superseded {
		return core.NewFlowError(core.KindUnexpected, core.ErrSuperseded, nil)
	}
	return s.fail(id, core.NewFlowError(core.KindUnexpected, nil, ctx.Err()))
}

// gatewayFailure classifies a nonce or verify error
func gatewayFailure(reason, err error) *core.FlowError {
	var herr *core.HTTPError
	switch {
	case errors.As(err, &herr):
		fe := core.NewFlowError(core.KindProtocolFailure, reason, err)
		fe.Message = herr.Message
		return fe
	case errors.Is(err, core.ErrMalformed):
		return core.NewFlowError(core.KindProtocolFailure, reason, err)
	default:
		return core.NewFlowError(core.KindNetworkFailure, reason, err)
	}
}

// SignIn runs one handshake for the connected account and commits the
// issued token to the session store
func (s *AuthService) SignIn(parent context.Context) error {
	ctx, id := s.begin(parent)
	defer s.end(id)

	account := s.connector.Account()
	generation := s.connector.Generation()
	if account.Empty() {
		return s.fail(id, core.NewFlowError(core.KindPermissionDenied, core.ErrNoAccount, nil))
	}

	// nonce
	if !s.transition(id, StateAwaitingNonce) {
		return core.NewFlowError(core.KindUnexpected, core.ErrSuperseded, nil)
	}
	nctx, cancel := context.WithTimeout(ctx, s.timeout)
	nonce, err := s.gateway.Nonce(nctx)
	cancel()
	if err != nil {
		if ierr := s.interrupted(ctx, id); ierr != nil {
			return ierr
		}
		return s.fail(id, gatewayFailure(core.ErrNonceFetchFailed, err))
	}

	message, err := BuildMessage(s.Request(account, nonce))
	if err != nil {
		return s.fail(id, core.NewFlowError(core.KindUnexpected, core.ErrInvalidInput, err))
	}

	// signature
	if s.connector.Generation() != generation {
		s.log.Warn("Account changed before signature request", "account", account)
		return s.fail(id, core.NewFlowError(core.KindAccountChanged, core.ErrAccountChanged, nil))
	}
	if !s.transition(id, StateAwaitingSignature) {
		return core.NewFlowError(core.KindUnexpected, core.ErrSuperseded, nil)
	}
	signature, err := s.sign(ctx, account, message)
	if err != nil {
		// a wallet refusing the old account is an account change too
		if errors.Is(err, core.ErrAccountChanged) || s.connector.Generation() != generation {
			return s.fail(id, core.NewFlowError(core.KindAccountChanged, core.ErrAccountChanged, err))
		}
		if ierr := s.interrupted(ctx, id); ierr != nil {
			return ierr
		}
		kind := core.KindUnexpected
		if errors.Is(err, core.ErrUserRejected) || errors.Is(err, core.ErrPermissionDenied) {
			kind = core.KindPermissionDenied
		}
		return s.fail(id, core.NewFlowError(kind, core.ErrSignatureRejected, err))
	}
	if s.connector.Generation() != generation {
		return s.fail(id, core.NewFlowError(core.KindAccountChanged, core.ErrAccountChanged, nil))
	}

	// verification
	if !s.transition(id, StateAwaitingVerification) {
		return core.NewFlowError(core.KindUnexpected, core.ErrSuperseded, nil)
	}
	vctx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := s.gateway.Verify(vctx, message, signature)
	cancel()
	if err != nil {
		if ierr := s.interrupted(ctx, id); ierr != nil {
			return ierr
		}
		return s.fail(id, gatewayFailure(core.ErrVerificationFailed, err))
	}
	if !res.Success {
		fe := core.NewFlowError(core.KindProtocolFailure, core.ErrVerificationFailed, nil)
		fe.Message = res.Error
		return s.fail(id, fe)
	}
	if res.Token == "" {
		fe := core.NewFlowError(core.KindProtocolFailure, core.ErrVerificationFailed, core.ErrMalformed)
		fe.Message = "token missing from verify response"
		return s.fail(id, fe)
	}

	return s.commit(ctx, id, account, res.Token)
}

// sign waits for the wallet signature and aborts as soon as the active
// account changes
func (s *AuthService) sign(ctx context.Context, account core.Account, message string) (string, error) {
	changes := make(chan AccountChange, 1)
	sub := s.connector.Subscribe(changes)
	defer sub.Unsubscribe()

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		sig string
		err error
	}
	done := make(chan result, 1)
	go func() {
		sig, err := s.connector.Sign(sctx, account, message)
		done <- result{sig, err}
	}()

	for {
		select {
		case r := <-done:
			return r.sig, r.err
		case change := <-changes:
			if change.Account.Equal(account) {
				continue
			}
			s.log.Warn("Account changed while waiting for signature", "from", account, "to", change.Account)
			return "", core.ErrAccountChanged
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (s *AuthService) commit(ctx context.Context, id uint64, account core.Account, token string) error {
	s.mu.Lock()
	if s.attempt != id {
		s.mu.Unlock()
		return core.NewFlowError(core.KindUnexpected, core.ErrSuperseded, nil)
	}
	if err := s.session.Set(ctx, token); err != nil {
		s.mu.Unlock()
		return s.fail(id, core.NewFlowError(core.KindUnexpected, nil, err))
	}
	s.state = StateAuthenticated
	s.address = account
	s.mu.Unlock()

	s.log.Info("Signed in", "account", account)
	if err := s.eventPub.PublishAuthenticated(context.WithoutCancel(ctx), string(account)); err != nil {
		// the session is committed, the event is best effort
		s.log.Warn("Failed to publish authenticated event", "err", err)
	}
	return nil
}

// Authenticated reports whether a usable session token is stored
func (s *AuthService) Authenticated(ctx context.Context) bool {
	_, err := s.session.Get(ctx)
	return err == nil
}

// Logout cancels any handshake in flight and clears the session
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.attempt++
	address := s.address
	if address.Empty() {
		address = s.connector.Account()
	}
	s.address = ""
	s.state = StateIdle
	s.err = nil
	s.mu.Unlock()

	if err := s.session.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	// Publish logout event for other processes sharing the session
	if err := s.eventPub.PublishLogout(ctx, string(address)); err != nil {
		s.log.Warn("Failed to publish logout event", "err", err)
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) PublishAuthenticated(context.Context, string) error { return nil }
func (nopPublisher) PublishLogout(context.Context, string) error        { return nil }
