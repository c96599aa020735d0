// Package pin is a client for the Matenet pin backend: SIWE sign-in with an
// Ethereum wallet, profile and friend management, and NFC pin pairing.
package pin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/log"
	"github.com/matenet/pin/adapters/events"
	"github.com/matenet/pin/adapters/gateway"
	"github.com/matenet/pin/adapters/qr"
	"github.com/matenet/pin/adapters/token"
	"github.com/matenet/pin/config"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
	"github.com/matenet/pin/service"
)

// NFCDevice is a tag reader that can also write
type NFCDevice interface {
	ports.NFCReader
	ports.NFCWriter
	ports.Availability
}

// Options configures New. Only Config is required.
type Options struct {
	Config config.Config

	// Store overrides the persisted backing store picked from Config
	Store ports.Store

	// Wallet signs in. Without one only a stored session can be used.
	Wallet ports.WalletProvider

	// NFC enables pin pairing and adding friends by tap
	NFC NFCDevice

	// Camera enables QR scanning
	Camera ports.FrameSource

	// Publisher overrides the session event publisher
	Publisher message.Publisher

	Logger log.Logger
}

// Client wires the services together behind API
type Client struct {
	cfg config.Config
	log log.Logger

	sessions  *service.SessionStore
	gateway   *gateway.Client
	connector *service.Connector
	auth      *service.AuthService
	probe     *service.Probe
	users     *service.UserService
	friends   *service.FriendService
	pins      *service.PinService
	qrFlow    *service.ScanFlow[string]

	local *gochannel.GoChannel

	closeOnce sync.Once
	closers   []func() error
}

var _ API = (*Client)(nil)

// New builds a client from opts
func New(ctx context.Context, opts Options) (*Client, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.EventsTopic == "" {
		cfg.EventsTopic = events.DefaultTopic
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Root()
	}
	c := &Client{cfg: cfg, log: logger}

	store := opts.Store
	var redisBacked bool
	if store == nil {
		b, err := openBacking(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, b.close)
		store, redisBacked = b.store, b.redis != nil

		if opts.Publisher == nil && redisBacked {
			pub, err := events.NewRedisStreamPublisher(b.redis, logger)
			if err != nil {
				c.Close()
				return nil, err
			}
			opts.Publisher = pub
			c.closers = append(c.closers, pub.Close)
		}
	}
	if opts.Publisher == nil {
		c.local = events.NewGoChannel(logger)
		opts.Publisher = c.local
		c.closers = append(c.closers, c.local.Close)
	}

	c.sessions = service.NewSessionStore(store, token.NewJWTInspector(), logger)

	gw, err := gateway.NewClient(cfg.ServerURL, c.sessions,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(logger),
	)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.gateway = gw

	c.connector = service.NewConnector(opts.Wallet, logger)
	if opts.Wallet != nil {
		if err := c.connector.Watch(); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.auth, err = service.NewAuthService(service.AuthConfig{
		Origin:    cfg.Origin,
		Statement: cfg.Statement,
		ChainID:   cfg.ChainID,
		Timeout:   cfg.RequestTimeout,
	}, gw, c.connector, c.sessions, events.NewWatermillPublisher(opts.Publisher, cfg.EventsTopic), logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.probe = service.NewProbe()
	c.probe.Register(core.CapabilityWallet, c.connector)
	var (
		reader ports.NFCReader
		writer ports.NFCWriter
	)
	if opts.NFC != nil {
		c.probe.Register(core.CapabilityNFC, opts.NFC)
		reader, writer = opts.NFC, opts.NFC
	}
	var scanner ports.EventReader[string]
	if opts.Camera != nil {
		s := qr.NewScanner(opts.Camera, logger)
		c.probe.Register(core.CapabilityCamera, s)
		scanner = s
	}

	c.users = service.NewUserService(gw, c.connector, logger)
	c.friends = service.NewFriendService(gw, service.NewNFCFlow(c.probe, reader, logger), logger)
	c.pins = service.NewPinService(gw, service.NewWriteFlow(c.probe, writer, logger), logger)
	c.qrFlow = service.NewQRFlow(c.probe, scanner, logger)

	// pick up an account the wallet already authorised
	if opts.Wallet != nil {
		if _, err := c.connector.CheckExisting(ctx); err != nil {
			logger.Debug("No existing wallet account", "err", err)
		}
	}
	return c, nil
}

// Connect returns the connected account, prompting the wallet only when no
// account is authorised yet
func (c *Client) Connect(ctx context.Context) (core.Account, error) {
	if a := c.connector.Account(); !a.Empty() {
		return a, nil
	}
	if a, err := c.connector.CheckExisting(ctx); err == nil && !a.Empty() {
		return a, nil
	}
	return c.connector.RequestConnection(ctx)
}

// SignIn connects the wallet when needed and runs the SIWE handshake
func (c *Client) SignIn(ctx context.Context) error {
	if !c.connector.Connected() {
		if _, err := c.Connect(ctx); err != nil {
			return connectFailure(err)
		}
	}
	return c.auth.SignIn(ctx)
}

func connectFailure(err error) error {
	switch {
	case errors.Is(err, core.ErrNoWalletFound):
		return core.NewFlowError(core.KindCapabilityUnsupported, core.ErrNoWalletFound, err)
	case errors.Is(err, core.ErrUserRejected), errors.Is(err, core.ErrNoAccount):
		return core.NewFlowError(core.KindPermissionDenied, core.ErrNoAccount, err)
	}
	return core.NewFlowError(core.KindUnexpected, core.ErrNoAccount, err)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.auth.Logout(ctx)
}

// AuthState reports the state of the last handshake
func (c *Client) AuthState() (service.AuthState, error) {
	return c.auth.State()
}

func (c *Client) Register(ctx context.Context, username string) (core.User, error) {
	return c.users.Register(ctx, username)
}

func (c *Client) Profile(ctx context.Context) (core.User, error) {
	return c.users.Profile(ctx)
}

func (c *Client) User(ctx context.Context, id string) (core.User, error) {
	return c.users.User(ctx, id)
}

func (c *Client) Friends(ctx context.Context) ([]core.User, error) {
	return c.users.Friends(ctx)
}

func (c *Client) UpdateProfile(ctx context.Context, update core.ProfileUpdate) (core.User, error) {
	return c.users.UpdateProfile(ctx, update)
}

func (c *Client) UploadAvatar(ctx context.Context, filename string, r io.Reader) (string, error) {
	return c.users.UploadAvatar(ctx, filename, r)
}

func (c *Client) FriendRequests(ctx context.Context) ([]core.FriendRequest, error) {
	return c.friends.Requests(ctx)
}

func (c *Client) AcceptFriend(ctx context.Context, senderID string) error {
	return c.friends.Accept(ctx, senderID)
}

func (c *Client) AddFriend(ctx context.Context, nfcID string) error {
	return c.friends.AddByID(ctx, nfcID)
}

// AddFriendByTap waits for a pin to be tapped and returns its id
func (c *Client) AddFriendByTap(ctx context.Context) (string, error) {
	return c.friends.AddByTap(ctx)
}

// PairPin writes a new id onto the next tapped pin and registers it
func (c *Client) PairPin(ctx context.Context) (string, error) {
	return c.pins.Pair(ctx)
}

func (c *Client) RegisterPin(ctx context.Context, nfcID string) error {
	return c.pins.Register(ctx, nfcID)
}

// ScanQR returns the first code read by the camera
func (c *Client) ScanQR(ctx context.Context) (string, error) {
	return service.ScanOnce(ctx, c.qrFlow)
}

func (c *Client) Supports(capability core.Capability) bool {
	return c.probe.Supports(capability)
}

// Events subscribes to session events. Only available when events are
// published in process, i.e. neither Redis nor a custom publisher is used.
func (c *Client) Events(ctx context.Context) (<-chan *message.Message, error) {
	if c.local == nil {
		return nil, fmt.Errorf("%w: session events are published externally", core.ErrUnsupported)
	}
	return c.local.Subscribe(ctx, c.cfg.EventsTopic)
}

// Close releases the wallet subscription, the event publisher and the store
func (c *Client) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		if c.connector != nil {
			c.connector.Close()
		}
		for i := len(c.closers) - 1; i >= 0; i-- {
			if err := c.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
