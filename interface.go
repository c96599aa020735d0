package pin

import (
	"context"
	"io"

	"github.com/matenet/pin/core"
)

// API is the public surface of the pin client
type API interface {
	// Connect returns the connected account, prompting the wallet only
	// when no account is authorised yet
	Connect(ctx context.Context) (core.Account, error)

	// SignIn runs the SIWE handshake and stores the session token
	SignIn(ctx context.Context) error

	// Logout clears the session
	Logout(ctx context.Context) error

	// Session describes the stored session token
	Session(ctx context.Context) (SessionInfo, error)

	Register(ctx context.Context, username string) (core.User, error)
	Profile(ctx context.Context) (core.User, error)
	User(ctx context.Context, id string) (core.User, error)
	Friends(ctx context.Context) ([]core.User, error)
	UpdateProfile(ctx context.Context, update core.ProfileUpdate) (core.User, error)
	UploadAvatar(ctx context.Context, filename string, r io.Reader) (string, error)

	FriendRequests(ctx context.Context) ([]core.FriendRequest, error)
	AcceptFriend(ctx context.Context, senderID string) error
	AddFriend(ctx context.Context, nfcID string) error
	AddFriendByTap(ctx context.Context) (string, error)

	PairPin(ctx context.Context) (string, error)
	RegisterPin(ctx context.Context, nfcID string) error

	ScanQR(ctx context.Context) (string, error)

	// Supports reports whether a device capability is usable right now
	Supports(c core.Capability) bool

	Close() error
}
