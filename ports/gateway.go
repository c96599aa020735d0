package ports

import (
	"context"
	"io"

	"github.com/matenet/pin/core"
)

// AuthGateway is the part of the backend used by the SIWE handshake
type AuthGateway interface {
	Nonce(ctx context.Context) (string, error)
	Verify(ctx context.Context, message, signature string) (core.VerifyResult, error)
}

// UserGateway covers the authenticated profile, pin and friend endpoints
type UserGateway interface {
	Profile(ctx context.Context) (core.User, error)
	User(ctx context.Context, id string) (core.User, error)
	CreateUser(ctx context.Context, walletAddress, username string) (core.User, error)
	UpdateUser(ctx context.Context, update core.ProfileUpdate) (core.User, error)
	UploadProfilePicture(ctx context.Context, filename string, r io.Reader) (string, error)
	RegisterNFC(ctx context.Context, nfcID string) error
	ScanNFC(ctx context.Context, nfcID string) error
	FriendRequests(ctx context.Context) ([]core.FriendRequest, error)
	AcceptFriend(ctx context.Context, senderID string) error
}
