package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/event"
	"github.com/matenet/pin/core"
)

// WalletProvider is an injected wallet.
// RequestAccounts and SignPersonal return core.ErrUserRejected when the
// user declines the prompt.
type WalletProvider interface {
	// Accounts lists already authorised accounts without prompting
	Accounts(ctx context.Context) ([]core.Account, error)
	// RequestAccounts prompts the user for account access
	RequestAccounts(ctx context.Context) ([]core.Account, error)
	// SignPersonal signs text with the EIP-191 personal message prefix
	SignPersonal(ctx context.Context, account core.Account, text string) (string, error)
	// SubscribeAccounts delivers the new account set on every change
	SubscribeAccounts(ch chan<- []core.Account) event.Subscription
}
