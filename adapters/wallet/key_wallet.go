package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/internal/eth"
	"github.com/matenet/pin/ports"
)

// PromptKind distinguishes the two user prompts a wallet shows
type PromptKind string

const (
	PromptConnect PromptKind = "connect"
	PromptSign    PromptKind = "sign"
)

// Prompt describes a request waiting on the user
type Prompt struct {
	Kind    PromptKind
	Account core.Account
	Text    string
}

// Approver decides a prompt. Returning an error declines it.
type Approver func(ctx context.Context, p Prompt) error

// AutoApprove accepts every prompt
func AutoApprove(context.Context, Prompt) error { return nil }

// KeyWallet is a wallet holding local secp256k1 keys. One key is active at
// a time; switching keys notifies account subscribers the way a browser
// wallet does.
type KeyWallet struct {
	approve Approver
	feed    event.Feed

	mu         sync.Mutex
	signers    []*eth.KeySigner
	active     int
	authorized bool
}

var _ ports.WalletProvider = (*KeyWallet)(nil)

// NewKeyWallet creates a wallet over keys, the first key is active
func NewKeyWallet(approve Approver, keys ...*ecdsa.PrivateKey) *KeyWallet {
	if approve == nil {
		approve = AutoApprove
	}
	w := &KeyWallet{approve: approve}
	for _, k := range keys {
		w.signers = append(w.signers, eth.NewKeySigner(k))
	}
	return w
}

func (w *KeyWallet) current() (*eth.KeySigner, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.signers) == 0 {
		return nil, false
	}
	return w.signers[w.active], w.authorized
}

func accountOf(s *eth.KeySigner) core.Account {
	return core.Account(s.Address().Hex())
}

// Accounts returns the active account once the user has connected
func (w *KeyWallet) Accounts(ctx context.Context) ([]core.Account, error) {
	s, authorized := w.current()
	if s == nil || !authorized {
		return []core.Account{}, nil
	}
	return []core.Account{accountOf(s)}, nil
}

// RequestAccounts asks the user to connect
func (w *KeyWallet) RequestAccounts(ctx context.Context) ([]core.Account, error) {
	s, _ := w.current()
	if s == nil {
		return nil, core.ErrNoWalletFound
	}
	if err := w.approve(ctx, Prompt{Kind: PromptConnect, Account: accountOf(s)}); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUserRejected, err)
	}

	w.mu.Lock()
	w.authorized = true
	w.mu.Unlock()
	return []core.Account{accountOf(s)}, nil
}

// SignPersonal signs text with the active key after user approval
func (w *KeyWallet) SignPersonal(ctx context.Context, account core.Account, text string) (string, error) {
	s, authorized := w.current()
	if s == nil {
		return "", core.ErrNoWalletFound
	}
	if !authorized || !accountOf(s).Equal(account) {
		return "", fmt.Errorf("%w: account %s not authorised", core.ErrPermissionDenied, account)
	}
	if err := w.approve(ctx, Prompt{Kind: PromptSign, Account: account, Text: text}); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrUserRejected, err)
	}

	sig, err := s.SignPersonal(text)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// SubscribeAccounts delivers the account set after every switch or disconnect
func (w *KeyWallet) SubscribeAccounts(ch chan<- []core.Account) event.Subscription {
	return w.feed.Subscribe(ch)
}

// Switch makes the i-th key active
func (w *KeyWallet) Switch(i int) error {
	w.mu.Lock()
	if i < 0 || i >= len(w.signers) {
		w.mu.Unlock()
		return fmt.Errorf("%w: no key at index %d", core.ErrInvalidInput, i)
	}
	changed := w.active != i
	w.active = i
	notify := changed && w.authorized
	acct := accountOf(w.signers[i])
	w.mu.Unlock()

	if notify {
		w.feed.Send([]core.Account{acct})
	}
	return nil
}

// Disconnect revokes the connection, subscribers see an empty account set
func (w *KeyWallet) Disconnect() {
	w.mu.Lock()
	was := w.authorized
	w.authorized = false
	w.mu.Unlock()

	if was {
		w.feed.Send([]core.Account{})
	}
}
