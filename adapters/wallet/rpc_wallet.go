package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

const (
	// EIP-1193 provider error codes
	codeUserRejected = 4001
	codeUnauthorized = 4100

	DefaultPollInterval = 2 * time.Second
)

// RPCWallet talks to a wallet exposing the EIP-1193 methods over JSON-RPC.
// JSON-RPC has no push for account changes, so they are polled.
type RPCWallet struct {
	client *rpc.Client
	poll   time.Duration
	log    log.Logger
	feed   event.Feed

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

var _ ports.WalletProvider = (*RPCWallet)(nil)

// DialRPCWallet connects to the wallet endpoint
func DialRPCWallet(ctx context.Context, url string, poll time.Duration, logger log.Logger) (*RPCWallet, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNoWalletFound, err)
	}
	return NewRPCWallet(client, poll, logger), nil
}

// NewRPCWallet wraps an existing client
func NewRPCWallet(client *rpc.Client, poll time.Duration, logger log.Logger) *RPCWallet {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if logger == nil {
		logger = log.Root()
	}
	return &RPCWallet{
		client: client,
		poll:   poll,
		log:    logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (w *RPCWallet) accounts(ctx context.Context, method string) ([]core.Account, error) {
	var raw []string
	if err := w.client.CallContext(ctx, &raw, method); err != nil {
		return nil, mapRPCError(err)
	}
	out := make([]core.Account, len(raw))
	for i, a := range raw {
		out[i] = core.Account(a)
	}
	return out, nil
}

func (w *RPCWallet) Accounts(ctx context.Context) ([]core.Account, error) {
	return w.accounts(ctx, "eth_accounts")
}

func (w *RPCWallet) RequestAccounts(ctx context.Context) ([]core.Account, error) {
	return w.accounts(ctx, "eth_requestAccounts")
}

func (w *RPCWallet) SignPersonal(ctx context.Context, account core.Account, text string) (string, error) {
	var sig hexutil.Bytes
	if err := w.client.CallContext(ctx, &sig, "personal_sign", hexutil.Encode([]byte(text)), string(account)); err != nil {
		return "", mapRPCError(err)
	}
	return sig.String(), nil
}

// SubscribeAccounts starts polling on first use
func (w *RPCWallet) SubscribeAccounts(ch chan<- []core.Account) event.Subscription {
	sub := w.feed.Subscribe(ch)
	w.startOnce.Do(func() { go w.pollLoop() })
	return sub
}

func (w *RPCWallet) pollLoop() {
	defer close(w.done)
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	var last []core.Account
	primed := false
	for {
		select {
		case <-w.quit:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), w.poll)
		accts, err := w.Accounts(ctx)
		cancel()
		if err != nil {
			w.log.Debug("Wallet account poll failed", "err", err)
			continue
		}
		if primed && sameAccounts(last, accts) {
			continue
		}
		if primed {
			w.feed.Send(accts)
		}
		last, primed = accts, true
	}
}

func sameAccounts(a, b []core.Account) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Close stops polling and closes the connection
func (w *RPCWallet) Close() {
	w.stopOnce.Do(func() {
		close(w.quit)
		w.startOnce.Do(func() { close(w.done) })
		<-w.done
		w.client.Close()
	})
}

func mapRPCError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return fmt.Errorf("%w: %v", core.ErrUserRejected, err)
		case codeUnauthorized:
			return fmt.Errorf("%w: %v", core.ErrPermissionDenied, err)
		}
	}
	return err
}
