package service

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

// AccountChange is sent to connector subscribers whenever the active
// account changes. An empty Account means disconnected.
type AccountChange struct {
	Account    core.Account
	Generation uint64
}

// Connector tracks the wallet connection and the active account
type Connector struct {
	wallet ports.WalletProvider
	log    log.Logger
	feed   event.Feed

	mu         sync.RWMutex
	account    core.Account
	generation uint64

	watchOnce sync.Once
	closeOnce sync.Once
	sub       event.Subscription
	quit      chan struct{}
	done      chan struct{}
}

// NewConnector creates a connector, wallet may be nil when none is present
func NewConnector(wallet ports.WalletProvider, logger log.Logger) *Connector {
	if logger == nil {
		logger = log.Root()
	}
	return &Connector{
		wallet: wallet,
		log:    logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Available reports whether a wallet is present
func (c *Connector) Available() bool {
	return c.wallet != nil
}

// Account returns the active account, empty when disconnected
func (c *Connector) Account() core.Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// Generation is bumped on every account change
func (c *Connector) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Connected reports whether an account is active
func (c *Connector) Connected() bool {
	return !c.Account().Empty()
}

// CheckExisting looks for an already authorised account without prompting.
// The state only changes when one is found.
func (c *Connector) CheckExisting(ctx context.Context) (core.Account, error) {
	if c.wallet == nil {
		return "", nil
	}
	accts, err := c.wallet.Accounts(ctx)
	if err != nil {
		c.log.Debug("Silent account check failed", "err", err)
		return "", err
	}
	if len(accts) == 0 {
		return "", nil
	}
	c.set(accts[0])
	return accts[0], nil
}

// RequestConnection prompts the user for account access
func (c *Connector) RequestConnection(ctx context.Context) (core.Account, error) {
	if c.wallet == nil {
		return "", core.ErrNoWalletFound
	}
	accts, err := c.wallet.RequestAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accts) == 0 {
		return "", core.ErrNoAccount
	}
	c.set(accts[0])
	c.log.Info("Wallet connected", "account", accts[0])
	return accts[0], nil
}

// Sign asks the wallet to sign text with account
func (c *Connector) Sign(ctx context.Context, account core.Account, text string) (string, error) {
	if c.wallet == nil {
		return "", core.ErrNoWalletFound
	}
	return c.wallet.SignPersonal(ctx, account, text)
}

// Watch follows the wallet's account change notifications until Close
func (c *Connector) Watch() error {
	if c.wallet == nil {
		return core.ErrNoWalletFound
	}
	c.watchOnce.Do(func() {
		ch := make(chan []core.Account, 4)
		c.sub = c.wallet.SubscribeAccounts(ch)
		go c.loop(ch)
	})
	return nil
}

func (c *Connector) loop(ch <-chan []core.Account) {
	defer close(c.done)
	for {
		select {
		case accts := <-ch:
			if len(accts) == 0 {
				c.log.Info("Wallet disconnected")
				c.set("")
				continue
			}
			c.log.Info("Wallet account changed", "account", accts[0])
			c.set(accts[0])
		case err := <-c.sub.Err():
			if err != nil {
				c.log.Warn("Wallet subscription failed", "err", err)
			}
			return
		case <-c.quit:
			return
		}
	}
}

// Subscribe delivers AccountChange events. The returned subscription must
// be released by the caller.
func (c *Connector) Subscribe(ch chan<- AccountChange) event.Subscription {
	return c.feed.Subscribe(ch)
}

func (c *Connector) set(a core.Account) {
	c.mu.Lock()
	if c.account.Equal(a) {
		c.mu.Unlock()
		return
	}
	c.account = a
	c.generation++
	change := AccountChange{Account: a, Generation: c.generation}
	c.mu.Unlock()

	c.feed.Send(change)
}

// Disconnect forgets the active account locally
func (c *Connector) Disconnect() {
	c.set("")
}

// Close stops watching the wallet
func (c *Connector) Close() {
	c.closeOnce.Do(func() {
		// a connector that never watched has no loop to wait for
		c.watchOnce.Do(func() { close(c.done) })
		close(c.quit)
		if c.sub != nil {
			c.sub.Unsubscribe()
		}
		<-c.done
	})
}
