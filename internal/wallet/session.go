package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/event"
)

// State is the connection state of a session.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// AccountListener is notified with the new current account ("" when cleared).
type AccountListener func(ctx context.Context, account string)

// Session tracks the account connected through a provider for one browser session.
type Session struct {
	provider Provider

	mu        sync.RWMutex
	account   string
	listeners []AccountListener
	sub       event.Subscription
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a disconnected session. provider may be nil when no wallet is available.
func NewSession(provider Provider) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		provider: provider,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Account returns the current account or "" when disconnected.
func (s *Session) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// State returns the current connection state.
func (s *Session) State() State {
	if s.Account() == "" {
		return Disconnected
	}
	return Connected
}

// HasProvider reports whether a wallet provider is available.
func (s *Session) HasProvider() bool {
	return s.provider != nil
}

// OnAccountChange registers fn to be called whenever the current account changes.
func (s *Session) OnAccountChange(fn AccountListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// CheckExisting adopts an already authorized account, if any, and starts
// listening for account changes.
func (s *Session) CheckExisting(ctx context.Context) error {
	if s.provider == nil {
		slog.Info("No wallet provider available, skipping account check")
		return nil
	}

	var accounts []string
	if err := s.provider.Request(ctx, &accounts, MethodAccounts); err != nil {
		slog.Error("Error checking wallet connection", slog.Any("err", err))
		return fmt.Errorf("failed to check existing accounts: %w", err)
	}
	if len(accounts) > 0 {
		s.setAccount(ctx, accounts[0])
	}

	s.subscribe()
	return nil
}

// Connect asks the provider to authorize an account and adopts the first one returned.
func (s *Session) Connect(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", ErrNoProvider
	}

	var accounts []string
	if err := s.provider.Request(ctx, &accounts, MethodRequestAccounts); err != nil {
		slog.Error("Error connecting wallet", slog.Any("err", err))
		if IsRequestPending(err) {
			return "", fmt.Errorf("%w: %w", ErrRequestPending, err)
		}
		return "", fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("%w: no accounts authorized", ErrConnectFailed)
	}

	s.setAccount(ctx, accounts[0])
	s.subscribe()
	return accounts[0], nil
}

// Close stops listening for account changes. The session keeps its last account.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	sub := s.sub
	s.mu.Unlock()

	s.cancel()
	if sub != nil {
		sub.Unsubscribe()
	}
	s.wg.Wait()
}

func (s *Session) setAccount(ctx context.Context, account string) {
	s.mu.Lock()
	if s.account == account {
		s.mu.Unlock()
		return
	}
	s.account = account
	listeners := append([]AccountListener(nil), s.listeners...)
	s.mu.Unlock()

	slog.Info("Wallet account changed", slog.String("account", account))
	for _, fn := range listeners {
		fn(ctx, account)
	}
}

func (s *Session) subscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil || s.closed {
		return
	}

	ch := make(chan []string, 1)
	s.sub = s.provider.SubscribeAccountsChanged(ch)

	s.wg.Add(1)
	go s.watch(ch, s.sub)
}

func (s *Session) watch(ch <-chan []string, sub event.Subscription) {
	defer s.wg.Done()
	for {
		select {
		case accounts := <-ch:
			if len(accounts) > 0 {
				s.setAccount(s.ctx, accounts[0])
			} else {
				s.setAccount(s.ctx, "")
			}
		case err := <-sub.Err():
			if err != nil {
				slog.Error("Account subscription failed", slog.Any("err", err))
			}
			return
		case <-s.ctx.Done():
			return
		}
	}
}
