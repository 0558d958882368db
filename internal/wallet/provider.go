package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

// Provider methods used by the session.
const (
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
)

// Provider is the wallet through which accounts are authorized and transactions are signed.
type Provider interface {
	// Request performs a JSON-RPC call and decodes the response into result.
	Request(ctx context.Context, result any, method string, args ...any) error
	// SubscribeAccountsChanged delivers the full account list every time it changes.
	SubscribeAccountsChanged(ch chan<- []string) event.Subscription
}

// RPCProvider is a Provider backed by a JSON-RPC node that manages its own accounts.
type RPCProvider struct {
	client       *rpc.Client
	pollInterval time.Duration
}

// NewRPCProvider wraps an existing RPC client.
func NewRPCProvider(client *rpc.Client, pollInterval time.Duration) *RPCProvider {
	return &RPCProvider{
		client:       client,
		pollInterval: pollInterval,
	}
}

// DialRPCProvider connects to the node at url.
func DialRPCProvider(ctx context.Context, url string, pollInterval time.Duration) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet provider: %w", err)
	}
	return NewRPCProvider(client, pollInterval), nil
}

// Request implements Provider. Nodes without eth_requestAccounts are asked for eth_accounts instead.
func (p *RPCProvider) Request(ctx context.Context, result any, method string, args ...any) error {
	err := p.client.CallContext(ctx, result, method, args...)
	if err != nil && method == MethodRequestAccounts {
		if code, ok := ErrorCode(err); ok && code == CodeMethodNotFound {
			return p.client.CallContext(ctx, result, MethodAccounts)
		}
	}
	return err
}

// SubscribeAccountsChanged implements Provider by polling eth_accounts.
func (p *RPCProvider) SubscribeAccountsChanged(ch chan<- []string) event.Subscription {
	last, err := p.accounts()
	if err != nil {
		slog.Warn("Failed to read wallet accounts", slog.Any("err", err))
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return nil
			case <-ticker.C:
			}

			accounts, err := p.accounts()
			if err != nil {
				slog.Warn("Failed to poll wallet accounts", slog.Any("err", err))
				continue
			}
			if slices.Equal(last, accounts) {
				continue
			}
			last = accounts

			select {
			case ch <- accounts:
			case <-quit:
				return nil
			}
		}
	})
}

func (p *RPCProvider) accounts() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.pollInterval)
	defer cancel()

	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, MethodAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Close releases the underlying connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}
