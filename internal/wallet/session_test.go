package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers account requests from memory and lets tests push account changes.
type fakeProvider struct {
	mu              sync.Mutex
	accounts        []string
	requestAccounts []string
	requestErr      error
	accountsErr     error
	calls           map[string]int
	feed            event.Feed
}

func newFakeProvider(accounts ...string) *fakeProvider {
	return &fakeProvider{accounts: accounts, requestAccounts: accounts, calls: map[string]int{}}
}

func (f *fakeProvider) Request(_ context.Context, result any, method string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++

	var value []string
	switch method {
	case MethodAccounts:
		if f.accountsErr != nil {
			return f.accountsErr
		}
		value = f.accounts
	case MethodRequestAccounts:
		if f.requestErr != nil {
			return f.requestErr
		}
		value = f.requestAccounts
	default:
		return &ProviderError{Code: CodeMethodNotFound, Message: "method not found"}
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

func (f *fakeProvider) SubscribeAccountsChanged(ch chan<- []string) event.Subscription {
	return f.feed.Subscribe(ch)
}

func (f *fakeProvider) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

type recorder struct {
	mu       sync.Mutex
	accounts []string
}

func (r *recorder) listen(_ context.Context, account string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, account)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.accounts...)
}

const (
	alice = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	bob   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func TestSession_CheckExisting(t *testing.T) {
	t.Run("adopts first authorized account", func(t *testing.T) {
		// given
		provider := newFakeProvider(alice, bob)
		session := NewSession(provider)
		defer session.Close()
		rec := &recorder{}
		session.OnAccountChange(rec.listen)

		// when
		err := session.CheckExisting(context.Background())

		// then
		require.NoError(t, err)
		assert.Equal(t, alice, session.Account())
		assert.Equal(t, Connected, session.State())
		assert.Equal(t, []string{alice}, rec.seen())
	})

	t.Run("stays disconnected without authorized accounts", func(t *testing.T) {
		provider := newFakeProvider()
		session := NewSession(provider)
		defer session.Close()
		rec := &recorder{}
		session.OnAccountChange(rec.listen)

		require.NoError(t, session.CheckExisting(context.Background()))

		assert.Equal(t, Disconnected, session.State())
		assert.Empty(t, rec.seen())
	})

	t.Run("no provider is a no-op", func(t *testing.T) {
		session := NewSession(nil)
		defer session.Close()

		require.NoError(t, session.CheckExisting(context.Background()))
		assert.Equal(t, Disconnected, session.State())
		assert.False(t, session.HasProvider())
	})

	t.Run("provider failure is reported", func(t *testing.T) {
		provider := newFakeProvider()
		provider.accountsErr = errors.New("node unreachable")
		session := NewSession(provider)
		defer session.Close()

		err := session.CheckExisting(context.Background())

		require.Error(t, err)
		assert.Equal(t, Disconnected, session.State())
	})
}

func TestSession_Connect(t *testing.T) {
	t.Run("connects first returned account", func(t *testing.T) {
		provider := newFakeProvider(alice)
		session := NewSession(provider)
		defer session.Close()

		account, err := session.Connect(context.Background())

		require.NoError(t, err)
		assert.Equal(t, alice, account)
		assert.Equal(t, Connected, session.State())
		assert.Equal(t, 1, provider.callCount(MethodRequestAccounts))
	})

	t.Run("no provider", func(t *testing.T) {
		session := NewSession(nil)
		defer session.Close()

		_, err := session.Connect(context.Background())

		assert.ErrorIs(t, err, ErrNoProvider)
	})

	t.Run("request already pending", func(t *testing.T) {
		provider := newFakeProvider()
		provider.requestErr = &ProviderError{Code: CodeRequestPending, Message: "already processing eth_requestAccounts"}
		session := NewSession(provider)
		defer session.Close()

		_, err := session.Connect(context.Background())

		assert.ErrorIs(t, err, ErrRequestPending)
		assert.True(t, IsRequestPending(err))
		assert.Equal(t, Disconnected, session.State())
	})

	t.Run("user rejection is a generic failure", func(t *testing.T) {
		provider := newFakeProvider()
		provider.requestErr = &ProviderError{Code: CodeUserRejected, Message: "user rejected the request"}
		session := NewSession(provider)
		defer session.Close()

		_, err := session.Connect(context.Background())

		assert.ErrorIs(t, err, ErrConnectFailed)
		assert.NotErrorIs(t, err, ErrRequestPending)
	})

	t.Run("zero accounts leaves session disconnected", func(t *testing.T) {
		provider := newFakeProvider()
		session := NewSession(provider)
		defer session.Close()
		rec := &recorder{}
		session.OnAccountChange(rec.listen)

		_, err := session.Connect(context.Background())

		assert.ErrorIs(t, err, ErrConnectFailed)
		assert.Equal(t, Disconnected, session.State())
		assert.Empty(t, rec.seen(), "listeners must not fire")
	})
}

func TestSession_AccountChanges(t *testing.T) {
	provider := newFakeProvider(alice)
	session := NewSession(provider)
	rec := &recorder{}
	session.OnAccountChange(rec.listen)
	require.NoError(t, session.CheckExisting(context.Background()))

	provider.feed.Send([]string{bob})
	assert.Eventually(t, func() bool { return session.Account() == bob }, time.Second, 5*time.Millisecond)

	provider.feed.Send([]string{})
	assert.Eventually(t, func() bool { return session.State() == Disconnected }, time.Second, 5*time.Millisecond)

	session.Close()
	provider.feed.Send([]string{alice})

	assert.Equal(t, Disconnected, session.State(), "closed session ignores notifications")
	assert.Equal(t, []string{alice, bob, ""}, rec.seen())
}

func TestSession_SubscribesOnce(t *testing.T) {
	provider := newFakeProvider(alice)
	session := NewSession(provider)
	defer session.Close()

	require.NoError(t, session.CheckExisting(context.Background()))
	require.NoError(t, session.CheckExisting(context.Background()))
	_, err := session.Connect(context.Background())
	require.NoError(t, err)

	// event.Feed.Send returns the number of subscribers that received the value.
	assert.Equal(t, 1, provider.feed.Send([]string{alice}))
}
