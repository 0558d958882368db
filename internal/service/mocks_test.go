package service_test

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/iyhunko/dapp-marketplace/internal/chain"
	"github.com/iyhunko/dapp-marketplace/internal/service"
	"github.com/iyhunko/dapp-marketplace/internal/sqs"
	"github.com/iyhunko/dapp-marketplace/internal/wallet"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0x1234567890AbcdEF1234567890aBcdef1234abcd"
	bob   = "0x9999999999999999999999999999999999999999"
)

// MockContract is a mock implementation of service.ProductContract
type MockContract struct {
	mock.Mock
}

func (m *MockContract) GetAllProducts(ctx context.Context) ([]chain.OnChainProduct, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chain.OnChainProduct), args.Error(1)
}

func (m *MockContract) CreateProduct(ctx context.Context, from common.Address, name, description string, price *big.Int) (service.Transaction, error) {
	args := m.Called(ctx, from, name, description, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(service.Transaction), args.Error(1)
}

// MockTransaction is a mock implementation of service.Transaction
type MockTransaction struct {
	mock.Mock
}

func (m *MockTransaction) Hash() common.Hash {
	args := m.Called()
	return args.Get(0).(common.Hash)
}

func (m *MockTransaction) Wait(ctx context.Context) (*chain.Receipt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.Receipt), args.Error(1)
}

// MockUploader is a mock implementation of storage.Uploader
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	args := m.Called(ctx, filename, data)
	return args.String(0), args.Error(1)
}

// MockPublisher is a mock implementation of service.NotificationPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishProductMessage(ctx context.Context, msg sqs.ProductMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// stubProvider is a wallet whose authorized accounts are set by the test.
type stubProvider struct {
	mu         sync.Mutex
	accounts   []string
	requestErr error
	feed       event.Feed
	subscribed int
}

func newStubProvider(accounts ...string) *stubProvider {
	return &stubProvider{accounts: accounts}
}

func (p *stubProvider) Request(_ context.Context, result any, method string, _ ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if method == wallet.MethodRequestAccounts && p.requestErr != nil {
		return p.requestErr
	}
	raw, err := json.Marshal(p.accounts)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

func (p *stubProvider) SubscribeAccountsChanged(ch chan<- []string) event.Subscription {
	p.mu.Lock()
	p.subscribed++
	p.mu.Unlock()
	return &countedSubscription{Subscription: p.feed.Subscribe(ch), provider: p}
}

// subscriptions returns how many account subscriptions are still open.
func (p *stubProvider) subscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribed
}

type countedSubscription struct {
	event.Subscription
	provider *stubProvider
	once     sync.Once
}

func (s *countedSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.provider.mu.Lock()
		s.provider.subscribed--
		s.provider.mu.Unlock()
	})
	s.Subscription.Unsubscribe()
}

// switchAccounts changes the authorized accounts and notifies subscribers.
func (p *stubProvider) switchAccounts(accounts ...string) {
	p.mu.Lock()
	p.accounts = accounts
	p.mu.Unlock()
	p.feed.Send(accounts)
}

// connectedSession returns a session connected as account.
func connectedSession(t *testing.T, account string) *wallet.Session {
	t.Helper()
	session := wallet.NewSession(newStubProvider(account))
	t.Cleanup(session.Close)

	got, err := session.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, account, got)
	return session
}

func ether(s string) *big.Int {
	wei, err := chain.ParseEther(s)
	if err != nil {
		panic(err)
	}
	return wei
}

func onChain(id int64, name, description, price, owner string) chain.OnChainProduct {
	return chain.OnChainProduct{
		Id:          big.NewInt(id),
		Name:        name,
		Description: description,
		Price:       ether(price),
		Owner:       common.HexToAddress(owner),
	}
}

func confirmedTx(hash common.Hash, block uint64) *MockTransaction {
	tx := new(MockTransaction)
	tx.On("Hash").Return(hash)
	tx.On("Wait", mock.Anything).Return(&chain.Receipt{TxHash: hash, BlockNumber: hexutil.Uint64(block), Status: 1}, nil)
	return tx
}
