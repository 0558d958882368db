package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultContractAddress is where the first deployment on a fresh development chain lands.
const DefaultContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// ProductManagerABI describes the two contract operations used by the marketplace.
const ProductManagerABI = `[
	{
		"type": "function",
		"name": "getAllProducts",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{
			"name": "",
			"type": "tuple[]",
			"internalType": "struct ProductManager.Product[]",
			"components": [
				{"name": "id", "type": "uint256"},
				{"name": "name", "type": "string"},
				{"name": "description", "type": "string"},
				{"name": "price", "type": "uint256"},
				{"name": "owner", "type": "address"}
			]
		}]
	},
	{
		"type": "function",
		"name": "createProduct",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "_name", "type": "string"},
			{"name": "_description", "type": "string"},
			{"name": "_price", "type": "uint256"}
		],
		"outputs": []
	}
]`

const (
	methodGetAllProducts = "getAllProducts"
	methodCreateProduct  = "createProduct"

	defaultReceiptPollInterval = time.Second
)

var (
	// ErrNoProvider is returned when the contract is requested without a provider.
	ErrNoProvider = errors.New("no provider to reach the contract")
	// ErrInvalidRecord is returned when the contract returns a product that fails validation.
	ErrInvalidRecord = errors.New("invalid product record")
	// ErrTransactionReverted is returned when a confirmed transaction has a failed status.
	ErrTransactionReverted = errors.New("transaction reverted")
)

// Requester performs JSON-RPC calls through a provider.
type Requester interface {
	Request(ctx context.Context, result any, method string, args ...any) error
}

// OnChainProduct mirrors the contract's Product tuple; field names follow the ABI components.
type OnChainProduct struct {
	Id          *big.Int
	Name        string
	Description string
	Price       *big.Int
	Owner       common.Address
}

// Validate checks the record before it leaves the contract boundary.
func (p OnChainProduct) Validate() error {
	switch {
	case p.Id == nil || p.Id.Sign() < 0 || !p.Id.IsUint64():
		return fmt.Errorf("%w: id %v out of range", ErrInvalidRecord, p.Id)
	case p.Price == nil || p.Price.Sign() < 0:
		return fmt.Errorf("%w: product %v has no valid price", ErrInvalidRecord, p.Id)
	case p.Owner == (common.Address{}):
		return fmt.Errorf("%w: product %v has no owner", ErrInvalidRecord, p.Id)
	}
	return nil
}

// ProductManager is a handle on the deployed ProductManager contract.
type ProductManager struct {
	address      common.Address
	abi          abi.ABI
	requester    Requester
	pollInterval time.Duration
}

// Option configures a ProductManager.
type Option func(*ProductManager)

// WithReceiptPollInterval sets how often Transaction.Wait asks for the receipt.
func WithReceiptPollInterval(d time.Duration) Option {
	return func(m *ProductManager) {
		m.pollInterval = d
	}
}

// NewProductManager binds the contract at address to requester.
func NewProductManager(address common.Address, requester Requester, opts ...Option) (*ProductManager, error) {
	if requester == nil {
		return nil, ErrNoProvider
	}
	parsed, err := abi.JSON(strings.NewReader(ProductManagerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	m := &ProductManager{
		address:      address,
		abi:          parsed,
		requester:    requester,
		pollInterval: defaultReceiptPollInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Address returns the bound contract address.
func (m *ProductManager) Address() common.Address {
	return m.address
}

// GetAllProducts reads every product stored by the contract.
func (m *ProductManager) GetAllProducts(ctx context.Context) ([]OnChainProduct, error) {
	data, err := m.abi.Pack(methodGetAllProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", methodGetAllProducts, err)
	}

	call := map[string]any{
		"to":   m.address,
		"data": hexutil.Bytes(data),
	}
	var raw hexutil.Bytes
	if err := m.requester.Request(ctx, &raw, "eth_call", call, "latest"); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", methodGetAllProducts, err)
	}

	out, err := m.abi.Unpack(methodGetAllProducts, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", methodGetAllProducts, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("failed to decode %s: expected 1 value, got %d", methodGetAllProducts, len(out))
	}
	products := *abi.ConvertType(out[0], new([]OnChainProduct)).(*[]OnChainProduct)

	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// CreateProduct submits a createProduct transaction signed by the provider for from.
func (m *ProductManager) CreateProduct(ctx context.Context, from common.Address, name, description string, price *big.Int) (*Transaction, error) {
	data, err := m.abi.Pack(methodCreateProduct, name, description, price)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", methodCreateProduct, err)
	}

	tx := map[string]any{
		"from": from,
		"to":   m.address,
		"data": hexutil.Bytes(data),
	}
	var hash common.Hash
	if err := m.requester.Request(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", methodCreateProduct, err)
	}

	return &Transaction{
		hash:         hash,
		requester:    m.requester,
		pollInterval: m.pollInterval,
	}, nil
}
