package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iyhunko/dapp-marketplace/internal/chain"
	"github.com/iyhunko/dapp-marketplace/internal/metrics"
	"github.com/iyhunko/dapp-marketplace/internal/model"
	"github.com/iyhunko/dapp-marketplace/internal/sqs"
	"github.com/iyhunko/dapp-marketplace/internal/storage"
	"github.com/iyhunko/dapp-marketplace/internal/wallet"
)

// Transaction is a submitted chain transaction.
type Transaction interface {
	Hash() common.Hash
	Wait(ctx context.Context) (*chain.Receipt, error)
}

// ProductContract is the contract surface used by the workflow.
type ProductContract interface {
	GetAllProducts(ctx context.Context) ([]chain.OnChainProduct, error)
	CreateProduct(ctx context.Context, from common.Address, name, description string, price *big.Int) (Transaction, error)
}

type managerContract struct {
	*chain.ProductManager
}

// NewContract adapts a ProductManager to ProductContract.
func NewContract(manager *chain.ProductManager) ProductContract {
	return managerContract{ProductManager: manager}
}

func (c managerContract) CreateProduct(ctx context.Context, from common.Address, name, description string, price *big.Int) (Transaction, error) {
	tx, err := c.ProductManager.CreateProduct(ctx, from, name, description, price)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// CreateResult describes a confirmed product creation.
type CreateResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	ImageURL    string `json:"image_url,omitempty"`
}

// ProductWorkflow lists and creates products on behalf of one wallet session.
type ProductWorkflow struct {
	session  *wallet.Session
	contract ProductContract
	uploader storage.Uploader
	outbox   *Outbox

	mu       sync.RWMutex
	products []model.Product
	draft    model.Draft
	loading  bool
}

// NewProductWorkflow creates a workflow. uploader and outbox may be nil.
func NewProductWorkflow(session *wallet.Session, contract ProductContract, uploader storage.Uploader, outbox *Outbox) *ProductWorkflow {
	return &ProductWorkflow{
		session:  session,
		contract: contract,
		uploader: uploader,
		outbox:   outbox,
	}
}

// Session returns the wallet session the workflow acts for.
func (w *ProductWorkflow) Session() *wallet.Session {
	return w.session
}

// Products returns a copy of the last loaded product list.
func (w *ProductWorkflow) Products() []model.Product {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]model.Product(nil), w.products...)
}

// Draft returns the current form draft.
func (w *ProductWorkflow) Draft() model.Draft {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.draft
}

// SetDraft replaces the form draft.
func (w *ProductWorkflow) SetDraft(draft model.Draft) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft = draft
}

// Loading reports whether a creation is in flight.
func (w *ProductWorkflow) Loading() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loading
}

// LoadProducts replaces the product list with what the contract reports. It does
// nothing while the session is disconnected. On failure the previous list is kept.
func (w *ProductWorkflow) LoadProducts(ctx context.Context) error {
	if w.session.Account() == "" {
		return nil
	}
	if w.contract == nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, chain.ErrNoProvider)
	}

	records, err := w.contract.GetAllProducts(ctx)
	metrics.ProductLoads.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		slog.Error("Error loading products", slog.Any("err", err))
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	products := make([]model.Product, 0, len(records))
	for _, record := range records {
		products = append(products, toProduct(record))
	}

	w.mu.Lock()
	w.products = products
	w.mu.Unlock()

	slog.Debug("Products loaded", slog.Int("count", len(products)))
	return nil
}

// CreateProduct uploads the optional image, submits the product to the contract,
// waits for confirmation, clears the draft and reloads the list. Only one creation
// per workflow runs at a time. On failure the draft is kept for a retry.
func (w *ProductWorkflow) CreateProduct(ctx context.Context, draft model.Draft) (*CreateResult, error) {
	account := w.session.Account()
	if account == "" {
		return nil, ErrWalletNotConnected
	}
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDraft, err)
	}

	w.mu.Lock()
	if w.loading {
		w.mu.Unlock()
		return nil, ErrCreateInProgress
	}
	w.loading = true
	w.draft = draft
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.loading = false
		w.mu.Unlock()
	}()

	result, err := w.submit(ctx, common.HexToAddress(account), draft)
	if err != nil {
		slog.Error("Error creating product", slog.String("account", account), slog.Any("err", err))
		if wallet.IsUserRejected(err) {
			metrics.ProductCreateFailures.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: %w", ErrTransactionRejected, err)
		}
		metrics.ProductCreateFailures.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	metrics.ProductsCreated.Inc()
	slog.Info("Product created",
		slog.String("account", account),
		slog.String("tx_hash", result.TxHash),
		slog.Uint64("block", result.BlockNumber),
	)

	w.mu.Lock()
	w.draft = model.Draft{}
	w.mu.Unlock()

	// the creation is confirmed; a failed reload is logged and leaves the old list
	_ = w.LoadProducts(ctx)
	w.notifyCreated(account, draft, result)

	return result, nil
}

func (w *ProductWorkflow) submit(ctx context.Context, from common.Address, draft model.Draft) (*CreateResult, error) {
	if w.contract == nil {
		return nil, chain.ErrNoProvider
	}

	var imageURL string
	if draft.Image != nil {
		url, err := w.upload(ctx, draft.Image)
		if err != nil {
			return nil, err
		}
		imageURL = url
	}

	price, err := chain.ParseEther(draft.Price)
	if err != nil {
		return nil, err
	}

	tx, err := w.contract.CreateProduct(ctx, from, draft.Name, draft.Description, price)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	receipt, err := tx.Wait(ctx)
	metrics.TransactionConfirmation.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	return &CreateResult{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: uint64(receipt.BlockNumber),
		ImageURL:    imageURL,
	}, nil
}

func (w *ProductWorkflow) upload(ctx context.Context, image *model.Image) (string, error) {
	if w.uploader == nil {
		return "", fmt.Errorf("failed to upload image: %w", storage.ErrMissingCredential)
	}
	url, err := w.uploader.Upload(ctx, image.Filename, bytes.NewReader(image.Data))
	metrics.ImageUploads.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return url, nil
}

// notifyCreated queues a notification for the newest matching product owned by account.
func (w *ProductWorkflow) notifyCreated(account string, draft model.Draft, result *CreateResult) {
	if w.outbox == nil {
		return
	}

	msg := sqs.ProductMessage{
		Action:      sqs.ActionCreated,
		Name:        draft.Name,
		Description: draft.Description,
		Price:       draft.Price,
		Owner:       account,
		TxHash:      result.TxHash,
		ImageURL:    result.ImageURL,
	}
	for _, p := range w.Products() {
		if p.OwnedBy(account) && p.Name == draft.Name && p.ID >= msg.ProductID {
			msg.ProductID = p.ID
			msg.Price = p.Price
			msg.Owner = p.Owner
		}
	}
	w.outbox.Enqueue(msg)
}

func toProduct(record chain.OnChainProduct) model.Product {
	return model.Product{
		ID:          record.Id.Uint64(),
		Name:        record.Name,
		Description: record.Description,
		Price:       chain.FormatEther(record.Price),
		Owner:       record.Owner.Hex(),
	}
}
