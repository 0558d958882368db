package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Receipt is the part of a transaction receipt the marketplace cares about.
type Receipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
	Status      hexutil.Uint64 `json:"status"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r.Status == 1
}

// Transaction is a submitted transaction whose confirmation can be awaited.
type Transaction struct {
	hash         common.Hash
	requester    Requester
	pollInterval time.Duration
}

// Hash returns the transaction hash.
func (t *Transaction) Hash() common.Hash {
	return t.hash
}

// Wait blocks until the transaction is included in a block or ctx is done.
// There is no built-in timeout.
func (t *Transaction) Wait(ctx context.Context) (*Receipt, error) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		var receipt *Receipt
		if err := t.requester.Request(ctx, &receipt, "eth_getTransactionReceipt", t.hash); err != nil {
			return nil, fmt.Errorf("failed to fetch receipt for %s: %w", t.hash.Hex(), err)
		}
		if receipt != nil {
			if !receipt.Succeeded() {
				return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, t.hash.Hex())
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
