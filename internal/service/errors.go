package service

import (
	"errors"

	"github.com/iyhunko/dapp-marketplace/internal/wallet"
)

var (
	// ErrWalletNotConnected is returned when an operation needs a connected account.
	ErrWalletNotConnected = errors.New("wallet not connected")
	// ErrInvalidDraft is returned when the draft fails validation.
	ErrInvalidDraft = errors.New("invalid product draft")
	// ErrCreateInProgress is returned while another creation is in flight for the session.
	ErrCreateInProgress = errors.New("product creation already in progress")
	// ErrTransactionRejected is returned when the user declines the transaction in their wallet.
	ErrTransactionRejected = errors.New("transaction rejected by user")
	// ErrCreateFailed is returned for any other creation failure.
	ErrCreateFailed = errors.New("product creation failed")
	// ErrLoadFailed is returned when the product list could not be read.
	ErrLoadFailed = errors.New("loading products failed")
)

// UserMessage converts an error from a user-initiated action into the text shown to the user.
// Details stay in the log.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, wallet.ErrNoProvider):
		return "Please install a wallet provider to use this application"
	case errors.Is(err, wallet.ErrRequestPending):
		return "Please check your wallet. A connection request is already pending."
	case errors.Is(err, wallet.ErrConnectFailed):
		return "Error connecting wallet. Please try again."
	case errors.Is(err, ErrWalletNotConnected):
		return "Please connect your wallet first"
	case errors.Is(err, ErrInvalidDraft):
		return "Please fill in name, description and a valid price"
	case errors.Is(err, ErrCreateInProgress):
		return "A product is already being created. Please wait."
	case errors.Is(err, ErrTransactionRejected):
		return "Transaction was rejected by user"
	case errors.Is(err, ErrCreateFailed):
		return "Error creating product. Please check the console for details."
	case errors.Is(err, ErrLoadFailed):
		return "Error loading products. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
