package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iyhunko/dapp-marketplace/internal/chain"
)

var (
	// ErrEmptyName is returned when the draft has no product name.
	ErrEmptyName = errors.New("name is required")
	// ErrEmptyDescription is returned when the draft has no description.
	ErrEmptyDescription = errors.New("description is required")
	// ErrInvalidPrice is returned when the price is not an ether amount the contract accepts.
	ErrInvalidPrice = errors.New("price must be a non-negative decimal with at most 18 decimals")
)

// Image is a local file attached to a draft.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Draft is the transient form state for a new product.
type Draft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Image       *Image `json:"-"`
}

// IsZero reports whether the draft holds no user input.
func (d Draft) IsZero() bool {
	return d.Name == "" && d.Description == "" && d.Price == "" && d.Image == nil
}

// Validate enforces the creation invariant: non-empty name and description and a
// price that converts to wei.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if _, err := chain.ParseEther(d.Price); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPrice, err)
	}
	return nil
}
