package model

import "strings"

// Product is the read-through view of a product listed on chain.
// Price is a human decimal string in ether.
type Product struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Owner       string `json:"owner"`
}

// OwnedBy reports whether account owns the product. Addresses are compared
// case-insensitively since providers may return checksummed or lowercase forms.
func (p Product) OwnedBy(account string) bool {
	return account != "" && strings.EqualFold(p.Owner, account)
}

// ShortAddress abbreviates an address to its first six and last four characters.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
