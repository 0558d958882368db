package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimal places between ether and wei.
const EtherDecimals = 18

// ErrInvalidAmount is returned when an ether amount cannot be represented in wei.
var ErrInvalidAmount = errors.New("invalid ether amount")

// FormatEther renders a wei amount as an ether decimal string. Whole amounts keep
// one fractional digit ("1.0"), matching what wallets display.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0.0"
	}
	s := decimal.NewFromBigInt(wei, -EtherDecimals).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseEther converts an ether decimal string to wei. Only plain decimal
// notation is accepted: no sign, no exponent.
func ParseEther(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if !isPlainDecimal(trimmed) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	wei := d.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, amount, EtherDecimals)
	}
	return wei.BigInt(), nil
}

func isPlainDecimal(s string) bool {
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
