package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal " + s)
	}
	return v
}

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei  *big.Int
		want string
	}{
		{wei("500000000000000000"), "0.5"},
		{wei("1000000000000000000"), "1.0"},
		{wei("1234500000000000000000"), "1234.5"},
		{wei("1"), "0.000000000000000001"},
		{wei("0"), "0.0"},
		{nil, "0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEther(tt.wei))
		})
	}
}

func TestParseEther(t *testing.T) {
	t.Run("valid amounts", func(t *testing.T) {
		tests := map[string]string{
			"0.5":                  "500000000000000000",
			"1":                    "1000000000000000000",
			" 2.25 ":               "2250000000000000000",
			"0":                    "0",
			"0.000000000000000001": "1",
			".5":                   "500000000000000000",
		}
		for in, want := range tests {
			got, err := ParseEther(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got.String(), in)
		}
	})

	t.Run("invalid amounts", func(t *testing.T) {
		for _, in := range []string{"", "abc", "-1", "0.0000000000000000001", "1e3", "1E-19", "+1", ".", "1.2.3", "0x10"} {
			_, err := ParseEther(in)
			assert.ErrorIs(t, err, ErrInvalidAmount, in)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		for _, in := range []string{"0.5", "1.0", "42.123456789"} {
			parsed, err := ParseEther(in)
			require.NoError(t, err)
			assert.Equal(t, in, FormatEther(parsed))
		}
	})
}
