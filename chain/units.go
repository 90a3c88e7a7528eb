package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/govalues/decimal"
)

// EtherDecimals is the exponent between ether and wei.
const EtherDecimals = 18

var (
	weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(EtherDecimals), nil)
	weiPerGwei  = big.NewInt(1_000_000_000)
)

var (
	// ErrAmountSyntax wraps amounts that are not decimal numbers.
	ErrAmountSyntax = errors.New("invalid amount")
	// ErrAmountNotPositive is returned for zero and negative amounts.
	ErrAmountNotPositive = errors.New("amount must be positive")
)

// ParseWei converts a decimal ether amount such as "1.5" or "2e-3" to wei.
// The conversion is exact: an amount with a non-zero digit below one wei is
// an error, never a rounding.
func ParseWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	// decimal fixes the accepted grammar; its value may be rounded, so the
	// wei amount comes from the text itself.
	if _, err := decimal.Parse(s); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrAmountSyntax, s, err)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrAmountSyntax, s)
	}
	if r.Sign() <= 0 {
		return nil, ErrAmountNotPositive
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEther))
	if !r.IsInt() {
		return nil, fmt.Errorf("amount %s has more than %d fractional digits", s, EtherDecimals)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FromWei formats a wei amount in ether without rounding.
func FromWei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	abs := new(big.Int).Abs(wei)
	q, r := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))
	s := q.String()
	if r.Sign() != 0 {
		frac := r.String()
		frac = strings.Repeat("0", EtherDecimals-len(frac)) + frac
		s += "." + strings.TrimRight(frac, "0")
	}
	if wei.Sign() < 0 {
		s = "-" + s
	}
	return s
}

// GweiToWei converts a whole gwei price to wei.
func GweiToWei(gwei int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(gwei), weiPerGwei)
}
