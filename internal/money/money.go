// Package money centralizes the decimal types used across the round
// engine: USD stake amounts, crypto wallet balances, and the supported
// currency enum. Everything is shopspring/decimal rather than float64 —
// the spec's two-fractional-digit and non-negative-balance invariants
// don't survive float64 rounding across thousands of rounds.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is one of the five wallet denominations a bet can be staked in.
type Currency string

const (
	BTC Currency = "BTC"
	ETH Currency = "ETH"
	LTC Currency = "LTC"
	ADA Currency = "ADA"
	DOT Currency = "DOT"
)

// Supported lists the currencies a wallet or bet may use, in a fixed
// order so iteration (GetAll, wallet seeding) is deterministic.
var Supported = []Currency{BTC, ETH, LTC, ADA, DOT}

// Valid reports whether c is one of the Supported currencies.
func (c Currency) Valid() bool {
	for _, s := range Supported {
		if s == c {
			return true
		}
	}
	return false
}

// FallbackPrice is the last-resort USD price used when the quote cache
// has neither a fresh nor a stale entry for a currency (spec.md §4.2).
func FallbackPrice(c Currency) decimal.Decimal {
	switch c {
	case BTC:
		return decimal.NewFromInt(45000)
	case ETH:
		return decimal.NewFromInt(3000)
	case LTC:
		return decimal.NewFromInt(100)
	case ADA:
		return decimal.NewFromFloat(0.5)
	case DOT:
		return decimal.NewFromInt(7)
	default:
		return decimal.Zero
	}
}

// InitialWalletBalance is the opening balance a currency receives the
// first time a user's wallet is initialized (spec.md §4.3).
func InitialWalletBalance(c Currency) decimal.Decimal {
	switch c {
	case BTC:
		return decimal.NewFromFloat(0.001)
	case ETH:
		return decimal.NewFromFloat(0.01)
	default:
		return decimal.NewFromInt(1)
	}
}

// UsdToCrypto converts a USD amount into units of crypto at the given
// USD-per-unit price.
func UsdToCrypto(usd, price decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return usd.Div(price)
}

// CryptoToUsd converts a crypto amount into USD at the given
// USD-per-unit price.
func CryptoToUsd(crypto, price decimal.Decimal) decimal.Decimal {
	return crypto.Mul(price)
}

// TruncateCents truncates d toward zero at two fractional digits,
// matching spec.md's "truncate toward zero at two fractional digits"
// instruction for crash_point and current_multiplier (not round-half-up).
func TruncateCents(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// Clamp restricts d to the inclusive range [min, max].
func Clamp(d, min, max decimal.Decimal) decimal.Decimal {
	if d.LessThan(min) {
		return min
	}
	if d.GreaterThan(max) {
		return max
	}
	return d
}

// ParseCurrency validates and normalizes a wire-format currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if !c.Valid() {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}
