// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// ChangePercent returns (new - old) / old * 100, or zero when old is zero.
// The zero-divisor case is defined as "no change" so that products ingested
// with an unknown cost never produce infinite drift.
func ChangePercent(oldVal, newVal Money) Money {
	if oldVal.IsZero() {
		return decimal.Zero
	}
	return newVal.Sub(oldVal).Div(oldVal).Mul(decimal.NewFromInt(100))
}
