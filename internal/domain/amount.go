package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a decimal amount string. Payments and prices are
// compared for exact equality, so amounts are never floats anywhere in
// the system.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}
