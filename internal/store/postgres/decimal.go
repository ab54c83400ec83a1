package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Numeric columns are scanned through text to avoid precision loss, the same
// way large integers are handled elsewhere in the codebase.

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("postgres: parse numeric %q: %w", s, err)
	}
	return d, nil
}

func parseDecimalPtr(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseDecimal(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
