// Package currency converts submitted amounts into an organization's base currency.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownCurrency is returned for a currency without a configured rate
var ErrUnknownCurrency = errors.New("unknown currency")

// StaticConverter converts with fixed rates expressed as units of the base
// currency per unit of each foreign currency. Results are rounded to cents.
type StaticConverter struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewStaticConverter creates a converter. With no rates it only accepts
// amounts already in the base currency.
func NewStaticConverter(base string, rates map[string]decimal.Decimal) *StaticConverter {
	base = strings.ToUpper(base)
	normalized := make(map[string]decimal.Decimal, len(rates)+1)
	for code, rate := range rates {
		normalized[strings.ToUpper(code)] = rate
	}
	normalized[base] = decimal.NewFromInt(1)
	return &StaticConverter{base: base, rates: normalized}
}

func (c *StaticConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount, nil
	}
	fromRate, ok := c.rates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	toRate, ok := c.rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	return amount.Mul(fromRate).Div(toRate).Round(2), nil
}
