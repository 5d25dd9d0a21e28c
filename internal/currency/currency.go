// Package currency provides fixed-rate conversion and formatting for
// the small set of currencies donations are accepted in.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

// Module provides a converter with the default rate table.
var Module = fx.Provide(NewDefaultConverter)

const (
	USD = "USD"
	CAD = "CAD"
)

var (
	ErrUnsupportedCurrencyPair = errors.New("unsupported_currency_pair")
)

// RateTable maps from-currency to to-currency to the multiplier.
type RateTable map[string]map[string]decimal.Decimal

// DefaultRates returns the fixed exchange rates used by the platform.
// The reverse rate is the reciprocal of the forward rate so a convert
// there and back lands within a cent of the starting amount.
func DefaultRates() RateTable {
	return RateTable{
		USD: {
			USD: decimal.NewFromInt(1),
			CAD: decimal.RequireFromString("1.35"),
		},
		CAD: {
			CAD: decimal.NewFromInt(1),
			USD: decimal.RequireFromString("0.740741"),
		},
	}
}

// Converter converts amounts between supported currencies.
type Converter struct {
	rates RateTable
}

func NewConverter(rates RateTable) *Converter {
	return &Converter{rates: rates}
}

func NewDefaultConverter() *Converter {
	return NewConverter(DefaultRates())
}

// Convert converts amount from one currency to another at the table rate.
// Results are rounded to 2 decimal places, half away from zero, at the
// point of conversion only. Identity conversions return amount unchanged.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return amount, nil
	}

	rate, ok := c.rates[from][to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s to %s", ErrUnsupportedCurrencyPair, from, to)
	}

	return amount.Mul(rate).Round(2), nil
}

// SupportedCurrencies lists the currencies present in the rate table.
func (c *Converter) SupportedCurrencies() []string {
	out := make([]string, 0, len(c.rates))
	for code := range c.rates {
		out = append(out, code)
	}
	return out
}

// Format renders an amount in a fixed en-US style, e.g. "$1,234.50".
func Format(amount decimal.Decimal, code string) string {
	negative := amount.IsNegative()
	fixed := amount.Abs().StringFixed(2)

	whole, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	if code != "" {
		b.WriteByte(' ')
		b.WriteString(strings.ToUpper(code))
	}
	return b.String()
}
