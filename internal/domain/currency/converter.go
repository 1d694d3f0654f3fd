// Package currency converts expense amounts into a company's default currency.
// There is no rates source: every cross-currency conversion applies one fixed rate.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// StubRate is applied to every conversion between two different currencies
var StubRate = decimal.RequireFromString("1.1")

// Conversion is an amount expressed in a target currency
type Conversion struct {
	Amount   float64
	Currency string
}

// Converter applies a fixed rate between differing currencies
type Converter struct {
	rate decimal.Decimal
}

// NewConverter returns a converter using StubRate
func NewConverter() *Converter {
	return &Converter{rate: StubRate}
}

// NewConverterWithRate returns a converter using rate instead of StubRate
func NewConverterWithRate(rate decimal.Decimal) *Converter {
	return &Converter{rate: rate}
}

// Convert returns amount unchanged when the currencies match (case-insensitively),
// otherwise amount*rate rounded half away from zero to cents.
func (c *Converter) Convert(amount float64, from, to string) Conversion {
	if strings.EqualFold(from, to) {
		return Conversion{Amount: amount, Currency: to}
	}

	converted := decimal.NewFromFloat(amount).Mul(c.rate).Round(2)
	return Conversion{Amount: converted.InexactFloat64(), Currency: to}
}

// Convert converts with StubRate
func Convert(amount float64, from, to string) Conversion {
	return NewConverter().Convert(amount, from, to)
}
