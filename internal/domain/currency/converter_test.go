package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConvert_SameCurrencyUnchanged(t *testing.T) {
	for _, amount := range []float64{0, 0.1, 12.345, 99999.999, -5} {
		got := Convert(amount, "EUR", "EUR")
		assert.Equal(t, Conversion{Amount: amount, Currency: "EUR"}, got)
	}
}

func TestConvert_CaseInsensitiveMatch(t *testing.T) {
	got := Convert(12.345, "usd", "USD")
	assert.Equal(t, 12.345, got.Amount)
	assert.Equal(t, "USD", got.Currency)
}

func TestConvert_StubRate(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   float64
	}{
		{"hundred", 100, 110.00},
		{"fifty", 50, 55.00},
		{"rounds half up", 0.05, 0.06},
		{"rounds down", 1.234, 1.36},
		{"cents", 85.5, 94.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Convert(tt.amount, "EUR", "USD")
			assert.Equal(t, tt.want, got.Amount)
			assert.Equal(t, "USD", got.Currency)
		})
	}
}

func TestConverter_CustomRate(t *testing.T) {
	c := NewConverterWithRate(decimal.NewFromInt(2))
	assert.Equal(t, Conversion{Amount: 21, Currency: "JPY"}, c.Convert(10.5, "USD", "JPY"))
}
