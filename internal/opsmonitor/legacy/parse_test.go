package legacy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{name: "comma decimal", value: "1.234,56", expected: "1234.56"},
		{name: "point decimal", value: "1,234.56", expected: "1234.56"},
		{name: "currency prefix", value: "Bs. 12,5", expected: "12.5"},
		{name: "dollar", value: "$ 8.00", expected: "8"},
		{name: "plain integer", value: "42", expected: "42"},
		{name: "only thousands points", value: "1.234.567", expected: "1234567"},
		{name: "trailing separator", value: "15,", expected: "15"},
		{name: "negative", value: "-3,75", expected: "-3.75"},
		{name: "spaces", value: "  2 500,10 Bs ", expected: "2500.1"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseAmount(test.value)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(test.expected).Equal(got), "got %s", got)
		})
	}
}

func TestParseAmountErrors(t *testing.T) {
	for _, value := range []string{"", "Bs.", "N/A", ",."} {
		t.Run(value, func(t *testing.T) {
			_, err := ParseAmount(value)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestExtractRate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "bs prefix", text: "Tasa BCV: Bs 36,50", expected: "36.5"},
		{name: "bs dot prefix", text: "Tasa del día Bs.40,1234", expected: "40.1234"},
		{name: "equals", text: "1 USD = 40.12 VES", expected: "40.12"},
		{name: "ves prefix", text: "rate VES 1.036,75 today", expected: "1036.75"},
		{name: "dollar prefix", text: "cambio $38,2", expected: "38.2"},
		{name: "bare point number", text: "36.5", expected: "36.5"},
		{name: "bare comma number", text: " 36,50 ", expected: "36.5"},
		{name: "bare thousands", text: "1.036,75", expected: "1036.75"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ExtractRate(test.text)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(test.expected).Equal(got), "got %s", got)
		})
	}
}

func TestExtractRateErrors(t *testing.T) {
	for _, text := range []string{"", "sin tasa", "tasa 36,50", "Bs 0,00", "0", "-36.5"} {
		t.Run(text, func(t *testing.T) {
			_, err := ExtractRate(text)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestField(t *testing.T) {
	legacy := map[string]any{
		"iva":   "Bs. 16,00",
		"tasa":  36.5,
		"blank": "  ",
		"null":  nil,
		"count": 3,
	}
	v, ok := Field(legacy, "iva")
	assert.True(t, ok)
	assert.Equal(t, "Bs. 16,00", v)

	v, ok = Field(legacy, "tasa")
	assert.True(t, ok)
	assert.Equal(t, "36.5", v)
	rate, err := ExtractRate(v)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("36.5").Equal(rate))

	v, ok = Field(legacy, "count")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	for _, key := range []string{"blank", "null", "missing"} {
		_, ok = Field(legacy, key)
		assert.False(t, ok, key)
	}
}
