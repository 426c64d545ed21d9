package format

import (
	"testing"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrency(t *testing.T) {
	cases := []struct {
		amount string
		c      currency.Currency
		want   string
	}{
		{"1234.5", currency.USD, "$1,234.50"},
		{"1234.5", currency.GBP, "£1,234.50"},
		{"1234.5", currency.AUD, "$1,234.50"},
		{"1234.5", currency.CAD, "$1,234.50"},
		{"0", currency.GBP, "£0.00"},
		{"-1234.5", currency.USD, "-$1,234.50"},
		{"1000000", currency.USD, "$1,000,000.00"},
		{"0.005", currency.USD, "$0.01"},
		{"12.344", currency.GBP, "£12.34"},
		{"-12.3", currency.AUD, "-$12.30"},
		{"98765.43", currency.AUD, "$98,765.43"},
	}
	for _, tc := range cases {
		got := Currency(decimal.RequireFromString(tc.amount), tc.c)
		assert.Equal(t, tc.want, got, "%s %s", tc.amount, tc.c)
	}
}

func TestCurrencyAlwaysTwoDecimals(t *testing.T) {
	for _, c := range currency.All() {
		got := CurrencyFloat(7, c)
		require.GreaterOrEqual(t, len(got), 3)
		assert.Equal(t, ".00", got[len(got)-3:], c)
	}
}

func TestParseCurrencyRoundTrip(t *testing.T) {
	for _, c := range currency.All() {
		for _, amount := range []string{"0", "1234.5", "-87.25", "999999.99"} {
			d := decimal.RequireFromString(amount)
			parsed, err := ParseCurrency(Currency(d, c), c)
			require.NoError(t, err)
			assert.True(t, d.Equal(parsed), "%s %s -> %s", amount, c, parsed)
		}
	}

	parsed, err := ParseCurrency("$1,234.50", currency.AUD)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1234.5").Equal(parsed))

	_, err = ParseCurrency("abc", currency.USD)
	assert.Error(t, err)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, "+12.50%", Percentage(12.5))
	assert.Equal(t, "-2.10%", Percentage(-2.1))
	assert.Equal(t, "0.00%", Percentage(0))
	assert.Equal(t, "0.00%", Percentage(0.004))
	assert.Equal(t, "0.00%", Percentage(-0.004))
	assert.Equal(t, "+0.01%", Percentage(0.005))
	assert.Equal(t, "+12.50%", PercentageDecimal(decimal.RequireFromString("12.5")))
}

func TestDates(t *testing.T) {
	ts := time.Date(2025, time.January, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "Jan 5, 2025", Date(ts))
	assert.Equal(t, "Jan 5, 2025, 02:30 PM", DateTime(ts))

	morning := time.Date(2024, time.December, 31, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "Dec 31, 2024, 09:05 AM", DateTime(morning))
}
