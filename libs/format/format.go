// Package format renders amounts, percentages and dates for display.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/shopspring/decimal"
)

const (
	DateLayout     = "Jan 2, 2006"
	DateTimeLayout = "Jan 2, 2006, 03:04 PM"
)

func moneyCurrency(c currency.Currency) (*money.Currency, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unsupported currency %q", c)
	}
	mc := money.GetCurrency(c.String())
	if mc == nil {
		return nil, fmt.Errorf("no formatter for currency %q", c)
	}
	return mc, nil
}

// formatter uses go-money's grouping and template for c with the sign of
// c's own locale in place of go-money's grapheme.
func formatter(c currency.Currency, mc *money.Currency) *money.Formatter {
	return money.NewFormatter(mc.Fraction, mc.Decimal, mc.Thousand, c.Symbol(), mc.Template)
}

// Currency renders amount with the symbol and digit grouping of c, always
// with two fraction digits. Half-cent values round away from zero.
func Currency(amount decimal.Decimal, c currency.Currency) string {
	mc, err := moneyCurrency(c)
	if err != nil {
		return amount.StringFixed(2) + " " + c.String()
	}
	minor := amount.Shift(int32(mc.Fraction)).Round(0).IntPart()
	return formatter(c, mc).Format(minor)
}

func CurrencyFloat(amount float64, c currency.Currency) string {
	return Currency(decimal.NewFromFloat(amount), c)
}

// ParseCurrency reverses Currency.
func ParseCurrency(s string, c currency.Currency) (decimal.Decimal, error) {
	mc, err := moneyCurrency(c)
	if err != nil {
		return decimal.Zero, err
	}
	raw := strings.TrimSpace(s)
	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")
	raw = strings.Replace(raw, c.Symbol(), "", 1)
	if mc.Thousand != "" {
		raw = strings.ReplaceAll(raw, mc.Thousand, "")
	}
	if mc.Decimal != "." {
		raw = strings.Replace(raw, mc.Decimal, ".", 1)
	}
	raw = strings.TrimSpace(raw)

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s amount %q: %w", c, s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// Percentage renders value with two decimals and an explicit sign. Values
// that round to zero render unsigned.
func Percentage(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0.00%"
	}
	rounded := math.Round(value*100) / 100
	if rounded == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%+.2f%%", rounded)
}

func PercentageDecimal(value decimal.Decimal) string {
	return Percentage(value.Round(2).InexactFloat64())
}

func Date(t time.Time) string {
	return t.Format(DateLayout)
}

func DateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}
