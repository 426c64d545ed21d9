// Package currency holds the closed set of account currencies.
package currency

import (
	"fmt"
	"strings"
)

type Currency string

const (
	GBP Currency = "GBP"
	AUD Currency = "AUD"
	USD Currency = "USD"
	CAD Currency = "CAD"
)

type locale struct {
	tag    string
	symbol string
}

// Symbols are what each locale prints for its own currency, so AUD in en-AU
// is "$" rather than "A$".
var locales = map[Currency]locale{
	GBP: {"en-GB", "£"},
	AUD: {"en-AU", "$"},
	USD: {"en-US", "$"},
	CAD: {"en-CA", "$"},
}

// All returns the supported currencies in display order.
func All() []Currency {
	return []Currency{GBP, AUD, USD, CAD}
}

func Parse(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := locales[c]; !ok {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

func (c Currency) Valid() bool {
	_, ok := locales[c]
	return ok
}

// Locale returns the BCP 47 tag whose conventions amounts in c follow.
func (c Currency) Locale() string {
	return locales[c].tag
}

// Symbol returns the currency sign used by c's own locale.
func (c Currency) Symbol() string {
	return locales[c].symbol
}

func (c Currency) String() string { return string(c) }

func (c *Currency) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Currency) MarshalText() ([]byte, error) {
	return []byte(c), nil
}
