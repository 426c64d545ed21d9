package currency

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c, err := Parse(" gbp ")
	require.NoError(t, err)
	assert.Equal(t, GBP, c)

	_, err = Parse("EUR")
	assert.Error(t, err)
	_, err = Parse("")
	assert.Error(t, err)
}

func TestLocales(t *testing.T) {
	want := map[Currency]string{GBP: "en-GB", AUD: "en-AU", USD: "en-US", CAD: "en-CA"}
	for _, c := range All() {
		assert.Equal(t, want[c], c.Locale(), c)
		assert.True(t, c.Valid())
	}
	assert.False(t, Currency("JPY").Valid())
}

func TestSymbolsFollowOwnLocale(t *testing.T) {
	want := map[Currency]string{GBP: "£", AUD: "$", USD: "$", CAD: "$"}
	for _, c := range All() {
		assert.Equal(t, want[c], c.Symbol(), c)
	}
	assert.Empty(t, Currency("JPY").Symbol())
}

func TestJSONRoundTrip(t *testing.T) {
	var out struct {
		Currency Currency `json:"currency"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"currency":"cad"}`), &out))
	assert.Equal(t, CAD, out.Currency)

	assert.Error(t, json.Unmarshal([]byte(`{"currency":"XYZ"}`), &out))
}
