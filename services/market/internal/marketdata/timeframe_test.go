package marketdata

import (
	"testing"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
)

func TestTimeframeTable(t *testing.T) {
	want := map[string]struct {
		interval time.Duration
		points   int
		label    string
	}{
		"1h":  {time.Minute, 60, "1H"},
		"24h": {15 * time.Minute, 96, "24H"},
		"7d":  {time.Hour, 168, "7D"},
		"30d": {6 * time.Hour, 120, "30D"},
		"90d": {24 * time.Hour, 90, "90D"},
		"1y":  {7 * 24 * time.Hour, 52, "1Y"},
		"all": {30 * 24 * time.Hour, 36, "All"},
	}
	got := Timeframes()
	if len(got) != len(want) {
		t.Fatalf("expected %d timeframes, got %d", len(want), len(got))
	}
	for _, tf := range got {
		w, ok := want[tf.Value]
		if !ok {
			t.Fatalf("unexpected timeframe %q", tf.Value)
		}
		if tf.Interval != w.interval || tf.Points != w.points || tf.Label != w.label {
			t.Fatalf("%s: got %v x %d %q", tf.Value, tf.Interval, tf.Points, tf.Label)
		}
	}
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe(" 7D ")
	if err != nil || tf.Value != "7d" {
		t.Fatalf("expected 7d, got %+v %v", tf, err)
	}
	tf, err = ParseTimeframe("")
	if err != nil || tf.Value != DefaultTimeframe {
		t.Fatalf("expected default, got %+v %v", tf, err)
	}
	if _, err := ParseTimeframe("5m"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if sym, ok := NormalizeSymbol(" btcusdt"); !ok || sym != "BTCUSDT" {
		t.Fatalf("expected BTCUSDT, got %q %v", sym, ok)
	}
	if _, ok := NormalizeSymbol("DOGE"); ok {
		t.Fatal("expected unknown symbol")
	}
	if len(Catalog()) != 11 {
		t.Fatalf("expected 11 catalog entries, got %d", len(Catalog()))
	}
}
