// Package cache holds the latest market snapshot per symbol. Writers attach
// a generation and a write carrying an older generation than the stored one
// is dropped, so a slow fetch never overwrites a newer result.
package cache

import (
	"context"
	"strings"

	"github.com/faisalantu/tradebridge-systems/services/market/internal/marketdata"
)

type Entry struct {
	Data       marketdata.MarketData `json:"data"`
	Generation uint64                `json:"generation"`
}

type SnapshotCache interface {
	Get(ctx context.Context, symbol string) (Entry, bool, error)
	// Put stores e unless the cache already holds the same or a newer
	// generation for the symbol; it reports whether e was stored.
	Put(ctx context.Context, e Entry) (bool, error)
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
