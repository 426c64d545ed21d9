// Package marketdata provides market snapshots and chart series, either
// generated or fetched from an upstream pricing API.
package marketdata

import (
	"context"
	"slices"
	"strings"
	"time"
)

type MarketData struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        float64   `json:"volume"`
	AsOf          time.Time `json:"asOf"`
}

type ChartPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

type Source interface {
	Snapshot(ctx context.Context, symbol string) (MarketData, error)
	Series(ctx context.Context, symbol string, tf Timeframe) ([]ChartPoint, error)
}

// PortfolioSymbol names the aggregate series behind the dashboard chart.
const PortfolioSymbol = "PORTFOLIO"

type Market struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
}

var catalog = []Market{
	{Symbol: "ETHUSDT", Name: "Ethereum", Kind: "crypto"},
	{Symbol: "BTCUSDT", Name: "Bitcoin", Kind: "crypto"},
	{Symbol: "SOLUSDT", Name: "Solana", Kind: "crypto"},
	{Symbol: "ADAUSDT", Name: "Cardano", Kind: "crypto"},
	{Symbol: "BNBUSDT", Name: "BNB", Kind: "crypto"},
	{Symbol: "AAPL", Name: "Apple Inc.", Kind: "stock"},
	{Symbol: "MSFT", Name: "Microsoft Corporation", Kind: "stock"},
	{Symbol: "AMZN", Name: "Amazon.com Inc.", Kind: "stock"},
	{Symbol: "TSLA", Name: "Tesla Inc.", Kind: "stock"},
	{Symbol: "GOOGL", Name: "Alphabet Inc.", Kind: "stock"},
	{Symbol: PortfolioSymbol, Name: "Portfolio", Kind: "portfolio"},
}

func Catalog() []Market {
	return slices.Clone(catalog)
}

// NormalizeSymbol upper-cases s and reports whether it is in the catalog.
func NormalizeSymbol(s string) (string, bool) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	for _, m := range catalog {
		if m.Symbol == sym {
			return sym, true
		}
	}
	return sym, false
}
