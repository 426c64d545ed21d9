package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/cache"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/marketdata"
)

type MarketService struct {
	source  marketdata.Source
	cache   cache.SnapshotCache
	logger  *slog.Logger
	metrics *Metrics
	watched []string
	maxAge  time.Duration
	now     func() time.Time
	lastGen atomic.Uint64
}

type Options struct {
	// Watched symbols are refreshed by Poll.
	Watched []string
	// MaxAge bounds how old a cached snapshot may be before Snapshot
	// refetches it; zero serves any cached entry.
	MaxAge time.Duration
}

func NewMarketService(source marketdata.Source, snapshots cache.SnapshotCache, logger *slog.Logger, metrics *Metrics, opts Options) *MarketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketService{
		source:  source,
		cache:   snapshots,
		logger:  logger,
		metrics: metrics,
		watched: opts.Watched,
		maxAge:  opts.MaxAge,
		now:     time.Now,
	}
}

// nextGeneration is taken when a fetch starts. Wall-clock nanoseconds keep
// generations ordered across replicas sharing a redis cache; the CAS keeps
// them strictly increasing within one process.
func (s *MarketService) nextGeneration() uint64 {
	for {
		last := s.lastGen.Load()
		next := uint64(s.now().UnixNano())
		if next <= last {
			next = last + 1
		}
		if s.lastGen.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (s *MarketService) Markets() []marketdata.Market {
	return marketdata.Catalog()
}

func (s *MarketService) Timeframes() []marketdata.Timeframe {
	return marketdata.Timeframes()
}

// Snapshot serves the cached quote, fetching it on a miss or when the cached
// one is older than MaxAge.
func (s *MarketService) Snapshot(ctx context.Context, symbol string) (marketdata.MarketData, error) {
	sym, ok := marketdata.NormalizeSymbol(symbol)
	if !ok {
		return marketdata.MarketData{}, apperr.NotFound("market")
	}

	e, hit, err := s.cache.Get(ctx, sym)
	if err != nil {
		s.logger.Warn("snapshot cache read failed", "symbol", sym, "error", err)
	}
	if hit && (s.maxAge <= 0 || s.now().Sub(e.Data.AsOf) < s.maxAge) {
		return e.Data, nil
	}
	return s.Refresh(ctx, sym)
}

// Refresh fetches a fresh quote. When a fetch that started later has already
// been cached, that newer snapshot is returned instead.
func (s *MarketService) Refresh(ctx context.Context, symbol string) (marketdata.MarketData, error) {
	sym, ok := marketdata.NormalizeSymbol(symbol)
	if !ok {
		return marketdata.MarketData{}, apperr.NotFound("market")
	}

	gen := s.nextGeneration()
	start := time.Now()
	data, err := s.source.Snapshot(ctx, sym)
	s.metrics.fetched("snapshot", err, time.Since(start))
	if err != nil {
		return marketdata.MarketData{}, err
	}
	data.Symbol = sym

	stored, err := s.cache.Put(ctx, cache.Entry{Data: data, Generation: gen})
	if err != nil {
		s.logger.Warn("snapshot cache write failed", "symbol", sym, "error", err)
		return data, nil
	}
	if stored {
		return data, nil
	}

	s.metrics.staleDrop()
	if newer, hit, err := s.cache.Get(ctx, sym); err == nil && hit {
		return newer.Data, nil
	}
	return data, nil
}

func (s *MarketService) Series(ctx context.Context, symbol, timeframe string) ([]marketdata.ChartPoint, marketdata.Timeframe, error) {
	tf, err := marketdata.ParseTimeframe(timeframe)
	if err != nil {
		return nil, marketdata.Timeframe{}, err
	}
	sym, ok := marketdata.NormalizeSymbol(symbol)
	if !ok {
		return nil, marketdata.Timeframe{}, apperr.NotFound("market")
	}

	start := time.Now()
	points, err := s.source.Series(ctx, sym, tf)
	s.metrics.fetched("series", err, time.Since(start))
	if err != nil {
		return nil, marketdata.Timeframe{}, err
	}
	return points, tf, nil
}

// Poll refreshes the watched symbols immediately and then every interval
// until ctx is cancelled.
func (s *MarketService) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 || len(s.watched) == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PollOnce(ctx)
		}
	}
}

// PollOnce refreshes every watched symbol concurrently.
func (s *MarketService) PollOnce(ctx context.Context) {
	start := time.Now()
	var wg sync.WaitGroup
	for _, sym := range s.watched {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			if _, err := s.Refresh(ctx, sym); err != nil && ctx.Err() == nil {
				s.logger.Error("market refresh failed", "symbol", sym, "error", err)
			}
		}(sym)
	}
	wg.Wait()
	s.metrics.polled(time.Since(start))
}
