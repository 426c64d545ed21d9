package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/logging"
	"github.com/faisalantu/tradebridge-systems/libs/metrics"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/cache"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/marketdata"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	calls    atomic.Int64
	snapshot func(call int64, symbol string) (marketdata.MarketData, error)
	series   []marketdata.ChartPoint
	err      error
}

func (f *fakeSource) Snapshot(ctx context.Context, symbol string) (marketdata.MarketData, error) {
	n := f.calls.Add(1)
	if f.snapshot != nil {
		return f.snapshot(n, symbol)
	}
	return marketdata.MarketData{Symbol: symbol, Price: float64(n)}, f.err
}

func (f *fakeSource) Series(ctx context.Context, symbol string, tf marketdata.Timeframe) ([]marketdata.ChartPoint, error) {
	return f.series, f.err
}

func newService(src marketdata.Source, watched ...string) (*MarketService, *cache.MemoryCache, *Metrics) {
	c := cache.NewMemoryCache()
	m := NewMetrics(metrics.NewRegistry())
	return NewMarketService(src, c, logging.Discard(), m, Options{Watched: watched}), c, m
}

func TestSnapshotCachesAfterMiss(t *testing.T) {
	src := &fakeSource{}
	svc, _, _ := newService(src)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, "aapl")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	second, err := svc.Snapshot(ctx, "AAPL")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if first.Price != second.Price || src.calls.Load() != 1 {
		t.Fatalf("expected cached snapshot, got %v then %v after %d calls", first.Price, second.Price, src.calls.Load())
	}
	if first.Symbol != "AAPL" {
		t.Fatalf("expected normalized symbol, got %q", first.Symbol)
	}
}

func TestSnapshotRefetchesWhenStale(t *testing.T) {
	src := &fakeSource{snapshot: func(call int64, symbol string) (marketdata.MarketData, error) {
		return marketdata.MarketData{Symbol: symbol, Price: float64(call), AsOf: time.Now().Add(-time.Minute)}, nil
	}}
	c := cache.NewMemoryCache()
	svc := NewMarketService(src, c, logging.Discard(), nil, Options{MaxAge: 30 * time.Second})

	if _, err := svc.Snapshot(context.Background(), "AMZN"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	md, err := svc.Snapshot(context.Background(), "AMZN")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if md.Price != 2 || src.calls.Load() != 2 {
		t.Fatalf("expected stale entry refetched, got price %v after %d calls", md.Price, src.calls.Load())
	}
}

func TestSnapshotUnknownSymbol(t *testing.T) {
	svc, _, _ := newService(&fakeSource{})
	if _, err := svc.Snapshot(context.Background(), "DOGE"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRefreshLatestRequestWins(t *testing.T) {
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	src := &fakeSource{snapshot: func(call int64, symbol string) (marketdata.MarketData, error) {
		if call == 1 {
			close(slowStarted)
			<-releaseSlow
			return marketdata.MarketData{Symbol: symbol, Price: 100}, nil
		}
		return marketdata.MarketData{Symbol: symbol, Price: 200}, nil
	}}
	svc, c, m := newService(src)
	ctx := context.Background()

	var slowResult marketdata.MarketData
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowResult, _ = svc.Refresh(ctx, "BTCUSDT")
	}()
	<-slowStarted

	fast, err := svc.Refresh(ctx, "BTCUSDT")
	if err != nil || fast.Price != 200 {
		t.Fatalf("fast refresh: %+v %v", fast, err)
	}
	close(releaseSlow)
	wg.Wait()

	cached, _, _ := c.Get(ctx, "BTCUSDT")
	if cached.Data.Price != 200 {
		t.Fatalf("expected newer snapshot kept, got %v", cached.Data.Price)
	}
	if slowResult.Price != 200 {
		t.Fatalf("expected slow caller to receive newer snapshot, got %v", slowResult.Price)
	}
	if got := testutil.ToFloat64(m.StaleDrops); got != 1 {
		t.Fatalf("expected 1 stale drop, got %v", got)
	}
}

func TestRefreshPropagatesSourceError(t *testing.T) {
	src := &fakeSource{err: apperr.Transient("upstream down", errors.New("dial"))}
	svc, c, _ := newService(src)

	if _, err := svc.Refresh(context.Background(), "MSFT"); !apperr.Is(err, apperr.KindTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if c.Size() != 0 {
		t.Fatal("expected nothing cached on failure")
	}
}

func TestSeriesValidatesTimeframe(t *testing.T) {
	src := &fakeSource{series: []marketdata.ChartPoint{{Timestamp: 1, Value: 2}}}
	svc, _, _ := newService(src)

	if _, _, err := svc.Series(context.Background(), "AAPL", "2w"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	points, tf, err := svc.Series(context.Background(), "PORTFOLIO", "")
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if tf.Value != "24h" || len(points) != 1 {
		t.Fatalf("unexpected series %v %+v", tf.Value, points)
	}
}

func TestPollOnceRefreshesWatched(t *testing.T) {
	src := &fakeSource{}
	svc, c, _ := newService(src, "AAPL", "BTCUSDT", "TSLA")

	svc.PollOnce(context.Background())
	if c.Size() != 3 {
		t.Fatalf("expected 3 cached symbols, got %d", c.Size())
	}
}

func TestPollStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	svc, _, _ := newService(src, "AAPL")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Poll(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	if src.calls.Load() < 2 {
		t.Fatalf("expected repeated refreshes, got %d", src.calls.Load())
	}
}

func TestNextGenerationStrictlyIncreasing(t *testing.T) {
	svc, _, _ := newService(&fakeSource{})
	fixed := time.Unix(1700000000, 0)
	svc.now = func() time.Time { return fixed }

	a := svc.nextGeneration()
	b := svc.nextGeneration()
	if b <= a {
		t.Fatalf("expected increasing generations, got %d then %d", a, b)
	}
}
