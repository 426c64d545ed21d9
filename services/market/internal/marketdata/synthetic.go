package marketdata

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Synthetic generates random quotes and random-walk series. It never talks
// to the network and is meant for development and demos.
type Synthetic struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewSynthetic(rng *rand.Rand, now func() time.Time) *Synthetic {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	return &Synthetic{rng: rng, now: now}
}

func (s *Synthetic) Snapshot(ctx context.Context, symbol string) (MarketData, error) {
	if err := ctx.Err(); err != nil {
		return MarketData{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.rng.Float64()*1000 + 100
	changePercent := round2(s.rng.Float64()*5 - 2.5)
	// change against the previous close implied by changePercent
	change := price * changePercent / (100 + changePercent)
	high := price * (1 + s.rng.Float64()*0.03)
	low := price * (1 - s.rng.Float64()*0.03)

	return MarketData{
		Symbol:        symbol,
		Price:         round2(price),
		Change:        round2(change),
		ChangePercent: changePercent,
		High:          math.Max(round2(high), round2(price)),
		Low:           math.Min(round2(low), round2(price)),
		Volume:        math.Floor(s.rng.Float64() * 10_000_000),
		AsOf:          s.now().UTC(),
	}, nil
}

// Series walks from a start in [500, 1000) with a slight upward drift,
// floored at 10. Timestamps end one interval before now.
func (s *Synthetic) Series(ctx context.Context, symbol string, tf Timeframe) ([]ChartPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	value := s.rng.Float64()*500 + 500
	points := make([]ChartPoint, 0, tf.Points)
	for i := tf.Points; i > 0; i-- {
		value = math.Max(10, value+(s.rng.Float64()-0.48)*20)
		points = append(points, ChartPoint{
			Timestamp: now.Add(-time.Duration(i) * tf.Interval).UnixMilli(),
			Value:     value,
		})
	}
	return points, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
