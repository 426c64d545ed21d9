package marketdata

import (
	"strings"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
)

// Timeframe selects a chart's resolution and span.
type Timeframe struct {
	Value    string        `json:"value"`
	Label    string        `json:"label"`
	Interval time.Duration `json:"-"`
	Points   int           `json:"points"`
}

// Span is the time covered by the whole series.
func (tf Timeframe) Span() time.Duration {
	return tf.Interval * time.Duration(tf.Points)
}

const day = 24 * time.Hour

var timeframes = []Timeframe{
	{Value: "1h", Label: "1H", Interval: time.Minute, Points: 60},
	{Value: "24h", Label: "24H", Interval: 15 * time.Minute, Points: 96},
	{Value: "7d", Label: "7D", Interval: time.Hour, Points: 168},
	{Value: "30d", Label: "30D", Interval: 6 * time.Hour, Points: 120},
	{Value: "90d", Label: "90D", Interval: day, Points: 90},
	{Value: "1y", Label: "1Y", Interval: 7 * day, Points: 52},
	{Value: "all", Label: "All", Interval: 30 * day, Points: 36},
}

// DefaultTimeframe is what the dashboard chart opens with.
const DefaultTimeframe = "24h"

// Timeframes returns the table in display order.
func Timeframes() []Timeframe {
	out := make([]Timeframe, len(timeframes))
	copy(out, timeframes)
	return out
}

func ParseTimeframe(s string) (Timeframe, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		v = DefaultTimeframe
	}
	for _, tf := range timeframes {
		if tf.Value == v {
			return tf, nil
		}
	}
	return Timeframe{}, apperr.Field("timeframe", "must be one of 1h, 24h, 7d, 30d, 90d, 1y, all")
}
