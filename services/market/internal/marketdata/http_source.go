package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/faisalantu/tradebridge-systems/libs/apperr"
)

// QuotePaths locate each snapshot field in the upstream quote document.
type QuotePaths struct {
	Price         string
	Change        string
	ChangePercent string
	High          string
	Low           string
	Volume        string
}

// SeriesPaths locate the parallel timestamp (epoch millis) and value lists
// in the upstream series document.
type SeriesPaths struct {
	Timestamps string
	Values     string
}

func DefaultQuotePaths() QuotePaths {
	return QuotePaths{
		Price:         "$.price",
		Change:        "$.change",
		ChangePercent: "$.changePercent",
		High:          "$.high",
		Low:           "$.low",
		Volume:        "$.volume",
	}
}

func DefaultSeriesPaths() SeriesPaths {
	return SeriesPaths{
		Timestamps: "$.points[*].timestamp",
		Values:     "$.points[*].value",
	}
}

type HTTPSourceConfig struct {
	BaseURL string
	Timeout time.Duration
	Quote   QuotePaths
	Series  SeriesPaths
}

// HTTPSource reads quotes from an upstream pricing API:
//
//	GET {base}/quote/{symbol}
//	GET {base}/series/{symbol}?interval=<seconds>&points=<n>
type HTTPSource struct {
	base    *url.URL
	client  *http.Client
	timeout time.Duration
	quote   QuotePaths
	series  SeriesPaths
	now     func() time.Time
}

func NewHTTPSource(cfg HTTPSourceConfig, client *http.Client) (*HTTPSource, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid market base url %q", cfg.BaseURL)
	}
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Quote == (QuotePaths{}) {
		cfg.Quote = DefaultQuotePaths()
	}
	if cfg.Series == (SeriesPaths{}) {
		cfg.Series = DefaultSeriesPaths()
	}
	return &HTTPSource{
		base:    base,
		client:  client,
		timeout: cfg.Timeout,
		quote:   cfg.Quote,
		series:  cfg.Series,
		now:     time.Now,
	}, nil
}

func (s *HTTPSource) Snapshot(ctx context.Context, symbol string) (MarketData, error) {
	doc, err := s.get(ctx, "quote/"+url.PathEscape(symbol), nil)
	if err != nil {
		return MarketData{}, err
	}

	md := MarketData{Symbol: symbol, AsOf: s.now().UTC()}
	fields := []struct {
		path string
		dst  *float64
	}{
		{s.quote.Price, &md.Price},
		{s.quote.Change, &md.Change},
		{s.quote.ChangePercent, &md.ChangePercent},
		{s.quote.High, &md.High},
		{s.quote.Low, &md.Low},
		{s.quote.Volume, &md.Volume},
	}
	for _, f := range fields {
		v, err := extractFloat(doc, f.path)
		if err != nil {
			return MarketData{}, apperr.Transient("malformed upstream quote", err)
		}
		*f.dst = v
	}
	return md, nil
}

func (s *HTTPSource) Series(ctx context.Context, symbol string, tf Timeframe) ([]ChartPoint, error) {
	q := url.Values{}
	q.Set("interval", strconv.FormatInt(int64(tf.Interval/time.Second), 10))
	q.Set("points", strconv.Itoa(tf.Points))
	doc, err := s.get(ctx, "series/"+url.PathEscape(symbol), q)
	if err != nil {
		return nil, err
	}

	stamps, err := extractList(doc, s.series.Timestamps)
	if err != nil {
		return nil, apperr.Transient("malformed upstream series", err)
	}
	values, err := extractList(doc, s.series.Values)
	if err != nil {
		return nil, apperr.Transient("malformed upstream series", err)
	}
	if len(stamps) != len(values) {
		return nil, apperr.Transient("malformed upstream series", fmt.Errorf("%d timestamps for %d values", len(stamps), len(values)))
	}

	points := make([]ChartPoint, 0, len(values))
	for i := range values {
		points = append(points, ChartPoint{Timestamp: int64(stamps[i]), Value: values[i]})
	}
	if err := orderSeries(points); err != nil {
		return nil, apperr.Transient("malformed upstream series", err)
	}
	return points, nil
}

// orderSeries sorts points oldest first and fails on repeated timestamps.
func orderSeries(points []ChartPoint) error {
	slices.SortStableFunc(points, func(a, b ChartPoint) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp == points[i-1].Timestamp {
			return fmt.Errorf("duplicate timestamp %d", points[i].Timestamp)
		}
	}
	return nil
}

func (s *HTTPSource) get(ctx context.Context, path string, query url.Values) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u := s.base.JoinPath(path)
	u.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperr.Transient("market data upstream timed out", err)
		}
		return nil, apperr.Transient("market data upstream unavailable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.NotFound("market")
	case resp.StatusCode >= 500:
		return nil, apperr.Transient("market data upstream unavailable", fmt.Errorf("upstream status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("market data upstream status %d", resp.StatusCode)
	}

	var doc any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&doc); err != nil {
		return nil, apperr.Transient("malformed upstream response", err)
	}
	return doc, nil
}

func extractFloat(doc any, path string) (float64, error) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	// a filter expression yields a list; keep the first match
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return 0, fmt.Errorf("%s: no match", path)
		}
		v = list[0]
	}
	return toFloat(path, v)
}

func extractList(doc any, path string) ([]float64, error) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: not a list", path)
	}
	out := make([]float64, 0, len(list))
	for _, item := range list {
		f, err := toFloat(path, item)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func toFloat(path string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s: not a number (%T)", path, v)
	}
}
