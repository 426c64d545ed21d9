package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	base "github.com/faisalantu/tradebridge-systems/libs/config"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/marketdata"
	"github.com/spf13/viper"
)

const (
	SourceSynthetic = "synthetic"
	SourceHTTP      = "http"
)

type MarketConfig struct {
	// Source is synthetic or http. Synthetic must be chosen explicitly
	// outside dev.
	Source       string
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	CacheTTL     time.Duration
	Watch        []string
	Quote        marketdata.QuotePaths
	Series       marketdata.SeriesPaths
	// Seed fixes the synthetic generator; zero picks a random seed.
	Seed uint64
}

type Config struct {
	App    base.AppConfig
	Redis  base.RedisConfig
	Market MarketConfig
}

func Load() (*Config, error) {
	v, err := base.NewViper(os.Getenv("TB_CONFIG"))
	if err != nil {
		return nil, err
	}
	v.SetDefault("service_name", "market")
	v.SetDefault("http.port", 8084)
	v.SetDefault("redis.prefix", "tb:market:snap:")
	v.SetDefault("market.timeout", "5s")
	v.SetDefault("market.poll_interval", "15s")
	v.SetDefault("market.cache_ttl", "1m")
	v.SetDefault("market.watch", "BTCUSDT,ETHUSDT,AAPL,PORTFOLIO")
	v.SetDefault("market.base_url", "")
	v.SetDefault("market.seed", 0)
	setPathDefaults(v)

	var app base.AppConfig
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	source := strings.ToLower(strings.TrimSpace(v.GetString("market.source")))
	if source == "" {
		source = SourceHTTP
		if app.IsDev() {
			source = SourceSynthetic
		}
	}

	cfg := &Config{
		App:   app,
		Redis: base.Redis(v),
		Market: MarketConfig{
			Source:       source,
			BaseURL:      v.GetString("market.base_url"),
			Timeout:      v.GetDuration("market.timeout"),
			PollInterval: v.GetDuration("market.poll_interval"),
			CacheTTL:     v.GetDuration("market.cache_ttl"),
			Seed:         v.GetUint64("market.seed"),
			Quote: marketdata.QuotePaths{
				Price:         v.GetString("market.paths.price"),
				Change:        v.GetString("market.paths.change"),
				ChangePercent: v.GetString("market.paths.change_percent"),
				High:          v.GetString("market.paths.high"),
				Low:           v.GetString("market.paths.low"),
				Volume:        v.GetString("market.paths.volume"),
			},
			Series: marketdata.SeriesPaths{
				Timestamps: v.GetString("market.paths.timestamps"),
				Values:     v.GetString("market.paths.values"),
			},
		},
	}

	watch, err := watchList(v.GetStringSlice("market.watch"))
	if err != nil {
		return nil, err
	}
	cfg.Market.Watch = watch

	switch cfg.Market.Source {
	case SourceSynthetic:
	case SourceHTTP:
		if cfg.Market.BaseURL == "" {
			return nil, fmt.Errorf("TB_MARKET_BASE_URL must be set for the http source")
		}
	default:
		return nil, fmt.Errorf("market.source must be %s or %s, got %q", SourceSynthetic, SourceHTTP, cfg.Market.Source)
	}
	if cfg.Market.PollInterval <= 0 {
		return nil, fmt.Errorf("market.poll_interval must be positive")
	}
	return cfg, nil
}

func setPathDefaults(v *viper.Viper) {
	q := marketdata.DefaultQuotePaths()
	s := marketdata.DefaultSeriesPaths()
	v.SetDefault("market.paths.price", q.Price)
	v.SetDefault("market.paths.change", q.Change)
	v.SetDefault("market.paths.change_percent", q.ChangePercent)
	v.SetDefault("market.paths.high", q.High)
	v.SetDefault("market.paths.low", q.Low)
	v.SetDefault("market.paths.volume", q.Volume)
	v.SetDefault("market.paths.timestamps", s.Timestamps)
	v.SetDefault("market.paths.values", s.Values)
}

// watchList accepts a yaml list or a comma separated env value.
func watchList(raw []string) ([]string, error) {
	var out []string
	for _, item := range raw {
		for _, s := range strings.Split(item, ",") {
			if strings.TrimSpace(s) == "" {
				continue
			}
			sym, ok := marketdata.NormalizeSymbol(s)
			if !ok {
				return nil, fmt.Errorf("market.watch: unknown symbol %q", sym)
			}
			out = append(out, sym)
		}
	}
	return out, nil
}
