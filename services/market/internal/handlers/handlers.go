package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/faisalantu/tradebridge-systems/libs/format"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/marketdata"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Markets interface {
	Markets() []marketdata.Market
	Timeframes() []marketdata.Timeframe
	Snapshot(ctx context.Context, symbol string) (marketdata.MarketData, error)
	Series(ctx context.Context, symbol, timeframe string) ([]marketdata.ChartPoint, marketdata.Timeframe, error)
}

type Handler struct {
	Markets        Markets
	Logger         *slog.Logger
	StreamInterval time.Duration
	// StreamOpened is called per websocket client; the returned func runs on close.
	StreamOpened   func() func()
	upgrader       websocket.Upgrader
}

func New(markets Markets, logger *slog.Logger, streamInterval time.Duration) *Handler {
	if streamInterval <= 0 {
		streamInterval = 15 * time.Second
	}
	return &Handler{
		Markets:        markets,
		Logger:         logger,
		StreamInterval: streamInterval,
		StreamOpened:   func() func() { return func() {} },
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the dashboard is served from another origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/markets", h.List)
	r.GET("/timeframes", h.ListTimeframes)
	r.GET("/markets/:symbol", h.Snapshot)
	r.GET("/markets/:symbol/chart", h.Chart)
	r.GET("/markets/:symbol/stream", h.Stream)
}

type marketsResponse struct {
	Markets []marketdata.Market `json:"markets"`
}

type timeframeView struct {
	Value           string `json:"value"`
	Label           string `json:"label"`
	Points          int    `json:"points"`
	IntervalSeconds int64  `json:"intervalSeconds"`
}

type timeframesResponse struct {
	Timeframes []timeframeView `json:"timeframes"`
}

type snapshotDisplay struct {
	Price         string `json:"price,omitempty"`
	Change        string `json:"change,omitempty"`
	ChangePercent string `json:"changePercent"`
	High          string `json:"high,omitempty"`
	Low           string `json:"low,omitempty"`
	AsOf          string `json:"asOf"`
}

type snapshotView struct {
	marketdata.MarketData
	Display snapshotDisplay `json:"display"`
}

type chartResponse struct {
	Symbol    string                  `json:"symbol"`
	Timeframe timeframeView           `json:"timeframe"`
	Points    []marketdata.ChartPoint `json:"points"`
}

func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, marketsResponse{Markets: h.Markets.Markets()})
}

func (h *Handler) ListTimeframes(c *gin.Context) {
	tfs := h.Markets.Timeframes()
	views := make([]timeframeView, 0, len(tfs))
	for _, tf := range tfs {
		views = append(views, newTimeframeView(tf))
	}
	c.JSON(http.StatusOK, timeframesResponse{Timeframes: views})
}

func (h *Handler) Snapshot(c *gin.Context) {
	cur, err := parseCurrency(c.Query("currency"))
	if err != nil {
		h.fail(c, err)
		return
	}
	md, err := h.Markets.Snapshot(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSnapshotView(md, cur))
}

func (h *Handler) Chart(c *gin.Context) {
	points, tf, err := h.Markets.Series(c.Request.Context(), c.Param("symbol"), c.Query("timeframe"))
	if err != nil {
		h.fail(c, err)
		return
	}
	sym, _ := marketdata.NormalizeSymbol(c.Param("symbol"))
	c.JSON(http.StatusOK, chartResponse{Symbol: sym, Timeframe: newTimeframeView(tf), Points: points})
}

func (h *Handler) fail(c *gin.Context, err error) {
	apperr.Write(c, h.Logger, err)
}

func newTimeframeView(tf marketdata.Timeframe) timeframeView {
	return timeframeView{
		Value:           tf.Value,
		Label:           tf.Label,
		Points:          tf.Points,
		IntervalSeconds: int64(tf.Interval / time.Second),
	}
}

// newSnapshotView formats money fields only when a currency is given.
func newSnapshotView(md marketdata.MarketData, cur currency.Currency) snapshotView {
	v := snapshotView{
		MarketData: md,
		Display: snapshotDisplay{
			ChangePercent: format.Percentage(md.ChangePercent),
			AsOf:          format.DateTime(md.AsOf),
		},
	}
	if cur != "" {
		v.Display.Price = format.CurrencyFloat(md.Price, cur)
		v.Display.Change = format.CurrencyFloat(md.Change, cur)
		v.Display.High = format.CurrencyFloat(md.High, cur)
		v.Display.Low = format.CurrencyFloat(md.Low, cur)
	}
	return v
}

func parseCurrency(raw string) (currency.Currency, error) {
	if raw == "" {
		return "", nil
	}
	cur, err := currency.Parse(raw)
	if err != nil {
		return "", apperr.Field("currency", "must be one of GBP, AUD, USD, CAD")
	}
	return cur, nil
}
