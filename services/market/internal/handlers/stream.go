package handlers

import (
	"context"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/marketdata"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Stream upgrades to a websocket and pushes the symbol's snapshot every
// StreamInterval until the client goes away.
func (h *Handler) Stream(c *gin.Context) {
	sym, ok := marketdata.NormalizeSymbol(c.Param("symbol"))
	if !ok {
		h.fail(c, apperr.NotFound("market"))
		return
	}
	cur, err := parseCurrency(c.Query("currency"))
	if err != nil {
		h.fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "symbol", sym, "error", err)
		return
	}
	defer conn.Close()
	done := h.StreamOpened()
	defer done()

	ctx := c.Request.Context()
	closed := make(chan struct{})
	go func() {
		// drain client frames so close and ping control messages are handled
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.StreamInterval)
	defer ticker.Stop()

	if !h.push(ctx, conn, sym, cur) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			if !h.push(ctx, conn, sym, cur) {
				return
			}
		}
	}
}

func (h *Handler) push(ctx context.Context, conn *websocket.Conn, sym string, cur currency.Currency) bool {
	md, err := h.Markets.Snapshot(ctx, sym)
	if err != nil {
		h.Logger.Warn("stream snapshot failed", "symbol", sym, "error", err)
		return true
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(newSnapshotView(md, cur)); err != nil {
		return false
	}
	return true
}
