package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"GEFlip/internal/usecase"
	applogger "GEFlip/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StreamHandler pushes opportunity scans to clients over server-sent
// events, for consumers that cannot hold a WebSocket.
type StreamHandler struct {
	opportunities *usecase.OpportunitiesUseCase
	interval      time.Duration
	l             *applogger.Logger
}

func NewStreamHandler(opportunities *usecase.OpportunitiesUseCase, interval time.Duration) *StreamHandler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StreamHandler{opportunities: opportunities, interval: interval}
}

// SetLogger injects a structured logger.
func (h *StreamHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/stream/opportunities", h.Opportunities)
}

func (h *StreamHandler) Opportunities(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// first event immediately, then on the interval
	for {
		res, err := h.opportunities.Scan(ctx, usecase.ScanParams{})
		if err != nil {
			if h.l != nil {
				h.l.Warn("sse scan error", applogger.Error(err))
			}
		} else if err := writeEvent(w, "opportunities", res); err != nil {
			return nil // client went away
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func writeEvent(w *echo.Response, event string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	w.Flush()
	return nil
}
