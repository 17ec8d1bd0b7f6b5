package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	models "GEFlip/internal/domain/models"
	icache "GEFlip/internal/service/cache"
	"GEFlip/internal/service/metrics"
	"GEFlip/internal/service/ratelimit"
	"GEFlip/internal/usecase"
	xhttp "GEFlip/pkg/http"
	applogger "GEFlip/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PredictHandler proxies the RL prediction service with caching, so a burst
// of identical requests hits the model at most once per TTL.
type PredictHandler struct {
	predict  *usecase.PredictUseCase
	cache    icache.BytesCache
	cacheTTL time.Duration
	rl       *ratelimit.Limiter
	l        *applogger.Logger
}

func NewPredictHandler(predict *usecase.PredictUseCase, cacheTTL time.Duration) *PredictHandler {
	metrics.Register()
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &PredictHandler{
		predict:  predict,
		cacheTTL: cacheTTL,
		rl:       ratelimit.New(),
	}
}

func (h *PredictHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetLogger injects a structured logger.
func (h *PredictHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *PredictHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/predict", h.Predict)
	e.POST("/api/predict", h.Predict)
}

func (h *PredictHandler) Predict(c echo.Context) error {
	start := time.Now()
	endpoint := "predict"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":predict", 5, 1) {
		return xhttp.TooManyRequestsResponse(c)
	}

	cacheKey := fmt.Sprintf("predict:%d:%d", req.ItemID, req.N)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err == nil && ok {
			if h.l != nil {
				h.l.Debug("predict cache hit", applogger.Int("item_id", req.ItemID))
			}
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	res, err := h.predict.Predict(c.Request().Context(), req.ItemID, req.N)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("predict usecase error", applogger.Int("item_id", req.ItemID), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}

	// Degraded fallbacks are served but never cached, so the model gets
	// retried as soon as it comes back.
	if h.cache != nil && !res.Degraded {
		if b, merr := json.Marshal(xhttp.APIResponse{Status: http.StatusOK, Message: "OK", Data: res}); merr == nil {
			if serr := h.cache.SetBytes(cacheKey, b, h.cacheTTL); serr != nil && h.l != nil {
				h.l.Warn("predict cache store error", applogger.Error(serr))
			}
		}
	}
	return xhttp.SuccessResponse(c, res)
}
