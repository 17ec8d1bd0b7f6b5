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

// MarketHandler serves the analysis, opportunity and price endpoints.
type MarketHandler struct {
	analysis      *usecase.AnalysisUseCase
	opportunities *usecase.OpportunitiesUseCase
	prices        *usecase.PricesUseCase
	cache         icache.BytesCache
	rl            *ratelimit.Limiter
	l             *applogger.Logger
}

func NewMarketHandler(analysis *usecase.AnalysisUseCase, opportunities *usecase.OpportunitiesUseCase, prices *usecase.PricesUseCase) *MarketHandler {
	metrics.Register()
	return &MarketHandler{
		analysis:      analysis,
		opportunities: opportunities,
		prices:        prices,
		rl:            ratelimit.New(),
	}
}

func (h *MarketHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetLogger injects a structured logger.
func (h *MarketHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/analysis", h.Analysis)
	g.GET("/opportunities", h.Opportunities)
	g.GET("/prices", h.Prices)
}

func (h *MarketHandler) Analysis(c echo.Context) error {
	start := time.Now()
	endpoint := "analysis"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":analysis", 10, 5) {
		return xhttp.TooManyRequestsResponse(c)
	}

	cacheKey := fmt.Sprintf("analysis:%d:%d", req.ItemID, req.N)
	if b, ok := h.cached(cacheKey, endpoint); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.analysis.Analyze(c.Request().Context(), req.ItemID, req.N)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("analysis usecase error", applogger.Int("item_id", req.ItemID), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	h.store(cacheKey, endpoint, res, 15*time.Second)
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Opportunities(c echo.Context) error {
	start := time.Now()
	endpoint := "opportunities"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.OpportunitiesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":opportunities", 5, 1) {
		return xhttp.TooManyRequestsResponse(c)
	}

	cacheKey := fmt.Sprintf("opportunities:%d:%.2f", req.Limit, req.MinMargin)
	if b, ok := h.cached(cacheKey, endpoint); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.opportunities.Scan(c.Request().Context(), usecase.ScanParams{
		Limit:     req.Limit,
		MinMargin: req.MinMargin,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("opportunities usecase error", applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	metrics.OpportunitiesFound.Set(float64(len(res.Opportunities)))
	h.store(cacheKey, endpoint, res, 30*time.Second)
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Prices(c echo.Context) error {
	start := time.Now()
	endpoint := "prices"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.PricesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":prices", 10, 5) {
		return xhttp.TooManyRequestsResponse(c)
	}

	// Range query when from/to are given, latest-N otherwise.
	var res *usecase.GetPricesResult
	var err error
	if from, ok := xhttp.ParseTime(c.QueryParam("from")); ok {
		to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now())
		from, to = xhttp.AlignRange(from, to, c.QueryParam("step"))
		res, err = h.prices.GetPrices(c.Request().Context(), usecase.GetPricesParams{
			ItemID: req.ItemID,
			From:   from,
			To:     to,
			Limit:  req.N,
		})
	} else {
		res, err = h.prices.GetLatestPrices(c.Request().Context(), req.ItemID, req.N)
	}
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("prices usecase error", applogger.Int("item_id", req.ItemID), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// cached returns a cached API envelope for key if present.
func (h *MarketHandler) cached(key, endpoint string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		if h.l != nil {
			h.l.Warn("cache get error", applogger.String("key", key), applogger.Error(err))
		}
		return nil, false
	}
	if ok && h.l != nil {
		h.l.Debug("cache hit", applogger.String("endpoint", endpoint), applogger.String("key", key))
	}
	return b, ok
}

// store caches the full API envelope for key.
func (h *MarketHandler) store(key, endpoint string, data interface{}, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(xhttp.APIResponse{Status: http.StatusOK, Message: "OK", Data: data})
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, b, ttl); err != nil && h.l != nil {
		h.l.Warn("cache set error", applogger.String("endpoint", endpoint), applogger.Error(err))
	}
}
