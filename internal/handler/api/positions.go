package api

import (
	"time"

	models "GEFlip/internal/domain/models"
	"GEFlip/internal/service/metrics"
	"GEFlip/internal/usecase"
	xhttp "GEFlip/pkg/http"
	applogger "GEFlip/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// PositionsHandler manages open positions and the portfolio risk endpoint.
type PositionsHandler struct {
	monitor *usecase.RiskMonitor
	l       *applogger.Logger
}

func NewPositionsHandler(monitor *usecase.RiskMonitor) *PositionsHandler {
	metrics.Register()
	return &PositionsHandler{monitor: monitor}
}

// SetLogger injects a structured logger.
func (h *PositionsHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *PositionsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/positions", h.List)
	g.POST("/positions", h.Open)
	g.DELETE("/positions/:id", h.Close)
	g.GET("/risk/portfolio", h.Portfolio)
}

func (h *PositionsHandler) List(c echo.Context) error {
	store := h.monitor.Manager().Store()
	positions := store.List()
	return xhttp.ListResponse(c, positions, int64(len(positions)))
}

func (h *PositionsHandler) Open(c echo.Context) error {
	req := &models.OpenPositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	p := models.Position{
		ID:              uuid.NewString(),
		ItemID:          req.ItemID,
		ItemName:        req.ItemName,
		CapitalInvested: req.CapitalInvested,
		EntryPrice:      req.EntryPrice,
		EntryTime:       time.Now(),
	}
	if err := h.monitor.Manager().Store().Open(p); err != nil {
		metrics.APIErrors.WithLabelValues("positions_open").Inc()
		if h.l != nil {
			h.l.Error("open position error", applogger.Int("item_id", req.ItemID), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	if h.l != nil {
		h.l.Info("position opened",
			applogger.String("position_id", p.ID),
			applogger.Int("item_id", p.ItemID),
			applogger.Any("capital", p.CapitalInvested),
		)
	}
	return xhttp.CreatedResponse(c, p)
}

func (h *PositionsHandler) Close(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return xhttp.BadRequestResponse(c, "position id required")
	}
	if !h.monitor.Manager().Store().Close(id) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("position %s not found", id))
	}
	if h.l != nil {
		h.l.Info("position closed", applogger.String("position_id", id))
	}
	return xhttp.NoContentResponse(c)
}

// Portfolio runs a fresh risk cycle and returns the assessment.
func (h *PositionsHandler) Portfolio(c echo.Context) error {
	start := time.Now()
	endpoint := "risk_portfolio"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	assessment := h.monitor.Assess(c.Request().Context())
	for _, a := range assessment.Actions {
		metrics.RiskActionsTotal.WithLabelValues(a.Type).Inc()
	}
	return xhttp.SuccessResponse(c, assessment)
}
