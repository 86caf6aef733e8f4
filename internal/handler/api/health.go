package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"SigForge/internal/usecase"
	xlogger "SigForge/pkg/logger"
)

// HealthHandler reports process and backend health.
type HealthHandler struct {
	logger    *xlogger.Logger
	evaluator *usecase.Evaluator
}

func NewHealthHandler(logger *xlogger.Logger, evaluator *usecase.Evaluator) *HealthHandler {
	return &HealthHandler{logger: logger, evaluator: evaluator}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
}

func (h *HealthHandler) Healthz(c echo.Context) error {
	ctx := c.Request().Context()
	body := map[string]any{"status": "ok"}

	if err := h.evaluator.Health(ctx); err != nil {
		h.logger.Warn("health check backend error", xlogger.Error(err))
		body["status"] = "degraded"
		body["backend"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	if n, err := h.evaluator.ActiveCount(ctx); err == nil {
		body["active_signals"] = n
	}
	return c.JSON(http.StatusOK, body)
}
