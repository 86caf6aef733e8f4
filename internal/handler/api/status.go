package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"SigForge/internal/domain/models"
	icache "SigForge/internal/service/cache"
	"SigForge/internal/service/ratelimit"
	"SigForge/internal/usecase"
	xhttp "SigForge/pkg/http"
	xlogger "SigForge/pkg/logger"
)

const statusCacheTTL = 5 * time.Second

// StatusHandler serves the evaluation read surface.
type StatusHandler struct {
	logger    *xlogger.Logger
	evaluator *usecase.Evaluator
	cache     *icache.TTLCache
	rl        *ratelimit.Limiter
}

func NewStatusHandler(logger *xlogger.Logger, evaluator *usecase.Evaluator, cache *icache.TTLCache, rl *ratelimit.Limiter) *StatusHandler {
	return &StatusHandler{logger: logger, evaluator: evaluator, cache: cache, rl: rl}
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/status/championship", h.Championship)
	g.GET("/audit", h.Audit)
}

// Status returns the latest evaluation snapshot: per-strategy stats,
// verdicts and reasons, plus partial-result flags.
func (h *StatusHandler) Status(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":status", 10, 5) {
		return xhttp.TooManyRequestsResponse(c)
	}
	if v, ok := h.cache.Get("status"); ok {
		return xhttp.SuccessResponse(c, v)
	}

	snap, err := h.evaluator.LatestEvaluation(c.Request().Context())
	if err != nil {
		h.logger.Error("status load error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if snap == nil {
		return xhttp.NotFoundResponse(c, "no evaluation cycle has run yet")
	}
	h.cache.Set("status", snap, statusCacheTTL)
	return xhttp.SuccessResponse(c, snap)
}

// Championship returns only the composite top-N ranking.
func (h *StatusHandler) Championship(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":championship", 10, 5) {
		return xhttp.TooManyRequestsResponse(c)
	}

	snap, err := h.evaluator.LatestEvaluation(c.Request().Context())
	if err != nil {
		h.logger.Error("championship load error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if snap == nil {
		return xhttp.NotFoundResponse(c, "no evaluation cycle has run yet")
	}
	return xhttp.ListResponse(c, snap.Championship, int64(len(snap.Championship)))
}

// Audit returns the newest audit events.
func (h *StatusHandler) Audit(c echo.Context) error {
	req := &models.AuditRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	events, err := h.evaluator.AuditTrail(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("audit load error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, events, int64(len(events)))
}
