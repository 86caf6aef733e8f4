package api

import (
	"github.com/labstack/echo/v4"

	"SigForge/internal/domain/models"
	icache "SigForge/internal/service/cache"
	"SigForge/internal/usecase"
	xhttp "SigForge/pkg/http"
	xlogger "SigForge/pkg/logger"
)

// ControlHandler exposes the operational surface: manual ticks,
// evaluation cycles, overrides and resets.
type ControlHandler struct {
	logger    *xlogger.Logger
	evaluator *usecase.Evaluator
	cache     *icache.TTLCache
}

func NewControlHandler(logger *xlogger.Logger, evaluator *usecase.Evaluator, cache *icache.TTLCache) *ControlHandler {
	return &ControlHandler{logger: logger, evaluator: evaluator, cache: cache}
}

func (h *ControlHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/control")
	g.POST("/generate", h.Generate)
	g.POST("/resolve", h.Resolve)
	g.POST("/evaluate", h.Evaluate)
	g.POST("/override", h.Override)
	g.POST("/reset", h.Reset)
}

// Generate triggers one generation tick.
func (h *ControlHandler) Generate(c echo.Context) error {
	stats := h.evaluator.GenerationTick(c.Request().Context())
	h.logger.Info("manual generation tick",
		xlogger.Int("pairs", stats.Pairs),
		xlogger.Int("generated", stats.Generated),
		xlogger.Int("errors", stats.Errors),
	)
	return xhttp.SuccessResponse(c, stats)
}

// Resolve triggers one resolution tick.
func (h *ControlHandler) Resolve(c echo.Context) error {
	stats, err := h.evaluator.ResolutionTick(c.Request().Context())
	if err != nil {
		h.logger.Error("manual resolution tick error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.cache.Delete("status")
	return xhttp.SuccessResponse(c, stats)
}

// Evaluate runs a full cycle: a generation tick, a resolution tick,
// then reclassification. With ?verify=true the running aggregates are
// cross-checked against a full log recompute.
func (h *ControlHandler) Evaluate(c echo.Context) error {
	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if c.QueryParam("verify") == "true" {
		req.Verify = true
	}

	ctx := c.Request().Context()
	h.evaluator.GenerationTick(ctx)
	if _, err := h.evaluator.ResolutionTick(ctx); err != nil {
		h.logger.Warn("resolution step error", xlogger.Error(err))
	}

	snap, err := h.evaluator.EvaluateCycle(ctx, req.Verify)
	if err != nil {
		h.logger.Error("evaluation cycle error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.cache.Delete("status")
	return xhttp.SuccessResponse(c, snap)
}

// Override records an advisory manual verdict.
func (h *ControlHandler) Override(c echo.Context) error {
	req := &models.OverrideRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	event, err := h.evaluator.Override(c.Request().Context(), req.Strategy, models.Verdict(req.Verdict), req.Reason)
	if err != nil {
		h.logger.Error("override error",
			xlogger.String("strategy", req.Strategy),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("strategy").WithError(err))
	}
	h.cache.Delete("status")
	return xhttp.CreatedResponse(c, event)
}

// Reset clears all runtime state. The confirmation token guards
// against accidental calls.
func (h *ControlHandler) Reset(c echo.Context) error {
	req := &models.ResetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.evaluator.Reset(c.Request().Context()); err != nil {
		h.logger.Error("reset error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.cache.Purge()
	return xhttp.SuccessResponse(c, "reset complete")
}
