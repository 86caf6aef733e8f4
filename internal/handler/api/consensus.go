package api

import (
	"github.com/labstack/echo/v4"

	"SigForge/internal/domain/models"
	"SigForge/internal/service/ratelimit"
	"SigForge/internal/usecase"
	xhttp "SigForge/pkg/http"
	xlogger "SigForge/pkg/logger"
)

// ConsensusHandler serves consensus reads and on-demand rounds.
type ConsensusHandler struct {
	logger    *xlogger.Logger
	evaluator *usecase.Evaluator
	rl        *ratelimit.Limiter
}

func NewConsensusHandler(logger *xlogger.Logger, evaluator *usecase.Evaluator, rl *ratelimit.Limiter) *ConsensusHandler {
	return &ConsensusHandler{logger: logger, evaluator: evaluator, rl: rl}
}

func (h *ConsensusHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/consensus", h.Latest)
	g.POST("/consensus/evaluate", h.Evaluate)
}

// Latest returns the result of the most recent consensus round.
func (h *ConsensusHandler) Latest(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":consensus", 10, 5) {
		return xhttp.TooManyRequestsResponse(c)
	}

	res, err := h.evaluator.LatestConsensus(c.Request().Context())
	if err != nil {
		h.logger.Error("consensus load error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if res == nil {
		return xhttp.NotFoundResponse(c, "no consensus round has run yet")
	}
	return xhttp.SuccessResponse(c, res)
}

// Evaluate runs a consensus round over the submitted predictions.
func (h *ConsensusHandler) Evaluate(c echo.Context) error {
	req := &models.ConsensusEvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	preds := make([]models.Prediction, 0, len(req.Predictions))
	for _, p := range req.Predictions {
		preds = append(preds, models.Prediction{
			Algorithm:  p.Algorithm,
			Asset:      p.Asset,
			Signal:     models.PredictionSignal(p.Signal),
			Confidence: models.Confidence(p.Confidence),
		})
	}

	res, err := h.evaluator.RunConsensus(c.Request().Context(), preds)
	if err != nil {
		h.logger.Error("consensus round error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}
