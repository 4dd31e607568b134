package api

import (
	"errors"

	models "SpinTrack/internal/domain/models"
	"SpinTrack/internal/services/strategy"
	"SpinTrack/internal/services/wheel"
	"SpinTrack/internal/usecase"
	xhttp "SpinTrack/pkg/http"
	xlogger "SpinTrack/pkg/logger"
	"SpinTrack/pkg/util"

	"github.com/labstack/echo/v4"
)

// TrackerEchoHandler serves the results, strategies, snapshot and statistics
// routes under /api.
type TrackerEchoHandler struct {
	logger  *xlogger.Logger
	tracker *usecase.Tracker
}

func NewTrackerEchoHandler(logger *xlogger.Logger, tracker *usecase.Tracker) *TrackerEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &TrackerEchoHandler{logger: logger, tracker: tracker}
}

func (h *TrackerEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")

	g.GET("/results", h.ListResults)
	g.POST("/results", h.AddResult)
	g.POST("/results/batch", h.AddBatch)
	g.DELETE("/results/last", h.UndoLast)
	g.DELETE("/results", h.ClearResults)
	g.GET("/results.csv", h.ExportCSV)

	g.GET("/strategies", h.ListStrategies)
	g.POST("/strategies", h.CreateStrategy)
	g.POST("/strategies/reset", h.ResetAll)
	g.GET("/strategies/:id", h.GetStrategy)
	g.DELETE("/strategies/:id", h.DeleteStrategy)
	g.POST("/strategies/:id/toggle", h.ToggleStrategy)
	g.POST("/strategies/:id/reset", h.ResetStrategy)
	g.PUT("/strategies/:id/alerts", h.UpdateAlerts)

	g.GET("/snapshot", h.ExportSnapshot)
	g.PUT("/snapshot", h.ImportSnapshot)

	g.GET("/stats/summary", h.Summary)
	g.GET("/stats/hotcold", h.HotCold)
	g.GET("/stats/correlation", h.Correlation)
	g.GET("/stats/strategies", h.StrategyRates)

	g.GET("/wheel/neighbors", h.Neighbors)
}

func (h *TrackerEchoHandler) ListResults(c echo.Context) error {
	req := &models.ResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, total := h.tracker.Results(req.Limit)
	return xhttp.ListResponse(c, rows, int64(total))
}

func (h *TrackerEchoHandler) AddResult(c echo.Context) error {
	req := &models.AddResultRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.tracker.Observe(c.Request().Context(), *req.Number, models.SourceAPI)
	if err != nil {
		return h.fail(c, "add result", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *TrackerEchoHandler) AddBatch(c echo.Context) error {
	req := &models.AddBatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// numbers are newest first, as typed into the results list
	nums := req.Numbers
	var invalid []string
	if len(nums) == 0 {
		nums, invalid = util.ParseNumbers(req.Text)
	}
	if len(nums) == 0 && len(invalid) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("no numbers found").WithField("text"))
	}
	res, err := h.tracker.ObserveBatch(c.Request().Context(), nums, models.SourceAPI)
	if err != nil {
		return h.fail(c, "add batch", err)
	}
	res.Rejected = append(res.Rejected, invalid...)
	return xhttp.SuccessResponse(c, res)
}

func (h *TrackerEchoHandler) UndoLast(c echo.Context) error {
	n, err := h.tracker.UndoLast(c.Request().Context())
	if err != nil {
		return h.fail(c, "undo last", err)
	}
	return xhttp.SuccessResponse(c, map[string]int{"removed": n})
}

func (h *TrackerEchoHandler) ClearResults(c echo.Context) error {
	h.tracker.ClearResults(c.Request().Context())
	return xhttp.NoContentResponse(c)
}

func (h *TrackerEchoHandler) ExportCSV(c echo.Context) error {
	b, err := h.tracker.ResultsCSV()
	if err != nil {
		return h.fail(c, "export csv", err)
	}
	return xhttp.AttachmentResponse(c, "text/csv; charset=utf-8", "roulette-results.csv", b)
}

func (h *TrackerEchoHandler) ListStrategies(c echo.Context) error {
	list := h.tracker.Strategies()
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *TrackerEchoHandler) GetStrategy(c echo.Context) error {
	req := &models.StrategyIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.tracker.Strategy(req.ID)
	if err != nil {
		return h.fail(c, "get strategy", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *TrackerEchoHandler) CreateStrategy(c echo.Context) error {
	req := &models.CreateStrategyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	spec := models.StrategySpec{
		Name:              req.Name,
		Type:              models.ValueKind(req.Type),
		Sequence:          req.Sequence,
		AlertOnWinStreak:  req.AlertOnWinStreak,
		AlertOnLossStreak: req.AlertOnLossStreak,
		Inactive:          req.Active != nil && !*req.Active,
		Neighbors:         req.Neighbors,
	}
	s, err := h.tracker.CreateStrategy(c.Request().Context(), spec)
	if err != nil {
		return h.fail(c, "create strategy", err)
	}
	return xhttp.CreatedResponse(c, s)
}

func (h *TrackerEchoHandler) DeleteStrategy(c echo.Context) error {
	req := &models.StrategyIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.tracker.RemoveStrategy(c.Request().Context(), req.ID); err != nil {
		return h.fail(c, "delete strategy", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *TrackerEchoHandler) ToggleStrategy(c echo.Context) error {
	req := &models.StrategyIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.tracker.ToggleStrategy(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "toggle strategy", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *TrackerEchoHandler) ResetStrategy(c echo.Context) error {
	req := &models.StrategyIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.tracker.ResetStrategy(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "reset strategy", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *TrackerEchoHandler) ResetAll(c echo.Context) error {
	h.tracker.ResetAll(c.Request().Context())
	list := h.tracker.Strategies()
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *TrackerEchoHandler) UpdateAlerts(c echo.Context) error {
	req := &models.UpdateAlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.tracker.UpdateAlerts(c.Request().Context(), req.ID, req.AlertOnWinStreak, req.AlertOnLossStreak)
	if err != nil {
		return h.fail(c, "update alerts", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *TrackerEchoHandler) ExportSnapshot(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.tracker.Snapshot())
}

func (h *TrackerEchoHandler) ImportSnapshot(c echo.Context) error {
	req := &models.ImportSnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap := models.Snapshot{Results: *req.Results, Strategies: req.Strategies, Version: req.Version}
	if err := h.tracker.Import(c.Request().Context(), snap); err != nil {
		return h.fail(c, "import snapshot", err)
	}
	return xhttp.SuccessResponse(c, h.tracker.Snapshot())
}

func (h *TrackerEchoHandler) Summary(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.tracker.Summary())
}

func (h *TrackerEchoHandler) HotCold(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.tracker.HotCold())
}

func (h *TrackerEchoHandler) Correlation(c echo.Context) error {
	req := &models.CorrelationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.tracker.Correlation(req.Limit))
}

func (h *TrackerEchoHandler) StrategyRates(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.tracker.StrategyRates())
}

func (h *TrackerEchoHandler) Neighbors(c echo.Context) error {
	req := &models.NeighborsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"number":    req.Number,
		"count":     req.Count,
		"neighbors": wheel.NeighborsOf(req.Number, req.Count),
	})
}

// fail maps tracker errors onto AppErrors and writes them.
func (h *TrackerEchoHandler) fail(c echo.Context, op string, err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, strategy.ErrStrategyNotFound):
		appErr = xhttp.NotFoundError("strategy not found").WithParam("id", c.Param("id"))
	case errors.Is(err, strategy.ErrTooManyStrategies):
		appErr = xhttp.ConflictError(err.Error())
	case errors.Is(err, strategy.ErrInvalidStrategySpec),
		errors.Is(err, strategy.ErrInvalidNumber),
		errors.Is(err, strategy.ErrInvalidSnapshot),
		errors.Is(err, strategy.ErrNothingToUndo):
		appErr = xhttp.BadRequestError(err.Error())
		if errors.Is(err, strategy.ErrInvalidNumber) {
			appErr.WithField("number")
		}
	default:
		h.logger.Error(op+" failed", xlogger.Error(err))
		appErr = xhttp.InternalError("internal error")
	}
	return xhttp.AppErrorResponse(c, appErr.WithError(err))
}
