package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"momentum-backtest/internal/analysis"
	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/runner"
	"momentum-backtest/internal/valuation"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, id string, res *backtest.Result) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// BacktestHandler handles backtest-related requests
type BacktestHandler struct {
	runner  *runner.Runner
	history *model.History
	cache   *backtest.ResultCache
	store   RunStore // nil when no database is configured
}

// NewBacktestHandler creates a new backtest handler over a loaded history
func NewBacktestHandler(r *runner.Runner, h *model.History, cache *backtest.ResultCache, store RunStore) *BacktestHandler {
	return &BacktestHandler{runner: r, history: h, cache: cache, store: store}
}

// RunBacktest handles POST /api/v1/backtest
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req models.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	r, err := h.runnerFor(req.Overrides)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err)
		return
	}

	res, err := r.Run(c.Request.Context(), h.history, req.Strategy)
	if err != nil {
		writeRunError(c, err)
		return
	}

	id := h.cache.Put(res)
	if req.Options.Persist {
		if h.store == nil {
			writeError(c, http.StatusConflict, "NO_DATABASE", errors.New("persist requested but no database is configured"))
			return
		}
		if err := h.store.SaveRun(c.Request.Context(), id, res); err != nil {
			log.Printf("[BacktestHandler] persist %s: %v", id, err)
			writeError(c, http.StatusInternalServerError, "PERSIST_ERROR", err)
			return
		}
	}

	resp := models.BacktestResponse{
		ID:      id,
		Status:  "completed",
		Summary: buildSummary(analysis.Summarize(res), res.Instruments),
	}
	if req.Options.IncludeRows {
		resp.Rows = buildRows(res, 0, len(res.Rows))
	}
	c.JSON(http.StatusOK, resp)
}

// GetRows handles GET /api/v1/backtest/:id/rows
func (h *BacktestHandler) GetRows(c *gin.Context) {
	res, ok := h.cached(c)
	if !ok {
		return
	}
	var q models.RowsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if q.Offset < 0 || q.Limit < 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", errors.New("offset and limit must be >= 0"))
		return
	}
	from := min(q.Offset, len(res.Rows))
	to := len(res.Rows)
	if q.Limit > 0 {
		to = min(from+q.Limit, to)
	}
	c.JSON(http.StatusOK, models.RowsResponse{
		ID:     c.Param("id"),
		Total:  len(res.Rows),
		Offset: from,
		Rows:   buildRows(res, from, to),
	})
}

// GetCSV handles GET /api/v1/backtest/:id/csv
func (h *BacktestHandler) GetCSV(c *gin.Context) {
	res, ok := h.cached(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Strategy+".csv"))
	c.Status(http.StatusOK)
	if err := backtest.WritePortfolio(c.Writer, res); err != nil {
		log.Printf("[BacktestHandler] write csv %s: %v", c.Param("id"), err)
	}
}

// StreamRows handles GET /api/v1/backtest/:id/stream. Each row is sent as one
// JSON text message, then the connection is closed normally.
func (h *BacktestHandler) StreamRows(c *gin.Context) {
	res, ok := h.cached(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[BacktestHandler] websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for i := range res.Rows {
		if err := conn.WriteJSON(buildRow(res, i)); err != nil {
			log.Printf("[BacktestHandler] stream %s: %v", c.Param("id"), err)
			return
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		log.Printf("[BacktestHandler] stream %s close: %v", c.Param("id"), err)
	}
}

// CompareBacktests handles POST /api/v1/backtest/compare
func (h *BacktestHandler) CompareBacktests(c *gin.Context) {
	var req models.CompareBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	r, err := h.runnerFor(req.Overrides)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err)
		return
	}

	requested := req.Strategies
	if len(requested) == 0 {
		for _, s := range r.Config().Strategies {
			requested = append(requested, s.Name)
		}
	}
	var names []string
	seen := map[string]bool{}
	for _, name := range requested {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	// Strategies run one after another here; each run already uses every core
	// for its indicators.
	results := make([]*backtest.Result, 0, len(names))
	ids := map[*backtest.Result]string{}
	for _, name := range names {
		res, err := r.Run(c.Request.Context(), h.history, name)
		if err != nil {
			writeRunError(c, err)
			return
		}
		ids[res] = h.cache.Put(res)
		results = append(results, res)
	}

	summaries := analysis.RankBySharpe(results)
	byName := map[string]*backtest.Result{}
	for _, res := range results {
		byName[res.Strategy] = res
	}
	out := models.CompareBacktestResponse{Comparison: make([]models.ComparisonResult, 0, len(summaries))}
	for i, s := range summaries {
		res := byName[s.Strategy]
		out.Comparison = append(out.Comparison, models.ComparisonResult{
			Rank:    i + 1,
			ID:      ids[res],
			Summary: buildSummary(s, res.Instruments),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *BacktestHandler) cached(c *gin.Context) (*backtest.Result, bool) {
	id := c.Param("id")
	res, ok := h.cache.Get(id)
	if !ok {
		writeError(c, http.StatusNotFound, "RUN_NOT_FOUND", fmt.Errorf("no cached run %q (runs expire)", id))
		return nil, false
	}
	return res, true
}

// runnerFor returns the served runner, or one built on a copy of its config
// with the request overrides applied.
func (h *BacktestHandler) runnerFor(o models.BacktestOverrides) (*runner.Runner, error) {
	if o == (models.BacktestOverrides{}) {
		return h.runner, nil
	}
	cfg := *h.runner.Config()
	if o.VolTarget != 0 {
		cfg.VolTarget = o.VolTarget
	}
	if o.SimulationStart != "" {
		cfg.SimulationStart = o.SimulationStart
	}
	if o.InitialCapital != 0 {
		cfg.InitialCapital = o.InitialCapital
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return runner.New(&cfg), nil
}

func writeRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, config.ErrUnknownStrategy):
		writeError(c, http.StatusNotFound, "UNKNOWN_STRATEGY", err)
	case errors.Is(err, backtest.ErrWarmup):
		writeError(c, http.StatusUnprocessableEntity, "WARMUP", err)
	case errors.Is(err, valuation.ErrMissingCross):
		writeError(c, http.StatusUnprocessableEntity, "MISSING_CROSS", err)
	case errors.Is(err, model.ErrUnknownInstrument):
		writeError(c, http.StatusUnprocessableEntity, "UNKNOWN_INSTRUMENT", err)
	case errors.Is(err, context.Canceled):
		writeError(c, http.StatusRequestTimeout, "CANCELED", err)
	default:
		writeError(c, http.StatusInternalServerError, "BACKTEST_ERROR", err)
	}
}

func writeError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}
