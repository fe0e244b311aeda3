package handlers

import (
	"math"
	"net/http"

	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/valuation"

	"github.com/gin-gonic/gin"
)

// InstrumentHandler describes the instruments of the served history
type InstrumentHandler struct {
	history *model.History
}

// NewInstrumentHandler creates an instrument handler
func NewInstrumentHandler(h *model.History) *InstrumentHandler {
	return &InstrumentHandler{history: h}
}

// ListInstruments handles GET /api/v1/instruments
func (h *InstrumentHandler) ListInstruments(c *gin.Context) {
	out := make([]models.InstrumentInfo, 0, len(h.history.Series))
	for _, s := range h.history.Series {
		in := valuation.Parse(s.ID)
		info := models.InstrumentInfo{
			ID:      s.ID,
			Kind:    "symbol",
			Base:    in.Base,
			Quote:   in.Quote,
			CrossID: in.CrossID(),
		}
		if in.Pair {
			info.Kind = "pair"
		}
		first, last := -1, -1
		for i, v := range s.Close {
			if math.IsNaN(v) {
				continue
			}
			if first < 0 {
				first = i
			}
			last = i
		}
		if first >= 0 {
			info.FirstDate = h.history.Dates[first].Format(model.DateFormat)
			info.LastDate = h.history.Dates[last].Format(model.DateFormat)
			info.LastClose = s.Close[last]
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"instruments": out})
}
