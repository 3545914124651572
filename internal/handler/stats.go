package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"houser/internal/errors"
	"houser/internal/model"
	"houser/internal/service"
	"houser/internal/utils"
)

// StatsHandler serves market statistics
type StatsHandler struct {
	stats service.MarketStats
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats service.MarketStats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Stats handles POST /api/v1/stats
func (h *StatsHandler) Stats(c *gin.Context) {
	var req model.StatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.ValidationError(c, err)
		return
	}

	scope := model.StatsScope{
		City: utils.NormalizeCity(req.City),
		Area: utils.NormalizeArea(req.Area),
	}

	snapshot, err := h.stats.FromMarket(c.Request.Context(), scope)
	if err != nil {
		errors.InternalError(c, "stats failed", err)
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusNotFound, errors.ErrorResponse{
			Error:   errors.CodeNotFound,
			Message: "no data",
			Details: errors.ErrStatsUnavailable.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
