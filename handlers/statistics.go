package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/services"
)

// StatsLoader is implemented by services.StatisticsService.
type StatsLoader interface {
	Monthly(ctx context.Context, scope policy.Scope, month time.Time) (*models.MonthlyStats, error)
}

// InsightsGenerator is implemented by services.InsightsService.
type InsightsGenerator interface {
	Generate(ctx context.Context, scope policy.Scope, month time.Time) (*models.InsightsResponse, error)
}

type StatisticsHandler struct {
	stats    StatsLoader
	insights InsightsGenerator
	loc      *time.Location
	now      func() time.Time
}

func NewStatisticsHandler(stats StatsLoader, insights InsightsGenerator, loc *time.Location) *StatisticsHandler {
	return &StatisticsHandler{stats: stats, insights: insights, loc: loc, now: time.Now}
}

// month parses YYYY-MM, defaulting to the current month.
func (h *StatisticsHandler) month(raw string) (time.Time, bool) {
	if raw == "" {
		n := h.now().In(h.loc)
		return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, h.loc), true
	}
	m, err := services.ParseMonth(raw, h.loc)
	return m, err == nil
}

func (h *StatisticsHandler) Monthly(c *gin.Context) {
	month, ok := h.month(c.Query("month"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mois invalide (format YYYY-MM)", "field": "month"})
		return
	}
	stats, err := h.stats.Monthly(c.Request.Context(), middleware.GetScope(c), month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *StatisticsHandler) Insights(c *gin.Context) {
	var req models.InsightsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	month, ok := h.month(req.Month)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mois invalide (format YYYY-MM)", "field": "month"})
		return
	}
	res, err := h.insights.Generate(c.Request.Context(), middleware.GetScope(c), month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
