package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atrkk2024-beep/inskate/internal/db"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/atrkk2024-beep/inskate/pkg/res"
)

// StatsHandler обработчик сводной статистики для админ-панели
type StatsHandler struct {
	db  *db.DBClient
	log *logger.Logger
}

// NewStatsHandler создает новый обработчик статистики
func NewStatsHandler(client *db.DBClient, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		db:  client,
		log: log,
	}
}

// GetDashboardStats возвращает сводную статистику (административный)
func (h *StatsHandler) GetDashboardStats(c *gin.Context) {
	if h.db == nil {
		res.Err(c, http.StatusServiceUnavailable, "UNAVAILABLE", "stats storage is not configured")
		return
	}

	stats, err := h.db.GetDashboardStats(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to get dashboard stats: %v", err)
		res.Err(c, http.StatusInternalServerError, "INTERNAL", "failed to get stats")
		return
	}

	res.OK(c, stats)
}
