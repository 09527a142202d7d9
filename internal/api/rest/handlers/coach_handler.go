package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/service"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/atrkk2024-beep/inskate/pkg/res"
)

// CoachHandler обработчик для тренеров
type CoachHandler struct {
	coachSvc service.CoachService
	log      *logger.Logger
}

// NewCoachHandler создает новый обработчик тренеров
func NewCoachHandler(coachSvc service.CoachService, log *logger.Logger) *CoachHandler {
	return &CoachHandler{
		coachSvc: coachSvc,
		log:      log,
	}
}

// ListCoaches возвращает активных тренеров
func (h *CoachHandler) ListCoaches(c *gin.Context) {
	coaches, err := h.coachSvc.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, coaches)
}

// GetCoach возвращает тренера по ID
func (h *CoachHandler) GetCoach(c *gin.Context) {
	coach, err := h.coachSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, coach)
}

// CreateCoach создает нового тренера (административный)
func (h *CoachHandler) CreateCoach(c *gin.Context) {
	var req domain.CoachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	coach, err := h.coachSvc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Created(c, coach)
}

// UpdateCoach обновляет тренера (административный)
func (h *CoachHandler) UpdateCoach(c *gin.Context) {
	var req domain.CoachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	coach, err := h.coachSvc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, coach)
}

// DeleteCoach снимает тренера с витрины (административный)
func (h *CoachHandler) DeleteCoach(c *gin.Context) {
	if err := h.coachSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, gin.H{"deleted": true})
}
