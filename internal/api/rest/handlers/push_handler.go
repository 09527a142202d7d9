package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/atrkk2024-beep/inskate/internal/api/rest/middleware"
	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/service"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/atrkk2024-beep/inskate/pkg/res"
)

// PushHandler обработчик push-рассылок
type PushHandler struct {
	pushSvc service.PushService
	log     *logger.Logger
}

// NewPushHandler создает новый обработчик push-рассылок
func NewPushHandler(pushSvc service.PushService, log *logger.Logger) *PushHandler {
	return &PushHandler{
		pushSvc: pushSvc,
		log:     log,
	}
}

// RegisterToken сохраняет push-токен устройства пользователя
func (h *PushHandler) RegisterToken(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req struct {
		Token    string `json:"token" binding:"required"`
		Platform string `json:"platform,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	if err := h.pushSvc.RegisterToken(c.Request.Context(), actor, req.Token, req.Platform); err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, gin.H{"registered": true})
}

// SendPush создает рассылку (административный)
func (h *PushHandler) SendPush(c *gin.Context) {
	var req domain.SendPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	notification, err := h.pushSvc.Send(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Created(c, notification)
}

// ListPush возвращает журнал рассылок (административный)
func (h *PushHandler) ListPush(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	onlyPending := c.Query("pending") == "true"

	notifications, err := h.pushSvc.List(c.Request.Context(), onlyPending, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, notifications)
}

// GetPush возвращает запись рассылки по ID (административный)
func (h *PushHandler) GetPush(c *gin.Context) {
	notification, err := h.pushSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, notification)
}

// DeletePush удаляет неотправленную рассылку (административный)
func (h *PushHandler) DeletePush(c *gin.Context) {
	if err := h.pushSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, gin.H{"deleted": true})
}
