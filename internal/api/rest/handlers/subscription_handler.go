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

// SubscriptionHandler обработчик для подписок
type SubscriptionHandler struct {
	subscriptionSvc service.SubscriptionService
	log             *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(subscriptionSvc service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionSvc: subscriptionSvc,
		log:             log,
	}
}

// Checkout создает платежную сессию Stripe
func (h *SubscriptionHandler) Checkout(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req domain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	session, err := h.subscriptionSvc.Checkout(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, gin.H{"sessionId": session.ID, "url": session.URL})
}

// GetMySubscription возвращает подписку пользователя
func (h *SubscriptionHandler) GetMySubscription(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	subscription, err := h.subscriptionSvc.Get(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, subscription)
}

// CancelMySubscription отменяет подписку пользователя
func (h *SubscriptionHandler) CancelMySubscription(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	subscription, err := h.subscriptionSvc.Cancel(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, subscription)
}

// CreatePortalSession создает сессию биллинг-портала Stripe
func (h *SubscriptionHandler) CreatePortalSession(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	url, err := h.subscriptionSvc.CreatePortalSession(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, gin.H{"url": url})
}

// ListSubscriptions возвращает подписки по фильтру (административный)
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	subscriptions, total, err := h.subscriptionSvc.List(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Paginated(c, subscriptions, page, limit, total)
}

// GrantSubscription выдает подписку вручную (административный)
func (h *SubscriptionHandler) GrantSubscription(c *gin.Context) {
	var req domain.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	subscription, err := h.subscriptionSvc.Grant(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Created(c, subscription)
}

// ListPlans возвращает активные тарифные планы
func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	plans, err := h.subscriptionSvc.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, plans)
}

// CreatePlan создает тарифный план (административный)
func (h *SubscriptionHandler) CreatePlan(c *gin.Context) {
	var req domain.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	plan, err := h.subscriptionSvc.CreatePlan(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Created(c, plan)
}

// UpdatePlan обновляет тарифный план (административный)
func (h *SubscriptionHandler) UpdatePlan(c *gin.Context) {
	var req domain.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	plan, err := h.subscriptionSvc.UpdatePlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, plan)
}
