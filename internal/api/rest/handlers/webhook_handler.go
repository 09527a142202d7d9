package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	stripeint "github.com/atrkk2024-beep/inskate/internal/integration/stripe"
	"github.com/atrkk2024-beep/inskate/internal/service"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/atrkk2024-beep/inskate/pkg/res"
)

// Stripe рекомендует ограничивать тело вебхука
const webhookMaxBodyBytes = 65536

// WebhookHandler обработчик вебхуков Stripe
type WebhookHandler struct {
	verifier   *stripeint.WebhookVerifier
	webhookSvc service.WebhookService
	log        *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(verifier *stripeint.WebhookVerifier, webhookSvc service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		webhookSvc: webhookSvc,
		log:        log,
	}
}

// HandleStripeWebhook принимает события Stripe.
// Ошибки обработки возвращают 500, чтобы Stripe повторил доставку.
// Неизвестные типы событий подтверждаются с 200 без обработки.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookMaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn("Failed to read webhook body: %v", err)
		res.Err(c, http.StatusBadRequest, "INVALID_PAYLOAD", "failed to read request body")
		return
	}

	event, err := h.verifier.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.log.Warn("Webhook signature verification failed: %v", err)
		res.Err(c, http.StatusBadRequest, "INVALID_SIGNATURE", "webhook signature verification failed")
		return
	}

	ctx := c.Request.Context()

	switch event.Type {
	case "checkout.session.completed":
		checkout, err := stripeint.ParseCheckoutCompleted(event)
		if err != nil {
			h.log.Error("Failed to parse checkout event: %v", err)
			res.Err(c, http.StatusBadRequest, "INVALID_PAYLOAD", "failed to parse event")
			return
		}
		if err := h.webhookSvc.HandleCheckoutCompleted(ctx, checkout); err != nil {
			h.log.Error("Failed to handle checkout completed: %v", err)
			res.Err(c, http.StatusInternalServerError, "INTERNAL", "failed to process event")
			return
		}

	case "customer.subscription.created", "customer.subscription.updated":
		updated, err := stripeint.ParseSubscriptionUpdated(event)
		if err != nil {
			h.log.Error("Failed to parse subscription event: %v", err)
			res.Err(c, http.StatusBadRequest, "INVALID_PAYLOAD", "failed to parse event")
			return
		}
		if err := h.webhookSvc.HandleSubscriptionUpdated(ctx, updated); err != nil {
			h.log.Error("Failed to handle subscription updated: %v", err)
			res.Err(c, http.StatusInternalServerError, "INTERNAL", "failed to process event")
			return
		}

	case "customer.subscription.deleted":
		deleted, err := stripeint.ParseSubscriptionUpdated(event)
		if err != nil {
			h.log.Error("Failed to parse subscription event: %v", err)
			res.Err(c, http.StatusBadRequest, "INVALID_PAYLOAD", "failed to parse event")
			return
		}
		if err := h.webhookSvc.HandleSubscriptionDeleted(ctx, deleted.StripeSubscriptionID); err != nil {
			h.log.Error("Failed to handle subscription deleted: %v", err)
			res.Err(c, http.StatusInternalServerError, "INTERNAL", "failed to process event")
			return
		}

	case "invoice.payment_failed":
		subscriptionID, err := stripeint.ParseInvoiceSubscriptionID(event)
		if err != nil {
			h.log.Error("Failed to parse invoice event: %v", err)
			res.Err(c, http.StatusBadRequest, "INVALID_PAYLOAD", "failed to parse event")
			return
		}
		if err := h.webhookSvc.HandleInvoicePaymentFailed(ctx, subscriptionID); err != nil {
			h.log.Error("Failed to handle payment failure: %v", err)
			res.Err(c, http.StatusInternalServerError, "INTERNAL", "failed to process event")
			return
		}

	default:
		h.log.Debug("Ignoring unhandled webhook event type: %s", event.Type)
	}

	res.OK(c, gin.H{"received": true})
}
