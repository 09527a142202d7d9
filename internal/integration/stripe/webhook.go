package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

// WebhookVerifier проверяет подпись и разбирает события Stripe Webhook
type WebhookVerifier struct {
	secret string
	log    *logger.Logger
}

// NewWebhookVerifier создает новый верификатор вебхуков
func NewWebhookVerifier(secret string, log *logger.Logger) *WebhookVerifier {
	return &WebhookVerifier{
		secret: secret,
		log:    log,
	}
}

// ConstructEvent проверяет подпись Stripe-Signature и возвращает событие.
func (v *WebhookVerifier) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("failed to verify webhook signature: %w", err)
	}
	return event, nil
}

// ParseCheckoutCompleted разбирает checkout.session.completed в доменное событие.
// UserID и PlanID берутся из метаданных сессии, которые туда положил
// CreateCheckoutSession.
func ParseCheckoutCompleted(event stripe.Event) (domain.CheckoutCompletedEvent, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return domain.CheckoutCompletedEvent{}, fmt.Errorf("failed to parse checkout session: %w", err)
	}

	userID, err := uuid.Parse(session.Metadata[metadataUserIDKey])
	if err != nil {
		return domain.CheckoutCompletedEvent{}, fmt.Errorf("invalid user_id in session metadata: %w", err)
	}

	planID, err := uuid.Parse(session.Metadata[metadataPlanIDKey])
	if err != nil {
		return domain.CheckoutCompletedEvent{}, fmt.Errorf("invalid plan_id in session metadata: %w", err)
	}

	out := domain.CheckoutCompletedEvent{
		UserID: userID,
		PlanID: planID,
	}
	if session.Customer != nil {
		out.StripeCustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		out.StripeSubscriptionID = session.Subscription.ID
	}

	return out, nil
}

// ParseSubscriptionUpdated разбирает customer.subscription.* в доменное событие.
func ParseSubscriptionUpdated(event stripe.Event) (domain.SubscriptionUpdatedEvent, error) {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return domain.SubscriptionUpdatedEvent{}, fmt.Errorf("failed to parse subscription: %w", err)
	}

	return domain.SubscriptionUpdatedEvent{
		StripeSubscriptionID: subscription.ID,
		StripeStatus:         string(subscription.Status),
		CurrentPeriodEnd:     subscription.CurrentPeriodEnd,
		TrialEnd:             subscription.TrialEnd,
	}, nil
}

// ParseInvoiceSubscriptionID достает ID подписки из invoice.payment_failed.
func ParseInvoiceSubscriptionID(event stripe.Event) (string, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return "", fmt.Errorf("failed to parse invoice: %w", err)
	}

	if invoice.Subscription == nil {
		return "", nil
	}

	return invoice.Subscription.ID, nil
}
