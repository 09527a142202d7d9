package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

const (
	// Ключи метаданных для связи объектов Stripe с нашими сущностями
	metadataUserIDKey = "user_id"
	metadataPlanIDKey = "plan_id"
)

// CheckoutSessionParams параметры платежной сессии
type CheckoutSessionParams struct {
	UserID     string
	PlanID     string
	PriceID    string
	TrialDays  int
	SuccessURL string
	CancelURL  string
}

// CheckoutSession созданная платежная сессия
type CheckoutSession struct {
	ID  string
	URL string
}

// Gateway определяет методы для взаимодействия со Stripe API.
type Gateway interface {
	// CreateCheckoutSession создает платежную сессию для оформления подписки.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (CheckoutSession, error)

	// CancelSubscription отменяет подписку в Stripe.
	CancelSubscription(ctx context.Context, stripeSubscriptionID string) error

	// CreatePortalSession создает сессию биллинг-портала Stripe, где
	// клиент сам управляет способом оплаты и подпиской.
	CreatePortalSession(ctx context.Context, stripeCustomerID, returnURL string) (string, error)
}

// stripeGateway реализует интерфейс Gateway.
type stripeGateway struct {
	client *client.API
	log    *logger.Logger
}

// NewGateway создает новый экземпляр клиента Stripe.
func NewGateway(apiKey string, log *logger.Logger) Gateway {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeGateway{
		client: sc,
		log:    log,
	}
}

// CreateCheckoutSession создает платежную сессию в режиме подписки.
// UserID и PlanID кладутся в метаданные сессии, вебхук
// checkout.session.completed читает их обратно.
func (sg *stripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		Metadata: map[string]string{
			metadataUserIDKey: p.UserID,
			metadataPlanIDKey: p.PlanID,
		},
	}
	params.Context = ctx

	if p.TrialDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(int64(p.TrialDays)),
		}
	}

	session, err := sg.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(sg.log, "CreateCheckoutSession", err)
		return CheckoutSession{}, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	sg.log.Infow("Stripe checkout session created", "sessionID", session.ID, "userID", p.UserID)
	return CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CancelSubscription отменяет подписку в Stripe немедленно.
func (sg *stripeGateway) CancelSubscription(ctx context.Context, stripeSubscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	_, err := sg.client.Subscriptions.Cancel(stripeSubscriptionID, params)
	if err != nil {
		logStripeError(sg.log, "CancelSubscription", err)
		return fmt.Errorf("stripe: failed to cancel subscription: %w", err)
	}

	sg.log.Infow("Stripe subscription canceled", "stripeSubscriptionID", stripeSubscriptionID)
	return nil
}

// CreatePortalSession создает сессию биллинг-портала для клиента Stripe.
func (sg *stripeGateway) CreatePortalSession(ctx context.Context, stripeCustomerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(stripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	session, err := sg.client.BillingPortalSessions.New(params)
	if err != nil {
		logStripeError(sg.log, "CreatePortalSession", err)
		return "", fmt.Errorf("stripe: failed to create portal session: %w", err)
	}

	sg.log.Infow("Stripe portal session created", "stripeCustomerID", stripeCustomerID)
	return session.URL, nil
}

// logStripeError разворачивает ошибку Stripe для структурированного лога.
func logStripeError(log *logger.Logger, op string, err error) {
	if stripeErr, ok := err.(*stripe.Error); ok {
		log.Errorw("Stripe API error",
			"op", op,
			"code", string(stripeErr.Code),
			"type", string(stripeErr.Type),
			"message", stripeErr.Msg,
		)
		return
	}
	log.Errorw("Stripe request failed", "op", op, "error", err)
}
