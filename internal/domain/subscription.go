package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusTrial    SubscriptionStatus = "TRIAL"
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusExpired  SubscriptionStatus = "EXPIRED"
)

// Entitled сообщает, дает ли статус доступ к контенту по подписке
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionStatusTrial || s == SubscriptionStatusActive
}

// ValidSubscriptionStatus проверяет, входит ли статус в допустимый набор
func ValidSubscriptionStatus(s SubscriptionStatus) bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusPastDue,
		SubscriptionStatusCanceled, SubscriptionStatusExpired:
		return true
	}
	return false
}

// MapStripeStatus переводит статус подписки Stripe в локальный статус.
// Таблица фиксированная: неизвестные значения считаются EXPIRED.
func MapStripeStatus(stripeStatus string) SubscriptionStatus {
	switch stripeStatus {
	case "trialing":
		return SubscriptionStatusTrial
	case "active":
		return SubscriptionStatusActive
	case "past_due":
		return SubscriptionStatusPastDue
	case "canceled", "unpaid":
		return SubscriptionStatusCanceled
	default:
		return SubscriptionStatusExpired
	}
}

// Subscription представляет собой подписку пользователя (один к одному)
type Subscription struct {
	ID                   uuid.UUID          `json:"id"`
	UserID               uuid.UUID          `json:"user_id"`
	PlanID               uuid.UUID          `json:"plan_id"`
	Status               SubscriptionStatus `json:"status"`
	StripeCustomerID     string             `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string             `json:"stripe_subscription_id,omitempty"`
	TrialEndAt           *time.Time         `json:"trial_end_at,omitempty"`
	CurrentPeriodEndAt   *time.Time         `json:"current_period_end_at,omitempty"`
	CanceledAt           *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// Plan представляет собой тарифный план подписки
type Plan struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Price         int64     `json:"price"`
	Currency      string    `json:"currency"`
	Interval      string    `json:"interval"`
	TrialDays     int       `json:"trial_days"`
	StripePriceID string    `json:"stripe_price_id,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CheckoutCompletedEvent нормализованное событие checkout.session.completed
type CheckoutCompletedEvent struct {
	UserID               uuid.UUID
	PlanID               uuid.UUID
	StripeCustomerID     string
	StripeSubscriptionID string
}

// SubscriptionUpdatedEvent нормализованное событие customer.subscription.*
type SubscriptionUpdatedEvent struct {
	StripeSubscriptionID string
	StripeStatus         string
	CurrentPeriodEnd     int64 // unix-время, 0 если отсутствует
	TrialEnd             int64 // unix-время, 0 если отсутствует
}

// PlanRequest представляет запрос на создание или изменение тарифного плана
type PlanRequest struct {
	Name          string `json:"name" binding:"required"`
	Price         int64  `json:"price" binding:"required,min=0"`
	Currency      string `json:"currency,omitempty"`
	Interval      string `json:"interval,omitempty"`
	TrialDays     int    `json:"trialDays,omitempty"`
	StripePriceID string `json:"stripePriceId,omitempty"`
	Active        *bool  `json:"active,omitempty"`
}

// GrantRequest представляет административный запрос на выдачу подписки
type GrantRequest struct {
	UserID       string `json:"userId" binding:"required"`
	PlanID       string `json:"planId" binding:"required"`
	DurationDays int    `json:"durationDays"`
}

// CheckoutRequest представляет запрос на оформление подписки
type CheckoutRequest struct {
	PlanID string `json:"planId" binding:"required"`
}
