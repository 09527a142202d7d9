package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/kafka"
	"github.com/atrkk2024-beep/inskate/internal/metrics"
	"github.com/atrkk2024-beep/inskate/internal/repository"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

// Stripe присылает точную дату конца периода событием
// customer.subscription.updated, поэтому после чекаута период
// проставляется заглушкой в 30 дней и уточняется следующим событием.
const checkoutPeriodDays = 30

// WebhookService обрабатывает нормализованные события Stripe.
// Методы идемпотентны: повторная доставка события приводит
// состояние к тому же результату.
type WebhookService interface {
	HandleCheckoutCompleted(ctx context.Context, event domain.CheckoutCompletedEvent) error
	HandleSubscriptionUpdated(ctx context.Context, event domain.SubscriptionUpdatedEvent) error
	HandleSubscriptionDeleted(ctx context.Context, stripeSubscriptionID string) error
	HandleInvoicePaymentFailed(ctx context.Context, stripeSubscriptionID string) error
}

type webhookService struct {
	subscriptionRepo repository.SubscriptionRepository
	userRepo         UserRepository
	producer         kafka.Producer
	metrics          metrics.SchoolMetrics
	log              *logger.Logger
}

// NewWebhookService создает новый сервис обработки вебхуков
func NewWebhookService(
	subscriptionRepo repository.SubscriptionRepository,
	userRepo UserRepository,
	producer kafka.Producer,
	m metrics.SchoolMetrics,
	log *logger.Logger,
) WebhookService {
	return &webhookService{
		subscriptionRepo: subscriptionRepo,
		userRepo:         userRepo,
		producer:         producer,
		metrics:          m,
		log:              log,
	}
}

// HandleCheckoutCompleted создает или перезаписывает подписку после
// успешной оплаты. Статус TRIAL, если у плана есть пробный период,
// иначе ACTIVE. Чекаут с неизвестным планом подтверждается без обработки,
// иначе Stripe будет доставлять его бесконечно.
func (s *webhookService) HandleCheckoutCompleted(ctx context.Context, event domain.CheckoutCompletedEvent) error {
	plan, err := s.subscriptionRepo.GetPlanByID(ctx, event.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Checkout completed for unknown plan, skipping",
				"planID", event.PlanID, "userID", event.UserID)
			s.metrics.IncWebhookEvent("checkout.session.completed", "skipped")
			return nil
		}
		return err
	}

	now := time.Now()
	subscription := domain.Subscription{
		UserID:               event.UserID,
		PlanID:               plan.ID,
		Status:               domain.SubscriptionStatusActive,
		StripeCustomerID:     event.StripeCustomerID,
		StripeSubscriptionID: event.StripeSubscriptionID,
	}

	if plan.TrialDays > 0 {
		subscription.Status = domain.SubscriptionStatusTrial
		trialEnd := now.AddDate(0, 0, plan.TrialDays)
		subscription.TrialEndAt = &trialEnd
	}

	periodEnd := now.AddDate(0, 0, checkoutPeriodDays)
	subscription.CurrentPeriodEndAt = &periodEnd

	saved, err := s.subscriptionRepo.Upsert(ctx, subscription)
	if err != nil {
		return err
	}

	if err := s.syncRole(ctx, event.UserID, true); err != nil {
		return err
	}

	s.metrics.IncWebhookEvent("checkout.session.completed", "processed")
	s.log.Infow("Subscription activated after checkout",
		"userID", event.UserID, "planID", plan.ID, "status", saved.Status)

	if err := s.producer.PublishSubscriptionEvent(ctx, kafka.TopicSubscriptionUpdated, saved); err != nil {
		s.log.Warnw("Failed to publish subscription event", "error", err, "userID", event.UserID)
	}

	return nil
}

// HandleSubscriptionUpdated переносит статус из Stripe в локальную подписку.
// Событие для неизвестной подписки просто логируется: Stripe может
// присылать события раньше, чем завершится обработка чекаута.
func (s *webhookService) HandleSubscriptionUpdated(ctx context.Context, event domain.SubscriptionUpdatedEvent) error {
	subscription, err := s.subscriptionRepo.GetByStripeSubscriptionID(ctx, event.StripeSubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Subscription update for unknown subscription, skipping",
				"stripeSubscriptionID", event.StripeSubscriptionID)
			s.metrics.IncWebhookEvent("customer.subscription.updated", "skipped")
			return nil
		}
		return err
	}

	subscription.Status = domain.MapStripeStatus(event.StripeStatus)

	if event.CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(event.CurrentPeriodEnd, 0)
		subscription.CurrentPeriodEndAt = &periodEnd
	}
	if event.TrialEnd > 0 {
		trialEnd := time.Unix(event.TrialEnd, 0)
		subscription.TrialEndAt = &trialEnd
	}

	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return err
	}

	if err := s.syncRole(ctx, subscription.UserID, subscription.Status.Entitled()); err != nil {
		return err
	}

	s.metrics.IncWebhookEvent("customer.subscription.updated", "processed")
	s.log.Infow("Subscription status updated",
		"userID", subscription.UserID, "status", subscription.Status, "stripeStatus", event.StripeStatus)

	if err := s.producer.PublishSubscriptionEvent(ctx, kafka.TopicSubscriptionUpdated, subscription); err != nil {
		s.log.Warnw("Failed to publish subscription event", "error", err, "userID", subscription.UserID)
	}

	return nil
}

// HandleSubscriptionDeleted гасит подписку после удаления в Stripe.
func (s *webhookService) HandleSubscriptionDeleted(ctx context.Context, stripeSubscriptionID string) error {
	subscription, err := s.subscriptionRepo.GetByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Subscription deletion for unknown subscription, skipping",
				"stripeSubscriptionID", stripeSubscriptionID)
			s.metrics.IncWebhookEvent("customer.subscription.deleted", "skipped")
			return nil
		}
		return err
	}

	now := time.Now()
	subscription.Status = domain.SubscriptionStatusCanceled
	subscription.CanceledAt = &now

	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return err
	}

	if err := s.syncRole(ctx, subscription.UserID, false); err != nil {
		return err
	}

	s.metrics.IncWebhookEvent("customer.subscription.deleted", "processed")
	s.log.Infow("Subscription deleted", "userID", subscription.UserID)

	if err := s.producer.PublishSubscriptionEvent(ctx, kafka.TopicSubscriptionUpdated, subscription); err != nil {
		s.log.Warnw("Failed to publish subscription event", "error", err, "userID", subscription.UserID)
	}

	return nil
}

// HandleInvoicePaymentFailed переводит подписку в PAST_DUE.
// Роль пользователя не трогается: это льготный период, доступ
// сохраняется до окончательной отмены со стороны Stripe.
func (s *webhookService) HandleInvoicePaymentFailed(ctx context.Context, stripeSubscriptionID string) error {
	if stripeSubscriptionID == "" {
		return nil
	}

	subscription, err := s.subscriptionRepo.GetByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Payment failure for unknown subscription, skipping",
				"stripeSubscriptionID", stripeSubscriptionID)
			s.metrics.IncWebhookEvent("invoice.payment_failed", "skipped")
			return nil
		}
		return err
	}

	subscription.Status = domain.SubscriptionStatusPastDue

	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return err
	}

	s.metrics.IncWebhookEvent("invoice.payment_failed", "processed")
	s.log.Warnw("Subscription payment failed", "userID", subscription.UserID)

	return nil
}

// syncRole приводит роль пользователя к статусу подписки. Ошибка
// возвращается наверх: обработчик ответит Stripe пятисоткой, и повторная
// доставка события прогонит идемпотентный хендлер заново.
func (s *webhookService) syncRole(ctx context.Context, userID uuid.UUID, entitled bool) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user for role sync: %w", err)
	}
	if user.Role.IsStaff() {
		return nil
	}

	target := domain.RoleUser
	if entitled {
		target = domain.RoleSubscriber
	}
	if user.Role == target {
		return nil
	}

	if err := s.userRepo.UpdateRole(ctx, userID, target); err != nil {
		return fmt.Errorf("failed to sync user role: %w", err)
	}

	return nil
}
