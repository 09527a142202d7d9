package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/integration/stripe"
	"github.com/atrkk2024-beep/inskate/internal/kafka"
	"github.com/atrkk2024-beep/inskate/internal/repository"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

const defaultGrantDays = 30

// SubscriptionService интерфейс сервиса для работы с подписками
type SubscriptionService interface {
	// Методы для клиентов
	Checkout(ctx context.Context, actor domain.Actor, req domain.CheckoutRequest) (stripe.CheckoutSession, error)
	Get(ctx context.Context, actor domain.Actor) (domain.Subscription, error)
	Cancel(ctx context.Context, actor domain.Actor) (domain.Subscription, error)
	CreatePortalSession(ctx context.Context, actor domain.Actor) (string, error)

	// Методы для администратора
	Grant(ctx context.Context, req domain.GrantRequest) (domain.Subscription, error)
	List(ctx context.Context, status string, page, limit int) ([]domain.Subscription, int, error)

	// Методы для тарифных планов
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	CreatePlan(ctx context.Context, req domain.PlanRequest) (domain.Plan, error)
	UpdatePlan(ctx context.Context, planID string, req domain.PlanRequest) (domain.Plan, error)
}

// UserRepository интерфейс репозитория для работы с пользователями
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error
}

type subscriptionService struct {
	subscriptionRepo repository.SubscriptionRepository
	userRepo         UserRepository
	gateway          stripe.Gateway
	producer         kafka.Producer
	checkoutSuccess  string
	checkoutCancel   string
	log              *logger.Logger
}

// NewSubscriptionService создает новый сервис для работы с подписками
func NewSubscriptionService(
	subscriptionRepo repository.SubscriptionRepository,
	userRepo UserRepository,
	gateway stripe.Gateway,
	producer kafka.Producer,
	checkoutSuccessURL, checkoutCancelURL string,
	log *logger.Logger,
) SubscriptionService {
	return &subscriptionService{
		subscriptionRepo: subscriptionRepo,
		userRepo:         userRepo,
		gateway:          gateway,
		producer:         producer,
		checkoutSuccess:  checkoutSuccessURL,
		checkoutCancel:   checkoutCancelURL,
		log:              log,
	}
}

// Checkout создает платежную сессию Stripe для оформления подписки.
// Пользователь с действующей подпиской вторую оформить не может.
func (s *subscriptionService) Checkout(ctx context.Context, actor domain.Actor, req domain.CheckoutRequest) (stripe.CheckoutSession, error) {
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return stripe.CheckoutSession{}, repository.ErrInvalidData
	}

	existing, err := s.subscriptionRepo.GetByUserID(ctx, actor.UserID)
	if err == nil && existing.Status.Entitled() {
		return stripe.CheckoutSession{}, domain.ErrAlreadySubscribed
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return stripe.CheckoutSession{}, err
	}

	plan, err := s.subscriptionRepo.GetPlanByID(ctx, planID)
	if err != nil {
		return stripe.CheckoutSession{}, err
	}
	if !plan.Active {
		return stripe.CheckoutSession{}, repository.ErrInvalidOperation
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		UserID:     actor.UserID.String(),
		PlanID:     plan.ID.String(),
		PriceID:    plan.StripePriceID,
		TrialDays:  plan.TrialDays,
		SuccessURL: s.checkoutSuccess,
		CancelURL:  s.checkoutCancel,
	})
	if err != nil {
		return stripe.CheckoutSession{}, err
	}

	s.log.Infow("Checkout session created", "userID", actor.UserID, "planID", plan.ID, "sessionID", session.ID)
	return session, nil
}

// Get возвращает подписку пользователя
func (s *subscriptionService) Get(ctx context.Context, actor domain.Actor) (domain.Subscription, error) {
	return s.subscriptionRepo.GetByUserID(ctx, actor.UserID)
}

// Cancel отменяет подписку пользователя. Локальное состояние первично:
// подписка гасится даже если Stripe недоступен, тогда отмена на его
// стороне доедет через вебхук или ручной повтор.
func (s *subscriptionService) Cancel(ctx context.Context, actor domain.Actor) (domain.Subscription, error) {
	subscription, err := s.subscriptionRepo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, domain.ErrNoSubscription
		}
		return domain.Subscription{}, err
	}

	if subscription.Status == domain.SubscriptionStatusCanceled {
		return domain.Subscription{}, domain.ErrNoSubscription
	}

	if subscription.StripeSubscriptionID != "" {
		if err := s.gateway.CancelSubscription(ctx, subscription.StripeSubscriptionID); err != nil {
			s.log.Warnw("Failed to cancel subscription in Stripe, proceeding locally",
				"error", err, "stripeSubscriptionID", subscription.StripeSubscriptionID)
		}
	}

	now := time.Now()
	subscription.Status = domain.SubscriptionStatusCanceled
	subscription.CanceledAt = &now

	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return domain.Subscription{}, err
	}

	if err := s.syncRole(ctx, subscription.UserID, false); err != nil {
		return domain.Subscription{}, err
	}

	s.log.Infow("Subscription canceled", "userID", subscription.UserID)

	if err := s.producer.PublishSubscriptionEvent(ctx, kafka.TopicSubscriptionUpdated, subscription); err != nil {
		s.log.Warnw("Failed to publish subscription event", "error", err, "userID", subscription.UserID)
	}

	return subscription, nil
}

// CreatePortalSession создает сессию биллинг-портала Stripe.
// Доступна только подпискам, оформленным через Stripe: у выданных
// вручную нет клиента на его стороне.
func (s *subscriptionService) CreatePortalSession(ctx context.Context, actor domain.Actor) (string, error) {
	subscription, err := s.subscriptionRepo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.ErrNoSubscription
		}
		return "", err
	}

	if subscription.StripeCustomerID == "" {
		return "", domain.ErrNoSubscription
	}

	url, err := s.gateway.CreatePortalSession(ctx, subscription.StripeCustomerID, s.checkoutSuccess)
	if err != nil {
		return "", err
	}

	s.log.Infow("Portal session created", "userID", actor.UserID)
	return url, nil
}

// List возвращает подписки по фильтру статуса для администратора
func (s *subscriptionService) List(ctx context.Context, status string, page, limit int) ([]domain.Subscription, int, error) {
	var statusFilter *domain.SubscriptionStatus
	if status != "" {
		st := domain.SubscriptionStatus(status)
		if !domain.ValidSubscriptionStatus(st) {
			return nil, 0, domain.ErrInvalidStatus
		}
		statusFilter = &st
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	return s.subscriptionRepo.List(ctx, statusFilter, page, limit)
}

// Grant выдает подписку вручную, без оплаты через Stripe
func (s *subscriptionService) Grant(ctx context.Context, req domain.GrantRequest) (domain.Subscription, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return domain.Subscription{}, repository.ErrInvalidData
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return domain.Subscription{}, repository.ErrInvalidData
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return domain.Subscription{}, err
	}
	if _, err := s.subscriptionRepo.GetPlanByID(ctx, planID); err != nil {
		return domain.Subscription{}, err
	}

	days := req.DurationDays
	if days <= 0 {
		days = defaultGrantDays
	}
	periodEnd := time.Now().AddDate(0, 0, days)

	subscription := domain.Subscription{
		UserID:             userID,
		PlanID:             planID,
		Status:             domain.SubscriptionStatusActive,
		CurrentPeriodEndAt: &periodEnd,
	}

	saved, err := s.subscriptionRepo.Upsert(ctx, subscription)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := s.syncRole(ctx, userID, true); err != nil {
		return domain.Subscription{}, err
	}

	s.log.Infow("Subscription granted", "userID", userID, "planID", planID, "days", days)

	if err := s.producer.PublishSubscriptionEvent(ctx, kafka.TopicSubscriptionUpdated, saved); err != nil {
		s.log.Warnw("Failed to publish subscription event", "error", err, "userID", userID)
	}

	return saved, nil
}

// ListPlans возвращает активные тарифные планы
func (s *subscriptionService) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	plans, err := s.subscriptionRepo.GetAllPlans(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]domain.Plan, 0, len(plans))
	for _, plan := range plans {
		if plan.Active {
			active = append(active, plan)
		}
	}

	return active, nil
}

// CreatePlan создает новый тарифный план
func (s *subscriptionService) CreatePlan(ctx context.Context, req domain.PlanRequest) (domain.Plan, error) {
	plan := domain.Plan{
		Name:          req.Name,
		Price:         req.Price,
		Currency:      req.Currency,
		Interval:      req.Interval,
		TrialDays:     req.TrialDays,
		StripePriceID: req.StripePriceID,
		Active:        true,
	}
	if plan.Currency == "" {
		plan.Currency = "rub"
	}
	if plan.Interval == "" {
		plan.Interval = "month"
	}
	if req.Active != nil {
		plan.Active = *req.Active
	}

	return s.subscriptionRepo.CreatePlan(ctx, plan)
}

// UpdatePlan обновляет существующий тарифный план
func (s *subscriptionService) UpdatePlan(ctx context.Context, planID string, req domain.PlanRequest) (domain.Plan, error) {
	id, err := uuid.Parse(planID)
	if err != nil {
		return domain.Plan{}, repository.ErrInvalidData
	}

	plan, err := s.subscriptionRepo.GetPlanByID(ctx, id)
	if err != nil {
		return domain.Plan{}, err
	}

	plan.Name = req.Name
	plan.Price = req.Price
	if req.Currency != "" {
		plan.Currency = req.Currency
	}
	if req.Interval != "" {
		plan.Interval = req.Interval
	}
	plan.TrialDays = req.TrialDays
	if req.StripePriceID != "" {
		plan.StripePriceID = req.StripePriceID
	}
	if req.Active != nil {
		plan.Active = *req.Active
	}

	if err := s.subscriptionRepo.UpdatePlan(ctx, plan); err != nil {
		return domain.Plan{}, err
	}

	return plan, nil
}

// syncRole выравнивает роль пользователя по статусу подписки.
// Роли персонала (ADMIN, COACH) подпиской не трогаются.
func (s *subscriptionService) syncRole(ctx context.Context, userID uuid.UUID, entitled bool) error {
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

	s.log.Infow("User role synced", "userID", userID, "role", target)
	return nil
}
