package repository

import (
	"context"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

// SubscriptionRepository контракт хранилища подписок и тарифных планов
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error)
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (domain.Subscription, error)
	Upsert(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error)
	Update(ctx context.Context, subscription domain.Subscription) error
	List(ctx context.Context, status *domain.SubscriptionStatus, page, limit int) ([]domain.Subscription, int, error)
	ListEntitledUserIDs(ctx context.Context) ([]uuid.UUID, error)
	GetAllPlans(ctx context.Context) ([]domain.Plan, error)
	GetPlanByID(ctx context.Context, id uuid.UUID) (domain.Plan, error)
	CreatePlan(ctx context.Context, plan domain.Plan) (domain.Plan, error)
	UpdatePlan(ctx context.Context, plan domain.Plan) error
}

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetByUserID получает подписку пользователя (сначала из кеша, потом из БД)
func (r *CachedSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	cachedSub, err := r.cache.GetCachedSubscription(ctx, userID)
	if err != nil {
		r.log.Warnw("Error getting subscription from cache", "error", err, "userID", userID)
		// Продолжаем выполнение при ошибке кеша
	}

	if cachedSub != nil {
		return *cachedSub, nil
	}

	sub, err := r.repo.GetByUserID(ctx, userID)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription after fetching", "error", err, "userID", userID)
	}

	return sub, nil
}

// GetByStripeSubscriptionID получает подписку по Stripe ID.
// Ключ кеша привязан к пользователю, поэтому запрос идет в БД напрямую.
func (r *CachedSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (domain.Subscription, error) {
	return r.repo.GetByStripeSubscriptionID(ctx, stripeSubscriptionID)
}

// Upsert сохраняет подписку в БД и обновляет кеш
func (r *CachedSubscriptionRepository) Upsert(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error) {
	saved, err := r.repo.Upsert(ctx, subscription)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, saved); err != nil {
		r.log.Warnw("Failed to cache subscription after upsert", "error", err, "userID", saved.UserID)
	}

	return saved, nil
}

// Update обновляет подписку в БД и инвалидирует кеш
func (r *CachedSubscriptionRepository) Update(ctx context.Context, subscription domain.Subscription) error {
	if err := r.repo.Update(ctx, subscription); err != nil {
		return err
	}

	if err := r.cache.DeleteCachedSubscription(ctx, subscription.UserID); err != nil {
		r.log.Warnw("Failed to invalidate subscription cache after update", "error", err, "userID", subscription.UserID)
	}

	return nil
}

// List возвращает подписки по фильтру статуса с пагинацией
func (r *CachedSubscriptionRepository) List(ctx context.Context, status *domain.SubscriptionStatus, page, limit int) ([]domain.Subscription, int, error) {
	return r.repo.List(ctx, status, page, limit)
}

// ListEntitledUserIDs возвращает пользователей с действующей подпиской
func (r *CachedSubscriptionRepository) ListEntitledUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	return r.repo.ListEntitledUserIDs(ctx)
}

// GetAllPlans возвращает все тарифные планы
func (r *CachedSubscriptionRepository) GetAllPlans(ctx context.Context) ([]domain.Plan, error) {
	return r.repo.GetAllPlans(ctx)
}

// GetPlanByID возвращает тарифный план по ID
func (r *CachedSubscriptionRepository) GetPlanByID(ctx context.Context, id uuid.UUID) (domain.Plan, error) {
	return r.repo.GetPlanByID(ctx, id)
}

// CreatePlan создает новый тарифный план
func (r *CachedSubscriptionRepository) CreatePlan(ctx context.Context, plan domain.Plan) (domain.Plan, error) {
	return r.repo.CreatePlan(ctx, plan)
}

// UpdatePlan обновляет существующий тарифный план
func (r *CachedSubscriptionRepository) UpdatePlan(ctx context.Context, plan domain.Plan) error {
	return r.repo.UpdatePlan(ctx, plan)
}
