package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

// InMemorySubscriptionRepository реализация репозитория подписок в памяти
type InMemorySubscriptionRepository struct {
	subscriptions map[uuid.UUID]domain.Subscription
	plans         map[uuid.UUID]domain.Plan
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionRepository создает новый репозиторий подписок в памяти
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subscriptions: make(map[uuid.UUID]domain.Subscription),
		plans:         make(map[uuid.UUID]domain.Plan),
		log:           log,
	}
}

// Методы для работы с подписками

// GetByUserID возвращает подписку пользователя
func (r *InMemorySubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, subscription := range r.subscriptions {
		if subscription.UserID == userID {
			return subscription, nil
		}
	}

	return domain.Subscription{}, ErrNotFound
}

// GetByStripeSubscriptionID возвращает подписку по внешнему ID Stripe
func (r *InMemorySubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, subscription := range r.subscriptions {
		if subscription.StripeSubscriptionID == stripeSubscriptionID {
			return subscription, nil
		}
	}

	return domain.Subscription{}, ErrNotFound
}

// Upsert создает подписку пользователя или перезаписывает существующую.
// У пользователя всегда не больше одной подписки.
func (r *InMemorySubscriptionRepository) Upsert(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for id, existing := range r.subscriptions {
		if existing.UserID == subscription.UserID {
			subscription.ID = id
			subscription.CreatedAt = existing.CreatedAt
			subscription.UpdatedAt = time.Now()
			r.subscriptions[id] = subscription
			return subscription, nil
		}
	}

	if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}
	subscription.CreatedAt = time.Now()
	subscription.UpdatedAt = time.Now()
	r.subscriptions[subscription.ID] = subscription

	return subscription, nil
}

// Update обновляет существующую подписку
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, subscription domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, exists := r.subscriptions[subscription.ID]
	if !exists {
		return ErrNotFound
	}

	subscription.CreatedAt = existing.CreatedAt
	subscription.UpdatedAt = time.Now()
	r.subscriptions[subscription.ID] = subscription

	return nil
}

// List возвращает подписки по фильтру статуса с пагинацией, свежие первыми
func (r *InMemorySubscriptionRepository) List(ctx context.Context, status *domain.SubscriptionStatus, page, limit int) ([]domain.Subscription, int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var subscriptions []domain.Subscription
	for _, subscription := range r.subscriptions {
		if status != nil && subscription.Status != *status {
			continue
		}
		subscriptions = append(subscriptions, subscription)
	}

	sort.Slice(subscriptions, func(i, j int) bool {
		return subscriptions[i].CreatedAt.After(subscriptions[j].CreatedAt)
	})

	total := len(subscriptions)

	if limit > 0 {
		offset := 0
		if page > 1 {
			offset = (page - 1) * limit
		}
		if offset >= len(subscriptions) {
			return nil, total, nil
		}
		end := offset + limit
		if end > len(subscriptions) {
			end = len(subscriptions)
		}
		subscriptions = subscriptions[offset:end]
	}

	return subscriptions, total, nil
}

// ListEntitledUserIDs возвращает пользователей с действующей подпиской
func (r *InMemorySubscriptionRepository) ListEntitledUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var ids []uuid.UUID
	for _, subscription := range r.subscriptions {
		if subscription.Status.Entitled() {
			ids = append(ids, subscription.UserID)
		}
	}

	return ids, nil
}

// Методы для работы с тарифными планами

// GetAllPlans возвращает все тарифные планы
func (r *InMemorySubscriptionRepository) GetAllPlans(ctx context.Context) ([]domain.Plan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	plans := make([]domain.Plan, 0, len(r.plans))
	for _, plan := range r.plans {
		plans = append(plans, plan)
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].Price < plans[j].Price
	})

	return plans, nil
}

// GetPlanByID возвращает тарифный план по ID
func (r *InMemorySubscriptionRepository) GetPlanByID(ctx context.Context, id uuid.UUID) (domain.Plan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	plan, exists := r.plans[id]
	if !exists {
		return domain.Plan{}, ErrNotFound
	}

	return plan, nil
}

// CreatePlan создает новый тарифный план
func (r *InMemorySubscriptionRepository) CreatePlan(ctx context.Context, plan domain.Plan) (domain.Plan, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	plan.CreatedAt = time.Now()
	plan.UpdatedAt = time.Now()

	r.plans[plan.ID] = plan

	return plan, nil
}

// UpdatePlan обновляет существующий тарифный план
func (r *InMemorySubscriptionRepository) UpdatePlan(ctx context.Context, plan domain.Plan) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, exists := r.plans[plan.ID]
	if !exists {
		return ErrNotFound
	}

	plan.CreatedAt = existing.CreatedAt
	plan.UpdatedAt = time.Now()
	r.plans[plan.ID] = plan

	return nil
}

// PostgresSubscriptionRepository реализация репозитория подписок через PostgreSQL
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый репозиторий подписок через PostgreSQL
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db:  db,
		log: log,
	}
}

// GetByUserID возвращает подписку пользователя из базы данных
func (r *PostgresSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	query := `
		SELECT id, user_id, plan_id, status,
		       stripe_customer_id, stripe_subscription_id,
		       trial_end_at, current_period_end_at, canceled_at,
		       created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`

	return r.scanOne(ctx, query, userID)
}

// GetByStripeSubscriptionID возвращает подписку по внешнему ID Stripe из базы данных
func (r *PostgresSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (domain.Subscription, error) {
	query := `
		SELECT id, user_id, plan_id, status,
		       stripe_customer_id, stripe_subscription_id,
		       trial_end_at, current_period_end_at, canceled_at,
		       created_at, updated_at
		FROM subscriptions
		WHERE stripe_subscription_id = $1
	`

	return r.scanOne(ctx, query, stripeSubscriptionID)
}

func (r *PostgresSubscriptionRepository) scanOne(ctx context.Context, query string, arg interface{}) (domain.Subscription, error) {
	var subscription domain.Subscription
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&subscription.ID,
		&subscription.UserID,
		&subscription.PlanID,
		&subscription.Status,
		&subscription.StripeCustomerID,
		&subscription.StripeSubscriptionID,
		&subscription.TrialEndAt,
		&subscription.CurrentPeriodEndAt,
		&subscription.CanceledAt,
		&subscription.CreatedAt,
		&subscription.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscription{}, ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	return subscription, nil
}

// Upsert создает подписку пользователя или перезаписывает существующую в базе данных
func (r *PostgresSubscriptionRepository) Upsert(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (
			id, user_id, plan_id, status,
			stripe_customer_id, stripe_subscription_id,
			trial_end_at, current_period_end_at, canceled_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			trial_end_at = EXCLUDED.trial_end_at,
			current_period_end_at = EXCLUDED.current_period_end_at,
			canceled_at = EXCLUDED.canceled_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`

	if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}

	err := r.db.QueryRow(
		ctx,
		query,
		subscription.ID,
		subscription.UserID,
		subscription.PlanID,
		subscription.Status,
		subscription.StripeCustomerID,
		subscription.StripeSubscriptionID,
		subscription.TrialEndAt,
		subscription.CurrentPeriodEndAt,
		subscription.CanceledAt,
		time.Now(),
		time.Now(),
	).Scan(&subscription.ID, &subscription.CreatedAt, &subscription.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Subscription{}, ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return subscription, nil
}

// Update обновляет существующую подписку в базе данных
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, subscription domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_id = $2,
		    status = $3,
		    stripe_customer_id = $4,
		    stripe_subscription_id = $5,
		    trial_end_at = $6,
		    current_period_end_at = $7,
		    canceled_at = $8,
		    updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.Exec(
		ctx,
		query,
		subscription.ID,
		subscription.PlanID,
		subscription.Status,
		subscription.StripeCustomerID,
		subscription.StripeSubscriptionID,
		subscription.TrialEndAt,
		subscription.CurrentPeriodEndAt,
		subscription.CanceledAt,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// List возвращает подписки по фильтру статуса с пагинацией из базы данных
func (r *PostgresSubscriptionRepository) List(ctx context.Context, status *domain.SubscriptionStatus, page, limit int) ([]domain.Subscription, int, error) {
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM subscriptions
		WHERE ($1::text IS NULL OR status = $1)
	`
	if err := r.db.QueryRow(ctx, countQuery, statusArg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	query := `
		SELECT id, user_id, plan_id, status,
		       stripe_customer_id, stripe_subscription_id,
		       trial_end_at, current_period_end_at, canceled_at,
		       created_at, updated_at
		FROM subscriptions
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	rows, err := r.db.Query(ctx, query, statusArg, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subscriptions []domain.Subscription
	for rows.Next() {
		var subscription domain.Subscription
		err := rows.Scan(
			&subscription.ID,
			&subscription.UserID,
			&subscription.PlanID,
			&subscription.Status,
			&subscription.StripeCustomerID,
			&subscription.StripeSubscriptionID,
			&subscription.TrialEndAt,
			&subscription.CurrentPeriodEndAt,
			&subscription.CanceledAt,
			&subscription.CreatedAt,
			&subscription.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subscriptions = append(subscriptions, subscription)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subscriptions, total, nil
}

// ListEntitledUserIDs возвращает пользователей с действующей подпиской из базы данных
func (r *PostgresSubscriptionRepository) ListEntitledUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT user_id
		FROM subscriptions
		WHERE status IN ('TRIAL', 'ACTIVE')
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query entitled users: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entitled users: %w", err)
	}

	return ids, nil
}

// GetAllPlans возвращает все тарифные планы из базы данных
func (r *PostgresSubscriptionRepository) GetAllPlans(ctx context.Context) ([]domain.Plan, error) {
	query := `
		SELECT id, name, price, currency, interval, trial_days,
		       stripe_price_id, active, created_at, updated_at
		FROM plans
		ORDER BY price
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		var plan domain.Plan
		err := rows.Scan(
			&plan.ID,
			&plan.Name,
			&plan.Price,
			&plan.Currency,
			&plan.Interval,
			&plan.TrialDays,
			&plan.StripePriceID,
			&plan.Active,
			&plan.CreatedAt,
			&plan.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	return plans, nil
}

// GetPlanByID возвращает тарифный план по ID из базы данных
func (r *PostgresSubscriptionRepository) GetPlanByID(ctx context.Context, id uuid.UUID) (domain.Plan, error) {
	query := `
		SELECT id, name, price, currency, interval, trial_days,
		       stripe_price_id, active, created_at, updated_at
		FROM plans
		WHERE id = $1
	`

	var plan domain.Plan
	err := r.db.QueryRow(ctx, query, id).Scan(
		&plan.ID,
		&plan.Name,
		&plan.Price,
		&plan.Currency,
		&plan.Interval,
		&plan.TrialDays,
		&plan.StripePriceID,
		&plan.Active,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Plan{}, ErrNotFound
		}
		return domain.Plan{}, fmt.Errorf("failed to get plan: %w", err)
	}

	return plan, nil
}

// CreatePlan создает новый тарифный план в базе данных
func (r *PostgresSubscriptionRepository) CreatePlan(ctx context.Context, plan domain.Plan) (domain.Plan, error) {
	query := `
		INSERT INTO plans (
			id, name, price, currency, interval, trial_days,
			stripe_price_id, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}

	err := r.db.QueryRow(
		ctx,
		query,
		plan.ID,
		plan.Name,
		plan.Price,
		plan.Currency,
		plan.Interval,
		plan.TrialDays,
		plan.StripePriceID,
		plan.Active,
		time.Now(),
		time.Now(),
	).Scan(&plan.CreatedAt, &plan.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Plan{}, ErrDuplicate
		}
		return domain.Plan{}, fmt.Errorf("failed to create plan: %w", err)
	}

	return plan, nil
}

// UpdatePlan обновляет существующий тарифный план в базе данных
func (r *PostgresSubscriptionRepository) UpdatePlan(ctx context.Context, plan domain.Plan) error {
	query := `
		UPDATE plans
		SET name = $2,
		    price = $3,
		    currency = $4,
		    interval = $5,
		    trial_days = $6,
		    stripe_price_id = $7,
		    active = $8,
		    updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.Exec(
		ctx,
		query,
		plan.ID,
		plan.Name,
		plan.Price,
		plan.Currency,
		plan.Interval,
		plan.TrialDays,
		plan.StripePriceID,
		plan.Active,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
