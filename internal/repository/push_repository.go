package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

// InMemoryPushRepository реализация журнала push-рассылок в памяти
type InMemoryPushRepository struct {
	notifications map[uuid.UUID]domain.PushNotification
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemoryPushRepository создает новый журнал push-рассылок в памяти
func NewInMemoryPushRepository(log *logger.Logger) *InMemoryPushRepository {
	return &InMemoryPushRepository{
		notifications: make(map[uuid.UUID]domain.PushNotification),
		log:           log,
	}
}

// Create создает запись рассылки
func (r *InMemoryPushRepository) Create(ctx context.Context, notification domain.PushNotification) (domain.PushNotification, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	notification.CreatedAt = time.Now()
	r.notifications[notification.ID] = notification

	return notification, nil
}

// GetByID возвращает запись рассылки по ID
func (r *InMemoryPushRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.PushNotification, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	notification, exists := r.notifications[id]
	if !exists {
		return domain.PushNotification{}, ErrNotFound
	}

	return notification, nil
}

// List возвращает журнал рассылок, свежие первыми
func (r *InMemoryPushRepository) List(ctx context.Context, onlyPending bool, limit int) ([]domain.PushNotification, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	notifications := make([]domain.PushNotification, 0, len(r.notifications))
	for _, notification := range r.notifications {
		if onlyPending && notification.SentAt != nil {
			continue
		}
		notifications = append(notifications, notification)
	}

	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})

	if limit > 0 && len(notifications) > limit {
		notifications = notifications[:limit]
	}

	return notifications, nil
}

// ListDue возвращает запланированные рассылки, срок которых наступил
func (r *InMemoryPushRepository) ListDue(ctx context.Context, now time.Time) ([]domain.PushNotification, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var due []domain.PushNotification
	for _, notification := range r.notifications {
		if notification.SentAt != nil || notification.ScheduledAt == nil {
			continue
		}
		if notification.ScheduledAt.After(now) {
			continue
		}
		due = append(due, notification)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
	})

	return due, nil
}

// MarkSent помечает рассылку отправленной. Уже отправленную рассылку
// пометить повторно нельзя, это защита от двойной доставки.
func (r *InMemoryPushRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	notification, exists := r.notifications[id]
	if !exists {
		return ErrNotFound
	}
	if notification.SentAt != nil {
		return ErrConflict
	}

	notification.SentAt = &sentAt
	r.notifications[id] = notification

	return nil
}

// Delete удаляет неотправленную рассылку. Отправленная рассылка
// остается в журнале как факт доставки.
func (r *InMemoryPushRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	notification, exists := r.notifications[id]
	if !exists {
		return ErrNotFound
	}
	if notification.SentAt != nil {
		return ErrInvalidOperation
	}

	delete(r.notifications, id)

	return nil
}

// PostgresPushRepository реализация журнала push-рассылок через PostgreSQL
type PostgresPushRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPushRepository создает новый журнал push-рассылок через PostgreSQL
func NewPostgresPushRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPushRepository {
	return &PostgresPushRepository{
		db:  db,
		log: log,
	}
}

// Create создает запись рассылки в базе данных
func (r *PostgresPushRepository) Create(ctx context.Context, notification domain.PushNotification) (domain.PushNotification, error) {
	query := `
		INSERT INTO push_notifications (id, title, body, segment, data, scheduled_at, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}

	dataBytes, err := json.Marshal(notification.Data)
	if err != nil {
		return domain.PushNotification{}, fmt.Errorf("failed to marshal push data: %w", err)
	}

	err = r.db.QueryRow(
		ctx,
		query,
		notification.ID,
		notification.Title,
		notification.Body,
		notification.Segment,
		dataBytes,
		notification.ScheduledAt,
		notification.SentAt,
		time.Now(),
	).Scan(&notification.CreatedAt)

	if err != nil {
		return domain.PushNotification{}, fmt.Errorf("failed to create push notification: %w", err)
	}

	return notification, nil
}

// GetByID возвращает запись рассылки по ID из базы данных
func (r *PostgresPushRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.PushNotification, error) {
	query := `
		SELECT id, title, body, segment, data, scheduled_at, sent_at, created_at
		FROM push_notifications
		WHERE id = $1
	`

	notification, err := r.scanRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PushNotification{}, ErrNotFound
		}
		return domain.PushNotification{}, fmt.Errorf("failed to get push notification: %w", err)
	}

	return notification, nil
}

// List возвращает журнал рассылок из базы данных, свежие первыми
func (r *PostgresPushRepository) List(ctx context.Context, onlyPending bool, limit int) ([]domain.PushNotification, error) {
	query := `
		SELECT id, title, body, segment, data, scheduled_at, sent_at, created_at
		FROM push_notifications
		WHERE ($1::bool = false OR sent_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, onlyPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query push notifications: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ListDue возвращает запланированные рассылки, срок которых наступил, из базы данных
func (r *PostgresPushRepository) ListDue(ctx context.Context, now time.Time) ([]domain.PushNotification, error) {
	query := `
		SELECT id, title, body, segment, data, scheduled_at, sent_at, created_at
		FROM push_notifications
		WHERE sent_at IS NULL AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due push notifications: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// MarkSent помечает рассылку отправленной в базе данных. Условный UPDATE
// не дает двум процессам пометить одну рассылку дважды.
func (r *PostgresPushRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	result, err := r.db.Exec(
		ctx,
		`UPDATE push_notifications SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL`,
		id,
		sentAt,
	)

	if err != nil {
		return fmt.Errorf("failed to mark push notification sent: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		checkErr := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM push_notifications WHERE id = $1)`, id).Scan(&exists)
		if checkErr == nil && exists {
			return ErrConflict
		}
		return ErrNotFound
	}

	return nil
}

// Delete удаляет неотправленную рассылку из базы данных.
// Условный DELETE не трогает уже отправленные записи журнала.
func (r *PostgresPushRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(
		ctx,
		`DELETE FROM push_notifications WHERE id = $1 AND sent_at IS NULL`,
		id,
	)

	if err != nil {
		return fmt.Errorf("failed to delete push notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		checkErr := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM push_notifications WHERE id = $1)`, id).Scan(&exists)
		if checkErr == nil && exists {
			return ErrInvalidOperation
		}
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresPushRepository) scanRow(row rowScanner) (domain.PushNotification, error) {
	var notification domain.PushNotification
	var dataBytes []byte

	err := row.Scan(
		&notification.ID,
		&notification.Title,
		&notification.Body,
		&notification.Segment,
		&dataBytes,
		&notification.ScheduledAt,
		&notification.SentAt,
		&notification.CreatedAt,
	)
	if err != nil {
		return domain.PushNotification{}, err
	}

	if len(dataBytes) > 0 {
		if err := json.Unmarshal(dataBytes, &notification.Data); err != nil {
			return domain.PushNotification{}, fmt.Errorf("failed to unmarshal push data: %w", err)
		}
	}

	return notification, nil
}

func (r *PostgresPushRepository) scanRows(rows pgx.Rows) ([]domain.PushNotification, error) {
	var notifications []domain.PushNotification
	for rows.Next() {
		notification, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan push notification: %w", err)
		}
		notifications = append(notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push notifications: %w", err)
	}

	return notifications, nil
}
