package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

// InMemoryUserRepository реализация репозитория пользователей в памяти
type InMemoryUserRepository struct {
	users  map[uuid.UUID]domain.User
	tokens map[string]domain.DeviceToken
	mutex  sync.RWMutex
	log    *logger.Logger
}

// NewInMemoryUserRepository создает новый репозиторий пользователей в памяти
func NewInMemoryUserRepository(log *logger.Logger) *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:  make(map[uuid.UUID]domain.User),
		tokens: make(map[string]domain.DeviceToken),
		log:    log,
	}
}

// GetByID возвращает пользователя по ID
func (r *InMemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return domain.User{}, ErrNotFound
	}

	return user, nil
}

// Create создает нового пользователя
func (r *InMemoryUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	r.users[user.ID] = user

	return user, nil
}

// UpdateRole меняет роль пользователя
func (r *InMemoryUserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, exists := r.users[id]
	if !exists {
		return ErrNotFound
	}

	user.Role = role
	user.UpdatedAt = time.Now()
	r.users[id] = user

	return nil
}

// Методы для работы с push-токенами устройств

// SaveToken сохраняет токен устройства (повторная регистрация перезаписывает)
func (r *InMemoryUserRepository) SaveToken(ctx context.Context, token domain.DeviceToken) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	token.CreatedAt = time.Now()
	r.tokens[token.Token] = token

	return nil
}

// AllTokens возвращает все токены устройств
func (r *InMemoryUserRepository) AllTokens(ctx context.Context) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	tokens := make([]string, 0, len(r.tokens))
	for token := range r.tokens {
		tokens = append(tokens, token)
	}

	return tokens, nil
}

// TokensByUserIDs возвращает токены устройств указанных пользователей
func (r *InMemoryUserRepository) TokensByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	wanted := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}

	var tokens []string
	for token, record := range r.tokens {
		if _, ok := wanted[record.UserID]; ok {
			tokens = append(tokens, token)
		}
	}

	return tokens, nil
}

// TokensExcludingUserIDs возвращает токены устройств всех, кроме указанных пользователей
func (r *InMemoryUserRepository) TokensExcludingUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	excluded := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		excluded[id] = struct{}{}
	}

	var tokens []string
	for token, record := range r.tokens {
		if _, ok := excluded[record.UserID]; !ok {
			tokens = append(tokens, token)
		}
	}

	return tokens, nil
}

// DeleteTokens удаляет токены устройств (например, отвергнутые FCM)
func (r *InMemoryUserRepository) DeleteTokens(ctx context.Context, tokens []string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, token := range tokens {
		delete(r.tokens, token)
	}

	return nil
}

// PostgresUserRepository реализация репозитория пользователей через PostgreSQL
type PostgresUserRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresUserRepository создает новый репозиторий пользователей через PostgreSQL
func NewPostgresUserRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresUserRepository {
	return &PostgresUserRepository{
		db:  db,
		log: log,
	}
}

// GetByID возвращает пользователя по ID из базы данных
func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	query := `
		SELECT id, phone, name, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Phone,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Create создает нового пользователя в базе данных
func (r *PostgresUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	query := `
		INSERT INTO users (id, phone, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	err := r.db.QueryRow(
		ctx,
		query,
		user.ID,
		user.Phone,
		user.Name,
		user.Role,
		time.Now(),
		time.Now(),
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, ErrDuplicate
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// UpdateRole меняет роль пользователя в базе данных
func (r *PostgresUserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	result, err := r.db.Exec(
		ctx,
		`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`,
		id,
		role,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveToken сохраняет токен устройства в базе данных
func (r *PostgresUserRepository) SaveToken(ctx context.Context, token domain.DeviceToken) error {
	query := `
		INSERT INTO device_tokens (id, user_id, token, platform, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform
	`

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, query, token.ID, token.UserID, token.Token, token.Platform, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("failed to save device token: %w", err)
	}

	return nil
}

// AllTokens возвращает все токены устройств из базы данных
func (r *PostgresUserRepository) AllTokens(ctx context.Context) ([]string, error) {
	return r.queryTokens(ctx, `SELECT token FROM device_tokens`)
}

// TokensByUserIDs возвращает токены устройств указанных пользователей из базы данных
func (r *PostgresUserRepository) TokensByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return r.queryTokens(ctx, `SELECT token FROM device_tokens WHERE user_id = ANY($1)`, userIDs)
}

// TokensExcludingUserIDs возвращает токены устройств всех, кроме указанных пользователей
func (r *PostgresUserRepository) TokensExcludingUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if len(userIDs) == 0 {
		return r.AllTokens(ctx)
	}
	return r.queryTokens(ctx, `SELECT token FROM device_tokens WHERE NOT (user_id = ANY($1))`, userIDs)
}

func (r *PostgresUserRepository) queryTokens(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device tokens: %w", err)
	}

	return tokens, nil
}

// DeleteTokens удаляет токены устройств из базы данных
func (r *PostgresUserRepository) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx, `DELETE FROM device_tokens WHERE token = ANY($1)`, tokens)
	if err != nil {
		return fmt.Errorf("failed to delete device tokens: %w", err)
	}

	return nil
}
