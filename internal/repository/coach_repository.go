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

// InMemoryCoachRepository реализация репозитория тренеров в памяти
type InMemoryCoachRepository struct {
	coaches map[uuid.UUID]domain.Coach
	mutex   sync.RWMutex
	log     *logger.Logger
}

// NewInMemoryCoachRepository создает новый репозиторий тренеров в памяти
func NewInMemoryCoachRepository(log *logger.Logger) *InMemoryCoachRepository {
	return &InMemoryCoachRepository{
		coaches: make(map[uuid.UUID]domain.Coach),
		log:     log,
	}
}

// GetAll возвращает всех активных тренеров
func (r *InMemoryCoachRepository) GetAll(ctx context.Context) ([]domain.Coach, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var coaches []domain.Coach
	for _, coach := range r.coaches {
		if coach.Active {
			coaches = append(coaches, coach)
		}
	}

	sort.Slice(coaches, func(i, j int) bool {
		return coaches[i].Name < coaches[j].Name
	})

	return coaches, nil
}

// GetByID возвращает тренера по ID
func (r *InMemoryCoachRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Coach, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	coach, exists := r.coaches[id]
	if !exists {
		return domain.Coach{}, ErrNotFound
	}

	return coach, nil
}

// Create создает нового тренера
func (r *InMemoryCoachRepository) Create(ctx context.Context, coach domain.Coach) (domain.Coach, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if coach.ID == uuid.Nil {
		coach.ID = uuid.New()
	}
	coach.CreatedAt = time.Now()
	coach.UpdatedAt = time.Now()

	r.coaches[coach.ID] = coach

	return coach, nil
}

// Update обновляет существующего тренера
func (r *InMemoryCoachRepository) Update(ctx context.Context, coach domain.Coach) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, exists := r.coaches[coach.ID]
	if !exists {
		return ErrNotFound
	}

	coach.CreatedAt = existing.CreatedAt
	coach.UpdatedAt = time.Now()
	r.coaches[coach.ID] = coach

	return nil
}

// PostgresCoachRepository реализация репозитория тренеров через PostgreSQL
type PostgresCoachRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresCoachRepository создает новый репозиторий тренеров через PostgreSQL
func NewPostgresCoachRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresCoachRepository {
	return &PostgresCoachRepository{
		db:  db,
		log: log,
	}
}

// GetAll возвращает всех активных тренеров из базы данных
func (r *PostgresCoachRepository) GetAll(ctx context.Context) ([]domain.Coach, error) {
	query := `
		SELECT id, name, level, bio, avatar_url, socials, active, created_at, updated_at
		FROM coaches
		WHERE active = true
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query coaches: %w", err)
	}
	defer rows.Close()

	var coaches []domain.Coach
	for rows.Next() {
		coach, err := scanCoach(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coach: %w", err)
		}
		coaches = append(coaches, coach)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coaches: %w", err)
	}

	return coaches, nil
}

// GetByID возвращает тренера по ID из базы данных
func (r *PostgresCoachRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Coach, error) {
	query := `
		SELECT id, name, level, bio, avatar_url, socials, active, created_at, updated_at
		FROM coaches
		WHERE id = $1
	`

	coach, err := scanCoach(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Coach{}, ErrNotFound
		}
		return domain.Coach{}, fmt.Errorf("failed to get coach: %w", err)
	}

	return coach, nil
}

// Create создает нового тренера в базе данных
func (r *PostgresCoachRepository) Create(ctx context.Context, coach domain.Coach) (domain.Coach, error) {
	query := `
		INSERT INTO coaches (id, name, level, bio, avatar_url, socials, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	if coach.ID == uuid.Nil {
		coach.ID = uuid.New()
	}

	socialsBytes, err := json.Marshal(coach.Socials)
	if err != nil {
		return domain.Coach{}, fmt.Errorf("failed to marshal coach socials: %w", err)
	}

	err = r.db.QueryRow(
		ctx,
		query,
		coach.ID,
		coach.Name,
		coach.Level,
		coach.Bio,
		coach.AvatarURL,
		socialsBytes,
		coach.Active,
		time.Now(),
		time.Now(),
	).Scan(&coach.CreatedAt, &coach.UpdatedAt)

	if err != nil {
		return domain.Coach{}, fmt.Errorf("failed to create coach: %w", err)
	}

	return coach, nil
}

// Update обновляет существующего тренера в базе данных
func (r *PostgresCoachRepository) Update(ctx context.Context, coach domain.Coach) error {
	query := `
		UPDATE coaches
		SET name = $2, level = $3, bio = $4, avatar_url = $5, socials = $6, active = $7, updated_at = $8
		WHERE id = $1
	`

	socialsBytes, err := json.Marshal(coach.Socials)
	if err != nil {
		return fmt.Errorf("failed to marshal coach socials: %w", err)
	}

	result, err := r.db.Exec(
		ctx,
		query,
		coach.ID,
		coach.Name,
		coach.Level,
		coach.Bio,
		coach.AvatarURL,
		socialsBytes,
		coach.Active,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to update coach: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanCoach(row rowScanner) (domain.Coach, error) {
	var coach domain.Coach
	var socialsBytes []byte

	err := row.Scan(
		&coach.ID,
		&coach.Name,
		&coach.Level,
		&coach.Bio,
		&coach.AvatarURL,
		&socialsBytes,
		&coach.Active,
		&coach.CreatedAt,
		&coach.UpdatedAt,
	)
	if err != nil {
		return domain.Coach{}, err
	}

	if len(socialsBytes) > 0 {
		if err := json.Unmarshal(socialsBytes, &coach.Socials); err != nil {
			return domain.Coach{}, fmt.Errorf("failed to unmarshal coach socials: %w", err)
		}
	}

	return coach, nil
}
