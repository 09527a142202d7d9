package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

const (
	// Префиксы ключей для различных типов данных
	subscriptionKeyPrefix = "subscription:user:"
	pushJobLockKeyPrefix  = "push:job:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository реализует кеширование и блокировки задач через Redis
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheSubscription кеширует подписку пользователя в Redis
func (r *RedisCacheRepository) CacheSubscription(ctx context.Context, sub domain.Subscription) error {
	key := fmt.Sprintf("%s%s", subscriptionKeyPrefix, sub.UserID)

	data, err := json.Marshal(sub)
	if err != nil {
		r.log.Errorw("Failed to marshal subscription for caching", "error", err, "userID", sub.UserID)
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache subscription in Redis", "error", err, "userID", sub.UserID)
		return fmt.Errorf("failed to cache subscription: %w", err)
	}

	r.log.Debugw("Subscription cached successfully", "userID", sub.UserID)
	return nil
}

// GetCachedSubscription получает подписку пользователя из кеша
func (r *RedisCacheRepository) GetCachedSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	key := fmt.Sprintf("%s%s", subscriptionKeyPrefix, userID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			// Ключ не найден в кеше
			return nil, nil
		}
		r.log.Errorw("Error getting subscription from Redis", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get subscription from cache: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		r.log.Errorw("Failed to unmarshal cached subscription", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}

	return &sub, nil
}

// DeleteCachedSubscription удаляет подписку пользователя из кеша
func (r *RedisCacheRepository) DeleteCachedSubscription(ctx context.Context, userID uuid.UUID) error {
	key := fmt.Sprintf("%s%s", subscriptionKeyPrefix, userID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Errorw("Failed to delete subscription from cache", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete subscription from cache: %w", err)
	}

	return nil
}

// AcquireJobLock пытается захватить блокировку задачи планировщика.
// SETNX гарантирует, что одну рассылку обработает только один экземпляр.
func (r *RedisCacheRepository) AcquireJobLock(ctx context.Context, jobID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s%s", pushJobLockKeyPrefix, jobID)

	acquired, err := r.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		r.log.Errorw("Failed to acquire job lock", "error", err, "jobID", jobID)
		return false, fmt.Errorf("failed to acquire job lock: %w", err)
	}

	return acquired, nil
}

// ReleaseJobLock снимает блокировку задачи планировщика
func (r *RedisCacheRepository) ReleaseJobLock(ctx context.Context, jobID string) error {
	key := fmt.Sprintf("%s%s", pushJobLockKeyPrefix, jobID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Errorw("Failed to release job lock", "error", err, "jobID", jobID)
		return fmt.Errorf("failed to release job lock: %w", err)
	}

	return nil
}
