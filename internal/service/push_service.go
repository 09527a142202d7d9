package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/integration/fcm"
	"github.com/atrkk2024-beep/inskate/internal/metrics"
	"github.com/atrkk2024-beep/inskate/internal/repository"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

const sendMaxRetries = 3

// PushService интерфейс сервиса push-рассылок
type PushService interface {
	// RegisterToken сохраняет push-токен устройства пользователя
	RegisterToken(ctx context.Context, actor domain.Actor, token, platform string) error

	// Send создает рассылку. Рассылка с будущим scheduledAt откладывается
	// до планировщика, остальные уходят сразу.
	Send(ctx context.Context, req domain.SendPushRequest) (domain.PushNotification, error)

	// Get возвращает запись рассылки по ID
	Get(ctx context.Context, notificationID string) (domain.PushNotification, error)

	// List возвращает журнал рассылок, при onlyPending только неотправленные
	List(ctx context.Context, onlyPending bool, limit int) ([]domain.PushNotification, error)

	// Delete удаляет запланированную рассылку до того, как она ушла
	Delete(ctx context.Context, notificationID string) error

	// DispatchDue отправляет запланированные рассылки, срок которых наступил
	DispatchDue(ctx context.Context, now time.Time) error
}

// PushRepository интерфейс журнала push-рассылок
type PushRepository interface {
	Create(ctx context.Context, notification domain.PushNotification) (domain.PushNotification, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.PushNotification, error)
	List(ctx context.Context, onlyPending bool, limit int) ([]domain.PushNotification, error)
	ListDue(ctx context.Context, now time.Time) ([]domain.PushNotification, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// EntitlementReader отдает пользователей с действующей подпиской
type EntitlementReader interface {
	ListEntitledUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// JobLocker распределенная блокировка задач планировщика.
// nil-значение допустимо: тогда защита от двойной отправки
// держится только на условном MarkSent.
type JobLocker interface {
	AcquireJobLock(ctx context.Context, jobID string, ttl time.Duration) (bool, error)
	ReleaseJobLock(ctx context.Context, jobID string) error
}

type pushService struct {
	pushRepo    PushRepository
	tokenRepo   DeviceTokenRepository
	entitlement EntitlementReader
	notifier    fcm.Notifier
	locker      JobLocker
	metrics     metrics.SchoolMetrics
	log         *logger.Logger
}

// NewPushService создает новый сервис push-рассылок
func NewPushService(
	pushRepo PushRepository,
	tokenRepo DeviceTokenRepository,
	entitlement EntitlementReader,
	notifier fcm.Notifier,
	locker JobLocker,
	m metrics.SchoolMetrics,
	log *logger.Logger,
) PushService {
	return &pushService{
		pushRepo:    pushRepo,
		tokenRepo:   tokenRepo,
		entitlement: entitlement,
		notifier:    notifier,
		locker:      locker,
		metrics:     m,
		log:         log,
	}
}

// RegisterToken сохраняет push-токен устройства пользователя
func (s *pushService) RegisterToken(ctx context.Context, actor domain.Actor, token, platform string) error {
	if token == "" {
		return repository.ErrInvalidData
	}

	return s.tokenRepo.SaveToken(ctx, domain.DeviceToken{
		UserID:   actor.UserID,
		Token:    token,
		Platform: platform,
	})
}

// Send создает рассылку и отправляет ее, если срок не задан или уже наступил
func (s *pushService) Send(ctx context.Context, req domain.SendPushRequest) (domain.PushNotification, error) {
	segment := domain.PushSegmentAll
	if req.Segment != "" {
		segment = domain.PushSegment(req.Segment)
	}
	if !domain.ValidPushSegment(segment) {
		return domain.PushNotification{}, domain.ErrInvalidSegment
	}

	notification := domain.PushNotification{
		Title:       req.Title,
		Body:        req.Body,
		Segment:     segment,
		Data:        req.Data,
		ScheduledAt: req.ScheduledAt,
	}

	created, err := s.pushRepo.Create(ctx, notification)
	if err != nil {
		return domain.PushNotification{}, err
	}

	if created.ScheduledAt != nil && created.ScheduledAt.After(time.Now()) {
		s.log.Infow("Push notification scheduled",
			"notificationID", created.ID, "scheduledAt", created.ScheduledAt)
		return created, nil
	}

	if err := s.deliver(ctx, &created); err != nil {
		return domain.PushNotification{}, err
	}

	return created, nil
}

// Get возвращает запись рассылки по ID
func (s *pushService) Get(ctx context.Context, notificationID string) (domain.PushNotification, error) {
	id, err := uuid.Parse(notificationID)
	if err != nil {
		return domain.PushNotification{}, repository.ErrInvalidData
	}
	return s.pushRepo.GetByID(ctx, id)
}

// List возвращает журнал рассылок
func (s *pushService) List(ctx context.Context, onlyPending bool, limit int) ([]domain.PushNotification, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.pushRepo.List(ctx, onlyPending, limit)
}

// Delete удаляет запланированную рассылку. Уже отправленная рассылка
// остается в журнале, хранилище вернет конфликт операции.
func (s *pushService) Delete(ctx context.Context, notificationID string) error {
	id, err := uuid.Parse(notificationID)
	if err != nil {
		return repository.ErrInvalidData
	}

	if err := s.pushRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Infow("Push notification deleted", "notificationID", id)
	return nil
}

// DispatchDue отправляет все рассылки, срок которых наступил.
// От двойной отправки защищают два рубежа: блокировка задачи в Redis
// и условный MarkSent в хранилище.
func (s *pushService) DispatchDue(ctx context.Context, now time.Time) error {
	due, err := s.pushRepo.ListDue(ctx, now)
	if err != nil {
		return err
	}

	for i := range due {
		notification := due[i]

		if s.locker != nil {
			acquired, err := s.locker.AcquireJobLock(ctx, notification.ID.String(), 5*time.Minute)
			if err != nil {
				s.log.Warnw("Failed to acquire push job lock", "error", err, "notificationID", notification.ID)
				continue
			}
			if !acquired {
				continue
			}
		}

		if err := s.deliver(ctx, &notification); err != nil {
			s.log.Errorw("Failed to dispatch scheduled push", "error", err, "notificationID", notification.ID)
		}

		if s.locker != nil {
			if err := s.locker.ReleaseJobLock(ctx, notification.ID.String()); err != nil {
				s.log.Warnw("Failed to release push job lock", "error", err, "notificationID", notification.ID)
			}
		}
	}

	return nil
}

// deliver помечает рассылку отправленной и доставляет ее.
// MarkSent идет до отправки: при конкурентной обработке проигравший
// получает конфликт и не шлет ничего.
func (s *pushService) deliver(ctx context.Context, notification *domain.PushNotification) error {
	sentAt := time.Now()
	if err := s.pushRepo.MarkSent(ctx, notification.ID, sentAt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.log.Debugw("Push notification already sent, skipping", "notificationID", notification.ID)
			return nil
		}
		return err
	}
	notification.SentAt = &sentAt

	tokens, err := s.resolveAudience(ctx, notification.Segment)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		s.log.Infow("Push notification has no recipients", "notificationID", notification.ID)
		return nil
	}

	var report fcm.SendReport
	operation := func() error {
		var sendErr error
		report, sendErr = s.notifier.SendToTokens(ctx, tokens, notification.Title, notification.Body, notification.Data)
		return sendErr
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), sendMaxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}

	s.metrics.IncPushSent(string(notification.Segment))
	s.metrics.ObservePushBatch(report.SuccessCount, report.FailureCount)
	s.log.Infow("Push notification dispatched",
		"notificationID", notification.ID,
		"segment", notification.Segment,
		"success", report.SuccessCount,
		"failure", report.FailureCount,
	)

	if len(report.InvalidTokens) > 0 {
		if err := s.tokenRepo.DeleteTokens(ctx, report.InvalidTokens); err != nil {
			s.log.Warnw("Failed to delete invalid device tokens", "error", err)
		}
	}

	return nil
}

func (s *pushService) resolveAudience(ctx context.Context, segment domain.PushSegment) ([]string, error) {
	switch segment {
	case domain.PushSegmentSubscribers:
		ids, err := s.entitlement.ListEntitledUserIDs(ctx)
		if err != nil {
			return nil, err
		}
		return s.tokenRepo.TokensByUserIDs(ctx, ids)
	case domain.PushSegmentNonSubscribers:
		ids, err := s.entitlement.ListEntitledUserIDs(ctx)
		if err != nil {
			return nil, err
		}
		return s.tokenRepo.TokensExcludingUserIDs(ctx, ids)
	default:
		return s.tokenRepo.AllTokens(ctx)
	}
}
