package service

import (
	"context"
	"errors"
	"time"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/integration/fcm"
	"github.com/atrkk2024-beep/inskate/internal/kafka"
	"github.com/atrkk2024-beep/inskate/internal/metrics"
	"github.com/atrkk2024-beep/inskate/internal/repository"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

// BookingService интерфейс сервиса для работы с бронированиями
type BookingService interface {
	// Методы для клиентов
	Create(ctx context.Context, actor domain.Actor, req domain.CreateBookingRequest) (domain.Booking, error)
	Cancel(ctx context.Context, actor domain.Actor, bookingID string) (domain.Booking, error)
	GetByID(ctx context.Context, actor domain.Actor, bookingID string) (domain.Booking, error)
	ListMine(ctx context.Context, actor domain.Actor, status string) ([]domain.Booking, error)
	ListMyPackages(ctx context.Context, actor domain.Actor) ([]domain.Package, error)

	// Методы для администратора
	List(ctx context.Context, filter domain.BookingFilter, page, limit int) ([]domain.Booking, int, error)
	UpdateStatus(ctx context.Context, bookingID string, status domain.BookingStatus) (domain.Booking, error)
	CreateSlots(ctx context.Context, req domain.CreateSlotsRequest) ([]domain.Slot, error)
	DeleteSlot(ctx context.Context, slotID string) error
	CreatePackage(ctx context.Context, req domain.CreatePackageRequest) (domain.Package, error)

	// Публичные методы
	ListSlots(ctx context.Context, coachID string, window domain.SlotWindow, onlyAvailable bool) ([]domain.Slot, error)
}

// BookingRepository интерфейс репозитория для работы с бронированиями
type BookingRepository interface {
	// Слоты
	CreateSlots(ctx context.Context, slots []domain.Slot) ([]domain.Slot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (domain.Slot, error)
	ListSlotsByCoach(ctx context.Context, coachID uuid.UUID, window domain.SlotWindow, onlyAvailable bool) ([]domain.Slot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	// Пакеты занятий
	CreatePackage(ctx context.Context, pkg domain.Package) (domain.Package, error)
	GetPackageByID(ctx context.Context, id uuid.UUID) (domain.Package, error)
	ListPackagesByUser(ctx context.Context, userID uuid.UUID) ([]domain.Package, error)

	// Бронирования
	Reserve(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	Release(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	GetBookingByID(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ListBookings(ctx context.Context, filter domain.BookingFilter, page, limit int) ([]domain.Booking, int, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (domain.Booking, error)
	CountActiveBookingsByCoach(ctx context.Context, coachID uuid.UUID) (int, error)
}

// CoachRepository интерфейс репозитория для работы с тренерами
type CoachRepository interface {
	GetAll(ctx context.Context) ([]domain.Coach, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Coach, error)
	Create(ctx context.Context, coach domain.Coach) (domain.Coach, error)
	Update(ctx context.Context, coach domain.Coach) error
}

// DeviceTokenRepository интерфейс хранилища push-токенов устройств
type DeviceTokenRepository interface {
	SaveToken(ctx context.Context, token domain.DeviceToken) error
	AllTokens(ctx context.Context) ([]string, error)
	TokensByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]string, error)
	TokensExcludingUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]string, error)
	DeleteTokens(ctx context.Context, tokens []string) error
}

type bookingService struct {
	bookingRepo BookingRepository
	coachRepo   CoachRepository
	tokenRepo   DeviceTokenRepository
	notifier    fcm.Notifier
	producer    kafka.Producer
	metrics     metrics.SchoolMetrics
	log         *logger.Logger
}

// NewBookingService создает новый сервис для работы с бронированиями
func NewBookingService(
	bookingRepo BookingRepository,
	coachRepo CoachRepository,
	tokenRepo DeviceTokenRepository,
	notifier fcm.Notifier,
	producer kafka.Producer,
	m metrics.SchoolMetrics,
	log *logger.Logger,
) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		coachRepo:   coachRepo,
		tokenRepo:   tokenRepo,
		notifier:    notifier,
		producer:    producer,
		metrics:     m,
		log:         log,
	}
}

// Create создает новое бронирование.
// Проверки идут в фиксированном порядке: слот свободен, слот в будущем,
// пакет валиден и не исчерпан. Финальное слово за условными UPDATE внутри
// Reserve: если слот увели между проверкой и записью, вернется конфликт.
func (s *bookingService) Create(ctx context.Context, actor domain.Actor, req domain.CreateBookingRequest) (domain.Booking, error) {
	s.log.Debugw("Creating booking", "userID", actor.UserID, "slotID", req.SlotID)

	coachID, err := uuid.Parse(req.CoachID)
	if err != nil {
		return domain.Booking{}, repository.ErrInvalidData
	}
	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		return domain.Booking{}, repository.ErrInvalidData
	}

	slot, err := s.bookingRepo.GetSlotByID(ctx, slotID)
	if err != nil {
		return domain.Booking{}, err
	}
	if slot.CoachID != coachID {
		return domain.Booking{}, repository.ErrInvalidData
	}
	if !slot.IsAvailable {
		return domain.Booking{}, domain.ErrSlotUnavailable
	}
	if !slot.StartAt.After(time.Now()) {
		return domain.Booking{}, domain.ErrSlotInPast
	}

	bookingType := domain.BookingTypeSingle
	if req.Type != "" {
		bookingType = domain.BookingType(req.Type)
	}

	booking := domain.Booking{
		UserID:        actor.UserID,
		CoachID:       coachID,
		SlotID:        slotID,
		Type:          bookingType,
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Notes:         req.Notes,
	}

	switch bookingType {
	case domain.BookingTypeSingle:
		// Оплата одиночного занятия идет отдельно, бронь ее не ждет
	case domain.BookingTypePackage:
		if req.PackageID == "" {
			return domain.Booking{}, domain.ErrInvalidPackage
		}
		packageID, err := uuid.Parse(req.PackageID)
		if err != nil {
			return domain.Booking{}, domain.ErrInvalidPackage
		}
		pkg, err := s.bookingRepo.GetPackageByID(ctx, packageID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.Booking{}, domain.ErrInvalidPackage
			}
			return domain.Booking{}, err
		}
		if pkg.UserID != actor.UserID || pkg.CoachID != coachID {
			return domain.Booking{}, domain.ErrInvalidPackage
		}
		if !pkg.Usable(time.Now()) {
			return domain.Booking{}, domain.ErrPackageExhausted
		}
		booking.PackageID = &packageID
		booking.PaymentStatus = domain.PaymentStatusPaid
	default:
		return domain.Booking{}, repository.ErrInvalidData
	}

	created, err := s.bookingRepo.Reserve(ctx, booking)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Слот уже несет незакрытое бронирование
			s.metrics.IncBookingConflict()
			return domain.Booking{}, domain.ErrAlreadyBooked
		}
		if errors.Is(err, repository.ErrConflict) {
			// Гонку за слот выиграл другой запрос
			s.metrics.IncBookingConflict()
			if booking.PackageID != nil {
				// Проверки выше прошли, значит конфликт мог быть и в пакете
				pkg, pkgErr := s.bookingRepo.GetPackageByID(ctx, *booking.PackageID)
				if pkgErr == nil && !pkg.Usable(time.Now()) {
					return domain.Booking{}, domain.ErrPackageExhausted
				}
			}
			return domain.Booking{}, domain.ErrSlotUnavailable
		}
		return domain.Booking{}, err
	}

	s.metrics.IncBookingCreated(string(created.Type))
	s.log.Infow("Booking created", "bookingID", created.ID, "userID", created.UserID, "slotID", created.SlotID)

	if err := s.producer.PublishBookingEvent(ctx, kafka.TopicBookingCreated, created); err != nil {
		s.log.Warnw("Failed to publish booking created event", "error", err, "bookingID", created.ID)
	}

	return created, nil
}

// Cancel отменяет бронирование. Клиент может отменить только свое,
// администратор - любое. Слот освобождается, занятие возвращается в пакет.
func (s *bookingService) Cancel(ctx context.Context, actor domain.Actor, bookingID string) (domain.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return domain.Booking{}, repository.ErrInvalidData
	}

	booking, err := s.bookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if booking.UserID != actor.UserID && actor.Role != domain.RoleAdmin {
		return domain.Booking{}, domain.ErrForbidden
	}

	canceled, err := s.bookingRepo.Release(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	s.metrics.IncBookingCanceled()
	s.log.Infow("Booking canceled", "bookingID", canceled.ID, "byUserID", actor.UserID)

	if err := s.producer.PublishBookingEvent(ctx, kafka.TopicBookingCanceled, canceled); err != nil {
		s.log.Warnw("Failed to publish booking canceled event", "error", err, "bookingID", canceled.ID)
	}

	return canceled, nil
}

// GetByID возвращает бронирование. Клиент видит только свои бронирования.
func (s *bookingService) GetByID(ctx context.Context, actor domain.Actor, bookingID string) (domain.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return domain.Booking{}, repository.ErrInvalidData
	}

	booking, err := s.bookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if booking.UserID != actor.UserID && actor.Role != domain.RoleAdmin {
		return domain.Booking{}, domain.ErrForbidden
	}

	return booking, nil
}

// ListMine возвращает бронирования клиента, при необходимости по статусу
func (s *bookingService) ListMine(ctx context.Context, actor domain.Actor, status string) ([]domain.Booking, error) {
	filter := domain.BookingFilter{UserID: &actor.UserID}
	if status != "" {
		st := domain.BookingStatus(status)
		if !domain.ValidBookingStatus(st) {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = &st
	}
	bookings, _, err := s.bookingRepo.ListBookings(ctx, filter, 0, 0)
	return bookings, err
}

// ListMyPackages возвращает пакеты занятий клиента, из которых еще можно
// списать занятие. Исчерпанные и просроченные пакеты не показываются.
func (s *bookingService) ListMyPackages(ctx context.Context, actor domain.Actor) ([]domain.Package, error) {
	packages, err := s.bookingRepo.ListPackagesByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	usable := make([]domain.Package, 0, len(packages))
	for _, pkg := range packages {
		if pkg.Usable(now) {
			usable = append(usable, pkg)
		}
	}
	return usable, nil
}

// List возвращает бронирования по фильтру для администратора
func (s *bookingService) List(ctx context.Context, filter domain.BookingFilter, page, limit int) ([]domain.Booking, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.bookingRepo.ListBookings(ctx, filter, page, limit)
}

// UpdateStatus меняет статус бронирования. Переходы не ограничены,
// администратор может выставить любой статус из набора.
// Подтверждение брони сопровождается push-уведомлением клиенту.
func (s *bookingService) UpdateStatus(ctx context.Context, bookingID string, status domain.BookingStatus) (domain.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return domain.Booking{}, repository.ErrInvalidData
	}
	if !domain.ValidBookingStatus(status) {
		return domain.Booking{}, domain.ErrInvalidStatus
	}

	booking, err := s.bookingRepo.UpdateBookingStatus(ctx, id, status)
	if err != nil {
		return domain.Booking{}, err
	}

	s.log.Infow("Booking status updated", "bookingID", booking.ID, "status", booking.Status)

	if status == domain.BookingStatusConfirmed {
		s.notifyBookingConfirmed(ctx, booking)
	}

	return booking, nil
}

func (s *bookingService) notifyBookingConfirmed(ctx context.Context, booking domain.Booking) {
	tokens, err := s.tokenRepo.TokensByUserIDs(ctx, []uuid.UUID{booking.UserID})
	if err != nil {
		s.log.Warnw("Failed to load device tokens for booking confirmation", "error", err, "userID", booking.UserID)
		return
	}
	if len(tokens) == 0 {
		return
	}

	report, err := s.notifier.SendToTokens(ctx, tokens,
		"Запись подтверждена",
		"Ваша запись на занятие подтверждена",
		map[string]string{"bookingId": booking.ID.String()},
	)
	if err != nil {
		s.log.Warnw("Failed to send booking confirmation push", "error", err, "bookingID", booking.ID)
		return
	}

	if len(report.InvalidTokens) > 0 {
		if err := s.tokenRepo.DeleteTokens(ctx, report.InvalidTokens); err != nil {
			s.log.Warnw("Failed to delete invalid device tokens", "error", err)
		}
	}
}

// CreateSlots создает слоты тренера пачкой
func (s *bookingService) CreateSlots(ctx context.Context, req domain.CreateSlotsRequest) ([]domain.Slot, error) {
	coachID, err := uuid.Parse(req.CoachID)
	if err != nil {
		return nil, repository.ErrInvalidData
	}

	if _, err := s.coachRepo.GetByID(ctx, coachID); err != nil {
		return nil, err
	}

	slots := make([]domain.Slot, 0, len(req.Slots))
	for _, interval := range req.Slots {
		if !interval.EndAt.After(interval.StartAt) {
			return nil, domain.ErrInvalidInterval
		}
		slots = append(slots, domain.Slot{
			CoachID:     coachID,
			StartAt:     interval.StartAt,
			EndAt:       interval.EndAt,
			IsAvailable: true,
		})
	}

	created, err := s.bookingRepo.CreateSlots(ctx, slots)
	if err != nil {
		return nil, err
	}

	s.log.Infow("Slots created", "coachID", coachID, "count", len(created))
	return created, nil
}

// DeleteSlot удаляет слот без активных бронирований
func (s *bookingService) DeleteSlot(ctx context.Context, slotID string) error {
	id, err := uuid.Parse(slotID)
	if err != nil {
		return repository.ErrInvalidData
	}
	return s.bookingRepo.DeleteSlot(ctx, id)
}

// CreatePackage выдает клиенту пакет занятий
func (s *bookingService) CreatePackage(ctx context.Context, req domain.CreatePackageRequest) (domain.Package, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return domain.Package{}, repository.ErrInvalidData
	}
	coachID, err := uuid.Parse(req.CoachID)
	if err != nil {
		return domain.Package{}, repository.ErrInvalidData
	}
	if req.Total < 1 {
		return domain.Package{}, repository.ErrInvalidData
	}

	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().AddDate(0, 3, 0)
	}

	pkg := domain.Package{
		UserID:    userID,
		CoachID:   coachID,
		Total:     req.Total,
		Remaining: req.Total,
		ExpiresAt: expiresAt,
	}

	created, err := s.bookingRepo.CreatePackage(ctx, pkg)
	if err != nil {
		return domain.Package{}, err
	}

	s.log.Infow("Package created", "packageID", created.ID, "userID", created.UserID, "total", created.Total)
	return created, nil
}

// ListSlots возвращает слоты тренера
func (s *bookingService) ListSlots(ctx context.Context, coachID string, window domain.SlotWindow, onlyAvailable bool) ([]domain.Slot, error) {
	id, err := uuid.Parse(coachID)
	if err != nil {
		return nil, repository.ErrInvalidData
	}

	if _, err := s.coachRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	return s.bookingRepo.ListSlotsByCoach(ctx, id, window, onlyAvailable)
}
