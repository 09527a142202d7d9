package service

import (
	"context"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/repository"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

// CoachService интерфейс сервиса для работы с тренерами
type CoachService interface {
	GetAll(ctx context.Context) ([]domain.Coach, error)
	GetByID(ctx context.Context, coachID string) (domain.Coach, error)
	Create(ctx context.Context, req domain.CoachRequest) (domain.Coach, error)
	Update(ctx context.Context, coachID string, req domain.CoachRequest) (domain.Coach, error)
	Delete(ctx context.Context, coachID string) error
}

type coachService struct {
	coachRepo   CoachRepository
	bookingRepo BookingRepository
	log         *logger.Logger
}

// NewCoachService создает новый сервис для работы с тренерами
func NewCoachService(coachRepo CoachRepository, bookingRepo BookingRepository, log *logger.Logger) CoachService {
	return &coachService{
		coachRepo:   coachRepo,
		bookingRepo: bookingRepo,
		log:         log,
	}
}

// GetAll возвращает активных тренеров
func (s *coachService) GetAll(ctx context.Context) ([]domain.Coach, error) {
	return s.coachRepo.GetAll(ctx)
}

// GetByID возвращает тренера по ID
func (s *coachService) GetByID(ctx context.Context, coachID string) (domain.Coach, error) {
	id, err := uuid.Parse(coachID)
	if err != nil {
		return domain.Coach{}, repository.ErrInvalidData
	}
	return s.coachRepo.GetByID(ctx, id)
}

// Create создает нового тренера
func (s *coachService) Create(ctx context.Context, req domain.CoachRequest) (domain.Coach, error) {
	coach := domain.Coach{
		Name:      req.Name,
		Level:     req.Level,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
		Socials:   req.Socials,
		Active:    true,
	}
	if req.Active != nil {
		coach.Active = *req.Active
	}

	created, err := s.coachRepo.Create(ctx, coach)
	if err != nil {
		return domain.Coach{}, err
	}

	s.log.Infow("Coach created", "coachID", created.ID, "name", created.Name)
	return created, nil
}

// Update обновляет существующего тренера
func (s *coachService) Update(ctx context.Context, coachID string, req domain.CoachRequest) (domain.Coach, error) {
	id, err := uuid.Parse(coachID)
	if err != nil {
		return domain.Coach{}, repository.ErrInvalidData
	}

	coach, err := s.coachRepo.GetByID(ctx, id)
	if err != nil {
		return domain.Coach{}, err
	}

	coach.Name = req.Name
	if req.Level != "" {
		coach.Level = req.Level
	}
	if req.Bio != "" {
		coach.Bio = req.Bio
	}
	if req.AvatarURL != "" {
		coach.AvatarURL = req.AvatarURL
	}
	if req.Socials != nil {
		coach.Socials = req.Socials
	}
	if req.Active != nil {
		coach.Active = *req.Active
	}

	if err := s.coachRepo.Update(ctx, coach); err != nil {
		return domain.Coach{}, err
	}

	return coach, nil
}

// Delete снимает тренера с витрины. Тренер с незакрытыми бронированиями
// остается активным, пока занятия не проведены или не отменены.
// Запись не удаляется: на нее ссылается история бронирований.
func (s *coachService) Delete(ctx context.Context, coachID string) error {
	id, err := uuid.Parse(coachID)
	if err != nil {
		return repository.ErrInvalidData
	}

	coach, err := s.coachRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	active, err := s.bookingRepo.CountActiveBookingsByCoach(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return repository.ErrInvalidOperation
	}

	coach.Active = false
	if err := s.coachRepo.Update(ctx, coach); err != nil {
		return err
	}

	s.log.Infow("Coach deactivated", "coachID", id)
	return nil
}
