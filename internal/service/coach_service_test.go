package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/repository"
)

type coachTestEnv struct {
	svc         CoachService
	coachRepo   *repository.InMemoryCoachRepository
	bookingRepo *repository.InMemoryBookingRepository
}

func newCoachTestEnv(t *testing.T) *coachTestEnv {
	t.Helper()

	log := testLogger()
	coachRepo := repository.NewInMemoryCoachRepository(log)
	bookingRepo := repository.NewInMemoryBookingRepository(log)

	return &coachTestEnv{
		svc:         NewCoachService(coachRepo, bookingRepo, log),
		coachRepo:   coachRepo,
		bookingRepo: bookingRepo,
	}
}

func (e *coachTestEnv) createCoach(t *testing.T) domain.Coach {
	t.Helper()

	coach, err := e.coachRepo.Create(context.Background(), domain.Coach{
		Name:   "Елена Соколова",
		Level:  "КМС",
		Active: true,
	})
	if err != nil {
		t.Fatalf("create coach: %v", err)
	}
	return coach
}

func TestCoachDeleteDeactivates(t *testing.T) {
	env := newCoachTestEnv(t)
	coach := env.createCoach(t)

	if err := env.svc.Delete(context.Background(), coach.ID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	coaches, err := env.svc.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(coaches) != 0 {
		t.Fatalf("coaches = %d, want 0", len(coaches))
	}

	// Запись остается доступной по ID для истории бронирований
	stored, err := env.coachRepo.GetByID(context.Background(), coach.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if stored.Active {
		t.Error("coach is still active after delete")
	}
}

func TestCoachDeleteRefusedWithActiveBooking(t *testing.T) {
	env := newCoachTestEnv(t)
	coach := env.createCoach(t)

	start := time.Now().Add(24 * time.Hour)
	slots, err := env.bookingRepo.CreateSlots(context.Background(), []domain.Slot{{
		CoachID:     coach.ID,
		StartAt:     start,
		EndAt:       start.Add(time.Hour),
		IsAvailable: true,
	}})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	booking, err := env.bookingRepo.Reserve(context.Background(), domain.Booking{
		UserID:  uuid.New(),
		CoachID: coach.ID,
		SlotID:  slots[0].ID,
		Type:    domain.BookingTypeSingle,
		Status:  domain.BookingStatusPending,
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err = env.svc.Delete(context.Background(), coach.ID.String())
	if !errors.Is(err, repository.ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}

	// После отмены бронирования тренера можно деактивировать
	if _, err := env.bookingRepo.Release(context.Background(), booking.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := env.svc.Delete(context.Background(), coach.ID.String()); err != nil {
		t.Fatalf("delete after release: %v", err)
	}
}

func TestCoachDeleteUnknown(t *testing.T) {
	env := newCoachTestEnv(t)

	err := env.svc.Delete(context.Background(), uuid.New().String())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
