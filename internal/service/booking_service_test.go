package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/kafka"
	"github.com/atrkk2024-beep/inskate/internal/metrics"
	"github.com/atrkk2024-beep/inskate/internal/repository"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

type bookingTestEnv struct {
	svc       BookingService
	repo      *repository.InMemoryBookingRepository
	coachRepo *repository.InMemoryCoachRepository
	userRepo  *repository.InMemoryUserRepository
	coach     domain.Coach
}

func newBookingTestEnv(t *testing.T) *bookingTestEnv {
	t.Helper()

	log := testLogger()
	repo := repository.NewInMemoryBookingRepository(log)
	coachRepo := repository.NewInMemoryCoachRepository(log)
	userRepo := repository.NewInMemoryUserRepository(log)

	coach, err := coachRepo.Create(context.Background(), domain.Coach{Name: "Анна", Active: true})
	if err != nil {
		t.Fatalf("create coach: %v", err)
	}

	svc := NewBookingService(repo, coachRepo, userRepo, &fakeNotifier{}, kafka.NoopProducer{}, metrics.NoopMetrics{}, log)

	return &bookingTestEnv{
		svc:       svc,
		repo:      repo,
		coachRepo: coachRepo,
		userRepo:  userRepo,
		coach:     coach,
	}
}

func (e *bookingTestEnv) createSlot(t *testing.T, startIn time.Duration) domain.Slot {
	t.Helper()

	start := time.Now().Add(startIn)
	slots, err := e.repo.CreateSlots(context.Background(), []domain.Slot{{
		CoachID:     e.coach.ID,
		StartAt:     start,
		EndAt:       start.Add(time.Hour),
		IsAvailable: true,
	}})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return slots[0]
}

func (e *bookingTestEnv) createPackage(t *testing.T, userID uuid.UUID, remaining int, expiresAt time.Time) domain.Package {
	t.Helper()

	pkg, err := e.repo.CreatePackage(context.Background(), domain.Package{
		UserID:    userID,
		CoachID:   e.coach.ID,
		Total:     remaining,
		Remaining: remaining,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		t.Fatalf("create package: %v", err)
	}
	return pkg
}

func TestBookingCreateSingle(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	booking, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID: env.coach.ID.String(),
		SlotID:  slot.ID.String(),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if booking.Type != domain.BookingTypeSingle {
		t.Errorf("booking type = %s, want SINGLE", booking.Type)
	}
	if booking.Status != domain.BookingStatusPending {
		t.Errorf("booking status = %s, want PENDING", booking.Status)
	}
	if booking.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("payment status = %s, want PENDING", booking.PaymentStatus)
	}

	updated, err := env.repo.GetSlotByID(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if updated.IsAvailable {
		t.Error("slot is still available after booking")
	}
}

func TestBookingCreateSlotInPast(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, -time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	_, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID: env.coach.ID.String(),
		SlotID:  slot.ID.String(),
	})
	if !errors.Is(err, domain.ErrSlotInPast) {
		t.Fatalf("err = %v, want ErrSlotInPast", err)
	}
}

func TestBookingCreateSlotTaken(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	first := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	second := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	req := domain.CreateBookingRequest{CoachID: env.coach.ID.String(), SlotID: slot.ID.String()}

	if _, err := env.svc.Create(context.Background(), first, req); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := env.svc.Create(context.Background(), second, req); !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
}

func TestBookingCreateWrongCoach(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	_, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID: uuid.New().String(),
		SlotID:  slot.ID.String(),
	})
	if !errors.Is(err, repository.ErrInvalidData) {
		t.Fatalf("err = %v, want ErrInvalidData", err)
	}
}

func TestBookingCreateWithPackage(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	pkg := env.createPackage(t, actor.UserID, 4, time.Now().AddDate(0, 1, 0))

	booking, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID:   env.coach.ID.String(),
		SlotID:    slot.ID.String(),
		Type:      string(domain.BookingTypePackage),
		PackageID: pkg.ID.String(),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if booking.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("payment status = %s, want PAID", booking.PaymentStatus)
	}

	got, err := env.repo.GetPackageByID(context.Background(), pkg.ID)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if got.Remaining != 3 {
		t.Errorf("remaining = %d, want 3", got.Remaining)
	}
}

func TestBookingCreatePackageExhausted(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	pkg := env.createPackage(t, actor.UserID, 1, time.Now().AddDate(0, 1, 0))

	// Вручную исчерпываем пакет
	exhausted := pkg
	exhausted.Remaining = 0
	if _, err := env.repo.CreatePackage(context.Background(), exhausted); err != nil {
		t.Fatalf("update package: %v", err)
	}

	_, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID:   env.coach.ID.String(),
		SlotID:    slot.ID.String(),
		Type:      string(domain.BookingTypePackage),
		PackageID: pkg.ID.String(),
	})
	if !errors.Is(err, domain.ErrPackageExhausted) {
		t.Fatalf("err = %v, want ErrPackageExhausted", err)
	}
}

func TestBookingCreatePackageExpired(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	pkg := env.createPackage(t, actor.UserID, 4, time.Now().Add(-time.Hour))

	_, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID:   env.coach.ID.String(),
		SlotID:    slot.ID.String(),
		Type:      string(domain.BookingTypePackage),
		PackageID: pkg.ID.String(),
	})
	if !errors.Is(err, domain.ErrPackageExhausted) {
		t.Fatalf("err = %v, want ErrPackageExhausted", err)
	}
}

func TestBookingCreateForeignPackage(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	pkg := env.createPackage(t, uuid.New(), 4, time.Now().AddDate(0, 1, 0))

	_, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID:   env.coach.ID.String(),
		SlotID:    slot.ID.String(),
		Type:      string(domain.BookingTypePackage),
		PackageID: pkg.ID.String(),
	})
	if !errors.Is(err, domain.ErrInvalidPackage) {
		t.Fatalf("err = %v, want ErrInvalidPackage", err)
	}
}

func TestBookingConcurrentCreateOneWinner(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
			_, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
				CoachID: env.coach.ID.String(),
				SlotID:  slot.ID.String(),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, domain.ErrSlotUnavailable) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
}

func TestBookingCancelRestoresSlotAndCredit(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	pkg := env.createPackage(t, actor.UserID, 4, time.Now().AddDate(0, 1, 0))

	booking, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID:   env.coach.ID.String(),
		SlotID:    slot.ID.String(),
		Type:      string(domain.BookingTypePackage),
		PackageID: pkg.ID.String(),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	canceled, err := env.svc.Cancel(context.Background(), actor, booking.ID.String())
	if err != nil {
		t.Fatalf("cancel booking: %v", err)
	}
	if canceled.Status != domain.BookingStatusCanceled {
		t.Errorf("status = %s, want CANCELED", canceled.Status)
	}

	gotSlot, err := env.repo.GetSlotByID(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if !gotSlot.IsAvailable {
		t.Error("slot not released after cancel")
	}

	gotPkg, err := env.repo.GetPackageByID(context.Background(), pkg.ID)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if gotPkg.Remaining != 4 {
		t.Errorf("remaining = %d, want 4", gotPkg.Remaining)
	}
}

func TestBookingCancelForbiddenForStranger(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	owner := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	stranger := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	booking, err := env.svc.Create(context.Background(), owner, domain.CreateBookingRequest{
		CoachID: env.coach.ID.String(),
		SlotID:  slot.ID.String(),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if _, err := env.svc.Cancel(context.Background(), stranger, booking.ID.String()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}
	if _, err := env.svc.Cancel(context.Background(), admin, booking.ID.String()); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestBookingCancelTwice(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	booking, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID: env.coach.ID.String(),
		SlotID:  slot.ID.String(),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if _, err := env.svc.Cancel(context.Background(), actor, booking.ID.String()); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := env.svc.Cancel(context.Background(), actor, booking.ID.String()); !errors.Is(err, repository.ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}
}

func TestBookingUpdateStatusInvalid(t *testing.T) {
	env := newBookingTestEnv(t)

	_, err := env.svc.UpdateStatus(context.Background(), uuid.New().String(), domain.BookingStatus("UNKNOWN"))
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestBookingConfirmSendsPushAndDropsInvalidTokens(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	ctx := context.Background()
	if err := env.userRepo.SaveToken(ctx, domain.DeviceToken{UserID: actor.UserID, Token: "good"}); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if err := env.userRepo.SaveToken(ctx, domain.DeviceToken{UserID: actor.UserID, Token: "stale"}); err != nil {
		t.Fatalf("save token: %v", err)
	}

	notifier := &fakeNotifier{invalid: []string{"stale"}}
	svc := NewBookingService(env.repo, env.coachRepo, env.userRepo, notifier, kafka.NoopProducer{}, metrics.NoopMetrics{}, testLogger())

	booking, err := svc.Create(ctx, actor, domain.CreateBookingRequest{
		CoachID: env.coach.ID.String(),
		SlotID:  slot.ID.String(),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, booking.ID.String(), domain.BookingStatusConfirmed); err != nil {
		t.Fatalf("update status: %v", err)
	}

	if notifier.calls != 1 {
		t.Fatalf("notifier calls = %d, want 1", notifier.calls)
	}

	tokens, err := env.userRepo.AllTokens(ctx)
	if err != nil {
		t.Fatalf("all tokens: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "good" {
		t.Errorf("tokens after cleanup = %v, want [good]", tokens)
	}
}

func TestCreateSlotsRejectsBadInterval(t *testing.T) {
	env := newBookingTestEnv(t)
	start := time.Now().Add(time.Hour)

	_, err := env.svc.CreateSlots(context.Background(), domain.CreateSlotsRequest{
		CoachID: env.coach.ID.String(),
		Slots: []domain.SlotIntervalInput{
			{StartAt: start, EndAt: start},
		},
	})
	if !errors.Is(err, domain.ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
}

func TestDeleteSlotWithActiveBooking(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	if _, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID: env.coach.ID.String(),
		SlotID:  slot.ID.String(),
	}); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if err := env.svc.DeleteSlot(context.Background(), slot.ID.String()); !errors.Is(err, repository.ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}
}

func TestBookingCancelCompletedRefused(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	pkg := env.createPackage(t, actor.UserID, 1, time.Now().AddDate(0, 1, 0))

	booking, err := env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID:   env.coach.ID.String(),
		SlotID:    slot.ID.String(),
		Type:      string(domain.BookingTypePackage),
		PackageID: pkg.ID.String(),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if _, err := env.svc.UpdateStatus(context.Background(), booking.ID.String(), domain.BookingStatusCompleted); err != nil {
		t.Fatalf("complete booking: %v", err)
	}

	if _, err := env.svc.Cancel(context.Background(), actor, booking.ID.String()); !errors.Is(err, repository.ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}

	// Проведенное занятие не возвращается в пакет
	gotPkg, err := env.repo.GetPackageByID(context.Background(), pkg.ID)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if gotPkg.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", gotPkg.Remaining)
	}

	gotBooking, err := env.repo.GetBookingByID(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if gotBooking.Status != domain.BookingStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", gotBooking.Status)
	}
}

func TestBookingCreatePackageForOtherCoach(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	other, err := env.coachRepo.Create(context.Background(), domain.Coach{Name: "Мария", Active: true})
	if err != nil {
		t.Fatalf("create coach: %v", err)
	}
	pkg, err := env.repo.CreatePackage(context.Background(), domain.Package{
		UserID:    actor.UserID,
		CoachID:   other.ID,
		Total:     4,
		Remaining: 4,
		ExpiresAt: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("create package: %v", err)
	}

	_, err = env.svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID:   env.coach.ID.String(),
		SlotID:    slot.ID.String(),
		Type:      string(domain.BookingTypePackage),
		PackageID: pkg.ID.String(),
	})
	if !errors.Is(err, domain.ErrInvalidPackage) {
		t.Fatalf("err = %v, want ErrInvalidPackage", err)
	}

	gotPkg, err := env.repo.GetPackageByID(context.Background(), pkg.ID)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if gotPkg.Remaining != 4 {
		t.Errorf("remaining = %d, want 4", gotPkg.Remaining)
	}
}

func TestListMineFiltersByStatus(t *testing.T) {
	env := newBookingTestEnv(t)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	ctx := context.Background()

	first := env.createSlot(t, time.Hour)
	second := env.createSlot(t, 2*time.Hour)

	kept, err := env.svc.Create(ctx, actor, domain.CreateBookingRequest{
		CoachID: env.coach.ID.String(),
		SlotID:  first.ID.String(),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	dropped, err := env.svc.Create(ctx, actor, domain.CreateBookingRequest{
		CoachID: env.coach.ID.String(),
		SlotID:  second.ID.String(),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if _, err := env.svc.Cancel(ctx, actor, dropped.ID.String()); err != nil {
		t.Fatalf("cancel booking: %v", err)
	}

	pending, err := env.svc.ListMine(ctx, actor, string(domain.BookingStatusPending))
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != kept.ID {
		t.Errorf("pending bookings = %d, want only the open one", len(pending))
	}

	all, err := env.svc.ListMine(ctx, actor, "")
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all bookings = %d, want 2", len(all))
	}

	if _, err := env.svc.ListMine(ctx, actor, "UNKNOWN"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestListMyPackagesOnlyUsable(t *testing.T) {
	env := newBookingTestEnv(t)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	usable := env.createPackage(t, actor.UserID, 4, time.Now().AddDate(0, 1, 0))
	env.createPackage(t, actor.UserID, 0, time.Now().AddDate(0, 1, 0))
	env.createPackage(t, actor.UserID, 4, time.Now().Add(-time.Hour))

	packages, err := env.svc.ListMyPackages(context.Background(), actor)
	if err != nil {
		t.Fatalf("list packages: %v", err)
	}
	if len(packages) != 1 {
		t.Fatalf("packages = %d, want 1", len(packages))
	}
	if packages[0].ID != usable.ID {
		t.Errorf("package = %s, want %s", packages[0].ID, usable.ID)
	}
}

// duplicateReserveRepo имитирует срабатывание уникального индекса
// по незакрытым бронированиям слота
type duplicateReserveRepo struct {
	*repository.InMemoryBookingRepository
}

func (r *duplicateReserveRepo) Reserve(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	return domain.Booking{}, repository.ErrDuplicate
}

func TestBookingCreateSlotAlreadyBooked(t *testing.T) {
	env := newBookingTestEnv(t)
	slot := env.createSlot(t, time.Hour)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	svc := NewBookingService(
		&duplicateReserveRepo{env.repo},
		env.coachRepo,
		env.userRepo,
		&fakeNotifier{},
		kafka.NoopProducer{},
		metrics.NoopMetrics{},
		testLogger(),
	)

	_, err := svc.Create(context.Background(), actor, domain.CreateBookingRequest{
		CoachID: env.coach.ID.String(),
		SlotID:  slot.ID.String(),
	})
	if !errors.Is(err, domain.ErrAlreadyBooked) {
		t.Fatalf("err = %v, want ErrAlreadyBooked", err)
	}
}
