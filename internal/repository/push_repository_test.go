package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

func TestPushMarkSentOnce(t *testing.T) {
	repo := NewInMemoryPushRepository(testLogger())
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.PushNotification{
		Title:   "Тест",
		Body:    "Повторная пометка запрещена",
		Segment: domain.PushSegmentAll,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.MarkSent(ctx, created.ID, time.Now()); err != nil {
		t.Fatalf("first mark sent: %v", err)
	}
	if err := repo.MarkSent(ctx, created.ID, time.Now()); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestPushListDue(t *testing.T) {
	repo := NewInMemoryPushRepository(testLogger())
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due, err := repo.Create(ctx, domain.PushNotification{
		Title: "Срок наступил", Body: "a", Segment: domain.PushSegmentAll, ScheduledAt: &past,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, domain.PushNotification{
		Title: "Рано", Body: "b", Segment: domain.PushSegmentAll, ScheduledAt: &future,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, domain.PushNotification{
		Title: "Без расписания", Body: "c", Segment: domain.PushSegmentAll,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("due = %d notifications, want exactly the overdue one", len(got))
	}

	// Отправленные из выборки пропадают
	if err := repo.MarkSent(ctx, due.ID, now); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	got, err = repo.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("due after send = %d, want 0", len(got))
	}
}

func TestSubscriptionUpsertKeepsOnePerUser(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())
	ctx := context.Background()

	first, err := repo.Upsert(ctx, domain.Subscription{
		UserID: uuid.New(),
		Status: domain.SubscriptionStatusTrial,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := repo.Upsert(ctx, domain.Subscription{
		UserID: first.UserID,
		Status: domain.SubscriptionStatusActive,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("upsert created a second subscription for the user")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("upsert did not preserve created_at")
	}

	got, err := repo.GetByUserID(ctx, first.UserID)
	if err != nil {
		t.Fatalf("get by user: %v", err)
	}
	if got.Status != domain.SubscriptionStatusActive {
		t.Errorf("status = %s, want ACTIVE", got.Status)
	}
}
