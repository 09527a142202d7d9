package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/integration/fcm"
	"github.com/atrkk2024-beep/inskate/internal/metrics"
	"github.com/atrkk2024-beep/inskate/internal/repository"
)

// fakeNotifier запоминает отправки и отдает заранее заданный отчет
type fakeNotifier struct {
	mutex   sync.Mutex
	calls   int
	tokens  [][]string
	invalid []string
	fail    int
}

func (n *fakeNotifier) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) (fcm.SendReport, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.calls++
	if n.fail > 0 {
		n.fail--
		return fcm.SendReport{}, errors.New("fcm unavailable")
	}

	n.tokens = append(n.tokens, tokens)
	return fcm.SendReport{
		SuccessCount:  len(tokens) - len(n.invalid),
		FailureCount:  len(n.invalid),
		InvalidTokens: n.invalid,
	}, nil
}

type pushTestEnv struct {
	svc              PushService
	pushRepo         *repository.InMemoryPushRepository
	userRepo         *repository.InMemoryUserRepository
	subscriptionRepo *repository.InMemorySubscriptionRepository
	notifier         *fakeNotifier
}

func newPushTestEnv(t *testing.T) *pushTestEnv {
	t.Helper()

	log := testLogger()
	pushRepo := repository.NewInMemoryPushRepository(log)
	userRepo := repository.NewInMemoryUserRepository(log)
	subscriptionRepo := repository.NewInMemorySubscriptionRepository(log)
	notifier := &fakeNotifier{}

	svc := NewPushService(pushRepo, userRepo, subscriptionRepo, notifier, nil, metrics.NoopMetrics{}, log)

	return &pushTestEnv{
		svc:              svc,
		pushRepo:         pushRepo,
		userRepo:         userRepo,
		subscriptionRepo: subscriptionRepo,
		notifier:         notifier,
	}
}

func (e *pushTestEnv) addUserWithToken(t *testing.T, token string, subscribed bool) uuid.UUID {
	t.Helper()

	ctx := context.Background()
	userID := uuid.New()
	if err := e.userRepo.SaveToken(ctx, domain.DeviceToken{UserID: userID, Token: token}); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if subscribed {
		if _, err := e.subscriptionRepo.Upsert(ctx, domain.Subscription{
			UserID: userID,
			Status: domain.SubscriptionStatusActive,
		}); err != nil {
			t.Fatalf("upsert subscription: %v", err)
		}
	}
	return userID
}

func TestPushSendImmediate(t *testing.T) {
	env := newPushTestEnv(t)
	env.addUserWithToken(t, "token-a", false)
	env.addUserWithToken(t, "token-b", true)

	sent, err := env.svc.Send(context.Background(), domain.SendPushRequest{
		Title: "Новое расписание",
		Body:  "Открыта запись на сентябрь",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !sent.Sent() {
		t.Error("notification not marked as sent")
	}
	if env.notifier.calls != 1 {
		t.Fatalf("notifier calls = %d, want 1", env.notifier.calls)
	}
	if len(env.notifier.tokens[0]) != 2 {
		t.Errorf("tokens delivered = %d, want 2", len(env.notifier.tokens[0]))
	}
}

func TestPushSendInvalidSegment(t *testing.T) {
	env := newPushTestEnv(t)

	_, err := env.svc.Send(context.Background(), domain.SendPushRequest{
		Title:   "Привет",
		Body:    "Тест",
		Segment: "vip",
	})
	if !errors.Is(err, domain.ErrInvalidSegment) {
		t.Fatalf("err = %v, want ErrInvalidSegment", err)
	}
}

func TestPushSegmentResolution(t *testing.T) {
	env := newPushTestEnv(t)
	env.addUserWithToken(t, "sub-token", true)
	env.addUserWithToken(t, "free-token", false)

	cases := []struct {
		segment string
		want    string
		count   int
	}{
		{segment: "subscribers", want: "sub-token", count: 1},
		{segment: "non_subscribers", want: "free-token", count: 1},
		{segment: "all", want: "", count: 2},
	}

	for _, tc := range cases {
		env.notifier.tokens = nil

		_, err := env.svc.Send(context.Background(), domain.SendPushRequest{
			Title:   "Сегменты",
			Body:    "Проверка",
			Segment: tc.segment,
		})
		if err != nil {
			t.Fatalf("send to %s: %v", tc.segment, err)
		}

		got := env.notifier.tokens[0]
		if len(got) != tc.count {
			t.Errorf("segment %s delivered %d tokens, want %d", tc.segment, len(got), tc.count)
		}
		if tc.want != "" && got[0] != tc.want {
			t.Errorf("segment %s delivered to %s, want %s", tc.segment, got[0], tc.want)
		}
	}
}

func TestPushScheduledIsDeferred(t *testing.T) {
	env := newPushTestEnv(t)
	env.addUserWithToken(t, "token-a", false)

	future := time.Now().Add(time.Hour)
	created, err := env.svc.Send(context.Background(), domain.SendPushRequest{
		Title:       "Напоминание",
		Body:        "Занятие завтра",
		ScheduledAt: &future,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if created.Sent() {
		t.Error("scheduled notification sent immediately")
	}
	if env.notifier.calls != 0 {
		t.Errorf("notifier calls = %d, want 0", env.notifier.calls)
	}
}

func TestPushDispatchDue(t *testing.T) {
	env := newPushTestEnv(t)
	env.addUserWithToken(t, "token-a", false)

	past := time.Now().Add(-time.Minute)
	created, err := env.svc.Send(context.Background(), domain.SendPushRequest{
		Title:       "Пора",
		Body:        "Срок наступил",
		ScheduledAt: &past,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !created.Sent() {
		t.Fatal("due notification not sent on create")
	}

	// Повторный прогон планировщика ничего не отправляет
	if err := env.svc.DispatchDue(context.Background(), time.Now()); err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if env.notifier.calls != 1 {
		t.Fatalf("notifier calls = %d, want 1", env.notifier.calls)
	}
}

func TestPushDispatchDueNoDoubleSend(t *testing.T) {
	env := newPushTestEnv(t)
	env.addUserWithToken(t, "token-a", false)

	past := time.Now().Add(-time.Minute)
	created, err := env.pushRepo.Create(context.Background(), domain.PushNotification{
		Title:       "Гонка",
		Body:        "Два планировщика",
		Segment:     domain.PushSegmentAll,
		ScheduledAt: &past,
	})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}

	// Пометка отправленной конкурентом: доставка должна молча пропуститься
	if err := env.pushRepo.MarkSent(context.Background(), created.ID, time.Now()); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	if err := env.svc.DispatchDue(context.Background(), time.Now()); err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if env.notifier.calls != 0 {
		t.Fatalf("notifier calls = %d, want 0", env.notifier.calls)
	}
}

func TestPushRetryOnFailure(t *testing.T) {
	env := newPushTestEnv(t)
	env.addUserWithToken(t, "token-a", false)
	env.notifier.fail = 2

	_, err := env.svc.Send(context.Background(), domain.SendPushRequest{
		Title: "Ретраи",
		Body:  "Доедет со второго повтора",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if env.notifier.calls != 3 {
		t.Errorf("notifier calls = %d, want 3", env.notifier.calls)
	}
}

func TestPushInvalidTokenCleanup(t *testing.T) {
	env := newPushTestEnv(t)
	env.addUserWithToken(t, "good", false)
	env.addUserWithToken(t, "stale", false)
	env.notifier.invalid = []string{"stale"}

	if _, err := env.svc.Send(context.Background(), domain.SendPushRequest{
		Title: "Чистка",
		Body:  "Мертвые токены удаляются",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	tokens, err := env.userRepo.AllTokens(context.Background())
	if err != nil {
		t.Fatalf("all tokens: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "good" {
		t.Errorf("tokens after cleanup = %v, want [good]", tokens)
	}
}

func TestPushRegisterTokenEmpty(t *testing.T) {
	env := newPushTestEnv(t)
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	if err := env.svc.RegisterToken(context.Background(), actor, "", "ios"); !errors.Is(err, repository.ErrInvalidData) {
		t.Fatalf("err = %v, want ErrInvalidData", err)
	}
}

func TestPushDeleteScheduled(t *testing.T) {
	env := newPushTestEnv(t)
	env.addUserWithToken(t, "token-a", false)

	scheduledAt := time.Now().Add(time.Hour)
	created, err := env.svc.Send(context.Background(), domain.SendPushRequest{
		Title:       "Отмена тренировки",
		Body:        "Каток закрыт",
		ScheduledAt: &scheduledAt,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := env.svc.Delete(context.Background(), created.ID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	notifications, err := env.svc.List(context.Background(), false, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notifications) != 0 {
		t.Fatalf("notifications = %d, want 0", len(notifications))
	}
	if env.notifier.calls != 0 {
		t.Error("deleted notification was dispatched")
	}
}

func TestPushDeleteSentRefused(t *testing.T) {
	env := newPushTestEnv(t)
	env.addUserWithToken(t, "token-a", false)

	created, err := env.svc.Send(context.Background(), domain.SendPushRequest{
		Title: "Новое расписание",
		Body:  "Слоты на ноябрь открыты",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	err = env.svc.Delete(context.Background(), created.ID.String())
	if !errors.Is(err, repository.ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}

	pending, err := env.svc.List(context.Background(), true, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}
}

func TestPushGetByID(t *testing.T) {
	env := newPushTestEnv(t)
	ctx := context.Background()

	scheduledAt := time.Now().Add(time.Hour)
	created, err := env.svc.Send(ctx, domain.SendPushRequest{
		Title:       "Расписание",
		Body:        "Открыта запись на декабрь",
		ScheduledAt: &scheduledAt,
	})
	if err != nil {
		t.Fatalf("send push: %v", err)
	}

	got, err := env.svc.Get(ctx, created.ID.String())
	if err != nil {
		t.Fatalf("get push: %v", err)
	}
	if got.ID != created.ID || got.Title != "Расписание" {
		t.Errorf("unexpected notification: %+v", got)
	}

	if _, err := env.svc.Get(ctx, uuid.New().String()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := env.svc.Get(ctx, "not-a-uuid"); !errors.Is(err, repository.ErrInvalidData) {
		t.Fatalf("err = %v, want ErrInvalidData", err)
	}
}
