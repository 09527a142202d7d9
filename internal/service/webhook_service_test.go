package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/kafka"
	"github.com/atrkk2024-beep/inskate/internal/metrics"
	"github.com/atrkk2024-beep/inskate/internal/repository"
)

type webhookTestEnv struct {
	svc              WebhookService
	subscriptionRepo *repository.InMemorySubscriptionRepository
	userRepo         *repository.InMemoryUserRepository
}

func newWebhookTestEnv(t *testing.T) *webhookTestEnv {
	t.Helper()

	log := testLogger()
	subscriptionRepo := repository.NewInMemorySubscriptionRepository(log)
	userRepo := repository.NewInMemoryUserRepository(log)
	svc := NewWebhookService(subscriptionRepo, userRepo, kafka.NoopProducer{}, metrics.NoopMetrics{}, log)

	return &webhookTestEnv{
		svc:              svc,
		subscriptionRepo: subscriptionRepo,
		userRepo:         userRepo,
	}
}

func (e *webhookTestEnv) createUser(t *testing.T, role domain.Role) domain.User {
	t.Helper()

	user, err := e.userRepo.Create(context.Background(), domain.User{Phone: "+79990000000", Role: role})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (e *webhookTestEnv) createPlan(t *testing.T, trialDays int) domain.Plan {
	t.Helper()

	plan, err := e.subscriptionRepo.CreatePlan(context.Background(), domain.Plan{
		Name:      "Базовый",
		Price:     99000,
		Currency:  "rub",
		Interval:  "month",
		TrialDays: trialDays,
		Active:    true,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return plan
}

func TestCheckoutCompletedActivates(t *testing.T) {
	env := newWebhookTestEnv(t)
	user := env.createUser(t, domain.RoleUser)
	plan := env.createPlan(t, 0)

	ctx := context.Background()
	err := env.svc.HandleCheckoutCompleted(ctx, domain.CheckoutCompletedEvent{
		UserID:               user.ID,
		PlanID:               plan.ID,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
	})
	if err != nil {
		t.Fatalf("handle checkout: %v", err)
	}

	subscription, err := env.subscriptionRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if subscription.Status != domain.SubscriptionStatusActive {
		t.Errorf("status = %s, want ACTIVE", subscription.Status)
	}
	if subscription.CurrentPeriodEndAt == nil {
		t.Error("current period end not set")
	}

	got, err := env.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Role != domain.RoleSubscriber {
		t.Errorf("role = %s, want SUBSCRIBER", got.Role)
	}
}

func TestCheckoutCompletedWithTrial(t *testing.T) {
	env := newWebhookTestEnv(t)
	user := env.createUser(t, domain.RoleUser)
	plan := env.createPlan(t, 7)

	ctx := context.Background()
	err := env.svc.HandleCheckoutCompleted(ctx, domain.CheckoutCompletedEvent{
		UserID:               user.ID,
		PlanID:               plan.ID,
		StripeSubscriptionID: "sub_trial",
	})
	if err != nil {
		t.Fatalf("handle checkout: %v", err)
	}

	subscription, err := env.subscriptionRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if subscription.Status != domain.SubscriptionStatusTrial {
		t.Errorf("status = %s, want TRIAL", subscription.Status)
	}
	if subscription.TrialEndAt == nil {
		t.Fatal("trial end not set")
	}
}

func TestCheckoutCompletedIdempotentReplay(t *testing.T) {
	env := newWebhookTestEnv(t)
	user := env.createUser(t, domain.RoleUser)
	plan := env.createPlan(t, 0)

	ctx := context.Background()
	event := domain.CheckoutCompletedEvent{
		UserID:               user.ID,
		PlanID:               plan.ID,
		StripeSubscriptionID: "sub_replay",
	}

	if err := env.svc.HandleCheckoutCompleted(ctx, event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	first, err := env.subscriptionRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}

	if err := env.svc.HandleCheckoutCompleted(ctx, event); err != nil {
		t.Fatalf("replay: %v", err)
	}
	second, err := env.subscriptionRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("replay created a new subscription: %s != %s", first.ID, second.ID)
	}
	if second.Status != domain.SubscriptionStatusActive {
		t.Errorf("status after replay = %s, want ACTIVE", second.Status)
	}
}

func TestSubscriptionUpdatedMapsStatus(t *testing.T) {
	env := newWebhookTestEnv(t)
	user := env.createUser(t, domain.RoleSubscriber)
	plan := env.createPlan(t, 0)

	ctx := context.Background()
	if _, err := env.subscriptionRepo.Upsert(ctx, domain.Subscription{
		UserID:               user.ID,
		PlanID:               plan.ID,
		Status:               domain.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_map",
	}); err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}

	periodEnd := time.Now().AddDate(0, 1, 0).Unix()
	err := env.svc.HandleSubscriptionUpdated(ctx, domain.SubscriptionUpdatedEvent{
		StripeSubscriptionID: "sub_map",
		StripeStatus:         "past_due",
		CurrentPeriodEnd:     periodEnd,
	})
	if err != nil {
		t.Fatalf("handle update: %v", err)
	}

	subscription, err := env.subscriptionRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if subscription.Status != domain.SubscriptionStatusPastDue {
		t.Errorf("status = %s, want PAST_DUE", subscription.Status)
	}
	if subscription.CurrentPeriodEndAt == nil || subscription.CurrentPeriodEndAt.Unix() != periodEnd {
		t.Error("current period end not taken from event")
	}

	got, err := env.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Role != domain.RoleUser {
		t.Errorf("role = %s, want USER after losing entitlement", got.Role)
	}
}

func TestSubscriptionUpdatedUnknownIsSkipped(t *testing.T) {
	env := newWebhookTestEnv(t)

	err := env.svc.HandleSubscriptionUpdated(context.Background(), domain.SubscriptionUpdatedEvent{
		StripeSubscriptionID: "sub_ghost",
		StripeStatus:         "active",
	})
	if err != nil {
		t.Fatalf("unknown subscription should be skipped, got %v", err)
	}
}

func TestSubscriptionDeletedCancels(t *testing.T) {
	env := newWebhookTestEnv(t)
	user := env.createUser(t, domain.RoleSubscriber)

	ctx := context.Background()
	if _, err := env.subscriptionRepo.Upsert(ctx, domain.Subscription{
		UserID:               user.ID,
		Status:               domain.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_del",
	}); err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}

	if err := env.svc.HandleSubscriptionDeleted(ctx, "sub_del"); err != nil {
		t.Fatalf("handle delete: %v", err)
	}

	subscription, err := env.subscriptionRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if subscription.Status != domain.SubscriptionStatusCanceled {
		t.Errorf("status = %s, want CANCELED", subscription.Status)
	}
	if subscription.CanceledAt == nil {
		t.Error("canceled at not set")
	}

	got, err := env.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Role != domain.RoleUser {
		t.Errorf("role = %s, want USER", got.Role)
	}
}

func TestInvoicePaymentFailedKeepsRole(t *testing.T) {
	env := newWebhookTestEnv(t)
	user := env.createUser(t, domain.RoleSubscriber)

	ctx := context.Background()
	if _, err := env.subscriptionRepo.Upsert(ctx, domain.Subscription{
		UserID:               user.ID,
		Status:               domain.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_fail",
	}); err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}

	if err := env.svc.HandleInvoicePaymentFailed(ctx, "sub_fail"); err != nil {
		t.Fatalf("handle payment failure: %v", err)
	}

	subscription, err := env.subscriptionRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if subscription.Status != domain.SubscriptionStatusPastDue {
		t.Errorf("status = %s, want PAST_DUE", subscription.Status)
	}

	// Льготный период: роль не понижается, доступ сохраняется
	got, err := env.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Role != domain.RoleSubscriber {
		t.Errorf("role = %s, want SUBSCRIBER", got.Role)
	}
}

func TestRoleSyncSkipsStaff(t *testing.T) {
	env := newWebhookTestEnv(t)
	admin := env.createUser(t, domain.RoleAdmin)
	plan := env.createPlan(t, 0)

	ctx := context.Background()
	err := env.svc.HandleCheckoutCompleted(ctx, domain.CheckoutCompletedEvent{
		UserID:               admin.ID,
		PlanID:               plan.ID,
		StripeSubscriptionID: "sub_admin",
	})
	if err != nil {
		t.Fatalf("handle checkout: %v", err)
	}

	got, err := env.userRepo.GetByID(ctx, admin.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Role != domain.RoleAdmin {
		t.Errorf("role = %s, staff role must not change", got.Role)
	}
}

func TestInvoicePaymentFailedEmptyIDIsNoop(t *testing.T) {
	env := newWebhookTestEnv(t)

	if err := env.svc.HandleInvoicePaymentFailed(context.Background(), ""); err != nil {
		t.Fatalf("empty subscription id should be a no-op, got %v", err)
	}
}

func TestMapStripeStatus(t *testing.T) {
	cases := map[string]domain.SubscriptionStatus{
		"trialing": domain.SubscriptionStatusTrial,
		"active":   domain.SubscriptionStatusActive,
		"past_due": domain.SubscriptionStatusPastDue,
		"canceled": domain.SubscriptionStatusCanceled,
		"unpaid":   domain.SubscriptionStatusCanceled,
		"paused":   domain.SubscriptionStatusExpired,
	}

	for stripeStatus, want := range cases {
		if got := domain.MapStripeStatus(stripeStatus); got != want {
			t.Errorf("MapStripeStatus(%q) = %s, want %s", stripeStatus, got, want)
		}
	}
}

func TestCheckoutUnknownPlanSkipped(t *testing.T) {
	env := newWebhookTestEnv(t)
	user := env.createUser(t, domain.RoleUser)

	ctx := context.Background()
	err := env.svc.HandleCheckoutCompleted(ctx, domain.CheckoutCompletedEvent{
		UserID:               user.ID,
		PlanID:               uuid.New(),
		StripeSubscriptionID: "sub_noplan",
	})
	if err != nil {
		t.Fatalf("unknown plan should be skipped, got %v", err)
	}

	if _, err := env.subscriptionRepo.GetByUserID(ctx, user.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound, subscription must not appear", err)
	}
}

// failingRoleUserRepo отклоняет смену роли, остальное делегирует хранилищу
type failingRoleUserRepo struct {
	*repository.InMemoryUserRepository
}

func (r *failingRoleUserRepo) UpdateRole(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	return errors.New("role write failed")
}

func TestCheckoutRoleSyncFailurePropagates(t *testing.T) {
	env := newWebhookTestEnv(t)
	user := env.createUser(t, domain.RoleUser)
	plan := env.createPlan(t, 0)

	svc := NewWebhookService(
		env.subscriptionRepo,
		&failingRoleUserRepo{env.userRepo},
		kafka.NoopProducer{},
		metrics.NoopMetrics{},
		testLogger(),
	)

	ctx := context.Background()
	err := svc.HandleCheckoutCompleted(ctx, domain.CheckoutCompletedEvent{
		UserID:               user.ID,
		PlanID:               plan.ID,
		StripeSubscriptionID: "sub_rolefail",
	})
	if err == nil {
		t.Fatal("role sync failure must be returned for redelivery")
	}

	// Повторная доставка после починки роли доводит состояние до конца
	err = env.svc.HandleCheckoutCompleted(ctx, domain.CheckoutCompletedEvent{
		UserID:               user.ID,
		PlanID:               plan.ID,
		StripeSubscriptionID: "sub_rolefail",
	})
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	got, err := env.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Role != domain.RoleSubscriber {
		t.Errorf("role = %s, want SUBSCRIBER after redelivery", got.Role)
	}
}
