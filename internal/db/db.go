package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

// DBClient представляет клиент для работы с базой данных.
// Используется для служебных запросов: миграции схемы и сводная
// статистика для админ-панели. Репозитории работают через pgxpool.
type DBClient struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewDBClient создает новый экземпляр DBClient.
func NewDBClient(dsn string, log *logger.Logger) (*DBClient, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		log.Errorw("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Errorw("Failed to ping database", "error", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DBClient{db: db, log: log}, nil
}

// Close закрывает соединение с базой данных.
func (dc *DBClient) Close() error {
	err := dc.db.Close()
	if err != nil {
		dc.log.Errorw("Failed to close database connection", "error", err)
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// Migrate создает схему, если ее еще нет.
func (dc *DBClient) Migrate(ctx context.Context) error {
	dc.log.Infow("Running schema migration")

	if _, err := dc.db.ExecContext(ctx, schema); err != nil {
		dc.log.Errorw("Failed to migrate schema", "error", err)
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	dc.log.Infow("Schema migration completed")
	return nil
}

// DashboardStats сводная статистика для админ-панели.
type DashboardStats struct {
	TotalUsers            int `db:"total_users" json:"totalUsers"`
	ActiveSubscriptions   int `db:"active_subscriptions" json:"activeSubscriptions"`
	TrialSubscriptions    int `db:"trial_subscriptions" json:"trialSubscriptions"`
	ActiveBookings        int `db:"active_bookings" json:"activeBookings"`
	BookingsLast30Days    int `db:"bookings_last_30_days" json:"bookingsLast30Days"`
	PushNotificationsSent int `db:"push_sent" json:"pushNotificationsSent"`
}

// GetDashboardStats возвращает сводную статистику одним запросом.
func (dc *DBClient) GetDashboardStats(ctx context.Context) (DashboardStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM subscriptions WHERE status = 'ACTIVE') AS active_subscriptions,
			(SELECT COUNT(*) FROM subscriptions WHERE status = 'TRIAL') AS trial_subscriptions,
			(SELECT COUNT(*) FROM bookings WHERE status IN ('PENDING', 'CONFIRMED')) AS active_bookings,
			(SELECT COUNT(*) FROM bookings WHERE created_at > $1) AS bookings_last_30_days,
			(SELECT COUNT(*) FROM push_notifications WHERE sent_at IS NOT NULL) AS push_sent
	`

	var stats DashboardStats
	since := time.Now().AddDate(0, 0, -30)
	if err := dc.db.QueryRowxContext(ctx, query, since).StructScan(&stats); err != nil {
		dc.log.Errorw("Failed to get dashboard stats", "error", err)
		return DashboardStats{}, fmt.Errorf("failed to get dashboard stats: %w", err)
	}

	return stats, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	phone TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'USER',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS coaches (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	level TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	socials JSONB NOT NULL DEFAULT '{}',
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS slots (
	id UUID PRIMARY KEY,
	coach_id UUID NOT NULL REFERENCES coaches(id),
	start_at TIMESTAMPTZ NOT NULL,
	end_at TIMESTAMPTZ NOT NULL,
	is_available BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_slots_coach_start ON slots(coach_id, start_at);

CREATE TABLE IF NOT EXISTS packages (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id),
	coach_id UUID NOT NULL REFERENCES coaches(id),
	total INTEGER NOT NULL,
	remaining INTEGER NOT NULL CHECK (remaining >= 0),
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id),
	coach_id UUID NOT NULL REFERENCES coaches(id),
	slot_id UUID NOT NULL REFERENCES slots(id),
	package_id UUID REFERENCES packages(id),
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	payment_status TEXT NOT NULL,
	price BIGINT NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Один незакрытый заказ на слот: вторая вставка упирается в индекс
CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot_open
	ON bookings(slot_id) WHERE status <> 'CANCELED';

CREATE TABLE IF NOT EXISTS plans (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	price BIGINT NOT NULL,
	currency TEXT NOT NULL DEFAULT 'rub',
	interval TEXT NOT NULL DEFAULT 'month',
	trial_days INTEGER NOT NULL DEFAULT 0,
	stripe_price_id TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL UNIQUE REFERENCES users(id),
	plan_id UUID NOT NULL REFERENCES plans(id),
	status TEXT NOT NULL,
	stripe_customer_id TEXT NOT NULL DEFAULT '',
	stripe_subscription_id TEXT NOT NULL DEFAULT '',
	trial_end_at TIMESTAMPTZ,
	current_period_end_at TIMESTAMPTZ,
	canceled_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_stripe_id
	ON subscriptions(stripe_subscription_id);

CREATE TABLE IF NOT EXISTS device_tokens (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id),
	token TEXT NOT NULL UNIQUE,
	platform TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS push_notifications (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	segment TEXT NOT NULL DEFAULT 'all',
	data JSONB NOT NULL DEFAULT '{}',
	scheduled_at TIMESTAMPTZ,
	sent_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_push_due
	ON push_notifications(scheduled_at) WHERE sent_at IS NULL;
`
