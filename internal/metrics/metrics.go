package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

// SchoolMetrics интерфейс для метрик школы
type SchoolMetrics interface {
	IncBookingCreated(bookingType string)
	IncBookingCanceled()
	IncBookingConflict()
	IncWebhookEvent(eventType string, outcome string)
	IncPushSent(segment string)
	ObservePushBatch(successCount, failureCount int)
}

type schoolMetrics struct {
	log              *logger.Logger
	bookingsCreated  *prometheus.CounterVec
	bookingsCanceled prometheus.Counter
	bookingConflicts prometheus.Counter
	webhookEvents    *prometheus.CounterVec
	pushSent         *prometheus.CounterVec
	pushDeliveries   *prometheus.CounterVec
}

// NewSchoolMetrics создает новые метрики школы
func NewSchoolMetrics(registry *prometheus.Registry, log *logger.Logger) SchoolMetrics {
	bookingsCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "The total number of created bookings",
		},
		[]string{"type"},
	)

	bookingsCanceled := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_canceled_total",
			Help: "The total number of canceled bookings",
		},
	)

	bookingConflicts := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "booking_conflicts_total",
			Help: "The total number of booking attempts lost to a concurrent request",
		},
	)

	webhookEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripe_webhook_events_total",
			Help: "The total number of processed Stripe webhook events",
		},
		[]string{"type", "outcome"},
	)

	pushSent := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_notifications_sent_total",
			Help: "The total number of dispatched push notifications",
		},
		[]string{"segment"},
	)

	pushDeliveries := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "The total number of per-device push delivery results",
		},
		[]string{"result"},
	)

	return &schoolMetrics{
		log:              log,
		bookingsCreated:  bookingsCreated,
		bookingsCanceled: bookingsCanceled,
		bookingConflicts: bookingConflicts,
		webhookEvents:    webhookEvents,
		pushSent:         pushSent,
		pushDeliveries:   pushDeliveries,
	}
}

// IncBookingCreated увеличивает счетчик созданных бронирований
func (m *schoolMetrics) IncBookingCreated(bookingType string) {
	m.bookingsCreated.WithLabelValues(bookingType).Inc()
}

// IncBookingCanceled увеличивает счетчик отмененных бронирований
func (m *schoolMetrics) IncBookingCanceled() {
	m.bookingsCanceled.Inc()
}

// IncBookingConflict увеличивает счетчик проигранных гонок за слот
func (m *schoolMetrics) IncBookingConflict() {
	m.bookingConflicts.Inc()
}

// IncWebhookEvent увеличивает счетчик обработанных событий Stripe
func (m *schoolMetrics) IncWebhookEvent(eventType string, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// IncPushSent увеличивает счетчик отправленных рассылок
func (m *schoolMetrics) IncPushSent(segment string) {
	m.pushSent.WithLabelValues(segment).Inc()
}

// ObservePushBatch записывает итоги доставки по устройствам
func (m *schoolMetrics) ObservePushBatch(successCount, failureCount int) {
	m.pushDeliveries.WithLabelValues("success").Add(float64(successCount))
	m.pushDeliveries.WithLabelValues("failure").Add(float64(failureCount))
}

// NoopMetrics заглушка метрик для тестов
type NoopMetrics struct{}

func (NoopMetrics) IncBookingCreated(bookingType string) {}

func (NoopMetrics) IncBookingCanceled() {}

func (NoopMetrics) IncBookingConflict() {}

func (NoopMetrics) IncWebhookEvent(eventType string, outcome string) {}

func (NoopMetrics) IncPushSent(segment string) {}

func (NoopMetrics) ObservePushBatch(successCount, failureCount int) {}
