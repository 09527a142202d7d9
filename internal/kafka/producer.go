package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

// Топики событий жизненного цикла
const (
	TopicBookingCreated      = "booking_created"
	TopicBookingCanceled     = "booking_canceled"
	TopicSubscriptionUpdated = "subscription_updated"
)

// Producer определяет интерфейс для публикации событий в Kafka.
type Producer interface {
	// PublishBookingEvent отправляет событие бронирования.
	// Ключ сообщения - ID бронирования, чтобы события одного
	// бронирования попадали в одну партицию.
	PublishBookingEvent(ctx context.Context, topic string, booking domain.Booking) error

	// PublishSubscriptionEvent отправляет событие подписки.
	PublishSubscriptionEvent(ctx context.Context, topic string, subscription domain.Subscription) error

	// Close закрывает соединение продюсера Kafka.
	Close() error
}

// kafkaProducer реализует интерфейс Producer через segmentio/kafka-go.
type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka.
func NewKafkaProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)

	return &kafkaProducer{
		writer: writer,
		log:    log,
	}, nil
}

// PublishBookingEvent преобразует бронирование в JSON и отправляет в топик.
func (k *kafkaProducer) PublishBookingEvent(ctx context.Context, topic string, booking domain.Booking) error {
	return k.publish(ctx, topic, booking.ID.String(), booking)
}

// PublishSubscriptionEvent преобразует подписку в JSON и отправляет в топик.
func (k *kafkaProducer) PublishSubscriptionEvent(ctx context.Context, topic string, subscription domain.Subscription) error {
	return k.publish(ctx, topic, subscription.UserID.String(), subscription)
}

func (k *kafkaProducer) publish(ctx context.Context, topic, key string, payload interface{}) error {
	messageValue, err := json.Marshal(payload)
	if err != nil {
		k.log.Errorw("Failed to marshal event for Kafka", "error", err, "topic", topic)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: messageValue,
		Time:  time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", topic, "key", key)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", topic, "key", key)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published message to Kafka", "topic", topic, "key", key)
	return nil
}

// Close закрывает Kafka Writer при остановке приложения.
func (k *kafkaProducer) Close() error {
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	k.log.Infow("Kafka producer writer closed")
	return nil
}

// NoopProducer заглушка продюсера для работы без Kafka.
type NoopProducer struct{}

// PublishBookingEvent ничего не делает.
func (NoopProducer) PublishBookingEvent(ctx context.Context, topic string, booking domain.Booking) error {
	return nil
}

// PublishSubscriptionEvent ничего не делает.
func (NoopProducer) PublishSubscriptionEvent(ctx context.Context, topic string, subscription domain.Subscription) error {
	return nil
}

// Close ничего не делает.
func (NoopProducer) Close() error { return nil }
