package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

// FCM отправляет не больше 500 токенов за один мультикаст
const batchSize = 500

// SendReport итог доставки по набору токенов
type SendReport struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// Notifier определяет доставку push-уведомлений на устройства.
type Notifier interface {
	// SendToTokens доставляет уведомление на токены устройств и
	// возвращает отчет, включая токены, отвергнутые провайдером.
	SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) (SendReport, error)
}

// fcmNotifier реализует Notifier через Firebase Cloud Messaging.
type fcmNotifier struct {
	client *messaging.Client
	log    *logger.Logger
}

// NewNotifier создает новый FCM-клиент из файла сервисного аккаунта.
func NewNotifier(ctx context.Context, credentialsFile string, log *logger.Logger) (Notifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fcm client: %w", err)
	}

	log.Infow("Connected to FCM successfully")
	return &fcmNotifier{
		client: client,
		log:    log,
	}, nil
}

// SendToTokens доставляет уведомление пакетами по 500 токенов.
func (n *fcmNotifier) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) (SendReport, error) {
	var report SendReport

	for start := 0; start < len(tokens); start += batchSize {
		end := start + batchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		message := &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		}

		resp, err := n.client.SendEachForMulticast(ctx, message)
		if err != nil {
			return report, fmt.Errorf("failed to send fcm multicast: %w", err)
		}

		report.SuccessCount += resp.SuccessCount
		report.FailureCount += resp.FailureCount

		for i, result := range resp.Responses {
			if result.Error == nil {
				continue
			}
			if messaging.IsUnregistered(result.Error) || messaging.IsInvalidArgument(result.Error) {
				report.InvalidTokens = append(report.InvalidTokens, batch[i])
			}
		}
	}

	return report, nil
}

// LogNotifier пишет уведомления в лог вместо отправки.
// Используется, когда FCM не сконфигурирован (локальная разработка, тесты).
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier создает Notifier, пишущий только в лог.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// SendToTokens пишет уведомление в лог и считает все доставки успешными.
func (n *LogNotifier) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) (SendReport, error) {
	n.log.Infow("Push notification (log only)", "title", title, "tokens", len(tokens))
	return SendReport{SuccessCount: len(tokens)}, nil
}
