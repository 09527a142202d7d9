package domain

import (
	"time"

	"github.com/google/uuid"
)

// PushSegment аудитория push-рассылки
type PushSegment string

const (
	PushSegmentAll            PushSegment = "all"
	PushSegmentSubscribers    PushSegment = "subscribers"
	PushSegmentNonSubscribers PushSegment = "non_subscribers"
)

// ValidPushSegment проверяет, что значение входит в набор сегментов
func ValidPushSegment(s PushSegment) bool {
	switch s {
	case PushSegmentAll, PushSegmentSubscribers, PushSegmentNonSubscribers:
		return true
	}
	return false
}

// PushNotification представляет запись push-рассылки (журнал и расписание)
type PushNotification struct {
	ID          uuid.UUID         `json:"id"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Segment     PushSegment       `json:"segment"`
	Data        map[string]string `json:"data,omitempty"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	SentAt      *time.Time        `json:"sent_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Sent сообщает, была ли рассылка уже отправлена
func (n *PushNotification) Sent() bool {
	return n.SentAt != nil
}

// SendPushRequest представляет запрос администратора на рассылку
type SendPushRequest struct {
	Title       string            `json:"title" binding:"required,max=100"`
	Body        string            `json:"body" binding:"required,max=500"`
	Segment     string            `json:"segment,omitempty"`
	ScheduledAt *time.Time        `json:"scheduledAt,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

// PushSendResult итог доставки рассылки
type PushSendResult struct {
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
}
