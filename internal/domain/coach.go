package domain

import (
	"time"

	"github.com/google/uuid"
)

// Coach представляет собой модель тренера
type Coach struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Level     string            `json:"level,omitempty"`
	Bio       string            `json:"bio,omitempty"`
	AvatarURL string            `json:"avatar_url,omitempty"`
	Socials   map[string]string `json:"socials,omitempty"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Slot представляет бронируемый интервал времени тренера
type Slot struct {
	ID          uuid.UUID `json:"id"`
	CoachID     uuid.UUID `json:"coach_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}

// CoachRequest представляет запрос на создание или изменение тренера
type CoachRequest struct {
	Name      string            `json:"name" binding:"required"`
	Level     string            `json:"level,omitempty"`
	Bio       string            `json:"bio,omitempty"`
	AvatarURL string            `json:"avatarUrl,omitempty"`
	Socials   map[string]string `json:"socials,omitempty"`
	Active    *bool             `json:"active,omitempty"`
}

// SlotWindow задает интервал выборки слотов
type SlotWindow struct {
	From time.Time
	To   time.Time
}

// CreateSlotsRequest представляет запрос на массовое создание слотов
type CreateSlotsRequest struct {
	CoachID string              `json:"coachId" binding:"required"`
	Slots   []SlotIntervalInput `json:"slots" binding:"required,min=1,dive"`
}

// SlotIntervalInput представляет один интервал при создании слотов
type SlotIntervalInput struct {
	StartAt time.Time `json:"startAt" binding:"required"`
	EndAt   time.Time `json:"endAt" binding:"required"`
}
