package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingType тип бронирования
type BookingType string

const (
	BookingTypeSingle  BookingType = "SINGLE"
	BookingTypePackage BookingType = "PACKAGE"
)

// BookingStatus статус бронирования
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCanceled  BookingStatus = "CANCELED"
	BookingStatusNoShow    BookingStatus = "NO_SHOW"
)

// ValidBookingStatus проверяет, что значение входит в набор статусов
func ValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted,
		BookingStatusCanceled, BookingStatusNoShow:
		return true
	}
	return false
}

// PaymentStatus статус оплаты бронирования
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Booking представляет собой модель бронирования слота тренера
type Booking struct {
	ID            uuid.UUID     `json:"id"`
	UserID        uuid.UUID     `json:"user_id"`
	CoachID       uuid.UUID     `json:"coach_id"`
	SlotID        uuid.UUID     `json:"slot_id"`
	PackageID     *uuid.UUID    `json:"package_id,omitempty"`
	Type          BookingType   `json:"type"`
	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Price         int64         `json:"price"`
	Currency      string        `json:"currency,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Canceled сообщает, отменено ли бронирование
func (b *Booking) Canceled() bool {
	return b.Status == BookingStatusCanceled
}

// CreateBookingRequest представляет запрос на создание бронирования
type CreateBookingRequest struct {
	CoachID   string `json:"coachId" binding:"required"`
	SlotID    string `json:"slotId" binding:"required"`
	Type      string `json:"type,omitempty"`
	PackageID string `json:"packageId,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// CreatePackageRequest представляет запрос на выдачу пакета занятий
type CreatePackageRequest struct {
	UserID    string    `json:"userId" binding:"required"`
	CoachID   string    `json:"coachId" binding:"required"`
	Total     int       `json:"total" binding:"required,min=1"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// BookingFilter задает фильтры списка бронирований для администратора
type BookingFilter struct {
	Status  *BookingStatus
	CoachID *uuid.UUID
	UserID  *uuid.UUID
}

// Package представляет предоплаченный пакет занятий с тренером
type Package struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CoachID   uuid.UUID `json:"coach_id"`
	Total     int       `json:"total"`
	Remaining int       `json:"remaining"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Usable проверяет, что пакетом можно оплатить новое бронирование
func (p *Package) Usable(now time.Time) bool {
	return p.Remaining > 0 && p.ExpiresAt.After(now)
}
