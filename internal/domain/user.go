package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role роль пользователя в системе
type Role string

const (
	RoleUser       Role = "USER"
	RoleSubscriber Role = "SUBSCRIBER"
	RoleCoach      Role = "COACH"
	RoleAdmin      Role = "ADMIN"
)

// IsStaff проверяет, что роль не управляется жизненным циклом подписки
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleCoach
}

// User представляет собой модель пользователя
type User struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceToken представляет push-токен устройства пользователя
type DeviceToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor представляет аутентифицированного инициатора запроса
type Actor struct {
	UserID uuid.UUID
	Role   Role
}
