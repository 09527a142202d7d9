package domain

import "errors"

// Ошибки бизнес-правил. Сервисы возвращают их напрямую, а HTTP-слой
// сопоставляет со статусами и стабильными кодами ответов.
var (
	// ErrSlotUnavailable слот уже занят или помечен недоступным.
	ErrSlotUnavailable = errors.New("slot is not available")

	// ErrSlotInPast слот начинается в прошлом.
	ErrSlotInPast = errors.New("slot is in the past")

	// ErrInvalidPackage пакет не найден, принадлежит другому клиенту
	// или выдан на другого тренера.
	ErrInvalidPackage = errors.New("invalid package")

	// ErrPackageExhausted в пакете не осталось занятий либо он истёк.
	ErrPackageExhausted = errors.New("package is exhausted or expired")

	// ErrAlreadyBooked на слоте уже висит незакрытое бронирование.
	ErrAlreadyBooked = errors.New("slot is already booked")

	// ErrAlreadySubscribed у пользователя уже есть действующая подписка.
	ErrAlreadySubscribed = errors.New("user already has an active subscription")

	// ErrNoSubscription действующая подписка отсутствует.
	ErrNoSubscription = errors.New("no active subscription")

	// ErrInvalidStatus недопустимое значение статуса.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidSegment недопустимый сегмент рассылки.
	ErrInvalidSegment = errors.New("invalid push segment")

	// ErrForbidden операция запрещена для этой роли или чужого ресурса.
	ErrForbidden = errors.New("operation is not allowed")

	// ErrInvalidInterval некорректный интервал слота.
	ErrInvalidInterval = errors.New("invalid slot interval")
)
