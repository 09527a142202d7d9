package repository

import "errors"

// Общие ошибки слоя хранения
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate нарушение уникальности
	ErrDuplicate = errors.New("duplicate record")

	// ErrConflict условное обновление не прошло (запись изменилась)
	ErrConflict = errors.New("conditional update failed")

	// ErrInvalidData некорректные данные для хранения
	ErrInvalidData = errors.New("invalid data")

	// ErrInvalidOperation операция недопустима в текущем состоянии записи
	ErrInvalidOperation = errors.New("invalid operation")
)
