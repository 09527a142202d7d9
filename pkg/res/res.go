package res

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody представляет тело ошибки в JSON-ответе.
type ErrorBody struct {
	Code    string `json:"code"`    // Стабильный код ошибки (для программной обработки)
	Message string `json:"message"` // Сообщение об ошибке (для пользователя)
}

// Meta представляет метаданные пагинации.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Envelope представляет единый формат JSON-ответа API.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// OK отправляет успешный ответ со статусом 200.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created отправляет успешный ответ со статусом 201.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated отправляет успешный ответ со списком и метаданными пагинации.
func Paginated(c *gin.Context, data any, page, limit, total int) {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Meta:    &Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages},
	})
}

// Err отправляет ответ ошибки с заданным статусом и кодом.
func Err(c *gin.Context, status int, code, message string) {
	c.JSON(status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

// NewMeta строит метаданные пагинации.
func NewMeta(page, limit, total int) *Meta {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}
