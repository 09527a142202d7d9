package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atrkk2024-beep/inskate/internal/api/rest/middleware"
	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/service"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/atrkk2024-beep/inskate/pkg/res"
	"github.com/google/uuid"
)

// BookingHandler обработчик для бронирований
type BookingHandler struct {
	bookingSvc service.BookingService
	log        *logger.Logger
}

// NewBookingHandler создает новый обработчик бронирований
func NewBookingHandler(bookingSvc service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		bookingSvc: bookingSvc,
		log:        log,
	}
}

// CreateBooking создает новое бронирование
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req domain.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid booking request: %v", err)
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	booking, err := h.bookingSvc.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Created(c, booking)
}

// CancelBooking отменяет бронирование
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	booking, err := h.bookingSvc.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, booking)
}

// GetBooking возвращает бронирование по ID
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	booking, err := h.bookingSvc.GetByID(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, booking)
}

// ListMyBookings возвращает бронирования клиента, при необходимости по статусу
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	bookings, err := h.bookingSvc.ListMine(c.Request.Context(), actor, c.Query("status"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, bookings)
}

// ListMyPackages возвращает пакеты занятий клиента
func (h *BookingHandler) ListMyPackages(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	packages, err := h.bookingSvc.ListMyPackages(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, packages)
}

// ListBookings возвращает бронирования по фильтру (административный)
func (h *BookingHandler) ListBookings(c *gin.Context) {
	var filter domain.BookingFilter

	if raw := c.Query("status"); raw != "" {
		status := domain.BookingStatus(raw)
		if !domain.ValidBookingStatus(status) {
			res.Err(c, http.StatusBadRequest, "INVALID_STATUS", "invalid status value")
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("coachId"); raw != "" {
		coachID, err := uuid.Parse(raw)
		if err != nil {
			res.Err(c, http.StatusBadRequest, "INVALID_DATA", "invalid coachId")
			return
		}
		filter.CoachID = &coachID
	}
	if raw := c.Query("userId"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			res.Err(c, http.StatusBadRequest, "INVALID_DATA", "invalid userId")
			return
		}
		filter.UserID = &userID
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	bookings, total, err := h.bookingSvc.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Paginated(c, bookings, page, limit, total)
}

// UpdateBookingStatus меняет статус бронирования (административный)
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	booking, err := h.bookingSvc.UpdateStatus(c.Request.Context(), c.Param("id"), domain.BookingStatus(req.Status))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, booking)
}

// CreateSlots создает слоты тренера (административный)
func (h *BookingHandler) CreateSlots(c *gin.Context) {
	var req domain.CreateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	slots, err := h.bookingSvc.CreateSlots(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Created(c, slots)
}

// DeleteSlot удаляет слот (административный)
func (h *BookingHandler) DeleteSlot(c *gin.Context) {
	if err := h.bookingSvc.DeleteSlot(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, gin.H{"deleted": true})
}

// CreatePackage выдает клиенту пакет занятий (административный)
func (h *BookingHandler) CreatePackage(c *gin.Context) {
	var req domain.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", err.Error())
		return
	}

	pkg, err := h.bookingSvc.CreatePackage(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.Created(c, pkg)
}

// ListSlots возвращает слоты тренера
func (h *BookingHandler) ListSlots(c *gin.Context) {
	var window domain.SlotWindow
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			res.Err(c, http.StatusBadRequest, "INVALID_DATA", "invalid from timestamp")
			return
		}
		window.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			res.Err(c, http.StatusBadRequest, "INVALID_DATA", "invalid to timestamp")
			return
		}
		window.To = to
	}

	onlyAvailable := c.DefaultQuery("available", "true") == "true"

	slots, err := h.bookingSvc.ListSlots(c.Request.Context(), c.Param("id"), window, onlyAvailable)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res.OK(c, slots)
}
