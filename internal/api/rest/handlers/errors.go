package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/internal/repository"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/atrkk2024-beep/inskate/pkg/res"
)

// respondError переводит ошибки сервисов в HTTP-статусы и стабильные коды.
// Клиенты матчатся по коду, текст только для читаемости.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrSlotUnavailable):
		res.Err(c, http.StatusConflict, "SLOT_NOT_AVAILABLE", "slot is not available")
	case errors.Is(err, domain.ErrAlreadyBooked):
		res.Err(c, http.StatusConflict, "ALREADY_BOOKED", "slot is already booked")
	case errors.Is(err, domain.ErrSlotInPast):
		res.Err(c, http.StatusBadRequest, "SLOT_IN_PAST", "slot is in the past")
	case errors.Is(err, domain.ErrInvalidPackage):
		res.Err(c, http.StatusBadRequest, "INVALID_PACKAGE", "invalid package")
	case errors.Is(err, domain.ErrPackageExhausted):
		res.Err(c, http.StatusConflict, "PACKAGE_EXHAUSTED", "package is exhausted or expired")
	case errors.Is(err, domain.ErrAlreadySubscribed):
		res.Err(c, http.StatusConflict, "ALREADY_SUBSCRIBED", "active subscription already exists")
	case errors.Is(err, domain.ErrNoSubscription):
		res.Err(c, http.StatusNotFound, "NO_SUBSCRIPTION", "no active subscription")
	case errors.Is(err, domain.ErrInvalidStatus):
		res.Err(c, http.StatusBadRequest, "INVALID_STATUS", "invalid status value")
	case errors.Is(err, domain.ErrInvalidSegment):
		res.Err(c, http.StatusBadRequest, "INVALID_SEGMENT", "invalid push segment")
	case errors.Is(err, domain.ErrInvalidInterval):
		res.Err(c, http.StatusBadRequest, "INVALID_INTERVAL", "invalid slot interval")
	case errors.Is(err, domain.ErrForbidden):
		res.Err(c, http.StatusForbidden, "FORBIDDEN", "operation is not allowed")
	case errors.Is(err, repository.ErrNotFound):
		res.Err(c, http.StatusNotFound, "NOT_FOUND", "record not found")
	case errors.Is(err, repository.ErrInvalidData):
		res.Err(c, http.StatusBadRequest, "INVALID_DATA", "invalid request data")
	case errors.Is(err, repository.ErrDuplicate):
		res.Err(c, http.StatusConflict, "DUPLICATE", "record already exists")
	case errors.Is(err, repository.ErrConflict):
		res.Err(c, http.StatusConflict, "CONFLICT", "record was modified concurrently")
	case errors.Is(err, repository.ErrInvalidOperation):
		res.Err(c, http.StatusConflict, "INVALID_OPERATION", "operation is not valid in current state")
	default:
		log.Error("Unhandled service error: %v", err)
		res.Err(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
