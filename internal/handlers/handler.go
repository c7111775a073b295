package handlers

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/surajs41/RideEasy-Rental/internal/booking"
	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/surajs41/RideEasy-Rental/internal/notify"
)

type Handler struct {
	Machine *booking.Machine
	Broker  *notify.Broker
	Feed    *changefeed.Feed
	Origins []string
}

var bookingStatusValidator validator.Func = func(fl validator.FieldLevel) bool {
	return models.BookingStatus(fl.Field().String()).Valid()
}

var notificationKindValidator validator.Func = func(fl validator.FieldLevel) bool {
	return models.NotificationKind(fl.Field().String()).Valid()
}

var severityValidator validator.Func = func(fl validator.FieldLevel) bool {
	return models.Severity(fl.Field().String()).Valid()
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags used by request bodies.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("bookingstatus", bookingStatusValidator)
			_ = v.RegisterValidation("notificationkind", notificationKindValidator)
			_ = v.RegisterValidation("severity", severityValidator)
		}
	})
}

func respondError(ctx *gin.Context, err error) {
	var conflict *booking.ConflictError
	var invalid *booking.InvalidTransitionError

	switch {
	case errors.As(err, &conflict):
		ctx.JSON(http.StatusConflict, gin.H{"error": booking.ConflictMessage, "current_status": conflict.Actual})
	case errors.As(err, &invalid):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalid.Error()})
	case errors.Is(err, booking.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.Is(err, notify.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
	case errors.Is(err, booking.ErrInvalidBooking), errors.Is(err, notify.ErrInvalidRequest):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("Internal error on %s %s: %v", ctx.Request.Method, ctx.FullPath(), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
