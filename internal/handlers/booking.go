package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/surajs41/RideEasy-Rental/internal/utils"
)

// CreateBookingRequest is the hand-off from checkout once payment is captured.
type CreateBookingRequest struct {
	ResourceID string    `json:"resource_id" binding:"required,max=64"`
	StartAt    time.Time `json:"start_at" binding:"required"`
	EndAt      time.Time `json:"end_at" binding:"required,gtfield=StartAt"`
	Amount     int64     `json:"amount" binding:"min=0"`
}

type TransitionRequest struct {
	ExpectedStatus models.BookingStatus `json:"expected_status" binding:"required,bookingstatus"`
	TargetStatus   models.BookingStatus `json:"target_status" binding:"required,bookingstatus"`
}

func (h *Handler) ListBookings(ctx *gin.Context) {
	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	scope := changefeed.UserBookings(user.ID)
	if user.IsAdmin() {
		scope = changefeed.UserBookings(ctx.Query("user_id"))
	}

	bookings, err := h.Machine.Store().List(ctx.Request.Context(), scope)

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, bookings)
}

func (h *Handler) CreateBooking(ctx *gin.Context) {
	var req CreateBookingRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	b, err := h.Machine.Create(ctx.Request.Context(), models.Booking{
		SubjectUserID: userID,
		ResourceID:    req.ResourceID,
		StartAt:       req.StartAt.UTC(),
		EndAt:         req.EndAt.UTC(),
		Amount:        req.Amount,
	}, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBooking(ctx *gin.Context) {
	b, ok := h.visibleBooking(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, b)
}

func (h *Handler) GetBookingHistory(ctx *gin.Context) {
	b, ok := h.visibleBooking(ctx)
	if !ok {
		return
	}

	events, err := h.Machine.Store().History(ctx.Request.Context(), b.ID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, events)
}

func (h *Handler) TransitionBooking(ctx *gin.Context) {
	var req TransitionRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	adminID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	b, err := h.Machine.Transition(ctx.Request.Context(), ctx.Param("id"), req.ExpectedStatus, req.TargetStatus, adminID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBooking(ctx *gin.Context) {
	adminID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if err := h.Machine.Delete(ctx.Request.Context(), ctx.Param("id"), adminID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// visibleBooking loads the :id booking and writes the error response itself
// when it is missing or belongs to someone else.
func (h *Handler) visibleBooking(ctx *gin.Context) (models.Booking, bool) {
	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return models.Booking{}, false
	}

	b, err := h.Machine.Store().Get(ctx.Request.Context(), ctx.Param("id"))

	if err != nil {
		respondError(ctx, err)
		return models.Booking{}, false
	}

	// other users' bookings look the same as missing ones
	if !utils.CanAccessBooking(user, b.SubjectUserID) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return models.Booking{}, false
	}

	return b, true
}
