package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/surajs41/RideEasy-Rental/internal/notify"
	"github.com/surajs41/RideEasy-Rental/internal/utils"
)

type MarkReadRequest struct {
	NotificationID string `json:"notification_id" binding:"required"`
}

func (h *Handler) GetNotifications(ctx *gin.Context) {
	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	audience := ctx.Param("audience")

	if !utils.CanAccessAudience(user, audience) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to read this audience"})
		return
	}

	notifications, err := h.Broker.Fetch(ctx.Request.Context(), audience)

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, notifications)
}

// CreateNotification emits an ad-hoc notification (offers, announcements).
// Booking notifications are emitted by the state machine instead.
func (h *Handler) CreateNotification(ctx *gin.Context) {
	var req notify.Request

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.Broker.Emit(ctx.Request.Context(), req)

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, n)
}

func (h *Handler) MarkNotificationRead(ctx *gin.Context) {
	h.markRead(ctx, ctx.Param("id"))
}

// MarkNotificationReadBody accepts the id in the body, as older clients send it.
func (h *Handler) MarkNotificationReadBody(ctx *gin.Context) {
	var req MarkReadRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.markRead(ctx, req.NotificationID)
}

func (h *Handler) markRead(ctx *gin.Context, id string) {
	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	n, err := h.Broker.Get(ctx.Request.Context(), id)

	if err != nil {
		respondError(ctx, err)
		return
	}

	if !utils.CanAccessAudience(user, n.Audience) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to modify this notification"})
		return
	}

	if err := h.Broker.MarkRead(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
