package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports liveness and how many booking streams are attached.
func (h *Handler) HealthCheck(c *gin.Context) {
	streams := 0
	if h.Feed != nil {
		streams = h.Feed.Count()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"message":         "RideEasy is running",
		"booking_streams": streams,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}
