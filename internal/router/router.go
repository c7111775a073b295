package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/surajs41/RideEasy-Rental/internal/handlers"
	"github.com/surajs41/RideEasy-Rental/internal/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	handlers.RegisterValidators()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     h.Origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		ws := api.Group("/ws", middleware.AuthMiddleware())
		{
			ws.GET("/notifications", h.NotificationSocket)
			ws.GET("/bookings", h.BookingSocket)
		}

		notifications := api.Group("/notifications", middleware.AuthMiddleware())
		{
			notifications.GET("/:audience", h.GetNotifications)
			notifications.POST("", middleware.AdminOnly(), h.CreateNotification)
			notifications.POST("/:id/read", h.MarkNotificationRead)
			notifications.POST("/mark-read", h.MarkNotificationReadBody)
		}

		bookings := api.Group("/bookings", middleware.AuthMiddleware())
		{
			bookings.GET("", h.ListBookings)
			bookings.POST("", h.CreateBooking)
			bookings.GET("/:id", h.GetBooking)
			bookings.GET("/:id/history", h.GetBookingHistory)

			// Admin console
			bookings.POST("/:id/transition", middleware.AdminOnly(), h.TransitionBooking)
			bookings.DELETE("/:id", middleware.AdminOnly(), h.DeleteBooking)
		}
	}

	return r
}
