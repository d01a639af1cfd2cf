package routes

import (
	"marketgist_backend/controllers"
	"marketgist_backend/services"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, store *services.AlertStore, quotes *services.QuoteService) {
	// Initialize controllers
	alertController := controllers.NewAlertController(store)
	notificationController := controllers.NewNotificationController(store)
	stockController := controllers.NewStockController(quotes)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Alert routes
		alerts := api.Group("/alerts")
		{
			alerts.GET("", alertController.GetAlerts)
			alerts.POST("", alertController.CreateAlert)
			alerts.PUT("/:id", alertController.UpdateAlert)
			alerts.DELETE("/:id", alertController.RemoveAlert)
		}

		// Notification routes
		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationController.GetNotifications)
			notifications.PATCH("/:id/read", notificationController.MarkRead)
			notifications.POST("/read-all", notificationController.MarkAllRead)
		}

		// Stock routes
		stocks := api.Group("/stocks")
		{
			stocks.GET("/:symbol/quote", stockController.GetQuote)
		}
	}
}
