package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"liteassistant/internal/models"
	"liteassistant/internal/web/middleware"
	webModels "liteassistant/internal/web/models"
)

const testNotificationMessage = "This is a test notification from LiteAssistant."

func RegisterNotificationRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, deps Dependencies) {
	notifications := r.Group("/api/notifications")
	notifications.Use(middleware.RequireAuth())
	{
		notifications.GET("", func(c *gin.Context) {
			configs, err := deps.Store.ListNotificationConfigs(c)
			if err != nil {
				fail(c, err, "")
				return
			}
			c.JSON(http.StatusOK, configs)
		})

		// one configuration per provider; saving an existing provider replaces it
		notifications.POST("", func(c *gin.Context) {
			var req webModels.NotificationConfigRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
			events := req.Events
			if events == nil {
				events = []string{}
			}
			saved, err := deps.Store.SaveNotificationConfig(c, models.NotificationConfig{
				Provider: req.Provider,
				Enabled:  req.Enabled,
				Config:   req.Config,
				Events:   events,
			})
			if err != nil {
				fail(c, err, "")
				return
			}
			c.JSON(http.StatusOK, saved)
		})

		notifications.DELETE("/:id", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			if err := deps.Store.DeleteNotificationConfig(c, id); err != nil {
				fail(c, err, "Configuration not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Configuration deleted"})
		})

		notifications.POST("/test", func(c *gin.Context) {
			var req webModels.TestNotificationRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
			if err := deps.Notifier.Deliver(c, req.Provider, req.Config, testNotificationMessage); err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Test notification sent successfully"})
		})
	}
}
