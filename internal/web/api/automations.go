package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"liteassistant/internal/models"
	"liteassistant/internal/web/middleware"
	webModels "liteassistant/internal/web/models"
)

func RegisterAutomationRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, deps Dependencies) {
	automations := r.Group("/api/automations")
	automations.Use(middleware.RequireAuth())

	// reload refreshes the evaluator after a mutation. The mutation itself
	// already succeeded, so a failed reload is only logged.
	reload := func(c *gin.Context) {
		if err := deps.Rules.Reload(c); err != nil {
			log.Printf("WEB: Failed to reload automations: %v", err)
		}
	}

	{
		automations.GET("", func(c *gin.Context) {
			list, err := deps.Store.ListAutomations(c)
			if err != nil {
				fail(c, err, "")
				return
			}
			c.JSON(http.StatusOK, list)
		})

		automations.POST("", func(c *gin.Context) {
			var req webModels.AutomationRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
			a, err := req.ToAutomation()
			if err != nil {
				badRequest(c, err)
				return
			}
			created, err := deps.Store.CreateAutomation(c, a)
			if err != nil {
				fail(c, err, "")
				return
			}
			reload(c)
			c.JSON(http.StatusCreated, created)
		})

		automations.GET("/:id", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			a, err := deps.Store.GetAutomationByID(c, id)
			if err != nil {
				fail(c, err, "Automation not found")
				return
			}
			c.JSON(http.StatusOK, a)
		})

		automations.PUT("/:id", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			var req webModels.AutomationRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
			a, err := req.ToAutomation()
			if err != nil {
				badRequest(c, err)
				return
			}
			a.ID = id
			updated, err := deps.Store.UpdateAutomation(c, a)
			if err != nil {
				fail(c, err, "Automation not found")
				return
			}
			reload(c)
			c.JSON(http.StatusOK, updated)
		})

		automations.DELETE("/:id", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			if err := deps.Store.DeleteAutomation(c, id); err != nil {
				fail(c, err, "Automation not found")
				return
			}
			reload(c)
			c.JSON(http.StatusOK, gin.H{"status": "success"})
		})

		automations.POST("/:id/toggle", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			current, err := deps.Store.GetAutomationByID(c, id)
			if err != nil {
				fail(c, err, "Automation not found")
				return
			}
			updated, err := deps.Store.SetAutomationEnabled(c, id, !current.Enabled)
			if err != nil {
				fail(c, err, "Automation not found")
				return
			}
			reload(c)
			c.JSON(http.StatusOK, updated)
		})

		automations.GET("/:id/logs", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			logs, err := deps.Store.ListExecutionLogs(c, models.SourceAutomation, id, queryInt(c, "limit", 50))
			if err != nil {
				fail(c, err, "")
				return
			}
			c.JSON(http.StatusOK, logs)
		})

		automations.POST("/:id/test", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			entry, err := deps.Rules.Execute(c, id, map[string]interface{}{"trigger": "manual_test"})
			if err != nil {
				fail(c, err, "Automation not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "triggered", "log": entry})
		})
	}
}
