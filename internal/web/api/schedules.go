package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"liteassistant/internal/models"
	"liteassistant/internal/web/middleware"
	webModels "liteassistant/internal/web/models"
)

func RegisterScheduleRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, deps Dependencies) {
	schedules := r.Group("/api/schedules")
	schedules.Use(middleware.RequireAuth())

	reload := func(c *gin.Context) {
		if err := deps.Schedules.Reload(c); err != nil {
			log.Printf("WEB: Failed to reload schedules: %v", err)
		}
	}

	bind := func(c *gin.Context) (models.Schedule, bool) {
		var req webModels.ScheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return models.Schedule{}, false
		}
		s, err := req.ToSchedule()
		if err != nil {
			badRequest(c, err)
			return models.Schedule{}, false
		}
		if _, err := deps.Store.GetDeviceByID(c, s.DeviceID); err != nil {
			fail(c, err, "Device not found")
			return models.Schedule{}, false
		}
		return s, true
	}

	{
		schedules.GET("", func(c *gin.Context) {
			list, err := deps.Store.ListSchedules(c)
			if err != nil {
				fail(c, err, "")
				return
			}
			c.JSON(http.StatusOK, list)
		})

		schedules.POST("", func(c *gin.Context) {
			s, ok := bind(c)
			if !ok {
				return
			}
			created, err := deps.Store.CreateSchedule(c, s)
			if err != nil {
				fail(c, err, "")
				return
			}
			reload(c)
			c.JSON(http.StatusCreated, created)
		})

		schedules.GET("/:id", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			s, err := deps.Store.GetScheduleByID(c, id)
			if err != nil {
				fail(c, err, "Schedule not found")
				return
			}
			c.JSON(http.StatusOK, s)
		})

		schedules.PUT("/:id", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			s, ok := bind(c)
			if !ok {
				return
			}
			s.ID = id
			updated, err := deps.Store.UpdateSchedule(c, s)
			if err != nil {
				fail(c, err, "Schedule not found")
				return
			}
			reload(c)
			c.JSON(http.StatusOK, updated)
		})

		schedules.DELETE("/:id", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			if err := deps.Store.DeleteSchedule(c, id); err != nil {
				fail(c, err, "Schedule not found")
				return
			}
			reload(c)
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})

		schedules.POST("/:id/toggle", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			current, err := deps.Store.GetScheduleByID(c, id)
			if err != nil {
				fail(c, err, "Schedule not found")
				return
			}
			if err := deps.Store.SetScheduleEnabled(c, id, !current.Enabled); err != nil {
				fail(c, err, "Schedule not found")
				return
			}
			reload(c)

			updated, err := deps.Store.GetScheduleByID(c, id)
			if err != nil {
				fail(c, err, "Schedule not found")
				return
			}
			c.JSON(http.StatusOK, updated)
		})

		schedules.GET("/:id/logs", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			logs, err := deps.Store.ListExecutionLogs(c, models.SourceSchedule, id, queryInt(c, "limit", 50))
			if err != nil {
				fail(c, err, "")
				return
			}
			c.JSON(http.StatusOK, logs)
		})
	}
}
