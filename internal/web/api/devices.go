package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"liteassistant/internal/history"
	"liteassistant/internal/timers"
	"liteassistant/internal/web/middleware"
	webModels "liteassistant/internal/web/models"
)

func RegisterDeviceRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, deps Dependencies) {
	devices := r.Group("/api/devices")
	devices.Use(middleware.RequireAuth())
	{
		devices.GET("", func(c *gin.Context) {
			list, err := deps.Store.ListDevices(c)
			if err != nil {
				fail(c, err, "")
				return
			}
			c.JSON(http.StatusOK, list)
		})

		devices.POST("/scan", func(c *gin.Context) {
			if err := deps.Devices.Discover(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "scan_initiated"})
		})

		devices.GET("/:id", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			device, err := deps.Store.GetDeviceByID(c, id)
			if err != nil {
				fail(c, err, "Device not found")
				return
			}
			c.JSON(http.StatusOK, device)
		})

		devices.PUT("/:id", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			var req webModels.DeviceUpdateRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
			device, err := deps.Store.UpdateDeviceDetails(c, id, req.Name, req.DeviceType)
			if err != nil {
				fail(c, err, "Device not found")
				return
			}
			c.JSON(http.StatusOK, device)
		})

		devices.DELETE("/:id", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			if err := deps.Store.DeleteDevice(c, id); err != nil {
				fail(c, err, "Device not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})

		devices.POST("/:id/command", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			var req webModels.CommandRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
			topic, err := deps.Devices.Command(c, id, req.Command, req.Payload)
			if err != nil {
				fail(c, err, "Device not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "sent", "topic": topic, "payload": req.Payload})
		})

		devices.POST("/:id/timer", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			var req webModels.TimerRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
			device, endTime, err := deps.Timers.SetTimer(c, id, req.Switch, req.Duration())
			if errors.Is(err, timers.ErrInvalidDuration) {
				badRequest(c, err)
				return
			}
			if err != nil {
				fail(c, err, "Device not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"status":   "timer_set",
				"switch":   req.Switch,
				"end_time": endTime.Format(time.RFC3339),
				"device":   device,
			})
		})

		devices.DELETE("/:id/timer/:switch", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			device, err := deps.Timers.CancelTimer(c, id, c.Param("switch"))
			if err != nil {
				fail(c, err, "Device not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "timer_cancelled", "switch": c.Param("switch"), "device": device})
		})

		devices.GET("/:id/history", func(c *gin.Context) {
			id, ok := parseID(c)
			if !ok {
				return
			}
			if deps.History == nil {
				c.JSON(http.StatusNotImplemented, gin.H{"error": history.ErrDisabled.Error()})
				return
			}
			device, err := deps.Store.GetDeviceByID(c, id)
			if err != nil {
				fail(c, err, "Device not found")
				return
			}
			since := time.Duration(queryInt(c, "hours", 24)) * time.Hour
			samples, err := deps.History.Query(c, device.MQTTTopic, since, queryInt(c, "limit", 100))
			if errors.Is(err, history.ErrDisabled) {
				c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
				return
			}
			if err != nil {
				fail(c, err, "")
				return
			}
			c.JSON(http.StatusOK, samples)
		})
	}
}
