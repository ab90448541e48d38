package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterSystemRoutes exposes the hub clock, which schedules are evaluated against
func RegisterSystemRoutes(r *gin.Engine) {
	r.GET("/api/system/time", func(c *gin.Context) {
		now := time.Now()
		zone, _ := now.Zone()
		c.JSON(http.StatusOK, gin.H{
			"datetime": now.Format(time.RFC3339),
			"date":     now.Format("2006-01-02"),
			"time":     now.Format("15:04:05"),
			"timezone": zone,
			"weekday":  (int(now.Weekday()) + 6) % 7,
		})
	})
}
