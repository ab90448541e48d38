package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"liteassistant/internal/db"
	"liteassistant/internal/events"
	"liteassistant/internal/history"
	"liteassistant/internal/models"
)

// Store is the datastore surface used by the handlers
type Store interface {
	ListAutomations(ctx context.Context) ([]models.Automation, error)
	GetAutomationByID(ctx context.Context, id int64) (*models.Automation, error)
	CreateAutomation(ctx context.Context, a models.Automation) (*models.Automation, error)
	UpdateAutomation(ctx context.Context, a models.Automation) (*models.Automation, error)
	SetAutomationEnabled(ctx context.Context, id int64, enabled bool) (*models.Automation, error)
	DeleteAutomation(ctx context.Context, id int64) error

	ListSchedules(ctx context.Context) ([]models.Schedule, error)
	GetScheduleByID(ctx context.Context, id int64) (*models.Schedule, error)
	CreateSchedule(ctx context.Context, s models.Schedule) (*models.Schedule, error)
	UpdateSchedule(ctx context.Context, s models.Schedule) (*models.Schedule, error)
	SetScheduleEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteSchedule(ctx context.Context, id int64) error

	ListExecutionLogs(ctx context.Context, source string, entityID int64, limit int) ([]models.ExecutionLog, error)

	ListDevices(ctx context.Context) ([]models.Device, error)
	GetDeviceByID(ctx context.Context, id int64) (*models.Device, error)
	UpdateDeviceDetails(ctx context.Context, id int64, name, deviceType string) (*models.Device, error)
	DeleteDevice(ctx context.Context, id int64) error

	ListNotificationConfigs(ctx context.Context) ([]models.NotificationConfig, error)
	SaveNotificationConfig(ctx context.Context, c models.NotificationConfig) (*models.NotificationConfig, error)
	DeleteNotificationConfig(ctx context.Context, id int64) error
}

// RuleEngine is the rule evaluator
type RuleEngine interface {
	Reload(ctx context.Context) error
	Execute(ctx context.Context, id int64, data map[string]interface{}) (*models.ExecutionLog, error)
}

// ScheduleEngine is the schedule engine
type ScheduleEngine interface {
	Reload(ctx context.Context) error
}

// DeviceController sends commands to devices
type DeviceController interface {
	Command(ctx context.Context, deviceID int64, command, payload string) (string, error)
	Discover() error
}

// TimerController manages manual auto-off timers
type TimerController interface {
	SetTimer(ctx context.Context, deviceID int64, switchName string, d time.Duration) (*models.Device, time.Time, error)
	CancelTimer(ctx context.Context, deviceID int64, switchName string) (*models.Device, error)
}

// Deliverer sends a notification right away, bypassing the queue
type Deliverer interface {
	Deliver(ctx context.Context, provider string, config map[string]interface{}, message string) error
}

// HistoryReader queries stored telemetry
type HistoryReader interface {
	Query(ctx context.Context, deviceTopic string, since time.Duration, limit int) ([]history.Sample, error)
}

// EventSource feeds the live event stream
type EventSource interface {
	Subscribe(ctx context.Context) (*events.Subscription, error)
}

// Dependencies are the collaborators shared by all route groups.
// History and Events may be nil.
type Dependencies struct {
	Store     Store
	Rules     RuleEngine
	Schedules ScheduleEngine
	Devices   DeviceController
	Timers    TimerController
	Notifier  Deliverer
	History   HistoryReader
	Events    EventSource
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// fail writes err as a JSON error; db.ErrNotFound becomes a 404 with notFound as message
func fail(c *gin.Context, err error, notFound string) {
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	log.Printf("WEB: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
