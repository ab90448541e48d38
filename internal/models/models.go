package models

import (
	"encoding/json"
	"time"
)

// Trigger types stored in automations.trigger_type
const (
	TriggerTime        = "time"
	TriggerMQTT        = "mqtt"
	TriggerDeviceState = "device_state"
)

// Action types stored in automations.action_type
const (
	ActionMQTTPublish   = "mqtt_publish"
	ActionDeviceCommand = "device_command"
	ActionDelay         = "delay"
)

// Schedule types and switch actions
const (
	ScheduleOnce     = "once"
	ScheduleDaily    = "daily"
	ScheduleWeekly   = "weekly"
	ScheduleInterval = "interval"

	SwitchOn     = "ON"
	SwitchOff    = "OFF"
	SwitchToggle = "TOGGLE"
)

// Execution log sources
const (
	SourceAutomation = "automation"
	SourceSchedule   = "schedule"
)

// Notification event categories
const (
	CategoryAutomation = "automation"
	CategorySchedule   = "schedule"
	CategoryTimer      = "timer"
)

// Device represents a device model, keyed naturally by its MQTT topic
type Device struct {
	ID           int64             `json:"id"`
	MQTTTopic    string            `json:"mqtt_topic"`
	Name         string            `json:"name"`
	DeviceType   string            `json:"device_type"`
	IPAddress    string            `json:"ip_address"`
	IsOnline     bool              `json:"is_online"`
	Attributes   map[string]any    `json:"attributes"`
	ActiveTimers map[string]string `json:"active_timers"` // switch -> RFC 3339 expiry, "" when cleared
}

// DisplayName returns the friendly name, falling back to the topic
func (d *Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.MQTTTopic
}

// DeviceUpdate is a partial upsert keyed by MQTTTopic. Nil fields are left untouched.
type DeviceUpdate struct {
	MQTTTopic    string
	Name         *string
	IPAddress    *string
	IsOnline     *bool
	Attributes   map[string]any
	ActiveTimers map[string]string
}

// Automation represents a rule model
type Automation struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Enabled      bool            `json:"enabled"`
	TriggerType  string          `json:"trigger_type"`
	TriggerValue json.RawMessage `json:"trigger_value"`
	ActionType   string          `json:"action_type"`
	ActionValue  json.RawMessage `json:"action_value"`
}

// Schedule represents a schedule model
type Schedule struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	Enabled            bool       `json:"enabled"`
	DeviceID           int64      `json:"device_id"`
	SwitchName         string     `json:"switch_name"`
	ScheduleType       string     `json:"schedule_type"`
	Time               string     `json:"time"`         // HH:MM
	DaysOfWeek         []int      `json:"days_of_week"` // 0 = Monday
	Date               string     `json:"date"`         // YYYY-MM-DD
	Duration           int        `json:"duration"`     // auto-revert after firing, 0 = none
	DurationUnit       string     `json:"duration_unit"`
	IntervalValue      int        `json:"interval_value"`
	IntervalUnit       string     `json:"interval_unit"`
	TotalDurationValue int        `json:"total_duration_value"`
	TotalDurationUnit  string     `json:"total_duration_unit"`
	StartTime          *time.Time `json:"start_time"` // interval campaign anchor
	Action             string     `json:"action"`
}

// ExecutionLog is written once per automation or schedule execution attempt
type ExecutionLog struct {
	ID           int64          `json:"id"`
	Source       string         `json:"source"`
	EntityID     int64          `json:"entity_id"`
	Timestamp    time.Time      `json:"timestamp"`
	TriggerData  map[string]any `json:"trigger_data"`
	ActionResult map[string]any `json:"action_result"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// NotificationConfig holds one outbound notification provider
type NotificationConfig struct {
	ID       int64          `json:"id"`
	Provider string         `json:"provider"` // telegram, ntfy
	Enabled  bool           `json:"enabled"`
	Config   map[string]any `json:"config"`
	Events   []string       `json:"events"`
}

// Event is pushed to live observers (websocket clients)
type Event struct {
	Type           string  `json:"type"`
	AutomationID   int64   `json:"automation_id,omitempty"`
	AutomationName string  `json:"automation_name,omitempty"`
	ScheduleID     int64   `json:"schedule_id,omitempty"`
	ScheduleName   string  `json:"schedule_name,omitempty"`
	Switch         string  `json:"switch,omitempty"`
	Success        *bool   `json:"success,omitempty"`
	Topic          string  `json:"topic,omitempty"`
	Payload        string  `json:"payload,omitempty"`
	Device         *Device `json:"device,omitempty"`
}

// Live event types
const (
	EventMQTTMessage        = "mqtt_message"
	EventDeviceUpdate       = "device_update"
	EventAutomationExecuted = "automation_executed"
	EventScheduleExecuted   = "schedule_executed"
	EventTimerExpired       = "timer_expired"
)
