package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"liteassistant/internal/models"
)

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// AutomationRequest creates or replaces a rule. Trigger and action specs are
// only checked to be JSON objects; their shape is validated when evaluated.
type AutomationRequest struct {
	Name         string          `json:"name" binding:"required"`
	Enabled      *bool           `json:"enabled"`
	TriggerType  string          `json:"trigger_type" binding:"required,oneof=time mqtt device_state"`
	TriggerValue json.RawMessage `json:"trigger_value" binding:"required"`
	ActionType   string          `json:"action_type" binding:"required,oneof=mqtt_publish device_command delay"`
	ActionValue  json.RawMessage `json:"action_value" binding:"required"`
}

func (r AutomationRequest) ToAutomation() (models.Automation, error) {
	if !isObject(r.TriggerValue) {
		return models.Automation{}, errors.New("trigger_value must be a JSON object")
	}
	if !isObject(r.ActionValue) {
		return models.Automation{}, errors.New("action_value must be a JSON object")
	}
	return models.Automation{
		Name:         r.Name,
		Enabled:      r.Enabled == nil || *r.Enabled,
		TriggerType:  r.TriggerType,
		TriggerValue: r.TriggerValue,
		ActionType:   r.ActionType,
		ActionValue:  r.ActionValue,
	}, nil
}

func isObject(raw json.RawMessage) bool {
	var m map[string]interface{}
	return json.Unmarshal(raw, &m) == nil && m != nil
}

// ScheduleRequest creates or replaces a schedule
type ScheduleRequest struct {
	Name               string `json:"name" binding:"required"`
	Enabled            *bool  `json:"enabled"`
	DeviceID           int64  `json:"device_id" binding:"required"`
	SwitchName         string `json:"switch_name"`
	ScheduleType       string `json:"schedule_type" binding:"required,oneof=once daily weekly interval"`
	Time               string `json:"time"`
	DaysOfWeek         []int  `json:"days_of_week" binding:"dive,min=0,max=6"`
	Date               string `json:"date"`
	Duration           int    `json:"duration" binding:"min=0"`
	DurationUnit       string `json:"duration_unit" binding:"omitempty,oneof=seconds minutes hours"`
	IntervalValue      int    `json:"interval_value" binding:"min=0"`
	IntervalUnit       string `json:"interval_unit" binding:"omitempty,oneof=seconds minutes hours"`
	TotalDurationValue int    `json:"total_duration_value" binding:"min=0"`
	TotalDurationUnit  string `json:"total_duration_unit" binding:"omitempty,oneof=seconds minutes hours"`
	Action             string `json:"action" binding:"omitempty,oneof=ON OFF TOGGLE"`
}

// ToSchedule applies defaults and checks the fields each schedule kind needs
func (r ScheduleRequest) ToSchedule() (models.Schedule, error) {
	s := models.Schedule{
		Name:               r.Name,
		Enabled:            r.Enabled == nil || *r.Enabled,
		DeviceID:           r.DeviceID,
		SwitchName:         orDefault(r.SwitchName, "POWER"),
		ScheduleType:       r.ScheduleType,
		Time:               r.Time,
		DaysOfWeek:         r.DaysOfWeek,
		Date:               r.Date,
		Duration:           r.Duration,
		DurationUnit:       orDefault(r.DurationUnit, "minutes"),
		IntervalValue:      r.IntervalValue,
		IntervalUnit:       orDefault(r.IntervalUnit, "minutes"),
		TotalDurationValue: r.TotalDurationValue,
		TotalDurationUnit:  orDefault(r.TotalDurationUnit, "hours"),
		Action:             orDefault(r.Action, models.SwitchOn),
	}

	switch s.ScheduleType {
	case models.ScheduleOnce:
		if _, err := time.Parse("2006-01-02", s.Date); err != nil {
			return s, fmt.Errorf("date must be YYYY-MM-DD: %q", s.Date)
		}
		return s, checkClock(s.Time)
	case models.ScheduleDaily:
		return s, checkClock(s.Time)
	case models.ScheduleWeekly:
		if len(s.DaysOfWeek) == 0 {
			return s, errors.New("days_of_week is required for weekly schedules")
		}
		return s, checkClock(s.Time)
	case models.ScheduleInterval:
		if s.IntervalValue <= 0 {
			return s, errors.New("interval_value must be positive")
		}
	}
	return s, nil
}

func checkClock(hhmm string) error {
	if _, err := time.Parse("15:04", hhmm); err != nil || len(hhmm) != 5 {
		return fmt.Errorf("time must be HH:MM: %q", hhmm)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type DeviceUpdateRequest struct {
	Name       string `json:"name" binding:"required"`
	DeviceType string `json:"device_type"`
}

type CommandRequest struct {
	Command string `json:"command" binding:"required"`
	Payload string `json:"payload"`
}

// TimerRequest sets an auto-off timer; the two parts are added up
type TimerRequest struct {
	Switch          string `json:"switch" binding:"required"`
	DurationSeconds int    `json:"duration_seconds" binding:"min=0"`
	DurationMinutes int    `json:"duration_minutes" binding:"min=0"`
}

func (r TimerRequest) Duration() time.Duration {
	return time.Duration(r.DurationSeconds)*time.Second + time.Duration(r.DurationMinutes)*time.Minute
}

type NotificationConfigRequest struct {
	Provider string                 `json:"provider" binding:"required,oneof=telegram ntfy"`
	Enabled  bool                   `json:"enabled"`
	Config   map[string]interface{} `json:"config" binding:"required"`
	Events   []string               `json:"events" binding:"dive,oneof=automation schedule timer"`
}

type TestNotificationRequest struct {
	Provider string                 `json:"provider" binding:"required,oneof=telegram ntfy"`
	Config   map[string]interface{} `json:"config" binding:"required"`
}
