package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleDefaults(t *testing.T) {
	s, err := ScheduleRequest{Name: "pump", DeviceID: 1, ScheduleType: "daily", Time: "06:30"}.ToSchedule()
	require.NoError(t, err)

	assert.True(t, s.Enabled)
	assert.Equal(t, "POWER", s.SwitchName)
	assert.Equal(t, "ON", s.Action)
	assert.Equal(t, "minutes", s.DurationUnit)
	assert.Equal(t, "hours", s.TotalDurationUnit)
}

func TestScheduleKindRequirements(t *testing.T) {
	disabled := false
	tests := []struct {
		name string
		req  ScheduleRequest
		ok   bool
	}{
		{"once ok", ScheduleRequest{ScheduleType: "once", Date: "2025-06-02", Time: "10:00"}, true},
		{"once without date", ScheduleRequest{ScheduleType: "once", Time: "10:00"}, false},
		{"daily bad clock", ScheduleRequest{ScheduleType: "daily", Time: "6:30"}, false},
		{"weekly without days", ScheduleRequest{ScheduleType: "weekly", Time: "06:30"}, false},
		{"weekly ok", ScheduleRequest{ScheduleType: "weekly", Time: "06:30", DaysOfWeek: []int{0, 4}}, true},
		{"interval without value", ScheduleRequest{ScheduleType: "interval"}, false},
		{"interval ok", ScheduleRequest{ScheduleType: "interval", IntervalValue: 30, Enabled: &disabled}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.req.ToSchedule()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAutomationRequestRequiresObjects(t *testing.T) {
	req := AutomationRequest{
		Name:         "fan",
		TriggerType:  "mqtt",
		TriggerValue: json.RawMessage(`{"topic":"tele/fan/STATE"}`),
		ActionType:   "delay",
		ActionValue:  json.RawMessage(`[1]`),
	}
	_, err := req.ToAutomation()
	assert.Error(t, err)

	req.ActionValue = json.RawMessage(`{"seconds":1}`)
	a, err := req.ToAutomation()
	require.NoError(t, err)
	assert.True(t, a.Enabled)
}

func TestTimerDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, TimerRequest{DurationSeconds: 30, DurationMinutes: 1}.Duration())
}
