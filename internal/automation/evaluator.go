package automation

import (
	"context"
	"log"
	"reflect"
	"time"

	"liteassistant/internal/models"
	"liteassistant/internal/utils"
)

// OnTick evaluates time triggers. It is driven once per minute.
func (e *Engine) OnTick(ctx context.Context, now time.Time) {
	for _, a := range e.Snapshot() {
		if !a.Enabled || a.TriggerType != models.TriggerTime {
			continue
		}
		guard(a, models.TriggerTime, func() error {
			var trig timeTrigger
			if err := decodeSpec(a.TriggerValue, &trig); err != nil {
				return err
			}
			if trig.matches(now) {
				e.dispatch(a, map[string]interface{}{
					"trigger": "time",
					"time":    now.Format(time.RFC3339),
				})
			}
			return nil
		})
	}
}

// HandleMessage evaluates MQTT triggers against an inbound message
func (e *Engine) HandleMessage(ctx context.Context, topic, payload string) {
	for _, a := range e.Snapshot() {
		if !a.Enabled || a.TriggerType != models.TriggerMQTT {
			continue
		}
		guard(a, models.TriggerMQTT, func() error {
			var trig mqttTrigger
			if err := decodeSpec(a.TriggerValue, &trig); err != nil {
				return err
			}
			if trig.matches(topic, payload) {
				e.dispatch(a, map[string]interface{}{
					"trigger": "mqtt",
					"topic":   topic,
					"payload": payload,
				})
			}
			return nil
		})
	}
}

// HandleAttributeChange evaluates device-state triggers for one device.
// A matching rule with for_duration arms a delay, a non-matching one cancels it.
func (e *Engine) HandleAttributeChange(ctx context.Context, deviceID int64, oldState, newState map[string]interface{}) {
	for _, a := range e.Snapshot() {
		if !a.Enabled || a.TriggerType != models.TriggerDeviceState {
			continue
		}
		guard(a, models.TriggerDeviceState, func() error {
			var trig deviceStateTrigger
			if err := decodeSpec(a.TriggerValue, &trig); err != nil {
				return err
			}
			if trig.DeviceID != deviceID {
				return nil
			}

			oldValue := oldState[trig.Attribute]
			newValue := newState[trig.Attribute]
			isMatch := utils.Compare(newValue, trig.operator(), trig.Value)
			utils.Debugf("AUTOMATION: Checking automation %d: %s (old=%v, new=%v) %s %v -> %t",
				a.ID, trig.Attribute, oldValue, newValue, trig.operator(), trig.Value, isMatch)

			if !isMatch {
				if e.delays.Cancel(a.ID) {
					log.Printf("AUTOMATION: Cancelled delayed trigger for automation %d (condition no longer met)", a.ID)
				}
				return nil
			}

			if trig.ForDuration > 0 {
				e.delays.Start(a.ID, trig.holdFor(), pendingTrigger{
					automation: a,
					data:       map[string]interface{}{
						"trigger":   "device_state_duration",
						"device_id": deviceID,
						"attribute": trig.Attribute,
						"value":     newValue,
						"duration":  trig.ForDuration,
					},
				}, e.fireDelayed)
				return nil
			}

			if !reflect.DeepEqual(oldValue, newValue) {
				e.dispatch(a, map[string]interface{}{
					"trigger":   "device_state",
					"device_id": deviceID,
					"attribute": trig.Attribute,
					"old_value": oldValue,
					"new_value": newValue,
				})
			}
			return nil
		})
	}
}
