package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"liteassistant/internal/models"
	"liteassistant/internal/utils"
)

// publishAction, e.g. {"topic": "cmnd/pump/POWER", "payload": "ON"}
type publishAction struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// commandAction, e.g. {"device_id": 2, "command": "POWER", "payload": "ON"}
type commandAction struct {
	DeviceID int64       `json:"device_id"`
	Command  string      `json:"command"`
	Payload  interface{} `json:"payload"`
}

// delayAction, e.g. {"seconds": 5}
type delayAction struct {
	Seconds float64 `json:"seconds"`
}

// Execute loads an automation by id and runs its action once, regardless of
// its trigger or enabled flag. Used by the manual test endpoint.
func (e *Engine) Execute(ctx context.Context, id int64, data map[string]interface{}) (*models.ExecutionLog, error) {
	a, err := e.store.GetAutomationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load automation %d: %w", id, err)
	}
	if data == nil {
		data = map[string]interface{}{"trigger": "manual"}
	}
	return e.execute(ctx, *a, data), nil
}

// execute runs the action and records exactly one execution log entry
func (e *Engine) execute(ctx context.Context, a models.Automation, data map[string]interface{}) *models.ExecutionLog {
	log.Printf("AUTOMATION: Executing automation: %s (ID: %d)", a.Name, a.ID)

	result, err := e.runAction(ctx, a)
	if result == nil {
		result = map[string]interface{}{}
	}

	entry := &models.ExecutionLog{
		Source:       models.SourceAutomation,
		EntityID:     a.ID,
		Timestamp:    time.Now().UTC(),
		TriggerData:  data,
		ActionResult: result,
		Success:      err == nil,
	}

	if err != nil {
		entry.ErrorMessage = err.Error()
		log.Printf("AUTOMATION: Error executing automation %d: %v", a.ID, err)
	} else {
		e.announce(ctx, a, result)
	}

	// The log is written even when ctx was cancelled mid-action.
	if err := e.store.InsertExecutionLog(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("AUTOMATION: Failed to write execution log for automation %d: %v", a.ID, err)
	}
	return entry
}

func (e *Engine) announce(ctx context.Context, a models.Automation, result map[string]interface{}) {
	if e.events != nil {
		success := true
		e.events.Broadcast(ctx, models.Event{
			Type:           models.EventAutomationExecuted,
			AutomationID:   a.ID,
			AutomationName: a.Name,
			Success:        &success,
		})
	}

	if e.notifier != nil {
		msg := fmt.Sprintf("Automation '%s' executed successfully.", a.Name)
		if len(result) > 0 {
			if b, err := json.Marshal(result); err == nil {
				msg += "\nAction: " + string(b)
			}
		}
		e.notifier.Notify(ctx, models.CategoryAutomation, msg)
	}
}

func (e *Engine) runAction(ctx context.Context, a models.Automation) (map[string]interface{}, error) {
	switch a.ActionType {
	case models.ActionMQTTPublish:
		var spec publishAction
		if err := decodeSpec(a.ActionValue, &spec); err != nil {
			return nil, err
		}
		payload := utils.Stringify(spec.Payload)
		if spec.Topic == "" || payload == "" {
			return nil, fmt.Errorf("%w: mqtt_publish requires topic and payload", ErrConfiguration)
		}
		if err := e.publish(spec.Topic, payload); err != nil {
			return nil, err
		}
		log.Printf("AUTOMATION: Published MQTT: %s -> %s", spec.Topic, payload)
		return map[string]interface{}{"published": spec.Topic, "payload": payload}, nil

	case models.ActionDeviceCommand:
		var spec commandAction
		if err := decodeSpec(a.ActionValue, &spec); err != nil {
			return nil, err
		}
		if spec.Command == "" {
			return nil, fmt.Errorf("%w: device_command requires command", ErrConfiguration)
		}
		device, err := e.store.GetDeviceByID(ctx, spec.DeviceID)
		if err != nil || device == nil {
			return nil, fmt.Errorf("%w: device %d not found: %v", ErrCollaboratorUnavailable, spec.DeviceID, err)
		}
		topic := utils.CommandTopic(device.MQTTTopic, spec.Command)
		payload := utils.Stringify(spec.Payload)
		if err := e.publish(topic, payload); err != nil {
			return nil, err
		}
		log.Printf("AUTOMATION: Sent command to device %s: %s %s", device.DisplayName(), spec.Command, payload)
		return map[string]interface{}{"device": device.DisplayName(), "command": spec.Command, "payload": payload}, nil

	case models.ActionDelay:
		var spec delayAction
		if err := decodeSpec(a.ActionValue, &spec); err != nil {
			return nil, err
		}
		if spec.Seconds > 0 {
			t := time.NewTimer(time.Duration(spec.Seconds * float64(time.Second)))
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return nil, fmt.Errorf("delay interrupted: %w", ctx.Err())
			}
		}
		return map[string]interface{}{"delayed": spec.Seconds}, nil

	default:
		return nil, fmt.Errorf("%w: unknown action type %q", ErrConfiguration, a.ActionType)
	}
}

func (e *Engine) publish(topic, payload string) error {
	if e.bus == nil {
		return fmt.Errorf("%w: MQTT not available", ErrCollaboratorUnavailable)
	}
	if err := e.bus.Publish(topic, payload); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrCollaboratorUnavailable, topic, err)
	}
	return nil
}

// IsConfigurationError reports whether err came from a malformed spec
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
