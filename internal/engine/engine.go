package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"strings"

	"liteassistant/internal/db"
	"liteassistant/internal/models"
	"liteassistant/internal/utils"
)

// DefaultTopics are subscribed on every connection, in both Tasmota layouts
var DefaultTopics = []string{
	"tele/+/LWT",
	"stat/+/STATUS0",
	"tele/+/STATE",
	"tele/+/SENSOR",
	"stat/+/RESULT",
	"tasmota/discovery/#",
	"tasmota/+/tele/SENSOR",
	"tasmota/+/tele/STATE",
	"tasmota/+/stat/RESULT",
}

// Store is the device persistence used by the ingestion engine
type Store interface {
	GetDeviceByID(ctx context.Context, id int64) (*models.Device, error)
	GetDeviceByTopic(ctx context.Context, topic string) (*models.Device, error)
	UpsertDevice(ctx context.Context, update models.DeviceUpdate) (*models.Device, error)
}

// Publisher sends messages to the bus
type Publisher interface {
	Publish(topic, payload string) error
}

// RuleEvaluator receives raw messages and attribute changes
type RuleEvaluator interface {
	HandleMessage(ctx context.Context, topic, payload string)
	HandleAttributeChange(ctx context.Context, deviceID int64, oldState, newState map[string]interface{})
}

// Broadcaster pushes live events to observers
type Broadcaster interface {
	Broadcast(ctx context.Context, event models.Event)
}

// TelemetryWriter stores sensor readings
type TelemetryWriter interface {
	WriteTelemetry(deviceTopic string, data map[string]interface{})
}

// Engine is the core ingestion engine: it turns bus messages into device
// state, hands them to the rule evaluator and announces the result.
type Engine struct {
	store   Store
	bus     Publisher
	rules   RuleEvaluator
	events  Broadcaster
	history TelemetryWriter
}

// NewEngine creates a new engine instance. rules, events and history may be nil.
func NewEngine(store Store, bus Publisher, rules RuleEvaluator, events Broadcaster, history TelemetryWriter) *Engine {
	return &Engine{
		store:   store,
		bus:     bus,
		rules:   rules,
		events:  events,
		history: history,
	}
}

// Topics returns the default subscriptions plus the non-blank custom topics
func Topics(custom []string) []string {
	topics := append([]string(nil), DefaultTopics...)
	for _, t := range custom {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// HandleMessage processes one inbound message. Failures are logged; they
// never reach the bus subscription.
func (e *Engine) HandleMessage(ctx context.Context, topic, payload string) {
	utils.Debugf("ENGINE: MQTT RX: %s -> %s", topic, payload)

	e.broadcast(ctx, models.Event{Type: models.EventMQTTMessage, Topic: topic, Payload: payload})
	if e.rules != nil {
		e.rules.HandleMessage(ctx, topic, payload)
	}

	if err := e.ingest(ctx, topic, payload); err != nil {
		log.Printf("ENGINE: Error handling message %s: %v", topic, err)
	}
}

func (e *Engine) ingest(ctx context.Context, topic, payload string) error {
	info := utils.ParseDeviceTopic(topic)

	oldState := map[string]interface{}{}
	existing, err := e.store.GetDeviceByTopic(ctx, info.Device)
	switch {
	case err == nil:
		if existing.Attributes != nil {
			oldState = maps.Clone(existing.Attributes)
		}
	case errors.Is(err, db.ErrNotFound):
	default:
		return fmt.Errorf("get device %s: %w", info.Device, err)
	}

	var res *ingestResult
	if info.Tasmota {
		res, err = tasmotaUpdate(info, payload, oldState)
		if err != nil {
			return err
		}
	} else {
		res = genericUpdate(info.Device, payload, oldState)
	}
	if res == nil {
		return nil
	}

	device, err := e.store.UpsertDevice(ctx, res.update)
	if err != nil {
		return fmt.Errorf("update device %s: %w", info.Device, err)
	}

	if res.requestStatus {
		if err := e.publish(utils.CommandTopic(info.Device, "STATUS"), "0"); err != nil {
			log.Printf("ENGINE: Failed to request status from %s: %v", info.Device, err)
		}
	}
	if res.telemetry != nil && e.history != nil {
		e.history.WriteTelemetry(info.Device, res.telemetry)
	}

	device, err = e.clearOverriddenTimers(ctx, device, res.reported)
	if err != nil {
		return err
	}

	if e.rules != nil {
		e.rules.HandleAttributeChange(ctx, device.ID, oldState, device.Attributes)
	}
	e.broadcast(ctx, models.Event{Type: models.EventDeviceUpdate, Device: device})
	return nil
}

// clearOverriddenTimers drops the timer of every POWER* switch this message
// reported OFF. A stored OFF from an earlier message does not count.
func (e *Engine) clearOverriddenTimers(ctx context.Context, device *models.Device, reported map[string]interface{}) (*models.Device, error) {
	timers := maps.Clone(device.ActiveTimers)
	changed := false
	for key, value := range reported {
		if !strings.HasPrefix(key, "POWER") || !strings.EqualFold(utils.Stringify(value), models.SwitchOff) {
			continue
		}
		if _, ok := timers[key]; ok {
			log.Printf("ENGINE: Manual OFF detected for %s/%s. Cancelling timer.", device.MQTTTopic, key)
			delete(timers, key)
			changed = true
		}
	}
	if !changed {
		return device, nil
	}

	updated, err := e.store.UpsertDevice(ctx, models.DeviceUpdate{MQTTTopic: device.MQTTTopic, ActiveTimers: timers})
	if err != nil {
		return nil, fmt.Errorf("clear timers of %s: %w", device.MQTTTopic, err)
	}
	return updated, nil
}

// Command publishes cmnd/<topic>/<command> for a device and returns the topic used
func (e *Engine) Command(ctx context.Context, deviceID int64, command, payload string) (string, error) {
	device, err := e.store.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("get device %d: %w", deviceID, err)
	}
	topic := utils.CommandTopic(device.MQTTTopic, command)
	if err := e.publish(topic, payload); err != nil {
		return "", err
	}
	log.Printf("ENGINE: Sent command to %s: %s %s", device.DisplayName(), command, payload)
	return topic, nil
}

// Discover asks every Tasmota device for its full status
func (e *Engine) Discover() error {
	return e.publish("cmnd/tasmotas/STATUS", "0")
}

func (e *Engine) publish(topic, payload string) error {
	if e.bus == nil {
		return errors.New("MQTT not available")
	}
	return e.bus.Publish(topic, payload)
}

func (e *Engine) broadcast(ctx context.Context, event models.Event) {
	if e.events != nil {
		e.events.Broadcast(ctx, event)
	}
}
