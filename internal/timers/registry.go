package timers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"time"

	"liteassistant/internal/models"
	"liteassistant/internal/utils"
)

// ErrInvalidDuration is returned by SetTimer for a non-positive duration
var ErrInvalidDuration = errors.New("duration must be positive")

// Store is the datastore surface the timer registry needs
type Store interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	GetDeviceByID(ctx context.Context, id int64) (*models.Device, error)
	UpsertDevice(ctx context.Context, update models.DeviceUpdate) (*models.Device, error)
}

// Publisher sends outbound MQTT messages
type Publisher interface {
	Publish(topic, payload string) error
}

// Notifier delivers human-facing notifications
type Notifier interface {
	Notify(ctx context.Context, category, message string)
}

// Broadcaster pushes live events to observers
type Broadcaster interface {
	Broadcast(ctx context.Context, event models.Event)
}

// Registry force-offs switches whose active timer has expired. It holds no
// state of its own: every scan reads the persisted active_timers maps, so a
// manual OFF that already cleared an entry is simply not seen.
type Registry struct {
	store    Store
	bus      Publisher
	notifier Notifier
	events   Broadcaster
	now      func() time.Time
}

// NewRegistry creates a timer registry. notifier and events may be nil.
func NewRegistry(store Store, bus Publisher, notifier Notifier, events Broadcaster) *Registry {
	return &Registry{
		store:    store,
		bus:      bus,
		notifier: notifier,
		events:   events,
		now:      time.Now,
	}
}

// Scan checks every device's timers against now. It is driven every few seconds.
func (r *Registry) Scan(ctx context.Context, now time.Time) {
	devices, err := r.store.ListDevices(ctx)
	if err != nil {
		log.Printf("TIMERS: Failed to list devices: %v", err)
		return
	}

	for i := range devices {
		if len(devices[i].ActiveTimers) == 0 {
			continue
		}
		r.scanDevice(ctx, &devices[i], now)
	}
}

func (r *Registry) scanDevice(ctx context.Context, device *models.Device, now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("TIMERS: Panic checking timers for %s: %v", device.MQTTTopic, rec)
		}
	}()

	kept := make(map[string]string, len(device.ActiveTimers))
	var expired []string

	for switchName, endTime := range device.ActiveTimers {
		if endTime == "" {
			continue
		}
		end, err := time.Parse(time.RFC3339Nano, endTime)
		if err != nil {
			log.Printf("TIMERS: Error parsing timer for %s/%s: %v", device.MQTTTopic, switchName, err)
			continue
		}
		if now.Before(end) {
			kept[switchName] = endTime
			continue
		}
		log.Printf("TIMERS: Timer expired for %s/%s", device.MQTTTopic, switchName)
		expired = append(expired, switchName)
	}

	for _, switchName := range expired {
		r.expire(ctx, device, switchName)
	}

	if len(kept) != len(device.ActiveTimers) {
		if _, err := r.store.UpsertDevice(ctx, models.DeviceUpdate{
			MQTTTopic:    device.MQTTTopic,
			ActiveTimers: kept,
		}); err != nil {
			log.Printf("TIMERS: Failed to persist timers for %s: %v", device.MQTTTopic, err)
		}
	}
}

func (r *Registry) expire(ctx context.Context, device *models.Device, switchName string) {
	topic := utils.CommandTopic(device.MQTTTopic, switchName)
	if err := r.publish(topic, models.SwitchOff); err != nil {
		log.Printf("TIMERS: Failed to turn off %s: %v", topic, err)
		return
	}
	log.Printf("TIMERS: Turned off %s", topic)

	if r.notifier != nil {
		r.notifier.Notify(ctx, models.CategoryTimer,
			fmt.Sprintf("Timer expired for %s/%s. Turned OFF.", device.MQTTTopic, switchName))
	}
	if r.events != nil {
		r.events.Broadcast(ctx, models.Event{
			Type:   models.EventTimerExpired,
			Topic:  topic,
			Switch: switchName,
			Device: device,
		})
	}
}

// SetTimer turns the switch ON and records when it must be forced OFF.
// It returns the updated device and the expiry.
func (r *Registry) SetTimer(ctx context.Context, deviceID int64, switchName string, d time.Duration) (*models.Device, time.Time, error) {
	if d <= 0 {
		return nil, time.Time{}, ErrInvalidDuration
	}

	device, err := r.store.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("get device %d: %w", deviceID, err)
	}

	end := r.now().UTC().Add(d)
	timers := maps.Clone(device.ActiveTimers)
	if timers == nil {
		timers = map[string]string{}
	}
	timers[switchName] = end.Format(time.RFC3339)

	if err := r.publish(utils.CommandTopic(device.MQTTTopic, switchName), models.SwitchOn); err != nil {
		return nil, time.Time{}, err
	}

	updated, err := r.store.UpsertDevice(ctx, models.DeviceUpdate{
		MQTTTopic:    device.MQTTTopic,
		ActiveTimers: timers,
	})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("persist timer: %w", err)
	}

	log.Printf("TIMERS: Timer set for %s/%s until %s", device.MQTTTopic, switchName, end.Format(time.RFC3339))
	if r.notifier != nil {
		r.notifier.Notify(ctx, models.CategoryTimer,
			fmt.Sprintf("Timer started for %s/%s: %s. Switch turned ON.", device.DisplayName(), switchName, d))
	}
	r.broadcastDevice(ctx, updated)
	return updated, end, nil
}

// CancelTimer drops the switch's timer. The switch itself is left as is.
func (r *Registry) CancelTimer(ctx context.Context, deviceID int64, switchName string) (*models.Device, error) {
	device, err := r.store.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("get device %d: %w", deviceID, err)
	}

	timers := maps.Clone(device.ActiveTimers)
	if timers == nil {
		timers = map[string]string{}
	}
	_, wasActive := timers[switchName]
	delete(timers, switchName)

	updated, err := r.store.UpsertDevice(ctx, models.DeviceUpdate{
		MQTTTopic:    device.MQTTTopic,
		ActiveTimers: timers,
	})
	if err != nil {
		return nil, fmt.Errorf("persist timer: %w", err)
	}

	if wasActive {
		log.Printf("TIMERS: Timer cancelled for %s/%s", device.MQTTTopic, switchName)
		if r.notifier != nil {
			r.notifier.Notify(ctx, models.CategoryTimer,
				fmt.Sprintf("Timer cancelled manually for %s/%s.", device.DisplayName(), switchName))
		}
	}
	r.broadcastDevice(ctx, updated)
	return updated, nil
}

func (r *Registry) broadcastDevice(ctx context.Context, device *models.Device) {
	if r.events != nil {
		r.events.Broadcast(ctx, models.Event{Type: models.EventDeviceUpdate, Device: device})
	}
}

func (r *Registry) publish(topic, payload string) error {
	if r.bus == nil {
		return errors.New("MQTT not available")
	}
	return r.bus.Publish(topic, payload)
}
