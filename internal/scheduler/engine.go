package scheduler

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"liteassistant/internal/automation"
	"liteassistant/internal/delay"
	"liteassistant/internal/models"
	"liteassistant/internal/utils"
)

// Store is the datastore surface the schedule engine needs
type Store interface {
	GetEnabledSchedules(ctx context.Context) ([]models.Schedule, error)
	GetDeviceByID(ctx context.Context, id int64) (*models.Device, error)
	SetScheduleEnabled(ctx context.Context, id int64, enabled bool) error
	SetScheduleStartTime(ctx context.Context, id int64, start time.Time) error
	InsertExecutionLog(ctx context.Context, entry *models.ExecutionLog) error
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

// DefaultGranularity is the window an interval boundary must fall in to be due.
// It matches the minute tick that drives OnTick.
const DefaultGranularity = time.Minute

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type revert struct {
	schedule models.Schedule
	device   models.Device
}

// Engine fires device switch schedules and owns their auto-revert timers
type Engine struct {
	store    Store
	bus      Publisher
	notifier Notifier
	events   Broadcaster

	granularity time.Duration
	reverts     *delay.Manager[int64, revert]

	// Entries are pointers so lifecycle changes made during a tick
	// (self-disable, campaign anchor) stay visible to later ticks.
	mu        sync.RWMutex
	schedules []*models.Schedule

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates a schedule engine. bus, notifier and events may be nil.
func NewEngine(store Store, bus Publisher, notifier Notifier, events Broadcaster) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:       store,
		bus:         bus,
		notifier:    notifier,
		events:      events,
		granularity: DefaultGranularity,
		reverts:     delay.NewManager[int64, revert]("SCHEDULER"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetGranularity overrides the interval boundary window, for ticks faster than a minute
func (e *Engine) SetGranularity(d time.Duration) {
	if d > 0 {
		e.granularity = d
	}
}

// Load fetches the enabled schedules and replaces the active snapshot
func (e *Engine) Load(ctx context.Context) error {
	schedules, err := e.store.GetEnabledSchedules(ctx)
	if err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}

	active := make([]*models.Schedule, 0, len(schedules))
	for i := range schedules {
		active = append(active, &schedules[i])
	}

	e.mu.Lock()
	e.schedules = active
	e.mu.Unlock()

	log.Printf("SCHEDULER: Loaded %d enabled schedules", len(active))
	return nil
}

// Reload cancels every pending auto-revert and reloads the snapshot.
// Call it after any create/update/delete/toggle of a schedule.
func (e *Engine) Reload(ctx context.Context) error {
	if n := e.reverts.CancelAll(); n > 0 {
		log.Printf("SCHEDULER: Cancelled %d pending auto-reverts on reload", n)
	}
	return e.Load(ctx)
}

// Snapshot returns copies of the active schedules
func (e *Engine) Snapshot() []models.Schedule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Schedule, 0, len(e.schedules))
	for _, s := range e.schedules {
		out = append(out, *s)
	}
	return out
}

// PendingReverts returns how many auto-reverts are armed
func (e *Engine) PendingReverts() int {
	return e.reverts.Len()
}

// Stop cancels pending auto-reverts
func (e *Engine) Stop() {
	e.reverts.CancelAll()
	e.cancel()
	log.Println("SCHEDULER: Schedule engine stopped")
}

// disable turns off a snapshot entry. Entry fields are written under e.mu so
// Snapshot never observes a half-applied tick.
func (e *Engine) disable(s *models.Schedule) {
	e.mu.Lock()
	s.Enabled = false
	e.mu.Unlock()
}

func (e *Engine) active() []*models.Schedule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.schedules
}

// OnTick evaluates every enabled schedule against now. It is driven once per minute.
func (e *Engine) OnTick(ctx context.Context, now time.Time) {
	utils.Debugf("SCHEDULER: Checking schedules at %s (weekday: %d)", now.Format("2006-01-02 15:04:05"), weekday(now))

	for _, s := range e.active() {
		if !s.Enabled {
			continue
		}
		e.check(ctx, s, now)
	}
}

func (e *Engine) check(ctx context.Context, s *models.Schedule, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("SCHEDULER: Panic checking schedule %d: %v", s.ID, r)
		}
	}()

	fire, err := e.due(ctx, s, now)
	if err != nil {
		log.Printf("SCHEDULER: Error checking schedule %d: %v", s.ID, err)
		return
	}
	if fire {
		log.Printf("SCHEDULER: Executing schedule: %s (ID: %d)", s.Name, s.ID)
		e.fire(ctx, s, now)
	}
}

// due reports whether s fires at now. It also applies lifecycle changes:
// once schedules are disabled as they fire, interval schedules are anchored
// on first sight and disabled when their campaign is over.
func (e *Engine) due(ctx context.Context, s *models.Schedule, now time.Time) (bool, error) {
	hhmm := now.Format(timeLayout)

	switch s.ScheduleType {
	case models.ScheduleOnce:
		if s.Date != now.Format(dateLayout) || s.Time != hhmm {
			return false, nil
		}
		e.disable(s)
		if err := e.store.SetScheduleEnabled(ctx, s.ID, false); err != nil {
			log.Printf("SCHEDULER: Failed to persist disable of once schedule %d: %v", s.ID, err)
		}
		return true, nil

	case models.ScheduleDaily:
		return s.Time == hhmm, nil

	case models.ScheduleWeekly:
		return s.Time == hhmm && slices.Contains(s.DaysOfWeek, weekday(now)), nil

	case models.ScheduleInterval:
		return e.intervalDue(ctx, s, now)

	default:
		return false, fmt.Errorf("%w: unknown schedule type %q", automation.ErrConfiguration, s.ScheduleType)
	}
}

func (e *Engine) intervalDue(ctx context.Context, s *models.Schedule, now time.Time) (bool, error) {
	period := utils.DurationFromUnit(s.IntervalValue, s.IntervalUnit)
	total := utils.DurationFromUnit(s.TotalDurationValue, s.TotalDurationUnit)
	if period <= 0 {
		return false, nil
	}

	if s.StartTime == nil {
		anchor := now
		if err := e.store.SetScheduleStartTime(ctx, s.ID, anchor); err != nil {
			return false, fmt.Errorf("anchor interval schedule: %w", err)
		}
		e.mu.Lock()
		s.StartTime = &anchor
		e.mu.Unlock()
	}

	// total <= 0 runs indefinitely
	if total > 0 && now.Sub(*s.StartTime) > total {
		log.Printf("SCHEDULER: Interval schedule %s total duration exceeded, disabling", s.Name)
		e.disable(s)
		if err := e.store.SetScheduleEnabled(ctx, s.ID, false); err != nil {
			return false, fmt.Errorf("disable interval schedule: %w", err)
		}
		return false, nil
	}

	// Boundaries are aligned to local midnight, not to the anchor. A boundary
	// whose window passes without a tick is skipped.
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return now.Sub(midnight)%period < e.granularity, nil
}

func (e *Engine) fire(ctx context.Context, s *models.Schedule, now time.Time) {
	entry := &models.ExecutionLog{
		Source:      models.SourceSchedule,
		EntityID:    s.ID,
		Timestamp:   now.UTC(),
		TriggerData: map[string]interface{}{"trigger": s.ScheduleType, "time": now.Format(time.RFC3339)},
	}

	result, err := e.switchDevice(ctx, s)
	entry.ActionResult = result
	entry.Success = err == nil
	if err != nil {
		entry.ErrorMessage = err.Error()
		log.Printf("SCHEDULER: Error executing schedule %d: %v", s.ID, err)
	}

	if err := e.store.InsertExecutionLog(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("SCHEDULER: Failed to write execution log for schedule %d: %v", s.ID, err)
	}
}

func (e *Engine) switchDevice(ctx context.Context, s *models.Schedule) (map[string]interface{}, error) {
	result := map[string]interface{}{}

	device, err := e.store.GetDeviceByID(ctx, s.DeviceID)
	if err != nil || device == nil {
		return result, fmt.Errorf("%w: device %d not found: %v", automation.ErrCollaboratorUnavailable, s.DeviceID, err)
	}

	topic := utils.CommandTopic(device.MQTTTopic, s.SwitchName)
	if err := e.publish(topic, s.Action); err != nil {
		return result, err
	}
	log.Printf("SCHEDULER: Executed schedule %s: %s -> %s", s.Name, topic, s.Action)
	result["topic"] = topic
	result["payload"] = s.Action
	result["device"] = device.DisplayName()

	if e.notifier != nil {
		e.notifier.Notify(ctx, models.CategorySchedule,
			fmt.Sprintf("Schedule '%s' executed: %s on %s", s.Name, s.Action, device.DisplayName()))
	}
	if e.events != nil {
		success := true
		e.events.Broadcast(ctx, models.Event{
			Type:         models.EventScheduleExecuted,
			ScheduleID:   s.ID,
			ScheduleName: s.Name,
			Success:      &success,
		})
	}

	if s.Duration > 0 && (s.Action == models.SwitchOn || s.Action == models.SwitchToggle) {
		after := utils.DurationFromUnit(s.Duration, s.DurationUnit)
		if after <= 0 {
			log.Printf("SCHEDULER: Schedule %d has unknown duration unit %q, no auto-revert", s.ID, s.DurationUnit)
			return result, nil
		}
		// A new firing supersedes the previous campaign's revert.
		e.reverts.Cancel(s.ID)
		e.reverts.Start(s.ID, after, revert{schedule: *s, device: *device}, e.revertToOff)
		result["revert_after_seconds"] = after.Seconds()
	}
	return result, nil
}

func (e *Engine) revertToOff(r revert) {
	topic := utils.CommandTopic(r.device.MQTTTopic, r.schedule.SwitchName)
	if err := e.publish(topic, models.SwitchOff); err != nil {
		log.Printf("SCHEDULER: Failed to revert schedule %d: %v", r.schedule.ID, err)
		return
	}
	log.Printf("SCHEDULER: Schedule %s duration expired, turned OFF", r.schedule.Name)

	if e.notifier != nil {
		e.notifier.Notify(e.ctx, models.CategorySchedule,
			fmt.Sprintf("Schedule '%s' duration expired: Turned OFF %s/%s",
				r.schedule.Name, r.device.DisplayName(), r.schedule.SwitchName))
	}
}

func (e *Engine) publish(topic, payload string) error {
	if e.bus == nil {
		return fmt.Errorf("%w: MQTT not available", automation.ErrCollaboratorUnavailable)
	}
	if err := e.bus.Publish(topic, payload); err != nil {
		return fmt.Errorf("%w: publish %s: %v", automation.ErrCollaboratorUnavailable, topic, err)
	}
	return nil
}

// weekday numbers days from 0 = Monday to 6 = Sunday
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
