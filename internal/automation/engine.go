package automation

import (
	"context"
	"fmt"
	"log"
	"sync"

	"liteassistant/internal/delay"
	"liteassistant/internal/models"
)

// Store is the datastore surface the rule evaluator needs
type Store interface {
	GetEnabledAutomations(ctx context.Context) ([]models.Automation, error)
	GetAutomationByID(ctx context.Context, id int64) (*models.Automation, error)
	GetDeviceByID(ctx context.Context, id int64) (*models.Device, error)
	InsertExecutionLog(ctx context.Context, entry *models.ExecutionLog) error
}

// Publisher sends outbound MQTT messages
type Publisher interface {
	Publish(topic, payload string) error
}

// Notifier delivers human-facing notifications; failures are handled by the notifier
type Notifier interface {
	Notify(ctx context.Context, category, message string)
}

// Broadcaster pushes live events to observers
type Broadcaster interface {
	Broadcast(ctx context.Context, event models.Event)
}

// pendingTrigger is what a duration-gated rule carries until it fires
type pendingTrigger struct {
	automation models.Automation
	data       map[string]interface{}
}

// Engine evaluates automation rules against ticks, MQTT messages and device
// attribute changes.
//
// The active rule set is an immutable snapshot replaced wholesale by Load and
// Reload. Executions run on their own goroutines so a delay action or a slow
// collaborator only holds up the rule that issued it.
type Engine struct {
	store    Store
	bus      Publisher
	notifier Notifier
	events   Broadcaster

	delays *delay.Manager[int64, pendingTrigger]

	mu          sync.RWMutex
	automations []models.Automation

	ctx    context.Context
	cancel context.CancelFunc

	// stopMu orders every wg.Add before the wg.Wait in Stop
	stopMu  sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewEngine creates a rule evaluator. bus, notifier and events may be nil.
func NewEngine(store Store, bus Publisher, notifier Notifier, events Broadcaster) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    store,
		bus:      bus,
		notifier: notifier,
		events:   events,
		delays:   delay.NewManager[int64, pendingTrigger]("AUTOMATION"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Load fetches the enabled automations and replaces the active snapshot
func (e *Engine) Load(ctx context.Context) error {
	automations, err := e.store.GetEnabledAutomations(ctx)
	if err != nil {
		return fmt.Errorf("load automations: %w", err)
	}

	e.mu.Lock()
	e.automations = automations
	e.mu.Unlock()

	log.Printf("AUTOMATION: Loaded %d enabled automations", len(automations))
	return nil
}

// Reload cancels every pending duration gate and reloads the snapshot.
// Call it after any create/update/delete/toggle of an automation.
func (e *Engine) Reload(ctx context.Context) error {
	e.delays.CancelAll()
	return e.Load(ctx)
}

// Snapshot returns the active automation set
func (e *Engine) Snapshot() []models.Automation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.automations
}

// PendingDelays returns how many duration gates are currently armed
func (e *Engine) PendingDelays() int {
	return e.delays.Len()
}

// Wait blocks until all in-flight executions have finished
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Stop cancels pending delays, interrupts running delay actions and waits for
// executions. Triggers arriving after Stop are dropped.
func (e *Engine) Stop() {
	e.stopMu.Lock()
	e.stopped = true
	e.stopMu.Unlock()

	e.delays.CancelAll()
	e.cancel()
	e.wg.Wait()
	log.Println("AUTOMATION: Engine stopped")
}

// track registers one execution with the wait group unless the engine is stopped
func (e *Engine) track() bool {
	e.stopMu.Lock()
	defer e.stopMu.Unlock()
	if e.stopped {
		return false
	}
	e.wg.Add(1)
	return true
}

// dispatch runs an execution without blocking the evaluation pass
func (e *Engine) dispatch(a models.Automation, data map[string]interface{}) {
	if !e.track() {
		log.Printf("AUTOMATION: Engine stopped, dropping execution of automation %d", a.ID)
		return
	}
	go func() {
		defer e.wg.Done()
		e.execute(e.ctx, a, data)
	}()
}

func (e *Engine) fireDelayed(p pendingTrigger) {
	if !e.track() {
		return
	}
	defer e.wg.Done()
	log.Printf("AUTOMATION: Delayed trigger fired for automation %d", p.automation.ID)
	e.execute(e.ctx, p.automation, p.data)
}

// guard isolates one automation's evaluation from the rest of the pass
func guard(a models.Automation, kind string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("AUTOMATION: Panic checking %s trigger for automation %d: %v", kind, a.ID, r)
		}
	}()
	if err := fn(); err != nil {
		log.Printf("AUTOMATION: Error checking %s trigger for automation %d: %v", kind, a.ID, err)
	}
}
