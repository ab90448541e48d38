package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// TickFunc is invoked by a driver entry with the time the tick started
type TickFunc func(ctx context.Context, now time.Time)

// Driver runs the periodic ticks that feed the rule evaluator, the schedule
// engine and the timer registry. A panicking tick is recovered and logged, and
// a tick still running when the next one is due is skipped.
type Driver struct {
	cron      *cron.Cron
	jobMap    map[string]cron.EntryID // Maps tick name to cron entry ID
	jobMapMux sync.RWMutex            // Protects jobMap

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDriver creates a driver in the local time zone
func NewDriver() *Driver {
	return NewDriverIn(time.Local)
}

// NewDriverIn creates a driver whose cron specs are read in loc
func NewDriverIn(loc *time.Location) *Driver {
	logger := cron.PrintfLogger(log.Default())
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		jobMap: make(map[string]cron.EntryID),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the driver
func (d *Driver) Start() {
	d.cron.Start()
	log.Println("SCHEDULER: Cron driver started")
}

// Stop cancels the tick context and waits for running ticks to return
func (d *Driver) Stop() {
	d.cancel()
	ctx := d.cron.Stop()
	<-ctx.Done()
	log.Println("SCHEDULER: Cron driver stopped")
}

// AddTick registers fn under name, replacing any tick already registered with that name
func (d *Driver) AddTick(name, spec string, fn TickFunc) error {
	d.RemoveTick(name)

	entryID, err := d.cron.AddFunc(spec, func() {
		fn(d.ctx, time.Now())
	})
	if err != nil {
		log.Printf("SCHEDULER: Failed to add tick %s with cron '%s': %v", name, spec, err)
		return err
	}

	d.jobMapMux.Lock()
	d.jobMap[name] = entryID
	d.jobMapMux.Unlock()

	log.Printf("SCHEDULER: Added tick %s with cron '%s' (entry ID: %d)", name, spec, entryID)
	return nil
}

// RemoveTick removes a tick by name
func (d *Driver) RemoveTick(name string) {
	d.jobMapMux.Lock()
	defer d.jobMapMux.Unlock()

	if entryID, exists := d.jobMap[name]; exists {
		d.cron.Remove(entryID)
		delete(d.jobMap, name)
		log.Printf("SCHEDULER: Removed tick %s (entry ID: %d)", name, entryID)
	}
}

// GetScheduledJobCount returns the number of registered ticks
func (d *Driver) GetScheduledJobCount() int {
	d.jobMapMux.RLock()
	defer d.jobMapMux.RUnlock()
	return len(d.jobMap)
}
