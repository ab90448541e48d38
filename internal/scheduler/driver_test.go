package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverRunsTicks(t *testing.T) {
	d := NewDriver()
	var ticks atomic.Int32
	require.NoError(t, d.AddTick("timers", "@every 1s", func(ctx context.Context, now time.Time) {
		ticks.Add(1)
	}))

	d.Start()
	defer d.Stop()

	assert.Eventually(t, func() bool { return ticks.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestDriverReplacesTickByName(t *testing.T) {
	d := NewDriver()
	noop := func(ctx context.Context, now time.Time) {}

	require.NoError(t, d.AddTick("rules", "* * * * *", noop))
	require.NoError(t, d.AddTick("rules", "*/5 * * * *", noop))
	assert.Equal(t, 1, d.GetScheduledJobCount())

	d.RemoveTick("rules")
	assert.Equal(t, 0, d.GetScheduledJobCount())
}

func TestDriverRejectsBadSpec(t *testing.T) {
	d := NewDriver()
	err := d.AddTick("rules", "every minute please", func(ctx context.Context, now time.Time) {})
	assert.Error(t, err)
	assert.Equal(t, 0, d.GetScheduledJobCount())
}

func TestDriverRecoversPanics(t *testing.T) {
	d := NewDriver()
	var ticks atomic.Int32
	require.NoError(t, d.AddTick("boom", "@every 1s", func(ctx context.Context, now time.Time) {
		ticks.Add(1)
		panic("tick failed")
	}))

	d.Start()
	defer d.Stop()

	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
}
