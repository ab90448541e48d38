package taskqueue

import (
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryTaskRoundTrip(t *testing.T) {
	in := DeliveryPayload{
		Provider: "ntfy",
		Config:   map[string]interface{}{"topic": "garden"},
		Category: "timer",
		Message:  "Timer expired for garden/POWER1. Turned OFF.",
	}

	task, err := NewDeliveryTask(in)
	require.NoError(t, err)
	assert.Equal(t, TypeNotificationDeliver, task.Type())

	out, err := ParseDelivery(task)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseDeliveryRejectsGarbage(t *testing.T) {
	_, err := ParseDelivery(asynq.NewTask(TypeNotificationDeliver, []byte("{not json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
