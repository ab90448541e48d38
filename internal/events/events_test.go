package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liteassistant/internal/models"
)

type fakeClient struct {
	channel string
	message []byte
	err     error
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func (f *fakeClient) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return nil
}

func TestBroadcastEncodesEvent(t *testing.T) {
	client := &fakeClient{}
	b := &Broadcaster{client: client, channel: Channel}

	success := true
	b.Broadcast(context.Background(), models.Event{
		Type:           models.EventAutomationExecuted,
		AutomationID:   4,
		AutomationName: "Night light",
		Success:        &success,
	})

	assert.Equal(t, "liteassistant:events", client.channel)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(client.message, &got))
	assert.Equal(t, map[string]interface{}{
		"type":            "automation_executed",
		"automation_id":   float64(4),
		"automation_name": "Night light",
		"success":         true,
	}, got)
}

func TestBroadcastFailureIsSwallowed(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	b := &Broadcaster{client: client, channel: Channel}

	assert.NotPanics(t, func() {
		b.Broadcast(context.Background(), models.Event{Type: models.EventMQTTMessage, Topic: "a", Payload: "b"})
	})
}
