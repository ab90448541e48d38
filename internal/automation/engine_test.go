package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liteassistant/internal/models"
)

type harness struct {
	engine   *Engine
	store    *fakeStore
	bus      *fakeBus
	notifier *fakeNotifier
	events   *fakeEvents
}

func newHarness(t *testing.T, automations ...models.Automation) *harness {
	t.Helper()
	h := &harness{
		store: &fakeStore{
			automations: automations,
			devices:     map[int64]*models.Device{
				2: {ID: 2, MQTTTopic: "fan", Name: "Fan"},
				7: {ID: 7, MQTTTopic: "pump", Name: "Pump"},
			},
		},
		bus:      &fakeBus{},
		notifier: &fakeNotifier{},
		events:   &fakeEvents{},
	}
	h.engine = NewEngine(h.store, h.bus, h.notifier, h.events)
	require.NoError(t, h.engine.Load(context.Background()))
	t.Cleanup(h.engine.Stop)
	return h
}

func publishRule(id int64, trigger string, spec interface{}) models.Automation {
	return models.Automation{
		ID:           id,
		Name:         "rule",
		Enabled:      true,
		TriggerType:  trigger,
		TriggerValue: rawJSON(spec),
		ActionType:   models.ActionMQTTPublish,
		ActionValue:  rawJSON(map[string]interface{}{"topic": "cmnd/x/POWER", "payload": "ON"}),
	}
}

func TestDeviceStateChangeExecutesCommand(t *testing.T) {
	rule := models.Automation{
		ID:           1,
		Name:         "Pump follows power",
		Enabled:      true,
		TriggerType:  models.TriggerDeviceState,
		TriggerValue: rawJSON(map[string]interface{}{"device_id": 7, "attribute": "POWER", "value": "ON", "operator": "=="}),
		ActionType:   models.ActionDeviceCommand,
		ActionValue:  rawJSON(map[string]interface{}{"device_id": 2, "command": "POWER", "payload": "ON"}),
	}
	h := newHarness(t, rule)

	h.engine.HandleAttributeChange(context.Background(), 7,
		map[string]interface{}{"POWER": "OFF"},
		map[string]interface{}{"POWER": "ON"})
	h.engine.Wait()

	assert.Equal(t, []published{{"cmnd/fan/POWER", "ON"}}, h.bus.Sent())

	logs := h.store.Logs()
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, models.SourceAutomation, logs[0].Source)
	assert.Equal(t, "device_state", logs[0].TriggerData["trigger"])
	assert.Equal(t, "OFF", logs[0].TriggerData["old_value"])
	assert.Equal(t, "ON", logs[0].TriggerData["new_value"])

	events := h.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventAutomationExecuted, events[0].Type)
	assert.Equal(t, int64(1), events[0].AutomationID)

	msgs := h.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Automation 'Pump follows power' executed successfully.")
}

func TestDeviceStateNoChangeDoesNotFire(t *testing.T) {
	h := newHarness(t, publishRule(1, models.TriggerDeviceState,
		map[string]interface{}{"device_id": 7, "attribute": "POWER", "value": "ON"}))

	h.engine.HandleAttributeChange(context.Background(), 7,
		map[string]interface{}{"POWER": "ON"},
		map[string]interface{}{"POWER": "ON"})
	h.engine.HandleAttributeChange(context.Background(), 8,
		map[string]interface{}{"POWER": "OFF"},
		map[string]interface{}{"POWER": "ON"})
	h.engine.Wait()

	assert.Empty(t, h.bus.Sent())
	assert.Empty(t, h.store.Logs())
}

func TestDeviceStateNumericOperator(t *testing.T) {
	h := newHarness(t, publishRule(1, models.TriggerDeviceState,
		map[string]interface{}{"device_id": 7, "attribute": "Temperature", "value": "30", "operator": ">"}))

	h.engine.HandleAttributeChange(context.Background(), 7,
		map[string]interface{}{"Temperature": 29.5},
		map[string]interface{}{"Temperature": 31.2})
	h.engine.Wait()

	assert.Len(t, h.bus.Sent(), 1)
}

func TestDurationGateFiresAfterHold(t *testing.T) {
	// 0.001 minutes is 60ms
	h := newHarness(t, publishRule(1, models.TriggerDeviceState,
		map[string]interface{}{"device_id": 7, "attribute": "POWER", "value": "ON", "for_duration": 0.001}))

	h.engine.HandleAttributeChange(context.Background(), 7,
		map[string]interface{}{"POWER": "OFF"},
		map[string]interface{}{"POWER": "ON"})
	assert.Equal(t, 1, h.engine.PendingDelays())
	first, ok := h.engine.delays.Pending(1)
	require.True(t, ok)
	deadline := first.Deadline()

	// a repeated match keeps the original deadline
	h.engine.HandleAttributeChange(context.Background(), 7,
		map[string]interface{}{"POWER": "ON"},
		map[string]interface{}{"POWER": "ON"})
	assert.Equal(t, 1, h.engine.PendingDelays())
	again, ok := h.engine.delays.Pending(1)
	require.True(t, ok)
	assert.Same(t, first, again)
	assert.Equal(t, deadline, again.Deadline())

	require.Eventually(t, func() bool { return len(h.store.Logs()) == 1 }, time.Second, 10*time.Millisecond)
	logs := h.store.Logs()
	assert.Equal(t, "device_state_duration", logs[0].TriggerData["trigger"])
	assert.Equal(t, 0, h.engine.PendingDelays())
	assert.Len(t, h.bus.Sent(), 1)
}

func TestDurationGateCancelledWhenConditionBreaks(t *testing.T) {
	h := newHarness(t, publishRule(1, models.TriggerDeviceState,
		map[string]interface{}{"device_id": 7, "attribute": "POWER", "value": "ON", "for_duration": 0.002}))

	h.engine.HandleAttributeChange(context.Background(), 7,
		map[string]interface{}{"POWER": "OFF"},
		map[string]interface{}{"POWER": "ON"})
	h.engine.HandleAttributeChange(context.Background(), 7,
		map[string]interface{}{"POWER": "ON"},
		map[string]interface{}{"POWER": "OFF"})
	assert.Equal(t, 0, h.engine.PendingDelays())

	assert.Never(t, func() bool { return len(h.store.Logs()) > 0 }, 250*time.Millisecond, 20*time.Millisecond)
}

func TestReloadCancelsPendingDelays(t *testing.T) {
	h := newHarness(t, publishRule(1, models.TriggerDeviceState,
		map[string]interface{}{"device_id": 7, "attribute": "POWER", "value": "ON", "for_duration": 0.002}))

	h.engine.HandleAttributeChange(context.Background(), 7, nil, map[string]interface{}{"POWER": "ON"})
	require.Equal(t, 1, h.engine.PendingDelays())

	require.NoError(t, h.engine.Reload(context.Background()))
	assert.Equal(t, 0, h.engine.PendingDelays())
	assert.Never(t, func() bool { return len(h.store.Logs()) > 0 }, 250*time.Millisecond, 20*time.Millisecond)
}

func TestMQTTTriggerMatching(t *testing.T) {
	tests := []struct {
		name    string
		spec    map[string]interface{}
		topic   string
		payload string
		fires   bool
	}{
		{"topic only", map[string]interface{}{"topic": "tele/pump/STATE"}, "tele/pump/STATE", "anything", true},
		{"wildcard topic", map[string]interface{}{"topic": "tele/+/STATE"}, "tele/pump/STATE", "{}", true},
		{"topic mismatch", map[string]interface{}{"topic": "tele/fan/STATE"}, "tele/pump/STATE", "{}", false},
		{"contains", map[string]interface{}{"topic": "tele/#", "payload_contains": "ON"}, "tele/pump/STATE", `{"POWER":"ON"}`, true},
		{"contains miss", map[string]interface{}{"topic": "tele/#", "payload_contains": "ON"}, "tele/pump/STATE", `{"POWER":"OFF"}`, false},
		{"json path", map[string]interface{}{"topic": "tele/+/SENSOR", "payload_json_path": "POWER", "payload_json_value": "ON"}, "tele/pump/SENSOR", `{"POWER":"ON"}`, true},
		{"nested json path", map[string]interface{}{"topic": "tele/+/SENSOR", "payload_json_path": "AM2301.Temperature", "payload_json_value": 21.5}, "tele/pump/SENSOR", `{"AM2301":{"Temperature":21.5}}`, true},
		{"json path miss", map[string]interface{}{"topic": "tele/+/SENSOR", "payload_json_path": "POWER", "payload_json_value": "ON"}, "tele/pump/SENSOR", `{"POWER":"OFF"}`, false},
		{"json path non-json payload", map[string]interface{}{"topic": "tele/+/SENSOR", "payload_json_path": "POWER", "payload_json_value": "ON"}, "tele/pump/SENSOR", "ON", false},
		{"contains miss falls back to json", map[string]interface{}{"topic": "tele/#", "payload_contains": "zzz", "payload_json_path": "POWER", "payload_json_value": "ON"}, "tele/pump/STATE", `{"POWER":"ON"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, publishRule(1, models.TriggerMQTT, tt.spec))
			h.engine.HandleMessage(context.Background(), tt.topic, tt.payload)
			h.engine.Wait()
			if tt.fires {
				require.Len(t, h.store.Logs(), 1)
				assert.Equal(t, tt.payload, h.store.Logs()[0].TriggerData["payload"])
			} else {
				assert.Empty(t, h.store.Logs())
			}
		})
	}
}

func TestTimeTrigger(t *testing.T) {
	h := newHarness(t, publishRule(1, models.TriggerTime, map[string]interface{}{"hour": 6, "minute": 30}))

	h.engine.OnTick(context.Background(), time.Date(2025, 3, 1, 6, 29, 0, 0, time.Local))
	h.engine.Wait()
	assert.Empty(t, h.store.Logs())

	h.engine.OnTick(context.Background(), time.Date(2025, 3, 1, 6, 30, 0, 0, time.Local))
	h.engine.Wait()
	require.Len(t, h.store.Logs(), 1)
	assert.Equal(t, "time", h.store.Logs()[0].TriggerData["trigger"])
}

func TestDisabledRulesAreSkipped(t *testing.T) {
	rule := publishRule(1, models.TriggerMQTT, map[string]interface{}{"topic": "#"})
	h := newHarness(t, rule)

	// a stale snapshot entry that was disabled after loading
	h.engine.mu.Lock()
	h.engine.automations[0].Enabled = false
	h.engine.mu.Unlock()

	h.engine.HandleMessage(context.Background(), "a/b", "x")
	h.engine.Wait()
	assert.Empty(t, h.store.Logs())
}

func TestBrokenRuleDoesNotStopOthers(t *testing.T) {
	broken := models.Automation{
		ID:           1,
		Enabled:      true,
		TriggerType:  models.TriggerMQTT,
		TriggerValue: []byte(`{"topic": 42}`),
		ActionType:   models.ActionMQTTPublish,
	}
	h := newHarness(t, broken, publishRule(2, models.TriggerMQTT, map[string]interface{}{"topic": "a/b"}))

	h.engine.HandleMessage(context.Background(), "a/b", "x")
	h.engine.Wait()

	logs := h.store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, int64(2), logs[0].EntityID)
}

func TestDelayActionDoesNotBlockOtherRules(t *testing.T) {
	slow := models.Automation{
		ID:           1,
		Name:         "slow",
		Enabled:      true,
		TriggerType:  models.TriggerMQTT,
		TriggerValue: rawJSON(map[string]interface{}{"topic": "a/b"}),
		ActionType:   models.ActionDelay,
		ActionValue:  rawJSON(map[string]interface{}{"seconds": 0.3}),
	}
	h := newHarness(t, slow, publishRule(2, models.TriggerMQTT, map[string]interface{}{"topic": "a/b"}))

	h.engine.HandleMessage(context.Background(), "a/b", "x")
	require.Eventually(t, func() bool { return len(h.bus.Sent()) == 1 }, 200*time.Millisecond, 5*time.Millisecond)

	h.engine.Wait()
	logs := h.store.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, int64(2), logs[0].EntityID)
	assert.Equal(t, int64(1), logs[1].EntityID)
	assert.Equal(t, 0.3, logs[1].ActionResult["delayed"])
}

func TestExecuteFailures(t *testing.T) {
	tests := []struct {
		name   string
		action string
		spec   interface{}
		busErr error
		target error
	}{
		{"missing payload", models.ActionMQTTPublish, map[string]interface{}{"topic": "a"}, nil, ErrConfiguration},
		{"unknown action", "launch", map[string]interface{}{}, nil, ErrConfiguration},
		{"unknown device", models.ActionDeviceCommand, map[string]interface{}{"device_id": 99, "command": "POWER", "payload": "ON"}, nil, ErrCollaboratorUnavailable},
		{"bus down", models.ActionMQTTPublish, map[string]interface{}{"topic": "a", "payload": "b"}, errors.New("not connected"), ErrCollaboratorUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, models.Automation{
				ID:          5,
				Name:        "broken",
				ActionType:  tt.action,
				ActionValue: rawJSON(tt.spec),
			})
			h.bus.err = tt.busErr

			entry, err := h.engine.Execute(context.Background(), 5, nil)
			require.NoError(t, err)
			assert.False(t, entry.Success)
			assert.NotEmpty(t, entry.ErrorMessage)

			_, runErr := h.engine.runAction(context.Background(), models.Automation{ActionType: tt.action, ActionValue: rawJSON(tt.spec)})
			assert.ErrorIs(t, runErr, tt.target)

			require.Len(t, h.store.Logs(), 1)
			assert.Empty(t, h.notifier.Messages())
			assert.Empty(t, h.events.Events())
		})
	}
}

func TestExecuteUnknownAutomation(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Execute(context.Background(), 404, nil)
	assert.ErrorIs(t, err, errNotFound)
	assert.Empty(t, h.store.Logs())
}

func TestExecuteWithoutBus(t *testing.T) {
	store := &fakeStore{automations: []models.Automation{publishRule(1, models.TriggerTime, map[string]interface{}{})}}
	engine := NewEngine(store, nil, nil, nil)
	defer engine.Stop()

	entry, err := engine.Execute(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.False(t, entry.Success)
	assert.Contains(t, entry.ErrorMessage, ErrCollaboratorUnavailable.Error())
}

func TestStopInterruptsDelayAction(t *testing.T) {
	h := newHarness(t, models.Automation{
		ID:           1,
		Enabled:      true,
		TriggerType:  models.TriggerMQTT,
		TriggerValue: rawJSON(map[string]interface{}{"topic": "#"}),
		ActionType:   models.ActionDelay,
		ActionValue:  rawJSON(map[string]interface{}{"seconds": 30}),
	})

	h.engine.HandleMessage(context.Background(), "a", "b")
	start := time.Now()
	h.engine.Stop()
	assert.Less(t, time.Since(start), 5*time.Second)

	logs := h.store.Logs()
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
}

func TestTriggersAfterStopAreDropped(t *testing.T) {
	h := newHarness(t, publishRule(1, models.TriggerMQTT, map[string]interface{}{"topic": "#"}))
	h.engine.Stop()

	h.engine.HandleMessage(context.Background(), "a", "b")
	h.engine.Wait()

	assert.Empty(t, h.bus.Sent())
	assert.Empty(t, h.store.Logs())
}

func TestStopWhileDelayedTriggersFire(t *testing.T) {
	var rules []models.Automation
	for id := int64(1); id <= 20; id++ {
		rules = append(rules, publishRule(id, models.TriggerDeviceState,
			map[string]interface{}{"device_id": 7, "attribute": "POWER", "value": "ON", "for_duration": 0.0001}))
	}
	h := newHarness(t, rules...)

	h.engine.HandleAttributeChange(context.Background(), 7,
		map[string]interface{}{"POWER": "OFF"},
		map[string]interface{}{"POWER": "ON"})
	time.Sleep(6 * time.Millisecond)
	h.engine.Stop()

	n := len(h.store.Logs())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, len(h.store.Logs()), "nothing executes after Stop returns")
	assert.Equal(t, 0, h.engine.PendingDelays())
}
