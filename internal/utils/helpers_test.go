package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDeviceTopic(t *testing.T) {
	assert.Equal(t, TopicInfo{Device: "pump", Prefix: "tele", Suffix: "STATE", Tasmota: true}, ParseDeviceTopic("tele/pump/STATE"))
	assert.Equal(t, TopicInfo{Device: "pump", Prefix: "stat", Suffix: "RESULT", Tasmota: true}, ParseDeviceTopic("tasmota/pump/stat/RESULT"))
	assert.Equal(t, TopicInfo{Device: "home/garage/door"}, ParseDeviceTopic("home/garage/door"))
	assert.Equal(t, TopicInfo{Device: "tele/pump"}, ParseDeviceTopic("tele/pump"))
}

func TestDurationFromUnit(t *testing.T) {
	assert.Equal(t, 30*time.Second, DurationFromUnit(30, "seconds"))
	assert.Equal(t, 5*time.Minute, DurationFromUnit(5, "minutes"))
	assert.Equal(t, 2*time.Hour, DurationFromUnit(2, "hours"))
	assert.Zero(t, DurationFromUnit(2, "days"))
}

func TestMergeStateIsShallow(t *testing.T) {
	base := DeviceState{"POWER": "ON", "Wifi": map[string]interface{}{"RSSI": 60.0}}
	merged := MergeState(base, DeviceState{"POWER": "OFF", "Temperature": 21.0})

	assert.Equal(t, DeviceState{"POWER": "OFF", "Wifi": map[string]interface{}{"RSSI": 60.0}, "Temperature": 21.0}, merged)
	assert.Equal(t, "ON", base["POWER"])
}

func TestLookupPath(t *testing.T) {
	doc := map[string]interface{}{
		"POWER":     "ON",
		"a.b":       "literal",
		"StatusSNS": map[string]interface{}{"DS18B20": map[string]interface{}{"Temperature": 21.5}},
	}

	v, ok := LookupPath(doc, "POWER")
	assert.True(t, ok)
	assert.Equal(t, "ON", v)

	v, ok = LookupPath(doc, "a.b")
	assert.True(t, ok)
	assert.Equal(t, "literal", v)

	v, ok = LookupPath(doc, "StatusSNS.DS18B20.Temperature")
	assert.True(t, ok)
	assert.Equal(t, 21.5, v)

	_, ok = LookupPath(doc, "StatusSNS.missing")
	assert.False(t, ok)
}
