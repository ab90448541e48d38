package utils

import (
	"strings"
	"time"
)

// DeviceState type alias
type DeviceState map[string]interface{}

// TopicInfo is a parsed Tasmota topic
type TopicInfo struct {
	Device  string // device topic (full topic for generic messages)
	Prefix  string // tele, stat, cmnd
	Suffix  string // LWT, STATE, SENSOR, RESULT, STATUS0...
	Tasmota bool
}

// ParseDeviceTopic parses both Tasmota layouts:
// tasmota/<device>/<prefix>/<suffix> and <prefix>/<device>/<suffix>.
// Anything else is a generic topic keyed by the whole topic string.
func ParseDeviceTopic(topic string) TopicInfo {
	parts := strings.Split(topic, "/")
	if parts[0] == "tasmota" && len(parts) >= 4 {
		return TopicInfo{Device: parts[1], Prefix: parts[2], Suffix: strings.Join(parts[3:], "/"), Tasmota: true}
	}
	if len(parts) >= 3 {
		switch parts[0] {
		case "tele", "stat", "cmnd":
			return TopicInfo{Device: parts[1], Prefix: parts[0], Suffix: strings.Join(parts[2:], "/"), Tasmota: true}
		}
	}
	return TopicInfo{Device: topic}
}

// CommandTopic builds the Tasmota command topic for a device switch or command
func CommandTopic(deviceTopic, command string) string {
	return "cmnd/" + deviceTopic + "/" + command
}

// DurationFromUnit converts a value in seconds/minutes/hours. Unknown units yield zero.
func DurationFromUnit(value int, unit string) time.Duration {
	switch unit {
	case "seconds":
		return time.Duration(value) * time.Second
	case "minutes":
		return time.Duration(value) * time.Minute
	case "hours":
		return time.Duration(value) * time.Hour
	}
	return 0
}

// MergeState shallow-merges update into a copy of base
func MergeState(base, update DeviceState) DeviceState {
	merged := make(DeviceState, len(base)+len(update))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}

// LookupPath resolves a key in a decoded JSON object. An exact top-level key
// wins; otherwise the path is walked as dot-separated nested keys.
func LookupPath(doc map[string]interface{}, path string) (interface{}, bool) {
	if v, ok := doc[path]; ok {
		return v, true
	}
	var cur interface{} = doc
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}
