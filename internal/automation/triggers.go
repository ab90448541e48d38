package automation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"liteassistant/internal/utils"
)

// timeTrigger fires when the tick's hour and minute match, e.g. {"hour": 6, "minute": 0}
type timeTrigger struct {
	Hour   *int `json:"hour"`
	Minute *int `json:"minute"`
}

func (t timeTrigger) matches(now time.Time) bool {
	return t.Hour != nil && t.Minute != nil && *t.Hour == now.Hour() && *t.Minute == now.Minute()
}

// mqttTrigger, e.g. {"topic": "tele/pump/STATE", "payload_contains": "ON"}
// or {"topic": "tele/+/SENSOR", "payload_json_path": "POWER", "payload_json_value": "ON"}
type mqttTrigger struct {
	Topic            string      `json:"topic"`
	PayloadContains  string      `json:"payload_contains"`
	PayloadJSONPath  string      `json:"payload_json_path"`
	PayloadJSONValue interface{} `json:"payload_json_value"`
}

func (t mqttTrigger) matches(topic, payload string) bool {
	if !utils.TopicMatches(topic, t.Topic) {
		return false
	}

	if t.PayloadContains != "" && strings.Contains(payload, t.PayloadContains) {
		return true
	}

	if t.PayloadJSONPath != "" && utils.Stringify(t.PayloadJSONValue) != "" {
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			utils.Debugf("AUTOMATION: Payload on %s is not a JSON object: %v", topic, err)
			return false
		}
		actual, ok := utils.LookupPath(doc, t.PayloadJSONPath)
		return ok && utils.Stringify(actual) == utils.Stringify(t.PayloadJSONValue)
	}

	return t.PayloadContains == "" && t.PayloadJSONPath == ""
}

// deviceStateTrigger, e.g.
// {"device_id": 1, "attribute": "POWER", "value": "ON", "operator": "==", "for_duration": 5}
type deviceStateTrigger struct {
	DeviceID    int64       `json:"device_id"`
	Attribute   string      `json:"attribute"`
	Value       interface{} `json:"value"`
	Operator    string      `json:"operator"`
	ForDuration float64     `json:"for_duration"` // minutes
}

func (t deviceStateTrigger) operator() string {
	if t.Operator == "" {
		return "=="
	}
	return t.Operator
}

func (t deviceStateTrigger) holdFor() time.Duration {
	return time.Duration(t.ForDuration * float64(time.Minute))
}

// decodeSpec decodes a trigger or action spec; shape errors are configuration errors
func decodeSpec(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty spec", ErrConfiguration)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}
