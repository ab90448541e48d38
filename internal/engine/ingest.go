package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"liteassistant/internal/models"
	"liteassistant/internal/utils"
)

// ingestResult is the device change derived from one message
type ingestResult struct {
	update        models.DeviceUpdate
	reported      map[string]interface{} // attributes carried by this message
	telemetry     map[string]interface{}
	requestStatus bool
}

func tasmotaUpdate(info utils.TopicInfo, payload string, oldState utils.DeviceState) (*ingestResult, error) {
	online := true
	res := &ingestResult{update: models.DeviceUpdate{MQTTTopic: info.Device}}

	switch {
	case info.Prefix == "tele" && info.Suffix == "LWT":
		online = payload == "Online"
		res.update.IsOnline = &online
		res.requestStatus = online

	case info.Prefix == "stat" && info.Suffix == "STATUS0":
		doc, err := decodeObject(info.Suffix, payload)
		if err != nil {
			return nil, err
		}
		name := friendlyName(doc, info.Device)
		res.update.Name = &name
		if net, ok := doc["StatusNET"].(map[string]interface{}); ok {
			if ip, ok := net["IPAddress"].(string); ok {
				res.update.IPAddress = &ip
			}
		}
		res.update.IsOnline = &online
		res.update.Attributes = utils.MergeState(oldState, doc)
		res.reported = doc

	case info.Prefix == "tele" && (info.Suffix == "STATE" || info.Suffix == "SENSOR"):
		doc, err := decodeObject(info.Suffix, payload)
		if err != nil {
			return nil, err
		}
		res.update.IsOnline = &online
		res.update.Attributes = utils.MergeState(oldState, doc)
		res.reported = doc
		if info.Suffix == "SENSOR" {
			res.telemetry = doc
		}

	case info.Prefix == "stat" && info.Suffix == "RESULT":
		doc, err := decodeObject(info.Suffix, payload)
		if err != nil {
			return nil, err
		}
		res.update.Attributes = utils.MergeState(oldState, doc)
		res.reported = doc

	default:
		return nil, nil
	}
	return res, nil
}

// genericUpdate handles custom topics. Payloads that are not a JSON object
// are stored under "value".
func genericUpdate(deviceTopic, payload string, oldState utils.DeviceState) *ingestResult {
	online := true
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil || doc == nil {
		doc = map[string]interface{}{"value": payload}
	}

	telemetry := doc
	if f, err := strconv.ParseFloat(strings.TrimSpace(payload), 64); err == nil {
		telemetry = map[string]interface{}{"value": f}
	}

	return &ingestResult{
		update: models.DeviceUpdate{
			MQTTTopic:  deviceTopic,
			IsOnline:   &online,
			Attributes: utils.MergeState(oldState, doc),
		},
		reported:  doc,
		telemetry: telemetry,
	}
}

func decodeObject(suffix, payload string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", suffix, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode %s payload: not an object", suffix)
	}
	return doc, nil
}

// friendlyName picks FriendlyName[0], then DeviceName, then the topic
func friendlyName(doc map[string]interface{}, deviceTopic string) string {
	status, _ := doc["Status"].(map[string]interface{})
	name := deviceTopic
	if dn, ok := status["DeviceName"].(string); ok && dn != "" {
		name = dn
	}
	switch fn := status["FriendlyName"].(type) {
	case []interface{}:
		if len(fn) > 0 {
			return utils.Stringify(fn[0])
		}
	case string:
		if fn != "" {
			return fn
		}
	}
	return name
}
