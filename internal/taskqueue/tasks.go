package taskqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeNotificationDeliver delivers one notification through one provider
const TypeNotificationDeliver = "notification:deliver"

const (
	deliveryMaxRetry = 3
	deliveryTimeout  = 10 * time.Second
)

// DeliveryPayload is the body of a TypeNotificationDeliver task
type DeliveryPayload struct {
	Provider string                 `json:"provider"`
	Config   map[string]interface{} `json:"config"`
	Category string                 `json:"category"`
	Message  string                 `json:"message"`
}

// NewDeliveryTask builds a delivery task with the provider retry policy
func NewDeliveryTask(p DeliveryPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationDeliver, payload,
		asynq.MaxRetry(deliveryMaxRetry),
		asynq.Timeout(deliveryTimeout),
	), nil
}

// ParseDelivery decodes a delivery task. A malformed payload is never retried.
func ParseDelivery(t *asynq.Task) (DeliveryPayload, error) {
	var p DeliveryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return p, nil
}
