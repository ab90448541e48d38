package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/hibiken/asynq"

	"liteassistant/internal/models"
	"liteassistant/internal/taskqueue"
)

// ErrDelivery marks a provider that answered with a non-200 status or could not be reached
var ErrDelivery = errors.New("notification delivery failed")

// ConfigStore lists provider configurations
type ConfigStore interface {
	ListNotificationConfigs(ctx context.Context) ([]models.NotificationConfig, error)
}

// Enqueuer puts a delivery on the task queue
type Enqueuer interface {
	EnqueueDelivery(ctx context.Context, p taskqueue.DeliveryPayload) error
}

// Service fans notifications out to the configured providers. Notify only
// enqueues; the queue worker calls HandleDeliverTask, and a failed delivery
// is retried by the queue.
type Service struct {
	store ConfigStore
	queue Enqueuer
	http  *http.Client

	telegramAPI string
}

// NewService creates a notification service
func NewService(store ConfigStore, queue Enqueuer) *Service {
	return &Service{
		store:       store,
		queue:       queue,
		http:        &http.Client{Timeout: 10 * time.Second},
		telegramAPI: "https://api.telegram.org",
	}
}

// Notify enqueues message for every enabled provider subscribed to category.
// Errors are logged and never returned to the caller.
func (s *Service) Notify(ctx context.Context, category, message string) {
	configs, err := s.store.ListNotificationConfigs(ctx)
	if err != nil {
		log.Printf("NOTIFY: Failed to load notification configs: %v", err)
		return
	}

	for _, c := range configs {
		if !c.Enabled || !slices.Contains(c.Events, category) {
			continue
		}
		err := s.queue.EnqueueDelivery(ctx, taskqueue.DeliveryPayload{
			Provider: c.Provider,
			Config:   c.Config,
			Category: category,
			Message:  message,
		})
		if err != nil {
			log.Printf("NOTIFY: Failed to queue %s notification: %v", c.Provider, err)
		}
	}
}

// HandleDeliverTask is the queue handler for taskqueue.TypeNotificationDeliver
func (s *Service) HandleDeliverTask(ctx context.Context, t *asynq.Task) error {
	p, err := taskqueue.ParseDelivery(t)
	if err != nil {
		return err
	}
	return s.Deliver(ctx, p.Provider, p.Config, p.Message)
}

// Deliver sends message through one provider right away
func (s *Service) Deliver(ctx context.Context, provider string, config map[string]interface{}, message string) error {
	var err error
	switch provider {
	case ProviderTelegram:
		err = s.sendTelegram(ctx, config, message)
	case ProviderNtfy:
		err = s.sendNtfy(ctx, config, message)
	default:
		return fmt.Errorf("unknown provider %q: %w", provider, asynq.SkipRetry)
	}
	if err != nil {
		log.Printf("NOTIFY: Failed to send %s notification: %v", provider, err)
	}
	return err
}
