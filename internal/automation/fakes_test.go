package automation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"liteassistant/internal/models"
)

var errNotFound = errors.New("not found")

type fakeStore struct {
	mu          sync.Mutex
	automations []models.Automation
	devices     map[int64]*models.Device
	logs        []*models.ExecutionLog
}

func (s *fakeStore) GetEnabledAutomations(ctx context.Context) ([]models.Automation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Automation
	for _, a := range s.automations {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAutomationByID(ctx context.Context, id int64) (*models.Automation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.automations {
		if a.ID == id {
			a := a
			return &a, nil
		}
	}
	return nil, errNotFound
}

func (s *fakeStore) GetDeviceByID(ctx context.Context, id int64) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[id]; ok {
		return d, nil
	}
	return nil, errNotFound
}

func (s *fakeStore) InsertExecutionLog(ctx context.Context, entry *models.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *fakeStore) Logs() []*models.ExecutionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.ExecutionLog(nil), s.logs...)
}

type published struct {
	Topic, Payload string
}

type fakeBus struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (b *fakeBus) Publish(topic, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, published{topic, payload})
	return nil
}

func (b *fakeBus) Sent() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.sent...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(ctx context.Context, category, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, category+": "+message)
}

func (n *fakeNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (f *fakeEvents) Broadcast(ctx context.Context, event models.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEvents) Events() []models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Event(nil), f.events...)
}

func rawJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
