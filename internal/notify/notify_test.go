package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"liteassistant/internal/models"
	"liteassistant/internal/taskqueue"
)

type staticStore []models.NotificationConfig

func (s staticStore) ListNotificationConfigs(ctx context.Context) ([]models.NotificationConfig, error) {
	return s, nil
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) EnqueueDelivery(ctx context.Context, p taskqueue.DeliveryPayload) error {
	return m.Called(p).Error(0)
}

func TestNotifyFiltersByCategoryAndEnabled(t *testing.T) {
	store := staticStore{
		{Provider: ProviderTelegram, Enabled: true, Events: []string{"automation", "timer"}, Config: map[string]interface{}{"bot_token": "t"}},
		{Provider: ProviderNtfy, Enabled: true, Events: []string{"schedule"}},
		{Provider: "ntfy-disabled", Enabled: false, Events: []string{"timer"}},
	}
	queue := &mockQueue{}
	queue.On("EnqueueDelivery", taskqueue.DeliveryPayload{
		Provider: ProviderTelegram,
		Config:   map[string]interface{}{"bot_token": "t"},
		Category: "timer",
		Message:  "Timer expired",
	}).Return(nil).Once()

	NewService(store, queue).Notify(context.Background(), "timer", "Timer expired")

	queue.AssertExpectations(t)
}

func TestNotifySwallowsQueueErrors(t *testing.T) {
	store := staticStore{
		{Provider: ProviderNtfy, Enabled: true, Events: []string{"timer"}},
		{Provider: ProviderTelegram, Enabled: true, Events: []string{"timer"}},
	}
	queue := &mockQueue{}
	queue.On("EnqueueDelivery", mock.Anything).Return(errors.New("redis down")).Twice()

	assert.NotPanics(t, func() {
		NewService(store, queue).Notify(context.Background(), "timer", "x")
	})
	queue.AssertNumberOfCalls(t, "EnqueueDelivery", 2)
}

func TestTelegramDelivery(t *testing.T) {
	var path string
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	s := NewService(staticStore{}, nil)
	s.telegramAPI = srv.URL

	err := s.Deliver(context.Background(), ProviderTelegram,
		map[string]interface{}{"bot_token": "123:abc", "chat_id": float64(42)}, "hello")
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, map[string]string{"chat_id": "42", "text": "hello", "parse_mode": "HTML"}, body)
}

func TestNtfyDelivery(t *testing.T) {
	var got *http.Request
	var message string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		message = string(b)
	}))
	defer srv.Close()

	s := NewService(staticStore{}, nil)
	err := s.Deliver(context.Background(), ProviderNtfy, map[string]interface{}{
		"server_url": srv.URL + "/",
		"topic":      "garden",
		"priority":   "high",
		"username":   "u",
		"password":   "p",
	}, "Schedule 'pump' executed")
	require.NoError(t, err)

	assert.Equal(t, "/garden", got.URL.Path)
	assert.Equal(t, "Schedule 'pump' executed", message)
	assert.Equal(t, notificationTitle, got.Header.Get("Title"))
	assert.Equal(t, "high", got.Header.Get("Priority"))
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}

func TestDeliveryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewService(staticStore{}, nil)
	s.telegramAPI = srv.URL

	err := s.Deliver(context.Background(), ProviderTelegram, map[string]interface{}{"bot_token": "t", "chat_id": "1"}, "x")
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Contains(t, err.Error(), "chat not found")

	err = s.Deliver(context.Background(), ProviderTelegram, map[string]interface{}{"bot_token": "t"}, "x")
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = s.Deliver(context.Background(), ProviderNtfy, map[string]interface{}{}, "x")
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = s.Deliver(context.Background(), "pigeon", nil, "x")
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleDeliverTask(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	task, err := taskqueue.NewDeliveryTask(taskqueue.DeliveryPayload{
		Provider: ProviderNtfy,
		Config:   map[string]interface{}{"server_url": srv.URL, "topic": "t"},
		Category: "timer",
		Message:  "m",
	})
	require.NoError(t, err)

	require.NoError(t, NewService(staticStore{}, nil).HandleDeliverTask(context.Background(), task))
	assert.Equal(t, 1, hits)
}
