package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// ErrNotConnected is returned by Publish while the broker connection is down
var ErrNotConnected = errors.New("mqtt not connected")

const (
	publishTimeout = 5 * time.Second
	reconnectDelay = 5 * time.Second
)

// Handler receives every inbound message on a subscribed topic
type Handler func(topic, payload string)

// Config holds broker connection settings
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Bus is the message bus used by the engines: outbound commands and inbound
// telemetry. It reconnects on its own and restores subscriptions after
// every reconnect.
type Bus struct {
	client  MQTT.Client
	handler Handler

	mu     sync.RWMutex
	topics []string
}

// NewBus creates a bus; Connect must be called before it delivers messages
func NewBus(cfg Config, handler Handler) *Bus {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "liteassistant-" + uuid.NewString()[:8]
	}

	b := &Bus{handler: handler}

	opts := MQTT.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnectDelay).
		SetMaxReconnectInterval(30 * time.Second).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ MQTT.Client, err error) {
			log.Printf("MQTT: Connection lost: %v. Reconnecting...", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	b.client = MQTT.NewClient(opts)
	return b
}

// Connect starts connecting to the broker. It waits until the first
// connection succeeds or ctx is done; in the latter case the client keeps
// retrying in the background and ctx's error is returned.
func (b *Bus) Connect(ctx context.Context) error {
	log.Println("MQTT: Connecting to broker")
	token := b.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe adds topic filters. They are subscribed now if the bus is
// connected and again after every reconnect.
func (b *Bus) Subscribe(topics ...string) {
	b.mu.Lock()
	b.topics = append(b.topics, topics...)
	b.mu.Unlock()

	if b.client.IsConnectionOpen() {
		for _, topic := range topics {
			b.subscribe(topic)
		}
	}
}

// Topics returns the subscribed topic filters
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.topics...)
}

// Publish sends payload to topic with QoS 0
func (b *Bus) Publish(topic, payload string) error {
	if !b.client.IsConnectionOpen() {
		log.Printf("MQTT: Cannot publish to %s, not connected", topic)
		return ErrNotConnected
	}

	token := b.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	log.Printf("MQTT: TX %s -> %s", topic, payload)
	return nil
}

// Connected reports whether the broker connection is up
func (b *Bus) Connected() bool {
	return b.client.IsConnectionOpen()
}

// Close disconnects from the broker
func (b *Bus) Close() {
	b.client.Disconnect(250)
	log.Println("MQTT: Disconnected")
}

func (b *Bus) onConnect(_ MQTT.Client) {
	log.Println("MQTT: Connected to broker")
	for _, topic := range b.Topics() {
		b.subscribe(topic)
	}
}

func (b *Bus) subscribe(topic string) {
	token := b.client.Subscribe(topic, 0, b.onMessage)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("MQTT: Failed to subscribe to %s: %v", topic, err)
			return
		}
		log.Printf("MQTT: Subscribed to: %s", topic)
	}()
}

func (b *Bus) onMessage(_ MQTT.Client, msg MQTT.Message) {
	if b.handler == nil {
		return
	}
	b.handler(msg.Topic(), string(msg.Payload()))
}
