// Package mqtt implements the digital twin subscriber: a single-topic
// MQTT listener that prints received messages and fans them out to
// registered handlers.
package mqtt

import (
	"fmt"
	"io"
	"sync"
	"time"

	customlog "github.com/open-teleop/robobag/pkg/log"
)

// QoS used for the twin subscription.
const QoS = 0

// MessageHandler receives each message dispatched by the subscriber.
// Handlers run synchronously on the client's dispatch goroutine.
type MessageHandler func(topic string, payload []byte)

// Stats is a snapshot of the subscriber's counters.
type Stats struct {
	Connected    bool      `json:"connected"`
	Topic        string    `json:"topic"`
	MessageCount uint64    `json:"message_count"`
	LastReceived time.Time `json:"last_received"`
}

// Subscriber subscribes to one fixed topic and prints every received
// message. Subscriptions are made from the on-connect hook so a
// reconnect renews them, exactly once per connection.
type Subscriber struct {
	client Client
	topic  string
	logger customlog.Logger
	out    io.Writer

	mu           sync.Mutex
	handlers     []MessageHandler
	messageCount uint64
	lastReceived time.Time
}

// NewSubscriber wires a subscriber to the given client. Received
// messages are printed to out.
func NewSubscriber(client Client, topic string, logger customlog.Logger, out io.Writer) *Subscriber {
	s := &Subscriber{
		client: client,
		topic:  topic,
		logger: logger,
		out:    out,
	}
	client.SetConnectHandler(s.onConnect)
	client.SetConnectionLostHandler(func(err error) {
		s.logger.Warnf("Connection lost: %v", err)
	})
	return s
}

// AddHandler registers an additional handler for received messages.
func (s *Subscriber) AddHandler(h MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Start connects to the broker. The subscription itself happens in the
// on-connect hook.
func (s *Subscriber) Start() error {
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	s.client.Disconnect(250)
	s.logger.Infof("Subscriber stopped")
}

// Stats returns a snapshot of the subscriber's counters.
func (s *Subscriber) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Connected:    s.client.IsConnected(),
		Topic:        s.topic,
		MessageCount: s.messageCount,
		LastReceived: s.lastReceived,
	}
}

// onConnect runs on every successful connection. Subscribing here means
// that if we lose the connection and reconnect, the subscription is
// renewed.
func (s *Subscriber) onConnect() {
	s.logger.Infof("Connected, subscribing to topic '%s'", s.topic)
	if err := s.client.Subscribe(s.topic, QoS, s.onMessage); err != nil {
		s.logger.Errorf("Failed to subscribe to '%s': %v", s.topic, err)
	}
}

// onMessage runs synchronously within the client's dispatch loop.
func (s *Subscriber) onMessage(topic string, payload []byte) {
	fmt.Fprintf(s.out, "at topic %s data: %s\n", topic, payload)

	s.mu.Lock()
	s.messageCount++
	s.lastReceived = time.Now()
	handlers := make([]MessageHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h(topic, payload)
	}
}
