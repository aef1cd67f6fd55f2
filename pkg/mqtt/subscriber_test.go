package mqtt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// fakeClient simulates broker connect/reconnect cycles in process.
type fakeClient struct {
	onConnect  func()
	onLost     func(error)
	connected  bool
	connectErr error

	subscribedTopics []string
	subscribedQoS    []byte
	handler          func(topic string, payload []byte)
}

func (f *fakeClient) SetConnectHandler(onConnect func()) { f.onConnect = onConnect }

func (f *fakeClient) SetConnectionLostHandler(onLost func(error)) { f.onLost = onLost }

func (f *fakeClient) Connect() error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	if f.onConnect != nil {
		f.onConnect()
	}
	return nil
}

func (f *fakeClient) Subscribe(topic string, qos byte, handler func(string, []byte)) error {
	f.subscribedTopics = append(f.subscribedTopics, topic)
	f.subscribedQoS = append(f.subscribedQoS, qos)
	f.handler = handler
	return nil
}

func (f *fakeClient) Disconnect(quiesceMs uint) { f.connected = false }

func (f *fakeClient) IsConnected() bool { return f.connected }

// reconnect simulates the library dropping and re-establishing the session.
func (f *fakeClient) reconnect() {
	if f.onLost != nil {
		f.onLost(errors.New("broker went away"))
	}
	if f.onConnect != nil {
		f.onConnect()
	}
}

// deliver pushes a message through the registered subscription handler.
func (f *fakeClient) deliver(topic string, payload []byte) {
	f.handler(topic, payload)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Fatalf(string, ...interface{}) {}

func TestStartSubscribesExactlyOnce(t *testing.T) {
	client := &fakeClient{}
	var out bytes.Buffer
	sub := NewSubscriber(client, "digitaltwin", nopLogger{}, &out)

	if err := sub.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if len(client.subscribedTopics) != 1 {
		t.Fatalf("Expected exactly 1 subscription, got %d", len(client.subscribedTopics))
	}
	if client.subscribedTopics[0] != "digitaltwin" {
		t.Errorf("Expected subscription to 'digitaltwin', got '%s'", client.subscribedTopics[0])
	}
	if client.subscribedQoS[0] != QoS {
		t.Errorf("Expected QoS %d, got %d", QoS, client.subscribedQoS[0])
	}
}

func TestReconnectRenewsSubscription(t *testing.T) {
	client := &fakeClient{}
	var out bytes.Buffer
	sub := NewSubscriber(client, "digitaltwin", nopLogger{}, &out)

	if err := sub.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	client.reconnect()

	// One subscription per connection: initial connect + reconnect.
	if len(client.subscribedTopics) != 2 {
		t.Fatalf("Expected 2 subscriptions after reconnect, got %d", len(client.subscribedTopics))
	}
}

func TestMessagePrintedWithTopicAndPayload(t *testing.T) {
	client := &fakeClient{}
	var out bytes.Buffer
	sub := NewSubscriber(client, "digitaltwin", nopLogger{}, &out)

	if err := sub.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	client.deliver("digitaltwin", []byte("temp=21.5"))

	line := out.String()
	if !strings.Contains(line, "digitaltwin") {
		t.Errorf("Printed output missing topic: %q", line)
	}
	if !strings.Contains(line, "temp=21.5") {
		t.Errorf("Printed output missing payload: %q", line)
	}
}

func TestHandlersAndStats(t *testing.T) {
	client := &fakeClient{}
	var out bytes.Buffer
	sub := NewSubscriber(client, "digitaltwin", nopLogger{}, &out)

	var gotTopic string
	var gotPayload []byte
	sub.AddHandler(func(topic string, payload []byte) {
		gotTopic = topic
		gotPayload = payload
	})

	if err := sub.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	client.deliver("digitaltwin", []byte("a"))
	client.deliver("digitaltwin", []byte("b"))

	if gotTopic != "digitaltwin" || string(gotPayload) != "b" {
		t.Errorf("Handler saw (%s, %s), expected (digitaltwin, b)", gotTopic, gotPayload)
	}

	stats := sub.Stats()
	if stats.MessageCount != 2 {
		t.Errorf("Expected 2 messages counted, got %d", stats.MessageCount)
	}
	if !stats.Connected {
		t.Errorf("Expected connected stats")
	}
	if stats.Topic != "digitaltwin" {
		t.Errorf("Expected topic 'digitaltwin', got '%s'", stats.Topic)
	}
	if stats.LastReceived.IsZero() {
		t.Errorf("Expected LastReceived to be set")
	}

	sub.Stop()
	if sub.Stats().Connected {
		t.Errorf("Expected disconnected after Stop")
	}
}

func TestStartConnectError(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("refused")}
	sub := NewSubscriber(client, "digitaltwin", nopLogger{}, &bytes.Buffer{})

	if err := sub.Start(); err == nil {
		t.Errorf("Expected connect error")
	}
	if len(client.subscribedTopics) != 0 {
		t.Errorf("Expected no subscriptions on failed connect")
	}
}
