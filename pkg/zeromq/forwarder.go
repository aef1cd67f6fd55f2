// Package zeromq republishes received twin messages on a ZeroMQ PUB
// socket so downstream robot-side consumers can subscribe without
// talking to the MQTT broker.
package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	customlog "github.com/open-teleop/robobag/pkg/log"
)

// Common errors
var (
	ErrForwarderClosed = errors.New("zeromq forwarder is closed")
)

// Message types
const (
	MsgTypeTwinMessage = "TWIN_MESSAGE"
)

// Envelope is the JSON wrapper published for each forwarded message.
type Envelope struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Forwarder owns a PUB socket bound to a fixed address. Sends are
// serialized; slow subscribers are ZeroMQ's problem, not ours.
type Forwarder struct {
	socket  *zmq4.Socket
	logger  customlog.Logger
	running bool
	mu      sync.Mutex
}

// NewForwarder creates and binds the PUB socket.
func NewForwarder(bindAddress string, logger customlog.Logger) (*Forwarder, error) {
	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.Bind(bindAddress); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", bindAddress, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	logger.Infof("Forwarder initialized on %s", bindAddress)

	return &Forwarder{
		socket:  socket,
		logger:  logger,
		running: true,
	}, nil
}

// Forward publishes one received message as a JSON envelope under the
// originating topic.
func (f *Forwarder) Forward(topic string, payload []byte) error {
	env := Envelope{
		Type:      MsgTypeTwinMessage,
		Timestamp: float64(time.Now().Unix()),
		Data:      string(payload),
	}

	msgData, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return f.publish(topic, msgData)
}

// publish sends two frames in sequence (topic first, then message).
func (f *Forwarder) publish(topic string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return ErrForwarderClosed
	}

	if _, err := f.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic frame: %w", err)
	}
	if _, err := f.socket.SendBytes(message, 0); err != nil {
		return fmt.Errorf("failed to send message frame: %w", err)
	}
	return nil
}

// Close cleans up resources
func (f *Forwarder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.running = false
	if f.socket != nil {
		f.socket.Close()
		f.socket = nil
	}
}
