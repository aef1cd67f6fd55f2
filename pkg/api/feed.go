package api

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	customlog "github.com/open-teleop/robobag/pkg/log"
)

// feedBufferSize bounds the per-client backlog before old events are dropped.
const feedBufferSize = 64

// FeedEvent is one received message as streamed to websocket clients.
type FeedEvent struct {
	Topic      string `json:"topic"`
	Payload    string `json:"payload"`
	ReceivedNs int64  `json:"received_ns"`
}

// Feed fans received messages out to any number of websocket clients.
// Publish never blocks the subscriber's dispatch loop: a client that
// falls behind loses its oldest buffered events.
type Feed struct {
	mu      sync.Mutex
	clients map[chan FeedEvent]struct{}
	logger  customlog.Logger
}

// NewFeed creates an empty feed.
func NewFeed(logger customlog.Logger) *Feed {
	return &Feed{
		clients: make(map[chan FeedEvent]struct{}),
		logger:  logger,
	}
}

// Publish delivers one message to all connected clients.
func (f *Feed) Publish(topic string, payload []byte) {
	ev := FeedEvent{
		Topic:      topic,
		Payload:    string(payload),
		ReceivedNs: time.Now().UnixNano(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.clients {
		select {
		case ch <- ev:
		default:
			// Drop the oldest buffered event to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func (f *Feed) subscribe() chan FeedEvent {
	ch := make(chan FeedEvent, feedBufferSize)
	f.mu.Lock()
	f.clients[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *Feed) unsubscribe(ch chan FeedEvent) {
	f.mu.Lock()
	delete(f.clients, ch)
	f.mu.Unlock()
}

// ClientCount returns the number of connected feed clients.
func (f *Feed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// FeedWebSocketHandler streams feed events to one websocket client
// until the connection drops or the client closes it.
func FeedWebSocketHandler(conn *websocket.Conn, feed *Feed, logger customlog.Logger) {
	logger.Infof("Feed WebSocket connected: %s", conn.RemoteAddr())

	// The feed is write-only, but reads must still be drained so a
	// client going away is noticed even while the topic is silent.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	streamFeed(conn, feed, done, logger)
	logger.Infof("Feed WebSocket disconnected: %s", conn.RemoteAddr())
}

// eventWriter is the slice of the websocket connection the stream loop
// writes to.
type eventWriter interface {
	WriteJSON(v interface{}) error
}

// streamFeed forwards feed events to w until a write fails or done is
// closed, then releases the feed registration.
func streamFeed(w eventWriter, feed *Feed, done <-chan struct{}, logger customlog.Logger) {
	ch := feed.subscribe()
	defer feed.unsubscribe(ch)

	for {
		select {
		case ev := <-ch:
			if err := w.WriteJSON(ev); err != nil {
				logger.Infof("Feed WS connection closed: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
