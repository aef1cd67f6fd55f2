package api

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/robobag/pkg/mqtt"
)

type fakeStats struct {
	stats mqtt.Stats
}

func (f *fakeStats) Stats() mqtt.Stats { return f.stats }

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Fatalf(string, ...interface{}) {}

func newTestApp(stats StatsProvider) *fiber.App {
	app := fiber.New()
	SetupRoutes(app, stats, NewFeed(nopLogger{}), nopLogger{})
	return app
}

func TestStatsHandler(t *testing.T) {
	provider := &fakeStats{stats: mqtt.Stats{
		Connected:    true,
		Topic:        "digitaltwin",
		MessageCount: 42,
		LastReceived: time.Unix(100, 0),
	}}
	app := newTestApp(provider)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/stats", nil))
	if err != nil {
		t.Fatalf("Test request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	var stats mqtt.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !stats.Connected || stats.Topic != "digitaltwin" || stats.MessageCount != 42 {
		t.Errorf("Unexpected stats payload: %+v", stats)
	}
}

func TestHealthAndStatus(t *testing.T) {
	app := newTestApp(&fakeStats{})

	for _, path := range []string{"/", "/health"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("Test request to %s failed: %v", path, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("Expected 200 from %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestWsRouteRequiresUpgrade(t *testing.T) {
	app := newTestApp(&fakeStats{})

	resp, err := app.Test(httptest.NewRequest("GET", "/ws/feed", nil))
	if err != nil {
		t.Fatalf("Test request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("Expected 426 without upgrade headers, got %d", resp.StatusCode)
	}
}

func TestFeedDropsOldestWhenFull(t *testing.T) {
	feed := NewFeed(nopLogger{})
	ch := feed.subscribe()
	defer feed.unsubscribe(ch)

	for i := 0; i < feedBufferSize+5; i++ {
		feed.Publish("digitaltwin", []byte{byte('a' + i%26)})
	}

	if len(ch) != feedBufferSize {
		t.Fatalf("Expected full buffer of %d, got %d", feedBufferSize, len(ch))
	}

	// The oldest events were dropped; the first remaining one is not "a".
	ev := <-ch
	if ev.Payload == "a" {
		t.Errorf("Expected oldest events to be dropped, still saw the first one")
	}
	if ev.Topic != "digitaltwin" {
		t.Errorf("Expected topic 'digitaltwin', got '%s'", ev.Topic)
	}
}
