package api

import (
	"errors"
	"testing"
	"time"
)

type fakeEventWriter struct {
	written chan FeedEvent
	err     error
}

func newFakeEventWriter() *fakeEventWriter {
	return &fakeEventWriter{written: make(chan FeedEvent, feedBufferSize)}
}

func (f *fakeEventWriter) WriteJSON(v interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.written <- v.(FeedEvent)
	return nil
}

func waitForClients(t *testing.T, feed *Feed, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for feed.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d feed client(s), have %d", n, feed.ClientCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func waitDone(t *testing.T, finished <-chan struct{}) {
	t.Helper()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("Stream loop did not exit")
	}
}

func TestStreamFeedReleasesClientOnSilentDisconnect(t *testing.T) {
	feed := NewFeed(nopLogger{})
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		streamFeed(newFakeEventWriter(), feed, done, nopLogger{})
	}()
	waitForClients(t, feed, 1)

	// The client goes away without any message ever flowing.
	close(done)
	waitDone(t, finished)

	if n := feed.ClientCount(); n != 0 {
		t.Errorf("Expected feed registration to be released, still holds %d", n)
	}
}

func TestStreamFeedReleasesClientOnWriteError(t *testing.T) {
	feed := NewFeed(nopLogger{})
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		streamFeed(&fakeEventWriter{err: errors.New("broken pipe")}, feed, done, nopLogger{})
	}()
	waitForClients(t, feed, 1)

	feed.Publish("digitaltwin", []byte("x"))
	waitDone(t, finished)

	if n := feed.ClientCount(); n != 0 {
		t.Errorf("Expected feed registration to be released, still holds %d", n)
	}
}

func TestStreamFeedDeliversEvents(t *testing.T) {
	feed := NewFeed(nopLogger{})
	done := make(chan struct{})
	finished := make(chan struct{})
	w := newFakeEventWriter()

	go func() {
		defer close(finished)
		streamFeed(w, feed, done, nopLogger{})
	}()
	waitForClients(t, feed, 1)

	feed.Publish("digitaltwin", []byte("temp=21.5"))

	var ev FeedEvent
	select {
	case ev = <-w.written:
	case <-time.After(time.Second):
		t.Fatalf("Event was never written to the client")
	}
	if ev.Topic != "digitaltwin" || ev.Payload != "temp=21.5" {
		t.Errorf("Unexpected event: %+v", ev)
	}

	close(done)
	waitDone(t, finished)
}
