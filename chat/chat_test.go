package chat

import (
	"sync"
	"testing"
	"time"

	"gosip/transport"
)

// serverStub plays the server on the far end of a pipe: it records every
// frame the engine emits and lets tests wire ack behavior per event.
type serverStub struct {
	t  *testing.T
	ch *transport.Pipe

	mu     sync.Mutex
	events map[string][]transport.Event
}

var recordedEvents = []string{
	transport.EventJoin,
	transport.EventSendMessage,
	transport.EventSendGroupMessage,
	transport.EventMarkAsRead,
	transport.EventGroupMessagesMarkAsRead,
	transport.EventTyping,
	transport.EventStopTyping,
	transport.EventGroupTyping,
	transport.EventGroupStopTyping,
	transport.EventSendFriendRequest,
}

func newServerStub(t *testing.T, ch *transport.Pipe) *serverStub {
	s := &serverStub{t: t, ch: ch, events: make(map[string][]transport.Event)}
	for _, event := range recordedEvents {
		event := event
		ch.Subscribe(event, func(e transport.Event) {
			s.mu.Lock()
			s.events[event] = append(s.events[event], e)
			s.mu.Unlock()
		})
	}
	return s
}

func (s *serverStub) count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events[event])
}

func (s *serverStub) last(event string) (transport.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded := s.events[event]
	if len(recorded) == 0 {
		return transport.Event{}, false
	}
	return recorded[len(recorded)-1], true
}

func (s *serverStub) waitForCount(event string, n int, timeout time.Duration) {
	s.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.count(event) >= n {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	s.t.Fatalf("timed out waiting for %d %q events, got %d", n, event, s.count(event))
}

// ensureCount verifies no more than n events of the given name arrive
// within the window.
func (s *serverStub) ensureCount(event string, n int, window time.Duration) {
	s.t.Helper()
	time.Sleep(window)
	if got := s.count(event); got != n {
		s.t.Fatalf("expected exactly %d %q events, got %d", n, event, got)
	}
}

// emit pushes an event from the stub server toward the engine.
func (s *serverStub) emit(event string, payload any) {
	s.t.Helper()
	if err := s.ch.Emit(event, payload); err != nil {
		s.t.Fatalf("stub emit %q failed: %v", event, err)
	}
}

func waitForState(t *testing.T, cond func() bool, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// newTestClient builds a started client over an in-memory pipe, with short
// timers so debounce and expiry behavior is observable in tests.
func newTestClient(t *testing.T, mutate ...func(*Options)) (*Client, *serverStub) {
	t.Helper()
	clientEnd, serverEnd := transport.NewPipe()
	t.Cleanup(func() {
		clientEnd.Close()
		serverEnd.Close()
	})

	opts := Options{
		Channel:               clientEnd,
		SelfID:                "self",
		SelfName:              "Self",
		TypingQuietInterval:   60 * time.Millisecond,
		TypingIndicatorExpiry: 150 * time.Millisecond,
		NearBottomThreshold:   100,
		AckTimeout:            400 * time.Millisecond,
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	stub := newServerStub(t, serverEnd)
	client, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(client.Close)
	if err := client.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return client, stub
}
