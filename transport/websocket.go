package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	// ackEventName is the reserved frame event completing a Request.
	ackEventName = "ack"
	// maxDecodeErrorsPerConn closes the connection after repeated garbage frames.
	maxDecodeErrorsPerConn = 3
)

// wsFrame is the wire shape of every websocket message.
type wsFrame struct {
	Event     string          `json:"event"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// WebsocketChannel is the production Channel: JSON frames over one websocket
// connection. Inbound frames are dispatched inline from a single read loop,
// so handlers run one at a time in arrival order.
type WebsocketChannel struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	encoder *json.Encoder

	mu        sync.Mutex
	subs      map[string][]*pipeSub
	nextSubID uint64
	waiters   map[string]chan ackResult

	closed    chan struct{}
	closeOnce sync.Once
	errs      chan error
}

// DialWebsocket connects to the chat server and starts the read loop.
func DialWebsocket(url, origin string) (*WebsocketChannel, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return NewWebsocketChannel(conn), nil
}

// NewWebsocketChannel wraps an established websocket connection. Useful for
// the server side of a websocket.Handler in tests.
func NewWebsocketChannel(conn *websocket.Conn) *WebsocketChannel {
	ch := &WebsocketChannel{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		subs:    make(map[string][]*pipeSub),
		waiters: make(map[string]chan ackResult),
		closed:  make(chan struct{}),
		errs:    make(chan error, 16),
	}
	go ch.readLoop()
	return ch
}

// Errors returns asynchronous read-loop errors.
func (c *WebsocketChannel) Errors() <-chan error {
	return c.errs
}

// Done is closed once the channel has shut down.
func (c *WebsocketChannel) Done() <-chan struct{} {
	return c.closed
}

// Emit writes one fire-and-forget frame.
func (c *WebsocketChannel) Emit(event string, payload any) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	return c.writeFrame(wsFrame{Event: event, Payload: raw})
}

// Request writes a frame carrying a correlation id and blocks until the
// matching ack frame arrives, the context ends, or the channel closes.
func (c *WebsocketChannel) Request(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	result := make(chan ackResult, 1)
	c.mu.Lock()
	c.waiters[requestID] = result
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, requestID)
		c.mu.Unlock()
	}()

	if err := c.writeFrame(wsFrame{Event: event, RequestID: requestID, Payload: raw}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrAckTimeout
		}
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrChannelClosed
	case res := <-result:
		if res.reason != "" {
			return nil, &AckError{Reason: res.reason}
		}
		return res.payload, nil
	}
}

// Subscribe registers a handler for one inbound event name.
func (c *WebsocketChannel) Subscribe(event string, handler Handler) *Subscription {
	c.mu.Lock()
	c.nextSubID++
	sub := &pipeSub{id: c.nextSubID, handler: handler}
	c.subs[event] = append(c.subs[event], sub)
	c.mu.Unlock()

	return newSubscription(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		entries := c.subs[event]
		for i, entry := range entries {
			if entry.id == sub.id {
				c.subs[event] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	})
}

// Close shuts down the connection and fails all pending requests with
// ErrChannelClosed.
func (c *WebsocketChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *WebsocketChannel) writeFrame(frame wsFrame) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.encoder.Encode(frame)
}

func (c *WebsocketChannel) readLoop() {
	defer func() {
		_ = c.Close()
		close(c.errs)
	}()

	decoder := json.NewDecoder(c.conn)
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case <-c.closed:
				return
			default:
			}
			decodeErrors++
			c.reportError(err)
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if frame.Event == ackEventName {
			c.completeWaiter(frame)
			continue
		}

		ev := Event{Name: frame.Event, Payload: frame.Payload}
		if frame.RequestID != "" {
			requestID := frame.RequestID
			ev.ackOnce = &sync.Once{}
			ev.ack = func(payload json.RawMessage, reason string) {
				_ = c.writeFrame(wsFrame{
					Event:     ackEventName,
					RequestID: requestID,
					Payload:   payload,
					Error:     reason,
				})
			}
		}

		for _, handler := range c.handlersFor(ev.Name) {
			handler(ev)
		}
	}
}

func (c *WebsocketChannel) completeWaiter(frame wsFrame) {
	c.mu.Lock()
	waiter := c.waiters[frame.RequestID]
	delete(c.waiters, frame.RequestID)
	c.mu.Unlock()
	if waiter == nil {
		return
	}
	select {
	case waiter <- ackResult{payload: frame.Payload, reason: frame.Error}:
	default:
	}
}

func (c *WebsocketChannel) handlersFor(event string) []Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.subs[event]
	handlers := make([]Handler, 0, len(entries))
	for _, entry := range entries {
		handlers = append(handlers, entry.handler)
	}
	return handlers
}

func (c *WebsocketChannel) reportError(err error) {
	if err == nil {
		return
	}
	select {
	case c.errs <- err:
	default:
	}
}
