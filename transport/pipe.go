package transport

import (
	"context"
	"encoding/json"
	"sync"
)

const pipeQueueDepth = 256

// Pipe is one end of an in-memory channel pair. It implements Channel with
// the same delivery contract as the websocket channel: events emitted on one
// end are dispatched, in order, on the other end's single dispatch goroutine.
//
// Pipes back every engine test and the offline demo path.
type Pipe struct {
	peer *Pipe

	mu        sync.Mutex
	subs      map[string][]*pipeSub
	nextSubID uint64

	queue     chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

type pipeSub struct {
	id      uint64
	handler Handler
}

// NewPipe returns two linked channel ends.
func NewPipe() (*Pipe, *Pipe) {
	a := newPipeEnd()
	b := newPipeEnd()
	a.peer = b
	b.peer = a
	go a.dispatchLoop()
	go b.dispatchLoop()
	return a, b
}

func newPipeEnd() *Pipe {
	return &Pipe{
		subs:   make(map[string][]*pipeSub),
		queue:  make(chan Event, pipeQueueDepth),
		closed: make(chan struct{}),
	}
}

// Emit sends a fire-and-forget event to the other end.
func (p *Pipe) Emit(event string, payload any) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	return p.deliver(Event{Name: event, Payload: raw})
}

// Request sends an event and blocks until the other end acknowledges it, the
// context ends, or this end closes. A context deadline maps to ErrAckTimeout.
func (p *Pipe) Request(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	result := make(chan ackResult, 1)
	ev := Event{
		Name:    event,
		Payload: raw,
		ackOnce: &sync.Once{},
		ack: func(ackPayload json.RawMessage, reason string) {
			select {
			case result <- ackResult{payload: ackPayload, reason: reason}:
			default:
			}
		},
	}
	if err := p.deliver(ev); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrAckTimeout
		}
		return nil, ctx.Err()
	case <-p.closed:
		return nil, ErrChannelClosed
	case res := <-result:
		if res.reason != "" {
			return nil, &AckError{Reason: res.reason}
		}
		return res.payload, nil
	}
}

type ackResult struct {
	payload json.RawMessage
	reason  string
}

// Subscribe registers a handler for one event name on this end.
func (p *Pipe) Subscribe(event string, handler Handler) *Subscription {
	p.mu.Lock()
	p.nextSubID++
	sub := &pipeSub{id: p.nextSubID, handler: handler}
	p.subs[event] = append(p.subs[event], sub)
	p.mu.Unlock()

	return newSubscription(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		entries := p.subs[event]
		for i, entry := range entries {
			if entry.id == sub.id {
				p.subs[event] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	})
}

// Close shuts down this end. Queued events stop being dispatched; Emit and
// Request fail with ErrChannelClosed afterwards.
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	return nil
}

func (p *Pipe) deliver(ev Event) error {
	peer := p.peer
	// A ready queue send would race the closed channels in a single
	// select, letting Emit on a closed end randomly succeed.
	select {
	case <-p.closed:
		return ErrChannelClosed
	case <-peer.closed:
		return ErrChannelClosed
	default:
	}
	select {
	case <-p.closed:
		return ErrChannelClosed
	case <-peer.closed:
		return ErrChannelClosed
	case peer.queue <- ev:
		return nil
	}
}

func (p *Pipe) dispatchLoop() {
	for {
		select {
		case <-p.closed:
			return
		case ev := <-p.queue:
			for _, handler := range p.handlersFor(ev.Name) {
				handler(ev)
			}
		}
	}
}

func (p *Pipe) handlersFor(event string) []Handler {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries := p.subs[event]
	handlers := make([]Handler, 0, len(entries))
	for _, entry := range entries {
		handlers = append(handlers, entry.handler)
	}
	return handlers
}
