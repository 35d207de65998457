// Package transport provides the realtime event channel the sync engine
// rides on: the event catalog, a Channel interface, an in-memory pipe for
// tests and offline use, and a websocket implementation.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrChannelClosed indicates the channel was closed before or during the call.
	ErrChannelClosed = errors.New("transport: channel is closed")
	// ErrAckTimeout indicates no acknowledgement arrived in time.
	ErrAckTimeout = errors.New("transport: acknowledgement timed out")
)

// AckError carries a rejection reason returned by the remote side of a Request.
type AckError struct {
	Reason string
}

func (e *AckError) Error() string {
	return fmt.Sprintf("transport: request rejected: %s", e.Reason)
}

// Event is one named event delivered to a subscriber.
type Event struct {
	Name    string
	Payload json.RawMessage

	ackOnce *sync.Once
	ack     func(payload json.RawMessage, reason string)
}

// Decode unmarshals the payload into v. A nil payload decodes to the zero value.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// CanAck reports whether the sender is waiting for an acknowledgement.
func (e Event) CanAck() bool {
	return e.ack != nil
}

// Ack completes the sender's Request with the given payload. Only the first
// acknowledgement for an event has any effect.
func (e Event) Ack(payload any) error {
	if e.ack == nil {
		return nil
	}
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	e.ackOnce.Do(func() { e.ack(raw, "") })
	return nil
}

// Nack rejects the sender's Request with a reason.
func (e Event) Nack(reason string) {
	if e.ack == nil {
		return
	}
	e.ackOnce.Do(func() { e.ack(nil, reason) })
}

// Handler consumes one event. Handlers on a channel end run one at a time,
// to completion, in delivery order.
type Handler func(Event)

// Channel is a bidirectional, named-event message channel.
//
// Emit is fire-and-forget. Request blocks until the remote side acknowledges
// the event, the context ends, or the channel closes. Subscriptions are
// additive; the channel is a shared resource and subscribers must cancel
// exactly what they registered.
type Channel interface {
	Emit(event string, payload any) error
	Request(ctx context.Context, event string, payload any) (json.RawMessage, error)
	Subscribe(event string, handler Handler) *Subscription
	Close() error
}

// Subscription detaches one registered handler. Cancel is idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel removes the handler from the channel. Events already queued may
// still be delivered to other subscribers, but not to this one.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return raw, nil
}
