package chat

import (
	"gosip/models"
	"gosip/transport"
)

// InputChanged records a keystroke in the message composer. Every
// keystroke emits a typing signal and pushes the pending stop signal out
// by the quiet interval, so a steady typist produces exactly one stop,
// after the typing truly pauses.
func (conv *Conversation) InputChanged() {
	c := conv.client
	c.mu.Lock()
	if conv.closed {
		c.mu.Unlock()
		return
	}
	conv.typingOut = true
	quiet := c.opts.TypingQuietInterval
	c.mu.Unlock()

	conv.emitTyping()
	conv.stopTimer.Reset(quiet, conv.flushStopTyping)
}

func (conv *Conversation) flushStopTyping() {
	c := conv.client
	c.mu.Lock()
	if conv.closed || !conv.typingOut {
		c.mu.Unlock()
		return
	}
	conv.typingOut = false
	c.mu.Unlock()
	conv.emitStopTyping()
}

func (conv *Conversation) emitTyping() {
	c := conv.client
	_, name := c.identity()
	var err error
	if conv.room.Kind == models.RoomGroup {
		err = c.opts.Channel.Emit(transport.EventGroupTyping, transport.GroupTypingPayload{
			Name:            name,
			GroupChatRoomID: conv.room.ChatRoomID,
		})
	} else {
		err = c.opts.Channel.Emit(transport.EventTyping, transport.TypingPayload{
			To:         conv.room.FriendGoSipID,
			ChatRoomID: conv.room.ChatRoomID,
		})
	}
	if err != nil {
		c.reportError(err)
	}
}

func (conv *Conversation) emitStopTyping() {
	c := conv.client
	_, name := c.identity()
	var err error
	if conv.room.Kind == models.RoomGroup {
		err = c.opts.Channel.Emit(transport.EventGroupStopTyping, transport.GroupTypingPayload{
			Name:            name,
			GroupChatRoomID: conv.room.ChatRoomID,
		})
	} else {
		err = c.opts.Channel.Emit(transport.EventStopTyping, transport.TypingPayload{
			To:         conv.room.FriendGoSipID,
			ChatRoomID: conv.room.ChatRoomID,
		})
	}
	if err != nil {
		c.reportError(err)
	}
}

// Typist returns the display name of whoever is currently typing in this
// conversation, if anyone.
func (conv *Conversation) Typist() (string, bool) {
	c := conv.client
	c.mu.Lock()
	defer c.mu.Unlock()
	return conv.typistName, conv.typistName != ""
}

// handleTyping shows the direct typing indicator. A stop signal that never
// arrives is covered by the expiry timer.
func (conv *Conversation) handleTyping(e transport.Event) {
	var payload transport.TypingPayload
	if err := e.Decode(&payload); err != nil {
		return
	}
	c := conv.client
	c.mu.Lock()
	if conv.closed || payload.ChatRoomID != conv.room.ChatRoomID {
		c.mu.Unlock()
		return
	}
	conv.typistName = conv.room.FriendName
	expiry := c.opts.TypingIndicatorExpiry
	c.mu.Unlock()
	conv.expiryTimer.Reset(expiry, conv.expireTypist)
}

func (conv *Conversation) handleStopTyping(e transport.Event) {
	var payload transport.TypingPayload
	if err := e.Decode(&payload); err != nil {
		return
	}
	c := conv.client
	c.mu.Lock()
	if conv.closed || payload.ChatRoomID != conv.room.ChatRoomID {
		c.mu.Unlock()
		return
	}
	conv.typistName = ""
	c.mu.Unlock()
	conv.expiryTimer.Stop()
}

func (conv *Conversation) handleGroupTyping(e transport.Event) {
	var payload transport.GroupTypingPayload
	if err := e.Decode(&payload); err != nil {
		return
	}
	c := conv.client
	c.mu.Lock()
	if conv.closed || payload.GroupChatRoomID != conv.room.ChatRoomID {
		c.mu.Unlock()
		return
	}
	conv.typistName = payload.Name
	expiry := c.opts.TypingIndicatorExpiry
	c.mu.Unlock()
	conv.expiryTimer.Reset(expiry, conv.expireTypist)
}

func (conv *Conversation) handleGroupStopTyping(e transport.Event) {
	var payload transport.GroupTypingPayload
	if err := e.Decode(&payload); err != nil {
		return
	}
	c := conv.client
	c.mu.Lock()
	if conv.closed || payload.GroupChatRoomID != conv.room.ChatRoomID {
		c.mu.Unlock()
		return
	}
	conv.typistName = ""
	c.mu.Unlock()
	conv.expiryTimer.Stop()
}

// expireTypist clears a typing indicator whose stop signal went missing.
func (conv *Conversation) expireTypist() {
	c := conv.client
	c.mu.Lock()
	conv.typistName = ""
	c.mu.Unlock()
}
