package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"gosip/models"
	"gosip/transport"
)

// Conversation is the live state of the one currently open chat room: its
// message history, read receipts, the remote typing indicator, and the
// viewport position. It is created by Client.Open and torn down by Close
// or by opening another room.
type Conversation struct {
	client *Client
	room   models.ChatRoom

	// guarded by client.mu
	messages   []models.Message
	viewport   *Viewport
	typistName string
	typingOut  bool
	closed     bool

	stopTimer   debouncer
	expiryTimer debouncer
	subs        []*transport.Subscription
}

// Open makes room the active conversation, seeding it with the fetched
// message history. Any previously open conversation is closed first; at
// most one conversation is live at a time. Messages in history addressed
// to other rooms are dropped.
func (c *Client) Open(room models.ChatRoom, history []models.Message) (*Conversation, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	if !c.joined {
		c.mu.Unlock()
		return nil, ErrNotJoined
	}
	prev := c.open
	c.open = nil
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	conv := &Conversation{
		client:   c,
		room:     room,
		viewport: NewViewport(c.opts.NearBottomThreshold),
	}
	for _, msg := range history {
		if msg.ChatRoomID == room.ChatRoomID {
			conv.messages = append(conv.messages, msg)
		}
	}
	conv.subscribe()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		for _, sub := range conv.subs {
			sub.Cancel()
		}
		return nil, ErrClientClosed
	}
	c.open = conv
	c.chats.patch(room.ChatRoomID, clearUnread)
	c.groups.patch(room.ChatRoomID, clearUnread)
	c.mu.Unlock()

	c.log.Debug().Str("chatRoomID", room.ChatRoomID).Msg("conversation opened")
	return conv, nil
}

func clearUnread(room *models.ChatRoom) { room.UnreadCount = 0 }

func (conv *Conversation) subscribe() {
	ch := conv.client.opts.Channel
	conv.subs = append(conv.subs,
		ch.Subscribe(transport.EventReceiveMessage, conv.handleReceiveMessage),
	)
	if conv.room.Kind == models.RoomGroup {
		conv.subs = append(conv.subs,
			ch.Subscribe(transport.EventGroupMessagesRead, conv.handleMessagesRead),
			ch.Subscribe(transport.EventGroupTyping, conv.handleGroupTyping),
			ch.Subscribe(transport.EventGroupStopTyping, conv.handleGroupStopTyping),
		)
		return
	}
	conv.subs = append(conv.subs,
		ch.Subscribe(transport.EventMessagesRead, conv.handleMessagesRead),
		ch.Subscribe(transport.EventTyping, conv.handleTyping),
		ch.Subscribe(transport.EventStopTyping, conv.handleStopTyping),
	)
}

// Room returns the conversation's room as it looked when opened.
func (conv *Conversation) Room() models.ChatRoom {
	return conv.room
}

// Messages returns a copy of the message history in arrival order.
func (conv *Conversation) Messages() []models.Message {
	c := conv.client
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(conv.messages))
	copy(out, conv.messages)
	return out
}

// SendMessage appends the message locally and emits it to the server.
// Blank messages are rejected before anything is stored or sent. The
// stored copy starts out read by the sender alone.
func (conv *Conversation) SendMessage(text string) (models.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.Message{}, ErrBlankMessage
	}
	c := conv.client
	c.mu.Lock()
	if conv.closed {
		c.mu.Unlock()
		return models.Message{}, ErrConversationClosed
	}
	msg := models.Message{
		MessageID:     uuid.NewString(),
		ChatRoomID:    conv.room.ChatRoomID,
		SenderGoSipID: c.selfID,
		Text:          trimmed,
		CreatedAt:     time.Now(),
		ReadBy:        []string{c.selfID},
	}
	conv.messages = append(conv.messages, msg)
	effect := conv.viewport.NoteLocalSend()
	flushTyping := conv.typingOut
	conv.typingOut = false
	c.mu.Unlock()

	conv.stopTimer.Stop()
	if flushTyping {
		conv.emitStopTyping()
	}
	var err error
	if conv.room.Kind == models.RoomGroup {
		err = c.opts.Channel.Emit(transport.EventSendGroupMessage, transport.SendGroupMessagePayload{
			Message:         trimmed,
			GroupChatRoomID: conv.room.ChatRoomID,
		})
	} else {
		err = c.opts.Channel.Emit(transport.EventSendMessage, transport.SendMessagePayload{
			To:         conv.room.FriendGoSipID,
			Message:    trimmed,
			ChatRoomID: conv.room.ChatRoomID,
		})
	}
	if err != nil {
		c.reportError(err)
	}
	conv.applyEffect(effect)
	return msg, nil
}

// handleReceiveMessage appends a remote message addressed to this room.
// Messages for other rooms are ignored here; the roster handler counts
// them. An in-view arrival is acknowledged straight away.
func (conv *Conversation) handleReceiveMessage(e transport.Event) {
	var payload transport.ReceiveMessagePayload
	if err := e.Decode(&payload); err != nil || payload.From == "" || payload.Message == "" {
		conv.client.log.Debug().Str("event", e.Name).Msg("dropping malformed message")
		return
	}
	c := conv.client
	c.mu.Lock()
	if conv.closed || payload.ChatRoomID != conv.room.ChatRoomID {
		c.mu.Unlock()
		return
	}
	createdAt := payload.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	readBy := []string{payload.From}
	effect := conv.viewport.NoteIncoming()
	if effect.MarkAsRead {
		readBy = append(readBy, c.selfID)
	}
	conv.messages = append(conv.messages, models.Message{
		MessageID:     uuid.NewString(),
		ChatRoomID:    payload.ChatRoomID,
		SenderGoSipID: payload.From,
		Text:          payload.Message,
		CreatedAt:     createdAt,
		ReadBy:        readBy,
	})
	c.mu.Unlock()
	conv.applyEffect(effect)
}

// ObserveScroll feeds the viewport a scroll position. Returning to the
// bottom with unseen messages acknowledges them.
func (conv *Conversation) ObserveScroll(scrollHeight, scrollTop, clientHeight int) {
	c := conv.client
	c.mu.Lock()
	if conv.closed {
		c.mu.Unlock()
		return
	}
	effect := conv.viewport.Observe(scrollHeight, scrollTop, clientHeight)
	c.mu.Unlock()
	conv.applyEffect(effect)
}

// JumpToLatest snaps the view to the newest message, acknowledging
// anything unseen.
func (conv *Conversation) JumpToLatest() {
	c := conv.client
	c.mu.Lock()
	if conv.closed {
		c.mu.Unlock()
		return
	}
	effect := conv.viewport.JumpToLatest()
	c.mu.Unlock()
	conv.applyEffect(effect)
}

// UnseenCount returns how many messages arrived while the reader was
// scrolled away from the bottom.
func (conv *Conversation) UnseenCount() int {
	c := conv.client
	c.mu.Lock()
	defer c.mu.Unlock()
	return conv.viewport.Unseen()
}

// NearBottom reports whether the reader is caught up with the newest
// message.
func (conv *Conversation) NearBottom() bool {
	c := conv.client
	c.mu.Lock()
	defer c.mu.Unlock()
	return conv.viewport.NearBottom()
}

// applyEffect carries out a viewport effect outside the client mutex.
func (conv *Conversation) applyEffect(effect ViewEffect) {
	if effect.MarkAsRead {
		conv.markLocalRead()
		conv.emitMarkAsRead()
	}
	if effect.Autoscroll && conv.client.opts.OnAutoscroll != nil {
		conv.client.opts.OnAutoscroll(conv.room.ChatRoomID)
	}
}

// Close tears the conversation down: subscriptions are cancelled, timers
// stopped, and an outstanding typing indicator is withdrawn so the other
// side is not left watching a ghost typist. Close is idempotent.
func (conv *Conversation) Close() {
	c := conv.client
	c.mu.Lock()
	if conv.closed {
		c.mu.Unlock()
		return
	}
	conv.closed = true
	if c.open == conv {
		c.open = nil
	}
	flushTyping := conv.typingOut
	conv.typingOut = false
	subs := conv.subs
	conv.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	conv.stopTimer.Stop()
	conv.expiryTimer.Stop()
	if flushTyping {
		conv.emitStopTyping()
	}
	c.log.Debug().Str("chatRoomID", conv.room.ChatRoomID).Msg("conversation closed")
}
