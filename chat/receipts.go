package chat

import (
	"gosip/models"
	"gosip/transport"
)

// handleMessagesRead applies a remote read signal: every stored message
// the reader has not already seen gains them in its readBy set. Readers
// are only ever added, never removed, so a repeated signal is a no-op.
func (conv *Conversation) handleMessagesRead(e transport.Event) {
	var payload transport.MessagesReadPayload
	if err := e.Decode(&payload); err != nil || payload.Reader == "" {
		conv.client.log.Debug().Str("event", e.Name).Msg("dropping malformed read signal")
		return
	}
	c := conv.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv.closed || payload.ChatRoomID != conv.room.ChatRoomID {
		return
	}
	conv.addReaderLocked(payload.Reader)
}

// markLocalRead records the local user as a reader of every stored
// message, mirroring the read signal sent to the server.
func (conv *Conversation) markLocalRead() {
	c := conv.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv.closed {
		return
	}
	conv.addReaderLocked(c.selfID)
}

func (conv *Conversation) addReaderLocked(reader string) {
	for i := range conv.messages {
		if !conv.messages[i].SeenBy(reader) {
			conv.messages[i].ReadBy = append(conv.messages[i].ReadBy, reader)
		}
	}
}

// emitMarkAsRead tells the server the local user has caught up on this
// room.
func (conv *Conversation) emitMarkAsRead() {
	c := conv.client
	goSipID, _ := c.identity()
	var err error
	if conv.room.Kind == models.RoomGroup {
		err = c.opts.Channel.Emit(transport.EventGroupMessagesMarkAsRead, conv.room.ChatRoomID)
	} else {
		err = c.opts.Channel.Emit(transport.EventMarkAsRead, transport.MarkAsReadPayload{
			ChatRoomID: conv.room.ChatRoomID,
			Reader:     goSipID,
		})
	}
	if err != nil {
		c.reportError(err)
	}
}
