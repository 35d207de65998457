package models

import "time"

// Message is one chat message as held in the client's memory.
//
// ReadBy always contains the sender and only ever grows; the chat package
// owns that invariant, this type is plain data.
type Message struct {
	MessageID     string    `json:"messageID,omitempty"`
	ChatRoomID    string    `json:"chatRoomID"`
	SenderGoSipID string    `json:"senderGoSipID"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"createdAt"`
	ReadBy        []string  `json:"readBy"`
}

// SeenBy reports whether the given identity is recorded in ReadBy.
func (m Message) SeenBy(goSipID string) bool {
	for _, id := range m.ReadBy {
		if id == goSipID {
			return true
		}
	}
	return false
}
