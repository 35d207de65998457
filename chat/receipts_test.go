package chat

import (
	"testing"
	"time"

	"gosip/models"
	"gosip/transport"
)

func TestReadSignalMarksEveryMessageOnce(t *testing.T) {
	client, stub := newTestClient(t)
	room := directRoom("room-1", "f1", "Jason")
	client.SeedChats([]models.ChatRoom{room})
	conv, err := client.Open(room, []models.Message{
		{MessageID: "m1", ChatRoomID: "room-1", SenderGoSipID: "self", Text: "one", ReadBy: []string{"self"}},
		{MessageID: "m2", ChatRoomID: "room-1", SenderGoSipID: "self", Text: "two", ReadBy: []string{"self"}},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	stub.emit(transport.EventMessagesRead, transport.MessagesReadPayload{
		ChatRoomID: "room-1",
		Reader:     "f1",
	})
	waitForState(t, func() bool {
		msgs := conv.Messages()
		return msgs[0].SeenBy("f1") && msgs[1].SeenBy("f1")
	}, 2*time.Second, "read receipt to apply")

	// Replaying the receipt must not duplicate the reader.
	stub.emit(transport.EventMessagesRead, transport.MessagesReadPayload{
		ChatRoomID: "room-1",
		Reader:     "f1",
	})
	time.Sleep(100 * time.Millisecond)
	for _, msg := range conv.Messages() {
		seen := 0
		for _, reader := range msg.ReadBy {
			if reader == "f1" {
				seen++
			}
		}
		if seen != 1 {
			t.Fatalf("reader recorded %d times on %q", seen, msg.MessageID)
		}
	}
}

func TestReadSignalForOtherRoomIgnored(t *testing.T) {
	client, stub := newTestClient(t)
	room := directRoom("room-1", "f1", "Jason")
	client.SeedChats([]models.ChatRoom{room})
	conv, err := client.Open(room, []models.Message{
		{MessageID: "m1", ChatRoomID: "room-1", SenderGoSipID: "self", Text: "one", ReadBy: []string{"self"}},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	stub.emit(transport.EventMessagesRead, transport.MessagesReadPayload{
		ChatRoomID: "room-9",
		Reader:     "f1",
	})
	time.Sleep(100 * time.Millisecond)
	if conv.Messages()[0].SeenBy("f1") {
		t.Fatal("receipt for another room leaked in")
	}
}

func TestGroupReadSignal(t *testing.T) {
	client, stub := newTestClient(t)
	room := models.ChatRoom{
		ChatRoomID:   "g1",
		Kind:         models.RoomGroup,
		GroupName:    "Hikers",
		AdminGoSipID: "self",
		Members:      []string{"self", "f1", "f2"},
	}
	client.SeedGroupChats([]models.ChatRoom{room})
	conv, err := client.Open(room, []models.Message{
		{MessageID: "m1", ChatRoomID: "g1", SenderGoSipID: "self", Text: "trail?", ReadBy: []string{"self"}},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	stub.emit(transport.EventGroupMessagesRead, transport.MessagesReadPayload{
		ChatRoomID: "g1",
		Reader:     "f2",
	})
	waitForState(t, func() bool {
		return conv.Messages()[0].SeenBy("f2")
	}, 2*time.Second, "group receipt to apply")
	if conv.Messages()[0].SeenBy("f1") {
		t.Fatal("unrelated member marked as reader")
	}
}
