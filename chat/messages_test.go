package chat

import (
	"testing"
	"time"

	"gosip/models"
	"gosip/transport"
)

func openDirect(t *testing.T, client *Client, room models.ChatRoom) *Conversation {
	t.Helper()
	client.SeedChats([]models.ChatRoom{room})
	conv, err := client.Open(room, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return conv
}

func TestSendMessageAppendsAndEmits(t *testing.T) {
	client, stub := newTestClient(t)
	conv := openDirect(t, client, directRoom("room-1", "f1", "Jason"))

	msg, err := conv.SendMessage("  hello there  ")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if msg.Text != "hello there" {
		t.Fatalf("text not trimmed: %q", msg.Text)
	}
	if msg.SenderGoSipID != "self" || !msg.SeenBy("self") {
		t.Fatalf("own message should start read by the sender: %+v", msg)
	}

	stored := conv.Messages()
	if len(stored) != 1 || stored[0].MessageID != msg.MessageID {
		t.Fatalf("message not stored: %+v", stored)
	}

	stub.waitForCount(transport.EventSendMessage, 1, 2*time.Second)
	ev, _ := stub.last(transport.EventSendMessage)
	var payload transport.SendMessagePayload
	if err := ev.Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.To != "f1" || payload.ChatRoomID != "room-1" || payload.Message != "hello there" {
		t.Fatalf("unexpected wire payload: %+v", payload)
	}
}

func TestSendMessageRejectsBlank(t *testing.T) {
	client, stub := newTestClient(t)
	conv := openDirect(t, client, directRoom("room-1", "f1", "Jason"))

	for _, text := range []string{"", "   ", "\n\t "} {
		if _, err := conv.SendMessage(text); err != ErrBlankMessage {
			t.Fatalf("text %q: expected ErrBlankMessage, got %v", text, err)
		}
	}
	if got := len(conv.Messages()); got != 0 {
		t.Fatalf("blank messages must not be stored, have %d", got)
	}
	stub.ensureCount(transport.EventSendMessage, 0, 100*time.Millisecond)
}

func TestReceiveMessageInViewIsAcknowledged(t *testing.T) {
	client, stub := newTestClient(t)
	conv := openDirect(t, client, directRoom("room-1", "f1", "Jason"))

	stub.emit(transport.EventReceiveMessage, transport.ReceiveMessagePayload{
		From:       "f1",
		Message:    "hi",
		ChatRoomID: "room-1",
	})
	waitForState(t, func() bool { return len(conv.Messages()) == 1 }, 2*time.Second, "message to arrive")

	got := conv.Messages()[0]
	if !got.SeenBy("f1") || !got.SeenBy("self") {
		t.Fatalf("in-view arrival should be read by both sides: %+v", got.ReadBy)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("arrival without a timestamp should be stamped locally")
	}

	stub.waitForCount(transport.EventMarkAsRead, 1, 2*time.Second)
	ev, _ := stub.last(transport.EventMarkAsRead)
	var payload transport.MarkAsReadPayload
	if err := ev.Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.ChatRoomID != "room-1" || payload.Reader != "self" {
		t.Fatalf("unexpected read signal: %+v", payload)
	}
}

func TestReceiveMessageWhileScrolledUp(t *testing.T) {
	client, stub := newTestClient(t)
	conv := openDirect(t, client, directRoom("room-1", "f1", "Jason"))
	conv.ObserveScroll(1000, 100, 400)

	for i := 0; i < 2; i++ {
		stub.emit(transport.EventReceiveMessage, transport.ReceiveMessagePayload{
			From:       "f1",
			Message:    "scrollback",
			ChatRoomID: "room-1",
		})
	}
	waitForState(t, func() bool { return conv.UnseenCount() == 2 }, 2*time.Second, "unseen counter")
	stub.ensureCount(transport.EventMarkAsRead, 0, 100*time.Millisecond)

	// Scrolling back down acknowledges everything at once.
	conv.ObserveScroll(1000, 550, 400)
	stub.waitForCount(transport.EventMarkAsRead, 1, 2*time.Second)
	if conv.UnseenCount() != 0 {
		t.Fatalf("unseen should reset, got %d", conv.UnseenCount())
	}
	for _, msg := range conv.Messages() {
		if !msg.SeenBy("self") {
			t.Fatalf("catching up should mark everything read locally: %+v", msg.ReadBy)
		}
	}
}

func TestReceiveMessageDropsMalformed(t *testing.T) {
	client, stub := newTestClient(t)
	conv := openDirect(t, client, directRoom("room-1", "f1", "Jason"))

	stub.emit(transport.EventReceiveMessage, transport.ReceiveMessagePayload{ChatRoomID: "room-1"})
	stub.emit(transport.EventReceiveMessage, transport.ReceiveMessagePayload{From: "f1", Message: "ok", ChatRoomID: "room-1"})

	waitForState(t, func() bool { return len(conv.Messages()) == 1 }, 2*time.Second, "valid message")
	if conv.Messages()[0].Text != "ok" {
		t.Fatalf("wrong survivor: %+v", conv.Messages())
	}
}

func TestOpenSeedsHistoryForRoomOnly(t *testing.T) {
	client, _ := newTestClient(t)
	room := directRoom("room-1", "f1", "Jason")
	client.SeedChats([]models.ChatRoom{room})

	history := []models.Message{
		{MessageID: "m1", ChatRoomID: "room-1", SenderGoSipID: "f1", Text: "old", ReadBy: []string{"f1", "self"}},
		{MessageID: "m2", ChatRoomID: "other", SenderGoSipID: "f9", Text: "stray"},
	}
	conv, err := client.Open(room, history)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	msgs := conv.Messages()
	if len(msgs) != 1 || msgs[0].MessageID != "m1" {
		t.Fatalf("history not filtered by room: %+v", msgs)
	}
}

func TestMessageRelayBetweenClients(t *testing.T) {
	alice, aliceStub := newTestClient(t, func(o *Options) {
		o.SelfID = "alice"
		o.SelfName = "Alice"
	})
	bob, bobStub := newTestClient(t, func(o *Options) {
		o.SelfID = "bob"
		o.SelfName = "Bob"
	})

	room := models.ChatRoom{ChatRoomID: "room-ab", Kind: models.RoomDirect, FriendGoSipID: "bob", FriendName: "Bob"}
	aliceConv, err := alice.Open(seedAndFind(t, alice, room), nil)
	if err != nil {
		t.Fatalf("alice Open failed: %v", err)
	}
	bobRoom := models.ChatRoom{ChatRoomID: "room-ab", Kind: models.RoomDirect, FriendGoSipID: "alice", FriendName: "Alice"}
	bobConv, err := bob.Open(seedAndFind(t, bob, bobRoom), nil)
	if err != nil {
		t.Fatalf("bob Open failed: %v", err)
	}

	// The stub server relays alice's wire payload to bob verbatim.
	sent, err := aliceConv.SendMessage("round trip")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	aliceStub.waitForCount(transport.EventSendMessage, 1, 2*time.Second)
	ev, _ := aliceStub.last(transport.EventSendMessage)
	var wire transport.SendMessagePayload
	if err := ev.Decode(&wire); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	bobStub.emit(transport.EventReceiveMessage, transport.ReceiveMessagePayload{
		From:       "alice",
		Message:    wire.Message,
		ChatRoomID: wire.ChatRoomID,
	})

	waitForState(t, func() bool { return len(bobConv.Messages()) == 1 }, 2*time.Second, "relay to land")
	got := bobConv.Messages()[0]
	if got.Text != sent.Text || got.ChatRoomID != sent.ChatRoomID || got.SenderGoSipID != "alice" {
		t.Fatalf("relay mangled the message: sent=%+v got=%+v", sent, got)
	}
}

func seedAndFind(t *testing.T, client *Client, room models.ChatRoom) models.ChatRoom {
	t.Helper()
	client.SeedChats([]models.ChatRoom{room})
	chats := client.Chats()
	if len(chats) != 1 {
		t.Fatalf("seed failed: %+v", chats)
	}
	return chats[0]
}
