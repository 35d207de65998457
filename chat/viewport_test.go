package chat

import "testing"

func TestViewportStartsAtBottom(t *testing.T) {
	v := NewViewport(100)
	if !v.NearBottom() {
		t.Fatal("new viewport should start near the bottom")
	}
	if v.Unseen() != 0 {
		t.Fatalf("new viewport should have no unseen messages, got %d", v.Unseen())
	}
}

func TestViewportIncomingAtBottom(t *testing.T) {
	v := NewViewport(100)
	effect := v.NoteIncoming()
	if !effect.MarkAsRead || !effect.Autoscroll {
		t.Fatalf("arrival in view should acknowledge and scroll, got %+v", effect)
	}
	if v.Unseen() != 0 {
		t.Fatalf("in-view arrival should not count as unseen, got %d", v.Unseen())
	}
}

func TestViewportIncomingWhileScrolledUp(t *testing.T) {
	v := NewViewport(100)
	// 1000px of history, reader parked 500px up
	v.Observe(1000, 100, 400)
	if v.NearBottom() {
		t.Fatal("reader should be away from the bottom")
	}
	for i := 0; i < 3; i++ {
		if effect := v.NoteIncoming(); effect.MarkAsRead || effect.Autoscroll {
			t.Fatalf("out-of-view arrival should be silent, got %+v", effect)
		}
	}
	if v.Unseen() != 3 {
		t.Fatalf("expected 3 unseen, got %d", v.Unseen())
	}
}

func TestViewportReturnToBottomAcknowledges(t *testing.T) {
	v := NewViewport(100)
	v.Observe(1000, 100, 400)
	v.NoteIncoming()
	v.NoteIncoming()

	effect := v.Observe(1000, 550, 400)
	if !effect.MarkAsRead {
		t.Fatalf("returning with unseen messages should acknowledge, got %+v", effect)
	}
	if v.Unseen() != 0 {
		t.Fatalf("unseen should reset on return, got %d", v.Unseen())
	}

	// Staying at the bottom must not re-acknowledge.
	if effect := v.Observe(1000, 560, 400); effect.MarkAsRead {
		t.Fatalf("no transition happened, got %+v", effect)
	}
}

func TestViewportReturnWithoutUnseenIsSilent(t *testing.T) {
	v := NewViewport(100)
	v.Observe(1000, 100, 400)
	if effect := v.Observe(1000, 550, 400); effect.MarkAsRead {
		t.Fatalf("nothing arrived, no signal expected, got %+v", effect)
	}
}

func TestViewportJumpToLatest(t *testing.T) {
	v := NewViewport(100)
	v.Observe(1000, 100, 400)
	v.NoteIncoming()

	effect := v.JumpToLatest()
	if !effect.MarkAsRead || !effect.Autoscroll {
		t.Fatalf("jump with unseen should acknowledge and scroll, got %+v", effect)
	}
	if !v.NearBottom() || v.Unseen() != 0 {
		t.Fatalf("jump should land at the bottom with nothing unseen")
	}

	if effect := v.JumpToLatest(); effect.MarkAsRead {
		t.Fatalf("second jump has nothing to acknowledge, got %+v", effect)
	}
}

func TestViewportLocalSendFollowsWhenAtBottom(t *testing.T) {
	v := NewViewport(100)
	if effect := v.NoteLocalSend(); !effect.Autoscroll || effect.MarkAsRead {
		t.Fatalf("own message at bottom should only scroll, got %+v", effect)
	}
	v.Observe(1000, 100, 400)
	if effect := v.NoteLocalSend(); effect.Autoscroll {
		t.Fatalf("own message while scrolled up should not yank the view, got %+v", effect)
	}
	if v.Unseen() != 0 {
		t.Fatalf("own messages never count as unseen, got %d", v.Unseen())
	}
}
