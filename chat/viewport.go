package chat

// Viewport tracks whether the reader of a conversation is positioned near
// its newest message, and counts messages that arrived while they were
// scrolled up. Methods return the effects the caller must carry out; the
// Viewport itself never touches the channel.
//
// Viewport is not safe for concurrent use. The owning Conversation guards
// it with the client mutex.
type Viewport struct {
	threshold  int
	nearBottom bool
	unseen     int
}

// ViewEffect describes what the caller must do after a viewport update.
type ViewEffect struct {
	// MarkAsRead is set when the reader just caught up on messages that
	// arrived out of view, so a read signal should be emitted.
	MarkAsRead bool
	// Autoscroll is set when the view should snap to the newest message.
	Autoscroll bool
}

// NewViewport returns a viewport positioned at the newest message.
// threshold is the distance in pixels from the bottom within which the
// reader still counts as caught up.
func NewViewport(threshold int) *Viewport {
	return &Viewport{threshold: threshold, nearBottom: true}
}

// NearBottom reports whether the reader is within the threshold of the
// newest message.
func (v *Viewport) NearBottom() bool {
	return v.nearBottom
}

// Unseen returns the number of messages that arrived while the reader was
// scrolled away from the bottom.
func (v *Viewport) Unseen() int {
	return v.unseen
}

// Observe records a scroll position. Crossing from scrolled-up to
// near-bottom clears the unseen counter and, if anything had piled up,
// requests a read signal. Moving away from the bottom has no effect beyond
// flipping the position.
func (v *Viewport) Observe(scrollHeight, scrollTop, clientHeight int) ViewEffect {
	near := scrollHeight-scrollTop-clientHeight < v.threshold
	wasNear := v.nearBottom
	v.nearBottom = near
	if near && !wasNear {
		hadUnseen := v.unseen > 0
		v.unseen = 0
		return ViewEffect{MarkAsRead: hadUnseen}
	}
	return ViewEffect{}
}

// NoteIncoming records a newly arrived remote message. A reader at the
// bottom sees it immediately, so it is acknowledged and the view scrolls;
// a reader further up only has the unseen counter bumped.
func (v *Viewport) NoteIncoming() ViewEffect {
	if v.nearBottom {
		return ViewEffect{MarkAsRead: true, Autoscroll: true}
	}
	v.unseen++
	return ViewEffect{}
}

// NoteLocalSend records a message the reader just sent themselves. It never
// counts as unseen, but a reader at the bottom should follow it down.
func (v *Viewport) NoteLocalSend() ViewEffect {
	if v.nearBottom {
		return ViewEffect{Autoscroll: true}
	}
	return ViewEffect{}
}

// JumpToLatest moves the reader straight to the newest message, clearing
// the unseen counter and requesting a read signal if anything had piled up.
func (v *Viewport) JumpToLatest() ViewEffect {
	hadUnseen := v.unseen > 0
	v.nearBottom = true
	v.unseen = 0
	return ViewEffect{MarkAsRead: hadUnseen, Autoscroll: true}
}
