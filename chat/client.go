// Package chat implements the client-side conversation engine: the session
// join handshake, the searchable chat and group rosters, presence tracking,
// friend requests, and the message, receipt, typing, and viewport state of
// the currently open conversation. It speaks to the server exclusively
// through a transport.Channel and keeps no state of its own across process
// restarts.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gosip/models"
	"gosip/transport"
)

var (
	// ErrNotJoined is returned when an operation needs a live session but
	// Start has not completed a join yet.
	ErrNotJoined = errors.New("chat: session not joined")

	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("chat: client closed")

	// ErrActionPending is returned when an acknowledged action is submitted
	// again while its first submission is still waiting for the server.
	ErrActionPending = errors.New("chat: action already pending")

	// ErrBlankMessage is returned when a message is empty after trimming
	// whitespace.
	ErrBlankMessage = errors.New("chat: message is blank")

	// ErrConversationClosed is returned by operations on a conversation
	// that has been closed or replaced.
	ErrConversationClosed = errors.New("chat: conversation closed")

	// ErrNotAdmin is returned when a group action is restricted to the
	// group's admin.
	ErrNotAdmin = errors.New("chat: not the group admin")

	// ErrAdminHandoffRequired is returned when the admin tries to leave a
	// group without naming a successor.
	ErrAdminHandoffRequired = errors.New("chat: admin must hand off before leaving")
)

const (
	defaultTypingQuietInterval   = 1500 * time.Millisecond
	defaultTypingIndicatorExpiry = 5 * time.Second
	defaultNearBottomThreshold   = 100
	defaultAckTimeout            = 10 * time.Second

	errorQueueDepth = 64
)

// Options configures a Client. Channel is required; everything else has a
// usable default.
type Options struct {
	// Channel carries all traffic to and from the server.
	Channel transport.Channel

	// Logger receives structured events. Defaults to a no-op logger.
	Logger zerolog.Logger

	// SelfID and SelfName identify the local user. SelfID may be empty at
	// construction time; the join is then deferred until SetIdentity.
	SelfID   string
	SelfName string

	// TypingQuietInterval is how long after the last keystroke the typing
	// indicator is withdrawn.
	TypingQuietInterval time.Duration

	// TypingIndicatorExpiry is how long a remote typing indicator is shown
	// when no stop signal ever arrives.
	TypingIndicatorExpiry time.Duration

	// NearBottomThreshold is the distance in pixels from the bottom of the
	// message view within which the reader counts as caught up.
	NearBottomThreshold int

	// AckTimeout bounds how long acknowledged actions wait for the server.
	AckTimeout time.Duration

	// CloseChannel makes Close also close the underlying channel. Leave it
	// unset when the channel is shared with other components.
	CloseChannel bool

	// OnConversationRemoved is called, if set, when the currently open
	// conversation disappears from the roster (friend removed, group
	// deleted, or the local user removed from a group) and the view should
	// navigate away.
	OnConversationRemoved func(chatRoomID string)

	// OnAutoscroll is called, if set, when the open conversation's view
	// should snap to the newest message.
	OnAutoscroll func(chatRoomID string)
}

func (o *Options) fillDefaults() {
	if o.TypingQuietInterval <= 0 {
		o.TypingQuietInterval = defaultTypingQuietInterval
	}
	if o.TypingIndicatorExpiry <= 0 {
		o.TypingIndicatorExpiry = defaultTypingIndicatorExpiry
	}
	if o.NearBottomThreshold <= 0 {
		o.NearBottomThreshold = defaultNearBottomThreshold
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = defaultAckTimeout
	}
}

// Client is the conversation engine for one signed-in user. All exported
// methods are safe for concurrent use.
type Client struct {
	opts Options
	log  zerolog.Logger

	mu            sync.Mutex
	selfID        string
	selfName      string
	joinRequested bool
	joined        bool
	closed        bool

	chats    rosterList
	groups   rosterList
	presence *presenceSet

	requests      []models.FriendRequest
	notifications int

	open *Conversation

	pending map[string]struct{}
	subs    []*transport.Subscription
	errors  chan error
}

// New builds a Client over the given channel. It does not touch the wire;
// call Start to join the realtime session.
func New(opts Options) (*Client, error) {
	if opts.Channel == nil {
		return nil, errors.New("chat: channel is required")
	}
	opts.fillDefaults()
	c := &Client{
		opts:     opts,
		log:      opts.Logger.With().Str("component", "chat-client").Logger(),
		selfID:   opts.SelfID,
		selfName: opts.SelfName,
		presence: newPresenceSet(),
		pending:  make(map[string]struct{}),
		errors:   make(chan error, errorQueueDepth),
	}
	return c, nil
}

// Start joins the realtime session and registers the client's event
// handlers. When no identity is known yet the join is deferred until
// SetIdentity provides one. Calling Start again after a completed join is
// a no-op, so re-renders never duplicate subscriptions.
func (c *Client) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.joinRequested = true
	ready := c.selfID != "" && !c.joined
	if ready {
		c.joined = true
	}
	c.mu.Unlock()
	if !ready {
		if c.SelfID() == "" {
			c.log.Debug().Msg("join deferred until identity is known")
		}
		return nil
	}
	c.join()
	return nil
}

// SetIdentity installs the local user's identity. If Start already ran
// while the identity was unknown, the deferred join happens now.
func (c *Client) SetIdentity(goSipID, name string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.selfID = goSipID
	c.selfName = name
	ready := c.joinRequested && !c.joined && goSipID != ""
	if ready {
		c.joined = true
	}
	c.mu.Unlock()
	if ready {
		c.join()
	}
}

// SelfID returns the local user's identity, which may be empty before
// SetIdentity.
func (c *Client) SelfID() string {
	id, _ := c.identity()
	return id
}

// identity snapshots the local identity under the mutex; emit paths running
// outside the lock use this instead of reading the fields directly.
func (c *Client) identity() (goSipID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID, c.selfName
}

func (c *Client) join() {
	goSipID, _ := c.identity()
	c.log.Info().Str("goSipID", goSipID).Msg("joining realtime session")
	if err := c.opts.Channel.Emit(transport.EventJoin, transport.JoinPayload{GoSipID: goSipID}); err != nil {
		c.reportError(fmt.Errorf("join: %w", err))
	}
	c.subscribeClientHandlers()
}

func (c *Client) subscribeClientHandlers() {
	handlers := []struct {
		event   string
		handler transport.Handler
	}{
		{transport.EventUserOnline, c.handleUserOnline},
		{transport.EventUserOffline, c.handleUserOffline},
		{transport.EventOnlineFriendsList, c.handleOnlineFriendsList},
		{transport.EventUnreadCountUpdate, c.handleUnreadCountUpdate},
		{transport.EventReceiveMessage, c.handleRosterMessage},
		{transport.EventFriendRequestReceived, c.handleFriendRequestReceived},
		{transport.EventAcceptedRequest, c.handleAcceptedRequest},
		{transport.EventRemovedFriend, c.handleRemovedFriend},
		{transport.EventGroupCreated, c.handleGroupAdded},
		{transport.EventAddedToNewGroup, c.handleGroupAdded},
		{transport.EventGroupUpdated, c.handleGroupUpdated},
		{transport.EventGroupDeleted, c.handleGroupDeleted},
		{transport.EventLeftGroup, c.handleLeftGroup},
		{transport.EventAdminLeftGroup, c.handleAdminLeftGroup},
		{transport.EventMembersAdded, c.handleMembersAdded},
	}
	subs := make([]*transport.Subscription, 0, len(handlers))
	for _, h := range handlers {
		subs = append(subs, c.opts.Channel.Subscribe(h.event, h.handler))
	}
	c.mu.Lock()
	c.subs = append(c.subs, subs...)
	c.mu.Unlock()
}

// handleUserOnline flips a contact online across the roster.
func (c *Client) handleUserOnline(e transport.Event) {
	var goSipID string
	if err := e.Decode(&goSipID); err != nil || goSipID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed presence payload")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.presence.setOnline(goSipID) {
		c.chats.setFriendOnline(goSipID, true)
	}
}

func (c *Client) handleUserOffline(e transport.Event) {
	var goSipID string
	if err := e.Decode(&goSipID); err != nil || goSipID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed presence payload")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.presence.setOffline(goSipID) {
		c.chats.setFriendOnline(goSipID, false)
	}
}

// handleOnlineFriendsList replaces the presence set with a full snapshot
// and reconciles every direct entry against it.
func (c *Client) handleOnlineFriendsList(e transport.Event) {
	var ids []string
	if err := e.Decode(&ids); err != nil {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed presence snapshot")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence.replace(ids)
	changed := false
	for i := range c.chats.backing {
		online := c.presence.isOnline(c.chats.backing[i].FriendGoSipID)
		if c.chats.backing[i].FriendOnline != online {
			c.chats.backing[i].FriendOnline = online
			changed = true
		}
	}
	if changed {
		c.chats.refresh()
	}
}

// handleUnreadCountUpdate applies an authoritative unread count from the
// server to whichever roster holds the room.
func (c *Client) handleUnreadCountUpdate(e transport.Event) {
	var payload transport.UnreadCountUpdatePayload
	if err := e.Decode(&payload); err != nil || payload.ChatRoomID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed unread update")
		return
	}
	set := func(room *models.ChatRoom) { room.UnreadCount = payload.Count }
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.chats.patch(payload.ChatRoomID, set) && !c.groups.patch(payload.ChatRoomID, set) {
		c.log.Debug().Str("chatRoomID", payload.ChatRoomID).Msg("unread update for unknown room")
	}
}

// handleRosterMessage bumps the unread counter for messages addressed to a
// room that is not currently open. The open conversation consumes its own
// copy of the event.
func (c *Client) handleRosterMessage(e transport.Event) {
	var payload transport.ReceiveMessagePayload
	if err := e.Decode(&payload); err != nil || payload.ChatRoomID == "" {
		return
	}
	bump := func(room *models.ChatRoom) { room.UnreadCount++ }
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open != nil && c.open.room.ChatRoomID == payload.ChatRoomID {
		return
	}
	if !c.chats.patch(payload.ChatRoomID, bump) && !c.groups.patch(payload.ChatRoomID, bump) {
		c.log.Debug().Str("chatRoomID", payload.ChatRoomID).Msg("message for unknown room")
	}
}

// handleFriendRequestReceived queues an incoming friend request, once per
// sender, and bumps the notification counter.
func (c *Client) handleFriendRequestReceived(e transport.Event) {
	var payload transport.FriendRequestReceivedPayload
	if err := e.Decode(&payload); err != nil || payload.GoSipID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed friend request")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, req := range c.requests {
		if req.GoSipID == payload.GoSipID {
			return
		}
	}
	c.requests = append(c.requests, models.FriendRequest{
		Name:       payload.Name,
		GoSipID:    payload.GoSipID,
		ProfilePic: payload.ProfilePic,
	})
	c.notifications++
}

// handleAcceptedRequest adds the new direct conversation once the other
// side accepts our friend request.
func (c *Client) handleAcceptedRequest(e transport.Event) {
	var payload transport.AcceptedRequestPayload
	if err := e.Decode(&payload); err != nil || payload.ChatRoomID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed accept notice")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats.add(models.ChatRoom{
		ChatRoomID:       payload.ChatRoomID,
		Kind:             models.RoomDirect,
		FriendGoSipID:    payload.GoSipID,
		FriendName:       payload.Name,
		FriendProfilePic: payload.ProfilePic,
		FriendOnline:     c.presence.isOnline(payload.GoSipID),
	})
	for i, req := range c.requests {
		if req.GoSipID == payload.GoSipID {
			c.requests = append(c.requests[:i], c.requests[i+1:]...)
			break
		}
	}
}

// handleRemovedFriend drops the direct conversation and closes it if it
// was open.
func (c *Client) handleRemovedFriend(e transport.Event) {
	var payload transport.RemovedFriendPayload
	if err := e.Decode(&payload); err != nil || payload.ChatRoomID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed removal notice")
		return
	}
	c.mu.Lock()
	c.chats.remove(payload.ChatRoomID)
	c.mu.Unlock()
	c.evictOpen(payload.ChatRoomID)
}

func (c *Client) handleGroupAdded(e transport.Event) {
	var payload transport.GroupPayload
	if err := e.Decode(&payload); err != nil || payload.GroupChatRoomID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed group notice")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups.add(groupRoomFromPayload(payload))
}

func (c *Client) handleGroupUpdated(e transport.Event) {
	var payload transport.GroupUpdatedPayload
	if err := e.Decode(&payload); err != nil || payload.GroupChatRoomID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed group update")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups.patch(payload.GroupChatRoomID, func(room *models.ChatRoom) {
		if payload.Name != "" {
			room.GroupName = payload.Name
		}
		if payload.Avatar != "" {
			room.GroupAvatar = payload.Avatar
		}
	})
}

func (c *Client) handleGroupDeleted(e transport.Event) {
	var payload transport.GroupDeletedPayload
	if err := e.Decode(&payload); err != nil || payload.GroupChatRoomID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed group deletion")
		return
	}
	c.mu.Lock()
	c.groups.remove(payload.GroupChatRoomID)
	c.mu.Unlock()
	c.evictOpen(payload.GroupChatRoomID)
}

// handleLeftGroup removes the departing member from the group, or drops
// the group entirely when the departing member is the local user.
func (c *Client) handleLeftGroup(e transport.Event) {
	var payload transport.LeftGroupPayload
	if err := e.Decode(&payload); err != nil || payload.GroupChatRoomID == "" || payload.GoSipID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed leave notice")
		return
	}
	c.mu.Lock()
	if payload.GoSipID == c.selfID {
		c.groups.remove(payload.GroupChatRoomID)
		c.mu.Unlock()
		c.evictOpen(payload.GroupChatRoomID)
		return
	}
	empty := false
	c.groups.patch(payload.GroupChatRoomID, func(room *models.ChatRoom) {
		room.Members = withoutMember(room.Members, payload.GoSipID)
		empty = len(room.Members) == 0
	})
	if empty {
		c.groups.remove(payload.GroupChatRoomID)
	}
	c.mu.Unlock()
}

// handleAdminLeftGroup installs the successor admin and removes the
// departed one from the member list.
func (c *Client) handleAdminLeftGroup(e transport.Event) {
	var payload transport.AdminLeftGroupPayload
	if err := e.Decode(&payload); err != nil || payload.GroupChatRoomID == "" || payload.NewAdminGoSipID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed admin handoff")
		return
	}
	c.mu.Lock()
	if payload.LeftGoSipID == c.selfID {
		c.groups.remove(payload.GroupChatRoomID)
		c.mu.Unlock()
		c.evictOpen(payload.GroupChatRoomID)
		return
	}
	c.groups.patch(payload.GroupChatRoomID, func(room *models.ChatRoom) {
		room.AdminGoSipID = payload.NewAdminGoSipID
		room.Members = withoutMember(room.Members, payload.LeftGoSipID)
	})
	c.mu.Unlock()
}

func (c *Client) handleMembersAdded(e transport.Event) {
	var payload transport.MembersAddedPayload
	if err := e.Decode(&payload); err != nil || payload.GroupChatRoomID == "" {
		c.log.Debug().Str("event", e.Name).Msg("dropping malformed member notice")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups.patch(payload.GroupChatRoomID, func(room *models.ChatRoom) {
		for _, member := range payload.Members {
			if !room.HasMember(member) {
				room.Members = append(room.Members, member)
			}
		}
	})
}

// evictOpen closes the open conversation if it points at the given room
// and notifies the view that it must navigate away.
func (c *Client) evictOpen(chatRoomID string) {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()
	if open == nil || open.room.ChatRoomID != chatRoomID {
		return
	}
	open.Close()
	if c.opts.OnConversationRemoved != nil {
		c.opts.OnConversationRemoved(chatRoomID)
	}
}

// Chats returns the visible direct conversations under the current filter.
func (c *Client) Chats() []models.ChatRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chats.rooms()
}

// GroupChats returns the visible group conversations under the current
// filter.
func (c *Client) GroupChats() []models.ChatRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groups.rooms()
}

// FilterChats installs a search query over the direct conversation list.
// An empty query restores the full list.
func (c *Client) FilterChats(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats.setFilter(query)
}

// FilterGroupChats installs a search query over the group list.
func (c *Client) FilterGroupChats(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups.setFilter(query)
}

// FriendRequests returns the pending incoming requests.
func (c *Client) FriendRequests() []models.FriendRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.FriendRequest(nil), c.requests...)
}

// Notifications returns how many friend requests arrived since the counter
// was last cleared.
func (c *Client) Notifications() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifications
}

// ClearNotifications resets the friend request notification counter, as
// when the requests panel is opened.
func (c *Client) ClearNotifications() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = 0
}

// Online reports whether the given contact is currently online.
func (c *Client) Online(goSipID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence.isOnline(goSipID)
}

// SeedChats installs the initial direct conversation list, typically
// fetched over HTTP before the realtime session starts. Online flags are
// reconciled against the presence set.
func (c *Client) SeedChats(rooms []models.ChatRoom) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seeded := make([]models.ChatRoom, len(rooms))
	copy(seeded, rooms)
	for i := range seeded {
		seeded[i].Kind = models.RoomDirect
		seeded[i].FriendOnline = c.presence.isOnline(seeded[i].FriendGoSipID)
	}
	c.chats.replace(seeded)
}

// SeedGroupChats installs the initial group conversation list.
func (c *Client) SeedGroupChats(rooms []models.ChatRoom) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seeded := make([]models.ChatRoom, len(rooms))
	copy(seeded, rooms)
	for i := range seeded {
		seeded[i].Kind = models.RoomGroup
		seeded[i].Members = append([]string(nil), seeded[i].Members...)
	}
	c.groups.replace(seeded)
}

// SeedFriendRequests installs the pending friend requests and the unseen
// notification count.
func (c *Client) SeedFriendRequests(requests []models.FriendRequest, unseen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append([]models.FriendRequest(nil), requests...)
	c.notifications = unseen
}

// Errors exposes asynchronous failures such as emit errors from event
// handlers. The channel is closed by Close.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// Close cancels every subscription, closes the open conversation, and
// optionally closes the underlying channel. It is idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	open := c.open
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	if open != nil {
		open.Close()
	}
	if c.opts.CloseChannel {
		if err := c.opts.Channel.Close(); err != nil {
			c.log.Debug().Err(err).Msg("channel close")
		}
	}

	c.mu.Lock()
	close(c.errors)
	c.mu.Unlock()
	c.log.Info().Msg("chat client closed")
}

func (c *Client) reportError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.errors <- err:
	default:
		c.log.Warn().Err(err).Msg("error queue full, dropping")
	}
}

// request performs one acknowledged exchange bounded by the ack timeout.
func (c *Client) request(event string, payload any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.AckTimeout)
	defer cancel()
	ack, err := c.opts.Channel.Request(ctx, event, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", event, err)
	}
	return ack, nil
}

func groupRoomFromPayload(payload transport.GroupPayload) models.ChatRoom {
	return models.ChatRoom{
		ChatRoomID:   payload.GroupChatRoomID,
		Kind:         models.RoomGroup,
		GroupName:    payload.Name,
		GroupAvatar:  payload.Avatar,
		AdminGoSipID: payload.AdminGoSipID,
		Members:      append([]string(nil), payload.Members...),
	}
}

// withoutMember returns a fresh slice so roster snapshots handed out
// earlier never see the removal.
func withoutMember(members []string, goSipID string) []string {
	out := make([]string, 0, len(members))
	for _, member := range members {
		if member != goSipID {
			out = append(out, member)
		}
	}
	return out
}
