package chat

import (
	"encoding/json"
	"errors"
	"strings"

	"gosip/models"
	"gosip/transport"
)

// Acknowledged actions. Each one blocks on a server acknowledgement and
// only mutates local state after it arrives; a timeout or rejection leaves
// everything as it was. While one submission is in flight, a duplicate
// submission of the same action on the same target fails fast with
// ErrActionPending.

// beginAction claims the pending slot for key and returns a release
// function, or an error when the session or slot is unavailable.
func (c *Client) beginAction(key string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if !c.joined {
		return nil, ErrNotJoined
	}
	if _, inFlight := c.pending[key]; inFlight {
		return nil, ErrActionPending
	}
	c.pending[key] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}, nil
}

// SendFriendRequest asks the server to deliver a friend request. The
// result reaches us later as an acceptedRequest event, so this is a plain
// emission.
func (c *Client) SendFriendRequest(goSipID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if !c.joined {
		c.mu.Unlock()
		return ErrNotJoined
	}
	c.mu.Unlock()
	if goSipID == "" {
		return errors.New("chat: goSipID is required")
	}
	return c.opts.Channel.Emit(transport.EventSendFriendRequest, transport.SendFriendRequestPayload{GoSipID: goSipID})
}

// AcceptRequest accepts a pending friend request. On acknowledgement the
// request leaves the pending list and the new direct conversation joins
// the roster.
func (c *Client) AcceptRequest(goSipID string) (models.ChatRoom, error) {
	release, err := c.beginAction("acceptRequest:" + goSipID)
	if err != nil {
		return models.ChatRoom{}, err
	}
	defer release()

	ack, err := c.request(transport.EventAcceptRequest, goSipID)
	if err != nil {
		return models.ChatRoom{}, err
	}
	var payload transport.AcceptedRequestPayload
	if err := unmarshalAck(ack, &payload); err != nil {
		return models.ChatRoom{}, err
	}
	room := models.ChatRoom{
		ChatRoomID:       payload.ChatRoomID,
		Kind:             models.RoomDirect,
		FriendGoSipID:    payload.GoSipID,
		FriendName:       payload.Name,
		FriendProfilePic: payload.ProfilePic,
	}
	c.mu.Lock()
	room.FriendOnline = c.presence.isOnline(payload.GoSipID)
	for i, req := range c.requests {
		if req.GoSipID == goSipID {
			c.requests = append(c.requests[:i], c.requests[i+1:]...)
			break
		}
	}
	if room.ChatRoomID != "" {
		c.chats.add(room)
	}
	c.mu.Unlock()
	return room, nil
}

// RemoveFriend ends a friendship. On acknowledgement the direct
// conversation leaves the roster and is closed if open.
func (c *Client) RemoveFriend(goSipID, chatRoomID string) error {
	release, err := c.beginAction("removeFriend:" + chatRoomID)
	if err != nil {
		return err
	}
	defer release()

	if _, err := c.request(transport.EventRemoveFriend, transport.RemoveFriendPayload{
		GoSipID:    goSipID,
		ChatRoomID: chatRoomID,
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.chats.remove(chatRoomID)
	c.mu.Unlock()
	c.evictOpen(chatRoomID)
	return nil
}

// CreateGroup creates a group chat with the given members and returns the
// roster entry built from the acknowledgement.
func (c *Client) CreateGroup(name, avatar string, members []string) (models.ChatRoom, error) {
	if strings.TrimSpace(name) == "" {
		return models.ChatRoom{}, errors.New("chat: group name is required")
	}
	if len(members) == 0 {
		return models.ChatRoom{}, errors.New("chat: group needs at least one member")
	}
	release, err := c.beginAction("createGroup:" + name)
	if err != nil {
		return models.ChatRoom{}, err
	}
	defer release()

	ack, err := c.request(transport.EventCreateGroup, transport.CreateGroupPayload{
		Name:    name,
		Avatar:  avatar,
		Members: members,
	})
	if err != nil {
		return models.ChatRoom{}, err
	}
	var payload transport.GroupPayload
	if err := unmarshalAck(ack, &payload); err != nil {
		return models.ChatRoom{}, err
	}
	room := groupRoomFromPayload(payload)
	c.mu.Lock()
	c.groups.add(room)
	c.mu.Unlock()
	return room, nil
}

// AddMembers invites more members into a group.
func (c *Client) AddMembers(groupChatRoomID string, members []string) error {
	if len(members) == 0 {
		return errors.New("chat: no members to add")
	}
	release, err := c.beginAction("addMembers:" + groupChatRoomID)
	if err != nil {
		return err
	}
	defer release()

	if _, err := c.request(transport.EventAddMembers, transport.AddMembersPayload{
		GroupChatRoomID: groupChatRoomID,
		Members:         members,
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.groups.patch(groupChatRoomID, func(room *models.ChatRoom) {
		for _, member := range members {
			if !room.HasMember(member) {
				room.Members = append(room.Members, member)
			}
		}
	})
	c.mu.Unlock()
	return nil
}

// ChangeGroupName renames a group.
func (c *Client) ChangeGroupName(groupChatRoomID, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("chat: group name is required")
	}
	release, err := c.beginAction("changeGroupName:" + groupChatRoomID)
	if err != nil {
		return err
	}
	defer release()

	if _, err := c.request(transport.EventChangeGroupName, transport.ChangeGroupNamePayload{
		GroupChatRoomID: groupChatRoomID,
		Name:            name,
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.groups.patch(groupChatRoomID, func(room *models.ChatRoom) { room.GroupName = name })
	c.mu.Unlock()
	return nil
}

// ChangeGroupAvatar swaps a group's avatar.
func (c *Client) ChangeGroupAvatar(groupChatRoomID, avatar string) error {
	release, err := c.beginAction("changeGroupAvatar:" + groupChatRoomID)
	if err != nil {
		return err
	}
	defer release()

	if _, err := c.request(transport.EventChangeGroupAvatar, transport.ChangeGroupAvatarPayload{
		GroupChatRoomID: groupChatRoomID,
		Avatar:          avatar,
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.groups.patch(groupChatRoomID, func(room *models.ChatRoom) { room.GroupAvatar = avatar })
	c.mu.Unlock()
	return nil
}

// LeaveGroup removes the local user from a group. The admin cannot leave
// this way; the admin role must be handed off first so the group is never
// left without one.
func (c *Client) LeaveGroup(groupChatRoomID string) error {
	c.mu.Lock()
	room, ok := c.groups.find(groupChatRoomID)
	selfID := c.selfID
	c.mu.Unlock()
	if ok && room.AdminGoSipID == selfID {
		return ErrAdminHandoffRequired
	}
	release, err := c.beginAction("leaveGroup:" + groupChatRoomID)
	if err != nil {
		return err
	}
	defer release()

	if _, err := c.request(transport.EventLeaveGroup, transport.LeaveGroupPayload{
		GroupChatRoomID: groupChatRoomID,
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.groups.remove(groupChatRoomID)
	c.mu.Unlock()
	c.evictOpen(groupChatRoomID)
	return nil
}

// LeaveGroupAdmin hands the admin role to another member and then leaves
// the group. Without an acknowledgement nothing changes locally.
func (c *Client) LeaveGroupAdmin(groupChatRoomID, newAdminGoSipID string) error {
	c.mu.Lock()
	room, ok := c.groups.find(groupChatRoomID)
	selfID := c.selfID
	c.mu.Unlock()
	if ok {
		if room.AdminGoSipID != selfID {
			return ErrNotAdmin
		}
		if newAdminGoSipID == selfID || !room.HasMember(newAdminGoSipID) {
			return errors.New("chat: new admin must be another member")
		}
	}
	release, err := c.beginAction("leaveGroupAdmin:" + groupChatRoomID)
	if err != nil {
		return err
	}
	defer release()

	if _, err := c.request(transport.EventLeaveGroupAdmin, transport.LeaveGroupAdminPayload{
		GroupChatRoomID: groupChatRoomID,
		NewAdminGoSipID: newAdminGoSipID,
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.groups.remove(groupChatRoomID)
	c.mu.Unlock()
	c.evictOpen(groupChatRoomID)
	return nil
}

// DeleteGroup deletes a group entirely. Admin only.
func (c *Client) DeleteGroup(groupChatRoomID string) error {
	c.mu.Lock()
	room, ok := c.groups.find(groupChatRoomID)
	selfID := c.selfID
	c.mu.Unlock()
	if ok && room.AdminGoSipID != selfID {
		return ErrNotAdmin
	}
	release, err := c.beginAction("deleteGroup:" + groupChatRoomID)
	if err != nil {
		return err
	}
	defer release()

	if _, err := c.request(transport.EventDeleteGroup, transport.DeleteGroupPayload{
		GroupChatRoomID: groupChatRoomID,
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.groups.remove(groupChatRoomID)
	c.mu.Unlock()
	c.evictOpen(groupChatRoomID)
	return nil
}

func unmarshalAck(ack json.RawMessage, v any) error {
	if len(ack) == 0 {
		return errors.New("chat: empty acknowledgement payload")
	}
	return json.Unmarshal(ack, v)
}
