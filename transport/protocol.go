package transport

import "time"

// Outbound event names.
const (
	EventJoin                   = "join"
	EventSendMessage            = "sendMessage"
	EventMarkAsRead             = "markAsRead"
	EventTyping                 = "typing"
	EventStopTyping             = "stopTyping"
	EventSendGroupMessage       = "sendGroupMessage"
	EventGroupMessagesMarkAsRead = "groupMessagesMarkAsRead"
	EventGroupTyping            = "groupTyping"
	EventGroupStopTyping        = "groupStopTyping"
	EventSendFriendRequest      = "sendFriendRequest"
	EventAcceptRequest          = "acceptRequest"
	EventRemoveFriend           = "removeFriend"
	EventCreateGroup            = "createGroup"
	EventAddMembers             = "addMembers"
	EventChangeGroupName        = "changeGroupName"
	EventChangeGroupAvatar      = "changeGroupAvatar"
	EventLeaveGroup             = "leaveGroup"
	EventLeaveGroupAdmin        = "leaveGroupAdmin"
	EventDeleteGroup            = "deleteGroup"
)

// Inbound event names.
const (
	EventReceiveMessage        = "receiveMessage"
	EventMessagesRead          = "messagesRead"
	EventGroupMessagesRead     = "groupMessagesRead"
	EventUserOnline            = "userOnline"
	EventUserOffline           = "userOffline"
	EventOnlineFriendsList     = "onlineFriendsList"
	EventUnreadCountUpdate     = "unreadCountUpdate"
	EventFriendRequestReceived = "friendRequestReceived"
	EventAcceptedRequest       = "acceptedRequest"
	EventRemovedFriend         = "removedFriend"
	EventGroupCreated          = "groupCreated"
	EventGroupUpdated          = "groupUpdated"
	EventLeftGroup             = "leftGroup"
	EventAddedToNewGroup       = "addedToNewGroup"
	EventGroupDeleted          = "groupDeleted"
	EventAdminLeftGroup        = "adminLeftGroup"
	EventMembersAdded          = "membersAdded"
)

// JoinPayload announces the local identity when the session is established.
type JoinPayload struct {
	GoSipID string `json:"goSipID,omitempty"`
}

// SendMessagePayload carries one outbound direct message.
type SendMessagePayload struct {
	To         string `json:"to"`
	Message    string `json:"message"`
	ChatRoomID string `json:"chatRoomID"`
}

// SendGroupMessagePayload carries one outbound group message.
type SendGroupMessagePayload struct {
	Message         string `json:"message"`
	GroupChatRoomID string `json:"groupChatRoomID"`
}

// MarkAsReadPayload asks the server to fan out a read receipt.
type MarkAsReadPayload struct {
	ChatRoomID string `json:"chatRoomID"`
	Reader     string `json:"reader"`
}

// TypingPayload is the transient direct typing indicator signal.
type TypingPayload struct {
	To         string `json:"to"`
	ChatRoomID string `json:"chatRoomID"`
}

// GroupTypingPayload is the transient group typing indicator signal.
type GroupTypingPayload struct {
	Name            string `json:"name"`
	GroupChatRoomID string `json:"groupChatRoomID"`
}

// SendFriendRequestPayload requests friendship with another user.
type SendFriendRequestPayload struct {
	GoSipID string `json:"goSipID"`
}

// RemoveFriendPayload severs a friendship and its direct chat.
type RemoveFriendPayload struct {
	GoSipID    string `json:"goSipID"`
	ChatRoomID string `json:"chatRoomID"`
}

// CreateGroupPayload asks the server to create a group chat.
type CreateGroupPayload struct {
	Name    string   `json:"name"`
	Avatar  string   `json:"avatar,omitempty"`
	Members []string `json:"members"`
}

// AddMembersPayload adds members to an existing group.
type AddMembersPayload struct {
	GroupChatRoomID string   `json:"groupChatRoomID"`
	Members         []string `json:"members"`
}

// ChangeGroupNamePayload renames a group.
type ChangeGroupNamePayload struct {
	GroupChatRoomID string `json:"groupChatRoomID"`
	Name            string `json:"name"`
}

// ChangeGroupAvatarPayload swaps a group's avatar.
type ChangeGroupAvatarPayload struct {
	GroupChatRoomID string `json:"groupChatRoomID"`
	Avatar          string `json:"avatar"`
}

// LeaveGroupPayload removes the local member from a group.
type LeaveGroupPayload struct {
	GroupChatRoomID string `json:"groupChatRoomID"`
}

// LeaveGroupAdminPayload removes the admin from a group after handing the
// admin role to another member.
type LeaveGroupAdminPayload struct {
	GroupChatRoomID string `json:"groupChatRoomID"`
	NewAdminGoSipID string `json:"newAdminGoSipID"`
}

// DeleteGroupPayload deletes an entire group (admin only).
type DeleteGroupPayload struct {
	GroupChatRoomID string `json:"groupChatRoomID"`
}

// ReceiveMessagePayload is one inbound message delivery.
type ReceiveMessagePayload struct {
	From       string    `json:"from"`
	Message    string    `json:"message"`
	ChatRoomID string    `json:"chatRoomID"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MessagesReadPayload is an inbound read receipt for a conversation.
type MessagesReadPayload struct {
	ChatRoomID string `json:"chatRoomID"`
	Reader     string `json:"reader"`
}

// UnreadCountUpdatePayload replaces the unread badge of a roster entry.
type UnreadCountUpdatePayload struct {
	ChatRoomID string `json:"chatRoomID"`
	Count      int    `json:"count"`
}

// FriendRequestReceivedPayload announces a new inbound friend request.
type FriendRequestReceivedPayload struct {
	Name       string `json:"name"`
	GoSipID    string `json:"goSipID"`
	ProfilePic string `json:"profilePic"`
}

// AcceptedRequestPayload announces a new direct conversation, either because
// a friend request of ours was accepted or as the acknowledgement of
// accepting one.
type AcceptedRequestPayload struct {
	ChatRoomID string `json:"chatRoomID"`
	Name       string `json:"name"`
	GoSipID    string `json:"goSipID"`
	ProfilePic string `json:"profilePic"`
}

// RemovedFriendPayload announces that a friendship ended.
type RemovedFriendPayload struct {
	ChatRoomID string `json:"chatRoomID"`
}

// GroupPayload describes a full group conversation, used by groupCreated,
// addedToNewGroup, and the createGroup acknowledgement.
type GroupPayload struct {
	GroupChatRoomID string   `json:"groupChatRoomID"`
	Name            string   `json:"name"`
	Avatar          string   `json:"avatar,omitempty"`
	AdminGoSipID    string   `json:"adminGoSipID"`
	Members         []string `json:"members"`
}

// GroupUpdatedPayload patches display fields of an existing group.
type GroupUpdatedPayload struct {
	GroupChatRoomID string `json:"groupChatRoomID"`
	Name            string `json:"name,omitempty"`
	Avatar          string `json:"avatar,omitempty"`
}

// LeftGroupPayload announces that a member left a group.
type LeftGroupPayload struct {
	GroupChatRoomID string `json:"groupChatRoomID"`
	GoSipID         string `json:"goSipID"`
}

// GroupDeletedPayload announces group deletion.
type GroupDeletedPayload struct {
	GroupChatRoomID string `json:"groupChatRoomID"`
}

// AdminLeftGroupPayload announces admin departure plus the reassigned admin.
type AdminLeftGroupPayload struct {
	GroupChatRoomID string `json:"groupChatRoomID"`
	LeftGoSipID     string `json:"leftGoSipID"`
	NewAdminGoSipID string `json:"newAdminGoSipID"`
}

// MembersAddedPayload announces members joining an existing group.
type MembersAddedPayload struct {
	GroupChatRoomID string   `json:"groupChatRoomID"`
	Members         []string `json:"members"`
}
