package models

// RoomKind distinguishes direct chats from group chats.
type RoomKind string

const (
	RoomDirect RoomKind = "direct"
	RoomGroup  RoomKind = "group"
)

// ChatRoom is one roster entry: a direct or group conversation summary.
//
// Direct rooms populate the Friend* fields; group rooms populate the Group*
// fields plus Members and AdminGoSipID.
type ChatRoom struct {
	ChatRoomID string   `json:"chatRoomID"`
	Kind       RoomKind `json:"kind"`

	FriendGoSipID    string `json:"friendGoSipID,omitempty"`
	FriendName       string `json:"friendName,omitempty"`
	FriendProfilePic string `json:"friendProfilePic,omitempty"`
	FriendOnline     bool   `json:"friendOnline,omitempty"`

	GroupName    string   `json:"groupName,omitempty"`
	GroupAvatar  string   `json:"groupAvatar,omitempty"`
	AdminGoSipID string   `json:"adminGoSipID,omitempty"`
	Members      []string `json:"members,omitempty"`

	UnreadCount int `json:"unreadCount"`
}

// DisplayName returns the name the roster shows for this entry.
func (r ChatRoom) DisplayName() string {
	if r.Kind == RoomGroup {
		return r.GroupName
	}
	return r.FriendName
}

// HasMember reports whether the identity is in the group member set.
func (r ChatRoom) HasMember(goSipID string) bool {
	for _, id := range r.Members {
		if id == goSipID {
			return true
		}
	}
	return false
}

// FriendRequest is a pending inbound friend request.
type FriendRequest struct {
	Name       string `json:"name"`
	GoSipID    string `json:"goSipID"`
	ProfilePic string `json:"profilePic"`
}
