package chat

import (
	"strings"

	"gosip/models"
)

// rosterList holds one conversation list in two forms: the backing slice
// with every room the server told us about, and the visible slice filtered
// by the current search query. All mutations go through the backing slice
// and rebuild the visible one, so clearing the query always restores the
// full list in its original order.
//
// rosterList is guarded by the client mutex.
type rosterList struct {
	query   string
	backing []models.ChatRoom
	visible []models.ChatRoom
}

// setFilter installs a search query and rebuilds the visible slice. An
// empty query shows everything.
func (l *rosterList) setFilter(query string) {
	l.query = query
	l.refresh()
}

// replace swaps the entire backing list, as happens on an initial load.
func (l *rosterList) replace(rooms []models.ChatRoom) {
	l.backing = append(l.backing[:0:0], rooms...)
	l.refresh()
}

// add appends room unless an entry with the same chatRoomID already
// exists. It reports whether the list changed.
func (l *rosterList) add(room models.ChatRoom) bool {
	for i := range l.backing {
		if l.backing[i].ChatRoomID == room.ChatRoomID {
			return false
		}
	}
	l.backing = append(l.backing, room)
	l.refresh()
	return true
}

// remove deletes the entry with the given chatRoomID, reporting whether it
// was present.
func (l *rosterList) remove(chatRoomID string) bool {
	for i := range l.backing {
		if l.backing[i].ChatRoomID == chatRoomID {
			l.backing = append(l.backing[:i], l.backing[i+1:]...)
			l.refresh()
			return true
		}
	}
	return false
}

// patch applies fn to the entry with the given chatRoomID, reporting
// whether it was found. fn mutates the entry in place; its position in the
// list never changes.
func (l *rosterList) patch(chatRoomID string, fn func(*models.ChatRoom)) bool {
	for i := range l.backing {
		if l.backing[i].ChatRoomID == chatRoomID {
			fn(&l.backing[i])
			l.refresh()
			return true
		}
	}
	return false
}

// find returns a copy of the entry with the given chatRoomID.
func (l *rosterList) find(chatRoomID string) (models.ChatRoom, bool) {
	for i := range l.backing {
		if l.backing[i].ChatRoomID == chatRoomID {
			return l.backing[i], true
		}
	}
	return models.ChatRoom{}, false
}

// setFriendOnline flips the online flag on every direct entry backed by the
// given contact.
func (l *rosterList) setFriendOnline(goSipID string, online bool) {
	changed := false
	for i := range l.backing {
		if l.backing[i].FriendGoSipID == goSipID && l.backing[i].FriendOnline != online {
			l.backing[i].FriendOnline = online
			changed = true
		}
	}
	if changed {
		l.refresh()
	}
}

// rooms returns a copy of the visible slice. Member slices are copied too,
// so later in-place membership patches cannot reach into a snapshot a
// caller already holds.
func (l *rosterList) rooms() []models.ChatRoom {
	out := append([]models.ChatRoom(nil), l.visible...)
	for i := range out {
		if out[i].Members != nil {
			out[i].Members = append([]string(nil), out[i].Members...)
		}
	}
	return out
}

func (l *rosterList) refresh() {
	l.visible = l.visible[:0]
	for i := range l.backing {
		if matchesQuery(l.backing[i], l.query) {
			l.visible = append(l.visible, l.backing[i])
		}
	}
}

// matchesQuery does a case-insensitive substring match against the room's
// display name.
func matchesQuery(room models.ChatRoom, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(room.DisplayName()), strings.ToLower(query))
}
