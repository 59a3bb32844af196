package core

import "time"

// RoomType distinguishes discoverable rooms from two-party DM rooms.
type RoomType string

const (
	RoomPublic RoomType = "public"
	RoomDM     RoomType = "dm"
)

const (
	// HistoryLimit caps per-room history; the oldest message is evicted
	// first when the cap is exceeded.
	HistoryLimit = 1000
	// SnapshotLimit bounds the history slice delivered on room join.
	SnapshotLimit = 200

	// DMPrefix namespaces deterministic DM room names.
	DMPrefix = "dm-"
)

// Room groups clients subscribed to the same channel and owns that
// channel's message history.
type Room struct {
	Name     string
	Type     RoomType
	Members  map[string]struct{} // fixed two-member set, DM rooms only
	History  []*Message
	LastSeen map[string]time.Time

	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients and empty history.
func NewRoom(name string, typ RoomType) *Room {
	return &Room{
		Name:     name,
		Type:     typ,
		Members:  make(map[string]struct{}),
		LastSeen: make(map[string]time.Time),
		clients:  make(map[*Client]struct{}),
	}
}

// DMRoomName derives the deterministic room name for an unordered pair of
// user ids, so either party can compute it without a lookup.
func DMRoomName(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return DMPrefix + a + "-" + b
}

// IsMember reports whether a user id belongs to this DM room. Public rooms
// have no membership restriction.
func (r *Room) IsMember(userID string) bool {
	if r.Type != RoomDM {
		return true
	}
	_, ok := r.Members[userID]
	return ok
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast sends an event to all clients currently in the room.
func (r *Room) Broadcast(event *Event) {
	for client := range r.clients {
		client.Deliver(event)
	}
}

// Append pushes a message onto the history and returns the evicted message,
// if the cap forced one out.
func (r *Room) Append(msg *Message) *Message {
	r.History = append(r.History, msg)
	if len(r.History) <= HistoryLimit {
		return nil
	}
	evicted := r.History[0]
	r.History = r.History[1:]
	return evicted
}

// RemoveMessage deletes a message from the history by id.
func (r *Room) RemoveMessage(id string) bool {
	for i, msg := range r.History {
		if msg.ID == id {
			r.History = append(r.History[:i], r.History[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns deep copies of up to the last SnapshotLimit messages.
func (r *Room) Snapshot() []*Message {
	start := 0
	if len(r.History) > SnapshotLimit {
		start = len(r.History) - SnapshotLimit
	}
	out := make([]*Message, 0, len(r.History)-start)
	for _, msg := range r.History[start:] {
		out = append(out, msg.Clone())
	}
	return out
}

// Unread counts messages newer than the user's last-seen mark. Users with
// no mark see the whole history as unread.
func (r *Room) Unread(userID string) int {
	seen, ok := r.LastSeen[userID]
	if !ok {
		return len(r.History)
	}
	n := 0
	for i := len(r.History) - 1; i >= 0; i-- {
		if !r.History[i].CreatedAt.After(seen) {
			break
		}
		n++
	}
	return n
}
