package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventUsersList delivers the full online roster.
	EventUsersList EventKind = iota
	// EventUserJoined notifies that a user came online.
	EventUserJoined
	// EventUserLeft notifies that a user went offline.
	EventUserLeft
	// EventJoined acknowledges a session's assigned identity.
	EventJoined
	// EventRoomsList delivers public rooms with per-user unread counts.
	EventRoomsList
	// EventRoomJoined delivers the join snapshot for a room.
	EventRoomJoined
	// EventDMInvite tells a peer that a DM room was opened with them.
	EventDMInvite
	// EventMessage carries a new message to room members.
	EventMessage
	// EventMessageUpdated carries an edited message to room members.
	EventMessageUpdated
	// EventMessageDeleted carries a deleted message id to room members.
	EventMessageDeleted
	// EventReaction carries the full reaction state of one message.
	EventReaction
	// EventTyping and EventStopTyping are transient indicators.
	EventTyping
	EventStopTyping
	// EventError notifies the requesting client about a domain error.
	EventError
)

// RoomSummary is one row of the public room listing.
type RoomSummary struct {
	Name   string
	Unread int
}

// Event is sent to clients to describe what happened in the system. Message
// payloads are deep copies; write loops may serialize them while the hub
// keeps mutating its own state.
type Event struct {
	Kind     EventKind
	Room     string
	User     User
	Users    []User
	Rooms    []RoomSummary
	Message  *Message
	Messages []*Message // EventRoomJoined snapshot

	MessageID      string
	Reactions      map[string][]string
	ReactionByUser map[string]string

	Error *CoreError
}
