package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin          = "join"
	InboundTypeMessage       = "message"
	InboundTypeJoinRoom      = "join-room"
	InboundTypeCreateDM      = "create-dm"
	InboundTypeReaction      = "reaction"
	InboundTypeEditMessage   = "edit-message"
	InboundTypeDeleteMessage = "delete-message"
	InboundTypeTyping        = "typing"
	InboundTypeStopTyping    = "stop-typing"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventUsersList      = "users-list"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventJoined         = "joined"
	EventRoomsList      = "rooms-list"
	EventRoomJoined     = "room-joined"
	EventDMInvite       = "dm-invite"
	EventMessage        = "message"
	EventMessageUpdated = "message-updated"
	EventMessageDeleted = "message-deleted"
	EventReaction       = "reaction"
	EventTyping         = "typing"
	EventStopTyping     = "stop-typing"
)

// User is a roster entry.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// JoinData introduces the session. The id is always assigned server-side;
// anything the client sends for it is ignored.
type JoinData struct {
	Name string `json:"name"`
}

// MessageData is a chat message targeting a room. The wire also accepts a
// bare JSON string, which targets the session's current room.
type MessageData struct {
	Text string `json:"text"`
	Room string `json:"room,omitempty"`
}

// ReactionData toggles or switches an emoji reaction.
type ReactionData struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// EditData rewrites a message's text.
type EditData struct {
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

// DeleteData removes a message.
type DeleteData struct {
	MessageID string `json:"messageId"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is the full message shape on the wire. Timestamps are unix
// milliseconds.
type MessagePayload struct {
	ID             string              `json:"id"`
	Room           string              `json:"room"`
	Author         User                `json:"author"`
	Text           string              `json:"text"`
	TS             int64               `json:"ts"`
	Edited         bool                `json:"edited,omitempty"`
	EditedAt       *int64              `json:"editedAt,omitempty"`
	Reactions      map[string][]string `json:"reactions"`
	ReactionByUser map[string]string   `json:"reactionByUser"`
}

// RoomSummary is one row of the public room listing.
type RoomSummary struct {
	Name   string `json:"name"`
	Unread int    `json:"unread"`
}

// RoomJoinedPayload is the join snapshot: the room plus up to the last 200
// messages.
type RoomJoinedPayload struct {
	Room     string           `json:"room"`
	Messages []MessagePayload `json:"messages"`
}

// DMInvitePayload tells a peer who opened a DM room with them.
type DMInvitePayload struct {
	Room string `json:"room"`
	From User   `json:"from"`
}

// ReactionPayload is the full reaction state of one message.
type ReactionPayload struct {
	MessageID      string              `json:"messageId"`
	Reactions      map[string][]string `json:"reactions"`
	ReactionByUser map[string]string   `json:"reactionByUser"`
}

// DeletedPayload carries only the id; content of deleted messages is never
// re-sent.
type DeletedPayload struct {
	MessageID string `json:"messageId"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
