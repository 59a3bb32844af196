package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin binds a display name to the session and enters the
	// default room.
	CommandJoin CommandKind = iota
	// CommandSendMessage appends a chat message to a room.
	CommandSendMessage
	// CommandJoinRoom moves the session into a named room.
	CommandJoinRoom
	// CommandCreateDM establishes the two-party room with a peer.
	CommandCreateDM
	// CommandReact toggles or switches an emoji reaction on a message.
	CommandReact
	// CommandEditMessage rewrites a message's text, author only.
	CommandEditMessage
	// CommandDeleteMessage removes a message, author only.
	CommandDeleteMessage
	// CommandTyping and CommandStopTyping are transient indicators.
	CommandTyping
	CommandStopTyping
)

// Command represents an action requested by a client.
type Command struct {
	Kind      CommandKind
	Name      string // CommandJoin display name
	Room      string
	Text      string
	MessageID string
	Emoji     string
	PeerID    string // CommandCreateDM
}
