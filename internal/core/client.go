package core

// User is the public identity of a connected session. The ID is the
// connection id assigned by the transport, never chosen by the client.
type User struct {
	ID   string
	Name string
}

// Client is one live connection as seen by the core layer. The hub is the
// only writer of Name, Identified and CurrentRoom after registration; the
// transport only reads ID and pumps the two channels.
type Client struct {
	ID          string
	Name        string
	Identified  bool
	CurrentRoom string

	Commands chan *Command
	Events   chan *Event
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 64),
	}
}

// User returns the identity snapshot for this client. Sessions that never
// identified fall back to the anonymous name, matching the join default.
func (c *Client) User() User {
	name := c.Name
	if name == "" {
		name = AnonymousName
	}
	return User{ID: c.ID, Name: name}
}

// Deliver queues an event for the client's write loop. Slow consumers are
// dropped rather than blocking the hub.
func (c *Client) Deliver(event *Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
