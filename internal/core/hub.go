package core

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/store"
	"github.com/parley-chat/parley-server/internal/utils"
)

// AnonymousName is bound to sessions that join without a display name.
const AnonymousName = "Anonymous"

type inbound struct {
	client *Client
	cmd    *Command
}

// Hub owns the roster, the room directory and the message index, and
// processes every inbound command on a single goroutine. That serialization
// is the concurrency discipline: each command is atomic with respect to all
// shared state, and within-room ordering falls out of it.
type Hub struct {
	defaultRoom string

	register   chan *Client
	unregister chan *Client
	commands   chan inbound

	clients  map[string]*Client
	rooms    map[string]*Room
	messages map[string]*Message

	adapter store.Adapter
	log     zerolog.Logger
}

// NewHub constructs a hub. The adapter may be nil, in which case nothing is
// persisted or restored.
func NewHub(adapter store.Adapter, defaultRoom string, logger *zerolog.Logger) *Hub {
	if defaultRoom == "" {
		defaultRoom = "Lobby"
	}
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Hub{
		defaultRoom: defaultRoom,
		register:    make(chan *Client, 8),
		unregister:  make(chan *Client, 8),
		commands:    make(chan inbound, 64),
		clients:     make(map[string]*Client),
		rooms:       make(map[string]*Room),
		messages:    make(map[string]*Message),
		adapter:     adapter,
		log:         lg,
	}
}

// RegisterClient hands a freshly accepted connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes a closed connection. Safe to call more than once.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Run restores persisted state and processes commands until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.restore()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case in := <-h.commands:
			h.dispatch(in.client, in.cmd)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.clients[c.ID] = c
	go h.pump(c)
}

// pump forwards one client's commands into the serialized loop. It exits
// when the transport closes the client's Commands channel.
func (h *Hub) pump(c *Client) {
	for cmd := range c.Commands {
		h.commands <- inbound{client: c, cmd: cmd}
	}
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)

	if room, ok := h.rooms[c.CurrentRoom]; ok {
		room.RemoveClient(c)
	}
	close(c.Events)

	if !c.Identified {
		return
	}
	user := c.User()
	h.broadcast(&Event{Kind: EventUserLeft, User: user}, c)
	h.log.Info().Str("user_id", user.ID).Str("name", user.Name).Msg("user disconnected")
}

func (h *Hub) dispatch(c *Client, cmd *Command) {
	if _, ok := h.clients[c.ID]; !ok {
		// Command raced with disconnect; the session is gone.
		return
	}

	switch cmd.Kind {
	case CommandJoin:
		h.identify(c, cmd.Name)
	case CommandSendMessage:
		h.sendMessage(c, cmd.Room, cmd.Text)
	case CommandJoinRoom:
		h.joinRoom(c, cmd.Room)
	case CommandCreateDM:
		h.createDM(c, cmd.PeerID)
	case CommandReact:
		h.react(c, cmd.MessageID, cmd.Emoji)
	case CommandEditMessage:
		h.editMessage(c, cmd.MessageID, cmd.Text)
	case CommandDeleteMessage:
		h.deleteMessage(c, cmd.MessageID)
	case CommandTyping:
		h.broadcast(&Event{Kind: EventTyping, User: c.User()}, c)
	case CommandStopTyping:
		h.broadcast(&Event{Kind: EventStopTyping, User: c.User()}, c)
	}
}

// identify binds a display name to the session, announces presence and
// enters the default room. A repeated join updates the name and replays the
// same announcements, which is what the wire protocol promises.
func (h *Hub) identify(c *Client, name string) {
	if name == "" {
		name = AnonymousName
	}
	c.Name = name
	c.Identified = true
	user := c.User()

	h.broadcast(&Event{Kind: EventUserJoined, User: user}, c)
	h.broadcast(&Event{Kind: EventUsersList, Users: h.roster()}, nil)
	c.Deliver(&Event{Kind: EventJoined, User: user})
	c.Deliver(&Event{Kind: EventRoomsList, Rooms: h.roomSummaries(c.ID)})

	if c.CurrentRoom == "" {
		h.joinRoom(c, h.defaultRoom)
	}

	h.log.Info().Str("user_id", user.ID).Str("name", user.Name).Msg("user joined")
}

func (h *Hub) sendMessage(c *Client, roomName, text string) {
	if roomName == "" {
		roomName = c.CurrentRoom
	}
	if roomName == "" {
		roomName = h.defaultRoom
	}

	room := h.resolveRoom(c, roomName)
	if room == nil {
		return
	}

	msg := NewMessage(utils.MessageID(c.ID), room.Name, c.User(), text, time.Now())
	h.messages[msg.ID] = msg
	if evicted := room.Append(msg); evicted != nil {
		delete(h.messages, evicted.ID)
	}

	// Everyone present for the message has seen it.
	for member := range room.clients {
		room.LastSeen[member.ID] = msg.CreatedAt
	}

	h.persist()
	room.Broadcast(&Event{Kind: EventMessage, Room: room.Name, Message: msg.Clone()})
}

// resolveRoom maps a name to a room for message delivery, creating public
// rooms on demand. DM names resolve only for members; everything else in
// the DM namespace answers with the same generic not-found.
func (h *Hub) resolveRoom(c *Client, name string) *Room {
	if room, ok := h.rooms[name]; ok {
		if !room.IsMember(c.ID) {
			c.Deliver(&Event{Kind: EventError, Error: coreError(ErrCodeRoomNotFound, ErrRoomNotFound.Error())})
			return nil
		}
		return room
	}
	if isDMName(name) {
		c.Deliver(&Event{Kind: EventError, Error: coreError(ErrCodeRoomNotFound, ErrRoomNotFound.Error())})
		return nil
	}
	room := NewRoom(name, RoomPublic)
	h.rooms[name] = room
	h.broadcastRoomsList()
	return room
}

func isDMName(name string) bool {
	return len(name) >= len(DMPrefix) && name[:len(DMPrefix)] == DMPrefix
}

// joinRoom moves the session into the named room, enforcing DM privacy and
// the one-room-per-session rule, and delivers the join snapshot.
func (h *Hub) joinRoom(c *Client, name string) {
	if name == "" {
		return
	}
	room := h.resolveRoom(c, name)
	if room == nil {
		return
	}
	h.enterRoom(c, room)
}

func (h *Hub) enterRoom(c *Client, room *Room) {
	if prev, ok := h.rooms[c.CurrentRoom]; ok && prev != room {
		prev.RemoveClient(c)
	}
	room.AddClient(c)
	c.CurrentRoom = room.Name
	room.LastSeen[c.ID] = time.Now()

	c.Deliver(&Event{Kind: EventRoomJoined, Room: room.Name, Messages: room.Snapshot()})
	c.Deliver(&Event{Kind: EventRoomsList, Rooms: h.roomSummaries(c.ID)})
	h.persist()
}

// createDM resolves the deterministic room for the unordered pair, creating
// it on first use, and pulls both parties in. Calling it again for the same
// pair lands in the same room with the same two members.
func (h *Hub) createDM(c *Client, peerID string) {
	if peerID == "" || peerID == c.ID {
		return
	}

	name := DMRoomName(c.ID, peerID)
	room, ok := h.rooms[name]
	if !ok {
		room = NewRoom(name, RoomDM)
		room.Members[c.ID] = struct{}{}
		room.Members[peerID] = struct{}{}
		h.rooms[name] = room
	}

	h.enterRoom(c, room)

	if peer, online := h.clients[peerID]; online {
		h.enterRoom(peer, room)
		peer.Deliver(&Event{Kind: EventDMInvite, Room: name, User: c.User()})
	}
}

// react updates a message's reaction state and fans the result out to every
// connected session. The process-global scope (unlike the room-scoped
// message events) mirrors the documented protocol; see DESIGN.md.
func (h *Hub) react(c *Client, messageID, emoji string) {
	msg, ok := h.messages[messageID]
	if !ok {
		return
	}
	msg.React(c.ID, emoji)
	h.persist()
	h.broadcast(&Event{
		Kind:           EventReaction,
		Room:           msg.Room,
		MessageID:      msg.ID,
		Reactions:      cloneReactions(msg.Reactions),
		ReactionByUser: cloneReactionByUser(msg.ReactionByUser),
	}, nil)
}

func (h *Hub) editMessage(c *Client, messageID, text string) {
	msg, ok := h.messages[messageID]
	if !ok || msg.Author.ID != c.ID {
		return
	}
	now := time.Now()
	msg.Text = text
	msg.Edited = true
	msg.EditedAt = &now

	h.persist()
	if room, ok := h.rooms[msg.Room]; ok {
		room.Broadcast(&Event{Kind: EventMessageUpdated, Room: msg.Room, Message: msg.Clone()})
	}
}

func (h *Hub) deleteMessage(c *Client, messageID string) {
	msg, ok := h.messages[messageID]
	if !ok || msg.Author.ID != c.ID {
		return
	}
	delete(h.messages, messageID)
	room, hasRoom := h.rooms[msg.Room]
	if hasRoom {
		room.RemoveMessage(messageID)
	}

	h.persist()
	if hasRoom {
		room.Broadcast(&Event{Kind: EventMessageDeleted, Room: msg.Room, MessageID: messageID})
	}
}

// broadcast delivers an event to every connected session except the one
// given (nil means everyone).
func (h *Hub) broadcast(event *Event, except *Client) {
	for _, client := range h.clients {
		if client == except {
			continue
		}
		client.Deliver(event)
	}
}

func (h *Hub) broadcastRoomsList() {
	for _, client := range h.clients {
		if !client.Identified {
			continue
		}
		client.Deliver(&Event{Kind: EventRoomsList, Rooms: h.roomSummaries(client.ID)})
	}
}

func (h *Hub) roster() []User {
	users := make([]User, 0, len(h.clients))
	for _, client := range h.clients {
		if client.Identified {
			users = append(users, client.User())
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users
}

// roomSummaries lists public rooms with the requesting user's unread
// counts. DM rooms are never enumerated.
func (h *Hub) roomSummaries(userID string) []RoomSummary {
	out := make([]RoomSummary, 0, len(h.rooms))
	for _, room := range h.rooms {
		if room.Type == RoomDM {
			continue
		}
		out = append(out, RoomSummary{Name: room.Name, Unread: room.Unread(userID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// persist builds an immutable snapshot inside the loop and hands it to the
// adapter on a fresh goroutine. A stalled or failing save never delays or
// fails the operation it accompanies.
func (h *Hub) persist() {
	if h.adapter == nil {
		return
	}
	snap := h.snapshot()
	go func() {
		if err := h.adapter.Save(snap); err != nil {
			h.log.Warn().Err(err).Msg("persist rooms")
		}
	}()
}

func (h *Hub) snapshot() *store.Snapshot {
	snap := store.NewSnapshot()
	for name, room := range h.rooms {
		msgs := make([]store.Message, 0, len(room.History))
		for _, msg := range room.History {
			msgs = append(msgs, messageToStore(msg))
		}
		snap.Rooms[name] = msgs

		meta := store.RoomMeta{
			Type:     string(room.Type),
			LastSeen: make(map[string]int64, len(room.LastSeen)),
		}
		for id := range room.Members {
			meta.Members = append(meta.Members, id)
		}
		sort.Strings(meta.Members)
		for id, at := range room.LastSeen {
			meta.LastSeen[id] = at.UnixMilli()
		}
		snap.Meta[name] = meta
	}
	return snap
}

// restore loads the persisted document. Any failure leaves the hub empty;
// the core never depends on the adapter succeeding.
func (h *Hub) restore() {
	if h.adapter == nil {
		return
	}
	snap, err := h.adapter.Load()
	if err != nil {
		h.log.Warn().Err(err).Msg("load rooms")
		return
	}
	if snap == nil {
		return
	}

	for name, meta := range snap.Meta {
		typ := RoomPublic
		if meta.Type == string(RoomDM) {
			typ = RoomDM
		}
		room := NewRoom(name, typ)
		for _, id := range meta.Members {
			room.Members[id] = struct{}{}
		}
		for id, at := range meta.LastSeen {
			room.LastSeen[id] = time.UnixMilli(at)
		}
		h.rooms[name] = room
	}

	for name, msgs := range snap.Rooms {
		room, ok := h.rooms[name]
		if !ok {
			room = NewRoom(name, RoomPublic)
			h.rooms[name] = room
		}
		for i := range msgs {
			msg := messageFromStore(&msgs[i], name)
			room.History = append(room.History, msg)
			h.messages[msg.ID] = msg
		}
	}

	h.log.Info().Int("rooms", len(h.rooms)).Int("messages", len(h.messages)).Msg("restored persisted state")
}

func messageToStore(msg *Message) store.Message {
	out := store.Message{
		ID:             msg.ID,
		Room:           msg.Room,
		Author:         store.Author{ID: msg.Author.ID, Name: msg.Author.Name},
		Text:           msg.Text,
		CreatedAt:      msg.CreatedAt.UnixMilli(),
		Edited:         msg.Edited,
		Reactions:      cloneReactions(msg.Reactions),
		ReactionByUser: cloneReactionByUser(msg.ReactionByUser),
	}
	if msg.EditedAt != nil {
		at := msg.EditedAt.UnixMilli()
		out.EditedAt = &at
	}
	return out
}

func messageFromStore(in *store.Message, room string) *Message {
	msg := NewMessage(in.ID, room, User{ID: in.Author.ID, Name: in.Author.Name}, in.Text, time.UnixMilli(in.CreatedAt))
	msg.Edited = in.Edited
	if in.EditedAt != nil {
		at := time.UnixMilli(*in.EditedAt)
		msg.EditedAt = &at
	}
	if in.Reactions != nil {
		msg.Reactions = cloneReactions(in.Reactions)
	}
	if in.ReactionByUser != nil {
		msg.ReactionByUser = cloneReactionByUser(in.ReactionByUser)
	}
	return msg
}
