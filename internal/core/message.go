package core

import "time"

// Message is the domain model for a chat message. ReactionByUser is the
// source of truth for reactions; Reactions is the derived emoji -> users
// index and is kept consistent by React.
type Message struct {
	ID        string
	Room      string
	Author    User
	Text      string
	CreatedAt time.Time
	Edited    bool
	EditedAt  *time.Time

	Reactions      map[string][]string
	ReactionByUser map[string]string
}

// NewMessage constructs a message with empty reaction state.
func NewMessage(id, room string, author User, text string, at time.Time) *Message {
	return &Message{
		ID:             id,
		Room:           room,
		Author:         author,
		Text:           text,
		CreatedAt:      at,
		Reactions:      make(map[string][]string),
		ReactionByUser: make(map[string]string),
	}
}

// React applies a reaction from userID and returns whether state changed.
// Reacting with the emoji the user already has toggles it off; a different
// emoji replaces the previous one; an empty emoji is a pure removal.
func (m *Message) React(userID, emoji string) bool {
	prev, had := m.ReactionByUser[userID]

	if emoji == "" || (had && prev == emoji) {
		if !had {
			return false
		}
		m.removeReaction(userID, prev)
		return true
	}

	if had {
		m.removeReaction(userID, prev)
	}
	m.ReactionByUser[userID] = emoji
	m.Reactions[emoji] = append(m.Reactions[emoji], userID)
	return true
}

func (m *Message) removeReaction(userID, emoji string) {
	delete(m.ReactionByUser, userID)

	users := m.Reactions[emoji]
	for i, id := range users {
		if id == userID {
			m.Reactions[emoji] = append(users[:i], users[i+1:]...)
			break
		}
	}
	if len(m.Reactions[emoji]) == 0 {
		delete(m.Reactions, emoji)
	}
}

// Clone returns a deep copy safe to hand to a concurrently running write
// loop while the hub keeps mutating the original.
func (m *Message) Clone() *Message {
	cp := *m
	if m.EditedAt != nil {
		at := *m.EditedAt
		cp.EditedAt = &at
	}
	cp.Reactions = cloneReactions(m.Reactions)
	cp.ReactionByUser = cloneReactionByUser(m.ReactionByUser)
	return &cp
}

func cloneReactions(src map[string][]string) map[string][]string {
	out := make(map[string][]string, len(src))
	for emoji, users := range src {
		out[emoji] = append([]string(nil), users...)
	}
	return out
}

func cloneReactionByUser(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for user, emoji := range src {
		out[user] = emoji
	}
	return out
}
