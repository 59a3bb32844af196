// Package store defines the persistence adapter boundary. The core hands an
// adapter a full document after each mutation and loads it once at startup;
// it never depends on a save succeeding.
package store

// Author is the message author snapshot taken at creation time.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is the persisted form of a chat message. Timestamps are unix
// milliseconds.
type Message struct {
	ID             string              `json:"id"`
	Room           string              `json:"room"`
	Author         Author              `json:"author"`
	Text           string              `json:"text"`
	CreatedAt      int64               `json:"createdAt"`
	Edited         bool                `json:"edited,omitempty"`
	EditedAt       *int64              `json:"editedAt,omitempty"`
	Reactions      map[string][]string `json:"reactions,omitempty"`
	ReactionByUser map[string]string   `json:"reactionByUser,omitempty"`
}

// RoomMeta carries the non-history room attributes.
type RoomMeta struct {
	Type     string           `json:"type"`
	Members  []string         `json:"members,omitempty"`
	LastSeen map[string]int64 `json:"lastSeen"`
}

// Snapshot is the persisted document: two top-level mappings keyed by room
// name.
type Snapshot struct {
	Rooms map[string][]Message `json:"rooms"`
	Meta  map[string]RoomMeta  `json:"meta"`
}

// NewSnapshot returns an empty document.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Rooms: make(map[string][]Message),
		Meta:  make(map[string]RoomMeta),
	}
}

// Adapter persists and restores the room document. Load must tolerate a
// missing or empty document and return an empty snapshot for it.
type Adapter interface {
	Load() (*Snapshot, error)
	Save(snap *Snapshot) error
	Close() error
}
