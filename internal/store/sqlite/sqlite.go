package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/parley-chat/parley-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	name      TEXT PRIMARY KEY,
	type      TEXT NOT NULL,
	members   TEXT NOT NULL DEFAULT '[]',
	last_seen TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS messages (
	id               TEXT PRIMARY KEY,
	room             TEXT NOT NULL,
	position         INTEGER NOT NULL,
	author_id        TEXT NOT NULL,
	author_name      TEXT NOT NULL,
	text             TEXT NOT NULL,
	created_at       INTEGER NOT NULL,
	edited           INTEGER NOT NULL DEFAULT 0,
	edited_at        INTEGER,
	reactions        TEXT NOT NULL DEFAULT '{}',
	reaction_by_user TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, position);
`

// Store implements store.Adapter on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and if needed initializes) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Load reads the whole document. An empty database is an empty snapshot.
func (s *Store) Load() (*store.Snapshot, error) {
	snap := store.NewSnapshot()

	rows, err := s.db.Query(`SELECT name, type, members, last_seen FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, typ, membersRaw, lastSeenRaw string
		if err := rows.Scan(&name, &typ, &membersRaw, &lastSeenRaw); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		meta := store.RoomMeta{Type: typ, LastSeen: make(map[string]int64)}
		if err := json.Unmarshal([]byte(membersRaw), &meta.Members); err != nil {
			return nil, fmt.Errorf("decode members for %s: %w", name, err)
		}
		if err := json.Unmarshal([]byte(lastSeenRaw), &meta.LastSeen); err != nil {
			return nil, fmt.Errorf("decode last_seen for %s: %w", name, err)
		}
		snap.Meta[name] = meta
		snap.Rooms[name] = nil
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}

	msgRows, err := s.db.Query(`
		SELECT id, room, author_id, author_name, text, created_at, edited, edited_at, reactions, reaction_by_user
		FROM messages ORDER BY room, position`)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var (
			msg          store.Message
			edited       int
			editedAt     sql.NullInt64
			reactionsRaw string
			byUserRaw    string
		)
		if err := msgRows.Scan(&msg.ID, &msg.Room, &msg.Author.ID, &msg.Author.Name,
			&msg.Text, &msg.CreatedAt, &edited, &editedAt, &reactionsRaw, &byUserRaw); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Edited = edited != 0
		if editedAt.Valid {
			at := editedAt.Int64
			msg.EditedAt = &at
		}
		if err := json.Unmarshal([]byte(reactionsRaw), &msg.Reactions); err != nil {
			return nil, fmt.Errorf("decode reactions for %s: %w", msg.ID, err)
		}
		if err := json.Unmarshal([]byte(byUserRaw), &msg.ReactionByUser); err != nil {
			return nil, fmt.Errorf("decode reaction_by_user for %s: %w", msg.ID, err)
		}
		snap.Rooms[msg.Room] = append(snap.Rooms[msg.Room], msg)
	}
	if err := msgRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return snap, nil
}

// Save replaces the stored document in one transaction.
func (s *Store) Save(snap *store.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM rooms`); err != nil {
		return fmt.Errorf("clear rooms: %w", err)
	}

	roomStmt, err := tx.Prepare(`INSERT INTO rooms (name, type, members, last_seen) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare room insert: %w", err)
	}
	defer roomStmt.Close()

	for name, meta := range snap.Meta {
		members, err := json.Marshal(meta.Members)
		if err != nil {
			return fmt.Errorf("encode members for %s: %w", name, err)
		}
		lastSeen, err := json.Marshal(meta.LastSeen)
		if err != nil {
			return fmt.Errorf("encode last_seen for %s: %w", name, err)
		}
		if _, err := roomStmt.Exec(name, meta.Type, string(members), string(lastSeen)); err != nil {
			return fmt.Errorf("insert room %s: %w", name, err)
		}
	}

	msgStmt, err := tx.Prepare(`
		INSERT INTO messages (id, room, position, author_id, author_name, text, created_at, edited, edited_at, reactions, reaction_by_user)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer msgStmt.Close()

	for room, msgs := range snap.Rooms {
		for i, msg := range msgs {
			reactions, err := json.Marshal(orEmptyReactions(msg.Reactions))
			if err != nil {
				return fmt.Errorf("encode reactions for %s: %w", msg.ID, err)
			}
			byUser, err := json.Marshal(orEmptyByUser(msg.ReactionByUser))
			if err != nil {
				return fmt.Errorf("encode reaction_by_user for %s: %w", msg.ID, err)
			}
			edited := 0
			if msg.Edited {
				edited = 1
			}
			var editedAt any
			if msg.EditedAt != nil {
				editedAt = *msg.EditedAt
			}
			if _, err := msgStmt.Exec(msg.ID, room, i, msg.Author.ID, msg.Author.Name,
				msg.Text, msg.CreatedAt, edited, editedAt, string(reactions), string(byUser)); err != nil {
				return fmt.Errorf("insert message %s: %w", msg.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func orEmptyReactions(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

func orEmptyByUser(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
