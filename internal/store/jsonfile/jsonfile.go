package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/parley-chat/parley-server/internal/store"
)

// Store persists the room document as a single JSON file.
type Store struct {
	path string
}

// New creates a JSON-file store. The file does not need to exist yet.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("jsonfile: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Load reads the document. A missing, empty or unreadable file is treated
// as no rooms.
func (s *Store) Load() (*store.Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(raw) == 0 {
		return store.NewSnapshot(), nil
	}

	var snap store.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if snap.Rooms == nil {
		snap.Rooms = make(map[string][]store.Message)
	}
	if snap.Meta == nil {
		snap.Meta = make(map[string]store.RoomMeta)
	}
	return &snap, nil
}

// Save writes the document via a temp file rename so a crash mid-write
// never truncates the previous document.
func (s *Store) Save(snap *store.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rooms: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *Store) Close() error {
	return nil
}
