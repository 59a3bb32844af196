package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parley-chat/parley-server/internal/store"
)

func startHub(t *testing.T, adapter store.Adapter) *Hub {
	t.Helper()

	hub := NewHub(adapter, "Lobby", nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connect(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()

	c := NewClient(id)
	hub.RegisterClient(c)
	return c
}

func join(c *Client, name string) {
	c.Commands <- &Command{Kind: CommandJoin, Name: name}
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// memAdapter is an in-memory store.Adapter for exercising the persistence
// path without touching disk.
type memAdapter struct {
	mu   sync.Mutex
	snap *store.Snapshot
}

func (m *memAdapter) Load() (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return store.NewSnapshot(), nil
	}
	return m.snap, nil
}

func (m *memAdapter) Save(snap *store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	return nil
}

func (m *memAdapter) Close() error { return nil }

func (m *memAdapter) get() *store.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}
