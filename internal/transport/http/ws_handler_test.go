package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/config"
	"github.com/parley-chat/parley-server/internal/core"
	"github.com/parley-chat/parley-server/internal/proto"
)

type outboundEnvelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	hub := core.NewHub(nil, "Lobby", &logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", msgType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil discards events until one with the wanted name (or, for "error",
// an error envelope) arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) outboundEnvelope {
	t.Helper()

	for {
		var out outboundEnvelope
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read waiting for %q: %v", event, err)
		}
		if event == "error" && out.Type == proto.OutboundTypeError {
			return out
		}
		if out.Type == proto.OutboundTypeEvent && out.Event == event {
			return out
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestChatScenarioOverWebSocket(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connA := dial(t, ctx, ts)
	connB := dial(t, ctx, ts)

	send(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{Name: "alice"})
	var aliceAck proto.User
	mustDecode(t, readUntil(t, ctx, connA, proto.EventJoined).Data, &aliceAck)

	send(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{Name: "bob"})
	var bobAck proto.User
	mustDecode(t, readUntil(t, ctx, connB, proto.EventJoined).Data, &bobAck)
	if bobAck.ID == aliceAck.ID {
		t.Fatalf("connection ids must be unique: %s", bobAck.ID)
	}

	// A's message reaches B with empty reaction state.
	send(t, ctx, connA, proto.InboundTypeMessage, "hello")
	var msg proto.MessagePayload
	mustDecode(t, readUntil(t, ctx, connB, proto.EventMessage).Data, &msg)
	if msg.Text != "hello" || msg.Room != "Lobby" || msg.Author.Name != "alice" {
		t.Fatalf("unexpected message payload: %+v", msg)
	}
	if len(msg.Reactions) != 0 {
		t.Fatalf("expected empty reactions, got %+v", msg.Reactions)
	}

	// B's reaction reaches A.
	send(t, ctx, connB, proto.InboundTypeReaction, proto.ReactionData{MessageID: msg.ID, Emoji: "👍"})
	var reaction proto.ReactionPayload
	mustDecode(t, readUntil(t, ctx, connA, proto.EventReaction).Data, &reaction)
	if users := reaction.Reactions["👍"]; len(users) != 1 || users[0] != bobAck.ID {
		t.Fatalf("unexpected reaction payload: %+v", reaction)
	}

	// A edits; B sees the new text.
	send(t, ctx, connA, proto.InboundTypeEditMessage, proto.EditData{MessageID: msg.ID, Text: "hello again"})
	var updated proto.MessagePayload
	mustDecode(t, readUntil(t, ctx, connB, proto.EventMessageUpdated).Data, &updated)
	if updated.Text != "hello again" || !updated.Edited {
		t.Fatalf("unexpected updated payload: %+v", updated)
	}

	// A deletes; B gets the id only.
	send(t, ctx, connA, proto.InboundTypeDeleteMessage, proto.DeleteData{MessageID: msg.ID})
	var deleted proto.DeletedPayload
	mustDecode(t, readUntil(t, ctx, connB, proto.EventMessageDeleted).Data, &deleted)
	if deleted.MessageID != msg.ID {
		t.Fatalf("unexpected deletion payload: %+v", deleted)
	}

	// A opens a DM; B receives the invite with the deterministic room name.
	send(t, ctx, connA, proto.InboundTypeCreateDM, bobAck.ID)
	var invite proto.DMInvitePayload
	mustDecode(t, readUntil(t, ctx, connB, proto.EventDMInvite).Data, &invite)
	if invite.Room != core.DMRoomName(aliceAck.ID, bobAck.ID) || invite.From.Name != "alice" {
		t.Fatalf("unexpected invite payload: %+v", invite)
	}
}

func TestMalformedPayloadGetsErrorWithoutSideEffects(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, ts)
	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Name: "alice"})
	readUntil(t, ctx, conn, proto.EventRoomJoined)

	send(t, ctx, conn, proto.InboundTypeJoinRoom, "")
	out := readUntil(t, ctx, conn, "error")
	if out.Error == nil || out.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", out.Error)
	}

	send(t, ctx, conn, "bogus-type", struct{}{})
	out = readUntil(t, ctx, conn, "error")
	if out.Error == nil || out.Error.Code != "invalid_message" {
		t.Fatalf("expected invalid_message, got %+v", out.Error)
	}

	// The connection survives and keeps working.
	send(t, ctx, conn, proto.InboundTypeMessage, "still here")
	var msg proto.MessagePayload
	mustDecode(t, readUntil(t, ctx, conn, proto.EventMessage).Data, &msg)
	if msg.Text != "still here" {
		t.Fatalf("unexpected message after errors: %+v", msg)
	}
}

func TestTypingIndicatorOverWebSocket(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dial(t, ctx, ts)
	connB := dial(t, ctx, ts)
	send(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{Name: "alice"})
	readUntil(t, ctx, connA, proto.EventRoomJoined)
	send(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{Name: "bob"})
	readUntil(t, ctx, connB, proto.EventRoomJoined)

	send(t, ctx, connA, proto.InboundTypeTyping, nil)
	var typer proto.User
	mustDecode(t, readUntil(t, ctx, connB, proto.EventTyping).Data, &typer)
	if typer.Name != "alice" {
		t.Fatalf("unexpected typing user: %+v", typer)
	}

	send(t, ctx, connA, proto.InboundTypeStopTyping, nil)
	readUntil(t, ctx, connB, proto.EventStopTyping)
}

func mustDecode(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
}
