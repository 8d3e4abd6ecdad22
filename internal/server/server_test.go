package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/chess-arena-go/internal/game"
	"github.com/kapu/chess-arena-go/internal/hub"
	"github.com/kapu/chess-arena-go/internal/store"
	"github.com/kapu/chess-arena-go/pkg/wire"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	modes, err := game.LoadModes("")
	if err != nil {
		t.Fatalf("load modes: %v", err)
	}
	players := store.NewMemory()
	h := hub.New(hub.Config{Modes: modes, Players: players})
	ts := httptest.NewServer(New(Config{Hub: h, Modes: modes, Players: players}).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, playerID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?player=" + playerID
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", playerID, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	env, err := wire.NewEnvelope(eventType, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", eventType, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, env); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) wire.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var env wire.Envelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestModesEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/modes")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var modes []struct {
		ID          string `json:"id"`
		TimePerSide int64  `json:"time_per_side_sec"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&modes); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, m := range modes {
		if m.ID == "blitz" && m.TimePerSide == 300 {
			found = true
		}
	}
	if !found {
		t.Fatalf("blitz missing from %+v", modes)
	}
}

func TestPlayerLookupDefaultsUnknown(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/players/ghost")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var p store.Player
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.ID != "ghost" {
		t.Fatalf("player = %+v", p)
	}
	for _, mode := range []string{"classical", "blitz", "bullet"} {
		if p.Ratings[mode] != 1200 {
			t.Fatalf("ratings = %v, want default per mode", p.Ratings)
		}
	}
}

func TestRoomNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/rooms/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestWSRejectsAnonymous(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestMatchmakingOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")

	send(t, alice, wire.TypeEnqueue, wire.Enqueue{Mode: "blitz"})
	send(t, bob, wire.TypeEnqueue, wire.Enqueue{Mode: "blitz"})

	var found [2]wire.MatchFound
	for i, conn := range []*websocket.Conn{alice, bob} {
		env := recv(t, conn)
		if env.Type != wire.TypeMatchFound {
			t.Fatalf("event %d = %s, want matchFound", i, env.Type)
		}
		if err := json.Unmarshal(env.Payload, &found[i]); err != nil {
			t.Fatal(err)
		}
	}
	if found[0].RoomID == "" || found[0].RoomID != found[1].RoomID {
		t.Fatalf("room ids %q vs %q", found[0].RoomID, found[1].RoomID)
	}
	if found[0].Color == found[1].Color {
		t.Fatalf("both players got color %s", found[0].Color)
	}

	// The live room is visible over REST, board render included.
	resp, err := http.Get(ts.URL + "/api/rooms/" + found[0].RoomID + "/board.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("board status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %s", ct)
	}
}

func TestMoveFlowOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")

	send(t, alice, wire.TypeEnqueue, wire.Enqueue{Mode: "classical"})
	send(t, bob, wire.TypeEnqueue, wire.Enqueue{Mode: "classical"})

	var aliceFound wire.MatchFound
	env := recv(t, alice)
	if err := json.Unmarshal(env.Payload, &aliceFound); err != nil {
		t.Fatal(err)
	}
	recv(t, bob)

	white, black := alice, bob
	if aliceFound.Color != "white" {
		white, black = bob, alice
	}
	send(t, white, wire.TypeSubmitMove, wire.SubmitMove{RoomID: aliceFound.RoomID, Move: "e2e4"})

	for _, conn := range []*websocket.Conn{white, black} {
		env := recv(t, conn)
		if env.Type != wire.TypeMoveApplied {
			t.Fatalf("event = %s, want moveApplied", env.Type)
		}
		var mvd wire.MoveApplied
		if err := json.Unmarshal(env.Payload, &mvd); err != nil {
			t.Fatal(err)
		}
		if mvd.Move != "e2e4" || mvd.By != "white" {
			t.Fatalf("payload = %+v", mvd)
		}
	}
}

func TestMalformedEventAnswersError(t *testing.T) {
	ts := newTestServer(t)
	alice := dial(t, ts, "alice")

	send(t, alice, "teleport", struct{}{})
	env := recv(t, alice)
	if env.Type != wire.TypeError {
		t.Fatalf("event = %s, want error", env.Type)
	}
	var e wire.Error
	if err := json.Unmarshal(env.Payload, &e); err != nil {
		t.Fatal(err)
	}
	if e.Code != wire.CodeBadEvent {
		t.Fatalf("code = %s", e.Code)
	}
}
