package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/chess-arena-go/internal/obslog"
	"github.com/kapu/chess-arena-go/pkg/wire"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
)

// wsPeer adapts one websocket connection to the hub's peer contract. A
// single write pump owns the connection's write side; Send only enqueues
// and never blocks the hub.
type wsPeer struct {
	id   string
	conn *websocket.Conn

	out  chan wire.Envelope
	done chan struct{}
	once sync.Once
}

func newWSPeer(id string, conn *websocket.Conn) *wsPeer {
	return &wsPeer{
		id:   id,
		conn: conn,
		out:  make(chan wire.Envelope, sendBuffer),
		done: make(chan struct{}),
	}
}

func (p *wsPeer) ID() string { return p.id }

// Send enqueues an event for the write pump. A full buffer means the
// client has stopped draining; reporting false lets the hub log the drop.
func (p *wsPeer) Send(env wire.Envelope) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.out <- env:
		return true
	default:
		return false
	}
}

func (p *wsPeer) shutdown(code websocket.StatusCode, reason string) {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close(code, reason)
	})
}

// writePump drains the outbound queue until the peer shuts down.
func (p *wsPeer) writePump(ctx context.Context) {
	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case env := <-p.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, p.conn, env)
			cancel()
			if err != nil {
				p.shutdown(websocket.StatusGoingAway, "write failure")
				return
			}
		}
	}
}

// handleWS upgrades the connection and runs the read loop until the client
// departs. The player identifies itself with the player query parameter.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(r.URL.Query().Get("player"))
	if playerID == "" {
		playerID = strings.TrimSpace(r.Header.Get("X-Player-Id"))
	}
	if playerID == "" || strings.HasPrefix(playerID, "cpu:") {
		http.Error(w, "missing or reserved player id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Debug("ws_accept", zap.String("player_id", playerID), zap.Error(err))
		return
	}

	ctx := r.Context()
	peer := newWSPeer(playerID, conn)
	if replaced := s.hub.Register(ctx, peer); replaced != nil {
		if old, ok := replaced.(*wsPeer); ok {
			old.shutdown(websocket.StatusPolicyViolation, "superseded by a new connection")
		}
	}
	go peer.writePump(ctx)

	defer func() {
		s.hub.Unregister(ctx, peer)
		peer.shutdown(websocket.StatusNormalClosure, "bye")
	}()

	for {
		var env wire.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		s.hub.HandleEnvelope(ctx, playerID, env)
	}
}
