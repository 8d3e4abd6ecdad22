// Package server exposes the arena over HTTP: a websocket endpoint for
// play and a small REST surface for lookups and board snapshots.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/game"
	"github.com/kapu/chess-arena-go/internal/hub"
	"github.com/kapu/chess-arena-go/internal/obslog"
	"github.com/kapu/chess-arena-go/internal/rating"
	"github.com/kapu/chess-arena-go/internal/render"
	"github.com/kapu/chess-arena-go/internal/store"
)

type Server struct {
	hub      *hub.Hub
	modes    *game.ModeCatalog
	players  store.PlayerStore
	renderer *render.BoardRenderer
}

type Config struct {
	Hub     *hub.Hub
	Modes   *game.ModeCatalog
	Players store.PlayerStore
}

func New(cfg Config) *Server {
	return &Server{
		hub:      cfg.Hub,
		modes:    cfg.Modes,
		players:  cfg.Players,
		renderer: render.NewBoardRenderer(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/modes", s.handleModes)
	mux.HandleFunc("GET /api/players/{id}", s.handlePlayer)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleRoom)
	mux.HandleFunc("GET /api/rooms/{id}/board.png", s.handleBoard)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	type modeOut struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		TimePerSide int64  `json:"time_per_side_sec"`
	}
	var out []modeOut
	for _, id := range s.modes.IDs() {
		m, err := s.modes.Get(id)
		if err != nil {
			continue
		}
		out = append(out, modeOut{ID: m.ID, Name: m.Name, TimePerSide: int64(m.TimePerSide.Seconds())})
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePlayer looks a player up in the directory; modes the player has no
// rating in yet answer with the default so clients can show something
// before game one.
func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		httpError(w, http.StatusBadRequest, "missing player id")
		return
	}
	p, err := s.players.Player(r.Context(), id)
	if err != nil {
		obslog.L().Error("player_lookup", zap.String("player_id", id), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if p == nil {
		p = &store.Player{ID: id}
	}
	if p.Ratings == nil {
		p.Ratings = make(map[string]int)
	}
	for _, modeID := range s.modes.IDs() {
		if _, rated := p.Ratings[modeID]; !rated {
			p.Ratings[modeID] = rating.Default
		}
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.hub.RoomSnapshot(r.PathValue("id"))
	if !ok {
		httpError(w, http.StatusNotFound, "no such room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             snap.ID,
		"mode":           snap.ModeID,
		"white":          snap.WhiteID,
		"black":          snap.BlackID,
		"rated":          snap.Rated,
		"turn":           snap.Turn.String(),
		"moves":          snap.Moves,
		"white_clock_ms": snap.WhiteClock.Milliseconds(),
		"black_clock_ms": snap.BlackClock.Milliseconds(),
	})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.hub.Position(r.PathValue("id"))
	if !ok {
		httpError(w, http.StatusNotFound, "no such room")
		return
	}
	png, err := s.renderer.RenderPNG(pos)
	if err != nil {
		obslog.L().Error("render_board", zap.String("room_id", r.PathValue("id")), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Debug("encode_response", zap.Error(err))
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Run serves until the context ends, then drains with a short grace period.
func Run(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}
