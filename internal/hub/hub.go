// Package hub routes client events between the transport layer and the
// matchmaking, game and rating components.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/ai"
	"github.com/kapu/chess-arena-go/internal/archive"
	"github.com/kapu/chess-arena-go/internal/engine"
	"github.com/kapu/chess-arena-go/internal/game"
	"github.com/kapu/chess-arena-go/internal/match"
	"github.com/kapu/chess-arena-go/internal/obslog"
	"github.com/kapu/chess-arena-go/internal/rating"
	"github.com/kapu/chess-arena-go/internal/store"
	"github.com/kapu/chess-arena-go/pkg/wire"
)

// Peer is one connected player's transport handle. Send must not block: a
// peer that cannot keep up reports false and the transport drops it.
type Peer interface {
	ID() string
	Send(env wire.Envelope) bool
}

// Presence is the optional online-set hook (backed by Redis when
// configured).
type Presence interface {
	SetOnline(ctx context.Context, id string)
	SetOffline(ctx context.Context, id string)
}

// Hub owns the peer registry and the live rooms. The hub mutex guards the
// maps only; each session serializes its own state.
type Hub struct {
	modes    *game.ModeCatalog
	queue    *match.Queue
	invites  *match.Invites
	updater  *rating.Updater
	archiver *archive.Archiver
	players  store.PlayerStore
	opponent *ai.Opponent
	presence Presence

	mu    sync.Mutex
	peers map[string]Peer
	rooms map[string]*room

	maxRooms int
}

type Config struct {
	Modes    *game.ModeCatalog
	Players  store.PlayerStore
	Opponent *ai.Opponent
	Presence Presence
	MaxRooms int
}

func New(cfg Config) *Hub {
	maxRooms := cfg.MaxRooms
	if maxRooms <= 0 {
		maxRooms = 500
	}
	return &Hub{
		modes:    cfg.Modes,
		queue:    match.NewQueue(),
		invites:  match.NewInvites(),
		updater:  rating.NewUpdater(cfg.Players),
		archiver: archive.New(cfg.Players),
		players:  cfg.Players,
		opponent: cfg.Opponent,
		presence: cfg.Presence,
		peers:    make(map[string]Peer),
		rooms:    make(map[string]*room),
		maxRooms: maxRooms,
	}
}

// Register adds a connected peer. A second connection for the same player
// replaces the first; the transport closes the loser.
func (h *Hub) Register(ctx context.Context, p Peer) (replaced Peer) {
	h.mu.Lock()
	replaced = h.peers[p.ID()]
	h.peers[p.ID()] = p
	h.mu.Unlock()

	if h.presence != nil {
		h.presence.SetOnline(ctx, p.ID())
	}
	obslog.L().Info("peer_connected", zap.String("player_id", p.ID()))
	return replaced
}

// Unregister tears down a departed player: queue entry, pending invites,
// and every in-progress game (forfeited).
func (h *Hub) Unregister(ctx context.Context, p Peer) {
	playerID := p.ID()

	h.mu.Lock()
	if h.peers[playerID] != p {
		// A reconnect already replaced this peer; nothing to tear down.
		h.mu.Unlock()
		return
	}
	delete(h.peers, playerID)
	var playing []*room
	for _, r := range h.rooms {
		if _, ok := r.session.SideOf(playerID); ok {
			playing = append(playing, r)
		}
	}
	h.mu.Unlock()

	_ = h.queue.Remove(playerID)
	for _, inv := range h.invites.DropPlayer(playerID) {
		if inv.To == playerID {
			h.sendTo(inv.From, wire.TypeInviteDeclined, wire.InviteDeclined{By: playerID})
		}
	}
	for _, r := range playing {
		if upd, err := r.session.Forfeit(playerID); err == nil {
			h.finishRoom(ctx, r, upd)
		}
	}
	if h.presence != nil {
		h.presence.SetOffline(ctx, playerID)
	}
	obslog.L().Info("peer_disconnected", zap.String("player_id", playerID))
}

// HandleEnvelope dispatches one inbound event. Failures are answered with
// an error event on the sender's connection and never propagate.
func (h *Hub) HandleEnvelope(ctx context.Context, playerID string, env wire.Envelope) {
	var err error
	switch env.Type {
	case wire.TypeEnqueue:
		var p wire.Enqueue
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = h.handleEnqueue(ctx, playerID, p)
		}
	case wire.TypeInvite:
		var p wire.Invite
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = h.handleInvite(ctx, playerID, p)
		}
	case wire.TypeAcceptInvite:
		var p wire.AnswerInvite
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = h.handleAcceptInvite(ctx, playerID, p)
		}
	case wire.TypeDeclineInvite:
		var p wire.AnswerInvite
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = h.handleDeclineInvite(playerID, p)
		}
	case wire.TypeSubmitMove:
		var p wire.SubmitMove
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = h.handleSubmitMove(ctx, playerID, p)
		}
	case wire.TypeForfeit:
		var p wire.Forfeit
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = h.handleForfeit(ctx, playerID, p)
		}
	case wire.TypePlayComputer:
		var p wire.PlayComputer
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = h.handlePlayComputer(ctx, playerID, p)
		}
	default:
		err = errUnknownEvent
	}

	if err != nil {
		code, msg := classify(err)
		h.sendTo(playerID, wire.TypeError, wire.Error{Code: code, Message: msg})
		obslog.L().Debug("event_rejected",
			zap.String("player_id", playerID),
			zap.String("type", env.Type),
			zap.String("code", code),
			zap.Error(err),
		)
	}
}

var errUnknownEvent = errors.New("unknown event type")

// classify maps internal errors to stable wire codes.
func classify(err error) (code, msg string) {
	var ill *engine.IllegalMoveError
	switch {
	case errors.As(err, &ill):
		return wire.CodeIllegalMove, ill.Error()
	case errors.Is(err, game.ErrNotYourTurn):
		return wire.CodeNotYourTurn, "not your turn"
	case errors.Is(err, game.ErrGameOver), errors.Is(err, errRoomNotFound), errors.Is(err, game.ErrNotParticipant):
		return wire.CodeRoomNotFound, "no such game"
	case errors.Is(err, match.ErrAlreadyQueued):
		return wire.CodeAlreadyQueued, "already waiting for a match"
	case errors.Is(err, errAlreadyPlaying):
		return wire.CodeAlreadyPlaying, "finish your current game first"
	case errors.Is(err, match.ErrSelfInvite):
		return wire.CodeSelfInvite, "cannot invite yourself"
	case errors.Is(err, match.ErrInvitePending):
		return wire.CodeInvitePending, "your previous invite is still pending"
	case errors.Is(err, match.ErrNoInvite):
		return wire.CodeNoInvite, "no such invite"
	case errors.Is(err, errPlayerOffline):
		return wire.CodePlayerOffline, "player is not connected"
	case errors.Is(err, game.ErrUnknownMode):
		return wire.CodeUnknownMode, "unknown game mode"
	case errors.Is(err, ai.ErrUnavailable):
		return wire.CodeAIUnavailable, "computer opponent is not available"
	case errors.Is(err, errRoomLimit):
		return wire.CodeInternal, "server is at capacity"
	case errors.Is(err, errUnknownEvent), isJSONError(err):
		return wire.CodeBadEvent, "malformed event"
	default:
		return wire.CodeInternal, "internal error"
	}
}

func isJSONError(err error) bool {
	var syntax *json.SyntaxError
	var unmarshal *json.UnmarshalTypeError
	return errors.As(err, &syntax) || errors.As(err, &unmarshal)
}

var (
	errRoomNotFound   = errors.New("room not found")
	errPlayerOffline  = errors.New("player offline")
	errAlreadyPlaying = errors.New("player already in a game")
	errRoomLimit      = errors.New("room limit reached")
)

func (h *Hub) handleEnqueue(ctx context.Context, playerID string, p wire.Enqueue) error {
	mode, err := h.modes.Get(p.Mode)
	if err != nil {
		return err
	}
	if h.isPlaying(playerID) {
		return errAlreadyPlaying
	}
	pair, paired, err := h.queue.Enqueue(playerID, mode.ID)
	if err != nil {
		return err
	}
	if !paired {
		return nil
	}
	return h.startRoom(ctx, mode, pair.White, pair.Black, true)
}

func (h *Hub) handleInvite(ctx context.Context, playerID string, p wire.Invite) error {
	mode, err := h.modes.Get(p.Mode)
	if err != nil {
		return err
	}
	if h.isPlaying(playerID) {
		return errAlreadyPlaying
	}
	if !h.isOnline(p.To) {
		return errPlayerOffline
	}
	inv, err := h.invites.Create(playerID, p.To, mode.ID)
	if err != nil {
		return err
	}
	h.sendTo(inv.To, wire.TypeMatchInvite, wire.MatchInvite{
		From:     inv.From,
		FromName: h.displayName(ctx, inv.From),
		Mode:     inv.ModeID,
	})
	return nil
}

func (h *Hub) handleAcceptInvite(ctx context.Context, playerID string, p wire.AnswerInvite) error {
	inv, err := h.invites.Accept(playerID, p.From)
	if err != nil {
		return err
	}
	if !h.isOnline(inv.From) {
		return errPlayerOffline
	}
	// Neither side may hold a seat in two rooms.
	if h.isPlaying(inv.From) || h.isPlaying(inv.To) {
		return errAlreadyPlaying
	}
	mode, err := h.modes.Get(inv.ModeID)
	if err != nil {
		return err
	}
	white, black := match.AssignColors(inv.From, inv.To)
	return h.startRoom(ctx, mode, white, black, true)
}

func (h *Hub) handleDeclineInvite(playerID string, p wire.AnswerInvite) error {
	inv, err := h.invites.Decline(playerID, p.From)
	if err != nil {
		return err
	}
	h.sendTo(inv.From, wire.TypeInviteDeclined, wire.InviteDeclined{By: playerID})
	return nil
}

func (h *Hub) handleSubmitMove(ctx context.Context, playerID string, p wire.SubmitMove) error {
	r, err := h.room(p.RoomID)
	if err != nil {
		return err
	}
	mv, err := engine.ParseMove(p.Move)
	if err != nil {
		return &engine.IllegalMoveError{Reason: "unparseable move " + p.Move}
	}
	upd, err := r.session.ApplyMove(playerID, mv)
	if err != nil {
		return err
	}
	h.broadcastUpdate(r, upd)
	if upd.Result != game.ResultNone {
		h.finishRoom(ctx, r, upd)
		return nil
	}
	if r.aiSeat != "" {
		if side, ok := r.session.SideOf(r.aiSeat); ok && side == r.session.Snapshot().Turn {
			go h.playAIMove(ctx, r)
		}
	}
	return nil
}

func (h *Hub) handleForfeit(ctx context.Context, playerID string, p wire.Forfeit) error {
	r, err := h.room(p.RoomID)
	if err != nil {
		return err
	}
	upd, err := r.session.Forfeit(playerID)
	if err != nil {
		return err
	}
	h.finishRoom(ctx, r, upd)
	return nil
}

func (h *Hub) handlePlayComputer(ctx context.Context, playerID string, p wire.PlayComputer) error {
	if h.opponent == nil {
		return ai.ErrUnavailable
	}
	mode, err := h.modes.Get(p.Mode)
	if err != nil {
		return err
	}
	if h.isPlaying(playerID) {
		return errAlreadyPlaying
	}
	level := p.Level
	if level < ai.MinLevel {
		level = ai.MinLevel
	}
	if level > ai.MaxLevel {
		level = ai.MaxLevel
	}

	aiSeat := aiSeatID(level)
	white, black := match.AssignColors(playerID, aiSeat)
	r, err := h.createRoom(mode, white, black, false, aiSeat, level)
	if err != nil {
		return err
	}
	h.announceRoom(ctx, r)

	if side, ok := r.session.SideOf(aiSeat); ok && side == engine.White {
		go h.playAIMove(ctx, r)
	}
	return nil
}

// --- registry helpers ---

func (h *Hub) room(roomID string) (*room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return nil, errRoomNotFound
	}
	return r, nil
}

func (h *Hub) isOnline(playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.peers[playerID]
	return ok
}

func (h *Hub) isPlaying(playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.rooms {
		if _, ok := r.session.SideOf(playerID); ok {
			return true
		}
	}
	return false
}

func (h *Hub) sendTo(playerID, eventType string, payload any) {
	h.mu.Lock()
	p, ok := h.peers[playerID]
	h.mu.Unlock()
	if !ok {
		return
	}
	env, err := wire.NewEnvelope(eventType, payload)
	if err != nil {
		obslog.L().Error("encode_event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if !p.Send(env) {
		obslog.L().Warn("peer_send_dropped",
			zap.String("player_id", playerID),
			zap.String("type", eventType),
		)
	}
}

func (h *Hub) displayName(ctx context.Context, playerID string) string {
	if h.players == nil {
		return playerID
	}
	p, err := h.players.Player(ctx, playerID)
	if err != nil || p == nil || p.Name == "" {
		return playerID
	}
	return p.Name
}
