package hub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/engine"
	"github.com/kapu/chess-arena-go/internal/game"
	"github.com/kapu/chess-arena-go/internal/obslog"
	"github.com/kapu/chess-arena-go/internal/rating"
	"github.com/kapu/chess-arena-go/pkg/wire"
)

// room couples a session with its transport bookkeeping. aiSeat is the
// synthetic player id of the engine seat, empty for human games.
type room struct {
	id      string
	session *game.Session
	aiSeat  string
	aiLevel int
}

func aiSeatID(level int) string { return fmt.Sprintf("cpu:%d", level) }

func isAISeat(playerID string) bool { return strings.HasPrefix(playerID, "cpu:") }

// startRoom creates a rated room for a formed human pair and announces it.
func (h *Hub) startRoom(ctx context.Context, mode game.Mode, white, black string, rated bool) error {
	r, err := h.createRoom(mode, white, black, rated, "", 0)
	if err != nil {
		return err
	}
	h.announceRoom(ctx, r)
	return nil
}

func (h *Hub) createRoom(mode game.Mode, white, black string, rated bool, aiSeat string, aiLevel int) (*room, error) {
	r := &room{
		id:      uuid.NewString(),
		session: game.New(uuid.NewString(), mode, white, black, rated),
		aiSeat:  aiSeat,
		aiLevel: aiLevel,
	}
	// Room id doubles as session id.
	r.session.ID = r.id

	h.mu.Lock()
	if len(h.rooms) >= h.maxRooms {
		h.mu.Unlock()
		return nil, errRoomLimit
	}
	h.rooms[r.id] = r
	h.mu.Unlock()

	obslog.L().Info("room_created",
		zap.String("room_id", r.id),
		zap.String("mode", mode.ID),
		zap.String("white", white),
		zap.String("black", black),
		zap.Bool("rated", rated),
	)
	return r, nil
}

func (h *Hub) announceRoom(ctx context.Context, r *room) {
	snap := r.session.Snapshot()
	for _, seat := range []struct {
		playerID string
		color    string
		opponent string
	}{
		{snap.WhiteID, "white", snap.BlackID},
		{snap.BlackID, "black", snap.WhiteID},
	} {
		if isAISeat(seat.playerID) {
			continue
		}
		h.sendTo(seat.playerID, wire.TypeMatchFound, wire.MatchFound{
			RoomID:       r.id,
			Mode:         snap.ModeID,
			Color:        seat.color,
			OpponentID:   seat.opponent,
			OpponentName: h.displayName(ctx, seat.opponent),
			Rated:        snap.Rated,
		})
	}
}

// broadcastUpdate relays an applied move to both seats.
func (h *Hub) broadcastUpdate(r *room, upd game.Update) {
	if !upd.Applied {
		return
	}
	payload := wire.MoveApplied{
		RoomID:       r.id,
		Move:         upd.Move.String(),
		By:           upd.MovedBy.String(),
		Check:        upd.Check,
		WhiteClockMS: upd.WhiteClock.Milliseconds(),
		BlackClockMS: upd.BlackClock.Milliseconds(),
	}
	snap := r.session.Snapshot()
	for _, playerID := range []string{snap.WhiteID, snap.BlackID} {
		if !isAISeat(playerID) {
			h.sendTo(playerID, wire.TypeMoveApplied, payload)
		}
	}
}

// finishRoom settles a completed game exactly once: the room is evicted
// under the lock, and only the evicting caller archives, rates and
// broadcasts.
func (h *Hub) finishRoom(ctx context.Context, r *room, upd game.Update) {
	h.mu.Lock()
	if _, live := h.rooms[r.id]; !live {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, r.id)
	h.mu.Unlock()

	snap := r.session.Snapshot()
	over := wire.GameOver{
		RoomID: r.id,
		Result: upd.Result.String(),
		Reason: string(upd.Reason),
	}

	if snap.Rated {
		over.Ratings = h.settle(ctx, r, upd)
	}
	for _, playerID := range []string{snap.WhiteID, snap.BlackID} {
		if !isAISeat(playerID) {
			h.sendTo(playerID, wire.TypeGameOver, over)
		}
	}
	if err := h.archiver.Record(ctx, snap); err != nil {
		obslog.L().Error("archive_game", zap.String("room_id", r.id), zap.Error(err))
	}

	obslog.L().Info("room_finished",
		zap.String("room_id", r.id),
		zap.String("result", upd.Result.String()),
		zap.String("reason", string(upd.Reason)),
		zap.Int("plies", len(snap.Moves)),
	)
}

func (h *Hub) settle(ctx context.Context, r *room, upd game.Update) []wire.RatingChange {
	snap := r.session.Snapshot()

	var changes []wire.RatingChange
	switch upd.Result {
	case game.Draw:
		ca, cb, err := h.updater.SettleDraw(ctx, snap.ModeID, snap.WhiteID, snap.BlackID)
		if err != nil {
			obslog.L().Error("settle_draw", zap.String("room_id", r.id), zap.Error(err))
		}
		changes = append(changes, ratingChange(ca), ratingChange(cb))
	case game.WhiteWins, game.BlackWins:
		winner, loser, ok := r.session.Winner()
		if !ok {
			return nil
		}
		cw, cl, err := h.updater.SettleDecisive(ctx, snap.ModeID, winner, loser)
		if err != nil {
			obslog.L().Error("settle_decisive", zap.String("room_id", r.id), zap.Error(err))
		}
		changes = append(changes, ratingChange(cw), ratingChange(cl))
	}
	return changes
}

func ratingChange(ch rating.Change) wire.RatingChange {
	return wire.RatingChange{PlayerID: ch.PlayerID, Mode: ch.Mode, Before: ch.Before, After: ch.After}
}

// playAIMove asks the engine for a reply and applies it as the AI seat.
func (h *Hub) playAIMove(ctx context.Context, r *room) {
	snap := r.session.Snapshot()
	if snap.Status == game.Completed {
		return
	}
	mv, err := h.opponent.BestMove(ctx, snap.Moves, r.aiLevel)
	if err != nil {
		obslog.L().Error("ai_move", zap.String("room_id", r.id), zap.Error(err))
		// The engine seat resigns rather than stalling the human.
		if upd, ferr := r.session.Forfeit(r.aiSeat); ferr == nil {
			h.finishRoom(ctx, r, upd)
		}
		return
	}
	upd, err := r.session.ApplyMove(r.aiSeat, mv)
	if err != nil {
		obslog.L().Error("ai_move_apply", zap.String("room_id", r.id), zap.String("move", mv.String()), zap.Error(err))
		return
	}
	h.broadcastUpdate(r, upd)
	if upd.Result != game.ResultNone {
		h.finishRoom(ctx, r, upd)
	}
}

// Run drives all room clocks with a single one-second ticker until the
// context ends.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tickRooms(ctx)
		}
	}
}

func (h *Hub) tickRooms(ctx context.Context) {
	h.mu.Lock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	for _, r := range rooms {
		if upd, expired := r.session.Tick(); expired {
			h.finishRoom(ctx, r, upd)
		}
	}
}

// RoomSnapshot exposes a room's state for HTTP surfaces (board rendering).
func (h *Hub) RoomSnapshot(roomID string) (game.Snapshot, bool) {
	r, err := h.room(roomID)
	if err != nil {
		return game.Snapshot{}, false
	}
	return r.session.Snapshot(), true
}

// Position returns the live position of a room.
func (h *Hub) Position(roomID string) (*engine.Position, bool) {
	snap, ok := h.RoomSnapshot(roomID)
	if !ok {
		return nil, false
	}
	return snap.Position, true
}
