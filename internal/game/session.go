package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kapu/chess-arena-go/internal/engine"
)

var (
	ErrNotParticipant = errors.New("player is not in this game")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrGameOver       = errors.New("game already over")
)

// Status is the session lifecycle: a session is created in progress and
// completes exactly once.
type Status uint8

const (
	InProgress Status = iota
	Completed
)

// Result of a completed game.
type Result uint8

const (
	ResultNone Result = iota
	WhiteWins
	BlackWins
	Draw
)

func (r Result) String() string {
	switch r {
	case WhiteWins:
		return "white_wins"
	case BlackWins:
		return "black_wins"
	case Draw:
		return "draw"
	default:
		return "none"
	}
}

// Reason a completed game ended.
type Reason string

const (
	ReasonCheckmate Reason = "checkmate"
	ReasonStalemate Reason = "stalemate"
	ReasonTimeout   Reason = "timeout"
	ReasonForfeit   Reason = "forfeit"
)

// Update describes what a session operation changed; the caller turns it
// into outbound events. Applied marks a move that took effect; a non-None
// Result marks completion.
type Update struct {
	Applied    bool
	Move       engine.Move
	MovedBy    engine.Side
	Check      bool
	Result     Result
	Reason     Reason
	WhiteClock time.Duration
	BlackClock time.Duration
}

// Session is one live game between two seats. All operations serialize on
// an internal mutex; Apply/Tick/Forfeit racing each other observe a
// consistent clock and at most one completion.
type Session struct {
	ID      string
	Mode    Mode
	WhiteID string
	BlackID string
	Rated   bool

	mu        sync.Mutex
	pos       *engine.Position
	moves     []engine.Move
	status    Status
	result    Result
	reason    Reason
	remaining [2]time.Duration // banked time per side
	turnStart time.Time        // when the side to move began thinking
	startedAt time.Time

	now func() time.Time
}

// New starts a session with both clocks at the mode budget; White's clock
// runs from the moment of creation.
func New(id string, mode Mode, whiteID, blackID string, rated bool) *Session {
	s := &Session{
		ID:      id,
		Mode:    mode,
		WhiteID: whiteID,
		BlackID: blackID,
		Rated:   rated,
		pos:     engine.StartingPosition(),
		now:     time.Now,
	}
	s.remaining[engine.White] = mode.TimePerSide
	s.remaining[engine.Black] = mode.TimePerSide
	s.startedAt = s.now()
	s.turnStart = s.startedAt
	return s
}

// SetClock swaps the session's time source; fixtures install a fake clock
// here.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SideOf maps a player id to a seat.
func (s *Session) SideOf(playerID string) (engine.Side, bool) {
	switch playerID {
	case s.WhiteID:
		return engine.White, true
	case s.BlackID:
		return engine.Black, true
	default:
		return engine.White, false
	}
}

func (s *Session) playerFor(side engine.Side) string {
	if side == engine.White {
		return s.WhiteID
	}
	return s.BlackID
}

// ApplyMove validates turn order and legality, debits the mover's clock by
// the elapsed thinking time, and advances the position. A clock found
// already exhausted completes the game by timeout instead; the move does
// not apply.
func (s *Session) ApplyMove(playerID string, m engine.Move) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == Completed {
		return Update{}, ErrGameOver
	}
	side, ok := s.SideOf(playerID)
	if !ok {
		return Update{}, ErrNotParticipant
	}
	if side != s.pos.Turn() {
		return Update{}, ErrNotYourTurn
	}

	elapsed := s.now().Sub(s.turnStart)
	if elapsed >= s.remaining[side] {
		s.remaining[side] = 0
		s.completeLocked(winnerOf(side.Other()), ReasonTimeout)
		return s.updateLocked(), nil
	}

	next, err := s.pos.Apply(m)
	if err != nil {
		return Update{}, fmt.Errorf("apply move: %w", err)
	}

	s.remaining[side] -= elapsed
	s.turnStart = s.now()
	s.pos = next
	s.moves = append(s.moves, m)

	upd := Update{Applied: true, Move: m, MovedBy: side}
	switch next.Classify() {
	case engine.Checkmate:
		s.completeLocked(winnerOf(side), ReasonCheckmate)
	case engine.Stalemate:
		s.completeLocked(Draw, ReasonStalemate)
	case engine.Check:
		upd.Check = true
	}
	full := s.updateLocked()
	full.Applied, full.Move, full.MovedBy, full.Check = upd.Applied, upd.Move, upd.MovedBy, upd.Check
	return full, nil
}

// Tick checks the running clock; it completes the session when the side to
// move has exhausted its budget. The bool reports whether anything changed.
func (s *Session) Tick() (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == Completed {
		return Update{}, false
	}
	side := s.pos.Turn()
	if s.now().Sub(s.turnStart) < s.remaining[side] {
		return Update{}, false
	}
	s.remaining[side] = 0
	s.completeLocked(winnerOf(side.Other()), ReasonTimeout)
	return s.updateLocked(), true
}

// Forfeit resigns playerID's seat; the opponent wins.
func (s *Session) Forfeit(playerID string) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == Completed {
		return Update{}, ErrGameOver
	}
	side, ok := s.SideOf(playerID)
	if !ok {
		return Update{}, ErrNotParticipant
	}
	s.bankLocked()
	s.completeLocked(winnerOf(side.Other()), ReasonForfeit)
	return s.updateLocked(), nil
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	ID         string
	ModeID     string
	WhiteID    string
	BlackID    string
	Rated      bool
	Status     Status
	Result     Result
	Reason     Reason
	Turn       engine.Side
	Moves      []string
	WhiteClock time.Duration
	BlackClock time.Duration
	Position   *engine.Position
	StartedAt  time.Time
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	moves := make([]string, len(s.moves))
	for i, m := range s.moves {
		moves[i] = m.String()
	}
	snap := Snapshot{
		ID:      s.ID,
		ModeID:  s.Mode.ID,
		WhiteID: s.WhiteID,
		BlackID: s.BlackID,
		Rated:   s.Rated,
		Status:  s.status,
		Result:  s.result,
		Reason:  s.reason,
		Turn:    s.pos.Turn(),
		Moves:   moves,
		// Position values are immutable; sharing the pointer is safe.
		Position:  s.pos,
		StartedAt: s.startedAt,
	}
	snap.WhiteClock, snap.BlackClock = s.clocksLocked()
	return snap
}

// Winner returns the player id on the winning side of a completed game.
func (s *Session) Winner() (winner, loser string, decisive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.result {
	case WhiteWins:
		return s.WhiteID, s.BlackID, true
	case BlackWins:
		return s.BlackID, s.WhiteID, true
	default:
		return "", "", false
	}
}

// clocksLocked reports live remaining time: the running side's bank less
// its current thinking time.
func (s *Session) clocksLocked() (white, black time.Duration) {
	white = s.remaining[engine.White]
	black = s.remaining[engine.Black]
	if s.status != Completed {
		side := s.pos.Turn()
		live := s.remaining[side] - s.now().Sub(s.turnStart)
		if live < 0 {
			live = 0
		}
		if side == engine.White {
			white = live
		} else {
			black = live
		}
	}
	return white, black
}

// bankLocked folds the running side's elapsed time into its bank; used when
// the game ends without a move.
func (s *Session) bankLocked() {
	side := s.pos.Turn()
	s.remaining[side] -= s.now().Sub(s.turnStart)
	if s.remaining[side] < 0 {
		s.remaining[side] = 0
	}
	s.turnStart = s.now()
}

func (s *Session) completeLocked(result Result, reason Reason) {
	s.status = Completed
	s.result = result
	s.reason = reason
}

func (s *Session) updateLocked() Update {
	upd := Update{Result: s.result, Reason: s.reason}
	upd.WhiteClock, upd.BlackClock = s.clocksLocked()
	return upd
}

func winnerOf(side engine.Side) Result {
	if side == engine.White {
		return WhiteWins
	}
	return BlackWins
}
