package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/game"
	"github.com/kapu/chess-arena-go/internal/obslog"
	"github.com/kapu/chess-arena-go/internal/store"
)

// Archiver records finished games: the coordinate move log is replayed
// through a notation library to produce SAN and PGN, then written to the
// player store.
type Archiver struct {
	store store.PlayerStore
}

func New(st store.PlayerStore) *Archiver {
	return &Archiver{store: st}
}

// Record persists one finished game. Duplicate rooms are ignored so a
// retried settlement cannot double-archive.
func (a *Archiver) Record(ctx context.Context, snap game.Snapshot) error {
	san, err := EncodeSAN(snap.Moves)
	if err != nil {
		// The move log came from the rules engine; a notation failure is
		// a bug worth logging, not a reason to drop the row.
		obslog.L().Error("archive_san_encode", zap.String("room_id", snap.ID), zap.Error(err))
		san = nil
	}

	endedAt := time.Now()
	rec := &store.GameRecord{
		RoomID:    snap.ID,
		ModeID:    snap.ModeID,
		WhiteID:   snap.WhiteID,
		BlackID:   snap.BlackID,
		Result:    snap.Result.String(),
		Reason:    string(snap.Reason),
		MovesUCI:  snap.Moves,
		MovesSAN:  san,
		PGN:       BuildPGN(snap, san, endedAt),
		StartedAt: snap.StartedAt,
		EndedAt:   endedAt,
		Duration:  endedAt.Sub(snap.StartedAt),
	}

	if _, err := a.store.InsertGame(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateGame) {
			return nil
		}
		return fmt.Errorf("archive game %s: %w", snap.ID, err)
	}
	return nil
}

// EncodeSAN replays a coordinate move log and returns the SAN rendering of
// each move.
func EncodeSAN(movesUCI []string) ([]string, error) {
	g := nchess.NewGame()
	san := make([]string, 0, len(movesUCI))
	for i, uci := range movesUCI {
		pos := g.Position()
		mv, err := (nchess.UCINotation{}).Decode(pos, uci)
		if err != nil {
			return nil, fmt.Errorf("decode move %d %q: %w", i+1, uci, err)
		}
		if err := g.Move(mv, nil); err != nil {
			return nil, fmt.Errorf("replay move %d %q: %w", i+1, uci, err)
		}
		san = append(san, nchess.AlgebraicNotation{}.Encode(pos, mv))
	}
	return san, nil
}

// BuildPGN renders headers plus the numbered SAN move text.
func BuildPGN(snap game.Snapshot, san []string, endedAt time.Time) string {
	var b strings.Builder
	result := pgnResult(snap.Result)

	b.WriteString("[Event \"Arena " + sanitizePGN(snap.ModeID) + "\"]\n")
	b.WriteString("[Site \"chess-arena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", endedAt.Year(), int(endedAt.Month()), endedAt.Day()))
	b.WriteString(fmt.Sprintf("[White %q]\n", sanitizePGN(snap.WhiteID)))
	b.WriteString(fmt.Sprintf("[Black %q]\n", sanitizePGN(snap.BlackID)))
	if snap.Reason != "" {
		b.WriteString(fmt.Sprintf("[Termination %q]\n", string(snap.Reason)))
	}
	b.WriteString(fmt.Sprintf("[Result %q]\n\n", result))

	for i := 0; i < len(san); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(san[i])))
		if i+1 < len(san) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(san[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func pgnResult(r game.Result) string {
	switch r {
	case game.WhiteWins:
		return "1-0"
	case game.BlackWins:
		return "0-1"
	case game.Draw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
