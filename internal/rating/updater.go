package rating

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/obslog"
)

// Store is the persistence surface the updater needs. Ratings are keyed by
// player and game mode.
type Store interface {
	Rating(ctx context.Context, playerID, mode string) (int, error)
	SaveRating(ctx context.Context, playerID, mode string, rating int) error
}

// Change records one player's rating movement in one mode.
type Change struct {
	PlayerID string
	Mode     string
	Before   int
	After    int
}

// Updater settles a finished game's ratings. Both ratings are read before
// either write; writes retry with the already-computed values and never
// recompute from re-read state.
type Updater struct {
	store   Store
	retries int
}

func NewUpdater(store Store) *Updater {
	return &Updater{store: store, retries: 3}
}

// SettleDecisive applies a win/loss between two players rated in mode.
func (u *Updater) SettleDecisive(ctx context.Context, mode, winnerID, loserID string) (Change, Change, error) {
	return u.settle(ctx, mode, winnerID, loserID, ScoreWin)
}

// SettleDraw applies a draw between two players rated in mode.
func (u *Updater) SettleDraw(ctx context.Context, mode, aID, bID string) (Change, Change, error) {
	return u.settle(ctx, mode, aID, bID, ScoreDraw)
}

func (u *Updater) settle(ctx context.Context, mode, aID, bID string, aScore float64) (Change, Change, error) {
	aBefore, err := u.store.Rating(ctx, aID, mode)
	if err != nil {
		return Change{}, Change{}, fmt.Errorf("read %s rating %s: %w", mode, aID, err)
	}
	bBefore, err := u.store.Rating(ctx, bID, mode)
	if err != nil {
		return Change{}, Change{}, fmt.Errorf("read %s rating %s: %w", mode, bID, err)
	}

	a := Change{PlayerID: aID, Mode: mode, Before: aBefore, After: Next(aBefore, bBefore, aScore)}
	b := Change{PlayerID: bID, Mode: mode, Before: bBefore, After: Next(bBefore, aBefore, 1-aScore)}

	errA := u.save(ctx, a)
	errB := u.save(ctx, b)
	if errA != nil {
		return a, b, errA
	}
	return a, b, errB
}

func (u *Updater) save(ctx context.Context, ch Change) error {
	var err error
	for attempt := 1; attempt <= u.retries; attempt++ {
		if err = u.store.SaveRating(ctx, ch.PlayerID, ch.Mode, ch.After); err == nil {
			return nil
		}
		obslog.L().Warn("rating_save_retry",
			zap.String("player_id", ch.PlayerID),
			zap.String("mode", ch.Mode),
			zap.Int("attempt", attempt),
			zap.Int("rating", ch.After),
			zap.Error(err),
		)
	}
	return fmt.Errorf("save %s rating for %s: %w", ch.Mode, ch.PlayerID, err)
}
