package store

import (
	"context"
	"errors"
	"time"
)

var ErrDuplicateGame = errors.New("game already archived")

// Player is a directory entry from the player store. Ratings are kept per
// game mode; a mode the player never finished a game in has no entry.
type Player struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Ratings     map[string]int `json:"ratings"`
	GamesPlayed int            `json:"gamesPlayed"`
}

// GameRecord is one finished game's archive row.
type GameRecord struct {
	RoomID    string
	ModeID    string
	WhiteID   string
	BlackID   string
	Result    string
	Reason    string
	MovesUCI  []string
	MovesSAN  []string
	PGN       string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
}

// PlayerStore is the persistence surface: the player directory, per-mode
// ratings and the game archive. Lookups of unknown players return
// (nil, nil); an unrated (player, mode) pair returns the default.
type PlayerStore interface {
	Player(ctx context.Context, id string) (*Player, error)
	Rating(ctx context.Context, id, mode string) (int, error)
	SaveRating(ctx context.Context, id, mode string, rating int) error
	InsertGame(ctx context.Context, rec *GameRecord) (int64, error)
}
