package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/engine"
	"github.com/kapu/chess-arena-go/internal/obslog"
)

var ErrUnavailable = errors.New("computer opponent not configured")

const (
	MinLevel = 1
	MaxLevel = 8
)

// levelElo maps a coarse difficulty level to a UCI_Elo target.
var levelElo = map[int]int{
	1: 600,
	2: 700,
	3: 800,
	4: 1000,
	5: 1200,
	6: 1400,
	7: 1650,
	8: 1900,
}

// LevelElo clamps a requested level into range and returns its Elo target.
func LevelElo(level int) int {
	if level < MinLevel {
		level = MinLevel
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelElo[level]
}

// Opponent produces engine replies for computer games. It is optional: a
// server without a configured binary runs with opponent == nil and rejects
// computer-game requests.
type Opponent struct {
	pool    *Pool
	depth   int
	timeout time.Duration
}

type OpponentConfig struct {
	BinaryPath  string
	PoolSize    int
	Depth       int
	MoveTimeout time.Duration
}

func NewOpponent(cfg OpponentConfig) (*Opponent, error) {
	if cfg.BinaryPath == "" {
		return nil, ErrUnavailable
	}
	pool, err := NewPool(cfg.BinaryPath, cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	depth := cfg.Depth
	if depth <= 0 {
		depth = 12
	}
	timeout := cfg.MoveTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Opponent{pool: pool, depth: depth, timeout: timeout}, nil
}

// BestMove searches the position reached by the move log and returns the
// engine's reply.
func (o *Opponent) BestMove(ctx context.Context, movesUCI []string, level int) (engine.Move, error) {
	if o == nil {
		return engine.Move{}, ErrUnavailable
	}
	opt := Options{Elo: LevelElo(level)}

	started := time.Now()
	sess, err := o.pool.Acquire(ctx, opt)
	if err != nil {
		return engine.Move{}, fmt.Errorf("acquire engine session: %w", err)
	}
	raw, err := sess.BestMove(ctx, movesUCI, o.depth, o.timeout)
	o.pool.Release(sess, err)
	if err != nil {
		return engine.Move{}, err
	}

	mv, err := engine.ParseMove(raw)
	if err != nil {
		return engine.Move{}, fmt.Errorf("engine produced %q: %w", raw, err)
	}
	obslog.L().Debug("ai_best_move",
		zap.String("move", mv.String()),
		zap.Int("level", level),
		zap.Int("ply", len(movesUCI)+1),
		zap.Duration("latency", time.Since(started)),
	)
	return mv, nil
}

func (o *Opponent) Close() error {
	if o == nil {
		return nil
	}
	return o.pool.Close()
}
