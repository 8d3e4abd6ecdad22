package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/kapu/chess-arena-go/internal/rating"
)

// Open dials Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

type postgresStore struct {
	db *sql.DB
}

// NewPostgres returns a PlayerStore backed by the players and games tables.
func NewPostgres(db *sql.DB) PlayerStore {
	return &postgresStore{db: db}
}

func (s *postgresStore) Player(ctx context.Context, id string) (*Player, error) {
	const playerQuery = `SELECT id, display_name FROM players WHERE id = $1`

	var p Player
	err := s.db.QueryRowContext(ctx, playerQuery, id).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select player: %w", err)
	}

	const ratingsQuery = `
		SELECT mode, rating, games_played
		FROM ratings
		WHERE player_id = $1`

	rows, err := s.db.QueryContext(ctx, ratingsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("select ratings: %w", err)
	}
	defer rows.Close()

	p.Ratings = make(map[string]int)
	for rows.Next() {
		var mode string
		var r, played int
		if err := rows.Scan(&mode, &r, &played); err != nil {
			return nil, fmt.Errorf("scan rating row: %w", err)
		}
		p.Ratings[mode] = r
		p.GamesPlayed += played
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return &p, nil
}

func (s *postgresStore) Rating(ctx context.Context, id, mode string) (int, error) {
	const query = `SELECT rating FROM ratings WHERE player_id = $1 AND mode = $2`

	var r int
	err := s.db.QueryRowContext(ctx, query, id, mode).Scan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return rating.Default, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select rating: %w", err)
	}
	return r, nil
}

func (s *postgresStore) SaveRating(ctx context.Context, id, mode string, value int) error {
	const playerQuery = `
		INSERT INTO players (id, display_name)
		VALUES ($1, $1)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, playerQuery, id); err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}

	const ratingQuery = `
		INSERT INTO ratings (player_id, mode, rating, games_played, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (player_id, mode)
		DO UPDATE SET
			rating = EXCLUDED.rating,
			games_played = ratings.games_played + 1,
			updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, ratingQuery, id, mode, value); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

func (s *postgresStore) InsertGame(ctx context.Context, rec *GameRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("nil game record")
	}
	movesUCI, err := json.Marshal(rec.MovesUCI)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(rec.MovesSAN)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO games (
			room_id,
			mode,
			white_id,
			black_id,
			result,
			result_reason,
			moves_uci,
			moves_san,
			pgn,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10, $11, $12)
		ON CONFLICT (room_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = s.db.QueryRowContext(
		ctx,
		query,
		rec.RoomID,
		rec.ModeID,
		rec.WhiteID,
		rec.BlackID,
		rec.Result,
		rec.Reason,
		movesUCI,
		movesSAN,
		rec.PGN,
		rec.StartedAt,
		rec.EndedAt,
		rec.Duration.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}
	return id.Int64, nil
}
