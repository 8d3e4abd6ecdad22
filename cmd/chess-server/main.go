package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/ai"
	appcfg "github.com/kapu/chess-arena-go/internal/config"
	"github.com/kapu/chess-arena-go/internal/game"
	"github.com/kapu/chess-arena-go/internal/hub"
	"github.com/kapu/chess-arena-go/internal/obslog"
	"github.com/kapu/chess-arena-go/internal/server"
	"github.com/kapu/chess-arena-go/internal/store"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer obslog.L().Sync()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	modes, err := game.LoadModes(cfg.ModeCatalogPath)
	if err != nil {
		log.Fatalf("mode catalog error: %v", err)
	}

	// Storage: Postgres when configured, in-memory otherwise.
	players := store.NewMemory()
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres error: %v", err)
		}
		defer db.Close()
		players = store.NewPostgres(db)
	} else {
		obslog.L().Warn("no DATABASE_URL set, ratings and archives are in-memory")
	}

	var presence hub.Presence
	if cfg.RedisURL != "" {
		opts, err := store.ParseRedisURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
		defer rdb.Close()
		cached := store.NewCached(players, rdb, time.Duration(cfg.DirectoryCacheTTLSec)*time.Second)
		players = cached
		presence = cached
	}

	var opponent *ai.Opponent
	if cfg.StockfishPath != "" {
		opponent, err = ai.NewOpponent(ai.OpponentConfig{
			BinaryPath:  cfg.StockfishPath,
			PoolSize:    cfg.AIPoolSize,
			Depth:       cfg.AIDepth,
			MoveTimeout: time.Duration(cfg.AIMoveTimeout) * time.Second,
		})
		if err != nil {
			log.Fatalf("engine error: %v", err)
		}
		defer opponent.Close()
	} else {
		obslog.L().Warn("no STOCKFISH_PATH set, computer opponent disabled")
	}

	h := hub.New(hub.Config{
		Modes:    modes,
		Players:  players,
		Opponent: opponent,
		Presence: presence,
		MaxRooms: cfg.MaxConcurrentGames,
	})
	go h.Run(ctx)

	srv := server.New(server.Config{Hub: h, Modes: modes, Players: players})

	obslog.L().Info("server_starting", zap.String("addr", cfg.ListenAddr))
	if err := server.Run(ctx, cfg.ListenAddr, srv.Handler()); err != nil {
		log.Fatalf("server error: %v", err)
	}
	obslog.L().Info("server_stopped")
}
