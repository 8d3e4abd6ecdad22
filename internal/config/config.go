package config

import (
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	MaxConcurrentGames int
	ModeCatalogPath    string

	StockfishPath string
	AIPoolSize    int
	AIMoveTimeout int // seconds
	AIDepth       int

	DirectoryCacheTTLSec int
}

// Load reads the environment. Postgres, Redis and the engine binary are all
// optional; the server degrades to in-memory storage and a disabled
// computer opponent when they are absent.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:           ":8080",
		MaxConcurrentGames:   500,
		AIPoolSize:           2,
		AIMoveTimeout:        15,
		AIDepth:              12,
		DirectoryCacheTTLSec: 300,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ModeCatalogPath = strings.TrimSpace(os.Getenv("MODE_CATALOG_PATH"))
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))

	if v := strings.TrimSpace(os.Getenv("MAX_CONCURRENT_GAMES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrentGames = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AI_POOL_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AIPoolSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AI_MOVE_TIMEOUT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AIMoveTimeout = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AI_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AIDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DIRECTORY_CACHE_TTL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DirectoryCacheTTLSec = n
		}
	}

	return cfg, nil
}
