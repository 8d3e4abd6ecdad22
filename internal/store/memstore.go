package store

import (
	"context"
	"sync"

	"github.com/kapu/chess-arena-go/internal/rating"
)

// memStore is the development fallback used when no DATABASE_URL is
// configured. Same contract as the Postgres store, process-local.
type memStore struct {
	mu sync.RWMutex

	nextID  int64
	players map[string]*Player
	games   map[string]*GameRecord // room id -> record
}

func NewMemory() PlayerStore {
	return &memStore{
		players: make(map[string]*Player),
		games:   make(map[string]*GameRecord),
	}
}

func (m *memStore) Player(ctx context.Context, id string) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Ratings = make(map[string]int, len(p.Ratings))
	for mode, r := range p.Ratings {
		cp.Ratings[mode] = r
	}
	return &cp, nil
}

func (m *memStore) Rating(ctx context.Context, id, mode string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.players[id]; ok {
		if r, rated := p.Ratings[mode]; rated {
			return r, nil
		}
	}
	return rating.Default, nil
}

func (m *memStore) SaveRating(ctx context.Context, id, mode string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		p = &Player{ID: id, Name: id, Ratings: make(map[string]int)}
		m.players[id] = p
	}
	p.Ratings[mode] = value
	p.GamesPlayed++
	return nil
}

func (m *memStore) InsertGame(ctx context.Context, rec *GameRecord) (int64, error) {
	if rec == nil {
		return 0, ErrDuplicateGame
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.games[rec.RoomID]; exists {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	cp := *rec
	m.games[rec.RoomID] = &cp
	return m.nextID, nil
}
