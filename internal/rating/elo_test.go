package rating

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
)

func TestEqualRatingsDecisive(t *testing.T) {
	if got := Next(1200, 1200, ScoreWin); got != 1216 {
		t.Errorf("winner = %d, want 1216", got)
	}
	if got := Next(1200, 1200, ScoreLoss); got != 1184 {
		t.Errorf("loser = %d, want 1184", got)
	}
}

func TestEqualRatingsDraw(t *testing.T) {
	if got := Next(1200, 1200, ScoreDraw); got != 1200 {
		t.Errorf("draw moved an equal rating to %d", got)
	}
}

func TestUpsetPaysMore(t *testing.T) {
	underdog := Next(1200, 1600, ScoreWin) - 1200
	favorite := Next(1600, 1200, ScoreWin) - 1600
	if underdog <= favorite {
		t.Errorf("underdog gain %d, favorite gain %d", underdog, favorite)
	}
}

func TestExpectedScoresSumToOne(t *testing.T) {
	for _, pair := range [][2]int{{1200, 1200}, {1000, 1400}, {1850, 1600}} {
		sum := Expected(pair[0], pair[1]) + Expected(pair[1], pair[0])
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("expected(%d,%d) pair sums to %v", pair[0], pair[1], sum)
		}
	}
}

// stubStore keys ratings by player and mode, counts reads and can fail a
// configured number of writes.
type stubStore struct {
	mu        sync.Mutex
	ratings   map[string]int
	reads     map[string]int
	failsLeft map[string]int
	saves     map[string][]int
}

func newStubStore() *stubStore {
	return &stubStore{
		ratings:   make(map[string]int),
		reads:     make(map[string]int),
		failsLeft: make(map[string]int),
		saves:     make(map[string][]int),
	}
}

func key(id, mode string) string { return id + "/" + mode }

func (s *stubStore) Rating(_ context.Context, id, mode string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[key(id, mode)]++
	if r, ok := s.ratings[key(id, mode)]; ok {
		return r, nil
	}
	return Default, nil
}

func (s *stubStore) SaveRating(_ context.Context, id, mode string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failsLeft[id] > 0 {
		s.failsLeft[id]--
		return errors.New("store unavailable")
	}
	s.ratings[key(id, mode)] = rating
	s.saves[key(id, mode)] = append(s.saves[key(id, mode)], rating)
	return nil
}

func TestSettleDecisive(t *testing.T) {
	store := newStubStore()
	up := NewUpdater(store)

	win, lose, err := up.SettleDecisive(context.Background(), "blitz", "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if win.After != 1216 || lose.After != 1184 {
		t.Fatalf("changes = %+v %+v, want 1216/1184", win, lose)
	}
	if win.Mode != "blitz" || lose.Mode != "blitz" {
		t.Fatalf("modes = %s/%s, want blitz", win.Mode, lose.Mode)
	}
	if store.ratings[key("alice", "blitz")] != 1216 || store.ratings[key("bob", "blitz")] != 1184 {
		t.Fatalf("persisted = %v", store.ratings)
	}
}

func TestSettleKeepsModesApart(t *testing.T) {
	store := newStubStore()
	store.ratings[key("alice", "classical")] = 1700
	up := NewUpdater(store)

	win, _, err := up.SettleDecisive(context.Background(), "blitz", "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	// The blitz game starts from the blitz default, not the classical rating.
	if win.Before != Default || win.After != 1216 {
		t.Fatalf("blitz change = %+v, want 1200 -> 1216", win)
	}
	if store.ratings[key("alice", "classical")] != 1700 {
		t.Fatalf("classical rating moved to %d", store.ratings[key("alice", "classical")])
	}
	if _, touched := store.saves[key("alice", "classical")]; touched {
		t.Fatal("blitz settlement wrote the classical bucket")
	}
}

func TestSettleRetriesWithComputedValues(t *testing.T) {
	store := newStubStore()
	store.ratings[key("alice", "blitz")] = 1500
	store.ratings[key("bob", "blitz")] = 1400
	store.failsLeft["bob"] = 2

	win, lose, err := up(t, store)
	if err != nil {
		t.Fatal(err)
	}
	// One read per player: retries must not go back to the store.
	if store.reads[key("alice", "blitz")] != 1 || store.reads[key("bob", "blitz")] != 1 {
		t.Fatalf("reads = %v, want one per player", store.reads)
	}
	if got := store.saves[key("bob", "blitz")]; len(got) != 1 || got[0] != lose.After {
		t.Fatalf("bob saves = %v, want single %d", got, lose.After)
	}
	if win.Before != 1500 || lose.Before != 1400 {
		t.Fatalf("before = %d/%d", win.Before, lose.Before)
	}
}

func TestSettleGivesUpAfterRetries(t *testing.T) {
	store := newStubStore()
	store.failsLeft["alice"] = 99

	_, _, err := up(t, store)
	if err == nil {
		t.Fatal("settle succeeded with a dead store")
	}
	// The healthy side is still written.
	if len(store.saves[key("bob", "blitz")]) != 1 {
		t.Fatalf("bob saves = %v, want 1", store.saves[key("bob", "blitz")])
	}
}

func up(t *testing.T, store *stubStore) (Change, Change, error) {
	t.Helper()
	return NewUpdater(store).SettleDecisive(context.Background(), "blitz", "alice", "bob")
}
