package match

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"time"
)

var (
	ErrAlreadyQueued = errors.New("player already waiting in a queue")
	ErrNotQueued     = errors.New("player is not queued")
)

// Ticket is one waiting player.
type Ticket struct {
	PlayerID string
	ModeID   string
	JoinedAt time.Time
}

// Pair is a formed match with colors already assigned. Forming a pair is
// all the queue does; creating the session is the caller's step.
type Pair struct {
	ModeID string
	White  string
	Black  string
}

// Queue holds FIFO matchmaking lists, one per game mode. A player waits in
// at most one list at a time.
type Queue struct {
	mu      sync.Mutex
	byMode  map[string][]Ticket
	waiting map[string]string // playerID -> modeID
}

func NewQueue() *Queue {
	return &Queue{
		byMode:  make(map[string][]Ticket),
		waiting: make(map[string]string),
	}
}

// Enqueue adds the player to the mode's list and reports the formed pair
// when one exists. Each returned pair consumes both its tickets: a player
// is handed out at most once per enqueue.
func (q *Queue) Enqueue(playerID, modeID string) (Pair, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.waiting[playerID]; dup {
		return Pair{}, false, ErrAlreadyQueued
	}
	list := append(q.byMode[modeID], Ticket{
		PlayerID: playerID,
		ModeID:   modeID,
		JoinedAt: time.Now(),
	})

	first, second, ok := nextPair(list)
	if !ok {
		q.byMode[modeID] = list
		q.waiting[playerID] = modeID
		return Pair{}, false, nil
	}

	q.byMode[modeID] = list[2:]
	delete(q.waiting, first.PlayerID)
	delete(q.waiting, second.PlayerID)

	white, black := AssignColors(first.PlayerID, second.PlayerID)
	return Pair{ModeID: modeID, White: white, Black: black}, true, nil
}

// nextPair is the pairing rule over a queue snapshot: the two
// longest-waiting tickets, or nothing.
func nextPair(list []Ticket) (first, second Ticket, ok bool) {
	if len(list) < 2 {
		return Ticket{}, Ticket{}, false
	}
	return list[0], list[1], true
}

// Remove drops the player from whatever list they wait in.
func (q *Queue) Remove(playerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	modeID, ok := q.waiting[playerID]
	if !ok {
		return ErrNotQueued
	}
	delete(q.waiting, playerID)
	list := q.byMode[modeID]
	for i, tk := range list {
		if tk.PlayerID == playerID {
			q.byMode[modeID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

// Waiting reports the list length for a mode.
func (q *Queue) Waiting(modeID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byMode[modeID])
}

// AssignColors flips an unbiased coin over the pair.
func AssignColors(a, b string) (white, black string) {
	if n, err := rand.Int(rand.Reader, big.NewInt(2)); err == nil && n.Int64() == 0 {
		return b, a
	}
	return a, b
}
