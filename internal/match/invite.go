package match

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSelfInvite    = errors.New("cannot invite yourself")
	ErrInvitePending = errors.New("an invite from this player is already pending")
	ErrNoInvite      = errors.New("no matching invite")
)

// Invite is a pending direct challenge awaiting the target's answer.
type Invite struct {
	ID        string
	From      string
	To        string
	ModeID    string
	CreatedAt time.Time
}

// Invites tracks pending direct challenges. One outstanding invite per
// inviter; answering or disconnecting clears it.
type Invites struct {
	mu      sync.Mutex
	pending map[string]Invite // inviter id -> invite
}

func NewInvites() *Invites {
	return &Invites{pending: make(map[string]Invite)}
}

// Create registers a challenge from one player to another.
func (v *Invites) Create(from, to, modeID string) (Invite, error) {
	if from == to {
		return Invite{}, ErrSelfInvite
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, dup := v.pending[from]; dup {
		return Invite{}, ErrInvitePending
	}
	inv := Invite{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		ModeID:    modeID,
		CreatedAt: time.Now(),
	}
	v.pending[from] = inv
	return inv, nil
}

// Accept consumes the pending invite from `from` to `to`; the caller then
// starts the session exactly like a queue pair.
func (v *Invites) Accept(to, from string) (Invite, error) {
	return v.take(to, from)
}

// Decline consumes the invite without a game; the caller notifies the
// inviter.
func (v *Invites) Decline(to, from string) (Invite, error) {
	return v.take(to, from)
}

func (v *Invites) take(to, from string) (Invite, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	inv, ok := v.pending[from]
	if !ok || inv.To != to {
		return Invite{}, ErrNoInvite
	}
	delete(v.pending, from)
	return inv, nil
}

// DropPlayer cancels every invite sent by or addressed to the player,
// returning the cancelled invites so counterparts can be told.
func (v *Invites) DropPlayer(playerID string) []Invite {
	v.mu.Lock()
	defer v.mu.Unlock()

	var dropped []Invite
	for from, inv := range v.pending {
		if inv.From == playerID || inv.To == playerID {
			dropped = append(dropped, inv)
			delete(v.pending, from)
		}
	}
	return dropped
}
