// Package wire defines the JSON envelope and event payloads exchanged with
// clients over the WebSocket.
package wire

import (
	"encoding/json"
	"fmt"
)

// Inbound event types.
const (
	TypeEnqueue       = "enqueue"
	TypeInvite        = "invite"
	TypeAcceptInvite  = "acceptInvite"
	TypeDeclineInvite = "declineInvite"
	TypeSubmitMove    = "submitMove"
	TypeForfeit       = "forfeit"
	TypePlayComputer  = "playComputer"
)

// Outbound event types.
const (
	TypeMatchFound     = "matchFound"
	TypeMatchInvite    = "matchInvite"
	TypeInviteDeclined = "inviteDeclined"
	TypeMoveApplied    = "moveApplied"
	TypeGameOver       = "gameOver"
	TypeError          = "error"
)

// Stable error codes carried by Error payloads.
const (
	CodeBadEvent       = "bad_event"
	CodeUnknownMode    = "unknown_mode"
	CodeIllegalMove    = "illegal_move"
	CodeNotYourTurn    = "not_your_turn"
	CodeRoomNotFound   = "room_not_found"
	CodeAlreadyQueued  = "already_queued"
	CodeAlreadyPlaying = "already_playing"
	CodePlayerOffline  = "player_offline"
	CodeInvitePending  = "invite_pending"
	CodeNoInvite       = "no_invite"
	CodeSelfInvite     = "self_invite"
	CodeAIUnavailable  = "ai_unavailable"
	CodeInternal       = "internal_error"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into a typed envelope.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{Type: eventType, Payload: raw}, nil
}

// --- inbound payloads ---

type Enqueue struct {
	Mode string `json:"mode"`
}

type Invite struct {
	To   string `json:"to"`
	Mode string `json:"mode"`
}

type AnswerInvite struct {
	From string `json:"from"`
}

type SubmitMove struct {
	RoomID string `json:"roomId"`
	Move   string `json:"move"` // coordinate form, e.g. "e2e4" or "e7e8q"
}

type Forfeit struct {
	RoomID string `json:"roomId"`
}

type PlayComputer struct {
	Mode  string `json:"mode"`
	Level int    `json:"level"`
}

// --- outbound payloads ---

type MatchFound struct {
	RoomID       string `json:"roomId"`
	Mode         string `json:"mode"`
	Color        string `json:"color"`
	OpponentID   string `json:"opponentId"`
	OpponentName string `json:"opponentName"`
	Rated        bool   `json:"rated"`
}

type MatchInvite struct {
	From     string `json:"from"`
	FromName string `json:"fromName"`
	Mode     string `json:"mode"`
}

type InviteDeclined struct {
	By string `json:"by"`
}

type MoveApplied struct {
	RoomID       string `json:"roomId"`
	Move         string `json:"move"`
	By           string `json:"by"` // "white" | "black"
	Check        bool   `json:"check"`
	WhiteClockMS int64  `json:"whiteClockMs"`
	BlackClockMS int64  `json:"blackClockMs"`
}

type RatingChange struct {
	PlayerID string `json:"playerId"`
	Mode     string `json:"mode"`
	Before   int    `json:"before"`
	After    int    `json:"after"`
}

type GameOver struct {
	RoomID  string         `json:"roomId"`
	Result  string         `json:"result"` // "white_wins" | "black_wins" | "draw"
	Reason  string         `json:"reason"` // "checkmate" | "stalemate" | "timeout" | "forfeit"
	Ratings []RatingChange `json:"ratings,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
