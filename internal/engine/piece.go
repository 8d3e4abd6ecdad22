package engine

import (
	"fmt"
	"strings"
)

type Side uint8

const (
	White Side = iota
	Black
)

func (s Side) Other() Side {
	if s == White {
		return Black
	}
	return White
}

func (s Side) String() string {
	if s == White {
		return "white"
	}
	return "black"
}

// PieceKind is a closed enum; all movement dispatch is by tag, never by
// dynamic type.
type PieceKind uint8

const (
	NoPiece PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

func (k PieceKind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

type Piece struct {
	Kind PieceKind
	Side Side

	// HasMoved gates castling and the pawn double push.
	HasMoved bool
	// JustAdvancedTwo marks a pawn that advanced two squares on the
	// immediately preceding half-move; cleared for every other pawn on
	// each Apply.
	JustAdvancedTwo bool
}

func (p Piece) Empty() bool { return p.Kind == NoPiece }

// Square addresses a board location: file 0-7 = a-h, rank 0-7 = 1-8.
type Square struct {
	File int
	Rank int
}

func (sq Square) Valid() bool {
	return sq.File >= 0 && sq.File < 8 && sq.Rank >= 0 && sq.Rank < 8
}

func (sq Square) String() string {
	if !sq.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + sq.File), byte('1' + sq.Rank)})
}

func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return Square{}, fmt.Errorf("bad square %q", s)
	}
	sq := Square{File: int(s[0] - 'a'), Rank: int(s[1] - '1')}
	if !sq.Valid() {
		return Square{}, fmt.Errorf("bad square %q", s)
	}
	return sq, nil
}

// Move is the fixed coordinate form used everywhere: from-square, to-square
// and, for a pawn reaching the last rank, the promotion piece.
type Move struct {
	From      Square
	To        Square
	Promotion PieceKind
}

func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoPiece {
		s += string(promotionLetter(m.Promotion))
	}
	return s
}

// ParseMove reads coordinate notation: "e2e4", "e7e8q".
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("bad move %q", s)
	}
	from, err := ParseSquare(s[:2])
	if err != nil {
		return Move{}, fmt.Errorf("bad move %q", s)
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("bad move %q", s)
	}
	m := Move{From: from, To: to}
	if len(s) == 5 {
		switch s[4] {
		case 'q':
			m.Promotion = Queen
		case 'r':
			m.Promotion = Rook
		case 'b':
			m.Promotion = Bishop
		case 'n':
			m.Promotion = Knight
		default:
			return Move{}, fmt.Errorf("bad promotion in %q", s)
		}
	}
	return m, nil
}

func promotionLetter(k PieceKind) byte {
	switch k {
	case Queen:
		return 'q'
	case Rook:
		return 'r'
	case Bishop:
		return 'b'
	case Knight:
		return 'n'
	}
	return '?'
}

// IllegalMoveError reports a move rejected by the legality check.
type IllegalMoveError struct {
	Move   Move
	Reason string
}

func (e *IllegalMoveError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("illegal move %s: %s", e.Move, e.Reason)
	}
	return fmt.Sprintf("illegal move %s", e.Move)
}
