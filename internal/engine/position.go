package engine

// Castling-rights bits, derived from piece HasMoved flags.
const (
	CastleWhiteKingside uint8 = 1 << iota
	CastleWhiteQueenside
	CastleBlackKingside
	CastleBlackQueenside
)

// Position is an immutable snapshot: Apply returns a fresh value and never
// mutates the receiver. The zero value is an empty board; use
// StartingPosition for a real game.
type Position struct {
	board [8][8]Piece // indexed [file][rank]
	turn  Side
}

// StartingPosition sets up the standard initial arrangement with White to
// move.
func StartingPosition() *Position {
	p := &Position{turn: White}
	back := [8]PieceKind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}
	for f := 0; f < 8; f++ {
		p.board[f][0] = Piece{Kind: back[f], Side: White}
		p.board[f][1] = Piece{Kind: Pawn, Side: White}
		p.board[f][6] = Piece{Kind: Pawn, Side: Black}
		p.board[f][7] = Piece{Kind: back[f], Side: Black}
	}
	return p
}

func (p *Position) at(sq Square) Piece      { return p.board[sq.File][sq.Rank] }
func (p *Position) set(sq Square, pc Piece) { p.board[sq.File][sq.Rank] = pc }

// At returns the piece on sq; the zero Piece when empty.
func (p *Position) At(sq Square) Piece { return p.at(sq) }

// Turn is the side to move.
func (p *Position) Turn() Side { return p.turn }

// KingSquare locates side's king. ok is false only on malformed boards.
func (p *Position) KingSquare(side Side) (Square, bool) {
	for f := 0; f < 8; f++ {
		for r := 0; r < 8; r++ {
			pc := p.board[f][r]
			if pc.Kind == King && pc.Side == side {
				return Square{File: f, Rank: r}, true
			}
		}
	}
	return Square{}, false
}

// CastlingRights reports which castlings are still notionally available
// from the HasMoved flags alone; path and check conditions are evaluated at
// generation time.
func (p *Position) CastlingRights() uint8 {
	var rights uint8
	check := func(kingSq, rookSq Square, side Side, bit uint8) {
		k, r := p.at(kingSq), p.at(rookSq)
		if k.Kind == King && k.Side == side && !k.HasMoved &&
			r.Kind == Rook && r.Side == side && !r.HasMoved {
			rights |= bit
		}
	}
	check(Square{4, 0}, Square{7, 0}, White, CastleWhiteKingside)
	check(Square{4, 0}, Square{0, 0}, White, CastleWhiteQueenside)
	check(Square{4, 7}, Square{7, 7}, Black, CastleBlackKingside)
	check(Square{4, 7}, Square{0, 7}, Black, CastleBlackQueenside)
	return rights
}

// EnPassantTarget is the square a pawn of the side to move could capture
// onto en passant, if any.
func (p *Position) EnPassantTarget() (Square, bool) {
	for f := 0; f < 8; f++ {
		for r := 0; r < 8; r++ {
			pc := p.board[f][r]
			if pc.Kind != Pawn || !pc.JustAdvancedTwo || pc.Side == p.turn {
				continue
			}
			return Square{File: f, Rank: r - pawnDir(pc.Side)}, true
		}
	}
	return Square{}, false
}

// Apply validates m against the legal-move set and returns the successor
// position. The receiver is left untouched.
func (p *Position) Apply(m Move) (*Position, error) {
	for _, legal := range p.LegalMoves() {
		if legal == m {
			return p.applyUnchecked(m), nil
		}
	}
	return nil, &IllegalMoveError{Move: m, Reason: p.rejectReason(m)}
}

func (p *Position) rejectReason(m Move) string {
	if !m.From.Valid() || !m.To.Valid() {
		return "square off the board"
	}
	pc := p.at(m.From)
	switch {
	case pc.Empty():
		return "no piece on " + m.From.String()
	case pc.Side != p.turn:
		return "not " + pc.Side.String() + "'s turn"
	}
	if m.Promotion == NoPiece {
		for _, legal := range p.LegalMoves() {
			if legal.From == m.From && legal.To == m.To {
				return "promotion piece required"
			}
		}
	}
	return ""
}

func (p *Position) clone() *Position {
	next := *p
	return &next
}

// applyUnchecked performs m on a copy without legality screening; callers
// guarantee m is at least pseudo-legal.
func (p *Position) applyUnchecked(m Move) *Position {
	next := p.clone()
	moving := next.at(m.From)

	// The double-push flag lives for exactly one half-move.
	for f := 0; f < 8; f++ {
		for r := 0; r < 8; r++ {
			next.board[f][r].JustAdvancedTwo = false
		}
	}

	// En passant: a pawn capture landing on an empty square removes the
	// pawn beside the origin, not the one on the target.
	if moving.Kind == Pawn && m.From.File != m.To.File && next.at(m.To).Empty() {
		next.set(Square{File: m.To.File, Rank: m.From.Rank}, Piece{})
	}

	// Castling is encoded as the two-square king move; hop the rook here.
	if moving.Kind == King && abs(m.To.File-m.From.File) == 2 {
		rank := m.From.Rank
		if m.To.File == 6 {
			rook := next.at(Square{7, rank})
			rook.HasMoved = true
			next.set(Square{5, rank}, rook)
			next.set(Square{7, rank}, Piece{})
		} else {
			rook := next.at(Square{0, rank})
			rook.HasMoved = true
			next.set(Square{3, rank}, rook)
			next.set(Square{0, rank}, Piece{})
		}
	}

	moving.HasMoved = true
	if moving.Kind == Pawn && abs(m.To.Rank-m.From.Rank) == 2 {
		moving.JustAdvancedTwo = true
	}
	if m.Promotion != NoPiece {
		moving.Kind = m.Promotion
	}
	next.set(m.From, Piece{})
	next.set(m.To, moving)
	next.turn = p.turn.Other()
	return next
}

func pawnDir(side Side) int {
	if side == White {
		return 1
	}
	return -1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
