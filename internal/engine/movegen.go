package engine

// Status classifies a position for the side to move.
type Status uint8

const (
	Ongoing Status = iota
	Check
	Checkmate
	Stalemate
)

func (s Status) String() string {
	switch s {
	case Check:
		return "check"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	default:
		return "ongoing"
	}
}

var (
	knightOffsets = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingOffsets   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookDirs      = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDirs    = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// LegalMoves generates every legal move for the side to move. Order is not
// meaningful; callers test membership or count.
func (p *Position) LegalMoves() []Move {
	pseudo := p.pseudoMoves(p.turn)
	legal := make([]Move, 0, len(pseudo))
	for _, m := range pseudo {
		if p.keepsKingSafe(m) {
			legal = append(legal, m)
		}
	}
	return legal
}

// keepsKingSafe simulates m and verifies the mover's king is not left
// attacked.
func (p *Position) keepsKingSafe(m Move) bool {
	next := p.applyUnchecked(m)
	king, ok := next.KingSquare(p.turn)
	if !ok {
		return false
	}
	return !next.Attacked(king, p.turn.Other())
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	king, ok := p.KingSquare(p.turn)
	if !ok {
		return false
	}
	return p.Attacked(king, p.turn.Other())
}

// Classify inspects check state and legal-move availability for the side to
// move.
func (p *Position) Classify() Status {
	inCheck := p.InCheck()
	if len(p.LegalMoves()) > 0 {
		if inCheck {
			return Check
		}
		return Ongoing
	}
	if inCheck {
		return Checkmate
	}
	return Stalemate
}

// Attacked reports whether any piece of side `by` attacks sq. Capture moves
// only: pawn forward pushes do not attack.
func (p *Position) Attacked(sq Square, by Side) bool {
	// Knights.
	for _, d := range knightOffsets {
		from := Square{File: sq.File + d[0], Rank: sq.Rank + d[1]}
		if from.Valid() {
			if pc := p.at(from); pc.Kind == Knight && pc.Side == by {
				return true
			}
		}
	}
	// Adjacent king.
	for _, d := range kingOffsets {
		from := Square{File: sq.File + d[0], Rank: sq.Rank + d[1]}
		if from.Valid() {
			if pc := p.at(from); pc.Kind == King && pc.Side == by {
				return true
			}
		}
	}
	// Pawns: a pawn attacks diagonally forward, so it sits one rank behind
	// sq relative to its own direction of travel.
	for _, df := range [2]int{-1, 1} {
		from := Square{File: sq.File + df, Rank: sq.Rank - pawnDir(by)}
		if from.Valid() {
			if pc := p.at(from); pc.Kind == Pawn && pc.Side == by {
				return true
			}
		}
	}
	// Sliding pieces along rook and bishop rays.
	if p.rayHits(sq, by, rookDirs, Rook) {
		return true
	}
	return p.rayHits(sq, by, bishopDirs, Bishop)
}

func (p *Position) rayHits(sq Square, by Side, dirs [4][2]int, slider PieceKind) bool {
	for _, d := range dirs {
		for step := 1; ; step++ {
			cur := Square{File: sq.File + d[0]*step, Rank: sq.Rank + d[1]*step}
			if !cur.Valid() {
				break
			}
			pc := p.at(cur)
			if pc.Empty() {
				continue
			}
			if pc.Side == by && (pc.Kind == slider || pc.Kind == Queen) {
				return true
			}
			break
		}
	}
	return false
}

// pseudoMoves generates moves obeying piece movement and capture rules but
// not yet screened for king safety.
func (p *Position) pseudoMoves(side Side) []Move {
	moves := make([]Move, 0, 64)
	for f := 0; f < 8; f++ {
		for r := 0; r < 8; r++ {
			pc := p.board[f][r]
			if pc.Empty() || pc.Side != side {
				continue
			}
			from := Square{File: f, Rank: r}
			switch pc.Kind {
			case Pawn:
				moves = p.pawnMoves(moves, from, pc)
			case Knight:
				moves = p.offsetMoves(moves, from, side, knightOffsets)
			case Bishop:
				moves = p.slideMoves(moves, from, side, bishopDirs[:])
			case Rook:
				moves = p.slideMoves(moves, from, side, rookDirs[:])
			case Queen:
				moves = p.slideMoves(moves, from, side, rookDirs[:])
				moves = p.slideMoves(moves, from, side, bishopDirs[:])
			case King:
				moves = p.offsetMoves(moves, from, side, kingOffsets)
				moves = p.castleMoves(moves, from, pc)
			}
		}
	}
	return moves
}

func (p *Position) offsetMoves(moves []Move, from Square, side Side, offsets [8][2]int) []Move {
	for _, d := range offsets {
		to := Square{File: from.File + d[0], Rank: from.Rank + d[1]}
		if !to.Valid() {
			continue
		}
		if pc := p.at(to); pc.Empty() || pc.Side != side {
			moves = append(moves, Move{From: from, To: to})
		}
	}
	return moves
}

func (p *Position) slideMoves(moves []Move, from Square, side Side, dirs [][2]int) []Move {
	for _, d := range dirs {
		for step := 1; ; step++ {
			to := Square{File: from.File + d[0]*step, Rank: from.Rank + d[1]*step}
			if !to.Valid() {
				break
			}
			pc := p.at(to)
			if pc.Empty() {
				moves = append(moves, Move{From: from, To: to})
				continue
			}
			if pc.Side != side {
				moves = append(moves, Move{From: from, To: to})
			}
			break
		}
	}
	return moves
}

func (p *Position) pawnMoves(moves []Move, from Square, pc Piece) []Move {
	dir := pawnDir(pc.Side)

	one := Square{File: from.File, Rank: from.Rank + dir}
	if one.Valid() && p.at(one).Empty() {
		moves = appendPawnMove(moves, from, one)
		two := Square{File: from.File, Rank: from.Rank + 2*dir}
		if !pc.HasMoved && two.Valid() && p.at(two).Empty() {
			moves = append(moves, Move{From: from, To: two})
		}
	}

	for _, df := range [2]int{-1, 1} {
		to := Square{File: from.File + df, Rank: from.Rank + dir}
		if !to.Valid() {
			continue
		}
		if target := p.at(to); !target.Empty() && target.Side != pc.Side {
			moves = appendPawnMove(moves, from, to)
			continue
		}
		// En passant: an enemy pawn beside us that just advanced two.
		beside := Square{File: from.File + df, Rank: from.Rank}
		neighbor := p.at(beside)
		if neighbor.Kind == Pawn && neighbor.Side != pc.Side &&
			neighbor.JustAdvancedTwo && p.at(to).Empty() {
			moves = append(moves, Move{From: from, To: to})
		}
	}
	return moves
}

// appendPawnMove expands a last-rank arrival into the four promotion
// choices; promotion is mandatory, the plain move is not emitted.
func appendPawnMove(moves []Move, from, to Square) []Move {
	if to.Rank == 0 || to.Rank == 7 {
		for _, k := range [4]PieceKind{Queen, Rook, Bishop, Knight} {
			moves = append(moves, Move{From: from, To: to, Promotion: k})
		}
		return moves
	}
	return append(moves, Move{From: from, To: to})
}

func (p *Position) castleMoves(moves []Move, from Square, pc Piece) []Move {
	if pc.HasMoved || from.File != 4 {
		return moves
	}
	enemy := pc.Side.Other()
	if p.Attacked(from, enemy) {
		return moves
	}
	rank := from.Rank

	// Kingside: f and g files empty, king crosses f under no attack; the
	// destination square is screened by the legality filter.
	rook := p.at(Square{7, rank})
	if rook.Kind == Rook && rook.Side == pc.Side && !rook.HasMoved &&
		p.at(Square{5, rank}).Empty() && p.at(Square{6, rank}).Empty() &&
		!p.Attacked(Square{5, rank}, enemy) {
		moves = append(moves, Move{From: from, To: Square{File: 6, Rank: rank}})
	}

	// Queenside: b, c and d files empty, king crosses d under no attack.
	rook = p.at(Square{0, rank})
	if rook.Kind == Rook && rook.Side == pc.Side && !rook.HasMoved &&
		p.at(Square{1, rank}).Empty() && p.at(Square{2, rank}).Empty() &&
		p.at(Square{3, rank}).Empty() &&
		!p.Attacked(Square{3, rank}, enemy) {
		moves = append(moves, Move{From: from, To: Square{File: 2, Rank: rank}})
	}
	return moves
}
