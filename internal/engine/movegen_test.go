package engine

import (
	"errors"
	"strings"
	"testing"
)

// parseBoard builds a position from an 8-line diagram, rank 8 first.
// Uppercase = white, lowercase = black, '.' = empty. HasMoved is inferred:
// pawns off their start rank and kings/rooks off their home squares are
// marked moved.
func parseBoard(t *testing.T, turn Side, diagram string) *Position {
	t.Helper()
	lines := strings.Fields(diagram)
	if len(lines) != 8 {
		t.Fatalf("diagram has %d ranks, want 8", len(lines))
	}
	p := &Position{turn: turn}
	for i, line := range lines {
		if len(line) != 8 {
			t.Fatalf("rank %d has %d squares, want 8", 8-i, len(line))
		}
		rank := 7 - i
		for file := 0; file < 8; file++ {
			pc := pieceFromRune(t, rune(line[file]))
			if pc.Empty() {
				continue
			}
			pc.HasMoved = movedHeuristic(pc, Square{File: file, Rank: rank})
			p.board[file][rank] = pc
		}
	}
	return p
}

func pieceFromRune(t *testing.T, r rune) Piece {
	t.Helper()
	if r == '.' {
		return Piece{}
	}
	side := White
	lower := r
	if r >= 'a' && r <= 'z' {
		side = Black
	} else {
		lower = r - 'A' + 'a'
	}
	switch lower {
	case 'p':
		return Piece{Kind: Pawn, Side: side}
	case 'n':
		return Piece{Kind: Knight, Side: side}
	case 'b':
		return Piece{Kind: Bishop, Side: side}
	case 'r':
		return Piece{Kind: Rook, Side: side}
	case 'q':
		return Piece{Kind: Queen, Side: side}
	case 'k':
		return Piece{Kind: King, Side: side}
	default:
		t.Fatalf("bad diagram rune %q", r)
		return Piece{}
	}
}

func movedHeuristic(pc Piece, sq Square) bool {
	home := 0
	if pc.Side == Black {
		home = 7
	}
	switch pc.Kind {
	case Pawn:
		start := 1
		if pc.Side == Black {
			start = 6
		}
		return sq.Rank != start
	case King:
		return sq != Square{File: 4, Rank: home}
	case Rook:
		return sq != Square{File: 0, Rank: home} && sq != Square{File: 7, Rank: home}
	}
	return false
}

func mustApply(t *testing.T, p *Position, uci ...string) *Position {
	t.Helper()
	for _, s := range uci {
		m, err := ParseMove(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		next, err := p.Apply(m)
		if err != nil {
			t.Fatalf("apply %q: %v", s, err)
		}
		p = next
	}
	return p
}

func hasMove(moves []Move, uci string) bool {
	for _, m := range moves {
		if m.String() == uci {
			return true
		}
	}
	return false
}

func perft(p *Position, depth int) int {
	if depth == 0 {
		return 1
	}
	total := 0
	for _, m := range p.LegalMoves() {
		total += perft(p.applyUnchecked(m), depth-1)
	}
	return total
}

func TestStartingPositionMoveCount(t *testing.T) {
	moves := StartingPosition().LegalMoves()
	if len(moves) != 20 {
		t.Fatalf("starting position: %d legal moves, want 20", len(moves))
	}
}

func TestPerft(t *testing.T) {
	want := map[int]int{1: 20, 2: 400, 3: 8902}
	p := StartingPosition()
	for depth := 1; depth <= 3; depth++ {
		if got := perft(p, depth); got != want[depth] {
			t.Errorf("perft(%d) = %d, want %d", depth, got, want[depth])
		}
	}
}

func TestApplyIsPure(t *testing.T) {
	p := StartingPosition()
	if _, err := p.Apply(Move{From: Square{4, 1}, To: Square{4, 3}}); err != nil {
		t.Fatal(err)
	}
	if got := p.At(Square{4, 1}); got.Kind != Pawn {
		t.Fatalf("receiver mutated: e2 now holds %v", got.Kind)
	}
	if p.Turn() != White {
		t.Fatal("receiver turn flipped")
	}
}

func TestApplyRejectsIllegal(t *testing.T) {
	p := StartingPosition()
	cases := []string{
		"e2e5", // pawn three forward
		"e7e5", // not black's turn
		"e3e4", // empty origin
		"b1d2", // knight blocked by own pawn? d2 occupied by own pawn
		"a1a3", // rook through own pawn
	}
	for _, uci := range cases {
		m, err := ParseMove(uci)
		if err != nil {
			t.Fatalf("parse %q: %v", uci, err)
		}
		_, err = p.Apply(m)
		var ill *IllegalMoveError
		if err == nil {
			t.Errorf("Apply(%s) succeeded, want IllegalMoveError", uci)
		} else if !errors.As(err, &ill) {
			t.Errorf("Apply(%s) = %v, want IllegalMoveError", uci, err)
		}
	}
}

func TestPromotionKindRequired(t *testing.T) {
	p := parseBoard(t, White, `
		....k...
		P.......
		........
		........
		........
		........
		........
		....K...`)
	if _, err := p.Apply(Move{From: Square{0, 6}, To: Square{0, 7}}); err == nil {
		t.Fatal("promotion without a piece kind accepted")
	}
	next, err := p.Apply(Move{From: Square{0, 6}, To: Square{0, 7}, Promotion: Knight})
	if err != nil {
		t.Fatalf("a7a8n: %v", err)
	}
	if got := next.At(Square{0, 7}); got.Kind != Knight || got.Side != White {
		t.Fatalf("a8 holds %v after promotion, want white knight", got)
	}
}

func TestCastlingKingside(t *testing.T) {
	p := parseBoard(t, White, `
		r...k..r
		........
		........
		........
		........
		........
		........
		R...K..R`)
	moves := p.LegalMoves()
	if !hasMove(moves, "e1g1") {
		t.Error("kingside castle e1g1 missing")
	}
	if !hasMove(moves, "e1c1") {
		t.Error("queenside castle e1c1 missing")
	}

	next := mustApply(t, p, "e1g1")
	if got := next.At(Square{5, 0}); got.Kind != Rook || got.Side != White {
		t.Fatalf("f1 holds %v after castling, want white rook", got.Kind)
	}
	if got := next.At(Square{6, 0}); got.Kind != King {
		t.Fatalf("g1 holds %v after castling, want king", got.Kind)
	}
	if !next.At(Square{7, 0}).Empty() {
		t.Fatal("h1 not vacated by castling")
	}
}

func TestCastlingBlockedByAttack(t *testing.T) {
	// Black rook on f8 covers f1: kingside is out, queenside stays.
	p := parseBoard(t, White, `
		....kr..
		........
		........
		........
		........
		........
		........
		R...K..R`)
	moves := p.LegalMoves()
	if hasMove(moves, "e1g1") {
		t.Error("castled through an attacked square")
	}
	if !hasMove(moves, "e1c1") {
		t.Error("queenside castle should remain available")
	}
}

func TestCastlingBlockedInCheck(t *testing.T) {
	p := parseBoard(t, White, `
		....k...
		....r...
		........
		........
		........
		........
		........
		R...K..R`)
	moves := p.LegalMoves()
	if hasMove(moves, "e1g1") || hasMove(moves, "e1c1") {
		t.Error("castled while in check")
	}
}

func TestCastlingBlockedByOccupancy(t *testing.T) {
	p := parseBoard(t, White, `
		....k...
		........
		........
		........
		........
		........
		........
		RN..KB.R`)
	moves := p.LegalMoves()
	if hasMove(moves, "e1g1") || hasMove(moves, "e1c1") {
		t.Error("castled through an occupied square")
	}
}

func TestCastlingRightsLostAfterKingMove(t *testing.T) {
	p := parseBoard(t, White, `
		r...k..r
		........
		........
		........
		........
		........
		........
		R...K..R`)
	p = mustApply(t, p, "e1e2", "e8e7", "e2e1", "e7e8")
	if p.CastlingRights()&(CastleWhiteKingside|CastleWhiteQueenside) != 0 {
		t.Error("white kept castling rights after king shuffle")
	}
	if hasMove(p.LegalMoves(), "e1g1") {
		t.Error("castled after the king had moved")
	}
}

func TestEnPassantOnlyImmediately(t *testing.T) {
	base := mustApply(t, StartingPosition(), "e2e4", "a7a6", "e4e5")

	// 3...d5 exposes the en passant capture for exactly one half-move.
	p := mustApply(t, base, "d7d5")
	if !hasMove(p.LegalMoves(), "e5d6") {
		t.Fatal("en passant e5d6 missing right after the double push")
	}
	next := mustApply(t, p, "e5d6")
	if !next.At(Square{3, 4}).Empty() {
		t.Error("captured pawn still on d5 after en passant")
	}
	if got := next.At(Square{3, 5}); got.Kind != Pawn || got.Side != White {
		t.Error("capturing pawn not on d6 after en passant")
	}

	// After an intervening move the window closes.
	later := mustApply(t, p, "b1c3", "b8c6")
	if hasMove(later.LegalMoves(), "e5d6") {
		t.Error("en passant still offered a move later")
	}
}

func TestEnPassantTargetAccessor(t *testing.T) {
	p := mustApply(t, StartingPosition(), "e2e4")
	sq, ok := p.EnPassantTarget()
	if !ok || sq != (Square{File: 4, Rank: 2}) {
		t.Fatalf("en passant target = %v %v, want e3", sq, ok)
	}
	p = mustApply(t, p, "g8f6")
	if _, ok := p.EnPassantTarget(); ok {
		t.Fatal("en passant target survived a reply")
	}
}

func TestScholarsMate(t *testing.T) {
	p := mustApply(t, StartingPosition(),
		"e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7")
	if got := p.Classify(); got != Checkmate {
		t.Fatalf("Classify() = %v, want checkmate", got)
	}
	if len(p.LegalMoves()) != 0 {
		t.Fatal("checkmated side still has legal moves")
	}
}

func TestStalemate(t *testing.T) {
	p := parseBoard(t, Black, `
		.......k
		.....K..
		......Q.
		........
		........
		........
		........
		........`)
	if got := p.Classify(); got != Stalemate {
		t.Fatalf("Classify() = %v, want stalemate", got)
	}
}

func TestCheckClassification(t *testing.T) {
	p := mustApply(t, StartingPosition(), "e2e4", "e7e5", "d1h5", "b8c6", "h5f7")
	// Qxf7+ is answered only by Kxf7 here; still check, not mate.
	if got := p.Classify(); got != Check {
		t.Fatalf("Classify() = %v, want check", got)
	}
}

func TestPinnedPieceCannotMove(t *testing.T) {
	p := parseBoard(t, White, `
		....k...
		....r...
		........
		........
		....B...
		........
		........
		....K...`)
	// The bishop on e4 shields e1 from the e7 rook; every bishop move off
	// the e-file must be rejected.
	for _, m := range p.LegalMoves() {
		if m.From == (Square{File: 4, Rank: 3}) && m.To.File != 4 {
			t.Fatalf("pinned bishop escaped the file with %s", m)
		}
	}
}

func TestNoLegalMoveLeavesKingAttacked(t *testing.T) {
	p := mustApply(t, StartingPosition(),
		"e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "g8f6")
	for _, m := range p.LegalMoves() {
		next := p.applyUnchecked(m)
		king, ok := next.KingSquare(p.Turn())
		if !ok {
			t.Fatalf("king vanished after %s", m)
		}
		if next.Attacked(king, p.Turn().Other()) {
			t.Fatalf("legal move %s leaves own king attacked", m)
		}
	}
}

func TestMoveRoundTrip(t *testing.T) {
	for _, uci := range []string{"e2e4", "g8f6", "e7e8q", "a2a1n"} {
		m, err := ParseMove(uci)
		if err != nil {
			t.Fatalf("parse %q: %v", uci, err)
		}
		if m.String() != uci {
			t.Errorf("round trip %q -> %q", uci, m.String())
		}
	}
	for _, bad := range []string{"", "e2", "e2e9", "i2i4", "e7e8x", "e2e4qq"} {
		if _, err := ParseMove(bad); err == nil {
			t.Errorf("ParseMove(%q) accepted", bad)
		}
	}
}
