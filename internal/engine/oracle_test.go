package engine

import (
	"math/rand"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

// TestRandomPlayoutsAgainstOracle walks random games and pushes every move
// we generate into a second, independent implementation. A rejected move or
// a disagreement on mate/stalemate fails the playout.
func TestRandomPlayoutsAgainstOracle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping playouts in short mode")
	}
	for seed := int64(1); seed <= 8; seed++ {
		rng := rand.New(rand.NewSource(seed))
		pos := StartingPosition()
		game := nchess.NewGame()

		for ply := 0; ply < 160; ply++ {
			moves := pos.LegalMoves()
			if len(moves) == 0 {
				break
			}
			m := moves[rng.Intn(len(moves))]
			if err := game.PushNotationMove(m.String(), nchess.UCINotation{}, nil); err != nil {
				t.Fatalf("seed %d ply %d: oracle rejected %s: %v\n%s",
					seed, ply, m, err, game.Position().String())
			}
			pos = pos.applyUnchecked(m)

			switch pos.Classify() {
			case Checkmate:
				if out := game.Outcome(); out != nchess.WhiteWon && out != nchess.BlackWon {
					t.Fatalf("seed %d ply %d: we say checkmate, oracle says %v", seed, ply, out)
				}
			case Stalemate:
				if out := game.Outcome(); out != nchess.Draw {
					t.Fatalf("seed %d ply %d: we say stalemate, oracle says %v", seed, ply, out)
				}
			}
			// The oracle also ends games on repetition and material rules
			// we deliberately do not track; stop the playout there.
			if game.Outcome() != nchess.NoOutcome {
				break
			}
		}
	}
}

func TestScholarsMateAgainstOracle(t *testing.T) {
	line := []string{"e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7"}
	pos := StartingPosition()
	game := nchess.NewGame()
	for _, uci := range line {
		m, err := ParseMove(uci)
		if err != nil {
			t.Fatal(err)
		}
		if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			t.Fatalf("oracle rejected %s: %v", uci, err)
		}
		if pos, err = pos.Apply(m); err != nil {
			t.Fatalf("apply %s: %v", uci, err)
		}
	}
	if pos.Classify() != Checkmate {
		t.Fatalf("Classify() = %v, want checkmate", pos.Classify())
	}
	if game.Outcome() != nchess.WhiteWon {
		t.Fatalf("oracle outcome = %v, want white won", game.Outcome())
	}
}
