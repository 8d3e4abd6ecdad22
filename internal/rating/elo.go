package rating

import "math"

const (
	// Default rating assigned to players without a stored one.
	Default = 1200
	// KFactor scales per-game rating movement.
	KFactor = 32
)

// Scores from the rated player's point of view.
const (
	ScoreWin  = 1.0
	ScoreDraw = 0.5
	ScoreLoss = 0.0
)

// Expected is the logistic expected score of a player against an opponent.
func Expected(rating, opponent int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opponent-rating)/400.0))
}

// Next applies one game's result, rounding to the nearest integer.
func Next(rating, opponent int, score float64) int {
	return rating + int(math.Round(KFactor*(score-Expected(rating, opponent))))
}
