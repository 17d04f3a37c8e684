package match

import "math"

// DisplayScore rescales a raw confidence in [0,1] to the percentage shown
// on a card: round(raw*100 + adjustment), clamped to 0..99. The adjustment
// is cosmetic and never affects ranking.
func DisplayScore(raw, adjustment float64) int {
	score := int(math.Round(raw*100 + adjustment))
	if score >= 100 {
		return 99
	}
	if score < 0 {
		return 0
	}
	return score
}
