// Package typechart implements the damage multiplier table for the five
// creature categories. Chart: Work > Learning > Creative > Health > Work;
// Personal is neutral against everything.
package typechart

import "github.com/crittermon/arena/internal/game"

const (
	SuperEffective = 1.5
	Neutral        = 1.0
	NotEffective   = 0.67
)

// Multiplier returns the damage multiplier for an attacking category
// against a defending category.
func Multiplier(attacking, defending game.Category) float64 {
	if attacking == game.Personal || defending == game.Personal {
		return Neutral
	}
	if attacking.StrongAgainst() == defending {
		return SuperEffective
	}
	if attacking.WeakAgainst() == defending {
		return NotEffective
	}
	return Neutral
}

// Text returns the log marker for a matchup, or an empty string at neutral.
func Text(attacking, defending game.Category) string {
	mult := Multiplier(attacking, defending)
	if mult > Neutral {
		return "Super effective!"
	}
	if mult < Neutral {
		return "Not very effective..."
	}
	return ""
}
