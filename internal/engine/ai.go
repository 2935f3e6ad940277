package engine

import (
	"github.com/crittermon/arena/internal/game"
	"github.com/crittermon/arena/internal/typechart"
)

// SelectAction picks the best move for the player 2 (AI) side: the move
// maximizing power times type multiplier against the opponent's active
// creature. Ties go to the earlier move. Pure; no randomness.
func SelectAction(b *game.Battle) game.Action {
	aiCreature := b.ActiveCreature2()
	target := b.ActiveCreature1()

	if len(aiCreature.Moves) == 0 {
		return game.UseMove(0)
	}

	bestIndex := 0
	bestScore := -1.0
	for i, move := range aiCreature.Moves {
		score := float64(move.Power) * typechart.Multiplier(move.Category, target.Category)
		if score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}
	return game.UseMove(bestIndex)
}
