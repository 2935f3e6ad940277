// Package engine implements the deterministic combat resolver. The resolver
// mutates the battle it is handed and appends to its log; it never returns
// errors. Invalid input (an out-of-range move or switch index) is a no-op.
package engine

import (
	"math/rand"
	"strconv"

	"github.com/crittermon/arena/internal/game"
	"github.com/crittermon/arena/internal/typechart"
)

// Resolver resolves battle turns. All randomness (damage variance, speed
// tie-breaks) is drawn from the injected source, so a fixed seed produces
// an identical battle state and log.
type Resolver struct {
	rng      *rand.Rand
	variance func() float64
}

// New creates a resolver with the standard damage variance of [0.85, 1.15].
func New(rng *rand.Rand) *Resolver {
	r := &Resolver{rng: rng}
	r.variance = func() float64 { return 0.85 + r.rng.Float64()*0.3 }
	return r
}

// ExecuteAction resolves a single player's action in the strict alternating
// turn system: the active player's action is applied and, unless the battle
// ended, turn ownership flips to the other side.
func (r *Resolver) ExecuteAction(b *game.Battle, action game.Action) {
	if b.Over() {
		return
	}
	actingPlayer1 := b.IsPlayer1Turn()

	switch action.Type {
	case game.ActionForfeit:
		r.applyForfeit(b, actingPlayer1)
	case game.ActionSwitch:
		r.applySwitch(b, actingPlayer1, action.Index)
		b.SwitchTurn()
	case game.ActionUseMove:
		r.applyMove(b, actingPlayer1, action.Index)
		if !b.Over() {
			b.SwitchTurn()
		}
	}
}

// ExecuteForfeit ends the battle with the given side as the loser. Unlike
// ExecuteAction it does not require the forfeiter to own the current turn;
// a player may concede while waiting.
func (r *Resolver) ExecuteForfeit(b *game.Battle, forfeiterIsPlayer1 bool) {
	if b.Over() {
		return
	}
	r.applyForfeit(b, forfeiterIsPlayer1)
}

// ResolveTurn resolves a full turn from two simultaneously submitted
// actions. Forfeits short-circuit everything. Switches are applied first
// for both sides, then moves run in speed order; an exact speed tie is
// broken by an unbiased coin flip. The slower move is skipped when the
// faster one already fainted its user's active creature.
func (r *Resolver) ResolveTurn(b *game.Battle, player1Action, player2Action game.Action) {
	if b.Over() {
		return
	}
	if player1Action.Type == game.ActionForfeit {
		r.applyForfeit(b, true)
		return
	}
	if player2Action.Type == game.ActionForfeit {
		r.applyForfeit(b, false)
		return
	}

	if player1Action.Type == game.ActionSwitch {
		r.applySwitch(b, true, player1Action.Index)
	}
	if player2Action.Type == game.ActionSwitch {
		r.applySwitch(b, false, player2Action.Index)
	}

	player1First := true
	speed1 := b.ActiveCreature1().Stats.Speed
	speed2 := b.ActiveCreature2().Stats.Speed
	if speed2 > speed1 {
		player1First = false
	} else if speed1 == speed2 {
		player1First = r.rng.Intn(2) == 0
	}

	order := []bool{player1First, !player1First}
	actions := map[bool]game.Action{true: player1Action, false: player2Action}
	for _, actorIsPlayer1 := range order {
		if b.Over() {
			break
		}
		action := actions[actorIsPlayer1]
		if action.Type != game.ActionUseMove {
			continue
		}
		// The actor's creature may have fainted from the faster move.
		if r.activeCreature(b, actorIsPlayer1).Fainted() {
			continue
		}
		r.applyMove(b, actorIsPlayer1, action.Index)
	}

	if !b.Over() {
		b.Turn++
	}
}

// applyMove is the canonical move path shared by both resolution modes:
// execute the move, check the defender for fainting, then check the win
// condition. The attacker cannot faint itself, so only the defender is
// scanned.
func (r *Resolver) applyMove(b *game.Battle, attackerIsPlayer1 bool, moveIndex int) {
	attacker := r.activeCreature(b, attackerIsPlayer1)
	defender := r.activeCreature(b, !attackerIsPlayer1)

	if moveIndex < 0 || moveIndex >= len(attacker.Moves) {
		return
	}
	move := attacker.Moves[moveIndex]

	damage := r.damage(attacker, move, defender)

	b.AddLog(attacker.Name + " used " + move.Name + "!")
	if text := typechart.Text(move.Category, defender.Category); text != "" {
		b.AddLog(text)
	}
	b.AddLog(defender.Name + " took " + strconv.Itoa(damage) + " damage!")

	defender.TakeDamage(damage)

	r.checkFaint(b, !attackerIsPlayer1)
	r.checkWin(b)
}

// damage computes max(1, floor(att*power/max(1,def) * typeMult * variance * 0.5)).
func (r *Resolver) damage(attacker *game.Creature, move game.Move, defender *game.Creature) int {
	defense := defender.Stats.Defense
	if defense < 1 {
		defense = 1
	}
	base := float64(attacker.Stats.Attack*move.Power) / float64(defense)
	mult := typechart.Multiplier(move.Category, defender.Category)
	damage := int(base * mult * r.variance() * 0.5)
	if damage < 1 {
		damage = 1
	}
	return damage
}

func (r *Resolver) applyForfeit(b *game.Battle, forfeiterIsPlayer1 bool) {
	forfeiterID, winnerID := b.Player1ID, b.Player2ID
	if !forfeiterIsPlayer1 {
		forfeiterID, winnerID = b.Player2ID, b.Player1ID
	}
	b.AddLog(forfeiterID + " forfeited!")
	b.WinnerID = winnerID
	b.Forfeited = true
	b.Status = game.StatusFinished
}

func (r *Resolver) applySwitch(b *game.Battle, player1 bool, index int) {
	team := b.Player1Team
	if !player1 {
		team = b.Player2Team
	}
	if index < 0 || index >= len(team) || team[index].Fainted() {
		return
	}
	playerID := b.Player1ID
	if player1 {
		b.Player1Active = index
	} else {
		b.Player2Active = index
		playerID = b.Player2ID
	}
	b.AddLog(playerID + " sent out " + team[index].Name + "!")
}

// checkFaint promotes the first standing teammate (original index order,
// skipping the fainted slot) when the active creature is down. When the
// team is wholly fainted the index is left alone and the following win
// check ends the battle.
func (r *Resolver) checkFaint(b *game.Battle, player1 bool) {
	team := b.Player1Team
	activeIndex := b.Player1Active
	playerID := b.Player1ID
	if !player1 {
		team = b.Player2Team
		activeIndex = b.Player2Active
		playerID = b.Player2ID
	}
	if !team[activeIndex].Fainted() {
		return
	}
	b.AddLog(team[activeIndex].Name + " fainted!")

	for i := range team {
		if i == activeIndex || team[i].Fainted() {
			continue
		}
		if player1 {
			b.Player1Active = i
		} else {
			b.Player2Active = i
		}
		b.AddLog(playerID + " sent out " + team[i].Name + "!")
		return
	}
}

func (r *Resolver) checkWin(b *game.Battle) {
	if b.Over() {
		return
	}
	player1Out := game.AllFainted(b.Player1Team)
	player2Out := game.AllFainted(b.Player2Team)

	switch {
	case player1Out && player2Out:
		b.AddLog("It's a draw!")
		b.Status = game.StatusFinished
	case player1Out:
		b.AddLog(b.Player2ID + " wins!")
		b.WinnerID = b.Player2ID
		b.Status = game.StatusFinished
	case player2Out:
		b.AddLog(b.Player1ID + " wins!")
		b.WinnerID = b.Player1ID
		b.Status = game.StatusFinished
	}
}

func (r *Resolver) activeCreature(b *game.Battle, player1 bool) *game.Creature {
	if player1 {
		return b.ActiveCreature1()
	}
	return b.ActiveCreature2()
}
