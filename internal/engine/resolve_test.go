package engine

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/crittermon/arena/internal/game"
)

func creature(name string, category game.Category, hp, attack, defense, speed int, moves ...game.Move) game.Creature {
	return game.Creature{
		ID:       name,
		Name:     name,
		Category: category,
		Stage:    1,
		Level:    1,
		Stats:    game.Stats{HP: hp, MaxHP: hp, Attack: attack, Defense: defense, Speed: speed},
		Moves:    moves,
	}
}

func move(name string, power int, category game.Category) game.Move {
	return game.Move{Name: name, Power: power, Category: category}
}

func battle(team1, team2 []game.Creature) *game.Battle {
	return game.NewBattle("b1", "alice", "bob", team1, team2)
}

func pinned(seed int64) *Resolver {
	r := New(rand.New(rand.NewSource(seed)))
	r.variance = func() float64 { return 1.0 }
	return r
}

func TestDamageFormula(t *testing.T) {
	r := pinned(1)
	attacker := creature("A", game.Personal, 100, 55, 10, 10, move("Hit", 20, game.Personal))
	defender := creature("D", game.Personal, 100, 10, 40, 10)

	// floor(55*20/40 * 1.0 * 1.0 * 0.5) = floor(13.75) = 13
	if got := r.damage(&attacker, attacker.Moves[0], &defender); got != 13 {
		t.Fatalf("damage = %d, want 13", got)
	}
}

func TestDamageNeverBelowOne(t *testing.T) {
	r := pinned(1)
	attacker := creature("A", game.Work, 10, 1, 1, 1, move("Tap", 1, game.Work))
	defender := creature("D", game.Health, 10, 1, 500, 1)

	if got := r.damage(&attacker, attacker.Moves[0], &defender); got != 1 {
		t.Fatalf("damage = %d, want floor of 1", got)
	}
}

func TestDamageZeroDefenseGuard(t *testing.T) {
	r := pinned(1)
	attacker := creature("A", game.Personal, 10, 10, 1, 1, move("Tap", 10, game.Personal))
	defender := creature("D", game.Personal, 10, 1, 0, 1)

	// max(1, def) keeps the division defined: floor(10*10/1 * 0.5) = 50
	if got := r.damage(&attacker, attacker.Moves[0], &defender); got != 50 {
		t.Fatalf("damage = %d, want 50", got)
	}
}

func TestExecuteAction_MoveFlipsTurn(t *testing.T) {
	r := pinned(1)
	b := battle(
		[]game.Creature{creature("A1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
		[]game.Creature{creature("B1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
	)

	r.ExecuteAction(b, game.UseMove(0))

	if b.ActiveCreature2().Stats.HP >= 50 {
		t.Fatalf("defender took no damage, HP=%d", b.ActiveCreature2().Stats.HP)
	}
	if b.IsPlayer1Turn() {
		t.Fatalf("turn should have flipped to player 2")
	}
	if b.Turn != 2 {
		t.Fatalf("turn counter = %d, want 2", b.Turn)
	}
}

func TestExecuteAction_Forfeit(t *testing.T) {
	r := pinned(1)
	b := battle(
		[]game.Creature{creature("A1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
		[]game.Creature{creature("B1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
	)

	r.ExecuteAction(b, game.Forfeit())

	if b.Status != game.StatusFinished {
		t.Fatalf("status = %s, want finished", b.Status)
	}
	if b.WinnerID != "bob" {
		t.Fatalf("winner = %q, want bob", b.WinnerID)
	}
	for _, line := range b.Log {
		if strings.Contains(line, "damage") {
			t.Fatalf("forfeit appended a damage line: %q", line)
		}
	}
}

func TestExecuteAction_OutOfRangeMoveIsNoop(t *testing.T) {
	r := pinned(1)
	b := battle(
		[]game.Creature{creature("A1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
		[]game.Creature{creature("B1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
	)
	logBefore := len(b.Log)

	r.ExecuteAction(b, game.UseMove(7))

	if len(b.Log) != logBefore {
		t.Fatalf("out-of-range move appended log lines: %v", b.Log[logBefore:])
	}
	if b.ActiveCreature2().Stats.HP != 50 {
		t.Fatalf("out-of-range move dealt damage")
	}
}

func TestExecuteAction_SwitchToFaintedIsNoop(t *testing.T) {
	r := pinned(1)
	fainted := creature("A2", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))
	fainted.Stats.HP = 0
	b := battle(
		[]game.Creature{creature("A1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal)), fainted},
		[]game.Creature{creature("B1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
	)

	r.ExecuteAction(b, game.SwitchTo(1))

	if b.Player1Active != 0 {
		t.Fatalf("switched to a fainted creature")
	}
}

func TestResolveTurn_Deterministic(t *testing.T) {
	run := func() *game.Battle {
		r := New(rand.New(rand.NewSource(42)))
		b := battle(
			[]game.Creature{creature("A1", game.Work, 80, 30, 20, 15, move("Grind", 20, game.Work))},
			[]game.Creature{creature("B1", game.Health, 80, 30, 20, 15, move("Leaf Whip", 20, game.Health))},
		)
		r.ResolveTurn(b, game.UseMove(0), game.UseMove(0))
		return b
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed produced different battles:\n%#v\n%#v", first, second)
	}
}

func TestResolveTurn_FasterActsFirstAndSweeps(t *testing.T) {
	r := pinned(1)
	b := battle(
		[]game.Creature{creature("Fast", game.Personal, 50, 200, 20, 99, move("Finisher", 70, game.Personal))},
		[]game.Creature{creature("Slow", game.Personal, 30, 20, 10, 1, move("Hit", 20, game.Personal))},
	)

	r.ResolveTurn(b, game.UseMove(0), game.UseMove(0))

	if b.Status != game.StatusFinished {
		t.Fatalf("battle should have finished in one turn, status=%s", b.Status)
	}
	if b.WinnerID != "alice" {
		t.Fatalf("winner = %q, want alice", b.WinnerID)
	}
	// The slower side fainted before acting: its move must not appear.
	for _, line := range b.Log {
		if strings.Contains(line, "Slow used") {
			t.Fatalf("fainted creature still acted: %q", line)
		}
	}
	// No teammates left, so no send-out after the faint line.
	if b.Player2Active != 0 {
		t.Fatalf("active index moved on a wholly fainted team")
	}
}

func TestResolveTurn_ForfeitShortCircuits(t *testing.T) {
	r := pinned(1)
	b := battle(
		[]game.Creature{creature("A1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
		[]game.Creature{creature("B1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
	)

	r.ResolveTurn(b, game.UseMove(0), game.Forfeit())

	if b.WinnerID != "alice" {
		t.Fatalf("winner = %q, want alice", b.WinnerID)
	}
	if b.ActiveCreature1().Stats.HP != 50 || b.ActiveCreature2().Stats.HP != 50 {
		t.Fatalf("forfeit computed damage")
	}
}

func TestResolveTurn_SwitchAppliesBeforeMoves(t *testing.T) {
	r := pinned(1)
	b := battle(
		[]game.Creature{creature("A1", game.Personal, 50, 20, 20, 99, move("Hit", 20, game.Personal))},
		[]game.Creature{
			creature("B1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal)),
			creature("B2", game.Personal, 60, 20, 20, 10, move("Hit", 20, game.Personal)),
		},
	)

	r.ResolveTurn(b, game.UseMove(0), game.SwitchTo(1))

	if b.Player2Active != 1 {
		t.Fatalf("switch did not apply, active=%d", b.Player2Active)
	}
	if b.Player2Team[1].Stats.HP >= 60 {
		t.Fatalf("move should have hit the switched-in creature")
	}
	if b.Player2Team[0].Stats.HP != 50 {
		t.Fatalf("move hit the switched-out creature")
	}
}

func TestResolveTurn_SpeedTieIsDeterministicPerSeed(t *testing.T) {
	run := func(seed int64) string {
		r := New(rand.New(rand.NewSource(seed)))
		r.variance = func() float64 { return 1.0 }
		b := battle(
			[]game.Creature{creature("A1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
			[]game.Creature{creature("B1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
		)
		r.ResolveTurn(b, game.UseMove(0), game.UseMove(0))
		// First combat line after "Battle Start!" names the first actor.
		return b.Log[1]
	}

	if run(3) != run(3) {
		t.Fatalf("tie-break differed for identical seeds")
	}
	if !strings.Contains(run(3), " used ") {
		t.Fatalf("unexpected first log line %q", run(3))
	}
}

func TestFaintPromotesFirstStandingTeammate(t *testing.T) {
	r := pinned(1)
	downed := creature("A2", game.Personal, 40, 20, 20, 10, move("Hit", 20, game.Personal))
	downed.Stats.HP = 0
	b := battle(
		[]game.Creature{
			creature("A1", game.Personal, 1, 20, 20, 1, move("Hit", 20, game.Personal)),
			downed,
			creature("A3", game.Personal, 40, 20, 20, 10, move("Hit", 20, game.Personal)),
		},
		[]game.Creature{creature("B1", game.Personal, 50, 200, 20, 99, move("Smash", 70, game.Personal))},
	)
	b.ActivePlayerID = "bob"

	r.ExecuteAction(b, game.UseMove(0))

	if b.Player1Active != 2 {
		t.Fatalf("auto-switch picked index %d, want 2 (first standing)", b.Player1Active)
	}
	if b.Status != game.StatusActive {
		t.Fatalf("battle ended with teammates standing")
	}
}

func TestWinCheckDraw(t *testing.T) {
	r := pinned(1)
	a := creature("A1", game.Personal, 10, 1, 1, 1, move("Hit", 1, game.Personal))
	a.Stats.HP = 0
	c := creature("B1", game.Personal, 10, 1, 1, 1, move("Hit", 1, game.Personal))
	c.Stats.HP = 0
	b := battle([]game.Creature{a}, []game.Creature{c})

	r.checkWin(b)

	if b.Status != game.StatusFinished {
		t.Fatalf("status = %s, want finished", b.Status)
	}
	if b.WinnerID != "" {
		t.Fatalf("draw set a winner: %q", b.WinnerID)
	}
	if b.Log[len(b.Log)-1] != "It's a draw!" {
		t.Fatalf("missing draw announcement, log=%v", b.Log)
	}
}

func TestFinishedBattleRejectsFurtherActions(t *testing.T) {
	r := pinned(1)
	b := battle(
		[]game.Creature{creature("A1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
		[]game.Creature{creature("B1", game.Personal, 50, 20, 20, 10, move("Hit", 20, game.Personal))},
	)
	r.ExecuteAction(b, game.Forfeit())
	logLen := len(b.Log)

	r.ExecuteAction(b, game.UseMove(0))
	r.ResolveTurn(b, game.UseMove(0), game.UseMove(0))

	if len(b.Log) != logLen {
		t.Fatalf("finished battle still resolved actions")
	}
}
