package game

import "github.com/google/uuid"

// Stats is a creature's combat stat block. HP is the only field that
// changes during a battle; everything else is fixed at creation.
type Stats struct {
	HP      int `json:"hp"`
	MaxHP   int `json:"max_hp"`
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
	Speed   int `json:"speed"`
}

// Move is a single attack a creature can use. Moves are immutable once
// created; the move's category drives type effectiveness and does not have
// to match its owner's category.
type Move struct {
	Name        string   `json:"name"`
	Power       int      `json:"power"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

// Creature is a stat-bearing combatant. Stage (1-3) is the evolution tier
// and determines how many moves of the species pool are exposed: stage n
// exposes n+1 moves, capped at 4.
type Creature struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Stage    int      `json:"stage"`
	Level    int      `json:"level"`
	Stats    Stats    `json:"stats"`
	Moves    []Move   `json:"moves"`
}

// NewCreature builds a creature of the given category and stage using the
// species table. Stage is clamped to [1, 3].
func NewCreature(table SpeciesTable, category Category, stage, level int) Creature {
	if stage < 1 {
		stage = 1
	}
	if stage > 3 {
		stage = 3
	}
	sp := table.Get(category)
	return Creature{
		ID:       uuid.NewString(),
		Name:     sp.StageName(stage),
		Category: category,
		Stage:    stage,
		Level:    level,
		Stats:    sp.StatsFor(stage, level),
		Moves:    sp.MovesFor(stage),
	}
}

// TakeDamage reduces current HP, flooring at zero.
func (c *Creature) TakeDamage(amount int) {
	c.Stats.HP -= amount
	if c.Stats.HP < 0 {
		c.Stats.HP = 0
	}
}

// Heal restores the creature to full HP.
func (c *Creature) Heal() {
	c.Stats.HP = c.Stats.MaxHP
}

// Fainted reports whether the creature is incapacitated.
func (c *Creature) Fainted() bool {
	return c.Stats.HP <= 0
}

// HealTeam restores every creature in the team to full HP. Teams are healed
// before a battle starts so prior battles never leak damage in.
func HealTeam(team []Creature) {
	for i := range team {
		team[i].Heal()
	}
}

// BattleReady filters out fainted creatures. This is the only read
// dependency the battle core has on the progression system's roster.
func BattleReady(creatures []Creature) []Creature {
	out := make([]Creature, 0, len(creatures))
	for _, c := range creatures {
		if !c.Fainted() {
			out = append(out, c)
		}
	}
	return out
}

// AllFainted reports whether every creature in the team is incapacitated.
func AllFainted(team []Creature) bool {
	for i := range team {
		if !team[i].Fainted() {
			return false
		}
	}
	return true
}
