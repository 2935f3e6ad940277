package game

import "math/rand"

// Generator builds creatures and opponent teams from a species table. It is
// used for local battles and as the fallback when a remote opponent's team
// cannot be decoded.
type Generator struct {
	table SpeciesTable
	rng   *rand.Rand
}

// NewGenerator creates a generator. A nil table uses the built-in species.
func NewGenerator(table SpeciesTable, rng *rand.Rand) *Generator {
	if table == nil {
		table = DefaultSpecies()
	}
	return &Generator{table: table, rng: rng}
}

// Generate builds a single creature.
func (g *Generator) Generate(category Category, stage, level int) Creature {
	return NewCreature(g.table, category, stage, level)
}

// RandomTeam builds a team of distinct-category creatures with stages drawn
// from [stageMin, stageMax].
func (g *Generator) RandomTeam(count, stageMin, stageMax int) []Creature {
	categories := g.shuffledCategories()
	if count > len(categories) {
		count = len(categories)
	}
	team := make([]Creature, 0, count)
	for i := 0; i < count; i++ {
		stage := stageMin + g.rng.Intn(stageMax-stageMin+1)
		level := stage*3 + g.rng.Intn(6)
		team = append(team, g.Generate(categories[i], stage, level))
	}
	return team
}

// MatchedTeam builds an opponent team roughly matching the power level of
// the given player team: stages within one step of the average stage,
// levels within two of the average level.
func (g *Generator) MatchedTeam(playerTeam []Creature) []Creature {
	if len(playerTeam) == 0 {
		return g.RandomTeam(1, 1, 3)
	}
	stageSum, levelSum := 0, 0
	for _, c := range playerTeam {
		stageSum += c.Stage
		levelSum += c.Level
	}
	avgStage := stageSum / len(playerTeam)
	avgLevel := levelSum / len(playerTeam)

	stageMin := avgStage - 1
	if stageMin < 1 {
		stageMin = 1
	}
	stageMax := avgStage + 1
	if stageMax > 3 {
		stageMax = 3
	}

	categories := g.shuffledCategories()
	count := len(playerTeam)
	if count > len(categories) {
		count = len(categories)
	}
	team := make([]Creature, 0, count)
	for i := 0; i < count; i++ {
		stage := stageMin + g.rng.Intn(stageMax-stageMin+1)
		level := avgLevel + g.rng.Intn(5) - 2
		if level < 1 {
			level = 1
		}
		team = append(team, g.Generate(categories[i], stage, level))
	}
	return team
}

func (g *Generator) shuffledCategories() []Category {
	categories := Categories()
	g.rng.Shuffle(len(categories), func(i, j int) {
		categories[i], categories[j] = categories[j], categories[i]
	})
	return categories
}
