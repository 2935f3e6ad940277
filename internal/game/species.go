package game

// Species describes one creature line: the three stage names, the base stat
// spread and the four-move pool. Stats and moves normally come from the
// server configuration file; DefaultSpecies is the built-in fallback.
type Species struct {
	Category    Category  `json:"category"`
	StageNames  [3]string `json:"stage_names"`
	BaseHP      int       `json:"base_hp"`
	BaseAttack  int       `json:"base_attack"`
	BaseDefense int       `json:"base_defense"`
	BaseSpeed   int       `json:"base_speed"`
	MovePool    []Move    `json:"move_pool"`
}

// StageName returns the display name for the given evolution stage.
func (s Species) StageName(stage int) string {
	if stage < 1 {
		stage = 1
	}
	if stage > len(s.StageNames) {
		stage = len(s.StageNames)
	}
	return s.StageNames[stage-1]
}

// StatsFor computes the stat block for a stage and level. Stage scales the
// base spread (stage 1 = 1.0x, stage 2 = 1.5x, stage 3 = 2.0x) and each
// level adds a flat +2 to every stat.
func (s Species) StatsFor(stage, level int) Stats {
	mult := float64(stage)*0.5 + 0.5
	bonus := level * 2
	hp := int(float64(s.BaseHP)*mult) + bonus
	return Stats{
		HP:      hp,
		MaxHP:   hp,
		Attack:  int(float64(s.BaseAttack)*mult) + bonus,
		Defense: int(float64(s.BaseDefense)*mult) + bonus,
		Speed:   int(float64(s.BaseSpeed)*mult) + bonus,
	}
}

// MovesFor returns the moves exposed at a stage: stage n exposes n+1 moves
// of the pool, capped at the pool size.
func (s Species) MovesFor(stage int) []Move {
	count := stage + 1
	if count > len(s.MovePool) {
		count = len(s.MovePool)
	}
	out := make([]Move, count)
	copy(out, s.MovePool[:count])
	return out
}

// SpeciesTable maps categories to their species definition.
type SpeciesTable map[Category]Species

// Get returns the species for a category, falling back to the built-in
// definition when the table has no entry.
func (t SpeciesTable) Get(category Category) Species {
	if sp, ok := t[category]; ok {
		return sp
	}
	return DefaultSpecies()[category]
}

// DefaultSpecies returns the built-in species table.
func DefaultSpecies() SpeciesTable {
	return SpeciesTable{
		Work: {
			Category:    Work,
			StageNames:  [3]string{"Forgebot", "Forgeron", "Forgetitan"},
			BaseHP:      45,
			BaseAttack:  55,
			BaseDefense: 40,
			BaseSpeed:   35,
			MovePool: []Move{
				{Name: "Grind", Power: 20, Category: Work, Description: "A steady, reliable attack."},
				{Name: "Deadline Slam", Power: 35, Category: Work, Description: "Powered by urgency!"},
				{Name: "Overtime Strike", Power: 50, Category: Work, Description: "Extra effort, extra damage."},
				{Name: "Corporate Crush", Power: 70, Category: Work, Description: "Devastating executive power."},
			},
		},
		Health: {
			Category:    Health,
			StageNames:  [3]string{"Vitaleaf", "Vitabloom", "Vitatree"},
			BaseHP:      60,
			BaseAttack:  35,
			BaseDefense: 55,
			BaseSpeed:   30,
			MovePool: []Move{
				{Name: "Leaf Whip", Power: 20, Category: Health, Description: "A refreshing slap."},
				{Name: "Vitality Pulse", Power: 35, Category: Health, Description: "Surging life energy."},
				{Name: "Nature's Wrath", Power: 50, Category: Health, Description: "The forest fights back."},
				{Name: "Rejuvenation Storm", Power: 70, Category: Health, Description: "Overwhelming natural force."},
			},
		},
		Learning: {
			Category:    Learning,
			StageNames:  [3]string{"Wisowl", "Wisphoenix", "Wislord"},
			BaseHP:      40,
			BaseAttack:  45,
			BaseDefense: 45,
			BaseSpeed:   50,
			MovePool: []Move{
				{Name: "Quick Study", Power: 20, Category: Learning, Description: "Knowledge is power."},
				{Name: "Brain Blast", Power: 35, Category: Learning, Description: "A burst of intellect."},
				{Name: "Thesis Strike", Power: 50, Category: Learning, Description: "Years of research unleashed."},
				{Name: "Enlightenment Beam", Power: 70, Category: Learning, Description: "Pure wisdom, pure destruction."},
			},
		},
		Creative: {
			Category:    Creative,
			StageNames:  [3]string{"Artflame", "Artblaze", "Artinferno"},
			BaseHP:      35,
			BaseAttack:  50,
			BaseDefense: 35,
			BaseSpeed:   55,
			MovePool: []Move{
				{Name: "Spark", Power: 20, Category: Creative, Description: "A flash of inspiration."},
				{Name: "Color Burst", Power: 35, Category: Creative, Description: "An explosion of creativity."},
				{Name: "Muse Strike", Power: 50, Category: Creative, Description: "Channeling the muses."},
				{Name: "Masterpiece Blast", Power: 70, Category: Creative, Description: "A once-in-a-lifetime creation."},
			},
		},
		Personal: {
			Category:    Personal,
			StageNames:  [3]string{"Starbit", "Starnova", "Starcosmos"},
			BaseHP:      50,
			BaseAttack:  45,
			BaseDefense: 45,
			BaseSpeed:   40,
			MovePool: []Move{
				{Name: "Star Tap", Power: 20, Category: Personal, Description: "A gentle cosmic touch."},
				{Name: "Nova Flare", Power: 35, Category: Personal, Description: "A burst of starlight."},
				{Name: "Cosmic Wave", Power: 50, Category: Personal, Description: "Riding the cosmic tide."},
				{Name: "Supernova", Power: 70, Category: Personal, Description: "The ultimate stellar explosion."},
			},
		},
	}
}
