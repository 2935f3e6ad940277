package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/crittermon/arena/internal/constants"
	"github.com/crittermon/arena/internal/game"
)

type speciesEntry struct {
	Category    string      `json:"category"`
	StageNames  []string    `json:"stage_names"`
	BaseHP      int         `json:"base_hp"`
	BaseAttack  int         `json:"base_attack"`
	BaseDefense int         `json:"base_defense"`
	BaseSpeed   int         `json:"base_speed"`
	MovePool    []moveEntry `json:"move_pool"`
}

type moveEntry struct {
	Name        string `json:"name"`
	Power       int    `json:"power"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type rawConfig struct {
	SpeciesList []speciesEntry `json:"species_list"`
	Server      *struct {
		Address string `json:"address"`
	} `json:"server"`
	TurnTimeoutSeconds int `json:"turn_timeout_seconds"`
	LogRevealDelayMS   int `json:"log_reveal_delay_ms"`
	QueueTTLSeconds    int `json:"queue_ttl_seconds"`
}

// LoadedConfig contains the species table and server tuning.
type LoadedConfig struct {
	Species        game.SpeciesTable
	ServerAddress  string
	TurnTimeout    int
	LogRevealDelay time.Duration
	QueueTTL       time.Duration
}

// LoadConfig reads the configuration file at path. It requires the key
// `species_list` with one entry per category and validates that categories
// are known, unique, and carry a non-empty move pool.
func LoadConfig(path string) (*LoadedConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var rc rawConfig
	if err := json.Unmarshal(b, &rc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	entries := rc.SpeciesList
	if len(entries) == 0 {
		return nil, fmt.Errorf("config file %s: species_list is empty (provide 'species_list' array)", path)
	}

	table := make(game.SpeciesTable, len(entries))
	for _, e := range entries {
		category := game.Category(strings.ToLower(strings.TrimSpace(e.Category)))
		if !category.Valid() {
			return nil, fmt.Errorf("config file %s: unknown category '%s'", path, e.Category)
		}
		if _, exists := table[category]; exists {
			return nil, fmt.Errorf("config file %s: duplicate category '%s'", path, e.Category)
		}
		if len(e.StageNames) != 3 {
			return nil, fmt.Errorf("config file %s: category '%s' needs exactly 3 stage_names", path, e.Category)
		}
		if len(e.MovePool) == 0 {
			return nil, fmt.Errorf("config file %s: category '%s' has an empty move_pool", path, e.Category)
		}

		sp := game.Species{
			Category:    category,
			BaseHP:      e.BaseHP,
			BaseAttack:  e.BaseAttack,
			BaseDefense: e.BaseDefense,
			BaseSpeed:   e.BaseSpeed,
		}
		copy(sp.StageNames[:], e.StageNames)
		for _, m := range e.MovePool {
			if m.Name == "" {
				return nil, fmt.Errorf("config file %s: category '%s' has a move missing 'name'", path, e.Category)
			}
			moveCategory := game.Category(strings.ToLower(strings.TrimSpace(m.Category)))
			if m.Category == "" {
				moveCategory = category
			} else if !moveCategory.Valid() {
				return nil, fmt.Errorf("config file %s: move '%s' has unknown category '%s'", path, m.Name, m.Category)
			}
			if m.Power <= 0 {
				return nil, fmt.Errorf("config file %s: move '%s' needs a positive power", path, m.Name)
			}
			sp.MovePool = append(sp.MovePool, game.Move{
				Name:        m.Name,
				Power:       m.Power,
				Category:    moveCategory,
				Description: m.Description,
			})
		}
		table[category] = sp
	}

	addr := constants.DefaultAddr
	if rc.Server != nil && rc.Server.Address != "" {
		addr = rc.Server.Address
	}
	timeout := constants.TurnTimeoutTicks
	if rc.TurnTimeoutSeconds > 0 {
		timeout = rc.TurnTimeoutSeconds
	}
	revealDelay := constants.LogRevealDelay
	if rc.LogRevealDelayMS > 0 {
		revealDelay = time.Duration(rc.LogRevealDelayMS) * time.Millisecond
	}
	queueTTL := constants.QueueTTL
	if rc.QueueTTLSeconds > 0 {
		queueTTL = time.Duration(rc.QueueTTLSeconds) * time.Second
	}

	return &LoadedConfig{
		Species:        table,
		ServerAddress:  addr,
		TurnTimeout:    timeout,
		LogRevealDelay: revealDelay,
		QueueTTL:       queueTTL,
	}, nil
}
