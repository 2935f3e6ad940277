package game

import "github.com/google/uuid"

// Status is the battle lifecycle state. A battle transitions from
// StatusActive to StatusFinished exactly once and never back.
type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// ActionType identifies what a player wants to do with their turn.
type ActionType string

const (
	ActionUseMove ActionType = "use_move"
	ActionSwitch  ActionType = "switch"
	ActionForfeit ActionType = "forfeit"
)

// Action is a submitted-but-not-yet-resolved player intent. Index is the
// move index for ActionUseMove or the team index for ActionSwitch.
type Action struct {
	Type  ActionType `json:"type"`
	Index int        `json:"index"`
}

func UseMove(index int) Action  { return Action{Type: ActionUseMove, Index: index} }
func SwitchTo(index int) Action { return Action{Type: ActionSwitch, Index: index} }
func Forfeit() Action           { return Action{Type: ActionForfeit, Index: -1} }

// Battle is the single unit of truth for one match. For online play the
// players are ordered by identifier: player 1 is the lexicographically
// smaller ID and acts as host, the only party allowed to resolve turns and
// publish snapshots. The log is append-only; its length is the anchor
// observers use to detect what is new.
type Battle struct {
	ID             string     `json:"id"`
	SchemaVersion  int        `json:"schema_version"`
	Player1ID      string     `json:"player1_id"`
	Player2ID      string     `json:"player2_id"`
	Player1Team    []Creature `json:"player1_team"`
	Player2Team    []Creature `json:"player2_team"`
	Player1Active  int        `json:"player1_active"`
	Player2Active  int        `json:"player2_active"`
	Turn           int        `json:"turn"`
	Log            []string   `json:"log"`
	Status         Status     `json:"status"`
	WinnerID       string     `json:"winner_id,omitempty"`
	Forfeited      bool       `json:"forfeited,omitempty"`
	ActivePlayerID string     `json:"active_player_id"`

	// Pending actions awaiting resolution, at most one per player. Only the
	// owning player writes its own slot; the host clears both on resolve.
	Player1Action *Action `json:"player1_action,omitempty"`
	Player2Action *Action `json:"player2_action,omitempty"`

	// Player2TeamJSON is the guest's team-confirmation echo: the guest
	// re-sends its true team as a JSON string once battle start is
	// confirmed, so the host can reconcile teams mangled in transit.
	Player2TeamJSON string `json:"player2_team_json,omitempty"`
}

// NewBattle creates an active battle with player 1 to act first. Pass an
// empty id to have one generated.
func NewBattle(id, player1ID, player2ID string, player1Team, player2Team []Creature) *Battle {
	if id == "" {
		id = uuid.NewString()
	}
	return &Battle{
		ID:             id,
		SchemaVersion:  1,
		Player1ID:      player1ID,
		Player2ID:      player2ID,
		Player1Team:    player1Team,
		Player2Team:    player2Team,
		Turn:           1,
		Log:            []string{"Battle Start!"},
		Status:         StatusActive,
		ActivePlayerID: player1ID,
	}
}

// Clone returns a deep copy safe to hand to observers while the original
// keeps mutating.
func (b *Battle) Clone() *Battle {
	out := *b
	out.Player1Team = append([]Creature(nil), b.Player1Team...)
	out.Player2Team = append([]Creature(nil), b.Player2Team...)
	out.Log = append([]string(nil), b.Log...)
	if b.Player1Action != nil {
		a := *b.Player1Action
		out.Player1Action = &a
	}
	if b.Player2Action != nil {
		a := *b.Player2Action
		out.Player2Action = &a
	}
	return &out
}

// AddLog appends a human-readable event line.
func (b *Battle) AddLog(message string) {
	b.Log = append(b.Log, message)
}

// Over reports whether the battle has finished.
func (b *Battle) Over() bool {
	return b.Status == StatusFinished
}

// IsPlayer1Turn reports whether player 1 owns the current turn.
func (b *Battle) IsPlayer1Turn() bool {
	return b.ActivePlayerID == b.Player1ID
}

// SwitchTurn hands the turn to the other player and advances the counter.
func (b *Battle) SwitchTurn() {
	if b.IsPlayer1Turn() {
		b.ActivePlayerID = b.Player2ID
	} else {
		b.ActivePlayerID = b.Player1ID
	}
	b.Turn++
}

// ActiveCreature1 returns the creature currently fighting for player 1.
func (b *Battle) ActiveCreature1() *Creature {
	return &b.Player1Team[b.Player1Active]
}

// ActiveCreature2 returns the creature currently fighting for player 2.
func (b *Battle) ActiveCreature2() *Creature {
	return &b.Player2Team[b.Player2Active]
}

// ActionFor returns the pending action slot for the given side.
func (b *Battle) ActionFor(player1 bool) *Action {
	if player1 {
		return b.Player1Action
	}
	return b.Player2Action
}

// SetAction fills the pending action slot for the given side.
func (b *Battle) SetAction(player1 bool, a *Action) {
	if player1 {
		b.Player1Action = a
	} else {
		b.Player2Action = a
	}
}

// ClearActions empties both pending action slots.
func (b *Battle) ClearActions() {
	b.Player1Action = nil
	b.Player2Action = nil
}
