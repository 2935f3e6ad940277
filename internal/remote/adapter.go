package remote

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/crittermon/arena/internal/constants"
	"github.com/crittermon/arena/internal/dedupe"
	"github.com/crittermon/arena/internal/game"
	"github.com/crittermon/arena/internal/keys"
	"github.com/crittermon/arena/internal/logging"
)

// QueueEntry is one player waiting for a match. The team travels as a JSON
// string so the generic store cannot mangle its arrays.
type QueueEntry struct {
	PlayerID string `json:"player_id"`
	TeamJSON string `json:"team_json"`
	JoinedAt int64  `json:"joined_at"`
}

// Matcher picks a pair of players from the current queue. It returns false
// while fewer than two candidates are waiting.
type Matcher interface {
	Match(entries []QueueEntry) (a, b QueueEntry, ok bool)
}

// FIFOMatcher pairs the two longest-waiting players, breaking join-time
// ties by player ID so both sides agree on the pairing.
type FIFOMatcher struct{}

func (FIFOMatcher) Match(entries []QueueEntry) (QueueEntry, QueueEntry, bool) {
	if len(entries) < 2 {
		return QueueEntry{}, QueueEntry{}, false
	}
	sorted := make([]QueueEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].JoinedAt != sorted[j].JoinedAt {
			return sorted[i].JoinedAt < sorted[j].JoinedAt
		}
		return sorted[i].PlayerID < sorted[j].PlayerID
	})
	return sorted[0], sorted[1], true
}

// Adapter exposes the battle protocol's typed operations over a generic
// path-addressed Store: queue membership, battle snapshots, per-player
// action slots and the guest's team confirmation echo.
type Adapter struct {
	store   Store
	matcher Matcher
}

func NewAdapter(store Store, matcher Matcher) *Adapter {
	if matcher == nil {
		matcher = FIFOMatcher{}
	}
	return &Adapter{store: store, matcher: matcher}
}

func queuePath(playerID string) string {
	return constants.PathQueue + "/" + keys.Sanitize(playerID)
}

func battlePath(battleID string) string {
	return constants.PathBattles + "/" + keys.Sanitize(battleID)
}

// JoinQueue publishes a queue entry for the player with their team encoded
// as a JSON string.
func (a *Adapter) JoinQueue(playerID string, team []game.Creature, joinedAt int64) error {
	teamJSON, err := json.Marshal(team)
	if err != nil {
		return fmt.Errorf("encode queue team: %w", err)
	}
	entry := QueueEntry{PlayerID: playerID, TeamJSON: string(teamJSON), JoinedAt: joinedAt}
	encoded, err := Encode(entry)
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}
	return a.store.Put(queuePath(playerID), encoded)
}

// LeaveQueue removes the player's queue entry. Removing an absent entry is
// not an error.
func (a *Adapter) LeaveQueue(playerID string) error {
	return a.store.Remove(queuePath(playerID))
}

// ObserveQueue watches the queue and invokes onMatch whenever the matcher
// finds a pair. Entries that fail to decode are logged and skipped.
func (a *Adapter) ObserveQueue(onMatch func(a, b QueueEntry)) (Handle, error) {
	return a.store.Observe(constants.PathQueue, func(value interface{}) {
		entries := decodeQueue(value)
		if p1, p2, ok := a.matcher.Match(entries); ok {
			onMatch(p1, p2)
		}
	})
}

func decodeQueue(value interface{}) []QueueEntry {
	m, ok := Normalize(value).(map[string]interface{})
	if !ok {
		return nil
	}
	entries := make([]QueueEntry, 0, len(m))
	for key, raw := range m {
		var entry QueueEntry
		if err := Decode(raw, &entry); err != nil {
			logging.Warn("skipping malformed queue entry", err, logging.Fields{constants.LogFieldPlayerID: key})
			continue
		}
		if entry.PlayerID == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// Team decodes the queue entry's embedded team.
func (e QueueEntry) Team() ([]game.Creature, error) {
	var team []game.Creature
	if err := json.Unmarshal([]byte(e.TeamJSON), &team); err != nil {
		return nil, fmt.Errorf("decode queue team for %s: %w", e.PlayerID, err)
	}
	return team, nil
}

// PublishBattle writes a full battle snapshot. Concurrent publishes of the
// same new battle are collapsed through a singleflight group keyed by
// battle ID, so duplicate queue notifications create the document once.
func (a *Adapter) PublishBattle(b *game.Battle) error {
	encoded, err := Encode(b)
	if err != nil {
		return fmt.Errorf("encode battle %s: %w", b.ID, err)
	}
	return a.store.Put(battlePath(b.ID), encoded)
}

// CreateBattle publishes a new battle exactly once per battle ID even when
// called concurrently from duplicate match notifications.
func (a *Adapter) CreateBattle(b *game.Battle) error {
	_, err, _ := dedupe.MatchGroup.Do(b.ID, func() (interface{}, error) {
		return nil, a.PublishBattle(b)
	})
	return err
}

// FetchBattle reads and decodes the current battle snapshot, or nil when
// no document exists.
func (a *Adapter) FetchBattle(battleID string) (*game.Battle, error) {
	value, err := a.store.Get(battlePath(battleID))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return decodeBattle(battleID, value), nil
}

// ObserveBattle watches a battle document and delivers decoded snapshots.
// Snapshots that fail to decode or carry an unknown schema version are
// logged and dropped; a nil snapshot means the document was removed.
func (a *Adapter) ObserveBattle(battleID string, onSnapshot func(*game.Battle)) (Handle, error) {
	return a.store.Observe(battlePath(battleID), func(value interface{}) {
		if value == nil {
			onSnapshot(nil)
			return
		}
		if b := decodeBattle(battleID, value); b != nil {
			onSnapshot(b)
		}
	})
}

func decodeBattle(battleID string, value interface{}) *game.Battle {
	var b game.Battle
	if err := Decode(value, &b); err != nil {
		logging.Warn("skipping malformed battle snapshot", err, logging.Fields{constants.LogFieldBattleID: battleID})
		return nil
	}
	if b.SchemaVersion > constants.SnapshotSchemaVersion {
		logging.Warn("skipping battle snapshot with newer schema", nil, logging.Fields{
			constants.LogFieldBattleID: battleID,
			"schema_version":           b.SchemaVersion,
		})
		return nil
	}
	return &b
}

// ObserveBattles watches the whole battle collection and delivers the
// decoded documents keyed by battle ID. Malformed documents are logged and
// omitted. A battle that disappears from the map was removed by its host;
// clients waiting for a match use this to spot the document the host
// created for them, since queue entries may be consumed and cleared before
// the guest ever observes the pairing.
func (a *Adapter) ObserveBattles(onChange func(map[string]*game.Battle)) (Handle, error) {
	return a.store.Observe(constants.PathBattles, func(value interface{}) {
		out := make(map[string]*game.Battle)
		if m, ok := value.(map[string]interface{}); ok {
			for id, raw := range m {
				if b := decodeBattle(id, raw); b != nil {
					out[b.ID] = b
				}
			}
		}
		onChange(out)
	})
}

// WriteAction fills the caller's pending action slot without touching the
// rest of the battle document.
func (a *Adapter) WriteAction(battleID string, player1 bool, action game.Action) error {
	field := constants.FieldPlayer2Action
	if player1 {
		field = constants.FieldPlayer1Action
	}
	encoded, err := Encode(action)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	return a.store.Put(battlePath(battleID)+"/"+field, encoded)
}

// ConfirmTeam writes the guest's team confirmation echo, a JSON string
// immune to store shape drift, so the host can reconcile the guest team.
func (a *Adapter) ConfirmTeam(battleID string, team []game.Creature) error {
	teamJSON, err := json.Marshal(team)
	if err != nil {
		return fmt.Errorf("encode team confirmation: %w", err)
	}
	return a.store.Put(battlePath(battleID)+"/"+constants.FieldPlayer2TeamJSON, string(teamJSON))
}

// DeleteBattle removes the battle document.
func (a *Adapter) DeleteBattle(battleID string) error {
	return a.store.Remove(battlePath(battleID))
}

// Unobserve cancels a queue or battle observation.
func (a *Adapter) Unobserve(h Handle) {
	a.store.Unobserve(h)
}

// SwapPerspective returns a copy of the battle with the two sides
// exchanged, so a guest can treat itself as "player 1" locally. Pending
// action slots and the turn owner swap along with the teams.
func SwapPerspective(b *game.Battle) *game.Battle {
	out := *b
	out.Player1ID, out.Player2ID = b.Player2ID, b.Player1ID
	out.Player1Team, out.Player2Team = b.Player2Team, b.Player1Team
	out.Player1Active, out.Player2Active = b.Player2Active, b.Player1Active
	out.Player1Action, out.Player2Action = b.Player2Action, b.Player1Action
	return &out
}
