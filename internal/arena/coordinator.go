// Package arena drives battles end to end: phase transitions, turn
// ownership, the turn countdown, pacing of log delivery, and in online mode
// the host-side resolution loop over the shared store.
package arena

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crittermon/arena/internal/constants"
	"github.com/crittermon/arena/internal/engine"
	"github.com/crittermon/arena/internal/game"
	"github.com/crittermon/arena/internal/keys"
	"github.com/crittermon/arena/internal/logging"
	"github.com/crittermon/arena/internal/progress"
	"github.com/crittermon/arena/internal/remote"
)

// Phase is the coordinator lifecycle state.
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhaseFighting Phase = "fighting"
	PhaseFinished Phase = "finished"
)

// Mode selects local-vs-AI or online play for the current battle.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeOnline Mode = "online"
)

// aiOpponentID is the player identifier used for the local AI side.
const aiOpponentID = "Rival"

var (
	ErrNoBattle    = errors.New("no battle in progress")
	ErrNotYourTurn = errors.New("not your turn")
	ErrBattleOver  = errors.New("battle already finished")
	ErrBusy        = errors.New("battle already in progress")
)

// Config wires a coordinator. Resolver, Generator and RNG are required;
// Adapter only for online play. OnLog receives battle log lines one at a
// time, paced by LogDelay, with player IDs rendered as You/Opponent.
type Config struct {
	PlayerID  string
	Resolver  *engine.Resolver
	Adapter   *remote.Adapter
	Generator *game.Generator
	RNG       *rand.Rand

	TurnTimeoutTicks int
	TickInterval     time.Duration
	LogDelay         time.Duration

	// Now supplies queue timestamps; tests pin it. Defaults to time.Now.
	Now func() int64

	// Progress, when set, receives XP for the categories of the player's
	// team after a won battle.
	Progress *progress.Tracker

	OnLog      func(line string)
	OnTick     func(remaining int)
	OnFinished func(winnerID string)
}

// winXP is awarded per team category after a victory.
const winXP = 50

// Coordinator owns at most one battle at a time. All public methods are
// safe for concurrent use. Internally the battle is always held in local
// perspective: the coordinator's player is player 1, so a guest swaps
// every incoming snapshot before applying it.
type Coordinator struct {
	cfg Config

	mu          sync.Mutex
	phase       Phase
	mode        Mode
	battle      *game.Battle
	battleID    string
	isHost      bool
	localTeam   []game.Creature
	appliedLogs int
	teamSettled bool

	// resolving stays set from the moment the host starts resolving a
	// pending action until the resolved snapshot's publish completes, so
	// redelivered snapshots cannot start a second resolution mid-publish.
	// pendingPublish holds a snapshot whose publish failed, to be retried
	// on the next delivery.
	resolving      bool
	pendingPublish *game.Battle

	queueHandle   remote.Handle
	battlesHandle remote.Handle
	created       map[string]bool
	timerCancel   chan struct{}

	logCh chan string
}

// New creates an idle coordinator in the setup phase.
func New(cfg Config) *Coordinator {
	if cfg.TurnTimeoutTicks == 0 {
		cfg.TurnTimeoutTicks = constants.TurnTimeoutTicks
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = constants.TickInterval
	}
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().Unix() }
	}
	c := &Coordinator{cfg: cfg, phase: PhaseSetup, created: make(map[string]bool)}
	if cfg.OnLog != nil {
		c.logCh = make(chan string, 256)
		go c.drainLogs()
	}
	return c
}

// drainLogs delivers log lines to the observer with the configured reveal
// delay between consecutive lines. Pacing only; state never waits on it.
func (c *Coordinator) drainLogs() {
	for line := range c.logCh {
		c.cfg.OnLog(line)
		if c.cfg.LogDelay > 0 {
			time.Sleep(c.cfg.LogDelay)
		}
	}
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns a deep copy of the current battle in local perspective,
// or nil outside a battle.
func (c *Coordinator) Snapshot() *game.Battle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.battle == nil {
		return nil
	}
	return c.battle.Clone()
}

// IsLocalTurn reports whether the coordinator's player owns the turn.
func (c *Coordinator) IsLocalTurn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.battle != nil && c.battle.ActivePlayerID == c.cfg.PlayerID
}

// StartLocalBattle heals the team, generates a power-matched AI opponent
// and begins a local battle with the player to act first.
func (c *Coordinator) StartLocalBattle(team []game.Creature) error {
	c.mu.Lock()
	if c.phase == PhaseFighting {
		c.mu.Unlock()
		return ErrBusy
	}
	own := append([]game.Creature(nil), team...)
	game.HealTeam(own)
	own = game.BattleReady(own)
	if len(own) == 0 {
		c.mu.Unlock()
		return errors.New("no battle-ready creatures")
	}
	opponent := c.cfg.Generator.MatchedTeam(own)

	c.mode = ModeLocal
	c.battle = game.NewBattle("", c.cfg.PlayerID, aiOpponentID, own, opponent)
	c.battleID = c.battle.ID
	c.appliedLogs = 0
	c.phase = PhaseFighting
	c.deliverNewLogsLocked()
	c.startTimerLocked()
	battleID := c.battleID
	c.mu.Unlock()

	logging.Info("local battle started", logging.Fields{
		constants.LogFieldBattleID: battleID,
		constants.LogFieldPlayerID: c.cfg.PlayerID,
	})
	return nil
}

// SubmitMove submits a move for the local player's turn.
func (c *Coordinator) SubmitMove(index int) error {
	return c.submit(game.UseMove(index))
}

// SubmitSwitch submits a creature switch for the local player's turn.
func (c *Coordinator) SubmitSwitch(index int) error {
	return c.submit(game.SwitchTo(index))
}

func (c *Coordinator) submit(action game.Action) error {
	c.mu.Lock()
	if c.battle == nil || c.phase == PhaseSetup {
		c.mu.Unlock()
		return ErrNoBattle
	}
	if c.phase == PhaseFinished || c.battle.Over() {
		c.mu.Unlock()
		return ErrBattleOver
	}
	if c.battle.ActivePlayerID != c.cfg.PlayerID {
		c.mu.Unlock()
		return ErrNotYourTurn
	}
	c.stopTimerLocked()

	if c.mode == ModeLocal {
		c.cfg.Resolver.ExecuteAction(c.battle, action)
		c.deliverNewLogsLocked()
		finished, winner := c.settleLocked()
		scheduleAI := !finished && c.battle.ActivePlayerID == aiOpponentID
		if !finished && c.battle.ActivePlayerID == c.cfg.PlayerID {
			c.startTimerLocked()
		}
		c.mu.Unlock()

		if finished {
			c.notifyFinished(winner)
		}
		if scheduleAI {
			c.scheduleAITurn()
		}
		return nil
	}

	battleID, isHost := c.battleID, c.isHost
	c.mu.Unlock()
	return c.cfg.Adapter.WriteAction(battleID, isHost, action)
}

// Forfeit concedes the battle. Online it is legal even while waiting for
// the opponent.
func (c *Coordinator) Forfeit() error {
	c.mu.Lock()
	if c.battle == nil || c.phase == PhaseSetup {
		c.mu.Unlock()
		return ErrNoBattle
	}
	if c.phase == PhaseFinished || c.battle.Over() {
		c.mu.Unlock()
		return ErrBattleOver
	}
	c.stopTimerLocked()

	if c.mode == ModeLocal {
		c.cfg.Resolver.ExecuteForfeit(c.battle, true)
		c.deliverNewLogsLocked()
		finished, winner := c.settleLocked()
		c.mu.Unlock()
		if finished {
			c.notifyFinished(winner)
		}
		return nil
	}

	battleID, isHost := c.battleID, c.isHost
	c.mu.Unlock()
	return c.cfg.Adapter.WriteAction(battleID, isHost, game.Forfeit())
}

// scheduleAITurn lets the AI act after the reveal delay so its move does
// not land in the same instant as the player's.
func (c *Coordinator) scheduleAITurn() {
	delay := c.cfg.LogDelay
	if delay <= 0 {
		delay = time.Millisecond
	}
	time.AfterFunc(delay, c.playAITurn)
}

func (c *Coordinator) playAITurn() {
	c.mu.Lock()
	if c.mode != ModeLocal || c.phase != PhaseFighting || c.battle == nil ||
		c.battle.Over() || c.battle.ActivePlayerID != aiOpponentID {
		c.mu.Unlock()
		return
	}
	action := engine.SelectAction(c.battle)
	c.cfg.Resolver.ExecuteAction(c.battle, action)
	c.deliverNewLogsLocked()
	finished, winner := c.settleLocked()
	if !finished && c.battle.ActivePlayerID == c.cfg.PlayerID {
		c.startTimerLocked()
	}
	c.mu.Unlock()

	if finished {
		c.notifyFinished(winner)
	}
}

// StartMatchmaking heals the team, joins the shared queue and watches it
// for a pairing that involves this player.
func (c *Coordinator) StartMatchmaking(team []game.Creature) error {
	c.mu.Lock()
	if c.phase == PhaseFighting {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.cfg.Adapter == nil {
		c.mu.Unlock()
		return errors.New("online play is not configured")
	}
	own := append([]game.Creature(nil), team...)
	game.HealTeam(own)
	own = game.BattleReady(own)
	if len(own) == 0 {
		c.mu.Unlock()
		return errors.New("no battle-ready creatures")
	}
	c.mode = ModeOnline
	c.phase = PhaseSetup
	c.battle = nil
	c.localTeam = own
	c.battleID = ""
	c.isHost = false
	c.teamSettled = false
	c.resolving = false
	c.pendingPublish = nil
	c.appliedLogs = 0
	c.mu.Unlock()

	// The battle collection is watched before joining: the queue pairing
	// may be consumed and cleared by the other side before our queue
	// observer ever registers, so the battle document the host creates is
	// the only discovery signal a guest can rely on.
	battlesHandle, err := c.cfg.Adapter.ObserveBattles(c.handleBattles)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.battlesHandle = battlesHandle
	c.mu.Unlock()

	// A stale entry from a crashed session may exist; removing it is safe
	// either way and failures are tolerated.
	if err := c.cfg.Adapter.LeaveQueue(c.cfg.PlayerID); err != nil {
		logging.Warn("stale queue cleanup failed", err, logging.Fields{constants.LogFieldPlayerID: c.cfg.PlayerID})
	}
	if err := c.cfg.Adapter.JoinQueue(c.cfg.PlayerID, own, c.cfg.Now()); err != nil {
		return err
	}
	queueHandle, err := c.cfg.Adapter.ObserveQueue(c.handleMatch)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.queueHandle = queueHandle
	c.mu.Unlock()

	logging.Info("joined matchmaking queue", logging.Fields{constants.LogFieldPlayerID: c.cfg.PlayerID})
	return nil
}

// CancelMatchmaking leaves the queue and stops watching it. A no-op once a
// match has been made.
func (c *Coordinator) CancelMatchmaking() error {
	c.mu.Lock()
	if c.mode != ModeOnline || c.battleID != "" {
		c.mu.Unlock()
		return nil
	}
	queueHandle := c.queueHandle
	battlesHandle := c.battlesHandle
	c.queueHandle = 0
	c.battlesHandle = 0
	c.mode = ""
	c.mu.Unlock()

	if queueHandle != 0 {
		c.cfg.Adapter.Unobserve(queueHandle)
	}
	if battlesHandle != 0 {
		c.cfg.Adapter.Unobserve(battlesHandle)
	}
	return c.cfg.Adapter.LeaveQueue(c.cfg.PlayerID)
}

// handleMatch fires on every queue change with the matcher's chosen pair.
// Only the host acts on it: the lexicographically smaller player ID builds
// the battle document and clears both queue entries. Guests attach through
// the battle collection observer instead.
func (c *Coordinator) handleMatch(e1, e2 remote.QueueEntry) {
	if e1.PlayerID != c.cfg.PlayerID && e2.PlayerID != c.cfg.PlayerID {
		return
	}
	if keys.HostID(e1.PlayerID, e2.PlayerID) != c.cfg.PlayerID {
		return
	}
	opponent := e1
	if opponent.PlayerID == c.cfg.PlayerID {
		opponent = e2
	}
	battleID := keys.BattleKey(e1.PlayerID, e2.PlayerID)

	c.mu.Lock()
	if c.mode != ModeOnline || c.battleID != "" || c.created[battleID] {
		c.mu.Unlock()
		return
	}
	c.created[battleID] = true
	localTeam := c.localTeam
	c.mu.Unlock()

	logging.Info("matched as host", logging.Fields{
		constants.LogFieldBattleID: battleID,
		constants.LogFieldPlayerID: c.cfg.PlayerID,
	})

	opponentTeam, err := opponent.Team()
	if err != nil || len(opponentTeam) == 0 {
		// Treat an undecodable queue team as missing data.
		logging.Warn("opponent team unreadable, generating a stand-in", err, logging.Fields{
			constants.LogFieldPlayerID: opponent.PlayerID,
		})
		c.mu.Lock()
		opponentTeam = c.cfg.Generator.MatchedTeam(localTeam)
		c.mu.Unlock()
	}
	battle := game.NewBattle(battleID, c.cfg.PlayerID, opponent.PlayerID, localTeam, opponentTeam)
	if err := c.cfg.Adapter.CreateBattle(battle); err != nil {
		logging.Error("battle creation failed", err, logging.Fields{constants.LogFieldBattleID: battleID})
		// Unmark so the next queue notification retries the creation.
		c.mu.Lock()
		delete(c.created, battleID)
		c.mu.Unlock()
		return
	}
	for _, id := range []string{c.cfg.PlayerID, opponent.PlayerID} {
		if err := c.cfg.Adapter.LeaveQueue(id); err != nil {
			logging.Warn("queue cleanup failed", err, logging.Fields{constants.LogFieldPlayerID: id})
		}
	}
}

// handleBattles fires with the full battle collection. Before a match it
// scans for an in-progress document involving this player and attaches;
// afterwards it routes our battle's updates, and its disappearance, to the
// snapshot handler.
func (c *Coordinator) handleBattles(battles map[string]*game.Battle) {
	c.mu.Lock()
	if c.mode != ModeOnline {
		c.mu.Unlock()
		return
	}

	if c.battleID == "" {
		ids := make([]string, 0, len(battles))
		for id := range battles {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			b := battles[id]
			if b.Over() {
				continue
			}
			if b.Player1ID != c.cfg.PlayerID && b.Player2ID != c.cfg.PlayerID {
				continue
			}
			c.battleID = b.ID
			// The host is always player 1 on the wire.
			c.isHost = b.Player1ID == c.cfg.PlayerID
			isHost := c.isHost
			queueHandle := c.queueHandle
			c.queueHandle = 0
			c.mu.Unlock()

			logging.Info("attached to battle", logging.Fields{
				constants.LogFieldBattleID: b.ID,
				constants.LogFieldPlayerID: c.cfg.PlayerID,
				"host":                     isHost,
			})
			if queueHandle != 0 {
				c.cfg.Adapter.Unobserve(queueHandle)
			}
			c.handleBattleUpdate(b)
			return
		}
		c.mu.Unlock()
		return
	}

	b := battles[c.battleID]
	c.mu.Unlock()
	c.handleBattleUpdate(b)
}

// handleBattleUpdate applies an authoritative snapshot. Snapshots arrive
// at least once; anything behind the applied (turn, log length) watermark
// was already handled and is dropped, so replaying a pre-resolution
// document cannot resolve the same action twice.
func (c *Coordinator) handleBattleUpdate(wire *game.Battle) {
	if wire == nil {
		c.handleBattleRemoved()
		return
	}

	c.mu.Lock()
	if c.mode != ModeOnline || wire.ID != c.battleID {
		c.mu.Unlock()
		return
	}
	if c.battle != nil && (wire.Turn < c.battle.Turn ||
		(wire.Turn == c.battle.Turn && len(wire.Log) < len(c.battle.Log))) {
		c.retryPendingPublishLocked()
		return
	}

	var (
		republish    *game.Battle
		confirmTeam  []game.Creature
		resolvedTurn bool
	)

	if c.isHost {
		if fixed := c.reconcileGuestTeamLocked(wire); fixed != nil {
			wire = fixed
			republish = fixed.Clone()
		}
		if resolved := c.resolvePendingLocked(wire); resolved != nil {
			wire = resolved
			republish = resolved.Clone()
			resolvedTurn = true
		}
		c.battle = wire.Clone()
	} else {
		local := remote.SwapPerspective(wire)
		if !c.teamSettled {
			// The store may have mangled our team in transit. Substitute
			// the true team locally and echo it so the host reconciles.
			local.Player1Team = append([]game.Creature(nil), c.localTeam...)
			confirmTeam = c.localTeam
			c.teamSettled = true
		}
		c.battle = local.Clone()
	}

	if republish == nil && c.pendingPublish != nil {
		republish = c.pendingPublish
	}
	c.pendingPublish = nil

	if c.phase == PhaseSetup {
		c.phase = PhaseFighting
	}
	c.deliverNewLogsLocked()
	finished, winner := c.settleLocked()
	if !finished {
		if c.battle.ActivePlayerID == c.cfg.PlayerID && c.timerCancel == nil {
			c.startTimerLocked()
		} else if c.battle.ActivePlayerID != c.cfg.PlayerID {
			c.stopTimerLocked()
		}
	}
	battleID := c.battleID
	c.mu.Unlock()

	if confirmTeam != nil {
		if err := c.cfg.Adapter.ConfirmTeam(battleID, confirmTeam); err != nil {
			logging.Warn("team confirmation failed", err, logging.Fields{constants.LogFieldBattleID: battleID})
		}
	}
	if republish != nil {
		if err := c.cfg.Adapter.PublishBattle(republish); err != nil {
			logging.Error("snapshot publish failed", err, logging.Fields{constants.LogFieldBattleID: battleID})
			c.mu.Lock()
			c.pendingPublish = republish
			c.mu.Unlock()
		}
	}
	if resolvedTurn {
		c.mu.Lock()
		c.resolving = false
		c.mu.Unlock()
		// A snapshot delivered while the publish was outstanding was
		// dropped by the resolving guard; re-fetch so an action written
		// for the new turn is not stranded.
		if latest, err := c.cfg.Adapter.FetchBattle(battleID); err == nil && latest != nil {
			c.handleBattleUpdate(latest)
		}
	}
	if finished {
		c.notifyFinished(winner)
	}
}

// retryPendingPublishLocked re-attempts a previously failed snapshot
// publish. The caller holds c.mu; it is released here.
func (c *Coordinator) retryPendingPublishLocked() {
	retry := c.pendingPublish
	c.pendingPublish = nil
	c.mu.Unlock()
	if retry == nil {
		return
	}
	if err := c.cfg.Adapter.PublishBattle(retry); err != nil {
		logging.Error("snapshot publish failed", err, logging.Fields{constants.LogFieldBattleID: retry.ID})
		c.mu.Lock()
		c.pendingPublish = retry
		c.mu.Unlock()
	}
}

// reconcileGuestTeamLocked applies the guest's team confirmation echo. The
// echoed JSON string is immune to store shape drift; the teams are
// replaced only when they actually differ, and only before any damage has
// been dealt.
func (c *Coordinator) reconcileGuestTeamLocked(wire *game.Battle) *game.Battle {
	if c.teamSettled || wire.Player2TeamJSON == "" {
		return nil
	}
	c.teamSettled = true

	var echoed []game.Creature
	if err := json.Unmarshal([]byte(wire.Player2TeamJSON), &echoed); err != nil {
		logging.Warn("unreadable team confirmation", err, logging.Fields{constants.LogFieldBattleID: wire.ID})
		return nil
	}
	current, _ := json.Marshal(wire.Player2Team)
	canonical, _ := json.Marshal(echoed)
	if string(current) == string(canonical) {
		return nil
	}
	fixed := wire.Clone()
	fixed.Player2Team = echoed
	logging.Info("guest team reconciled", logging.Fields{constants.LogFieldBattleID: wire.ID})
	return fixed
}

// resolvePendingLocked runs host-side resolution: a pending forfeit from
// either side ends the battle; otherwise the active player's pending
// action, if present, is executed. Both slots are cleared on resolution.
// The resolving flag is set here and cleared by handleBattleUpdate only
// after the resolved snapshot's publish has completed.
func (c *Coordinator) resolvePendingLocked(wire *game.Battle) *game.Battle {
	if c.resolving || wire.Over() {
		return nil
	}

	forfeiter := 0
	if wire.Player1Action != nil && wire.Player1Action.Type == game.ActionForfeit {
		forfeiter = 1
	} else if wire.Player2Action != nil && wire.Player2Action.Type == game.ActionForfeit {
		forfeiter = 2
	}

	pending := wire.ActionFor(wire.IsPlayer1Turn())
	if forfeiter == 0 && pending == nil {
		return nil
	}

	c.resolving = true

	resolved := wire.Clone()
	resolved.ClearActions()
	if forfeiter != 0 {
		c.cfg.Resolver.ExecuteForfeit(resolved, forfeiter == 1)
	} else {
		c.cfg.Resolver.ExecuteAction(resolved, *pending)
	}
	logging.Info("turn resolved", logging.Fields{
		constants.LogFieldBattleID: resolved.ID,
		constants.LogFieldTurn:     resolved.Turn,
	})
	return resolved
}

// handleBattleRemoved fires when the battle document disappears, which
// means the opponent left. An in-progress battle counts as a win.
func (c *Coordinator) handleBattleRemoved() {
	c.mu.Lock()
	if c.battle == nil || c.phase != PhaseFighting {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.battle.AddLog("Opponent left the battle!")
	c.battle.WinnerID = c.cfg.PlayerID
	c.battle.Status = game.StatusFinished
	c.deliverNewLogsLocked()
	finished, winner := c.settleLocked()
	c.mu.Unlock()

	if finished {
		c.notifyFinished(winner)
	}
}

// ResetBattle tears down the current battle and returns to setup. The
// host removes the shared document.
func (c *Coordinator) ResetBattle() {
	c.mu.Lock()
	c.stopTimerLocked()
	battleID := c.battleID
	wasOnline := c.mode == ModeOnline
	wasHost := c.isHost
	battlesHandle := c.battlesHandle
	queueHandle := c.queueHandle

	c.phase = PhaseSetup
	c.mode = ""
	c.battle = nil
	c.battleID = ""
	c.isHost = false
	c.localTeam = nil
	c.appliedLogs = 0
	c.teamSettled = false
	c.resolving = false
	c.pendingPublish = nil
	c.battlesHandle = 0
	c.queueHandle = 0
	c.mu.Unlock()

	if !wasOnline || c.cfg.Adapter == nil {
		return
	}
	if battlesHandle != 0 {
		c.cfg.Adapter.Unobserve(battlesHandle)
	}
	if queueHandle != 0 {
		c.cfg.Adapter.Unobserve(queueHandle)
		if err := c.cfg.Adapter.LeaveQueue(c.cfg.PlayerID); err != nil {
			logging.Warn("queue cleanup failed", err, logging.Fields{constants.LogFieldPlayerID: c.cfg.PlayerID})
		}
	}
	if wasHost && battleID != "" {
		if err := c.cfg.Adapter.DeleteBattle(battleID); err != nil {
			logging.Warn("battle cleanup failed", err, logging.Fields{constants.LogFieldBattleID: battleID})
		}
	}
}

// settleLocked transitions to the finished phase when the battle is over.
func (c *Coordinator) settleLocked() (bool, string) {
	if c.battle == nil || !c.battle.Over() || c.phase == PhaseFinished {
		return false, ""
	}
	c.phase = PhaseFinished
	c.stopTimerLocked()
	return true, c.battle.WinnerID
}

func (c *Coordinator) notifyFinished(winnerID string) {
	c.mu.Lock()
	battleID := c.battleID
	c.mu.Unlock()
	logging.Info("battle finished", logging.Fields{
		constants.LogFieldBattleID: battleID,
		constants.LogFieldWinner:   winnerID,
	})
	if c.cfg.Progress != nil && winnerID == c.cfg.PlayerID {
		if snap := c.Snapshot(); snap != nil {
			seen := make(map[game.Category]bool)
			for _, creature := range snap.Player1Team {
				if !seen[creature.Category] {
					seen[creature.Category] = true
					c.cfg.Progress.AwardXP(creature.Category, winXP)
				}
			}
		}
	}
	if c.cfg.OnFinished != nil {
		c.cfg.OnFinished(winnerID)
	}
}

// deliverNewLogsLocked pushes log lines past the applied watermark to the
// paced delivery channel, never the same line twice.
func (c *Coordinator) deliverNewLogsLocked() {
	if c.battle == nil {
		return
	}
	lines := c.battle.Log
	for ; c.appliedLogs < len(lines); c.appliedLogs++ {
		if c.logCh == nil {
			continue
		}
		select {
		case c.logCh <- c.renderLine(lines[c.appliedLogs]):
		default:
			logging.Warn("log observer too slow, dropping line", nil, nil)
		}
	}
}

// renderLine substitutes friendly names for raw player IDs.
func (c *Coordinator) renderLine(line string) string {
	if c.battle != nil && c.battle.Player2ID != "" {
		line = strings.ReplaceAll(line, c.battle.Player2ID, "Opponent")
	}
	return strings.ReplaceAll(line, c.cfg.PlayerID, "You")
}

// startTimerLocked begins the turn countdown. Any previous countdown is
// canceled first.
func (c *Coordinator) startTimerLocked() {
	c.stopTimerLocked()
	if c.cfg.TurnTimeoutTicks <= 0 || c.cfg.TickInterval <= 0 {
		return
	}
	cancel := make(chan struct{})
	c.timerCancel = cancel
	go c.runCountdown(cancel, c.battle.Turn)
}

func (c *Coordinator) stopTimerLocked() {
	if c.timerCancel != nil {
		close(c.timerCancel)
		c.timerCancel = nil
	}
}

// runCountdown ticks down and auto-submits a random legal move on expiry.
func (c *Coordinator) runCountdown(cancel chan struct{}, turn int) {
	for remaining := c.cfg.TurnTimeoutTicks; remaining > 0; remaining-- {
		select {
		case <-time.After(c.cfg.TickInterval):
			if c.cfg.OnTick != nil {
				c.cfg.OnTick(remaining - 1)
			}
		case <-cancel:
			return
		}
	}
	c.autoSubmit(turn)
}

func (c *Coordinator) autoSubmit(turn int) {
	c.mu.Lock()
	if c.battle == nil || c.phase != PhaseFighting || c.battle.Over() ||
		c.battle.Turn != turn || c.battle.ActivePlayerID != c.cfg.PlayerID {
		c.mu.Unlock()
		return
	}
	moves := c.battle.ActiveCreature1().Moves
	index := 0
	if len(moves) > 1 && c.cfg.RNG != nil {
		index = c.cfg.RNG.Intn(len(moves))
	}
	c.timerCancel = nil
	battleID := c.battleID
	c.mu.Unlock()

	logging.Info("turn timed out, auto-submitting", logging.Fields{
		constants.LogFieldBattleID: battleID,
		constants.LogFieldTurn:     turn,
	})
	if err := c.SubmitMove(index); err != nil && !errors.Is(err, ErrNotYourTurn) && !errors.Is(err, ErrBattleOver) {
		logging.Error("auto-submit failed", err, logging.Fields{constants.LogFieldBattleID: battleID})
	}
}
