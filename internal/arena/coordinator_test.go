package arena

import (
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crittermon/arena/internal/engine"
	"github.com/crittermon/arena/internal/game"
	"github.com/crittermon/arena/internal/progress"
	"github.com/crittermon/arena/internal/remote"
)

type logSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *logSink) add(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

func (s *logSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func testConfig(playerID string, seed int64) Config {
	rng := rand.New(rand.NewSource(seed))
	return Config{
		PlayerID:         playerID,
		Resolver:         engine.New(rng),
		Generator:        game.NewGenerator(nil, rng),
		RNG:              rng,
		TurnTimeoutTicks: -1, // countdown disabled unless a test enables it
		TickInterval:     time.Millisecond,
		Now:              func() int64 { return 42 },
	}
}

func localTeam(seed int64) []game.Creature {
	rng := rand.New(rand.NewSource(seed))
	return game.NewGenerator(nil, rng).RandomTeam(2, 2, 2)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestLocalBattleRunsToCompletion(t *testing.T) {
	done := make(chan string, 1)
	cfg := testConfig("alice", 1)
	cfg.OnFinished = func(winnerID string) { done <- winnerID }
	c := New(cfg)

	if err := c.StartLocalBattle(localTeam(2)); err != nil {
		t.Fatalf("StartLocalBattle: %v", err)
	}
	if c.Phase() != PhaseFighting {
		t.Fatalf("phase = %s, want fighting", c.Phase())
	}
	if !c.IsLocalTurn() {
		t.Fatal("player must act first in a fresh battle")
	}

	for i := 0; i < 200 && c.Phase() == PhaseFighting; i++ {
		if c.IsLocalTurn() {
			if err := c.SubmitMove(0); err != nil {
				t.Fatalf("SubmitMove: %v", err)
			}
		} else {
			time.Sleep(2 * time.Millisecond)
		}
	}
	if c.Phase() != PhaseFinished {
		t.Fatalf("battle did not finish, phase = %s", c.Phase())
	}

	select {
	case winner := <-done:
		snap := c.Snapshot()
		if snap.WinnerID != winner {
			t.Fatalf("callback winner %q, snapshot winner %q", winner, snap.WinnerID)
		}
	case <-time.After(time.Second):
		t.Fatal("finish callback never fired")
	}
}

func TestSubmitRejectedOutsideBattle(t *testing.T) {
	c := New(testConfig("alice", 1))
	if err := c.SubmitMove(0); err != ErrNoBattle {
		t.Fatalf("err = %v, want ErrNoBattle", err)
	}
	if err := c.Forfeit(); err != ErrNoBattle {
		t.Fatalf("err = %v, want ErrNoBattle", err)
	}
}

func TestLocalForfeitEndsBattle(t *testing.T) {
	cfg := testConfig("alice", 3)
	c := New(cfg)
	if err := c.StartLocalBattle(localTeam(4)); err != nil {
		t.Fatalf("StartLocalBattle: %v", err)
	}
	if err := c.Forfeit(); err != nil {
		t.Fatalf("Forfeit: %v", err)
	}
	if c.Phase() != PhaseFinished {
		t.Fatalf("phase = %s, want finished", c.Phase())
	}
	snap := c.Snapshot()
	if snap.WinnerID == "alice" {
		t.Fatal("forfeiter won")
	}
	if err := c.SubmitMove(0); err != ErrBattleOver {
		t.Fatalf("post-battle submit err = %v, want ErrBattleOver", err)
	}
}

func TestTurnTimeoutAutoSubmits(t *testing.T) {
	cfg := testConfig("alice", 5)
	cfg.TurnTimeoutTicks = 2
	cfg.TickInterval = time.Millisecond
	c := New(cfg)
	if err := c.StartLocalBattle(localTeam(6)); err != nil {
		t.Fatalf("StartLocalBattle: %v", err)
	}

	// The countdown should expire and submit a move without any input.
	waitFor(t, time.Second, func() bool {
		snap := c.Snapshot()
		return snap.Turn > 1 || snap.Over()
	})
}

func TestOnlineBattleEndToEnd(t *testing.T) {
	store := remote.NewMemoryStore()
	adapter := remote.NewAdapter(store, nil)

	var aliceLogs, bobLogs logSink
	aliceCfg := testConfig("alice", 10)
	aliceCfg.Adapter = adapter
	aliceCfg.OnLog = aliceLogs.add
	bobCfg := testConfig("bob", 11)
	bobCfg.Adapter = adapter
	bobCfg.OnLog = bobLogs.add

	alice := New(aliceCfg)
	bob := New(bobCfg)

	if err := alice.StartMatchmaking(localTeam(12)); err != nil {
		t.Fatalf("alice StartMatchmaking: %v", err)
	}
	if err := bob.StartMatchmaking(localTeam(13)); err != nil {
		t.Fatalf("bob StartMatchmaking: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return alice.Phase() == PhaseFighting && bob.Phase() == PhaseFighting
	})

	// alice sorts before bob, so she hosts and acts first on both sides.
	if !alice.IsLocalTurn() {
		t.Fatal("host must own the first turn")
	}
	if bob.IsLocalTurn() {
		t.Fatal("guest owns the first turn")
	}
	if err := bob.SubmitMove(0); err != ErrNotYourTurn {
		t.Fatalf("guest out-of-turn submit err = %v, want ErrNotYourTurn", err)
	}

	for i := 0; i < 200; i++ {
		if alice.Phase() == PhaseFinished && bob.Phase() == PhaseFinished {
			break
		}
		switch {
		case alice.Phase() == PhaseFighting && alice.IsLocalTurn():
			if err := alice.SubmitMove(0); err != nil && err != ErrBattleOver {
				t.Fatalf("alice SubmitMove: %v", err)
			}
		case bob.Phase() == PhaseFighting && bob.IsLocalTurn():
			if err := bob.SubmitMove(0); err != nil && err != ErrBattleOver {
				t.Fatalf("bob SubmitMove: %v", err)
			}
		default:
			time.Sleep(2 * time.Millisecond)
		}
	}

	if alice.Phase() != PhaseFinished || bob.Phase() != PhaseFinished {
		t.Fatalf("phases = %s / %s, want finished", alice.Phase(), bob.Phase())
	}
	aliceSnap, bobSnap := alice.Snapshot(), bob.Snapshot()
	if aliceSnap.WinnerID != bobSnap.WinnerID {
		t.Fatalf("winner disagreement: %q vs %q", aliceSnap.WinnerID, bobSnap.WinnerID)
	}
	if len(aliceSnap.Log) != len(bobSnap.Log) {
		t.Fatalf("log length disagreement: %d vs %d", len(aliceSnap.Log), len(bobSnap.Log))
	}
}

func TestOnlineLogDeliveryIsMonotonic(t *testing.T) {
	store := remote.NewMemoryStore()
	adapter := remote.NewAdapter(store, nil)

	var sink logSink
	aliceCfg := testConfig("alice", 20)
	aliceCfg.Adapter = adapter
	aliceCfg.OnLog = sink.add
	bobCfg := testConfig("bob", 21)
	bobCfg.Adapter = adapter

	alice := New(aliceCfg)
	bob := New(bobCfg)
	if err := alice.StartMatchmaking(localTeam(22)); err != nil {
		t.Fatalf("StartMatchmaking: %v", err)
	}
	if err := bob.StartMatchmaking(localTeam(23)); err != nil {
		t.Fatalf("StartMatchmaking: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return alice.Phase() == PhaseFighting && alice.IsLocalTurn()
	})

	if err := alice.SubmitMove(0); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	snap := alice.Snapshot()
	waitFor(t, time.Second, func() bool {
		return len(sink.snapshot()) >= len(snap.Log)
	})

	// Snapshots are redelivered at least once; every log line must still
	// reach the observer exactly once, in order.
	lines := sink.snapshot()
	want := alice.Snapshot().Log
	if len(lines) != len(want) {
		t.Fatalf("delivered %d lines, battle log has %d", len(lines), len(want))
	}
	if lines[0] != "Battle Start!" {
		t.Fatalf("first line = %q", lines[0])
	}
}

func TestOnlineForfeitFromWaitingPlayer(t *testing.T) {
	store := remote.NewMemoryStore()
	adapter := remote.NewAdapter(store, nil)

	var bobLogs logSink
	tracker := progress.NewTracker(16)
	aliceCfg := testConfig("alice", 30)
	aliceCfg.Adapter = adapter
	aliceCfg.Progress = tracker
	bobCfg := testConfig("bob", 31)
	bobCfg.Adapter = adapter
	bobCfg.OnLog = bobLogs.add

	alice := New(aliceCfg)
	bob := New(bobCfg)
	if err := alice.StartMatchmaking(localTeam(32)); err != nil {
		t.Fatalf("StartMatchmaking: %v", err)
	}
	if err := bob.StartMatchmaking(localTeam(33)); err != nil {
		t.Fatalf("StartMatchmaking: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return bob.Phase() == PhaseFighting
	})

	// bob concedes while alice owns the turn.
	if err := bob.Forfeit(); err != nil {
		t.Fatalf("Forfeit: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return alice.Phase() == PhaseFinished && bob.Phase() == PhaseFinished
	})
	if got := alice.Snapshot().WinnerID; got != "alice" {
		t.Fatalf("winner = %q, want alice", got)
	}

	// The winner's team categories earn XP.
	totalXP := 0
	for _, category := range game.Categories() {
		totalXP += tracker.XP(category)
	}
	if totalXP == 0 {
		t.Fatal("no XP awarded to the winner")
	}

	// Player IDs render as You/Opponent on the way to the observer.
	waitFor(t, time.Second, func() bool {
		for _, line := range bobLogs.snapshot() {
			if line == "You forfeited!" {
				return true
			}
		}
		return false
	})
	for _, line := range bobLogs.snapshot() {
		if strings.Contains(line, "bob") {
			t.Fatalf("raw player ID leaked into log line %q", line)
		}
	}
}

func TestOpponentLeavingFinishesBattle(t *testing.T) {
	store := remote.NewMemoryStore()
	adapter := remote.NewAdapter(store, nil)

	aliceCfg := testConfig("alice", 40)
	aliceCfg.Adapter = adapter
	bobCfg := testConfig("bob", 41)
	bobCfg.Adapter = adapter

	alice := New(aliceCfg)
	bob := New(bobCfg)
	if err := alice.StartMatchmaking(localTeam(42)); err != nil {
		t.Fatalf("StartMatchmaking: %v", err)
	}
	if err := bob.StartMatchmaking(localTeam(43)); err != nil {
		t.Fatalf("StartMatchmaking: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return alice.Phase() == PhaseFighting && bob.Phase() == PhaseFighting
	})

	// The host tears down mid-battle; the guest wins by walkover.
	alice.ResetBattle()
	waitFor(t, time.Second, func() bool {
		return bob.Phase() == PhaseFinished
	})
	if got := bob.Snapshot().WinnerID; got != "bob" {
		t.Fatalf("winner = %q, want bob", got)
	}
	if alice.Phase() != PhaseSetup {
		t.Fatalf("host phase = %s, want setup", alice.Phase())
	}
}

func TestCancelMatchmakingLeavesQueue(t *testing.T) {
	store := remote.NewMemoryStore()
	adapter := remote.NewAdapter(store, nil)

	cfg := testConfig("alice", 50)
	cfg.Adapter = adapter
	c := New(cfg)
	if err := c.StartMatchmaking(localTeam(51)); err != nil {
		t.Fatalf("StartMatchmaking: %v", err)
	}
	if err := c.CancelMatchmaking(); err != nil {
		t.Fatalf("CancelMatchmaking: %v", err)
	}

	value, err := store.Get("queue/alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != nil {
		t.Fatalf("queue entry still present: %#v", value)
	}
}

func TestGuestTeamSurvivesTransit(t *testing.T) {
	store := remote.NewMemoryStore()
	adapter := remote.NewAdapter(store, nil)

	aliceCfg := testConfig("alice", 60)
	aliceCfg.Adapter = adapter
	bobCfg := testConfig("bob", 61)
	bobCfg.Adapter = adapter

	alice := New(aliceCfg)
	bob := New(bobCfg)
	bobTeam := localTeam(62)
	if err := alice.StartMatchmaking(localTeam(63)); err != nil {
		t.Fatalf("StartMatchmaking: %v", err)
	}
	if err := bob.StartMatchmaking(bobTeam); err != nil {
		t.Fatalf("StartMatchmaking: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return bob.Phase() == PhaseFighting
	})

	// Both sides must agree that bob fights with bob's real creatures.
	bobView := bob.Snapshot()
	aliceView := alice.Snapshot()
	if bobView.Player1Team[0].Name != bobTeam[0].Name {
		t.Fatalf("guest sees %q, brought %q", bobView.Player1Team[0].Name, bobTeam[0].Name)
	}
	if aliceView.Player2Team[0].Name != bobTeam[0].Name {
		t.Fatalf("host sees %q, guest brought %q", aliceView.Player2Team[0].Name, bobTeam[0].Name)
	}
}

func TestOnlineSnapshotRedeliveryDoesNotReResolve(t *testing.T) {
	store := remote.NewMemoryStore()
	adapter := remote.NewAdapter(store, nil)

	// Record every version of the battle collection as it lands, so an
	// already-delivered pre-resolution document can be delivered again.
	var (
		histMu  sync.Mutex
		history [][]byte
	)
	if _, err := store.Observe("battles", func(value interface{}) {
		raw, err := json.Marshal(value)
		if err != nil {
			return
		}
		histMu.Lock()
		history = append(history, raw)
		histMu.Unlock()
	}); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	aliceCfg := testConfig("alice", 70)
	aliceCfg.Adapter = adapter
	bobCfg := testConfig("bob", 71)
	bobCfg.Adapter = adapter
	alice := New(aliceCfg)
	bob := New(bobCfg)

	if err := alice.StartMatchmaking(localTeam(72)); err != nil {
		t.Fatalf("alice StartMatchmaking: %v", err)
	}
	if err := bob.StartMatchmaking(localTeam(73)); err != nil {
		t.Fatalf("bob StartMatchmaking: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return alice.Phase() == PhaseFighting && bob.Phase() == PhaseFighting
	})

	// One resolved turn: the host's move travels through the store as a
	// pending action before the host resolves it.
	if err := alice.SubmitMove(0); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		a, b := alice.Snapshot(), bob.Snapshot()
		return a != nil && b != nil && a.Turn == 2 && b.Turn == 2
	})

	battleID := alice.Snapshot().ID
	before, _ := json.Marshal(alice.Snapshot())
	beforeBob, _ := json.Marshal(bob.Snapshot())

	// Find the recorded collection version still carrying the turn-1
	// pending action and deliver it again.
	var stale interface{}
	histMu.Lock()
	for _, raw := range history {
		var typed map[string]*game.Battle
		if err := json.Unmarshal(raw, &typed); err != nil {
			continue
		}
		doc := typed[battleID]
		if doc == nil || doc.Turn != 1 || doc.Player1Action == nil {
			continue
		}
		var coll map[string]interface{}
		if err := json.Unmarshal(raw, &coll); err != nil {
			continue
		}
		stale = coll[battleID]
		break
	}
	histMu.Unlock()
	if stale == nil {
		t.Fatal("no pre-resolution document was recorded")
	}
	if err := store.Put("battles/"+battleID, stale); err != nil {
		t.Fatalf("Put: %v", err)
	}

	after, _ := json.Marshal(alice.Snapshot())
	afterBob, _ := json.Marshal(bob.Snapshot())
	if string(before) != string(after) {
		t.Fatalf("host state changed on redelivery:\nbefore %s\nafter  %s", before, after)
	}
	if string(beforeBob) != string(afterBob) {
		t.Fatalf("guest state changed on redelivery:\nbefore %s\nafter  %s", beforeBob, afterBob)
	}
}

// creationFailingStore fails the first write under battles/ and passes
// everything else through.
type creationFailingStore struct {
	remote.Store

	mu     sync.Mutex
	failed bool
}

func (s *creationFailingStore) Put(path string, value interface{}) error {
	s.mu.Lock()
	fail := !s.failed && strings.HasPrefix(path, "battles/")
	if fail {
		s.failed = true
	}
	s.mu.Unlock()
	if fail {
		return errors.New("store unavailable")
	}
	return s.Store.Put(path, value)
}

func (s *creationFailingStore) didFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func TestHostRetriesBattleCreationAfterFailure(t *testing.T) {
	flaky := &creationFailingStore{Store: remote.NewMemoryStore()}
	adapter := remote.NewAdapter(flaky, nil)

	aliceCfg := testConfig("alice", 80)
	aliceCfg.Adapter = adapter
	bobCfg := testConfig("bob", 81)
	bobCfg.Adapter = adapter
	alice := New(aliceCfg)
	bob := New(bobCfg)

	if err := alice.StartMatchmaking(localTeam(82)); err != nil {
		t.Fatalf("alice StartMatchmaking: %v", err)
	}
	if err := bob.StartMatchmaking(localTeam(83)); err != nil {
		t.Fatalf("bob StartMatchmaking: %v", err)
	}
	waitFor(t, time.Second, func() bool { return flaky.didFail() })

	// The queue still holds both entries; a redelivered queue change must
	// make the host try the creation again.
	if err := adapter.JoinQueue("bob", localTeam(83), 43); err != nil {
		t.Fatalf("JoinQueue: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return alice.Phase() == PhaseFighting && bob.Phase() == PhaseFighting
	})
}
