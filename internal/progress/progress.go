// Package progress tracks per-category XP and emits discrete progression
// events (creature unlocked, creature evolved). The battle core does not
// consume these events; it only shares the creature model and the
// battle-ready filter. Events are delivered on a typed channel owned by the
// tracker rather than through a global publisher.
package progress

import (
	"sync"

	"github.com/crittermon/arena/internal/constants"
	"github.com/crittermon/arena/internal/game"
	"github.com/crittermon/arena/internal/logging"
)

type EventType string

const (
	EventXPGained         EventType = "xp_gained"
	EventCreatureUnlocked EventType = "creature_unlocked"
	EventCreatureEvolved  EventType = "creature_evolved"
)

// Event is one discrete progression change.
type Event struct {
	Type     EventType
	Category game.Category
	Amount   int
	Total    int
	// Stage is set for EventCreatureEvolved: the stage just reached.
	Stage int
}

// Tracker accumulates XP per category and reports threshold crossings.
type Tracker struct {
	mu     sync.Mutex
	xp     map[game.Category]int
	events chan Event
}

// NewTracker creates a tracker with the given event buffer size.
func NewTracker(buffer int) *Tracker {
	return &Tracker{
		xp:     make(map[game.Category]int),
		events: make(chan Event, buffer),
	}
}

// Events is the delivery channel for progression events. Events are dropped
// (with a log line) when no consumer keeps up; progression state itself is
// never lost.
func (t *Tracker) Events() <-chan Event {
	return t.events
}

// AwardXP adds XP to a category and returns the events this award caused,
// in order: the gain itself, then any threshold crossings.
func (t *Tracker) AwardXP(category game.Category, amount int) []Event {
	t.mu.Lock()
	old := t.xp[category]
	total := old + amount
	t.xp[category] = total
	t.mu.Unlock()

	events := []Event{{Type: EventXPGained, Category: category, Amount: amount, Total: total}}

	crossings := []struct {
		threshold int
		event     Event
	}{
		{constants.Stage1Threshold, Event{Type: EventCreatureUnlocked, Category: category, Stage: 1}},
		{constants.Stage2Threshold, Event{Type: EventCreatureEvolved, Category: category, Stage: 2}},
		{constants.Stage3Threshold, Event{Type: EventCreatureEvolved, Category: category, Stage: 3}},
	}
	for _, c := range crossings {
		if old < c.threshold && total >= c.threshold {
			events = append(events, c.event)
		}
	}

	for _, e := range events {
		select {
		case t.events <- e:
		default:
			logging.Warn("progress event dropped, no consumer", nil, logging.Fields{"type": string(e.Type)})
		}
	}
	return events
}

// XP returns the accumulated XP for a category.
func (t *Tracker) XP(category game.Category) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.xp[category]
}

// Stage returns the evolution stage unlocked for a category, or 0 when the
// first threshold has not been reached.
func (t *Tracker) Stage(category game.Category) int {
	xp := t.XP(category)
	switch {
	case xp >= constants.Stage3Threshold:
		return 3
	case xp >= constants.Stage2Threshold:
		return 2
	case xp >= constants.Stage1Threshold:
		return 1
	}
	return 0
}

// NextMilestone returns the next XP threshold for a category; the last
// threshold once maxed out.
func (t *Tracker) NextMilestone(category game.Category) int {
	xp := t.XP(category)
	for _, threshold := range []int{constants.Stage1Threshold, constants.Stage2Threshold, constants.Stage3Threshold} {
		if xp < threshold {
			return threshold
		}
	}
	return constants.Stage3Threshold
}
