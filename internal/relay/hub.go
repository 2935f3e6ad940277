// Package relay hosts the shared document tree that online battles
// synchronize through. Clients speak the websocket store protocol; the hub
// applies their operations to an in-process tree and fans changes back out
// to whoever is watching. The hub also books finished battles into the
// player repository.
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crittermon/arena/internal/constants"
	"github.com/crittermon/arena/internal/game"
	"github.com/crittermon/arena/internal/logging"
	"github.com/crittermon/arena/internal/remote"
	"github.com/crittermon/arena/internal/storage"
)

const writeWait = 10 * time.Second

// Hub owns the document tree and the connected clients.
type Hub struct {
	store *remote.MemoryStore
	repo  storage.Repository

	mu       sync.Mutex
	recorded map[string]bool
}

// NewHub creates a hub over a fresh tree. A nil repository disables result
// recording.
func NewHub(repo storage.Repository) *Hub {
	h := &Hub{
		store:    remote.NewMemoryStore(),
		repo:     repo,
		recorded: make(map[string]bool),
	}
	if repo != nil {
		if _, err := h.store.Observe(constants.PathBattles, h.onBattlesChanged); err != nil {
			logging.Error("battle result observer failed", err, nil)
		}
	}
	return h
}

// Store exposes the underlying tree for diagnostics handlers and tests.
func (h *Hub) Store() *remote.MemoryStore {
	return h.store
}

// onBattlesChanged scans the battle collection for newly finished battles
// and records each one exactly once.
func (h *Hub) onBattlesChanged(value interface{}) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return
	}
	for id, raw := range m {
		var b game.Battle
		if err := remote.Decode(raw, &b); err != nil {
			logging.Warn("unreadable battle document", err, logging.Fields{constants.LogFieldBattleID: id})
			continue
		}
		if !b.Over() {
			continue
		}

		h.mu.Lock()
		seen := h.recorded[b.ID]
		if !seen {
			h.recorded[b.ID] = true
		}
		h.mu.Unlock()
		if seen {
			continue
		}

		h.recordResult(&b)
	}
}

func (h *Hub) recordResult(b *game.Battle) {
	draw := b.WinnerID == ""
	winnerID, loserID := b.WinnerID, b.Player1ID
	if draw {
		// Both sides book a draw; the parameter split is immaterial.
		winnerID, loserID = b.Player1ID, b.Player2ID
	} else if winnerID == b.Player1ID {
		loserID = b.Player2ID
	}

	if err := h.repo.RecordResult(winnerID, loserID, draw, b.Forfeited); err != nil {
		logging.Error("result recording failed", err, logging.Fields{constants.LogFieldBattleID: b.ID})
		return
	}
	logging.Info("battle result recorded", logging.Fields{
		constants.LogFieldBattleID: b.ID,
		constants.LogFieldWinner:   b.WinnerID,
	})
}

// SweepQueue removes matchmaking entries whose join time is older than ttl
// relative to now (unix seconds). Undecodable entries are swept too. It
// returns how many entries were removed.
func (h *Hub) SweepQueue(ttl time.Duration, now int64) int {
	value, err := h.store.Get(constants.PathQueue)
	if err != nil || value == nil {
		return 0
	}
	m, ok := value.(map[string]interface{})
	if !ok {
		return 0
	}
	cutoff := now - int64(ttl/time.Second)
	removed := 0
	for key, raw := range m {
		var entry remote.QueueEntry
		stale := remote.Decode(raw, &entry) != nil || entry.JoinedAt < cutoff
		if !stale {
			continue
		}
		if err := h.store.Remove(constants.PathQueue + "/" + key); err != nil {
			logging.Warn("queue sweep failed", err, logging.Fields{constants.LogFieldPlayerID: key})
			continue
		}
		removed++
	}
	return removed
}

// RunQueueSweeper sweeps the queue every interval until stop is closed.
func (h *Hub) RunQueueSweeper(interval, ttl time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := h.SweepQueue(ttl, time.Now().Unix()); n > 0 {
				logging.Info("stale queue entries removed", logging.Fields{"count": n})
			}
		case <-stop:
			return
		}
	}
}

// client is one websocket connection. Writes are serialized through mu and
// bounded by a deadline so one stuck client cannot wedge the hub.
type client struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	watches map[int64]remote.Handle
}

func (c *client) send(resp remote.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(resp)
}

// Serve runs the request loop for one connection until it closes, then
// releases every watch the client held.
func (h *Hub) Serve(conn *websocket.Conn) {
	cl := &client{conn: conn, watches: make(map[int64]remote.Handle)}
	defer func() {
		for _, handle := range cl.watches {
			h.store.Unobserve(handle)
		}
		conn.Close()
	}()

	for {
		var req remote.Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warn("client connection lost", err, nil)
			}
			return
		}
		resp := h.handle(cl, req)
		if err := cl.send(resp); err != nil {
			logging.Warn("client write failed", err, nil)
			return
		}
	}
}

func (h *Hub) handle(cl *client, req remote.Request) remote.Response {
	resp := remote.Response{Type: remote.TypeResult, Seq: req.Seq}

	switch req.Op {
	case remote.OpPut:
		var value interface{}
		if err := json.Unmarshal(req.Value, &value); err != nil {
			resp.Error = "malformed value"
			return resp
		}
		if err := h.store.Put(req.Path, value); err != nil {
			resp.Error = err.Error()
		}
	case remote.OpGet:
		value, err := h.store.Get(req.Path)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		if value != nil {
			raw, err := json.Marshal(value)
			if err != nil {
				resp.Error = err.Error()
				return resp
			}
			resp.Value = raw
		}
	case remote.OpRemove:
		if err := h.store.Remove(req.Path); err != nil {
			resp.Error = err.Error()
		}
	case remote.OpObserve:
		watch := req.Watch
		handle, err := h.store.Observe(req.Path, func(value interface{}) {
			change := remote.Response{Type: remote.TypeChange, Watch: watch}
			if value != nil {
				raw, err := json.Marshal(value)
				if err != nil {
					logging.Warn("unmarshalable change value", err, logging.Fields{constants.LogFieldPath: req.Path})
					return
				}
				change.Value = raw
			}
			if err := cl.send(change); err != nil {
				logging.Warn("change delivery failed", err, logging.Fields{constants.LogFieldPath: req.Path})
			}
		})
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		cl.watches[watch] = handle
	case remote.OpUnobserve:
		if handle, ok := cl.watches[req.Watch]; ok {
			h.store.Unobserve(handle)
			delete(cl.watches, req.Watch)
		}
	default:
		resp.Error = "unknown op"
	}
	return resp
}
