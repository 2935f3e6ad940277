package remote

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store backed by a nested map tree. Values
// are JSON round-tripped on write, so readers see exactly the generic
// shapes a real wire store would deliver (all numbers as float64). It backs
// the relay server's document tree and stands in for the remote store in
// tests and offline play.
type MemoryStore struct {
	mu        sync.Mutex
	root      map[string]interface{}
	observers map[Handle]*memObserver
	nextID    Handle
}

type memObserver struct {
	path string
	fn   func(interface{})
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root:      make(map[string]interface{}),
		observers: make(map[Handle]*memObserver),
	}
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Put stores a JSON-encodable value at path, creating intermediate nodes,
// and notifies every observer whose path contains or is contained by the
// written path.
func (s *MemoryStore) Put(path string, value interface{}) error {
	encoded, err := roundtrip(value)
	if err != nil {
		return fmt.Errorf("store put %s: %w", path, err)
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return fmt.Errorf("store put: empty path")
	}

	s.mu.Lock()
	node := s.root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			node[seg] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = encoded
	pending := s.pendingLocked(path)
	s.mu.Unlock()

	for _, p := range pending {
		p.fn(p.value)
	}
	return nil
}

// Get returns the value at path, or nil when absent.
func (s *MemoryStore) Get(path string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valueAtLocked(path), nil
}

// Observe registers an observer and fires it immediately when a value is
// already present at path.
func (s *MemoryStore) Observe(path string, onChange func(interface{})) (Handle, error) {
	s.mu.Lock()
	s.nextID++
	h := s.nextID
	s.observers[h] = &memObserver{path: path, fn: onChange}
	current := s.valueAtLocked(path)
	s.mu.Unlock()

	if current != nil {
		onChange(current)
	}
	return h, nil
}

func (s *MemoryStore) Unobserve(h Handle) {
	s.mu.Lock()
	delete(s.observers, h)
	s.mu.Unlock()
}

// Remove deletes the subtree at path and delivers nil to related observers.
func (s *MemoryStore) Remove(path string) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return fmt.Errorf("store remove: empty path")
	}

	s.mu.Lock()
	node := s.root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]interface{})
		if !ok {
			s.mu.Unlock()
			return nil
		}
		node = child
	}
	delete(node, segments[len(segments)-1])
	pending := s.pendingLocked(path)
	s.mu.Unlock()

	for _, p := range pending {
		p.fn(p.value)
	}
	return nil
}

type delivery struct {
	fn    func(interface{})
	value interface{}
}

// pendingLocked snapshots the observers affected by a change at path along
// with their current subtree values. Callbacks run after the lock is
// released so they may call back into the store.
func (s *MemoryStore) pendingLocked(path string) []delivery {
	var out []delivery
	for _, obs := range s.observers {
		if !related(obs.path, path) {
			continue
		}
		out = append(out, delivery{fn: obs.fn, value: s.valueAtLocked(obs.path)})
	}
	return out
}

func (s *MemoryStore) valueAtLocked(path string) interface{} {
	var node interface{} = s.root
	for _, seg := range splitPath(path) {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node = m[seg]
	}
	return node
}

// related reports whether one path is a prefix of the other, segment-wise.
func related(a, b string) bool {
	as, bs := splitPath(a), splitPath(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// roundtrip pushes a value through JSON so stored data has the same
// generic shape a real remote store delivers.
func roundtrip(value interface{}) (interface{}, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
