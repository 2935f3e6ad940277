// Package remote maps battle intents onto a shared, path-addressed,
// observable document store and normalizes the store's quirks: numeric
// types collapsing into floats and ordered arrays arriving as index-keyed
// maps. The store itself is an external collaborator; MemoryStore is the
// in-process implementation and WSStore speaks to an arenad relay.
package remote

// Handle identifies a registered observer for later removal.
type Handle int64

// Store is the key-value/observable contract the adapter consumes.
//
// Delivery is at-least-once with no ordering guarantee beyond eventually
// reflecting the latest write; observers must apply values idempotently.
// Observe fires immediately with the current value when one exists, and a
// write below an observed path re-delivers the observed subtree. Removed
// paths are delivered as nil.
type Store interface {
	Put(path string, value interface{}) error
	Get(path string) (interface{}, error)
	Observe(path string, onChange func(interface{})) (Handle, error)
	Unobserve(h Handle)
	Remove(path string) error
}
