// Package storage defines the abstract key-value storage interface used by
// storage actors and provides an in-memory implementation.
package storage

import (
	"github.com/NebulousLabs/errors"
)

// ErrKeyNotFound is returned when a key doesn't exist in the store.
var ErrKeyNotFound = errors.New("key not found")

// Store defines the interface for key-value storage operations used by a
// storage actor to hold chunk payloads.
//
// Thread-safety:
//   - An implementation need not be safe for concurrent use by itself. The
//     only caller in this repo is a single Actor's dispatch goroutine (see
//     internal/actor), which already serializes every operation through its
//     mailbox, so a Store is never touched by two goroutines at once.
//   - Implementations must still copy values in and out, so a caller can't
//     mutate stored state through an aliased slice, nor have its own buffer
//     mutated later by a store it thought it handed ownership to.
type Store interface {
	// Get returns the value for key.
	//
	// Parameters:
	//   - key: the key to retrieve
	//
	// Returns:
	//   - a copy of the stored value
	//   - ErrKeyNotFound if key is absent
	Get(key string) ([]byte, error)

	// Put creates or overwrites the value for key.
	//
	// Parameters:
	//   - key: the key to store
	//   - value: the value to store; the store keeps its own copy
	//
	// Returns:
	//   - nil on success
	Put(key string, value []byte) error

	// Delete removes key.
	//
	// Parameters:
	//   - key: the key to remove
	//
	// Returns:
	//   - nil always; deleting an absent key is not an error
	Delete(key string) error

	// List returns all keys currently in the store.
	//
	// Returns:
	//   - every key, in no particular order
	List() []string

	// Clear removes every key, resetting the store to empty.
	Clear()

	// Stats returns a point-in-time snapshot of store size.
	//
	// Returns:
	//   - the current key count and total byte count across all values
	Stats() StoreStats
}

// StoreStats summarizes a store's contents.
type StoreStats struct {
	Keys  int
	Bytes int
}

// MemoryStore implements Store with a plain in-memory map. No persistence:
// all data is lost when the process exits.
//
// Thread-safety:
//   - MemoryStore carries no lock of its own. Every instance in this repo is
//     created by and private to exactly one Actor (internal/actor.New),
//     whose own run loop is the sole caller of every method here — the
//     safety comes from that single-goroutine discipline, the same way
//     Coordinator's placement map needs no mutex because only its own
//     mailbox goroutine ever touches it. A MemoryStore shared across
//     goroutines without an equivalent serialization point would need its
//     own lock; this one doesn't have that caller.
type MemoryStore struct {
	data map[string][]byte
}

// NewMemoryStore returns an empty, ready-to-use MemoryStore.
//
// Returns:
//   - an initialized MemoryStore with no keys
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (m *MemoryStore) Get(key string) ([]byte, error) {
	value, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put implements Store.
func (m *MemoryStore) Put(key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(key string) error {
	delete(m.data, key)
	return nil
}

// List implements Store.
func (m *MemoryStore) List() []string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// Clear implements Store.
func (m *MemoryStore) Clear() {
	m.data = make(map[string][]byte)
}

// Stats implements Store.
func (m *MemoryStore) Stats() StoreStats {
	total := 0
	for _, v := range m.data {
		total += len(v)
	}
	return StoreStats{Keys: len(m.data), Bytes: total}
}
