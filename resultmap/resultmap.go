// Package resultmap implements the concurrent map (component E): a
// single-lock mapping from a stable pass-local region index to a shared
// scan result, safe under concurrent insertion from next-pass workers.
package resultmap

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fulldump/memscan/scanresult"
)

// Handle is a reference-counted pointer to a *scanresult.Result[T]. A
// reader that obtained a Handle via Get may keep using it after an
// intervening Erase removes the key from the map, matching spec.md
// §4.E's "caller may outlive an intervening erase". The count is
// bookkeeping only: nothing is freed when it reaches zero, and the
// Result stays alive as long as any Handle refers to it.
type Handle[T any] struct {
	result *scanresult.Result[T]
	refs   *int32
}

// Result returns the handle's underlying scan result.
func (h Handle[T]) Result() *scanresult.Result[T] { return h.result }

// Release drops this handle's reference. Every call decrements the
// shared count, so calling it more than once for the same handle drops
// more than one reference.
func (h Handle[T]) Release() {
	if h.refs == nil {
		return
	}
	atomic.AddInt32(h.refs, -1)
}

// Map is a concurrent store of Handle[T] keyed by int32 region index.
// All operations take the same lock; Keys/Values return independent
// snapshots, never live views, and iterate in ascending key order.
type Map[T any] struct {
	mu      sync.Mutex
	entries map[int32]Handle[T]
}

// New returns an empty Map.
func New[T any]() *Map[T] {
	return &Map[T]{entries: map[int32]Handle[T]{}}
}

// Insert stores result under key, replacing any existing entry. The
// handle starts with a single reference owned by the map itself.
func (m *Map[T]) Insert(key int32, result *scanresult.Result[T]) {
	refs := int32(1)
	m.mu.Lock()
	m.entries[key] = Handle[T]{result: result, refs: &refs}
	m.mu.Unlock()
}

// Erase removes key from the map. Handles already obtained via Get
// remain valid until released.
func (m *Map[T]) Erase(key int32) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Contains reports whether key is currently present.
func (m *Map[T]) Contains(key int32) bool {
	m.mu.Lock()
	_, ok := m.entries[key]
	m.mu.Unlock()
	return ok
}

// Get returns a reference-counted handle for key, and whether it was
// found. The caller should Release the handle when done with it.
func (m *Map[T]) Get(key int32) (Handle[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.entries[key]
	if !ok {
		return Handle[T]{}, false
	}
	atomic.AddInt32(h.refs, 1)
	return h, true
}

// First returns the handle with the smallest key, and whether the map
// is non-empty.
func (m *Map[T]) First() (Handle[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return Handle[T]{}, false
	}
	keys := sortedKeysLocked(m.entries)
	h := m.entries[keys[0]]
	atomic.AddInt32(h.refs, 1)
	return h, true
}

// ForEach invokes f for every entry in ascending key order, under the
// map's lock held only long enough to snapshot the keys — f itself runs
// without the lock held, so it may call back into the map.
func (m *Map[T]) ForEach(f func(key int32, h Handle[T])) {
	for _, kv := range m.snapshot() {
		f(kv.key, kv.handle)
	}
}

// Keys returns a sorted, independent copy of the map's current keys.
func (m *Map[T]) Keys() []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeysLocked(m.entries)
}

// Values returns the map's current handles, ordered by ascending key.
func (m *Map[T]) Values() []Handle[T] {
	snap := m.snapshot()
	out := make([]Handle[T], len(snap))
	for i, kv := range snap {
		out[i] = kv.handle
	}
	return out
}

// Empty reports whether the map currently holds no entries.
func (m *Map[T]) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries) == 0
}

// Size returns the current entry count.
func (m *Map[T]) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type keyHandle[T any] struct {
	key    int32
	handle Handle[T]
}

func (m *Map[T]) snapshot() []keyHandle[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := sortedKeysLocked(m.entries)
	out := make([]keyHandle[T], len(keys))
	for i, k := range keys {
		out[i] = keyHandle[T]{key: k, handle: m.entries[k]}
	}
	return out
}

func sortedKeysLocked[T any](entries map[int32]Handle[T]) []int32 {
	keys := make([]int32, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
