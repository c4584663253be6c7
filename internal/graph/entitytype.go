package graph

import (
	"sync"

	"github.com/KatanaGraph/katana-sub004/pkg/collections"
)

// EntityTypeRegistry interns atomic type sets (each a named, singleton type
// like "Person" or "Organization") into small integer IDs, so a node/edge's
// type membership can be stored as one uint16 rather than a set. ID 0 is
// reserved for the empty set (untyped entities); IDs 1..N are the
// registered atomic types in registration order — both stable across the
// registry's lifetime, matching spec.md's "stable empty-set and singleton
// IDs" invariant.
type EntityTypeRegistry struct {
	mu        sync.RWMutex
	nameToID  map[string]uint16
	idToName  []string
	idToSet   []*collections.Bitset // idToSet[id] is a singleton bitset over atomic type IDs
}

// NewEntityTypeRegistry creates a registry with only the empty type
// registered (ID 0).
func NewEntityTypeRegistry() *EntityTypeRegistry {
	r := &EntityTypeRegistry{
		nameToID: make(map[string]uint16),
		idToName: []string{""},
		idToSet:  []*collections.Bitset{collections.NewBitset(1)},
	}
	return r
}

// RegisterAtomicType interns name as a new atomic type, returning its
// stable ID. Registering the same name twice returns the existing ID.
func (r *EntityTypeRegistry) RegisterAtomicType(name string) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.nameToID[name]; ok {
		return id
	}
	id := uint16(len(r.idToName))
	r.nameToID[name] = id
	r.idToName = append(r.idToName, name)
	set := collections.NewBitset(int(id) + 1)
	set.Set(int(id))
	r.idToSet = append(r.idToSet, set)
	return id
}

// IDForName returns the type ID for a previously-registered name.
func (r *EntityTypeRegistry) IDForName(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

// NameForID returns the type name for id, or "" for the reserved empty ID.
func (r *EntityTypeRegistry) NameForID(id uint16) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.idToName) {
		return ""
	}
	return r.idToName[id]
}

// EmptySetID returns the stable ID for the empty (untyped) set.
func (r *EntityTypeRegistry) EmptySetID() uint16 { return 0 }

// NumTypes returns the number of registered atomic types, excluding the
// empty set.
func (r *EntityTypeRegistry) NumTypes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.idToName) - 1
}

// SetForID returns a clone of the bitset backing the given type ID, safe
// for the caller to mutate.
func (r *EntityTypeRegistry) SetForID(id uint16) *collections.Bitset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.idToSet) {
		return collections.NewBitset(1)
	}
	return r.idToSet[id].Clone()
}
