// Package cacheindex implements the cache and index store: an in-memory
// id→Node cache with LRU eviction, plus the type, equality, range, and
// compound secondary indexes that the query planner consults before
// falling back to a backend scan.
//
// A single sync.RWMutex guards all maps, and the lock is never held
// across a caller-visible callback.
package cacheindex

import (
	"container/list"
	"sync"

	"github.com/dreamware/graphdb/internal/model"
)

// Location records where an id's backend blob lives, so a repeat
// getNode never needs to glob-scan every type directory.
type Location struct {
	Type      string
	ShardPath string
}

// Config bundles the cache capacity and index declarations a Store is
// built from.
//
// IndexSpec declares which property paths (equality, range) and which
// groups of paths (compound) get a secondary index, per node type.
// CacheCapacity bounds the id→Node LRU; it defaults to 10000 when zero
// or negative.
type Config struct {
	IndexSpec     IndexSpec
	CacheCapacity int // default 10000
}

// Store is the in-process cache and secondary index layer: an LRU
// id→Node cache plus the type, equality, range, and compound indexes
// the query planner consults before falling back to a backend scan.
//
// Behavior:
//   - Index maintenance is tied to CacheNode/RemoveNode, not to LRU
//     eviction — an index entry can outlive its node's presence in the
//     hot cache, so a planner that gets an index hit on an evicted id
//     falls through to Location and a backend fetch rather than losing
//     the match.
//   - Every Node handed in or out is copied with its top-level
//     Properties map cloned (Properties.Clone(), a shallow copy), so a
//     caller adding, replacing, or deleting top-level keys on its copy
//     never affects the Store's state or vice versa; nested maps and
//     slices inside property values are shared, not copied.
//
// Thread Safety:
// All methods are safe for concurrent use; a single sync.RWMutex guards
// every map, and the lock is never held across a caller-visible
// callback.
type Store struct {
	mu sync.RWMutex

	spec parsedSpec

	capacity int
	lru      *list.List
	elems    map[string]*list.Element // id -> lru element, Value is *cacheEntry

	locations map[string]Location

	byType map[string]map[string]struct{} // type -> set(id)

	// equality[type][joinedPath][equalityKey(value)] -> set(id)
	equality map[string]map[string]map[string]map[string]struct{}

	// rnge[type][joinedPath] -> sorted (ordinal,id) list
	rnge map[string]map[string]*rangeList

	// compound[type][joinedGroup][joinedTupleKey] -> set(id)
	compound map[string]map[string]map[string]map[string]struct{}
}

type cacheEntry struct {
	id   string
	node *model.Node
}

// New builds an empty Store from cfg.
//
// Parameters:
//   - cfg: index declarations and cache capacity; CacheCapacity
//     defaults to 10000 when zero or negative.
//
// Returns a ready-to-use, empty Store.
func New(cfg Config) *Store {
	cap := cfg.CacheCapacity
	if cap <= 0 {
		cap = 10000
	}
	return &Store{
		spec:      parseSpec(cfg.IndexSpec),
		capacity:  cap,
		lru:       list.New(),
		elems:     make(map[string]*list.Element),
		locations: make(map[string]Location),
		byType:    make(map[string]map[string]struct{}),
		equality:  make(map[string]map[string]map[string]map[string]struct{}),
		rnge:      make(map[string]map[string]*rangeList),
		compound:  make(map[string]map[string]map[string]map[string]struct{}),
	}
}

// CacheNode stores n in the id cache, records its shard location, and
// feeds every index IndexSpec declares for n.Type.
//
// Behavior:
//   - A node already present is updated in place and its indexed values
//     are re-derived from scratch, so a changed property never leaves a
//     stale equality/range/compound entry behind.
//   - Pushing a new id past capacity evicts the least-recently-used
//     cache entry; eviction never touches the secondary indexes.
//
// Parameters:
//   - n: the node to cache; its top-level Properties map is cloned, so
//     the caller may change top-level keys afterward without affecting
//     the Store (nested values are shared).
//   - loc: the node's current shard location, recorded alongside it.
//
// Thread Safety:
// Safe for concurrent use.
func (s *Store) CacheNode(n *model.Node, loc Location) {
	cp := *n
	cp.Properties = n.Properties.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.elems[n.ID]; ok {
		oldNode := old.Value.(*cacheEntry).node
		s.deindexLocked(oldNode)
		old.Value = &cacheEntry{id: n.ID, node: &cp}
		s.lru.MoveToFront(old)
	} else {
		elem := s.lru.PushFront(&cacheEntry{id: n.ID, node: &cp})
		s.elems[n.ID] = elem
		s.evictIfNeededLocked()
	}
	s.locations[n.ID] = loc
	s.indexLocked(&cp)
}

// GetNode returns the cached Node for id, promoting it to
// most-recently-used.
//
// Returns the node and true if id is cached; (nil, false) on a cache
// miss — a miss does not imply the node doesn't exist, only that it
// isn't currently hot.
//
// Thread Safety:
// Safe for concurrent use.
func (s *Store) GetNode(id string) (*model.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.elems[id]
	if !ok {
		return nil, false
	}
	s.lru.MoveToFront(elem)
	n := *elem.Value.(*cacheEntry).node
	n.Properties = elem.Value.(*cacheEntry).node.Properties.Clone()
	return &n, true
}

// Location returns the recorded shard location for id, if known. This
// survives LRU eviction of the node itself, so a planner can still
// locate an evicted id's backend blob without a full scan.
//
// Thread Safety:
// Safe for concurrent use.
func (s *Store) Location(id string) (Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[id]
	return loc, ok
}

// RecordLocation remembers where an id lives without populating the
// node cache or any index.
//
// Thread Safety:
// Safe for concurrent use.
func (s *Store) RecordLocation(id string, loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[id] = loc
}

// RemoveNode deletes id from the cache, its recorded location, and
// every index that referenced it.
//
// Thread Safety:
// Safe for concurrent use.
func (s *Store) RemoveNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.elems[id]
	if !ok {
		delete(s.locations, id)
		return
	}
	node := elem.Value.(*cacheEntry).node
	s.deindexLocked(node)
	s.lru.Remove(elem)
	delete(s.elems, id)
	delete(s.locations, id)
}

func (s *Store) evictIfNeededLocked() {
	for s.lru.Len() > s.capacity {
		victim := s.lru.Back()
		if victim == nil {
			return
		}
		entry := victim.Value.(*cacheEntry)
		// LRU eviction only drops the hot node cache entry; secondary
		// indexes are maintained on cacheNode/deleteNode, not tied to
		// eviction, so getNode on an index hit for an evicted id simply
		// falls through to the backend again.
		s.lru.Remove(victim)
		delete(s.elems, entry.id)
	}
}

// TypeIDs returns every id known under type t, in no particular order.
// Unlike the equality/range/compound probes, this index always exists —
// there's no "not indexed" case.
//
// Thread Safety:
// Safe for concurrent use.
func (s *Store) TypeIDs(t string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.byType[t]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// EqualityIDs returns every id of type t whose value at path equals v,
// using the equality index.
//
// Returns (ids, true) if (t, path) is equality-indexed, even if no id
// currently matches v (an empty, non-nil slice); (nil, false) if that
// (type, path) combination isn't indexed at all — the caller's signal
// to fall back to a different plan.
//
// Thread Safety:
// Safe for concurrent use.
func (s *Store) EqualityIDs(t string, path []string, v any) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasEqualityLocked(t, path) {
		return nil, false
	}
	byPath := s.equality[t][joinSegs(path)]
	set := byPath[equalityKey(v)]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out, true
}

// RangeIDs returns every id of type t whose value at path falls in
// [min, max].
//
// Parameters:
//   - min, max: either bound may be nil for an open-ended range; both
//     nil returns every indexed id for (t, path).
//
// Returns (nil, false) if (t, path) isn't range-indexed.
//
// Thread Safety:
// Safe for concurrent use.
func (s *Store) RangeIDs(t string, path []string, min, max *any) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPath, ok := s.rnge[t]
	if !ok {
		return nil, false
	}
	rl, ok := byPath[joinSegs(path)]
	if !ok {
		return nil, false
	}
	var lo, hi *ordinal
	if min != nil {
		o := newOrdinal(*min)
		lo = &o
	}
	if max != nil {
		o := newOrdinal(*max)
		hi = &o
	}
	return rl.window(lo, hi), true
}

// CompoundIDs returns every id of type t matching the given tuple of
// (path, value) pairs via a declared compound index.
//
// Behavior:
// paths is matched against a declared compound group order-
// independently — the caller doesn't need to supply paths in the same
// order the group was declared in.
//
// Returns (nil, false) if no compound index covers exactly this set of
// paths (a subset or superset doesn't match).
//
// Thread Safety:
// Safe for concurrent use.
func (s *Store) CompoundIDs(t string, paths [][]string, values []any) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groupKey, order, ok := s.matchCompoundGroupLocked(t, paths)
	if !ok {
		return nil, false
	}
	ordered := make([]any, len(values))
	for j, i := range order {
		ordered[i] = values[j]
	}
	tupleKey := compoundTupleKey(ordered)
	set := s.compound[t][groupKey][tupleKey]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out, true
}

func (s *Store) hasEqualityLocked(t string, path []string) bool {
	for _, p := range s.spec.equality[t] {
		if segsEqual(p, path) {
			return true
		}
	}
	return false
}

// matchCompoundGroupLocked finds a declared compound group for type t
// whose path set equals paths (order-independent) and returns its
// canonical join key, plus, for each entry of paths, its position in the
// declared group.
func (s *Store) matchCompoundGroupLocked(t string, paths [][]string) (string, []int, bool) {
	for _, group := range s.spec.compound[t] {
		if len(group) != len(paths) {
			continue
		}
		matched := make([]bool, len(group))
		order := make([]int, len(paths))
		ok := true
	outer:
		for j, want := range paths {
			for i, have := range group {
				if matched[i] {
					continue
				}
				if segsEqual(have, want) {
					matched[i] = true
					order[j] = i
					continue outer
				}
			}
			ok = false
			break outer
		}
		if ok {
			return joinGroup(group), order, true
		}
	}
	return "", nil, false
}

func segsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func compoundTupleKey(values []any) string {
	out := equalityKey(values[0])
	for _, v := range values[1:] {
		out += "\x1f" + equalityKey(v)
	}
	return out
}
