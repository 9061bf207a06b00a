package cacheindex

import "github.com/dreamware/graphdb/internal/model"

// Batch accumulates cache/index mutations in a side buffer.
//
// Behavior:
//   - Reads through the Batch handle see the uncommitted view (pending
//     writes overlaid on the committed Store); every other caller still
//     talking to the Store directly sees only the committed view until
//     Commit.
//   - Go has no implicit goroutine-local "current batch", so batch
//     membership is this explicit handle rather than ambient state —
//     callers must route every staged mutation and read through the
//     same *Batch.
//
// Thread Safety:
// Not safe for concurrent use by multiple goroutines; a Batch is a
// single-writer accumulation buffer.
type Batch struct {
	store   *Store
	overlay map[string]*model.Node // nil value = pending delete (tombstone)
	locs    map[string]Location
}

// StartBatch opens a new Batch over s.
//
// Returns an empty Batch ready to accumulate staged mutations.
//
// Thread Safety:
// The returned handle is not safe for concurrent use by multiple
// goroutines.
func (s *Store) StartBatch() *Batch {
	return &Batch{
		store:   s,
		overlay: make(map[string]*model.Node),
		locs:    make(map[string]Location),
	}
}

// CacheNode stages n for insertion/update.
//
// Visible immediately to reads through this Batch (via GetNode) but not
// to the committed Store, or to any other Batch, until Commit.
func (b *Batch) CacheNode(n *model.Node, loc Location) {
	cp := *n
	cp.Properties = n.Properties.Clone()
	b.overlay[n.ID] = &cp
	b.locs[n.ID] = loc
}

// RemoveNode stages a deletion of id, overriding any earlier staged
// CacheNode for the same id within this Batch.
func (b *Batch) RemoveNode(id string) {
	b.overlay[id] = nil
}

// GetNode resolves id against the pending overlay first, falling back
// to the committed Store if this Batch hasn't staged a mutation for id.
//
// Returns (nil, false) both when id is unknown to the committed Store
// and when this Batch has staged id's removal — the two are
// indistinguishable to a reader, by design: a reader shouldn't need to
// know whether an absence is committed or pending.
func (b *Batch) GetNode(id string) (*model.Node, bool) {
	if n, staged := b.overlay[id]; staged {
		if n == nil {
			return nil, false
		}
		cp := *n
		cp.Properties = n.Properties.Clone()
		return &cp, true
	}
	return b.store.GetNode(id)
}

// Commit applies every staged mutation to the underlying Store and
// clears this Batch's overlay.
//
// Behavior:
// Staged mutations are applied one at a time through Store.CacheNode and
// Store.RemoveNode, each taking the Store's lock separately. Commit as a
// whole is not atomic: any reader of the Store — a direct caller, or
// another Batch falling back to the Store for an id it hasn't staged —
// can observe a partially-applied batch while Commit runs.
//
// Thread Safety:
// Not safe for concurrent use on the same Batch.
func (b *Batch) Commit() {
	for id, n := range b.overlay {
		if n == nil {
			b.store.RemoveNode(id)
			continue
		}
		b.store.CacheNode(n, b.locs[id])
	}
	b.overlay = make(map[string]*model.Node)
	b.locs = make(map[string]Location)
}

// Discard drops every staged mutation without applying it, leaving the
// committed Store untouched.
func (b *Batch) Discard() {
	b.overlay = make(map[string]*model.Node)
	b.locs = make(map[string]Location)
}
