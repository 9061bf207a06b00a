// Package traversal implements relationship traversal: given a starting
// node id and a relationship type, find every node reachable by a
// relationship of that type in the requested direction. Permission
// filtering and endpoint resolution (getNode) stay with the caller —
// this package only resolves candidate ids from the relationship blobs
// themselves.
package traversal

import (
	"context"
	"errors"
	"sync"

	"github.com/dreamware/graphdb/internal/blobstore"
	"github.com/dreamware/graphdb/internal/codec"
	"github.com/dreamware/graphdb/internal/layout"
	"github.com/dreamware/graphdb/internal/model"
)

// AdjacencyIndex is a lazily-populated (from,type)->set(to) cache for
// the OUT direction, the one direction a single forward edge naturally
// indexes. IN and BOTH always resolve by scanning the relationship
// type's blobs — a reverse or combined index isn't worth maintaining
// when a plain scan already satisfies correctness.
type AdjacencyIndex struct {
	mu    sync.RWMutex
	out   map[string]map[string]struct{}
	known map[string]bool
}

// NewAdjacencyIndex returns an empty index.
func NewAdjacencyIndex() *AdjacencyIndex {
	return &AdjacencyIndex{
		out:   make(map[string]map[string]struct{}),
		known: make(map[string]bool),
	}
}

func adjKey(from, typ string) string { return from + "\x00" + typ }

// Lookup returns the cached OUT neighbor set for (from,typ), or
// (nil, false) if it has never been populated.
func (a *AdjacencyIndex) Lookup(from, typ string) ([]string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	k := adjKey(from, typ)
	if !a.known[k] {
		return nil, false
	}
	set := a.out[k]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids, true
}

// Populate records the full OUT neighbor set for (from,typ) after a
// scan, so the next traversal skips the scan entirely.
func (a *AdjacencyIndex) Populate(from, typ string, tos []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := adjKey(from, typ)
	set := make(map[string]struct{}, len(tos))
	for _, to := range tos {
		set[to] = struct{}{}
	}
	a.out[k] = set
	a.known[k] = true
}

// Add records a single new OUT edge, called by createRelationship. If
// (from,typ) was never populated, this is a no-op — the next traversal
// will do a fresh scan and pick the edge up anyway.
func (a *AdjacencyIndex) Add(from, typ, to string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := adjKey(from, typ)
	if !a.known[k] {
		return
	}
	if a.out[k] == nil {
		a.out[k] = make(map[string]struct{})
	}
	a.out[k][to] = struct{}{}
}

// Invalidate drops the cached entry for (from,typ) entirely, forcing
// the next traversal to rescan. Called on deleteRelationship.
func (a *AdjacencyIndex) Invalidate(from, typ string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := adjKey(from, typ)
	delete(a.out, k)
	delete(a.known, k)
}

// Candidates resolves the ids on the opposite end of every relationship
// of type relType touching id in the requested direction. For DirOut it
// consults/populates adj; DirIn and DirBoth always scan, since no
// reverse index is maintained.
func Candidates(ctx context.Context, backend blobstore.Backend, adj *AdjacencyIndex, id, relType string, dir model.Direction) ([]string, error) {
	switch dir {
	case model.DirIn:
		return scan(ctx, backend, relType, func(r *model.Relationship) (string, bool) {
			if r.To == id {
				return r.From, true
			}
			return "", false
		})
	case model.DirBoth:
		out, err := Candidates(ctx, backend, adj, id, relType, model.DirOut)
		if err != nil {
			return nil, err
		}
		in, err := scan(ctx, backend, relType, func(r *model.Relationship) (string, bool) {
			if r.To == id {
				return r.From, true
			}
			return "", false
		})
		if err != nil {
			return nil, err
		}
		return union(out, in), nil
	default: // model.DirOut and unset
		if cached, ok := adj.Lookup(id, relType); ok {
			return cached, nil
		}
		out, err := scan(ctx, backend, relType, func(r *model.Relationship) (string, bool) {
			if r.From == id {
				return r.To, true
			}
			return "", false
		})
		if err != nil {
			return nil, err
		}
		adj.Populate(id, relType, out)
		return out, nil
	}
}

// scan lists every relationship blob of type relType and collects the
// match(r) result for each one that matches, deduplicated.
func scan(ctx context.Context, backend blobstore.Backend, relType string, match func(*model.Relationship) (string, bool)) ([]string, error) {
	it := backend.List(ctx, layout.RelationshipTypePrefix(relType))
	seen := make(map[string]struct{})
	var out []string
	for {
		key, ok := it.Next()
		if !ok {
			break
		}
		data, err := backend.Get(ctx, key)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				continue
			}
			return nil, err
		}
		r, err := codec.DecodeRelationship(data)
		if err != nil {
			return nil, err
		}
		other, matched := match(r)
		if !matched {
			continue
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
