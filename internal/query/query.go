// Package query implements the query planner: plan selection across the
// compound, range, equality, and type indexes in internal/cacheindex,
// falling back to a backend scan narrowed to a type's subtree, followed
// by post-filtering, stable sort, and pagination.
//
// Plan selection:
//
// resolveCandidates picks the cheapest index that can narrow the
// candidate set, in this preference order:
//   - compound: every leaf in a top-level "and" is an equality leaf and
//     together they cover a registered compound group.
//   - range: a single comparison leaf (gt/gte/lt/lte) on an indexed path.
//   - equality: a single "eq" leaf on an indexed path.
//   - type: no leaves at all — every node of the type.
//   - scan: none of the above — list the type's (or the whole store's)
//     key subtree and decode every blob.
//
// Every path returns a candidate set that Execute still re-filters with
// the full predicate tree, so an index miss or a superset result is
// always safe — it costs performance, never correctness.
package query

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/dreamware/graphdb/internal/blobstore"
	"github.com/dreamware/graphdb/internal/cacheindex"
	"github.com/dreamware/graphdb/internal/codec"
	"github.com/dreamware/graphdb/internal/layout"
	"github.com/dreamware/graphdb/internal/model"
)

// Operator names the comparison a Filter leaf applies.
//
// OpEq, OpNeq, OpGt, OpGte, OpLt, and OpLte compare a single Value using
// cacheindex.CompareValues' type-aware ordering. OpContains matches a
// substring (string fields) or element membership (list fields). OpIn
// matches if the field's value equals any entry in Values.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
	OpIn       Operator = "in"
)

// Filter is either a leaf predicate (Field/Op/Value[s]) or a group
// (And/Or of sub-filters) — never both.
//
// Behavior:
//   - Field "type" and "id" address the entity's type and id directly;
//     any other field is looked up as a dotted property path via
//     model.SplitPath, with or without the "properties." prefix.
//   - Only a top-level conjunction of plain leaves (no nested groups, no
//     top-level "or") is eligible for index-accelerated plan selection;
//     anything else still evaluates correctly, just via a full scan.
//   - A missing field resolves as "not present": OpEq/OpGt/etc. fail to
//     match, OpNeq matches.
type Filter struct {
	Field  string
	Op     Operator
	Value  any
	Values []any

	And []Filter
	Or  []Filter
}

func (f Filter) isLeaf() bool { return len(f.And) == 0 && len(f.Or) == 0 }

// SortKey orders results by Field, ascending unless Desc is set.
// Multiple keys break ties left to right; a node missing Field sorts
// last regardless of Desc.
type SortKey struct {
	Field string
	Desc  bool
}

// Pagination slices the sorted result.
//
// Behavior:
//   - Offset is clamped to [0, total]; an offset past the end yields an
//     empty page rather than an error.
//   - Limit of zero means "use the planner's configured default";
//     Limit is always clamped to the planner's configured max,
//     regardless of what the caller requests.
type Pagination struct {
	Offset int
	Limit  int
}

// Request is the query input: a type scope, a filter tree, an optional
// sort, and pagination.
//
// Type may also be supplied as a top-level "type eq X" leaf in Filter
// for callers that build the filter tree directly from a user-facing
// query language — Request.Type takes precedence when both are
// present.
type Request struct {
	Type       string
	Filter     Filter
	Sort       []SortKey
	Pagination Pagination
}

// Result is the planner's output: the matching, sorted, paginated
// items, the total count after filtering but before pagination, and
// whether further pages remain.
//
// Total is computed from the post-filter, pre-pagination set, so a
// caller can page through a stable total even as Limit changes between
// requests; HasMore reports whether matching items remain after the
// returned page.
type Result struct {
	Items   []*model.Node
	Total   int
	HasMore bool
}

// Planner executes Requests against a cache/index store, falling back
// to the backend when no index covers the filter.
//
// Thread Safety:
// Safe for concurrent use; Planner holds no mutable state of its own
// beyond the immutable limits set at construction — all shared state
// lives in the backend and cache it was built with.
type Planner struct {
	backend      blobstore.Backend
	cache        *cacheindex.Store
	defaultLimit int
	maxLimit     int
}

// NewPlanner builds a Planner over backend and cache.
//
// Parameters:
//   - backend: the fallback source of truth for a full scan and for
//     resolving ids whose cache entry has been evicted.
//   - cache: the index store consulted first for plan selection.
//   - defaultLimit, maxLimit: Pagination.Limit defaults and ceiling;
//     both fall back to 100 and 1000 respectively when zero.
//
// Returns a ready-to-use Planner.
func NewPlanner(backend blobstore.Backend, cache *cacheindex.Store, defaultLimit, maxLimit int) *Planner {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	if maxLimit <= 0 {
		maxLimit = 1000
	}
	return &Planner{backend: backend, cache: cache, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Execute runs req, returning only entities canAccess admits.
//
// Behavior:
//   - Visibility is applied after resolving candidates, so an
//     index-covered query and a full scan return identical visible sets
//     for the same filter — the index never changes what's visible,
//     only how fast the candidate set is found.
//   - Sort is applied before pagination, and is stable: nodes tied on
//     every sort key keep their pre-sort relative order.
//
// Parameters:
//   - req: the type scope, filter, sort, and pagination to apply.
//   - canAccess: called once per filter-matching candidate; only nodes
//     it admits are counted toward Total and may appear in Items.
//
// Returns:
//   - A Result with the paginated, visible, sorted items, or a non-nil
//     error only if resolving candidates hits a backend failure.
//
// Thread Safety:
// Safe for concurrent use.
func (p *Planner) Execute(ctx context.Context, req Request, canAccess func(*model.Node) bool) (Result, error) {
	typ := req.Type
	if typ == "" {
		typ = extractTypeEq(req.Filter)
	}

	nodes, err := p.resolveCandidates(ctx, typ, req.Filter)
	if err != nil {
		return Result{}, err
	}

	matching := make([]*model.Node, 0, len(nodes))
	for _, n := range nodes {
		if !evalFilter(n, req.Filter) {
			continue
		}
		if !canAccess(n) {
			continue
		}
		matching = append(matching, n)
	}

	sortNodes(matching, req.Sort)

	total := len(matching)
	offset := req.Pagination.Offset
	if offset < 0 {
		offset = 0
	}
	limit := req.Pagination.Limit
	if limit <= 0 {
		limit = p.defaultLimit
	}
	if limit > p.maxLimit {
		limit = p.maxLimit
	}

	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	items := make([]*model.Node, end-start)
	copy(items, matching[start:end])

	return Result{Items: items, Total: total, HasMore: end < total}, nil
}

// resolveCandidates returns every node that might satisfy filter,
// choosing the cheapest covering index (compound, then range, then
// equality, then type, in that preference order) and falling back to a
// backend scan. The result may be a superset of the true match set —
// Execute re-applies the full filter before returning.
func (p *Planner) resolveCandidates(ctx context.Context, typ string, filter Filter) ([]*model.Node, error) {
	leaves := equalityAndComparisonLeaves(filter)

	if typ != "" {
		if allEqual(leaves) && len(leaves) > 0 {
			if ids, ok := p.compoundProbe(typ, leaves); ok {
				return p.resolveByIDs(ctx, ids)
			}
		}
		if len(leaves) == 1 && isComparison(leaves[0].Op) {
			if ids, ok := p.rangeProbe(typ, leaves[0]); ok {
				return p.resolveByIDs(ctx, ids)
			}
		}
		if len(leaves) == 1 && leaves[0].Op == OpEq {
			if ids, ok := p.cache.EqualityIDs(typ, model.SplitPath(leaves[0].Field), leaves[0].Value); ok {
				return p.resolveByIDs(ctx, ids)
			}
		}
		if len(leaves) == 0 {
			ids := p.cache.TypeIDs(typ)
			return p.resolveByIDs(ctx, ids)
		}
	}

	return p.scan(ctx, typ)
}

func (p *Planner) compoundProbe(typ string, leaves []Filter) ([]string, bool) {
	paths := make([][]string, len(leaves))
	values := make([]any, len(leaves))
	for i, leaf := range leaves {
		paths[i] = model.SplitPath(leaf.Field)
		values[i] = leaf.Value
	}
	return p.cache.CompoundIDs(typ, paths, values)
}

func (p *Planner) rangeProbe(typ string, leaf Filter) ([]string, bool) {
	path := model.SplitPath(leaf.Field)
	var min, max *any
	v := leaf.Value
	switch leaf.Op {
	case OpGt, OpGte:
		min = &v
	case OpLt, OpLte:
		max = &v
	}
	return p.cache.RangeIDs(typ, path, min, max)
}

// resolveByIDs fetches each id's Node, preferring the cache and
// falling back to the recorded shard location's backend blob when the
// id cache entry has been LRU-evicted but the index entry survives —
// index maintenance isn't tied to cache residency.
func (p *Planner) resolveByIDs(ctx context.Context, ids []string) ([]*model.Node, error) {
	out := make([]*model.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := p.cache.GetNode(id); ok {
			out = append(out, n)
			continue
		}
		loc, ok := p.cache.Location(id)
		if !ok {
			continue
		}
		n, err := p.fetchAndCache(ctx, loc.Type, loc.ShardPath, id)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// scan lists every node key under typ's subtree (or every node, if typ
// is unconstrained) and decodes each one directly — the full-scan
// fallback when no index covers the filter.
func (p *Planner) scan(ctx context.Context, typ string) ([]*model.Node, error) {
	prefix := "nodes/"
	if typ != "" {
		prefix = layout.NodeTypePrefix(typ)
	}

	it := p.backend.List(ctx, prefix)
	var out []*model.Node
	for {
		key, ok := it.Next()
		if !ok {
			break
		}
		nodeType, shardPath, id, ok := layout.ParseNodeKey(key)
		if !ok {
			continue
		}
		n, err := p.fetchAndCache(ctx, nodeType, shardPath, id)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, n)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Planner) fetchAndCache(ctx context.Context, typ, shardPath, id string) (*model.Node, error) {
	data, err := p.backend.Get(ctx, layout.NodeKey(typ, shardPath, id))
	if err != nil {
		return nil, err
	}
	n, err := codec.DecodeNode(data)
	if err != nil {
		return nil, err
	}
	p.cache.CacheNode(n, cacheindex.Location{Type: typ, ShardPath: shardPath})
	return n, nil
}

// extractTypeEq pulls a top-level "type eq X" leaf out of filter, for
// callers that fold the type scope into the filter tree itself rather
// than setting Request.Type.
func extractTypeEq(f Filter) string {
	if f.isLeaf() {
		if f.Field == "type" && f.Op == OpEq {
			if s, ok := f.Value.(string); ok {
				return s
			}
		}
		return ""
	}
	for _, leaf := range f.And {
		if leaf.isLeaf() && leaf.Field == "type" && leaf.Op == OpEq {
			if s, ok := leaf.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// equalityAndComparisonLeaves flattens a top-level conjunction of plain
// leaves (excluding the type leaf) — the shape the index probes cover.
// A filter with nested and/or groups below the top level, or a
// top-level "or", never matches here and falls through to a scan —
// still correct, just not index-accelerated.
func equalityAndComparisonLeaves(f Filter) []Filter {
	var leaves []Filter
	switch {
	case len(f.And) > 0:
		for _, leaf := range f.And {
			if !leaf.isLeaf() {
				return nil
			}
			if leaf.Field == "type" && leaf.Op == OpEq {
				continue
			}
			leaves = append(leaves, leaf)
		}
	case len(f.Or) > 0:
		return nil
	case f.isLeaf() && f.Field != "" && f.Field != "type":
		leaves = append(leaves, f)
	}
	return leaves
}

func allEqual(leaves []Filter) bool {
	for _, l := range leaves {
		if l.Op != OpEq {
			return false
		}
	}
	return true
}

func isComparison(op Operator) bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	default:
		return false
	}
}

func resolveField(n *model.Node, field string) (any, bool) {
	switch field {
	case "type":
		return n.Type, true
	case "id":
		return n.ID, true
	default:
		return n.Properties.Lookup(model.SplitPath(field))
	}
}

func evalFilter(n *model.Node, f Filter) bool {
	switch {
	case len(f.And) > 0:
		for _, sub := range f.And {
			if !evalFilter(n, sub) {
				return false
			}
		}
		return true
	case len(f.Or) > 0:
		for _, sub := range f.Or {
			if evalFilter(n, sub) {
				return true
			}
		}
		return false
	case f.Field == "" && f.Op == "":
		return true
	default:
		return evalLeaf(n, f)
	}
}

func evalLeaf(n *model.Node, f Filter) bool {
	got, ok := resolveField(n, f.Field)
	switch f.Op {
	case OpEq:
		return ok && cacheindex.CompareValues(got, f.Value) == 0
	case OpNeq:
		return !ok || cacheindex.CompareValues(got, f.Value) != 0
	case OpGt:
		return ok && cacheindex.CompareValues(got, f.Value) > 0
	case OpGte:
		return ok && cacheindex.CompareValues(got, f.Value) >= 0
	case OpLt:
		return ok && cacheindex.CompareValues(got, f.Value) < 0
	case OpLte:
		return ok && cacheindex.CompareValues(got, f.Value) <= 0
	case OpContains:
		return ok && containsMatch(got, f.Value)
	case OpIn:
		return ok && inMatch(got, f.Values)
	default:
		return false
	}
}

func containsMatch(got, want any) bool {
	switch g := got.(type) {
	case string:
		w, ok := want.(string)
		return ok && strings.Contains(g, w)
	case []any:
		for _, elem := range g {
			if cacheindex.CompareValues(elem, want) == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func inMatch(got any, values []any) bool {
	for _, v := range values {
		if cacheindex.CompareValues(got, v) == 0 {
			return true
		}
	}
	return false
}

// sortNodes stably sorts nodes by keys, treating an absent or
// incomparable field as sorting last regardless of direction.
func sortNodes(nodes []*model.Node, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		for _, key := range keys {
			va, oka := resolveField(a, key.Field)
			vb, okb := resolveField(b, key.Field)
			switch {
			case !oka && !okb:
				continue
			case !oka:
				return false
			case !okb:
				return true
			}
			c := cacheindex.CompareValues(va, vb)
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
