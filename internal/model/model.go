// Package model defines the entity types persisted by the graph engine:
// nodes, relationships, and the caller's authorization context.
package model

import (
	"regexp"
	"strings"
)

// IDPattern is the syntax a caller-supplied id must satisfy; a supplied id
// that doesn't match is rejected, and a UUIDv4 is generated only when no
// id is supplied. See validate.Validator for where this is enforced.
var IDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Properties is the dynamic property bag attached to every Node and
// Relationship. Values are JSON-compatible: string, float64, bool, nil,
// []any, or map[string]any (itself a nested Properties-shaped value).
type Properties map[string]any

// Clone returns a shallow copy of p. Mutating the returned map never
// affects p; mutating a nested map/slice value does, since the copy is
// shallow — callers that need full isolation should re-decode via codec.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge shallow-replaces keys in p with keys from patch, returning a new
// Properties. This implements the "merge patch.properties (shallow
// replace)" contract for updateNode/updateRelationship.
func (p Properties) Merge(patch Properties) Properties {
	out := p.Clone()
	if out == nil {
		out = make(Properties, len(patch))
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Lookup resolves a dotted property path such as "properties.a.b" — callers
// pass just the "a.b" suffix, since "properties." is a query-filter
// convention handled by the query package — against the bag, descending
// through nested maps. ok is false if any segment is missing or the value
// at an intermediate segment isn't a nested map.
func (p Properties) Lookup(path []string) (value any, ok bool) {
	var cur any = map[string]any(p)
	for _, seg := range path {
		m, isMap := cur.(map[string]any)
		if !isMap {
			if pm, isProps := cur.(Properties); isProps {
				m = map[string]any(pm)
			} else {
				return nil, false
			}
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SplitPath parses a dotted selector like "age" or "address.city" into its
// segments. Parsed once by cacheindex/query at configuration time rather
// than on every lookup.
func SplitPath(selector string) []string {
	selector = strings.TrimPrefix(selector, "properties.")
	if selector == "" {
		return nil
	}
	return strings.Split(selector, ".")
}

// Permissions is the set of capability tokens attached to an entity.
type Permissions map[string]struct{}

// NewPermissions builds a Permissions set from a list of tokens.
func NewPermissions(tokens ...string) Permissions {
	if len(tokens) == 0 {
		return nil
	}
	p := make(Permissions, len(tokens))
	for _, t := range tokens {
		p[t] = struct{}{}
	}
	return p
}

// Empty reports whether the permission set has no tokens, i.e. the
// entity is public.
func (p Permissions) Empty() bool { return len(p) == 0 }

// Intersects reports whether p and other share at least one token.
func (p Permissions) Intersects(other Permissions) bool {
	if len(p) == 0 || len(other) == 0 {
		return false
	}
	small, big := p, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for tok := range small {
		if _, ok := big[tok]; ok {
			return true
		}
	}
	return false
}

// Slice returns the tokens in p as a sorted-free slice, used by the codec.
func (p Permissions) Slice() []string {
	out := make([]string, 0, len(p))
	for tok := range p {
		out = append(out, tok)
	}
	return out
}

// Node is a typed entity in the graph.
type Node struct {
	Properties  Properties  `json:"properties"`
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Permissions Permissions `json:"permissions"`
	Version     int64       `json:"version"`
}

// Relationship is a typed directed edge between two nodes. Identity is the
// triple (From, To, Type); at most one relationship per triple exists.
type Relationship struct {
	Properties  Properties  `json:"properties"`
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Permissions Permissions `json:"permissions"`
	Version     int64       `json:"version"`
}

// Key returns the (from,to,type) identity triple used to address this
// relationship on the backend and in the adjacency index.
func (r *Relationship) Key() (from, to, typ string) { return r.From, r.To, r.Type }

// AuthContext carries the caller's authorization state into every engine
// operation. Resolution of the token set happens outside the engine.
type AuthContext struct {
	UserPermissions Permissions
	IsAdmin         bool
}

// CanAccess implements the visibility predicate: an entity is visible to
// ctx iff ctx is admin, the entity is public (no permissions declared),
// or the permission sets intersect.
func CanAccess(entityPerms Permissions, ctx AuthContext) bool {
	return ctx.IsAdmin || entityPerms.Empty() || entityPerms.Intersects(ctx.UserPermissions)
}

// Direction selects which endpoint of a relationship triggers a match
// during traversal. See Engine.QueryRelatedNodes and traversal.Candidates.
type Direction string

const (
	DirOut  Direction = "OUT"
	DirIn   Direction = "IN"
	DirBoth Direction = "BOTH"
)
