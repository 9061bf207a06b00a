// Package layout centralizes the Backend key-space conventions so the
// storage engine, query planner, and traversal package all address the
// same physical keys without importing one another: nodes live under
// "nodes/{type}/{shardPath}/{id}.json", relationships under
// "relationships/{type}/{shardPath}/{from}__{to}.json".
package layout

import "strings"

// NodeTypePrefix is the key prefix covering every node of type t,
// regardless of shard — used to narrow a backend scan or list call to a
// single type's subtree.
func NodeTypePrefix(typ string) string {
	return "nodes/" + typ + "/"
}

// NodeKey is the full key for a node's blob.
func NodeKey(typ, shardPath, id string) string {
	return NodeTypePrefix(typ) + shardPath + "/" + id + ".json"
}

// RelationshipTypePrefix is the key prefix covering every relationship
// of type t.
func RelationshipTypePrefix(typ string) string {
	return "relationships/" + typ + "/"
}

// RelationshipKey is the full key for a relationship's blob, addressed
// by its (from, to, type) identity triple.
func RelationshipKey(typ, shardPath, from, to string) string {
	return RelationshipTypePrefix(typ) + shardPath + "/" + from + "__" + to + ".json"
}

// ParseNodeKey decomposes a key of the form
// "nodes/{type}/{shardPath}/{id}.json" back into its parts. ok is false
// if key doesn't have that shape — used by the query planner's full
// scan path to recover a node's shard location from the key a List
// call returned, without re-deriving it from the sharding strategy.
func ParseNodeKey(key string) (typ, shardPath, id string, ok bool) {
	const prefix = "nodes/"
	if !strings.HasPrefix(key, prefix) {
		return "", "", "", false
	}
	rest := strings.TrimPrefix(key, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", "", "", false
	}
	typ = parts[0]
	tail := parts[1]
	i := strings.LastIndex(tail, "/")
	if i < 0 {
		return "", "", "", false
	}
	shardPath = tail[:i]
	id = strings.TrimSuffix(tail[i+1:], ".json")
	if id == "" {
		return "", "", "", false
	}
	return typ, shardPath, id, true
}
