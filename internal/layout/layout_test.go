package layout

import "testing"

func TestNodeKeyRoundTripsViaParseNodeKey(t *testing.T) {
	key := NodeKey("user", "shard-3/shard-1", "u-123")
	typ, shardPath, id, ok := ParseNodeKey(key)
	if !ok {
		t.Fatalf("expected ParseNodeKey to accept %q", key)
	}
	if typ != "user" || shardPath != "shard-3/shard-1" || id != "u-123" {
		t.Errorf("got (%q, %q, %q), want (user, shard-3/shard-1, u-123)", typ, shardPath, id)
	}
}

func TestPrefixesAreStable(t *testing.T) {
	if NodeTypePrefix("user") != "nodes/user/" {
		t.Errorf("unexpected node type prefix: %q", NodeTypePrefix("user"))
	}
	if RelationshipTypePrefix("FOLLOWS") != "relationships/FOLLOWS/" {
		t.Errorf("unexpected relationship type prefix: %q", RelationshipTypePrefix("FOLLOWS"))
	}
}

func TestRelationshipKeyIncludesBothEndpoints(t *testing.T) {
	key := RelationshipKey("FOLLOWS", "shard-0", "u1", "u2")
	want := "relationships/FOLLOWS/shard-0/u1__u2.json"
	if key != want {
		t.Errorf("expected %q, got %q", want, key)
	}
}
