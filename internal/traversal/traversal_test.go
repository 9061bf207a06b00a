package traversal

import (
	"context"
	"sort"
	"testing"

	"github.com/dreamware/graphdb/internal/blobstore"
	"github.com/dreamware/graphdb/internal/codec"
	"github.com/dreamware/graphdb/internal/layout"
	"github.com/dreamware/graphdb/internal/model"
)

func seedRelationship(t *testing.T, backend blobstore.Backend, from, to, typ string) {
	t.Helper()
	r := &model.Relationship{From: from, To: to, Type: typ, Version: 1}
	data, err := codec.EncodeRelationship(r)
	if err != nil {
		t.Fatal(err)
	}
	key := layout.RelationshipKey(typ, "shard-0", from, to)
	if err := backend.Put(context.Background(), key, data); err != nil {
		t.Fatal(err)
	}
}

func TestCandidatesOutDirection(t *testing.T) {
	backend := blobstore.NewMemoryBackend()
	seedRelationship(t, backend, "u", "v", "FOLLOWS")
	seedRelationship(t, backend, "u", "w", "FOLLOWS")
	adj := NewAdjacencyIndex()

	ids, err := Candidates(context.Background(), backend, adj, "u", "FOLLOWS", model.DirOut)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "v" || ids[1] != "w" {
		t.Fatalf("expected [v w], got %v", ids)
	}

	// The first traversal should have populated the adjacency cache.
	cached, ok := adj.Lookup("u", "FOLLOWS")
	if !ok {
		t.Fatal("expected adjacency cache to be populated after first traversal")
	}
	sort.Strings(cached)
	if len(cached) != 2 {
		t.Fatalf("expected cached set of 2, got %v", cached)
	}
}

func TestCandidatesInDirection(t *testing.T) {
	backend := blobstore.NewMemoryBackend()
	seedRelationship(t, backend, "u", "v", "FOLLOWS")
	adj := NewAdjacencyIndex()

	ids, err := Candidates(context.Background(), backend, adj, "v", "FOLLOWS", model.DirIn)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "u" {
		t.Fatalf("expected [u], got %v", ids)
	}
}

func TestCandidatesBothDirection(t *testing.T) {
	backend := blobstore.NewMemoryBackend()
	seedRelationship(t, backend, "u", "v", "FOLLOWS")
	seedRelationship(t, backend, "w", "u", "FOLLOWS")
	adj := NewAdjacencyIndex()

	ids, err := Candidates(context.Background(), backend, adj, "u", "FOLLOWS", model.DirBoth)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "v" || ids[1] != "w" {
		t.Fatalf("expected [v w], got %v", ids)
	}
}

func TestAddAndInvalidate(t *testing.T) {
	adj := NewAdjacencyIndex()

	t.Run("add before populate is a no-op", func(t *testing.T) {
		adj.Add("u", "FOLLOWS", "x")
		if _, ok := adj.Lookup("u", "FOLLOWS"); ok {
			t.Fatal("expected no cached entry before first populate")
		}
	})

	t.Run("add after populate extends the set", func(t *testing.T) {
		adj.Populate("u", "FOLLOWS", []string{"v"})
		adj.Add("u", "FOLLOWS", "x")
		ids, ok := adj.Lookup("u", "FOLLOWS")
		if !ok || len(ids) != 2 {
			t.Fatalf("expected 2 cached ids, got %v", ids)
		}
	})

	t.Run("invalidate clears the entry", func(t *testing.T) {
		adj.Invalidate("u", "FOLLOWS")
		if _, ok := adj.Lookup("u", "FOLLOWS"); ok {
			t.Fatal("expected entry to be gone after invalidate")
		}
	})
}
