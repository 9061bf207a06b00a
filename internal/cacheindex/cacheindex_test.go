package cacheindex

import (
	"testing"

	"github.com/dreamware/graphdb/internal/model"
)

func newTestStore() *Store {
	return New(Config{
		CacheCapacity: 2,
		IndexSpec: IndexSpec{
			Equality: map[string][]string{"user": {"city"}},
			Range:    map[string][]string{"user": {"age"}},
			Compound: map[string][][]string{"user": {{"city", "age"}}},
		},
	})
}

func userNode(id, city string, age float64) *model.Node {
	return &model.Node{
		ID:   id,
		Type: "user",
		Properties: model.Properties{
			"city": city,
			"age":  age,
		},
	}
}

func TestCacheNodeAndGetNode(t *testing.T) {
	s := newTestStore()

	t.Run("round trip", func(t *testing.T) {
		n := userNode("u1", "nyc", 30)
		s.CacheNode(n, Location{Type: "user", ShardPath: "shards/0"})

		got, ok := s.GetNode("u1")
		if !ok {
			t.Fatal("expected node to be cached")
		}
		if got.Properties["city"] != "nyc" {
			t.Fatalf("expected city nyc, got %v", got.Properties["city"])
		}
	})

	t.Run("miss reports false", func(t *testing.T) {
		if _, ok := s.GetNode("missing"); ok {
			t.Fatal("expected miss for uncached id")
		}
	})

	t.Run("returned node is a copy", func(t *testing.T) {
		n := userNode("u2", "sf", 25)
		s.CacheNode(n, Location{Type: "user"})
		got, _ := s.GetNode("u2")
		got.Properties["city"] = "mutated"

		got2, _ := s.GetNode("u2")
		if got2.Properties["city"] != "sf" {
			t.Fatalf("mutation of returned node leaked into cache: %v", got2.Properties["city"])
		}
	})
}

func TestLRUEviction(t *testing.T) {
	s := newTestStore() // capacity 2

	s.CacheNode(userNode("a", "nyc", 1), Location{Type: "user"})
	s.CacheNode(userNode("b", "nyc", 2), Location{Type: "user"})
	s.CacheNode(userNode("c", "nyc", 3), Location{Type: "user"})

	if _, ok := s.GetNode("a"); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if _, ok := s.GetNode("b"); !ok {
		t.Fatal("expected b to survive eviction")
	}
	if _, ok := s.GetNode("c"); !ok {
		t.Fatal("expected c to survive eviction")
	}

	t.Run("eviction does not drop secondary index entries", func(t *testing.T) {
		ids := s.TypeIDs("user")
		found := false
		for _, id := range ids {
			if id == "a" {
				found = true
			}
		}
		if !found {
			t.Fatal("expected evicted id to remain in the type index until RemoveNode")
		}
	})
}

func TestRemoveNode(t *testing.T) {
	s := newTestStore()
	n := userNode("u1", "nyc", 30)
	s.CacheNode(n, Location{Type: "user"})

	s.RemoveNode("u1")

	if _, ok := s.GetNode("u1"); ok {
		t.Fatal("expected node to be gone from cache")
	}
	if _, ok := s.Location("u1"); ok {
		t.Fatal("expected location to be cleared")
	}
	ids, _ := s.EqualityIDs("user", []string{"city"}, "nyc")
	for _, id := range ids {
		if id == "u1" {
			t.Fatal("expected equality index entry to be removed")
		}
	}
}

func TestTypeIndex(t *testing.T) {
	s := newTestStore()
	s.CacheNode(userNode("u1", "nyc", 30), Location{Type: "user"})
	s.CacheNode(userNode("u2", "sf", 40), Location{Type: "user"})

	ids := s.TypeIDs("user")
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
}

func TestEqualityIndex(t *testing.T) {
	s := newTestStore()
	s.CacheNode(userNode("u1", "nyc", 30), Location{Type: "user"})
	s.CacheNode(userNode("u2", "nyc", 40), Location{Type: "user"})
	s.CacheNode(userNode("u3", "sf", 50), Location{Type: "user"})

	t.Run("matches indexed path", func(t *testing.T) {
		ids, ok := s.EqualityIDs("user", []string{"city"}, "nyc")
		if !ok {
			t.Fatal("expected city to be indexed")
		}
		if len(ids) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(ids))
		}
	})

	t.Run("unindexed path reports not ok", func(t *testing.T) {
		_, ok := s.EqualityIDs("user", []string{"nickname"}, "nyc")
		if ok {
			t.Fatal("expected unindexed path to report not ok")
		}
	})
}

func TestRangeIndex(t *testing.T) {
	s := newTestStore()
	s.CacheNode(userNode("u1", "nyc", 20), Location{Type: "user"})
	s.CacheNode(userNode("u2", "nyc", 30), Location{Type: "user"})
	s.CacheNode(userNode("u3", "nyc", 40), Location{Type: "user"})

	t.Run("bounded window", func(t *testing.T) {
		var min, max any = float64(25), float64(35)
		ids, ok := s.RangeIDs("user", []string{"age"}, &min, &max)
		if !ok {
			t.Fatal("expected age to be range-indexed")
		}
		if len(ids) != 1 || ids[0] != "u2" {
			t.Fatalf("expected only u2 in window, got %v", ids)
		}
	})

	t.Run("unbounded above", func(t *testing.T) {
		var min any = float64(30)
		ids, ok := s.RangeIDs("user", []string{"age"}, &min, nil)
		if !ok {
			t.Fatal("expected ok")
		}
		if len(ids) != 2 {
			t.Fatalf("expected 2 matches for age >= 30, got %d", len(ids))
		}
	})

	t.Run("update re-sorts range entry", func(t *testing.T) {
		s.CacheNode(userNode("u1", "nyc", 100), Location{Type: "user"})
		var min any = float64(90)
		ids, _ := s.RangeIDs("user", []string{"age"}, &min, nil)
		found := false
		for _, id := range ids {
			if id == "u1" {
				found = true
			}
		}
		if !found {
			t.Fatal("expected re-indexed value to reflect the update")
		}
	})
}

func TestCompoundIndex(t *testing.T) {
	s := newTestStore()
	s.CacheNode(userNode("u1", "nyc", 30), Location{Type: "user"})
	s.CacheNode(userNode("u2", "nyc", 40), Location{Type: "user"})

	t.Run("matches declared group regardless of path order", func(t *testing.T) {
		ids, ok := s.CompoundIDs("user", [][]string{{"age"}, {"city"}}, []any{float64(30), "nyc"})
		if !ok {
			t.Fatal("expected compound group to match")
		}
		if len(ids) != 1 || ids[0] != "u1" {
			t.Fatalf("expected only u1, got %v", ids)
		}
	})

	t.Run("undeclared group reports not ok", func(t *testing.T) {
		_, ok := s.CompoundIDs("user", [][]string{{"city"}}, []any{"nyc"})
		if ok {
			t.Fatal("expected a partial group to not match the declared compound index")
		}
	})
}

func TestBatch(t *testing.T) {
	s := newTestStore()
	s.CacheNode(userNode("u1", "nyc", 30), Location{Type: "user"})

	t.Run("uncommitted writes are visible only through the batch handle", func(t *testing.T) {
		b := s.StartBatch()
		b.CacheNode(userNode("u2", "sf", 25), Location{Type: "user"})

		if _, ok := b.GetNode("u2"); !ok {
			t.Fatal("expected batch to see its own staged write")
		}
		if _, ok := s.GetNode("u2"); ok {
			t.Fatal("expected store to not see uncommitted batch write")
		}
	})

	t.Run("commit applies staged writes to the store", func(t *testing.T) {
		b := s.StartBatch()
		b.CacheNode(userNode("u3", "la", 22), Location{Type: "user"})
		b.Commit()

		if _, ok := s.GetNode("u3"); !ok {
			t.Fatal("expected committed write to be visible on the store")
		}
	})

	t.Run("discard drops staged writes", func(t *testing.T) {
		b := s.StartBatch()
		b.CacheNode(userNode("u4", "la", 22), Location{Type: "user"})
		b.Discard()
		b.Commit()

		if _, ok := s.GetNode("u4"); ok {
			t.Fatal("expected discarded write to never reach the store")
		}
	})

	t.Run("staged delete masks an existing read through the batch", func(t *testing.T) {
		b := s.StartBatch()
		b.RemoveNode("u1")

		if _, ok := b.GetNode("u1"); ok {
			t.Fatal("expected tombstoned id to read as absent through the batch")
		}
		if _, ok := s.GetNode("u1"); !ok {
			t.Fatal("expected store to still see u1 before commit")
		}

		b.Commit()
		if _, ok := s.GetNode("u1"); ok {
			t.Fatal("expected committed delete to remove u1 from the store")
		}
	})
}
