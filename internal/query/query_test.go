package query

import (
	"context"
	"testing"

	"github.com/dreamware/graphdb/internal/blobstore"
	"github.com/dreamware/graphdb/internal/cacheindex"
	"github.com/dreamware/graphdb/internal/codec"
	"github.com/dreamware/graphdb/internal/layout"
	"github.com/dreamware/graphdb/internal/model"
)

func allowAll(*model.Node) bool { return true }

func seedUsers(t *testing.T, backend blobstore.Backend, cache *cacheindex.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		age := float64(20 + i)
		node := &model.Node{
			ID:         idFor(i),
			Type:       "user",
			Properties: model.Properties{"age": age, "city": "nyc"},
			Version:    1,
		}
		data, err := codec.EncodeNode(node)
		if err != nil {
			t.Fatal(err)
		}
		key := layout.NodeKey("user", "shard-0", node.ID)
		if err := backend.Put(context.Background(), key, data); err != nil {
			t.Fatal(err)
		}
		cache.CacheNode(node, cacheindex.Location{Type: "user", ShardPath: "shard-0"})
	}
}

func idFor(i int) string {
	return "u" + string(rune('0'+i))
}

func TestExecuteRangeQueryWithSortAndPagination(t *testing.T) {
	backend := blobstore.NewMemoryBackend()
	cache := cacheindex.New(cacheindex.Config{
		IndexSpec: cacheindex.IndexSpec{Range: map[string][]string{"user": {"age"}}},
	})
	seedUsers(t, backend, cache, 10) // ages 20..29

	p := NewPlanner(backend, cache, 100, 1000)

	req := Request{
		Type:   "user",
		Filter: Filter{Field: "age", Op: OpLte, Value: float64(25)},
	}
	res, err := p.Execute(context.Background(), req, allowAll)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 6 {
		t.Fatalf("expected 6 matching (ages 20..25), got %d", res.Total)
	}

	req.Sort = []SortKey{{Field: "properties.age", Desc: false}}
	req.Pagination = Pagination{Offset: 2, Limit: 2}
	res, err = p.Execute(context.Background(), req, allowAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.Items))
	}
	if res.Items[0].Properties["age"] != float64(22) || res.Items[1].Properties["age"] != float64(23) {
		t.Fatalf("expected ages 22,23, got %v,%v", res.Items[0].Properties["age"], res.Items[1].Properties["age"])
	}
	if !res.HasMore {
		t.Error("expected HasMore true with 6 total and offset 2 limit 2")
	}
}

func TestExecuteScanFallbackMatchesIndexProbe(t *testing.T) {
	backend := blobstore.NewMemoryBackend()
	indexed := cacheindex.New(cacheindex.Config{
		IndexSpec: cacheindex.IndexSpec{Equality: map[string][]string{"user": {"city"}}},
	})
	unindexed := cacheindex.New(cacheindex.Config{})
	seedUsers(t, backend, indexed, 5)
	seedUsers(t, backend, unindexed, 5)

	req := Request{Type: "user", Filter: Filter{Field: "city", Op: OpEq, Value: "nyc"}}

	withIndex, err := NewPlanner(backend, indexed, 100, 1000).Execute(context.Background(), req, allowAll)
	if err != nil {
		t.Fatal(err)
	}
	withoutIndex, err := NewPlanner(backend, unindexed, 100, 1000).Execute(context.Background(), req, allowAll)
	if err != nil {
		t.Fatal(err)
	}

	if withIndex.Total != withoutIndex.Total {
		t.Fatalf("expected matching totals, got %d (index) vs %d (scan)", withIndex.Total, withoutIndex.Total)
	}
}

func TestExecuteAppliesPermissionFilter(t *testing.T) {
	backend := blobstore.NewMemoryBackend()
	cache := cacheindex.New(cacheindex.Config{})
	n := &model.Node{ID: "secret", Type: "user", Permissions: model.NewPermissions("admin"), Version: 1}
	data, _ := codec.EncodeNode(n)
	backend.Put(context.Background(), layout.NodeKey("user", "shard-0", "secret"), data)
	cache.CacheNode(n, cacheindex.Location{Type: "user", ShardPath: "shard-0"})

	denyAll := func(*model.Node) bool { return false }
	res, err := NewPlanner(backend, cache, 100, 1000).Execute(context.Background(), Request{Type: "user"}, denyAll)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 {
		t.Fatalf("expected permission filter to exclude the node, got total %d", res.Total)
	}
}

func TestExecuteClampsLimitToMax(t *testing.T) {
	backend := blobstore.NewMemoryBackend()
	cache := cacheindex.New(cacheindex.Config{})
	seedUsers(t, backend, cache, 5)

	p := NewPlanner(backend, cache, 100, 3)
	res, err := p.Execute(context.Background(), Request{Type: "user", Pagination: Pagination{Limit: 1000}}, allowAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 3 {
		t.Fatalf("expected clamped limit of 3, got %d items", len(res.Items))
	}
}
