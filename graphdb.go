// Package graphdb is the public façade for the storage-and-query engine:
// it wires the sharding strategy, blob backend, codec, cache/index store,
// permission gate, validator, query planner, and traversal index
// (internal/*) into the single Engine type callers construct and call
// CRUD, query, and traversal operations on.
//
// Architecture:
//
// Every call into Engine follows the same shape: validate, consult the
// cache/index store, fall through to the backend on a miss, apply the
// permission gate, and (for writes) bump the version and re-persist
// before the cache/index is updated. The package never talks to a
// blob backend directly except through the blobstore.Backend interface,
// so the same Engine runs unmodified over the in-memory, filesystem, or
// S3 backend in internal/blobstore.
//
// The engine owns no global state: every dependency is supplied to New
// via Config and a blobstore.Backend.
//
// Example usage:
//
//	engine := graphdb.New(blobstore.NewMemoryBackend(), graphdb.Config{})
//	node, err := engine.CreateNode(ctx, &model.Node{
//	    Type:       "user",
//	    Properties: model.Properties{"name": "Alice"},
//	}, model.AuthContext{IsAdmin: true})
package graphdb

import (
	"sync"

	"github.com/dreamware/graphdb/internal/blobstore"
	"github.com/dreamware/graphdb/internal/cacheindex"
	"github.com/dreamware/graphdb/internal/query"
	"github.com/dreamware/graphdb/internal/shard"
	"github.com/dreamware/graphdb/internal/traversal"
	"github.com/dreamware/graphdb/internal/validate"
	"go.uber.org/zap"
)

// Config declares the engine-wide settings a caller supplies to New:
// which sharding strategy to place entities with, the validation
// policy applied before every write, which property paths and compound
// groups get secondary indexes, and the cache/query tuning knobs.
//
// Zero-valued fields resolve to the same defaults their owning
// sub-package documents (shard.Config, cacheindex.Config, and so on):
// a caller can build a usable Config by setting only the fields that
// matter to it and leaving the rest at their zero value.
type Config struct {
	Shard    shard.Config
	Validate validate.Config
	Index    cacheindex.IndexSpec

	// CacheCapacity bounds the id→Node LRU cache; 10000 if zero.
	CacheCapacity int

	// DefaultQueryLimit and MaxQueryLimit bound Query pagination;
	// 100 and 1000 respectively if zero.
	DefaultQueryLimit int
	MaxQueryLimit     int

	// Logger receives structured logs for every mutating operation
	// (Debug), permission/validation failures (Info), and backend
	// errors (Warn). A no-op logger is used if nil, so the engine
	// itself never reaches for a process-wide default.
	Logger *zap.Logger
}

// Engine is the storage-and-query engine: CRUD, the query planner, and
// traversal, orchestrating the sharding, blob storage, cache/index, and
// validation layers underneath.
//
// Concurrency model:
//   - Reads and writes to different entity ids/triples proceed without
//     blocking one another.
//   - Writes to the same node id or relationship triple are serialized
//     by a per-key mutex (nodeLocks/relLocks), so two concurrent
//     UpdateNode calls on the same id never race on the read-modify-
//     version-write sequence — the loser observes the winner's new
//     version and fails optimistic locking instead of corrupting state.
//   - The cache/index Store and the relationship shard-path map each
//     carry their own internal locking; Engine never holds more than
//     one lock at a time across a backend I/O boundary.
//
// An Engine holds no process-wide mutable state: every collaborator is
// constructed from the Config and Backend passed to New.
type Engine struct {
	backend   blobstore.Backend
	shard     *shard.Strategy
	cache     *cacheindex.Store
	validator *validate.Validator
	planner   *query.Planner
	adjacency *traversal.AdjacencyIndex
	log       *zap.Logger

	nodeLocks *keyLocks
	relLocks  *keyLocks

	relMu     sync.RWMutex
	relShards map[relTriple]string
}

type relTriple struct{ from, to, typ string }

// New constructs an Engine over backend using cfg, building the
// sharding strategy, validator, cache/index store, query planner, and
// adjacency index from cfg and wiring them together.
//
// Parameters:
//   - backend: the only required collaborator. The engine never
//     resolves its own credentials, endpoint, or bucket — the caller
//     builds backend (memory, filesystem, or S3) and hands it in
//     already configured.
//   - cfg: engine-wide settings; zero-valued fields take the defaults
//     documented on Config and its sub-package Config types.
//
// Returns:
//   - A ready-to-use Engine. No further setup call is required before
//     CreateNode/GetNode/Query/QueryRelatedNodes can be called.
//
// Example:
//
//	backend := blobstore.NewMemoryBackend()
//	engine := graphdb.New(backend, graphdb.Config{
//	    Shard: shard.Config{Strategy: shard.StrategyHash},
//	})
func New(backend blobstore.Backend, cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cache := cacheindex.New(cacheindex.Config{
		IndexSpec:     cfg.Index,
		CacheCapacity: cfg.CacheCapacity,
	})

	e := &Engine{
		backend:   backend,
		shard:     shard.New(cfg.Shard),
		cache:     cache,
		validator: validate.New(cfg.Validate),
		adjacency: traversal.NewAdjacencyIndex(),
		log:       log,
		nodeLocks: newKeyLocks(),
		relLocks:  newKeyLocks(),
		relShards: make(map[relTriple]string),
	}
	e.planner = query.NewPlanner(backend, cache, cfg.DefaultQueryLimit, cfg.MaxQueryLimit)
	return e
}

// StartBatch opens a cache/index batch over the engine's Store.
//
// Behavior:
//   - Mutations staged through the returned Batch are visible only to
//     that Batch's own reads until Commit is called.
//   - Every other caller — including the Engine's own CRUD operations —
//     keeps seeing the last committed state until Commit lands.
//   - A Batch that's discarded without Commit leaves the Store
//     untouched.
//
// Bulk importers use this to stage many CacheNode calls and apply them
// together on Commit. Commit applies the staged mutations one at a time,
// so other readers can see a partially-applied batch while it runs.
//
// Thread Safety:
// The returned Batch is not safe for concurrent use by multiple
// goroutines; it is a single-writer accumulation buffer.
func (e *Engine) StartBatch() *cacheindex.Batch {
	return e.cache.StartBatch()
}
