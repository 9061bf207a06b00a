package graphdb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamware/graphdb/internal/blobstore"
	"github.com/dreamware/graphdb/internal/cacheindex"
	"github.com/dreamware/graphdb/internal/codec"
	"github.com/dreamware/graphdb/internal/layout"
	"github.com/dreamware/graphdb/internal/model"
	"github.com/dreamware/graphdb/internal/permission"
)

// CreateNode validates n, assigns an id if absent, sets version 1, and
// persists it.
//
// Behavior:
//   - If n.ID is empty, a UUIDv4 is assigned.
//   - n.Type must be non-empty and n.Properties must hold only
//     serializable scalar/list/map values; otherwise a ValidationError
//     is returned and no backend write happens.
//   - The returned Node is always version 1, independent of what n.Version
//     was set to by the caller — create always starts a new version chain.
//   - On success, the node is written to the backend and the cache/index
//     store is updated before CreateNode returns, so an immediately
//     following GetNode sees it without a backend round trip.
//
// Parameters:
//   - n: the node to create. n.ID, if set, must match model.IDPattern.
//   - auth: accepted for API symmetry with the other CRUD operations but
//     unused here — creation has no existing entity to gate access
//     against.
//
// Returns:
//   - The persisted Node (with its assigned id and version 1) on success.
//   - ValidationError if n fails structural validation.
//   - BackendError if the underlying Backend.Put fails.
//
// Thread Safety:
// Safe for concurrent use. A per-id lock serializes CreateNode against
// any concurrent UpdateNode/DeleteNode on the same id, though two
// concurrent creates of the same caller-supplied id will both attempt
// the write — the backend's own overwrite semantics decide the winner,
// since creation has no prior version to optimistically lock against.
func (e *Engine) CreateNode(ctx context.Context, n *model.Node, _ model.AuthContext) (*model.Node, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if err := e.validator.Node(n); err != nil {
		e.log.Info("validation failed", zap.String("op", "createNode"), zap.Error(err))
		return nil, ValidationError(err.Error())
	}

	persisted := &model.Node{
		ID:          n.ID,
		Type:        n.Type,
		Properties:  n.Properties.Clone(),
		Permissions: n.Permissions,
		Version:     1,
	}

	unlock := e.nodeLocks.Lock(persisted.ID)
	defer unlock()

	shardPath := e.shard.ShardFor(persisted.ID, time.Time{})
	data, err := codec.EncodeNode(persisted)
	if err != nil {
		return nil, ValidationError(err.Error())
	}
	key := layout.NodeKey(persisted.Type, shardPath, persisted.ID)
	if err := e.backend.Put(ctx, key, data); err != nil {
		e.log.Warn("createNode backend put failed", zap.String("id", persisted.ID), zap.Error(err))
		return nil, BackendError(err)
	}

	e.cache.CacheNode(persisted, cacheindex.Location{Type: persisted.Type, ShardPath: shardPath})
	e.log.Debug("createNode", zap.String("id", persisted.ID), zap.String("type", persisted.Type), zap.Int64("version", persisted.Version))
	return persisted, nil
}

// GetNode looks up id, consulting the cache before falling back to the
// backend, and reports it only if auth can see it.
//
// Behavior:
//   - A cache hit is returned without touching the backend.
//   - A cache miss falls through to the backend, decodes the blob, and
//     populates the cache (and every configured index) before returning,
//     so a repeat GetNode for the same id is a cache hit.
//   - A missing node and an inaccessible node are both reported the
//     same way — (nil, nil) — so a caller can never use GetNode as an
//     existence oracle for an entity it isn't permitted to see.
//
// Parameters:
//   - id: the node id to look up.
//   - auth: the caller's permission set; gates visibility, not existence.
//
// Returns:
//   - The Node if it exists and auth can access it.
//   - (nil, nil) if the node doesn't exist, or exists but auth can't
//     see it — these two cases are indistinguishable by design.
//   - A non-nil error only for a genuine backend failure.
//
// Thread Safety:
// Safe for concurrent use; a read never blocks a concurrent read or a
// write to a different id.
func (e *Engine) GetNode(ctx context.Context, id string, auth model.AuthContext) (*model.Node, error) {
	n, _, err := e.getNodeChecked(ctx, id, auth)
	if err != nil {
		var gerr *Error
		if errors.As(err, &gerr) && gerr.Kind() == KindPermissionDenied {
			return nil, nil
		}
		if errors.As(err, &gerr) && gerr.Kind() == KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return n, nil
}

// getNodeChecked is GetNode's building block for callers that must
// distinguish "doesn't exist" from "exists but not accessible" —
// createRelationship's endpoint check needs exactly that distinction
// even though the public GetNode deliberately collapses it.
func (e *Engine) getNodeChecked(ctx context.Context, id string, auth model.AuthContext) (*model.Node, cacheindex.Location, error) {
	if n, ok := e.cache.GetNode(id); ok {
		loc, _ := e.cache.Location(id)
		if !permission.CanAccess(n.Permissions, auth) {
			e.log.Info("permission denied", zap.String("op", string(permission.OpRead)), zap.String("id", id))
			return nil, loc, PermissionDeniedError("node", id)
		}
		return n, loc, nil
	}

	n, loc, err := e.fetchNode(ctx, id)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, cacheindex.Location{}, NodeNotFoundError(id)
		}
		return nil, cacheindex.Location{}, BackendError(err)
	}

	e.cache.CacheNode(n, loc)
	if !permission.CanAccess(n.Permissions, auth) {
		e.log.Info("permission denied", zap.String("op", string(permission.OpRead)), zap.String("id", id))
		return nil, loc, PermissionDeniedError("node", id)
	}
	return n, loc, nil
}

// fetchNode resolves id to its Node and shard Location via the recorded
// cache location, falling back to a full scan of every node blob when
// the location isn't yet known — correct but expensive, which is why
// the location cache exists.
func (e *Engine) fetchNode(ctx context.Context, id string) (*model.Node, cacheindex.Location, error) {
	if loc, ok := e.cache.Location(id); ok {
		n, err := e.getNodeAt(ctx, loc.Type, loc.ShardPath, id)
		if err != nil {
			return nil, cacheindex.Location{}, err
		}
		return n, loc, nil
	}

	it := e.backend.List(ctx, "nodes/")
	for {
		key, ok := it.Next()
		if !ok {
			break
		}
		typ, shardPath, kid, ok := layout.ParseNodeKey(key)
		if !ok || kid != id {
			continue
		}
		n, err := e.getNodeAt(ctx, typ, shardPath, id)
		if err != nil {
			return nil, cacheindex.Location{}, err
		}
		return n, cacheindex.Location{Type: typ, ShardPath: shardPath}, nil
	}
	if err := it.Err(); err != nil {
		return nil, cacheindex.Location{}, err
	}
	return nil, cacheindex.Location{}, blobstore.ErrNotFound
}

func (e *Engine) getNodeAt(ctx context.Context, typ, shardPath, id string) (*model.Node, error) {
	data, err := e.backend.Get(ctx, layout.NodeKey(typ, shardPath, id))
	if err != nil {
		return nil, err
	}
	return codec.DecodeNode(data)
}

// loadNodeForWrite loads a node for update/delete, where a missing node
// is NodeNotFoundError rather than the absent-read semantics GetNode
// uses — the two must not be conflated.
func (e *Engine) loadNodeForWrite(ctx context.Context, id string) (*model.Node, cacheindex.Location, error) {
	if n, ok := e.cache.GetNode(id); ok {
		loc, _ := e.cache.Location(id)
		return n, loc, nil
	}
	n, loc, err := e.fetchNode(ctx, id)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, cacheindex.Location{}, NodeNotFoundError(id)
		}
		return nil, cacheindex.Location{}, BackendError(err)
	}
	return n, loc, nil
}

// UpdateNode loads the current node, checks permission and the optional
// optimistic-lock version, shallow-merges patch into its properties,
// increments the version, and re-persists.
//
// Behavior:
//   - patch is merged into the current properties one top-level key at
//     a time: a key present in patch replaces the current value for that
//     key entirely (shallow replace, not a deep merge); keys absent from
//     patch are left untouched.
//   - If expectedVersion is non-nil and doesn't match the node's current
//     version, the update is rejected with ConcurrentModificationError
//     and nothing is written — the caller is expected to re-read and
//     retry.
//   - The node's type, id, and permissions are immutable through this
//     call; only properties and version change.
//
// Parameters:
//   - id: the node to update. A missing node is NodeNotFoundError, not
//     the absent-read semantics GetNode uses.
//   - patch: properties to shallow-merge into the current set.
//   - expectedVersion: optional optimistic-lock guard; nil skips the
//     version check entirely.
//   - auth: must intersect the node's permission set (or be admin).
//
// Returns:
//   - The updated Node (new version) on success.
//   - NodeNotFoundError if id doesn't exist.
//   - PermissionDeniedError if auth can't access the node.
//   - ConcurrentModificationError if expectedVersion is stale.
//   - BackendError if the re-persist fails.
//
// Thread Safety:
// Safe for concurrent use. A per-id lock serializes the read-modify-
// version-write sequence against any other UpdateNode/DeleteNode on the
// same id, so two concurrent updates with the same expectedVersion never
// both succeed — exactly one wins and the other observes the new
// version and fails the check.
func (e *Engine) UpdateNode(ctx context.Context, id string, patch model.Properties, expectedVersion *int64, auth model.AuthContext) (*model.Node, error) {
	unlock := e.nodeLocks.Lock(id)
	defer unlock()

	current, loc, err := e.loadNodeForWrite(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanAccess(current.Permissions, auth) {
		e.log.Info("permission denied", zap.String("op", string(permission.OpWrite)), zap.String("id", id))
		return nil, PermissionDeniedError("node", id)
	}
	if expectedVersion != nil && *expectedVersion != current.Version {
		return nil, ConcurrentModificationError("node", id, *expectedVersion, current.Version)
	}

	updated := &model.Node{
		ID:          current.ID,
		Type:        current.Type,
		Properties:  current.Properties.Merge(patch),
		Permissions: current.Permissions,
		Version:     current.Version + 1,
	}

	data, err := codec.EncodeNode(updated)
	if err != nil {
		return nil, ValidationError(err.Error())
	}
	if err := e.backend.Put(ctx, layout.NodeKey(loc.Type, loc.ShardPath, id), data); err != nil {
		e.log.Warn("updateNode backend put failed", zap.String("id", id), zap.Error(err))
		return nil, BackendError(err)
	}

	e.cache.CacheNode(updated, loc)
	e.log.Debug("updateNode", zap.String("id", id), zap.Int64("version", updated.Version))
	return updated, nil
}

// DeleteNode loads the current node, checks permission, deletes the
// backend blob, and removes id from the cache and every secondary
// index.
//
// Behavior:
//   - Does not cascade to relationships: any relationship referencing
//     id as an endpoint is left in place. Traversal surfaces the missing
//     endpoint as a simply-absent node rather than failing outright.
//   - Deletion is unconditional once permission passes — there is no
//     optimistic-lock parameter for delete, since there's no later state
//     to compare a version against.
//
// Parameters:
//   - id: the node to delete.
//   - auth: must intersect the node's permission set (or be admin).
//
// Returns:
//   - nil on success.
//   - NodeNotFoundError if id doesn't exist.
//   - PermissionDeniedError if auth can't access the node.
//   - BackendError if the backend delete fails.
//
// Thread Safety:
// Safe for concurrent use; a per-id lock serializes this against any
// concurrent UpdateNode/DeleteNode/CreateNode on the same id.
func (e *Engine) DeleteNode(ctx context.Context, id string, auth model.AuthContext) error {
	unlock := e.nodeLocks.Lock(id)
	defer unlock()

	current, loc, err := e.loadNodeForWrite(ctx, id)
	if err != nil {
		return err
	}
	if !permission.CanAccess(current.Permissions, auth) {
		e.log.Info("permission denied", zap.String("op", string(permission.OpDelete)), zap.String("id", id))
		return PermissionDeniedError("node", id)
	}

	if err := e.backend.Delete(ctx, layout.NodeKey(loc.Type, loc.ShardPath, id)); err != nil {
		e.log.Warn("deleteNode backend delete failed", zap.String("id", id), zap.Error(err))
		return BackendError(err)
	}
	e.cache.RemoveNode(id)
	e.log.Debug("deleteNode", zap.String("id", id))
	return nil
}
