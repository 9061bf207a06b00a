package graphdb

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dreamware/graphdb/internal/blobstore"
	"github.com/dreamware/graphdb/internal/codec"
	"github.com/dreamware/graphdb/internal/layout"
	"github.com/dreamware/graphdb/internal/model"
	"github.com/dreamware/graphdb/internal/permission"
)

func tripleKey(from, to, typ string) string {
	return "rel:" + from + "\x00" + to + "\x00" + typ
}

func (e *Engine) relShardPath(t relTriple) (string, bool) {
	e.relMu.RLock()
	defer e.relMu.RUnlock()
	p, ok := e.relShards[t]
	return p, ok
}

func (e *Engine) recordRelShardPath(t relTriple, path string) {
	e.relMu.Lock()
	defer e.relMu.Unlock()
	e.relShards[t] = path
}

func (e *Engine) forgetRelShardPath(t relTriple) {
	e.relMu.Lock()
	defer e.relMu.Unlock()
	delete(e.relShards, t)
}

// CreateRelationship validates r, confirms both endpoints exist and are
// accessible to auth, sets version 1, and persists it.
//
// Behavior:
//   - Identity is the (From, To, Type) triple; at most one relationship
//     per triple exists. Creating again over an existing triple
//     overwrites it — there is no separate "already exists" error.
//   - Both endpoints must exist and be accessible to auth at creation
//     time; neither endpoint is re-checked afterward, so deleting an
//     endpoint later leaves a dangling relationship rather than
//     retroactively invalidating this one.
//   - Self-loops (From == To) are allowed unless r.Type is listed in the
//     engine's validate.Config.ForbidSelfLoops.
//
// Parameters:
//   - r: the relationship to create. r.From and r.To must reference
//     existing nodes auth can see.
//   - auth: gates both the endpoint-existence check and (via the
//     permission gate on each endpoint) visibility of those endpoints.
//
// Returns:
//   - The persisted Relationship (version 1) on success.
//   - ValidationError if r fails structural validation.
//   - NodeNotFoundError if either endpoint doesn't exist.
//   - PermissionDeniedError if either endpoint exists but auth can't see it.
//   - BackendError if the underlying Backend.Put fails.
//
// Thread Safety:
// Safe for concurrent use; a per-triple lock serializes this against
// any concurrent UpdateRelationship/DeleteRelationship on the same
// (from, to, type).
func (e *Engine) CreateRelationship(ctx context.Context, r *model.Relationship, auth model.AuthContext) (*model.Relationship, error) {
	if err := e.validator.Relationship(r); err != nil {
		e.log.Info("validation failed", zap.String("op", "createRelationship"), zap.Error(err))
		return nil, ValidationError(err.Error())
	}

	if _, err := e.requireAccessibleNode(ctx, r.From, auth); err != nil {
		return nil, err
	}
	if _, err := e.requireAccessibleNode(ctx, r.To, auth); err != nil {
		return nil, err
	}

	triple := relTriple{from: r.From, to: r.To, typ: r.Type}
	unlock := e.relLocks.Lock(tripleKey(r.From, r.To, r.Type))
	defer unlock()

	persisted := &model.Relationship{
		ID:          r.ID,
		From:        r.From,
		To:          r.To,
		Type:        r.Type,
		Properties:  r.Properties.Clone(),
		Permissions: r.Permissions,
		Version:     1,
	}

	shardPath := e.shard.RelationshipShard(r.From, r.To)
	data, err := codec.EncodeRelationship(persisted)
	if err != nil {
		return nil, ValidationError(err.Error())
	}
	key := layout.RelationshipKey(r.Type, shardPath, r.From, r.To)
	if err := e.backend.Put(ctx, key, data); err != nil {
		e.log.Warn("createRelationship backend put failed", zap.String("from", r.From), zap.String("to", r.To), zap.Error(err))
		return nil, BackendError(err)
	}

	e.recordRelShardPath(triple, shardPath)
	e.adjacency.Add(r.From, r.Type, r.To)
	e.log.Debug("createRelationship", zap.String("from", r.From), zap.String("to", r.To), zap.String("type", r.Type))
	return persisted, nil
}

// requireAccessibleNode is createRelationship's endpoint check:
// NodeNotFoundError if the node doesn't exist, PermissionDeniedError if
// it exists but auth can't see it. Unlike GetNode, this distinguishes
// the two, since creating a relationship against a forbidden endpoint
// must fail loudly rather than silently, so it can't use GetNode's
// absent-on-either shortcut.
func (e *Engine) requireAccessibleNode(ctx context.Context, id string, auth model.AuthContext) (*model.Node, error) {
	n, _, err := e.getNodeChecked(ctx, id, auth)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// GetRelationship loads the relationship identified by the (from, to,
// type) triple.
//
// Behavior:
//   - A missing relationship and an inaccessible one are both reported
//     the same way — (nil, nil) — matching GetNode's read semantics for
//     symmetry between the two entity kinds.
//   - The shard path recorded by a prior Create/Get/Update on this
//     triple is reused to avoid re-deriving it from the sharding
//     strategy; on a cold path it's computed fresh.
//
// Parameters:
//   - from, to, typ: the relationship's identity triple.
//   - auth: gates visibility, not existence.
//
// Returns:
//   - The Relationship if it exists and auth can access it.
//   - (nil, nil) if it doesn't exist, or exists but auth can't see it.
//   - A non-nil error only for a genuine backend failure.
//
// Thread Safety:
// Safe for concurrent use.
func (e *Engine) GetRelationship(ctx context.Context, from, to, typ string, auth model.AuthContext) (*model.Relationship, error) {
	r, _, err := e.fetchRelationship(ctx, from, to, typ)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, nil
		}
		return nil, BackendError(err)
	}
	if !permission.CanAccess(r.Permissions, auth) {
		return nil, nil
	}
	return r, nil
}

func (e *Engine) fetchRelationship(ctx context.Context, from, to, typ string) (*model.Relationship, string, error) {
	triple := relTriple{from: from, to: to, typ: typ}
	shardPath, known := e.relShardPath(triple)
	if !known {
		shardPath = e.shard.RelationshipShard(from, to)
	}
	key := layout.RelationshipKey(typ, shardPath, from, to)
	data, err := e.backend.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	r, err := codec.DecodeRelationship(data)
	if err != nil {
		return nil, "", err
	}
	e.recordRelShardPath(triple, shardPath)
	return r, shardPath, nil
}

func (e *Engine) loadRelationshipForWrite(ctx context.Context, from, to, typ string) (*model.Relationship, string, error) {
	r, shardPath, err := e.fetchRelationship(ctx, from, to, typ)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, "", RelationshipNotFoundError(from, to, typ)
		}
		return nil, "", BackendError(err)
	}
	return r, shardPath, nil
}

// UpdateRelationship loads the current relationship, checks permission
// and the optional optimistic-lock version, shallow-merges patch into
// its properties, and re-persists.
//
// Behavior:
//   - patch is merged the same way UpdateNode merges a node's
//     properties: a shallow, top-level-key replace, not a deep merge.
//   - If expectedVersion is non-nil and doesn't match the relationship's
//     current version, the update is rejected with
//     ConcurrentModificationError and nothing is written.
//   - From, To, and Type are immutable through this call — only
//     properties and version change.
//
// Parameters:
//   - from, to, typ: the relationship's identity triple. A missing
//     triple is RelationshipNotFoundError.
//   - patch: properties to shallow-merge into the current set.
//   - expectedVersion: optional optimistic-lock guard; nil skips the check.
//   - auth: must intersect the relationship's permission set (or be admin).
//
// Returns:
//   - The updated Relationship (new version) on success.
//   - RelationshipNotFoundError if the triple doesn't exist.
//   - PermissionDeniedError if auth can't access the relationship.
//   - ConcurrentModificationError if expectedVersion is stale.
//   - BackendError if the re-persist fails.
//
// Thread Safety:
// Safe for concurrent use; a per-triple lock serializes this against
// any concurrent CreateRelationship/UpdateRelationship/
// DeleteRelationship on the same triple.
func (e *Engine) UpdateRelationship(ctx context.Context, from, to, typ string, patch model.Properties, expectedVersion *int64, auth model.AuthContext) (*model.Relationship, error) {
	unlock := e.relLocks.Lock(tripleKey(from, to, typ))
	defer unlock()

	current, shardPath, err := e.loadRelationshipForWrite(ctx, from, to, typ)
	if err != nil {
		return nil, err
	}
	if !permission.CanAccess(current.Permissions, auth) {
		e.log.Info("permission denied", zap.String("op", string(permission.OpWrite)), zap.String("from", from), zap.String("to", to))
		return nil, PermissionDeniedError("relationship", from+"->"+to+":"+typ)
	}
	if expectedVersion != nil && *expectedVersion != current.Version {
		return nil, ConcurrentModificationError("relationship", from+"->"+to+":"+typ, *expectedVersion, current.Version)
	}

	updated := &model.Relationship{
		ID:          current.ID,
		From:        current.From,
		To:          current.To,
		Type:        current.Type,
		Properties:  current.Properties.Merge(patch),
		Permissions: current.Permissions,
		Version:     current.Version + 1,
	}

	data, err := codec.EncodeRelationship(updated)
	if err != nil {
		return nil, ValidationError(err.Error())
	}
	key := layout.RelationshipKey(typ, shardPath, from, to)
	if err := e.backend.Put(ctx, key, data); err != nil {
		e.log.Warn("updateRelationship backend put failed", zap.String("from", from), zap.String("to", to), zap.Error(err))
		return nil, BackendError(err)
	}
	e.log.Debug("updateRelationship", zap.String("from", from), zap.String("to", to), zap.Int64("version", updated.Version))
	return updated, nil
}

// DeleteRelationship loads the current relationship, checks permission,
// deletes the backend blob, and invalidates the (from,type) adjacency
// cache entry so a subsequent traversal re-scans instead of returning a
// stale neighbor set.
//
// Behavior:
//   - Unconditional once permission passes — there is no optimistic-lock
//     parameter, matching DeleteNode.
//   - Invalidates only the (from, type) OUT adjacency entry; a
//     traversal from the other endpoint (IN/BOTH direction) always
//     scans fresh and so needs no invalidation.
//
// Parameters:
//   - from, to, typ: the relationship's identity triple.
//   - auth: must intersect the relationship's permission set (or be admin).
//
// Returns:
//   - nil on success.
//   - RelationshipNotFoundError if the triple doesn't exist.
//   - PermissionDeniedError if auth can't access the relationship.
//   - BackendError if the backend delete fails.
//
// Thread Safety:
// Safe for concurrent use; a per-triple lock serializes this against
// any concurrent CreateRelationship/UpdateRelationship/
// DeleteRelationship on the same triple.
func (e *Engine) DeleteRelationship(ctx context.Context, from, to, typ string, auth model.AuthContext) error {
	unlock := e.relLocks.Lock(tripleKey(from, to, typ))
	defer unlock()

	current, shardPath, err := e.loadRelationshipForWrite(ctx, from, to, typ)
	if err != nil {
		return err
	}
	if !permission.CanAccess(current.Permissions, auth) {
		e.log.Info("permission denied", zap.String("op", string(permission.OpDelete)), zap.String("from", from), zap.String("to", to))
		return PermissionDeniedError("relationship", from+"->"+to+":"+typ)
	}

	key := layout.RelationshipKey(typ, shardPath, from, to)
	if err := e.backend.Delete(ctx, key); err != nil {
		e.log.Warn("deleteRelationship backend delete failed", zap.String("from", from), zap.String("to", to), zap.Error(err))
		return BackendError(err)
	}

	triple := relTriple{from: from, to: to, typ: typ}
	e.forgetRelShardPath(triple)
	e.adjacency.Invalidate(from, typ)
	e.log.Debug("deleteRelationship", zap.String("from", from), zap.String("to", to))
	return nil
}
