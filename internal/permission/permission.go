// Package permission implements the pure access predicate: a function
// of (entity, AuthContext) with no side effects and no backend access of
// its own. The engine calls it after every read.
package permission

import "github.com/dreamware/graphdb/internal/model"

// Op names the operation being gated, used only for logging/diagnostics
// by the engine — the predicate itself doesn't vary by operation.
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpDelete Op = "delete"
)

// CanAccess reports whether ctx may access an entity with the given
// permission set:
//
//	ctx.IsAdmin OR entity.permissions is empty (public) OR the two
//	permission sets intersect.
func CanAccess(entityPerms model.Permissions, ctx model.AuthContext) bool {
	return model.CanAccess(entityPerms, ctx)
}
