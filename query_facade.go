package graphdb

import (
	"context"

	"github.com/dreamware/graphdb/internal/model"
	"github.com/dreamware/graphdb/internal/permission"
	"github.com/dreamware/graphdb/internal/query"
)

// Query runs req through the query planner, returning only nodes auth
// can see. Re-exporting query.Request and query.Result would just
// rename them — callers import internal/query directly, same as they
// import internal/model for AuthContext and Direction.
func (e *Engine) Query(ctx context.Context, req query.Request, auth model.AuthContext) (query.Result, error) {
	return e.planner.Execute(ctx, req, func(n *model.Node) bool {
		return permission.CanAccess(n.Permissions, auth)
	})
}
