package graphdb

import (
	"context"

	"go.uber.org/zap"

	"github.com/dreamware/graphdb/internal/model"
	"github.com/dreamware/graphdb/internal/traversal"
)

// QueryRelatedNodes implements traversal: it finds every relationship
// of relType touching from in the given direction (OUT by default),
// resolves the opposite endpoint through GetNode, and filters by
// accessibility. GetNode already returns absent for both a missing and
// an inaccessible endpoint, so a dangling endpoint (the node was
// deleted but the relationship wasn't) and an endpoint the caller can't
// see are both skipped the same way, without a separate permission
// check here.
func (e *Engine) QueryRelatedNodes(ctx context.Context, from, relType string, auth model.AuthContext, direction model.Direction) ([]*model.Node, error) {
	if direction == "" {
		direction = model.DirOut
	}

	candidates, err := traversal.Candidates(ctx, e.backend, e.adjacency, from, relType, direction)
	if err != nil {
		e.log.Warn("queryRelatedNodes backend scan failed", zap.String("from", from), zap.String("type", relType), zap.Error(err))
		return nil, BackendError(err)
	}

	var related []*model.Node
	for _, id := range candidates {
		n, err := e.GetNode(ctx, id, auth)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		related = append(related, n)
	}
	return related, nil
}
