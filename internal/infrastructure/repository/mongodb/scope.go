package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lllypuk/querydeck/internal/domain/query"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// scopeResolver compiles an access scope into a query item filter by walking
// the tenancy graph: user -> workspaces (owned, and joined when the scope
// allows members) -> collections. The result is an $in filter over
// collection ids, so every item query stays a single-collection read.
type scopeResolver struct {
	workspaces  *mongo.Collection
	members     *mongo.Collection
	collections *mongo.Collection
}

func newScopeResolver(db *mongo.Database) *scopeResolver {
	return &scopeResolver{
		workspaces:  db.Collection("workspaces"),
		members:     db.Collection("workspace_members"),
		collections: db.Collection("query_collections"),
	}
}

// workspaceIDs returns the ids of every workspace userID can reach under
// scope: owned workspaces always, joined workspaces only for
// ScopeOwnerOrMember.
func (s *scopeResolver) workspaceIDs(
	ctx context.Context,
	scope query.AccessScope,
	userID uuid.UUID,
) ([]string, error) {
	ids, err := distinctStrings(ctx, s.workspaces, bson.M{"owner_id": userID.String()}, "workspace_id")
	if err != nil {
		return nil, fmt.Errorf("resolve owned workspaces: %w", err)
	}

	if scope == query.ScopeOwnerOnly {
		return ids, nil
	}

	joined, err := distinctStrings(ctx, s.members, bson.M{"user_id": userID.String()}, "workspace_id")
	if err != nil {
		return nil, fmt.Errorf("resolve joined workspaces: %w", err)
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for _, id := range joined {
		if _, dup := seen[id]; !dup {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// itemFilter returns the query_items filter fragment restricting a read or
// bulk write to the collections reachable under scope. An unreachable user
// yields an $in over the empty set, which matches nothing.
func (s *scopeResolver) itemFilter(
	ctx context.Context,
	scope query.AccessScope,
	userID uuid.UUID,
) (bson.M, error) {
	wsIDs, err := s.workspaceIDs(ctx, scope, userID)
	if err != nil {
		return nil, err
	}

	colIDs := []string{}
	if len(wsIDs) > 0 {
		colIDs, err = distinctStrings(ctx, s.collections,
			bson.M{"workspace_id": bson.M{"$in": wsIDs}}, "collection_id")
		if err != nil {
			return nil, fmt.Errorf("resolve collections: %w", err)
		}
		if colIDs == nil {
			colIDs = []string{}
		}
	}

	return bson.M{"collection_id": bson.M{"$in": colIDs}}, nil
}
