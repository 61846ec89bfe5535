// Package mongodb implements the persistence layer over MongoDB collections:
// users, workspaces, workspace_members, query_collections, query_items and
// query_item_revisions.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/querydeck/internal/domain/errs"
)

// HandleMongoError maps a MongoDB error to a domain error.
// Returns:
//   - nil when err == nil
//   - errs.ErrNotFound for mongo.ErrNoDocuments
//   - errs.ErrAlreadyExists for unique constraint violations
//   - a wrapped error otherwise
func HandleMongoError(err error, resourceType string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return errs.ErrNotFound
	}

	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrAlreadyExists
	}

	return fmt.Errorf("failed to operate on %s: %w", resourceType, err)
}

// UpsertOptions returns standard options for upsert writes.
func UpsertOptions() *options.UpdateOneOptionsBuilder {
	return options.UpdateOne().SetUpsert(true)
}

// CountFilter counts the documents matching filter.
func CountFilter(ctx context.Context, coll *mongo.Collection, filter bson.M) (int64, error) {
	return coll.CountDocuments(ctx, filter)
}

// distinctStrings collects the values of field from all documents matching
// filter. Used by the scope resolver to walk the tenancy graph.
func distinctStrings(
	ctx context.Context,
	coll *mongo.Collection,
	filter bson.M,
	field string,
) ([]string, error) {
	cursor, err := coll.Find(ctx, filter, options.Find().SetProjection(bson.M{field: 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	seen := make(map[string]struct{})
	var out []string
	for cursor.Next(ctx) {
		var doc bson.M
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue
		}
		value, ok := doc[field].(string)
		if !ok || value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}

	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
