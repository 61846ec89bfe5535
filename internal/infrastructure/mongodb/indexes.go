// Package mongodb provides MongoDB infrastructure components including index management.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names as constants for consistency.
const (
	CollectionUsers       = "users"
	CollectionWorkspaces  = "workspaces"
	CollectionMembers     = "workspace_members"
	CollectionCollections = "query_collections"
	CollectionQueryItems  = "query_items"
	CollectionRevisions   = "query_item_revisions"
)

// IndexDefinition describes a MongoDB index to be created.
type IndexDefinition struct {
	Collection string
	Keys       bson.D
	Options    *options.IndexOptionsBuilder
}

// CreateAllIndexes creates all necessary indexes for the application.
// This function is idempotent - calling it multiple times is safe.
func CreateAllIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := GetAllIndexDefinitions()

	for _, idx := range indexes {
		coll := db.Collection(idx.Collection)
		model := mongo.IndexModel{
			Keys:    idx.Keys,
			Options: idx.Options,
		}

		_, err := coll.Indexes().CreateOne(ctx, model)
		if err != nil {
			return fmt.Errorf("failed to create index on collection %s: %w", idx.Collection, err)
		}
	}

	return nil
}

// GetAllIndexDefinitions returns all index definitions for all collections.
func GetAllIndexDefinitions() []IndexDefinition {
	var indexes []IndexDefinition

	indexes = append(indexes, GetUserIndexes()...)
	indexes = append(indexes, GetWorkspaceIndexes()...)
	indexes = append(indexes, GetMemberIndexes()...)
	indexes = append(indexes, GetCollectionIndexes()...)
	indexes = append(indexes, GetQueryItemIndexes()...)
	indexes = append(indexes, GetRevisionIndexes()...)

	return indexes
}

// GetUserIndexes returns index definitions for the users collection.
func GetUserIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Primary key - unique user ID
			Collection: CollectionUsers,
			Keys:       bson.D{{Key: "user_id", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_users_id_unique"),
		},
		{
			// Unique index for username
			Collection: CollectionUsers,
			Keys:       bson.D{{Key: "username", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_users_username_unique"),
		},
		{
			// Unique index for email
			Collection: CollectionUsers,
			Keys:       bson.D{{Key: "email", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_users_email_unique"),
		},
	}
}

// GetWorkspaceIndexes returns index definitions for the workspaces collection.
func GetWorkspaceIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Primary key - unique workspace ID
			Collection: CollectionWorkspaces,
			Keys:       bson.D{{Key: "workspace_id", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_workspaces_id_unique"),
		},
		{
			// Scope resolution: owned workspaces by user
			Collection: CollectionWorkspaces,
			Keys:       bson.D{{Key: "owner_id", Value: 1}},
			Options:    options.Index().SetName("idx_workspaces_owner"),
		},
	}
}

// GetMemberIndexes returns index definitions for the workspace_members collection.
func GetMemberIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Unique compound index for user membership in workspace
			Collection: CollectionMembers,
			Keys:       bson.D{{Key: "user_id", Value: 1}, {Key: "workspace_id", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_members_user_workspace_unique"),
		},
		{
			// Index for finding all members of a workspace
			Collection: CollectionMembers,
			Keys:       bson.D{{Key: "workspace_id", Value: 1}},
			Options:    options.Index().SetName("idx_members_workspace"),
		},
		{
			// Scope resolution: joined workspaces by user
			Collection: CollectionMembers,
			Keys:       bson.D{{Key: "user_id", Value: 1}},
			Options:    options.Index().SetName("idx_members_user"),
		},
	}
}

// GetCollectionIndexes returns index definitions for the query_collections collection.
func GetCollectionIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Primary key - unique collection ID
			Collection: CollectionCollections,
			Keys:       bson.D{{Key: "collection_id", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_collections_id_unique"),
		},
		{
			// Scope resolution: collections of a workspace
			Collection: CollectionCollections,
			Keys:       bson.D{{Key: "workspace_id", Value: 1}},
			Options:    options.Index().SetName("idx_collections_workspace"),
		},
	}
}

// GetQueryItemIndexes returns index definitions for the query_items collection.
func GetQueryItemIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Primary key - unique query item ID
			Collection: CollectionQueryItems,
			Keys:       bson.D{{Key: "query_id", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_query_items_id_unique"),
		},
		{
			// Main scoped read: items of accessible collections, newest first
			Collection: CollectionQueryItems,
			Keys:       bson.D{{Key: "collection_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options:    options.Index().SetName("idx_query_items_collection_time"),
		},
	}
}

// GetRevisionIndexes returns index definitions for the query_item_revisions collection.
func GetRevisionIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Primary key - unique revision ID
			Collection: CollectionRevisions,
			Keys:       bson.D{{Key: "revision_id", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_revisions_id_unique"),
		},
		{
			// History listing and oldest-first eviction both sort by this
			Collection: CollectionRevisions,
			Keys:       bson.D{{Key: "query_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options:    options.Index().SetName("idx_revisions_item_time"),
		},
	}
}

// EnsureIndexes is an alias for CreateAllIndexes for semantic clarity.
// Use this when you want to ensure indexes exist without caring about creation.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return CreateAllIndexes(ctx, db)
}
