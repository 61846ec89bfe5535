package mongodb

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
	workspacedomain "github.com/lllypuk/querydeck/internal/domain/workspace"
)

// MongoCollectionRepository implements service.CollectionRepository over the
// query_collections collection.
type MongoCollectionRepository struct {
	collections *mongo.Collection
	workspaces  *mongo.Collection
	logger      *slog.Logger
}

// CollectionRepoOption configures MongoCollectionRepository.
type CollectionRepoOption func(*MongoCollectionRepository)

// WithCollectionRepoLogger sets the logger for the collection repository.
func WithCollectionRepoLogger(logger *slog.Logger) CollectionRepoOption {
	return func(r *MongoCollectionRepository) {
		r.logger = logger
	}
}

// NewMongoCollectionRepository creates the repository over db.
func NewMongoCollectionRepository(db *mongo.Database, opts ...CollectionRepoOption) *MongoCollectionRepository {
	r := &MongoCollectionRepository{
		collections: db.Collection("query_collections"),
		workspaces:  db.Collection("workspaces"),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Insert stores a new collection.
func (r *MongoCollectionRepository) Insert(ctx context.Context, col *workspacedomain.Collection) error {
	if col == nil {
		return errs.ErrInvalidInput
	}

	_, err := r.collections.InsertOne(ctx, collectionToDocument(col))
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to insert collection",
			slog.String("collection_id", col.ID().String()),
			slog.String("error", err.Error()),
		)
	}
	return HandleMongoError(err, "collection")
}

// FindByID returns the collection with the given id.
func (r *MongoCollectionRepository) FindByID(
	ctx context.Context,
	collectionID uuid.UUID,
) (*workspacedomain.Collection, error) {
	if collectionID.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	var doc collectionDocument
	err := r.collections.FindOne(ctx, bson.M{"collection_id": collectionID.String()}).Decode(&doc)
	if err != nil {
		return nil, HandleMongoError(err, "collection")
	}

	return documentToCollection(&doc)
}

// ListByWorkspace returns the collections of a workspace, newest first.
func (r *MongoCollectionRepository) ListByWorkspace(
	ctx context.Context,
	workspaceID uuid.UUID,
) ([]*workspacedomain.Collection, error) {
	if workspaceID.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	filter := bson.M{"workspace_id": workspaceID.String()}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collections.Find(ctx, filter, opts)
	if err != nil {
		return nil, HandleMongoError(err, "collections")
	}
	defer cursor.Close(ctx)

	collections := make([]*workspacedomain.Collection, 0)
	for cursor.Next(ctx) {
		var doc collectionDocument
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue
		}
		col, docErr := documentToCollection(&doc)
		if docErr != nil {
			continue
		}
		collections = append(collections, col)
	}

	if err = cursor.Err(); err != nil {
		return nil, HandleMongoError(err, "collections")
	}
	return collections, nil
}

// OwnedBy reports whether the collection belongs to a workspace owned by
// userID. A missing collection or workspace reports false without error.
func (r *MongoCollectionRepository) OwnedBy(ctx context.Context, collectionID, userID uuid.UUID) (bool, error) {
	if collectionID.IsZero() || userID.IsZero() {
		return false, errs.ErrInvalidInput
	}

	var doc collectionDocument
	err := r.collections.FindOne(ctx, bson.M{"collection_id": collectionID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, HandleMongoError(err, "collection")
	}

	filter := bson.M{
		"workspace_id": doc.WorkspaceID,
		"owner_id":     userID.String(),
	}
	count, err := r.workspaces.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, HandleMongoError(err, "workspace")
	}

	return count > 0, nil
}

// collectionDocument is the query_collections document shape.
type collectionDocument struct {
	CollectionID string    `bson:"collection_id"`
	WorkspaceID  string    `bson:"workspace_id"`
	Name         string    `bson:"name"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func collectionToDocument(col *workspacedomain.Collection) collectionDocument {
	return collectionDocument{
		CollectionID: col.ID().String(),
		WorkspaceID:  col.WorkspaceID().String(),
		Name:         col.Name(),
		CreatedAt:    col.CreatedAt(),
		UpdatedAt:    col.UpdatedAt(),
	}
}

func documentToCollection(doc *collectionDocument) (*workspacedomain.Collection, error) {
	if doc == nil {
		return nil, errs.ErrInvalidInput
	}

	id, err := uuid.ParseUUID(doc.CollectionID)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}
	workspaceID, err := uuid.ParseUUID(doc.WorkspaceID)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}

	return workspacedomain.ReconstructCollection(
		id,
		workspaceID,
		doc.Name,
		doc.CreatedAt,
		doc.UpdatedAt,
	), nil
}
