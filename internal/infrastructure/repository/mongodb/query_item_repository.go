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
	"github.com/lllypuk/querydeck/internal/domain/query"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// MongoQueryItemRepository implements service.QueryRepository over the
// query_items collection. Every operation takes a scope compiled by
// scopeResolver, so visibility is enforced inside the store filter and a
// caller can never read or write past their workspaces.
type MongoQueryItemRepository struct {
	items  *mongo.Collection
	scopes *scopeResolver
	logger *slog.Logger
}

// QueryItemRepoOption configures MongoQueryItemRepository.
type QueryItemRepoOption func(*MongoQueryItemRepository)

// WithQueryItemRepoLogger sets the logger for the query item repository.
func WithQueryItemRepoLogger(logger *slog.Logger) QueryItemRepoOption {
	return func(r *MongoQueryItemRepository) {
		r.logger = logger
	}
}

// NewMongoQueryItemRepository creates the repository over db.
func NewMongoQueryItemRepository(db *mongo.Database, opts ...QueryItemRepoOption) *MongoQueryItemRepository {
	r := &MongoQueryItemRepository{
		items:  db.Collection("query_items"),
		scopes: newScopeResolver(db),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Insert stores a new query item.
func (r *MongoQueryItemRepository) Insert(ctx context.Context, item *query.Item) error {
	if item == nil {
		return errs.ErrInvalidInput
	}

	_, err := r.items.InsertOne(ctx, itemToDocument(item))
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to insert query item",
			slog.String("query_id", item.ID().String()),
			slog.String("error", err.Error()),
		)
	}
	return HandleMongoError(err, "query item")
}

// FindOne returns the item when it is within userID's scope. An item outside
// the scope decodes as errs.ErrNotFound, same as an absent one.
func (r *MongoQueryItemRepository) FindOne(
	ctx context.Context,
	scope query.AccessScope,
	userID, itemID uuid.UUID,
) (*query.Item, error) {
	if itemID.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	filter, err := r.scopes.itemFilter(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	filter["query_id"] = itemID.String()

	var doc queryItemDocument
	err = r.items.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.ErrorContext(ctx, "failed to find query item",
				slog.String("query_id", itemID.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, HandleMongoError(err, "query item")
	}

	return documentToItem(&doc)
}

// FindAll returns every item within userID's scope, newest first.
func (r *MongoQueryItemRepository) FindAll(
	ctx context.Context,
	scope query.AccessScope,
	userID uuid.UUID,
) ([]*query.Item, error) {
	filter, err := r.scopes.itemFilter(ctx, scope, userID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.items.Find(ctx, filter, opts)
	if err != nil {
		return nil, HandleMongoError(err, "query items")
	}
	defer cursor.Close(ctx)

	items := make([]*query.Item, 0)
	for cursor.Next(ctx) {
		var doc queryItemDocument
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue
		}
		item, docErr := documentToItem(&doc)
		if docErr != nil {
			continue
		}
		items = append(items, item)
	}

	if err = cursor.Err(); err != nil {
		return nil, HandleMongoError(err, "query items")
	}
	return items, nil
}

// Count returns the number of items within userID's scope.
func (r *MongoQueryItemRepository) Count(
	ctx context.Context,
	scope query.AccessScope,
	userID uuid.UUID,
) (int64, error) {
	filter, err := r.scopes.itemFilter(ctx, scope, userID)
	if err != nil {
		return 0, err
	}

	count, err := CountFilter(ctx, r.items, filter)
	if err != nil {
		return 0, HandleMongoError(err, "query items")
	}
	return count, nil
}

// UpdateMatching writes fields to every item matching itemID within the
// scope and returns the matched count. With scope in the filter the write
// silently matches nothing for an out-of-scope caller.
func (r *MongoQueryItemRepository) UpdateMatching(
	ctx context.Context,
	scope query.AccessScope,
	userID, itemID uuid.UUID,
	fields query.Fields,
) (int64, error) {
	if itemID.IsZero() {
		return 0, errs.ErrInvalidInput
	}

	filter, err := r.scopes.itemFilter(ctx, scope, userID)
	if err != nil {
		return 0, err
	}
	filter["query_id"] = itemID.String()

	update := bson.M{"$set": bson.M{
		"collection_id": fields.CollectionID.String(),
		"name":          fields.Name,
		"content":       contentToDocument(fields.Content),
		"updated_at":    time.Now().UTC(),
	}}

	result, err := r.items.UpdateMany(ctx, filter, update)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to update query item",
			slog.String("query_id", itemID.String()),
			slog.String("error", err.Error()),
		)
		return 0, HandleMongoError(err, "query item")
	}

	return result.MatchedCount, nil
}

// DeleteMatching removes every item matching itemID within the scope and
// returns the deleted count.
func (r *MongoQueryItemRepository) DeleteMatching(
	ctx context.Context,
	scope query.AccessScope,
	userID, itemID uuid.UUID,
) (int64, error) {
	if itemID.IsZero() {
		return 0, errs.ErrInvalidInput
	}

	filter, err := r.scopes.itemFilter(ctx, scope, userID)
	if err != nil {
		return 0, err
	}
	filter["query_id"] = itemID.String()

	result, err := r.items.DeleteMany(ctx, filter)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to delete query item",
			slog.String("query_id", itemID.String()),
			slog.String("error", err.Error()),
		)
		return 0, HandleMongoError(err, "query item")
	}

	return result.DeletedCount, nil
}

// queryItemDocument is the query_items document shape.
type queryItemDocument struct {
	QueryID      string               `bson:"query_id"`
	CollectionID string               `bson:"collection_id"`
	Name         string               `bson:"name"`
	Content      queryContentDocument `bson:"content"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

// queryContentDocument is the embedded content payload.
type queryContentDocument struct {
	Version   int            `bson:"version"`
	Query     string         `bson:"query"`
	Variables map[string]any `bson:"variables,omitempty"`
}

func contentToDocument(content query.Content) queryContentDocument {
	return queryContentDocument{
		Version:   content.Version,
		Query:     content.Query,
		Variables: content.Variables,
	}
}

func documentToContent(doc queryContentDocument) query.Content {
	return query.Content{
		Version:   doc.Version,
		Query:     doc.Query,
		Variables: doc.Variables,
	}
}

func itemToDocument(item *query.Item) queryItemDocument {
	return queryItemDocument{
		QueryID:      item.ID().String(),
		CollectionID: item.CollectionID().String(),
		Name:         item.Name(),
		Content:      contentToDocument(item.Content()),
		CreatedAt:    item.CreatedAt(),
		UpdatedAt:    item.UpdatedAt(),
	}
}

func documentToItem(doc *queryItemDocument) (*query.Item, error) {
	if doc == nil {
		return nil, errs.ErrInvalidInput
	}

	id, err := uuid.ParseUUID(doc.QueryID)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}
	collectionID, err := uuid.ParseUUID(doc.CollectionID)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}

	return query.ReconstructItem(
		id,
		collectionID,
		doc.Name,
		documentToContent(doc.Content),
		doc.CreatedAt,
		doc.UpdatedAt,
	), nil
}
