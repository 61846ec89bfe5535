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

// MongoRevisionRepository implements service.RevisionRepository over the
// query_item_revisions collection. Revisions are append-only; the only
// delete path is oldest-first eviction.
type MongoRevisionRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// RevisionRepoOption configures MongoRevisionRepository.
type RevisionRepoOption func(*MongoRevisionRepository)

// WithRevisionRepoLogger sets the logger for the revision repository.
func WithRevisionRepoLogger(logger *slog.Logger) RevisionRepoOption {
	return func(r *MongoRevisionRepository) {
		r.logger = logger
	}
}

// NewMongoRevisionRepository creates the repository over collection.
func NewMongoRevisionRepository(collection *mongo.Collection, opts ...RevisionRepoOption) *MongoRevisionRepository {
	r := &MongoRevisionRepository{
		collection: collection,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Insert stores a new revision.
func (r *MongoRevisionRepository) Insert(ctx context.Context, rev *query.Revision) error {
	if rev == nil {
		return errs.ErrInvalidInput
	}

	_, err := r.collection.InsertOne(ctx, revisionToDocument(rev))
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to insert revision",
			slog.String("revision_id", rev.ID().String()),
			slog.String("query_id", rev.QueryItemID().String()),
			slog.String("error", err.Error()),
		)
	}
	return HandleMongoError(err, "revision")
}

// FindByID returns the revision with the given id.
func (r *MongoRevisionRepository) FindByID(ctx context.Context, revisionID uuid.UUID) (*query.Revision, error) {
	if revisionID.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	var doc revisionDocument
	err := r.collection.FindOne(ctx, bson.M{"revision_id": revisionID.String()}).Decode(&doc)
	if err != nil {
		return nil, HandleMongoError(err, "revision")
	}

	return documentToRevision(&doc)
}

// ListByItem returns all retained revisions of an item, oldest first.
func (r *MongoRevisionRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*query.Revision, error) {
	if itemID.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	filter := bson.M{"query_id": itemID.String()}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, HandleMongoError(err, "revisions")
	}
	defer cursor.Close(ctx)

	revisions := make([]*query.Revision, 0)
	for cursor.Next(ctx) {
		var doc revisionDocument
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue
		}
		rev, docErr := documentToRevision(&doc)
		if docErr != nil {
			continue
		}
		revisions = append(revisions, rev)
	}

	if err = cursor.Err(); err != nil {
		return nil, HandleMongoError(err, "revisions")
	}
	return revisions, nil
}

// CountByItem returns the number of retained revisions of an item.
func (r *MongoRevisionRepository) CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	if itemID.IsZero() {
		return 0, errs.ErrInvalidInput
	}

	count, err := CountFilter(ctx, r.collection, bson.M{"query_id": itemID.String()})
	if err != nil {
		return 0, HandleMongoError(err, "revisions")
	}
	return count, nil
}

// DeleteOldest removes the single oldest revision of an item. A no-op when
// the item has no revisions.
func (r *MongoRevisionRepository) DeleteOldest(ctx context.Context, itemID uuid.UUID) error {
	if itemID.IsZero() {
		return errs.ErrInvalidInput
	}

	filter := bson.M{"query_id": itemID.String()}
	opts := options.FindOneAndDelete().SetSort(bson.D{{Key: "created_at", Value: 1}})

	err := r.collection.FindOneAndDelete(ctx, filter, opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to evict oldest revision",
			slog.String("query_id", itemID.String()),
			slog.String("error", err.Error()),
		)
	}
	return HandleMongoError(err, "revision")
}

// revisionDocument is the query_item_revisions document shape.
type revisionDocument struct {
	RevisionID   string               `bson:"revision_id"`
	QueryID      string               `bson:"query_id"`
	CollectionID string               `bson:"collection_id"`
	Name         string               `bson:"name"`
	Content      queryContentDocument `bson:"content"`
	CreatedBy    string               `bson:"created_by"`
	CreatedAt    time.Time            `bson:"created_at"`
}

func revisionToDocument(rev *query.Revision) revisionDocument {
	return revisionDocument{
		RevisionID:   rev.ID().String(),
		QueryID:      rev.QueryItemID().String(),
		CollectionID: rev.CollectionID().String(),
		Name:         rev.Name(),
		Content:      contentToDocument(rev.Content()),
		CreatedBy:    rev.CreatedBy().String(),
		CreatedAt:    rev.CreatedAt(),
	}
}

func documentToRevision(doc *revisionDocument) (*query.Revision, error) {
	if doc == nil {
		return nil, errs.ErrInvalidInput
	}

	id, err := uuid.ParseUUID(doc.RevisionID)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}
	queryID, err := uuid.ParseUUID(doc.QueryID)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}
	collectionID, err := uuid.ParseUUID(doc.CollectionID)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}
	createdBy, err := uuid.ParseUUID(doc.CreatedBy)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}

	return query.ReconstructRevision(
		id,
		queryID,
		collectionID,
		doc.Name,
		documentToContent(doc.Content),
		createdBy,
		doc.CreatedAt,
	), nil
}
