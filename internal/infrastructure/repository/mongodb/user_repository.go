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
	userdomain "github.com/lllypuk/querydeck/internal/domain/user"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// MongoUserRepository implements service.UserDirectory,
// service.MemberDirectory and service.PlanProvider over the users collection.
// User records themselves are provisioned by the identity pipeline, so the
// repository is read-only.
type MongoUserRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// UserRepoOption configures MongoUserRepository.
type UserRepoOption func(*MongoUserRepository)

// WithUserRepoLogger sets the logger for the user repository.
func WithUserRepoLogger(logger *slog.Logger) UserRepoOption {
	return func(r *MongoUserRepository) {
		r.logger = logger
	}
}

// NewMongoUserRepository creates the repository over collection.
func NewMongoUserRepository(collection *mongo.Collection, opts ...UserRepoOption) *MongoUserRepository {
	r := &MongoUserRepository{
		collection: collection,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// FindByID returns the user with the given id.
func (r *MongoUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*userdomain.User, error) {
	if id.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	var doc userDocument
	err := r.collection.FindOne(ctx, bson.M{"user_id": id.String()}).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.ErrorContext(ctx, "failed to find user by ID",
				slog.String("user_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, HandleMongoError(err, "user")
	}

	return documentToUser(&doc)
}

// FindByEmail returns the user with the given email.
func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	if email == "" {
		return nil, errs.ErrInvalidInput
	}

	var doc userDocument
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		return nil, HandleMongoError(err, "user")
	}

	return documentToUser(&doc)
}

// GetPlan returns the plan assigned to userID, nil when none is assigned,
// errs.ErrNotFound for an unknown user.
func (r *MongoUserRepository) GetPlan(ctx context.Context, userID uuid.UUID) (*userdomain.Plan, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Plan(), nil
}

// Exists reports whether a user with the given id exists.
func (r *MongoUserRepository) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	if userID.IsZero() {
		return false, errs.ErrInvalidInput
	}

	filter := bson.M{"user_id": userID.String()}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, HandleMongoError(err, "user")
	}

	return count > 0, nil
}

// userDocument is the users document shape. The plan is embedded; an absent
// plan document means no plan is assigned.
type userDocument struct {
	UserID    string        `bson:"user_id"`
	Username  string        `bson:"username"`
	Email     string        `bson:"email"`
	FirstName string        `bson:"first_name"`
	LastName  string        `bson:"last_name"`
	Plan      *planDocument `bson:"plan,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type planDocument struct {
	MaxQueryCount      *int `bson:"max_query_count,omitempty"`
	QueryRevisionLimit *int `bson:"query_revision_limit,omitempty"`
}

func documentToUser(doc *userDocument) (*userdomain.User, error) {
	if doc == nil {
		return nil, errs.ErrInvalidInput
	}

	id, err := uuid.ParseUUID(doc.UserID)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}

	var plan *userdomain.Plan
	if doc.Plan != nil {
		plan = &userdomain.Plan{
			MaxQueryCount:      doc.Plan.MaxQueryCount,
			QueryRevisionLimit: doc.Plan.QueryRevisionLimit,
		}
	}

	return userdomain.Reconstruct(
		id,
		doc.Username,
		doc.Email,
		doc.FirstName,
		doc.LastName,
		plan,
		doc.CreatedAt,
		doc.UpdatedAt,
	), nil
}
