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

// MongoWorkspaceRepository implements service.WorkspaceRepository over the
// workspaces and workspace_members collections. Membership lives in its own
// collection so the scope resolver can walk it with a single indexed read.
type MongoWorkspaceRepository struct {
	workspaces *mongo.Collection
	members    *mongo.Collection
	logger     *slog.Logger
}

// WorkspaceRepoOption configures MongoWorkspaceRepository.
type WorkspaceRepoOption func(*MongoWorkspaceRepository)

// WithWorkspaceRepoLogger sets the logger for the workspace repository.
func WithWorkspaceRepoLogger(logger *slog.Logger) WorkspaceRepoOption {
	return func(r *MongoWorkspaceRepository) {
		r.logger = logger
	}
}

// NewMongoWorkspaceRepository creates the repository over the two collections.
func NewMongoWorkspaceRepository(
	workspaces, members *mongo.Collection,
	opts ...WorkspaceRepoOption,
) *MongoWorkspaceRepository {
	r := &MongoWorkspaceRepository{
		workspaces: workspaces,
		members:    members,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Save upserts the workspace.
func (r *MongoWorkspaceRepository) Save(ctx context.Context, ws *workspacedomain.Workspace) error {
	if ws == nil || ws.ID().IsZero() {
		return errs.ErrInvalidInput
	}

	filter := bson.M{"workspace_id": ws.ID().String()}
	update := bson.M{"$set": workspaceToDocument(ws)}

	_, err := r.workspaces.UpdateOne(ctx, filter, update, UpsertOptions())
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to save workspace",
			slog.String("workspace_id", ws.ID().String()),
			slog.String("error", err.Error()),
		)
	}
	return HandleMongoError(err, "workspace")
}

// FindByID returns the workspace with the given id.
func (r *MongoWorkspaceRepository) FindByID(ctx context.Context, id uuid.UUID) (*workspacedomain.Workspace, error) {
	if id.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	var doc workspaceDocument
	err := r.workspaces.FindOne(ctx, bson.M{"workspace_id": id.String()}).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.ErrorContext(ctx, "failed to find workspace",
				slog.String("workspace_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, HandleMongoError(err, "workspace")
	}

	return documentToWorkspace(&doc)
}

// AddMember upserts the membership, so re-adding an existing member just
// refreshes the role.
func (r *MongoWorkspaceRepository) AddMember(ctx context.Context, member workspacedomain.Member) error {
	filter := bson.M{
		"workspace_id": member.WorkspaceID().String(),
		"user_id":      member.UserID().String(),
	}
	update := bson.M{"$set": memberToDocument(member)}

	_, err := r.members.UpdateOne(ctx, filter, update, UpsertOptions())
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to add workspace member",
			slog.String("workspace_id", member.WorkspaceID().String()),
			slog.String("user_id", member.UserID().String()),
			slog.String("error", err.Error()),
		)
	}
	return HandleMongoError(err, "workspace member")
}

// RemoveMember deletes the membership. Returns errs.ErrNotFound when the
// user was not on the team.
func (r *MongoWorkspaceRepository) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	if workspaceID.IsZero() || userID.IsZero() {
		return errs.ErrInvalidInput
	}

	filter := bson.M{
		"workspace_id": workspaceID.String(),
		"user_id":      userID.String(),
	}
	result, err := r.members.DeleteOne(ctx, filter)
	if err != nil {
		return HandleMongoError(err, "workspace member")
	}
	if result.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListMembers returns the team of a workspace, longest-standing first.
func (r *MongoWorkspaceRepository) ListMembers(
	ctx context.Context,
	workspaceID uuid.UUID,
) ([]workspacedomain.Member, error) {
	if workspaceID.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	filter := bson.M{"workspace_id": workspaceID.String()}
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}})
	cursor, err := r.members.Find(ctx, filter, opts)
	if err != nil {
		return nil, HandleMongoError(err, "workspace members")
	}
	defer cursor.Close(ctx)

	members := make([]workspacedomain.Member, 0)
	for cursor.Next(ctx) {
		var doc memberDocument
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue
		}
		member, docErr := documentToMember(&doc)
		if docErr != nil {
			continue
		}
		members = append(members, member)
	}

	if err = cursor.Err(); err != nil {
		return nil, HandleMongoError(err, "workspace members")
	}
	return members, nil
}

// workspaceDocument is the workspaces document shape.
type workspaceDocument struct {
	WorkspaceID string    `bson:"workspace_id"`
	Name        string    `bson:"name"`
	OwnerID     string    `bson:"owner_id"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// memberDocument is the workspace_members document shape.
type memberDocument struct {
	WorkspaceID string    `bson:"workspace_id"`
	UserID      string    `bson:"user_id"`
	Role        string    `bson:"role"`
	JoinedAt    time.Time `bson:"joined_at"`
}

func workspaceToDocument(ws *workspacedomain.Workspace) workspaceDocument {
	return workspaceDocument{
		WorkspaceID: ws.ID().String(),
		Name:        ws.Name(),
		OwnerID:     ws.OwnerID().String(),
		CreatedAt:   ws.CreatedAt(),
		UpdatedAt:   ws.UpdatedAt(),
	}
}

func documentToWorkspace(doc *workspaceDocument) (*workspacedomain.Workspace, error) {
	if doc == nil {
		return nil, errs.ErrInvalidInput
	}

	id, err := uuid.ParseUUID(doc.WorkspaceID)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}
	ownerID, err := uuid.ParseUUID(doc.OwnerID)
	if err != nil {
		return nil, errs.ErrInvalidInput
	}

	return workspacedomain.Reconstruct(
		id,
		doc.Name,
		ownerID,
		doc.CreatedAt,
		doc.UpdatedAt,
	), nil
}

func memberToDocument(member workspacedomain.Member) memberDocument {
	return memberDocument{
		WorkspaceID: member.WorkspaceID().String(),
		UserID:      member.UserID().String(),
		Role:        member.Role().String(),
		JoinedAt:    member.JoinedAt(),
	}
}

func documentToMember(doc *memberDocument) (workspacedomain.Member, error) {
	if doc == nil {
		return workspacedomain.Member{}, errs.ErrInvalidInput
	}

	workspaceID, err := uuid.ParseUUID(doc.WorkspaceID)
	if err != nil {
		return workspacedomain.Member{}, errs.ErrInvalidInput
	}
	userID, err := uuid.ParseUUID(doc.UserID)
	if err != nil {
		return workspacedomain.Member{}, errs.ErrInvalidInput
	}

	return workspacedomain.ReconstructMember(
		userID,
		workspaceID,
		workspacedomain.Role(doc.Role),
		doc.JoinedAt,
	), nil
}
