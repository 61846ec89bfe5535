// Package service implements the query store policy layer: access scoping,
// quota enforcement, revision bookkeeping and change notification.
package service

import (
	"context"

	"github.com/lllypuk/querydeck/internal/domain/query"
	"github.com/lllypuk/querydeck/internal/domain/user"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/domain/workspace"
)

// QueryRepository is the item store as the policy layer needs it. Every read
// and write takes an AccessScope plus the acting user; implementations must
// compile the scope into a server-side filter, never trusting caller input.
// Declared on the consumer side per project guidelines.
type QueryRepository interface {
	// Insert persists a new item.
	Insert(ctx context.Context, item *query.Item) error

	// FindOne returns the item with itemID visible under scope, or
	// errs.ErrNotFound when it is absent or out of scope.
	FindOne(ctx context.Context, scope query.AccessScope, userID, itemID uuid.UUID) (*query.Item, error)

	// FindAll returns all items visible under scope, newest first.
	FindAll(ctx context.Context, scope query.AccessScope, userID uuid.UUID) ([]*query.Item, error)

	// Count returns the number of items visible under scope.
	Count(ctx context.Context, scope query.AccessScope, userID uuid.UUID) (int64, error)

	// UpdateMatching is a bulk update by filter: it writes fields to every
	// item matching both itemID and the scope predicate, returning the
	// number of matched documents (zero is not an error).
	UpdateMatching(
		ctx context.Context,
		scope query.AccessScope,
		userID, itemID uuid.UUID,
		fields query.Fields,
	) (int64, error)

	// DeleteMatching is a bulk delete by filter, returning the number of
	// deleted documents (zero is not an error).
	DeleteMatching(ctx context.Context, scope query.AccessScope, userID, itemID uuid.UUID) (int64, error)
}

// RevisionRepository is the revision history store.
type RevisionRepository interface {
	// Insert persists a new revision.
	Insert(ctx context.Context, rev *query.Revision) error

	// FindByID returns a revision by id regardless of scope; the caller is
	// responsible for access-checking the parent item.
	FindByID(ctx context.Context, revisionID uuid.UUID) (*query.Revision, error)

	// ListByItem returns all revisions of an item ordered by creation time
	// ascending.
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*query.Revision, error)

	// CountByItem returns the number of retained revisions for an item.
	CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error)

	// DeleteOldest removes the single revision of the item with the
	// earliest creation timestamp. Removing from an empty history is a
	// no-op.
	DeleteOldest(ctx context.Context, itemID uuid.UUID) error
}

// CollectionRepository resolves collection ownership for the creation-time
// permission check.
type CollectionRepository interface {
	// Insert persists a new collection.
	Insert(ctx context.Context, col *workspace.Collection) error

	// FindByID returns a collection by id.
	FindByID(ctx context.Context, collectionID uuid.UUID) (*workspace.Collection, error)

	// ListByWorkspace returns the collections of a workspace.
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*workspace.Collection, error)

	// OwnedBy reports whether the collection belongs to a workspace owned
	// by userID. An unknown collection is simply not owned.
	OwnedBy(ctx context.Context, collectionID, userID uuid.UUID) (bool, error)
}

// WorkspaceRepository is the tenancy store used by WorkspaceService.
type WorkspaceRepository interface {
	// Save persists a workspace (create or update).
	Save(ctx context.Context, ws *workspace.Workspace) error

	// FindByID returns a workspace by id.
	FindByID(ctx context.Context, id uuid.UUID) (*workspace.Workspace, error)

	// AddMember adds a team member (idempotent upsert).
	AddMember(ctx context.Context, member workspace.Member) error

	// RemoveMember removes a team member.
	RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error

	// ListMembers returns the team members of a workspace.
	ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]workspace.Member, error)
}

// PlanProvider supplies the external plan configuration for a user. A nil
// plan with nil error means the user has no plan assigned.
type PlanProvider interface {
	GetPlan(ctx context.Context, userID uuid.UUID) (*user.Plan, error)
}

// UserDirectory resolves display identities for the revision list join.
type UserDirectory interface {
	FindByID(ctx context.Context, userID uuid.UUID) (*user.User, error)
}

// MemberDirectory looks up registered users for team management. Email lookup
// serves invitations where the caller knows the address but not the user ID.
type MemberDirectory interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Notifier is the one-way change notification sink. Emission is
// fire-and-forget: failures are logged by the caller and never affect the
// mutation's reported result.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any) error
}

// Change notification event names.
const (
	EventQueryCreated = "query.created"
	EventQueryUpdated = "query.updated"
	EventQueryDeleted = "query.deleted"
)

// ChangePayload is the notification body announced on every successful
// mutation.
type ChangePayload struct {
	ID string `json:"id"`
}
