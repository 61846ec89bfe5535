package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/query"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// CreateQueryInput is the creation payload for a query item.
type CreateQueryInput struct {
	CollectionID uuid.UUID
	Name         string
	Content      query.Content
}

// RevisionView is a revision annotated with the display identity of the user
// whose mutation produced it. Purely a read-side join.
type RevisionView struct {
	Revision  *query.Revision
	FirstName string
	LastName  string
	Email     string
}

// QueryService is the orchestration facade over the query item store. Every
// mutating operation resolves scope and/or quota first, performs the store
// operation, then triggers revision bookkeeping and change notification.
type QueryService struct {
	queries     QueryRepository
	revisions   RevisionRepository
	collections CollectionRepository
	users       UserDirectory
	quotas      *QuotaPolicy
	revisionMgr *RevisionManager
	notifier    Notifier
	logger      *slog.Logger
}

// QueryServiceConfig holds the dependencies for QueryService.
type QueryServiceConfig struct {
	Queries         QueryRepository
	Revisions       RevisionRepository
	Collections     CollectionRepository
	Users           UserDirectory
	Quotas          *QuotaPolicy
	RevisionManager *RevisionManager
	Notifier        Notifier
	Logger          *slog.Logger
}

// NewQueryService creates the facade.
func NewQueryService(cfg QueryServiceConfig) *QueryService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QueryService{
		queries:     cfg.Queries,
		revisions:   cfg.Revisions,
		collections: cfg.Collections,
		users:       cfg.Users,
		quotas:      cfg.Quotas,
		revisionMgr: cfg.RevisionManager,
		notifier:    cfg.Notifier,
		logger:      logger,
	}
}

// Create validates the payload, enforces the document-count quota against the
// owner-only scope, verifies collection ownership, persists the item, records
// its first revision and announces the change.
//
// The quota check-then-insert is not atomic: two concurrent calls can both
// pass the count and transiently exceed the ceiling.
func (s *QueryService) Create(ctx context.Context, userID uuid.UUID, input CreateQueryInput) (*query.Item, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	quota, err := s.quotas.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	owned, err := s.queries.Count(ctx, query.ScopeOwnerOnly, userID)
	if err != nil {
		return nil, fmt.Errorf("count owned queries: %w", err)
	}
	if owned >= int64(quota.MaxQueryCount) {
		return nil, fmt.Errorf("query count limit %d reached: %w", quota.MaxQueryCount, errs.ErrQuotaExceeded)
	}

	ownsCollection, err := s.collections.OwnedBy(ctx, input.CollectionID, userID)
	if err != nil {
		return nil, fmt.Errorf("check collection ownership: %w", err)
	}
	if !ownsCollection {
		return nil, fmt.Errorf(
			"collection %s does not belong to a workspace owned by the caller: %w",
			input.CollectionID, errs.ErrForbidden,
		)
	}

	item, err := query.NewItem(input.CollectionID, input.Name, input.Content)
	if err != nil {
		return nil, err
	}

	if err = s.queries.Insert(ctx, item); err != nil {
		return nil, fmt.Errorf("insert query item: %w", err)
	}

	if err = s.revisionMgr.Record(ctx, userID, item.ID()); err != nil {
		return nil, err
	}

	s.notify(ctx, EventQueryCreated, item.ID())
	return item, nil
}

// FindAll returns every item visible to userID as owner or team member.
func (s *QueryService) FindAll(ctx context.Context, userID uuid.UUID) ([]*query.Item, error) {
	return s.queries.FindAll(ctx, query.ScopeOwnerOrMember, userID)
}

// FindOne returns the item when it is visible to userID, errs.ErrNotFound
// otherwise. Invisible and absent are deliberately the same answer.
func (s *QueryService) FindOne(ctx context.Context, userID, itemID uuid.UUID) (*query.Item, error) {
	return s.queries.FindOne(ctx, query.ScopeOwnerOrMember, userID, itemID)
}

// Update writes fields to the item under the owner-or-member scope as a bulk
// matching update. A change notification fires only when a document was
// actually matched; revision recording runs afterwards regardless, so an
// update that matched nothing still surfaces the not-found from the revision
// step.
func (s *QueryService) Update(ctx context.Context, userID, itemID uuid.UUID, fields query.Fields) error {
	matched, err := s.queries.UpdateMatching(ctx, query.ScopeOwnerOrMember, userID, itemID, fields)
	if err != nil {
		return fmt.Errorf("update query item: %w", err)
	}

	if err = s.revisionMgr.Record(ctx, userID, itemID); err != nil {
		return err
	}

	if matched > 0 {
		s.notify(ctx, EventQueryUpdated, itemID)
	}

	return nil
}

// Remove deletes the item under the owner-only scope. Team members cannot
// delete. Deleting an invisible or absent item is a silent no-op.
func (s *QueryService) Remove(ctx context.Context, userID, itemID uuid.UUID) error {
	deleted, err := s.queries.DeleteMatching(ctx, query.ScopeOwnerOnly, userID, itemID)
	if err != nil {
		return fmt.Errorf("delete query item: %w", err)
	}

	if deleted > 0 {
		s.notify(ctx, EventQueryDeleted, itemID)
	}

	return nil
}

// Count returns the number of visible items, restricted to owned workspaces
// when ownOnly is set.
func (s *QueryService) Count(ctx context.Context, userID uuid.UUID, ownOnly bool) (int64, error) {
	scope := query.ScopeOwnerOrMember
	if ownOnly {
		scope = query.ScopeOwnerOnly
	}
	return s.queries.Count(ctx, scope, userID)
}

// ListRevisions returns the retained history of an item visible to userID,
// oldest first, each entry annotated with the triggering user's identity.
func (s *QueryService) ListRevisions(ctx context.Context, userID, itemID uuid.UUID) ([]RevisionView, error) {
	if _, err := s.queries.FindOne(ctx, query.ScopeOwnerOrMember, userID, itemID); err != nil {
		return nil, err
	}

	revs, err := s.revisions.ListByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}

	views := make([]RevisionView, 0, len(revs))
	identities := make(map[uuid.UUID]RevisionView, 1)
	for _, rev := range revs {
		view := RevisionView{Revision: rev}
		if cached, ok := identities[rev.CreatedBy()]; ok {
			view.FirstName = cached.FirstName
			view.LastName = cached.LastName
			view.Email = cached.Email
		} else {
			author, dirErr := s.users.FindByID(ctx, rev.CreatedBy())
			switch {
			case dirErr == nil:
				view.FirstName = author.FirstName()
				view.LastName = author.LastName()
				view.Email = author.Email()
			case errors.Is(dirErr, errs.ErrNotFound):
				// Author account deleted; the revision stays readable.
			default:
				return nil, fmt.Errorf("resolve revision author: %w", dirErr)
			}
			identities[rev.CreatedBy()] = view
		}
		views = append(views, view)
	}

	return views, nil
}

// RestoreRevision rolls the parent item back to the snapshot's values, records
// a fresh post-restore revision and announces the change as an update.
func (s *QueryService) RestoreRevision(ctx context.Context, userID, revisionID uuid.UUID) (*query.Item, error) {
	item, err := s.revisionMgr.Restore(ctx, userID, revisionID)
	if err != nil {
		return nil, err
	}

	if err = s.revisionMgr.Record(ctx, userID, item.ID()); err != nil {
		return nil, err
	}

	s.notify(ctx, EventQueryUpdated, item.ID())
	return item, nil
}

// validateCreate checks the creation payload shape.
func (s *QueryService) validateCreate(input CreateQueryInput) error {
	if input.CollectionID.IsZero() {
		return fmt.Errorf("collection id is required: %w", errs.ErrInvalidInput)
	}
	if input.Name == "" {
		return fmt.Errorf("name is required: %w", errs.ErrInvalidInput)
	}
	if input.Content.Query == "" {
		return fmt.Errorf("content.query is required: %w", errs.ErrInvalidInput)
	}
	if input.Content.Version != query.SchemaVersion {
		return fmt.Errorf("content.version must be %d: %w", query.SchemaVersion, errs.ErrInvalidInput)
	}
	return nil
}

// notify announces a change, fire-and-forget. Failures are logged and never
// affect the mutation's result.
func (s *QueryService) notify(ctx context.Context, event string, itemID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, ChangePayload{ID: itemID.String()}); err != nil {
		s.logger.WarnContext(ctx, "change notification failed",
			slog.String("event", event),
			slog.String("query_item_id", itemID.String()),
			slog.String("error", err.Error()),
		)
	}
}
