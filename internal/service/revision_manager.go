package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lllypuk/querydeck/internal/domain/query"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// RevisionManager records post-mutation snapshots and keeps the history of
// each item bounded by the caller's resolved revision limit.
type RevisionManager struct {
	queries   QueryRepository
	revisions RevisionRepository
	quotas    *QuotaPolicy
	logger    *slog.Logger
}

// RevisionManagerOption configures a RevisionManager.
type RevisionManagerOption func(*RevisionManager)

// WithRevisionManagerLogger sets the logger.
func WithRevisionManagerLogger(logger *slog.Logger) RevisionManagerOption {
	return func(m *RevisionManager) {
		m.logger = logger
	}
}

// NewRevisionManager creates a RevisionManager.
func NewRevisionManager(
	queries QueryRepository,
	revisions RevisionRepository,
	quotas *QuotaPolicy,
	opts ...RevisionManagerOption,
) *RevisionManager {
	m := &RevisionManager{
		queries:   queries,
		revisions: revisions,
		quotas:    quotas,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Record snapshots the current (post-mutation) state of itemID and evicts the
// single oldest revision when the history exceeds the resolved limit.
//
// The item is loaded under the owner-or-member scope, so recording for an
// item the user cannot see fails with errs.ErrNotFound; callers invoking
// Record after a zero-match update propagate that as the operation's result.
//
// Insert, count and evict are three separate store calls. Concurrent
// mutations of the same item can transiently exceed the limit; a later call
// evicts one more row per invocation and the history converges once mutation
// traffic settles.
func (m *RevisionManager) Record(ctx context.Context, userID, itemID uuid.UUID) error {
	item, err := m.queries.FindOne(ctx, query.ScopeOwnerOrMember, userID, itemID)
	if err != nil {
		return fmt.Errorf("load item for revision: %w", err)
	}

	rev, err := query.NewRevision(item, userID)
	if err != nil {
		return fmt.Errorf("build revision: %w", err)
	}

	if err = m.revisions.Insert(ctx, rev); err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}

	quota, err := m.quotas.Resolve(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve revision limit: %w", err)
	}

	count, err := m.revisions.CountByItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("count revisions: %w", err)
	}

	if count > int64(quota.RevisionLimit) {
		if err = m.revisions.DeleteOldest(ctx, itemID); err != nil {
			return fmt.Errorf("evict oldest revision: %w", err)
		}
		m.logger.DebugContext(ctx, "evicted oldest revision",
			slog.String("query_item_id", itemID.String()),
			slog.Int("revision_limit", quota.RevisionLimit),
		)
	}

	return nil
}

// Restore overwrites the item's name, content and collection with the values
// of revisionID. The revision must exist and the parent item must be visible
// to userID under the owner-or-member scope; both failures surface as
// errs.ErrNotFound.
//
// The state being replaced is not snapshotted first: the caller records a
// fresh post-restore revision instead, so the discarded state is
// unrecoverable. Tracked as an open product question, kept as observed.
func (m *RevisionManager) Restore(ctx context.Context, userID, revisionID uuid.UUID) (*query.Item, error) {
	rev, err := m.revisions.FindByID(ctx, revisionID)
	if err != nil {
		return nil, fmt.Errorf("load revision: %w", err)
	}

	item, err := m.queries.FindOne(ctx, query.ScopeOwnerOrMember, userID, rev.QueryItemID())
	if err != nil {
		return nil, fmt.Errorf("load item for restore: %w", err)
	}

	fields := rev.Fields()
	if _, err = m.queries.UpdateMatching(ctx, query.ScopeOwnerOrMember, userID, item.ID(), fields); err != nil {
		return nil, fmt.Errorf("apply revision: %w", err)
	}

	restored := query.ReconstructItem(
		item.ID(),
		fields.CollectionID,
		fields.Name,
		fields.Content,
		item.CreatedAt(),
		item.UpdatedAt(),
	)
	return restored, nil
}
