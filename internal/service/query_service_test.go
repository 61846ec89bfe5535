package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/query"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/domain/workspace"
	"github.com/lllypuk/querydeck/internal/service"
)

func TestQueryService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))

	require.NoError(t, err)
	assert.Equal(t, f.collection, item.CollectionID())
	assert.Equal(t, "active users", item.Name())

	// Persisted, first revision recorded, change announced.
	assert.Contains(t, f.store.items, item.ID())
	require.Len(t, f.store.revisions[item.ID()], 1)
	assert.Equal(t, item.Content(), f.store.revisions[item.ID()][0].Content())

	created := f.notifier.byEvent(service.EventQueryCreated)
	require.Len(t, created, 1)
	assert.Equal(t, service.ChangePayload{ID: item.ID().String()}, created[0].payload)
}

func TestQueryService_Create_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testCases := []struct {
		name   string
		mutate func(*service.CreateQueryInput)
	}{
		{"missing collection id", func(in *service.CreateQueryInput) { in.CollectionID = "" }},
		{"missing name", func(in *service.CreateQueryInput) { in.Name = "" }},
		{"missing query", func(in *service.CreateQueryInput) { in.Content.Query = "" }},
		{"wrong schema version", func(in *service.CreateQueryInput) { in.Content.Version = 2 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput(f.collection)
			tc.mutate(&input)

			_, err := f.svc.Create(ctx, f.owner, input)

			require.ErrorIs(t, err, errs.ErrInvalidInput)
			assert.Empty(t, f.notifier.events)
		})
	}
}

func TestQueryService_Create_ForeignCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A collection in a workspace the outsider owns: valid dto, wrong tenant.
	otherWs, err := workspace.NewWorkspace("other", f.outsider)
	require.NoError(t, err)
	f.store.workspaces[otherWs.ID()] = otherWs
	otherCol, err := workspace.NewCollection(otherWs.ID(), "theirs")
	require.NoError(t, err)
	f.store.collections[otherCol.ID()] = otherCol

	_, err = f.svc.Create(ctx, f.owner, validInput(otherCol.ID()))

	require.ErrorIs(t, err, errs.ErrForbidden)
	assert.Equal(t, errs.CodeForbidden, errs.Code(err))
	assert.Empty(t, f.store.items)
}

func TestQueryService_Create_MemberCannotCreate(t *testing.T) {
	f := newFixture(t)
	f.setPlan(t, f.member, intPtr(10), nil)

	// Team membership grants read/update, never create.
	_, err := f.svc.Create(context.Background(), f.member, validInput(f.collection))

	require.ErrorIs(t, err, errs.ErrForbidden)
}

func TestQueryService_Create_QuotaSequence(t *testing.T) {
	f := newFixture(t)
	f.setPlan(t, f.owner, intPtr(2), nil)
	ctx := context.Background()

	// The M-th create succeeds, the (M+1)-th fails.
	_, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.owner, validInput(f.collection))

	require.ErrorIs(t, err, errs.ErrQuotaExceeded)
	assert.Equal(t, errs.CodeQuotaExceeded, errs.Code(err))
	assert.Len(t, f.store.items, 2)
}

func TestQueryService_Create_NoPlanBlocksFirstCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The workspace owner without any plan resolves to MaxQueryCount = 0.
	noPlanOwner := uuid.NewUUID()
	ws, err := workspace.NewWorkspace("free tier", noPlanOwner)
	require.NoError(t, err)
	f.store.workspaces[ws.ID()] = ws
	col, err := workspace.NewCollection(ws.ID(), "misc")
	require.NoError(t, err)
	f.store.collections[col.ID()] = col

	_, err = f.svc.Create(ctx, noPlanOwner, validInput(col.ID()))

	require.ErrorIs(t, err, errs.ErrQuotaExceeded)
}

func TestQueryService_FindOne_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)

	got, err := f.svc.FindOne(ctx, f.owner, item.ID())
	require.NoError(t, err)
	assert.Equal(t, item.ID(), got.ID())

	got, err = f.svc.FindOne(ctx, f.member, item.ID())
	require.NoError(t, err, "team member sees the item")
	assert.Equal(t, item.ID(), got.ID())

	_, err = f.svc.FindOne(ctx, f.outsider, item.ID())
	require.ErrorIs(t, err, errs.ErrNotFound, "outsider gets not-found, not forbidden")
}

func TestQueryService_FindAll_ScopesPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)

	ownerItems, err := f.svc.FindAll(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, ownerItems, 1)

	memberItems, err := f.svc.FindAll(ctx, f.member)
	require.NoError(t, err)
	assert.Len(t, memberItems, 1)

	outsiderItems, err := f.svc.FindAll(ctx, f.outsider)
	require.NoError(t, err)
	assert.Empty(t, outsiderItems)
}

func updatedFields(f *fixture, name, queryText string) query.Fields {
	return query.Fields{
		CollectionID: f.collection,
		Name:         name,
		Content:      query.Content{Version: query.SchemaVersion, Query: queryText},
	}
}

func TestQueryService_Update_ByMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)

	err = f.svc.Update(ctx, f.member, item.ID(), updatedFields(f, "renamed", "SELECT 2"))

	require.NoError(t, err)
	assert.Equal(t, "renamed", f.store.items[item.ID()].Name())

	updated := f.notifier.byEvent(service.EventQueryUpdated)
	require.Len(t, updated, 1)

	// create + update snapshots
	revs := f.store.revisions[item.ID()]
	require.Len(t, revs, 2)
	assert.Equal(t, "renamed", revs[1].Name())
	assert.Equal(t, f.member, revs[1].CreatedBy())
}

func TestQueryService_Update_OutsiderIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)
	f.notifier.events = nil

	err = f.svc.Update(ctx, f.outsider, item.ID(), updatedFields(f, "hacked", "DROP TABLE users"))

	// Zero rows matched, so no notification; the trailing revision step
	// cannot see the item either and surfaces not-found.
	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.Empty(t, f.notifier.events)
	assert.Equal(t, "active users", f.store.items[item.ID()].Name())
}

func TestQueryService_Update_AlwaysRecordsRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)

	before := len(f.store.revisions[item.ID()])
	require.NoError(t, f.svc.Update(ctx, f.owner, item.ID(), updatedFields(f, "v2", "SELECT 2")))

	assert.Len(t, f.store.revisions[item.ID()], before+1)
}

func TestQueryService_Remove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)

	// Team members cannot delete: silent no-op, no notification.
	require.NoError(t, f.svc.Remove(ctx, f.member, item.ID()))
	assert.Contains(t, f.store.items, item.ID())
	assert.Empty(t, f.notifier.byEvent(service.EventQueryDeleted))

	// The owner can.
	require.NoError(t, f.svc.Remove(ctx, f.owner, item.ID()))
	assert.NotContains(t, f.store.items, item.ID())
	require.Len(t, f.notifier.byEvent(service.EventQueryDeleted), 1)
}

func TestQueryService_Count(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)

	n, err := f.svc.Count(ctx, f.member, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "member sees team items")

	n, err = f.svc.Count(ctx, f.member, true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "member owns nothing")

	n, err = f.svc.Count(ctx, f.owner, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestQueryService_ListRevisions_AnnotatesAuthors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)
	require.NoError(t, f.svc.Update(ctx, f.member, item.ID(), updatedFields(f, "v2", "SELECT 2")))

	views, err := f.svc.ListRevisions(ctx, f.member, item.ID())

	require.NoError(t, err)
	require.Len(t, views, 2)
	// Oldest first; each annotated with the triggering user's identity.
	assert.Equal(t, "Olivia", views[0].FirstName)
	assert.Equal(t, "Owner", views[0].LastName)
	assert.Equal(t, "owner@example.com", views[0].Email)
	assert.Equal(t, "Max", views[1].FirstName)
	assert.Equal(t, "v2", views[1].Revision.Name())
}

func TestQueryService_ListRevisions_Outsider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)

	_, err = f.svc.ListRevisions(ctx, f.outsider, item.ID())

	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestQueryService_RevisionLimitScenario(t *testing.T) {
	// Plan limit 2, three sequential updates: exactly the 2nd and 3rd
	// snapshots survive.
	f := newFixture(t)
	f.setPlan(t, f.owner, intPtr(100), intPtr(2))
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)

	require.NoError(t, f.svc.Update(ctx, f.owner, item.ID(), updatedFields(f, "u1", "SELECT 1")))
	require.NoError(t, f.svc.Update(ctx, f.owner, item.ID(), updatedFields(f, "u2", "SELECT 2")))
	require.NoError(t, f.svc.Update(ctx, f.owner, item.ID(), updatedFields(f, "u3", "SELECT 3")))

	views, err := f.svc.ListRevisions(ctx, f.owner, item.ID())
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "u2", views[0].Revision.Name())
	assert.Equal(t, "u3", views[1].Revision.Name())
}

func TestQueryService_RestoreRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)
	original := f.store.revisions[item.ID()][0]
	require.NoError(t, f.svc.Update(ctx, f.owner, item.ID(), updatedFields(f, "v2", "SELECT 2")))
	f.notifier.events = nil

	restored, err := f.svc.RestoreRevision(ctx, f.owner, original.ID())

	require.NoError(t, err)
	assert.Equal(t, "active users", restored.Name())
	assert.Equal(t, original.Content(), restored.Content())

	stored := f.store.items[item.ID()]
	assert.Equal(t, original.Name(), stored.Name())
	assert.Equal(t, original.Content(), stored.Content())

	// Restore announces an update and records exactly one new snapshot of the
	// post-restore state.
	require.Len(t, f.notifier.byEvent(service.EventQueryUpdated), 1)
	revs := f.store.revisions[item.ID()]
	require.Len(t, revs, 3)
	assert.Equal(t, original.Content(), revs[2].Content())
}

func TestQueryService_RestoreRevision_MemberMayRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)
	snapshot := f.store.revisions[item.ID()][0]

	_, err = f.svc.RestoreRevision(ctx, f.member, snapshot.ID())

	require.NoError(t, err)
}

func TestQueryService_RestoreRevision_OutsiderIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)
	snapshot := f.store.revisions[item.ID()][0]

	_, err = f.svc.RestoreRevision(ctx, f.outsider, snapshot.ID())

	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestQueryService_NotifierFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")
	ctx := context.Background()

	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))

	require.NoError(t, err, "notification is fire-and-forget")
	assert.Contains(t, f.store.items, item.ID())
}

func TestQueryService_RevisionFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.store.insertRevErr = errors.New("revision store down")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.owner, validInput(f.collection))

	// No rollback of the primary mutation is attempted.
	require.Error(t, err)
	assert.Len(t, f.store.items, 1)
}

func TestQueryService_RevisionFailureSuppressesNotification(t *testing.T) {
	// Every mutation notifies only after its snapshot is recorded, so a
	// revision store failure means no event goes out.
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, f.owner, validInput(f.collection))
	require.NoError(t, err)
	snapshot := f.store.revisions[item.ID()][0]

	f.store.insertRevErr = errors.New("revision store down")
	f.notifier.events = nil

	err = f.svc.Update(ctx, f.owner, item.ID(), updatedFields(f, "v2", "SELECT 2"))
	require.Error(t, err)
	assert.Empty(t, f.notifier.events)

	_, err = f.svc.RestoreRevision(ctx, f.owner, snapshot.ID())
	require.Error(t, err)
	assert.Empty(t, f.notifier.events)
}
