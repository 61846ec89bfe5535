package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/query"
	"github.com/lllypuk/querydeck/internal/domain/user"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/domain/workspace"
	"github.com/lllypuk/querydeck/internal/service"
)

// memStore is an in-memory double for all repository interfaces. It mirrors
// the tenancy traversal of the real store: item -> collection -> workspace ->
// owner/members.
type memStore struct {
	mu sync.Mutex

	workspaces  map[uuid.UUID]*workspace.Workspace
	members     map[string]workspace.Member // key: workspaceID:userID
	collections map[uuid.UUID]*workspace.Collection
	items       map[uuid.UUID]*query.Item
	revisions   map[uuid.UUID][]*query.Revision // keyed by item id, insertion order
	users       map[uuid.UUID]*user.User

	// injectable failures
	countErr     error
	insertErr    error
	insertRevErr error
	planErr      error
}

func newMemStore() *memStore {
	return &memStore{
		workspaces:  make(map[uuid.UUID]*workspace.Workspace),
		members:     make(map[string]workspace.Member),
		collections: make(map[uuid.UUID]*workspace.Collection),
		items:       make(map[uuid.UUID]*query.Item),
		revisions:   make(map[uuid.UUID][]*query.Revision),
		users:       make(map[uuid.UUID]*user.User),
	}
}

func memberKey(workspaceID, userID uuid.UUID) string {
	return workspaceID.String() + ":" + userID.String()
}

// visible evaluates the scope predicate against the in-memory tenancy graph.
func (s *memStore) visible(scope query.AccessScope, userID uuid.UUID, item *query.Item) bool {
	col, ok := s.collections[item.CollectionID()]
	if !ok {
		return false
	}
	ws, ok := s.workspaces[col.WorkspaceID()]
	if !ok {
		return false
	}
	if ws.IsOwnedBy(userID) {
		return true
	}
	if scope == query.ScopeOwnerOnly {
		return false
	}
	_, isMember := s.members[memberKey(ws.ID(), userID)]
	return isMember
}

// --- service.QueryRepository ---

func (s *memStore) Insert(_ context.Context, item *query.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.items[item.ID()] = item
	return nil
}

func (s *memStore) FindOne(
	_ context.Context,
	scope query.AccessScope,
	userID, itemID uuid.UUID,
) (*query.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || !s.visible(scope, userID, item) {
		return nil, errs.ErrNotFound
	}
	return item, nil
}

func (s *memStore) FindAll(_ context.Context, scope query.AccessScope, userID uuid.UUID) ([]*query.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*query.Item
	for _, item := range s.items {
		if s.visible(scope, userID, item) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *memStore) Count(_ context.Context, scope query.AccessScope, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	var n int64
	for _, item := range s.items {
		if s.visible(scope, userID, item) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) UpdateMatching(
	_ context.Context,
	scope query.AccessScope,
	userID, itemID uuid.UUID,
	fields query.Fields,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || !s.visible(scope, userID, item) {
		return 0, nil
	}
	s.items[itemID] = query.ReconstructItem(
		item.ID(), fields.CollectionID, fields.Name, fields.Content,
		item.CreatedAt(), item.UpdatedAt(),
	)
	return 1, nil
}

func (s *memStore) DeleteMatching(
	_ context.Context,
	scope query.AccessScope,
	userID, itemID uuid.UUID,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || !s.visible(scope, userID, item) {
		return 0, nil
	}
	delete(s.items, itemID)
	return 1, nil
}

// --- service.RevisionRepository ---

func (s *memStore) InsertRevision(_ context.Context, rev *query.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertRevErr != nil {
		return s.insertRevErr
	}
	s.revisions[rev.QueryItemID()] = append(s.revisions[rev.QueryItemID()], rev)
	return nil
}

func (s *memStore) FindRevisionByID(_ context.Context, revisionID uuid.UUID) (*query.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, revs := range s.revisions {
		for _, rev := range revs {
			if rev.ID() == revisionID {
				return rev, nil
			}
		}
	}
	return nil, errs.ErrNotFound
}

func (s *memStore) ListByItem(_ context.Context, itemID uuid.UUID) ([]*query.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revs := s.revisions[itemID]
	out := make([]*query.Revision, len(revs))
	copy(out, revs)
	return out, nil
}

func (s *memStore) CountByItem(_ context.Context, itemID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.revisions[itemID])), nil
}

func (s *memStore) DeleteOldest(_ context.Context, itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	revs := s.revisions[itemID]
	if len(revs) == 0 {
		return nil
	}
	s.revisions[itemID] = revs[1:]
	return nil
}

// --- service.CollectionRepository ---

func (s *memStore) InsertCollection(_ context.Context, col *workspace.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[col.ID()] = col
	return nil
}

func (s *memStore) FindCollectionByID(
	_ context.Context,
	collectionID uuid.UUID,
) (*workspace.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collectionID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return col, nil
}

func (s *memStore) ListByWorkspace(
	_ context.Context,
	workspaceID uuid.UUID,
) ([]*workspace.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*workspace.Collection
	for _, col := range s.collections {
		if col.WorkspaceID() == workspaceID {
			out = append(out, col)
		}
	}
	return out, nil
}

func (s *memStore) OwnedBy(_ context.Context, collectionID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collectionID]
	if !ok {
		return false, nil
	}
	ws, ok := s.workspaces[col.WorkspaceID()]
	if !ok {
		return false, nil
	}
	return ws.IsOwnedBy(userID), nil
}

// --- service.WorkspaceRepository ---

func (s *memStore) Save(_ context.Context, ws *workspace.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces[ws.ID()] = ws
	return nil
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*workspace.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return ws, nil
}

func (s *memStore) AddMember(_ context.Context, member workspace.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey(member.WorkspaceID(), member.UserID())] = member
	return nil
}

func (s *memStore) RemoveMember(_ context.Context, workspaceID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(workspaceID, userID)
	if _, ok := s.members[key]; !ok {
		return errs.ErrNotFound
	}
	delete(s.members, key)
	return nil
}

func (s *memStore) ListMembers(_ context.Context, workspaceID uuid.UUID) ([]workspace.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []workspace.Member
	for _, m := range s.members {
		if m.WorkspaceID() == workspaceID {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- service.PlanProvider / service.UserDirectory / service.MemberDirectory ---

func (s *memStore) GetPlan(_ context.Context, userID uuid.UUID) (*user.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.planErr != nil {
		return nil, s.planErr
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u.Plan(), nil
}

func (s *memStore) FindUserByID(_ context.Context, userID uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (s *memStore) Exists(_ context.Context, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok, nil
}

// Adapter views: the repository interfaces reuse method names (Insert,
// FindByID), so each gets a thin wrapper over the shared store.

type revisionRepo struct{ *memStore }

func (r revisionRepo) Insert(ctx context.Context, rev *query.Revision) error {
	return r.InsertRevision(ctx, rev)
}

func (r revisionRepo) FindByID(ctx context.Context, revisionID uuid.UUID) (*query.Revision, error) {
	return r.FindRevisionByID(ctx, revisionID)
}

type collectionRepo struct{ *memStore }

func (r collectionRepo) Insert(ctx context.Context, col *workspace.Collection) error {
	return r.InsertCollection(ctx, col)
}

func (r collectionRepo) FindByID(ctx context.Context, collectionID uuid.UUID) (*workspace.Collection, error) {
	return r.FindCollectionByID(ctx, collectionID)
}

type userDirectory struct{ *memStore }

func (d userDirectory) FindByID(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return d.FindUserByID(ctx, userID)
}

// recordingNotifier captures emitted notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
	err    error
}

type notification struct {
	event   string
	payload any
}

func (n *recordingNotifier) Notify(_ context.Context, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, notification{event: event, payload: payload})
	return nil
}

func (n *recordingNotifier) byEvent(event string) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, e := range n.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// fixture wires a full service stack over one memStore, pre-seeded with an
// owner (with a plan), a team member, an outsider, one workspace and one
// collection.
type fixture struct {
	store    *memStore
	notifier *recordingNotifier

	svc       *service.QueryService
	revisions *service.RevisionManager
	quotas    *service.QuotaPolicy

	owner      uuid.UUID
	member     uuid.UUID
	outsider   uuid.UUID
	workspace  uuid.UUID
	collection uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	notifier := &recordingNotifier{}

	ownerUser, err := user.NewUser("owner", "owner@example.com", "Olivia", "Owner")
	require.NoError(t, err)
	maxQueries := 100
	ownerUser.AssignPlan(&user.Plan{MaxQueryCount: &maxQueries})

	memberUser, err := user.NewUser("member", "member@example.com", "Max", "Member")
	require.NoError(t, err)
	outsiderUser, err := user.NewUser("outsider", "outsider@example.com", "Oscar", "Out")
	require.NoError(t, err)

	store.users[ownerUser.ID()] = ownerUser
	store.users[memberUser.ID()] = memberUser
	store.users[outsiderUser.ID()] = outsiderUser

	ws, err := workspace.NewWorkspace("analytics", ownerUser.ID())
	require.NoError(t, err)
	store.workspaces[ws.ID()] = ws
	m := workspace.NewMember(memberUser.ID(), ws.ID(), workspace.RoleMember)
	store.members[memberKey(ws.ID(), memberUser.ID())] = m

	col, err := workspace.NewCollection(ws.ID(), "dashboards")
	require.NoError(t, err)
	store.collections[col.ID()] = col

	quotas := service.NewQuotaPolicy(store)
	revisions := service.NewRevisionManager(store, revisionRepo{store}, quotas)
	svc := service.NewQueryService(service.QueryServiceConfig{
		Queries:         store,
		Revisions:       revisionRepo{store},
		Collections:     collectionRepo{store},
		Users:           userDirectory{store},
		Quotas:          quotas,
		RevisionManager: revisions,
		Notifier:        notifier,
	})

	return &fixture{
		store:      store,
		notifier:   notifier,
		svc:        svc,
		revisions:  revisions,
		quotas:     quotas,
		owner:      ownerUser.ID(),
		member:     memberUser.ID(),
		outsider:   outsiderUser.ID(),
		workspace:  ws.ID(),
		collection: col.ID(),
	}
}

func validInput(collectionID uuid.UUID) service.CreateQueryInput {
	return service.CreateQueryInput{
		CollectionID: collectionID,
		Name:         "active users",
		Content: query.Content{
			Version: query.SchemaVersion,
			Query:   "SELECT * FROM users WHERE active",
		},
	}
}

// setPlan assigns a plan to an existing user in the store.
func (f *fixture) setPlan(t *testing.T, userID uuid.UUID, maxQueries, revisionLimit *int) {
	t.Helper()
	u, ok := f.store.users[userID]
	require.True(t, ok)
	u.AssignPlan(&user.Plan{MaxQueryCount: maxQueries, QueryRevisionLimit: revisionLimit})
}

func intPtr(v int) *int { return &v }
