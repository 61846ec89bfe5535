package workspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/domain/workspace"
)

func TestNewWorkspace(t *testing.T) {
	ownerID := uuid.NewUUID()

	ws, err := workspace.NewWorkspace("analytics", ownerID)

	require.NoError(t, err)
	assert.False(t, ws.ID().IsZero())
	assert.Equal(t, "analytics", ws.Name())
	assert.Equal(t, ownerID, ws.OwnerID())
	assert.True(t, ws.IsOwnedBy(ownerID))
	assert.False(t, ws.IsOwnedBy(uuid.NewUUID()))
}

func TestNewWorkspace_Invalid(t *testing.T) {
	_, err := workspace.NewWorkspace("", uuid.NewUUID())
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = workspace.NewWorkspace("analytics", "")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestWorkspace_Rename(t *testing.T) {
	ws, err := workspace.NewWorkspace("analytics", uuid.NewUUID())
	require.NoError(t, err)

	require.NoError(t, ws.Rename("reporting"))
	assert.Equal(t, "reporting", ws.Name())

	assert.ErrorIs(t, ws.Rename(""), errs.ErrInvalidInput)
}

func TestNewCollection(t *testing.T) {
	wsID := uuid.NewUUID()

	col, err := workspace.NewCollection(wsID, "dashboards")

	require.NoError(t, err)
	assert.False(t, col.ID().IsZero())
	assert.Equal(t, wsID, col.WorkspaceID())
	assert.Equal(t, "dashboards", col.Name())
}

func TestNewCollection_Invalid(t *testing.T) {
	_, err := workspace.NewCollection("", "dashboards")
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = workspace.NewCollection(uuid.NewUUID(), "")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestRole_IsValid(t *testing.T) {
	testCases := []struct {
		role  workspace.Role
		valid bool
	}{
		{workspace.RoleAdmin, true},
		{workspace.RoleMember, true},
		{workspace.Role("owner"), false},
		{workspace.Role(""), false},
	}

	for _, tc := range testCases {
		t.Run(tc.role.String(), func(t *testing.T) {
			assert.Equal(t, tc.valid, tc.role.IsValid())
		})
	}
}

func TestNewMember(t *testing.T) {
	userID := uuid.NewUUID()
	wsID := uuid.NewUUID()

	m := workspace.NewMember(userID, wsID, workspace.RoleMember)

	assert.Equal(t, userID, m.UserID())
	assert.Equal(t, wsID, m.WorkspaceID())
	assert.Equal(t, workspace.RoleMember, m.Role())
	assert.False(t, m.JoinedAt().IsZero())
	assert.False(t, m.CanManageMembers())

	admin := workspace.NewMember(userID, wsID, workspace.RoleAdmin)
	assert.True(t, admin.CanManageMembers())
}
