package workspace

import (
	"time"

	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// Role of a team member inside a workspace. Roles do not affect query item
// access: any membership grants read/update, only the workspace owner may
// create or delete.
type Role string

const (
	// RoleAdmin can manage the member list.
	RoleAdmin Role = "admin"
	// RoleMember is a regular team member.
	RoleMember Role = "member"
)

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// String returns the role as a string.
func (r Role) String() string {
	return string(r)
}

// Member links a user to a workspace team (value object).
type Member struct {
	userID      uuid.UUID
	workspaceID uuid.UUID
	role        Role
	joinedAt    time.Time
}

// NewMember creates a membership joining now.
func NewMember(userID, workspaceID uuid.UUID, role Role) Member {
	return Member{
		userID:      userID,
		workspaceID: workspaceID,
		role:        role,
		joinedAt:    time.Now(),
	}
}

// ReconstructMember restores a Member from storage without validation.
func ReconstructMember(userID, workspaceID uuid.UUID, role Role, joinedAt time.Time) Member {
	return Member{
		userID:      userID,
		workspaceID: workspaceID,
		role:        role,
		joinedAt:    joinedAt,
	}
}

// UserID returns the member's user id.
func (m Member) UserID() uuid.UUID { return m.userID }

// WorkspaceID returns the workspace id.
func (m Member) WorkspaceID() uuid.UUID { return m.workspaceID }

// Role returns the member's role.
func (m Member) Role() Role { return m.role }

// JoinedAt returns when the user joined the team.
func (m Member) JoinedAt() time.Time { return m.joinedAt }

// CanManageMembers reports whether the member may change the member list.
func (m Member) CanManageMembers() bool { return m.role == RoleAdmin }
