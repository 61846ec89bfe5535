// Package workspace contains the tenancy aggregates: the workspace itself,
// its team membership, and the query collections grouped under it.
package workspace

import (
	"time"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// Workspace is the top-level tenancy container. It has exactly one owner;
// team members (see Member) gain read/update access to all query items under
// the workspace, never create/delete.
type Workspace struct {
	id        uuid.UUID
	name      string
	ownerID   uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// NewWorkspace creates a workspace owned by ownerID.
func NewWorkspace(name string, ownerID uuid.UUID) (*Workspace, error) {
	if name == "" {
		return nil, errs.ErrInvalidInput
	}
	if ownerID.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	now := time.Now()
	return &Workspace{
		id:        uuid.NewUUID(),
		name:      name,
		ownerID:   ownerID,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct restores a workspace from storage.
func Reconstruct(id uuid.UUID, name string, ownerID uuid.UUID, createdAt, updatedAt time.Time) *Workspace {
	return &Workspace{
		id:        id,
		name:      name,
		ownerID:   ownerID,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the workspace id.
func (w *Workspace) ID() uuid.UUID { return w.id }

// Name returns the workspace name.
func (w *Workspace) Name() string { return w.name }

// OwnerID returns the owning user's id.
func (w *Workspace) OwnerID() uuid.UUID { return w.ownerID }

// CreatedAt returns the creation time.
func (w *Workspace) CreatedAt() time.Time { return w.createdAt }

// UpdatedAt returns the last modification time.
func (w *Workspace) UpdatedAt() time.Time { return w.updatedAt }

// IsOwnedBy reports whether userID owns this workspace.
func (w *Workspace) IsOwnedBy(userID uuid.UUID) bool {
	return w.ownerID == userID
}

// Rename changes the workspace name.
func (w *Workspace) Rename(name string) error {
	if name == "" {
		return errs.ErrInvalidInput
	}
	w.name = name
	w.updatedAt = time.Now()
	return nil
}

// Collection groups query items inside a workspace.
type Collection struct {
	id          uuid.UUID
	workspaceID uuid.UUID
	name        string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewCollection creates a collection inside workspaceID.
func NewCollection(workspaceID uuid.UUID, name string) (*Collection, error) {
	if workspaceID.IsZero() || name == "" {
		return nil, errs.ErrInvalidInput
	}

	now := time.Now()
	return &Collection{
		id:          uuid.NewUUID(),
		workspaceID: workspaceID,
		name:        name,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructCollection restores a collection from storage.
func ReconstructCollection(
	id, workspaceID uuid.UUID,
	name string,
	createdAt, updatedAt time.Time,
) *Collection {
	return &Collection{
		id:          id,
		workspaceID: workspaceID,
		name:        name,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the collection id.
func (c *Collection) ID() uuid.UUID { return c.id }

// WorkspaceID returns the owning workspace id.
func (c *Collection) WorkspaceID() uuid.UUID { return c.workspaceID }

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// CreatedAt returns the creation time.
func (c *Collection) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last modification time.
func (c *Collection) UpdatedAt() time.Time { return c.updatedAt }
