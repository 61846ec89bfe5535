package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/domain/workspace"
)

// WorkspaceService manages workspaces, their teams and collections. Query
// item access policy lives in QueryService; this service only provisions the
// tenancy structure the policy operates on.
type WorkspaceService struct {
	workspaces  WorkspaceRepository
	collections CollectionRepository
	users       MemberDirectory
	logger      *slog.Logger
}

// NewWorkspaceService creates a WorkspaceService.
func NewWorkspaceService(
	workspaces WorkspaceRepository,
	collections CollectionRepository,
	users MemberDirectory,
	logger *slog.Logger,
) *WorkspaceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceService{
		workspaces:  workspaces,
		collections: collections,
		users:       users,
		logger:      logger,
	}
}

// CreateWorkspace creates a workspace owned by ownerID.
func (s *WorkspaceService) CreateWorkspace(
	ctx context.Context,
	ownerID uuid.UUID,
	name string,
) (*workspace.Workspace, error) {
	ws, err := workspace.NewWorkspace(name, ownerID)
	if err != nil {
		return nil, err
	}

	if err = s.workspaces.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("save workspace: %w", err)
	}

	s.logger.InfoContext(ctx, "workspace created",
		slog.String("workspace_id", ws.ID().String()),
		slog.String("owner_id", ownerID.String()),
	)
	return ws, nil
}

// GetWorkspace returns a workspace visible to userID: the owner or any team
// member. Anyone else gets errs.ErrNotFound.
func (s *WorkspaceService) GetWorkspace(
	ctx context.Context,
	userID, workspaceID uuid.UUID,
) (*workspace.Workspace, error) {
	ws, err := s.workspaces.FindByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if ws.IsOwnedBy(userID) {
		return ws, nil
	}

	members, err := s.workspaces.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	for _, m := range members {
		if m.UserID() == userID {
			return ws, nil
		}
	}

	return nil, errs.ErrNotFound
}

// AddMember adds userID to the workspace team. Only the owner may manage the
// team; the owner cannot be added as a member of their own team, and the user
// must exist in the directory.
func (s *WorkspaceService) AddMember(
	ctx context.Context,
	actorID, workspaceID, userID uuid.UUID,
	role workspace.Role,
) error {
	if !role.IsValid() {
		return fmt.Errorf("role %q: %w", role, errs.ErrInvalidInput)
	}

	ws, err := s.workspaces.FindByID(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !ws.IsOwnedBy(actorID) {
		return fmt.Errorf("only the workspace owner may manage the team: %w", errs.ErrForbidden)
	}
	if ws.IsOwnedBy(userID) {
		return fmt.Errorf("owner is already a member by definition: %w", errs.ErrInvalidInput)
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return fmt.Errorf("user %s is not registered: %w", userID, errs.ErrNotFound)
	}

	member := workspace.NewMember(userID, workspaceID, role)
	if err = s.workspaces.AddMember(ctx, member); err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	s.logger.InfoContext(ctx, "team member added",
		slog.String("workspace_id", workspaceID.String()),
		slog.String("user_id", userID.String()),
		slog.String("role", role.String()),
	)
	return nil
}

// AddMemberByEmail resolves an email address to a registered user and adds
// them to the workspace team. The address must match an existing user.
func (s *WorkspaceService) AddMemberByEmail(
	ctx context.Context,
	actorID, workspaceID uuid.UUID,
	email string,
	role workspace.Role,
) (uuid.UUID, error) {
	if email == "" {
		return "", fmt.Errorf("email is required: %w", errs.ErrInvalidInput)
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if err = s.AddMember(ctx, actorID, workspaceID, u.ID(), role); err != nil {
		return "", err
	}
	return u.ID(), nil
}

// RemoveMember removes userID from the workspace team. Owner only.
func (s *WorkspaceService) RemoveMember(ctx context.Context, actorID, workspaceID, userID uuid.UUID) error {
	ws, err := s.workspaces.FindByID(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !ws.IsOwnedBy(actorID) {
		return fmt.Errorf("only the workspace owner may manage the team: %w", errs.ErrForbidden)
	}

	if err = s.workspaces.RemoveMember(ctx, workspaceID, userID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return err
		}
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// CreateCollection creates a collection in a workspace owned by actorID.
func (s *WorkspaceService) CreateCollection(
	ctx context.Context,
	actorID, workspaceID uuid.UUID,
	name string,
) (*workspace.Collection, error) {
	ws, err := s.workspaces.FindByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !ws.IsOwnedBy(actorID) {
		return nil, fmt.Errorf("only the workspace owner may create collections: %w", errs.ErrForbidden)
	}

	col, err := workspace.NewCollection(workspaceID, name)
	if err != nil {
		return nil, err
	}

	if err = s.collections.Insert(ctx, col); err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}
	return col, nil
}

// ListMembers returns the team of a workspace visible to userID, ordered by
// join time. The owner is not part of the list; ownership is a property of
// the workspace itself.
func (s *WorkspaceService) ListMembers(
	ctx context.Context,
	userID, workspaceID uuid.UUID,
) ([]workspace.Member, error) {
	if _, err := s.GetWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.workspaces.ListMembers(ctx, workspaceID)
}

// ListCollections returns the collections of a workspace visible to userID.
func (s *WorkspaceService) ListCollections(
	ctx context.Context,
	userID, workspaceID uuid.UUID,
) ([]*workspace.Collection, error) {
	if _, err := s.GetWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.collections.ListByWorkspace(ctx, workspaceID)
}
