package httphandler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/domain/workspace"
	"github.com/lllypuk/querydeck/internal/infrastructure/httpserver"
	"github.com/lllypuk/querydeck/internal/middleware"
)

const (
	maxWorkspaceNameLength  = 100
	maxCollectionNameLength = 100
)

// CreateWorkspaceRequest represents the request to create a workspace.
type CreateWorkspaceRequest struct {
	Name string `json:"name"`
}

// AddMemberRequest represents the request to add a member to a workspace.
// The user is identified by user_id, or by email when user_id is absent.
type AddMemberRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

// CreateCollectionRequest represents the request to create a collection.
type CreateCollectionRequest struct {
	Name string `json:"name"`
}

// WorkspaceResponse represents a workspace in API responses.
type WorkspaceResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// MemberResponse represents a workspace member in API responses.
type MemberResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt string    `json:"joined_at"`
}

// MemberListResponse represents a workspace's team in API responses.
type MemberListResponse struct {
	Members []MemberResponse `json:"members"`
	Total   int              `json:"total"`
}

// CollectionResponse represents a collection in API responses.
type CollectionResponse struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

// CollectionListResponse represents a list of collections in API responses.
type CollectionListResponse struct {
	Collections []CollectionResponse `json:"collections"`
	Total       int                  `json:"total"`
}

// WorkspaceService defines the interface for workspace operations.
// Declared on the consumer side per project guidelines.
type WorkspaceService interface {
	// CreateWorkspace creates a workspace owned by the given user.
	CreateWorkspace(ctx context.Context, ownerID uuid.UUID, name string) (*workspace.Workspace, error)

	// GetWorkspace returns a workspace visible to the user.
	GetWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) (*workspace.Workspace, error)

	// AddMember puts a user on the workspace team.
	AddMember(ctx context.Context, actorID, workspaceID, userID uuid.UUID, role workspace.Role) error

	// AddMemberByEmail resolves an email address to a registered user and
	// puts them on the team.
	AddMemberByEmail(
		ctx context.Context,
		actorID, workspaceID uuid.UUID,
		email string,
		role workspace.Role,
	) (uuid.UUID, error)

	// RemoveMember takes a user off the workspace team.
	RemoveMember(ctx context.Context, actorID, workspaceID, userID uuid.UUID) error

	// ListMembers returns the workspace team, ordered by join time.
	ListMembers(ctx context.Context, userID, workspaceID uuid.UUID) ([]workspace.Member, error)

	// CreateCollection creates a collection inside the workspace.
	CreateCollection(ctx context.Context, actorID, workspaceID uuid.UUID, name string) (*workspace.Collection, error)

	// ListCollections lists the collections of a visible workspace.
	ListCollections(ctx context.Context, userID, workspaceID uuid.UUID) ([]*workspace.Collection, error)
}

// WorkspaceHandler handles workspace-related HTTP requests.
type WorkspaceHandler struct {
	workspaceService WorkspaceService
}

// NewWorkspaceHandler creates a new WorkspaceHandler.
func NewWorkspaceHandler(workspaceService WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaceService: workspaceService,
	}
}

// RegisterRoutes registers workspace routes with the router.
func (h *WorkspaceHandler) RegisterRoutes(r *httpserver.Router) {
	r.Auth().POST("/workspaces", h.Create)
	r.Auth().GET("/workspaces/:id", h.Get)
	r.Auth().GET("/workspaces/:id/members", h.ListMembers)
	r.Auth().POST("/workspaces/:id/members", h.AddMember)
	r.Auth().DELETE("/workspaces/:id/members/:userID", h.RemoveMember)
	r.Auth().POST("/workspaces/:id/collections", h.CreateCollection)
	r.Auth().GET("/workspaces/:id/collections", h.ListCollections)
}

// Create handles POST /api/v1/workspaces.
func (h *WorkspaceHandler) Create(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	var req CreateWorkspaceRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
		)
	}

	if len(req.Name) > maxWorkspaceNameLength {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"VALIDATION_ERROR",
			"Workspace name must be at most 100 characters",
		)
	}

	ws, err := h.workspaceService.CreateWorkspace(c.Request().Context(), userID, req.Name)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, ToWorkspaceResponse(ws))
}

// Get handles GET /api/v1/workspaces/:id.
func (h *WorkspaceHandler) Get(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	workspaceID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_WORKSPACE_ID",
			"Invalid workspace ID format",
		)
	}

	ws, err := h.workspaceService.GetWorkspace(c.Request().Context(), userID, workspaceID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToWorkspaceResponse(ws))
}

// ListMembers handles GET /api/v1/workspaces/:id/members.
// The owner is not part of the list; ownership is carried by the workspace.
func (h *WorkspaceHandler) ListMembers(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	workspaceID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_WORKSPACE_ID",
			"Invalid workspace ID format",
		)
	}

	members, err := h.workspaceService.ListMembers(c.Request().Context(), userID, workspaceID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	responses := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		responses = append(responses, ToMemberResponse(m))
	}

	return httpserver.RespondOK(c, MemberListResponse{
		Members: responses,
		Total:   len(responses),
	})
}

// AddMember handles POST /api/v1/workspaces/:id/members.
func (h *WorkspaceHandler) AddMember(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	workspaceID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_WORKSPACE_ID",
			"Invalid workspace ID format",
		)
	}

	var req AddMemberRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
		)
	}

	role := workspace.Role(req.Role)
	if req.Role == "" {
		role = workspace.RoleMember
	}

	ctx := c.Request().Context()
	var addErr error
	switch {
	case !req.UserID.IsZero():
		addErr = h.workspaceService.AddMember(ctx, userID, workspaceID, req.UserID, role)
	case req.Email != "":
		_, addErr = h.workspaceService.AddMemberByEmail(ctx, userID, workspaceID, req.Email, role)
	default:
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"VALIDATION_ERROR",
			"Either user_id or email is required",
		)
	}
	if addErr != nil {
		return httpserver.RespondError(c, addErr)
	}

	return httpserver.RespondNoContent(c)
}

// RemoveMember handles DELETE /api/v1/workspaces/:id/members/:userID.
func (h *WorkspaceHandler) RemoveMember(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	workspaceID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_WORKSPACE_ID",
			"Invalid workspace ID format",
		)
	}

	memberID, err := uuid.ParseUUID(c.Param("userID"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_USER_ID",
			"Invalid user ID format",
		)
	}

	removeErr := h.workspaceService.RemoveMember(c.Request().Context(), userID, workspaceID, memberID)
	if removeErr != nil {
		return httpserver.RespondError(c, removeErr)
	}

	return httpserver.RespondNoContent(c)
}

// CreateCollection handles POST /api/v1/workspaces/:id/collections.
func (h *WorkspaceHandler) CreateCollection(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	workspaceID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_WORKSPACE_ID",
			"Invalid workspace ID format",
		)
	}

	var req CreateCollectionRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
		)
	}

	if len(req.Name) > maxCollectionNameLength {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"VALIDATION_ERROR",
			"Collection name must be at most 100 characters",
		)
	}

	col, err := h.workspaceService.CreateCollection(c.Request().Context(), userID, workspaceID, req.Name)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, ToCollectionResponse(col))
}

// ListCollections handles GET /api/v1/workspaces/:id/collections.
func (h *WorkspaceHandler) ListCollections(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	workspaceID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_WORKSPACE_ID",
			"Invalid workspace ID format",
		)
	}

	cols, err := h.workspaceService.ListCollections(c.Request().Context(), userID, workspaceID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	responses := make([]CollectionResponse, 0, len(cols))
	for _, col := range cols {
		responses = append(responses, ToCollectionResponse(col))
	}

	return httpserver.RespondOK(c, CollectionListResponse{
		Collections: responses,
		Total:       len(responses),
	})
}

// ToWorkspaceResponse converts a workspace to its API representation.
func ToWorkspaceResponse(ws *workspace.Workspace) WorkspaceResponse {
	return WorkspaceResponse{
		ID:        ws.ID(),
		Name:      ws.Name(),
		OwnerID:   ws.OwnerID(),
		CreatedAt: ws.CreatedAt().Format(time.RFC3339),
		UpdatedAt: ws.UpdatedAt().Format(time.RFC3339),
	}
}

// ToMemberResponse converts a workspace member to its API representation.
func ToMemberResponse(m workspace.Member) MemberResponse {
	return MemberResponse{
		UserID:   m.UserID(),
		Role:     string(m.Role()),
		JoinedAt: m.JoinedAt().Format(time.RFC3339),
	}
}

// ToCollectionResponse converts a collection to its API representation.
func ToCollectionResponse(col *workspace.Collection) CollectionResponse {
	return CollectionResponse{
		ID:          col.ID(),
		WorkspaceID: col.WorkspaceID(),
		Name:        col.Name(),
		CreatedAt:   col.CreatedAt().Format(time.RFC3339),
		UpdatedAt:   col.UpdatedAt().Format(time.RFC3339),
	}
}

// MockWorkspaceService is a mock implementation of WorkspaceService for testing.
type MockWorkspaceService struct {
	workspaces   map[uuid.UUID]*workspace.Workspace
	members      map[uuid.UUID][]workspace.Member
	collections  map[uuid.UUID][]*workspace.Collection
	usersByEmail map[string]uuid.UUID
}

// NewMockWorkspaceService creates a new mock workspace service.
func NewMockWorkspaceService() *MockWorkspaceService {
	return &MockWorkspaceService{
		workspaces:   make(map[uuid.UUID]*workspace.Workspace),
		members:      make(map[uuid.UUID][]workspace.Member),
		collections:  make(map[uuid.UUID][]*workspace.Collection),
		usersByEmail: make(map[string]uuid.UUID),
	}
}

// AddWorkspace adds a workspace to the mock service.
func (m *MockWorkspaceService) AddWorkspace(ws *workspace.Workspace) {
	m.workspaces[ws.ID()] = ws
}

// RegisterEmail maps an email address to a user ID in the mock directory.
func (m *MockWorkspaceService) RegisterEmail(email string, userID uuid.UUID) {
	m.usersByEmail[email] = userID
}

// AddMemberToMock puts a member record into the mock service directly.
func (m *MockWorkspaceService) AddMemberToMock(member workspace.Member) {
	m.members[member.WorkspaceID()] = append(m.members[member.WorkspaceID()], member)
}

func (m *MockWorkspaceService) visible(ws *workspace.Workspace, userID uuid.UUID) bool {
	if ws.IsOwnedBy(userID) {
		return true
	}
	for _, member := range m.members[ws.ID()] {
		if member.UserID() == userID {
			return true
		}
	}
	return false
}

// CreateWorkspace implements WorkspaceService.
func (m *MockWorkspaceService) CreateWorkspace(
	_ context.Context,
	ownerID uuid.UUID,
	name string,
) (*workspace.Workspace, error) {
	ws, err := workspace.NewWorkspace(name, ownerID)
	if err != nil {
		return nil, err
	}
	m.workspaces[ws.ID()] = ws
	return ws, nil
}

// GetWorkspace implements WorkspaceService.
func (m *MockWorkspaceService) GetWorkspace(
	_ context.Context,
	userID, workspaceID uuid.UUID,
) (*workspace.Workspace, error) {
	ws, ok := m.workspaces[workspaceID]
	if !ok || !m.visible(ws, userID) {
		return nil, errs.ErrNotFound
	}
	return ws, nil
}

// AddMember implements WorkspaceService.
func (m *MockWorkspaceService) AddMember(
	_ context.Context,
	actorID, workspaceID, userID uuid.UUID,
	role workspace.Role,
) error {
	ws, ok := m.workspaces[workspaceID]
	if !ok {
		return errs.ErrNotFound
	}
	if !ws.IsOwnedBy(actorID) {
		return errs.ErrForbidden
	}
	m.members[workspaceID] = append(m.members[workspaceID], workspace.NewMember(userID, workspaceID, role))
	return nil
}

// AddMemberByEmail implements WorkspaceService.
func (m *MockWorkspaceService) AddMemberByEmail(
	ctx context.Context,
	actorID, workspaceID uuid.UUID,
	email string,
	role workspace.Role,
) (uuid.UUID, error) {
	userID, ok := m.usersByEmail[email]
	if !ok {
		return "", errs.ErrNotFound
	}
	if err := m.AddMember(ctx, actorID, workspaceID, userID, role); err != nil {
		return "", err
	}
	return userID, nil
}

// RemoveMember implements WorkspaceService.
func (m *MockWorkspaceService) RemoveMember(
	_ context.Context,
	actorID, workspaceID, userID uuid.UUID,
) error {
	ws, ok := m.workspaces[workspaceID]
	if !ok {
		return errs.ErrNotFound
	}
	if !ws.IsOwnedBy(actorID) {
		return errs.ErrForbidden
	}
	kept := m.members[workspaceID][:0]
	for _, member := range m.members[workspaceID] {
		if member.UserID() != userID {
			kept = append(kept, member)
		}
	}
	m.members[workspaceID] = kept
	return nil
}

// ListMembers implements WorkspaceService.
func (m *MockWorkspaceService) ListMembers(
	_ context.Context,
	userID, workspaceID uuid.UUID,
) ([]workspace.Member, error) {
	ws, ok := m.workspaces[workspaceID]
	if !ok || !m.visible(ws, userID) {
		return nil, errs.ErrNotFound
	}
	return m.members[workspaceID], nil
}

// CreateCollection implements WorkspaceService.
func (m *MockWorkspaceService) CreateCollection(
	_ context.Context,
	actorID, workspaceID uuid.UUID,
	name string,
) (*workspace.Collection, error) {
	ws, ok := m.workspaces[workspaceID]
	if !ok || !m.visible(ws, actorID) {
		return nil, errs.ErrNotFound
	}
	col, err := workspace.NewCollection(ws.ID(), name)
	if err != nil {
		return nil, err
	}
	m.collections[workspaceID] = append(m.collections[workspaceID], col)
	return col, nil
}

// ListCollections implements WorkspaceService.
func (m *MockWorkspaceService) ListCollections(
	_ context.Context,
	userID, workspaceID uuid.UUID,
) ([]*workspace.Collection, error) {
	ws, ok := m.workspaces[workspaceID]
	if !ok || !m.visible(ws, userID) {
		return nil, errs.ErrNotFound
	}
	return m.collections[workspaceID], nil
}
