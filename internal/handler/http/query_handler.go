// Package httphandler exposes the service layer over HTTP.
package httphandler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/query"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/infrastructure/httpserver"
	"github.com/lllypuk/querydeck/internal/middleware"
	"github.com/lllypuk/querydeck/internal/service"
)

// Validation constants.
const (
	maxQueryNameLength = 200
)

// ContentRequest carries the query document payload on the wire.
type ContentRequest struct {
	Version   int            `json:"version"`
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// CreateQueryRequest represents the request to create a query.
type CreateQueryRequest struct {
	CollectionID uuid.UUID      `json:"collection_id"`
	Name         string         `json:"name"`
	Content      ContentRequest `json:"content"`
}

// UpdateQueryRequest represents the request to update a query.
type UpdateQueryRequest struct {
	CollectionID uuid.UUID      `json:"collection_id"`
	Name         string         `json:"name"`
	Content      ContentRequest `json:"content"`
}

// QueryResponse represents a query item in API responses.
type QueryResponse struct {
	ID           uuid.UUID     `json:"id"`
	CollectionID uuid.UUID     `json:"collection_id"`
	Name         string        `json:"name"`
	Content      query.Content `json:"content"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
}

// QueryListResponse represents a list of queries in API responses.
type QueryListResponse struct {
	Queries []QueryResponse `json:"queries"`
	Total   int             `json:"total"`
}

// QueryCountResponse represents a count result.
type QueryCountResponse struct {
	Count int64 `json:"count"`
}

// RevisionAuthorResponse is the display identity of a revision's author.
// Empty when the author account no longer exists.
type RevisionAuthorResponse struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// RevisionResponse represents a query revision in API responses.
type RevisionResponse struct {
	ID        uuid.UUID              `json:"id"`
	QueryID   uuid.UUID              `json:"query_id"`
	Name      string                 `json:"name"`
	Content   query.Content          `json:"content"`
	CreatedBy uuid.UUID              `json:"created_by"`
	Author    RevisionAuthorResponse `json:"author"`
	CreatedAt string                 `json:"created_at"`
}

// RevisionListResponse represents a revision history in API responses.
type RevisionListResponse struct {
	Revisions []RevisionResponse `json:"revisions"`
	Total     int                `json:"total"`
}

// QueryService defines the interface for query operations.
// Declared on the consumer side per project guidelines.
type QueryService interface {
	// Create creates a query item and its first revision.
	Create(ctx context.Context, userID uuid.UUID, input service.CreateQueryInput) (*query.Item, error)

	// FindAll lists the query items visible to the user.
	FindAll(ctx context.Context, userID uuid.UUID) ([]*query.Item, error)

	// FindOne returns a single visible query item.
	FindOne(ctx context.Context, userID, itemID uuid.UUID) (*query.Item, error)

	// Update rewrites the mutable fields of a visible query item.
	Update(ctx context.Context, userID, itemID uuid.UUID, fields query.Fields) error

	// Remove deletes a query item owned by the user.
	Remove(ctx context.Context, userID, itemID uuid.UUID) error

	// Count counts visible query items.
	Count(ctx context.Context, userID uuid.UUID, ownOnly bool) (int64, error)

	// ListRevisions returns the revision history of a visible query item.
	ListRevisions(ctx context.Context, userID, itemID uuid.UUID) ([]service.RevisionView, error)

	// RestoreRevision rolls a query item back to a recorded snapshot.
	RestoreRevision(ctx context.Context, userID, revisionID uuid.UUID) (*query.Item, error)
}

// QueryHandler handles query-related HTTP requests.
type QueryHandler struct {
	queryService QueryService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(queryService QueryService) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
	}
}

// RegisterRoutes registers query routes with the router.
func (h *QueryHandler) RegisterRoutes(r *httpserver.Router) {
	r.Auth().POST("/queries", h.Create)
	r.Auth().GET("/queries", h.List)
	r.Auth().GET("/queries/count", h.Count)
	r.Auth().GET("/queries/:id", h.Get)
	r.Auth().PUT("/queries/:id", h.Update)
	r.Auth().DELETE("/queries/:id", h.Delete)
	r.Auth().GET("/queries/:id/revisions", h.ListRevisions)
	r.Auth().POST("/revisions/:id/restore", h.RestoreRevision)
}

// Create handles POST /api/v1/queries.
func (h *QueryHandler) Create(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	var req CreateQueryRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
		)
	}

	if len(req.Name) > maxQueryNameLength {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"VALIDATION_ERROR",
			"Query name must be at most 200 characters",
		)
	}

	item, err := h.queryService.Create(c.Request().Context(), userID, service.CreateQueryInput{
		CollectionID: req.CollectionID,
		Name:         req.Name,
		Content:      toContent(req.Content),
	})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, ToQueryResponse(item))
}

// List handles GET /api/v1/queries.
// Lists queries the user owns plus those shared with teams they belong to.
func (h *QueryHandler) List(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	items, err := h.queryService.FindAll(c.Request().Context(), userID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	responses := make([]QueryResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, ToQueryResponse(item))
	}

	return httpserver.RespondOK(c, QueryListResponse{
		Queries: responses,
		Total:   len(responses),
	})
}

// Count handles GET /api/v1/queries/count.
// With ?own=true, counts only queries in collections the user owns.
func (h *QueryHandler) Count(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	ownOnly := c.QueryParam("own") == "true"

	count, err := h.queryService.Count(c.Request().Context(), userID, ownOnly)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, QueryCountResponse{Count: count})
}

// Get handles GET /api/v1/queries/:id.
func (h *QueryHandler) Get(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	itemID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_QUERY_ID",
			"Invalid query ID format",
		)
	}

	item, err := h.queryService.FindOne(c.Request().Context(), userID, itemID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToQueryResponse(item))
}

// Update handles PUT /api/v1/queries/:id.
func (h *QueryHandler) Update(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	itemID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_QUERY_ID",
			"Invalid query ID format",
		)
	}

	var req UpdateQueryRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
		)
	}

	fields := query.Fields{
		CollectionID: req.CollectionID,
		Name:         req.Name,
		Content:      toContent(req.Content),
	}

	if updateErr := h.queryService.Update(c.Request().Context(), userID, itemID, fields); updateErr != nil {
		return httpserver.RespondError(c, updateErr)
	}

	return httpserver.RespondNoContent(c)
}

// Delete handles DELETE /api/v1/queries/:id.
// Removal of an item the user merely sees through team sharing is a silent
// no-op, so 204 does not prove the item is gone.
func (h *QueryHandler) Delete(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	itemID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_QUERY_ID",
			"Invalid query ID format",
		)
	}

	if removeErr := h.queryService.Remove(c.Request().Context(), userID, itemID); removeErr != nil {
		return httpserver.RespondError(c, removeErr)
	}

	return httpserver.RespondNoContent(c)
}

// ListRevisions handles GET /api/v1/queries/:id/revisions.
// Revisions come back oldest first.
func (h *QueryHandler) ListRevisions(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	itemID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_QUERY_ID",
			"Invalid query ID format",
		)
	}

	views, err := h.queryService.ListRevisions(c.Request().Context(), userID, itemID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	responses := make([]RevisionResponse, 0, len(views))
	for _, view := range views {
		responses = append(responses, ToRevisionResponse(view))
	}

	return httpserver.RespondOK(c, RevisionListResponse{
		Revisions: responses,
		Total:     len(responses),
	})
}

// RestoreRevision handles POST /api/v1/revisions/:id/restore.
func (h *QueryHandler) RestoreRevision(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	revisionID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_REVISION_ID",
			"Invalid revision ID format",
		)
	}

	item, err := h.queryService.RestoreRevision(c.Request().Context(), userID, revisionID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToQueryResponse(item))
}

// ToQueryResponse converts a query item to its API representation.
func ToQueryResponse(item *query.Item) QueryResponse {
	return QueryResponse{
		ID:           item.ID(),
		CollectionID: item.CollectionID(),
		Name:         item.Name(),
		Content:      item.Content(),
		CreatedAt:    item.CreatedAt().Format(time.RFC3339),
		UpdatedAt:    item.UpdatedAt().Format(time.RFC3339),
	}
}

// ToRevisionResponse converts an annotated revision to its API representation.
func ToRevisionResponse(view service.RevisionView) RevisionResponse {
	rev := view.Revision
	return RevisionResponse{
		ID:        rev.ID(),
		QueryID:   rev.QueryItemID(),
		Name:      rev.Name(),
		Content:   rev.Content(),
		CreatedBy: rev.CreatedBy(),
		Author: RevisionAuthorResponse{
			FirstName: view.FirstName,
			LastName:  view.LastName,
			Email:     view.Email,
		},
		CreatedAt: rev.CreatedAt().Format(time.RFC3339),
	}
}

func toContent(req ContentRequest) query.Content {
	return query.Content{
		Version:   req.Version,
		Query:     req.Query,
		Variables: req.Variables,
	}
}

// MockQueryService is a mock implementation of QueryService for testing.
type MockQueryService struct {
	items     map[uuid.UUID]*query.Item
	revisions map[uuid.UUID][]service.RevisionView
	quotaHit  bool
}

// NewMockQueryService creates a new mock query service.
func NewMockQueryService() *MockQueryService {
	return &MockQueryService{
		items:     make(map[uuid.UUID]*query.Item),
		revisions: make(map[uuid.UUID][]service.RevisionView),
	}
}

// AddItem adds a query item to the mock service.
func (m *MockQueryService) AddItem(item *query.Item) {
	m.items[item.ID()] = item
}

// AddRevision adds a revision view to the mock service.
func (m *MockQueryService) AddRevision(view service.RevisionView) {
	itemID := view.Revision.QueryItemID()
	m.revisions[itemID] = append(m.revisions[itemID], view)
}

// FailQuota makes subsequent Create calls fail with a quota error.
func (m *MockQueryService) FailQuota() {
	m.quotaHit = true
}

// Create implements QueryService.
func (m *MockQueryService) Create(
	_ context.Context,
	_ uuid.UUID,
	input service.CreateQueryInput,
) (*query.Item, error) {
	if m.quotaHit {
		return nil, errs.ErrQuotaExceeded
	}
	item, err := query.NewItem(input.CollectionID, input.Name, input.Content)
	if err != nil {
		return nil, err
	}
	m.items[item.ID()] = item
	return item, nil
}

// FindAll implements QueryService.
func (m *MockQueryService) FindAll(_ context.Context, _ uuid.UUID) ([]*query.Item, error) {
	all := make([]*query.Item, 0, len(m.items))
	for _, item := range m.items {
		all = append(all, item)
	}
	return all, nil
}

// FindOne implements QueryService.
func (m *MockQueryService) FindOne(_ context.Context, _, itemID uuid.UUID) (*query.Item, error) {
	item, ok := m.items[itemID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return item, nil
}

// Update implements QueryService.
func (m *MockQueryService) Update(_ context.Context, _, itemID uuid.UUID, _ query.Fields) error {
	if _, ok := m.items[itemID]; !ok {
		return errs.ErrNotFound
	}
	return nil
}

// Remove implements QueryService.
func (m *MockQueryService) Remove(_ context.Context, _, itemID uuid.UUID) error {
	delete(m.items, itemID)
	return nil
}

// Count implements QueryService.
func (m *MockQueryService) Count(_ context.Context, _ uuid.UUID, _ bool) (int64, error) {
	return int64(len(m.items)), nil
}

// ListRevisions implements QueryService.
func (m *MockQueryService) ListRevisions(
	_ context.Context,
	_, itemID uuid.UUID,
) ([]service.RevisionView, error) {
	if _, ok := m.items[itemID]; !ok {
		return nil, errs.ErrNotFound
	}
	return m.revisions[itemID], nil
}

// RestoreRevision implements QueryService.
func (m *MockQueryService) RestoreRevision(
	_ context.Context,
	_, revisionID uuid.UUID,
) (*query.Item, error) {
	for itemID, views := range m.revisions {
		for _, view := range views {
			if view.Revision.ID() == revisionID {
				item, ok := m.items[itemID]
				if !ok {
					return nil, errs.ErrNotFound
				}
				return item, nil
			}
		}
	}
	return nil, errs.ErrNotFound
}
