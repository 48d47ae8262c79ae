package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildquote/matchline/internal/clock"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeMatchingService struct {
	summary    *matchingdomain.RunSummary
	result     *matchingdomain.MatchResult
	approveErr error
	rejectErr  error
	getErr     error
}

func (f *fakeMatchingService) Run(ctx context.Context, req matchingdomain.RunRequest) (*matchingdomain.RunSummary, error) {
	if f.summary == nil {
		return nil, matchingdomain.ErrValidation
	}
	return f.summary, nil
}

func (f *fakeMatchingService) Approve(ctx context.Context, id snowflake.ID, actor string) (*mappingdomain.ItemMapping, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return &mappingdomain.ItemMapping{ID: id, CreatedBy: actor}, nil
}

func (f *fakeMatchingService) Reject(ctx context.Context, id snowflake.ID, actor, reason string) error {
	return f.rejectErr
}

func (f *fakeMatchingService) GetResult(ctx context.Context, id snowflake.ID) (*matchingdomain.MatchResult, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.result, nil
}

func (f *fakeMatchingService) ListByRun(ctx context.Context, runID string) ([]matchingdomain.MatchResult, error) {
	if f.result == nil {
		return nil, nil
	}
	return []matchingdomain.MatchResult{*f.result}, nil
}

type fakeItemsRepo struct {
	item *itemdomain.Item
}

func (f *fakeItemsRepo) Insert(ctx context.Context, db *gorm.DB, item *itemdomain.Item) error {
	f.item = item
	return nil
}

func (f *fakeItemsRepo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*itemdomain.Item, error) {
	if f.item == nil || f.item.ID != id {
		return nil, itemdomain.ErrNotFound
	}
	return f.item, nil
}

func (f *fakeItemsRepo) ListByProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, limit int) ([]itemdomain.Item, error) {
	if f.item == nil {
		return nil, nil
	}
	return []itemdomain.Item{*f.item}, nil
}

func newTestServer(t *testing.T, matching matchingdomain.Service) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)

	s := &Server{
		engine:      engine,
		clock:       clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		genID:       node,
		matchingSvc: matching,
		itemsRepo:   &fakeItemsRepo{},
	}
	s.registerAPIRoutes()
	return s
}

func doJSON(t *testing.T, s *Server, method, path, orgID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if orgID != "" {
		req.Header.Set(HeaderOrg, orgID)
	}

	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestMissingOrgHeaderIsRejected(t *testing.T) {
	s := newTestServer(t, &fakeMatchingService{})

	rec := doJSON(t, s, http.MethodPost, "/v1/match-runs", "", gin.H{"project_id": "1"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "missing_org_header", payload.Errors[0].Code)
}

func TestApproveVetoedResultReturnsConflict(t *testing.T) {
	fake := &fakeMatchingService{
		approveErr: fmt.Errorf("%w: result 42 carries critical-veto flags [UNIT_CONFLICT]",
			matchingdomain.ErrCriticalFlagVeto),
	}
	s := newTestServer(t, fake)

	rec := doJSON(t, s, http.MethodPost, "/v1/match-results/42/approve", "7001", gin.H{"actor": "reviewer@example.com"})

	require.Equal(t, http.StatusConflict, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "critical_flag_veto", payload.Type)
	assert.Contains(t, payload.Message, "UNIT_CONFLICT")
}

func TestApproveCleanResultReturnsMapping(t *testing.T) {
	s := newTestServer(t, &fakeMatchingService{})

	rec := doJSON(t, s, http.MethodPost, "/v1/match-results/42/approve", "7001", gin.H{"actor": "reviewer@example.com"})

	require.Equal(t, http.StatusOK, rec.Code)
	var mapping mappingdomain.ItemMapping
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mapping))
	assert.Equal(t, "reviewer@example.com", mapping.CreatedBy)
}

func TestGetItemNotFoundReturns404(t *testing.T) {
	s := newTestServer(t, &fakeMatchingService{})

	rec := doJSON(t, s, http.MethodGet, "/v1/items/42", "7001", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "not_found", payload.Type)
}

func TestGetMatchResultNotFound(t *testing.T) {
	s := newTestServer(t, &fakeMatchingService{getErr: matchingdomain.ErrNotFound})

	rec := doJSON(t, s, http.MethodGet, "/v1/match-results/42", "7001", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "not_found", payload.Type)
}

func TestCreateMatchRunReturnsSummary(t *testing.T) {
	fake := &fakeMatchingService{
		summary: &matchingdomain.RunSummary{
			RunID:        "01J0000000000000000000TEST",
			AutoAccepted: 2,
			ManualReview: 1,
		},
	}
	s := newTestServer(t, fake)

	rec := doJSON(t, s, http.MethodPost, "/v1/match-runs", "7001", gin.H{"project_id": "9001"})

	require.Equal(t, http.StatusOK, rec.Code)
	var summary matchingdomain.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, fake.summary.RunID, summary.RunID)
	assert.Equal(t, 2, summary.AutoAccepted)
}

func TestCreateMatchRunValidatesProjectID(t *testing.T) {
	s := newTestServer(t, &fakeMatchingService{})

	rec := doJSON(t, s, http.MethodPost, "/v1/match-runs", "7001", gin.H{"project_id": "not-a-snowflake"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_project_id", payload.Errors[0].Code)
}

func TestRejectReturnsNoContent(t *testing.T) {
	s := newTestServer(t, &fakeMatchingService{})

	rec := doJSON(t, s, http.MethodPost, "/v1/match-results/42/reject", "7001",
		gin.H{"actor": "reviewer@example.com", "reason": "wrong vendor line"})

	require.Equal(t, http.StatusNoContent, rec.Code)
}
