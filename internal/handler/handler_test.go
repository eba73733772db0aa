package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/middleware"
	"github.com/noah-isme/libstats-api/internal/models"
	"github.com/noah-isme/libstats-api/internal/service"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func superAdminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin", Roles: []string{string(models.RoleSuperAdmin)}}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

type submissionServiceMock struct {
	submitResp    *dto.SubmissionResponse
	submitErr     error
	lastCategory  string
	lastInstitute int64
	lastYear      int
	lastRequest   dto.SubmitCategoryRequest
}

func (m *submissionServiceMock) Get(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int, category string) (*models.CategoryRecord, error) {
	return &models.CategoryRecord{Category: models.Category(category)}, nil
}

func (m *submissionServiceMock) Submit(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int, category string, req dto.SubmitCategoryRequest) (*dto.SubmissionResponse, error) {
	m.lastInstitute = institutionID
	m.lastYear = year
	m.lastCategory = category
	m.lastRequest = req
	return m.submitResp, m.submitErr
}

func TestCategoryHandlerSubmit(t *testing.T) {
	mockSvc := &submissionServiceMock{submitResp: &dto.SubmissionResponse{Record: &models.CategoryRecord{ID: 9}}}
	handler := NewCategoryHandler(mockSvc, nil, nil)

	c, w := newGinContext(http.MethodPut, "/institutions/42/years/2025/categories/serials", []byte(`{"values":{"purchased_print_chinese":4}}`))
	c.Params = gin.Params{{Key: "institutionId", Value: "42"}, {Key: "year", Value: "2025"}, {Key: "category", Value: "serials"}}
	c.Set(middleware.ContextUserKey, superAdminClaims())

	handler.Submit(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), mockSvc.lastInstitute)
	assert.Equal(t, 2025, mockSvc.lastYear)
	assert.Equal(t, "serials", mockSvc.lastCategory)
	assert.Equal(t, 4.0, *mockSvc.lastRequest.Values.Get("purchased_print_chinese"))
}

func TestCategoryHandlerSubmitWindowClosed(t *testing.T) {
	mockSvc := &submissionServiceMock{submitErr: appErrors.ErrWindowClosed}
	handler := NewCategoryHandler(mockSvc, nil, nil)

	c, w := newGinContext(http.MethodPut, "/institutions/42/years/2025/categories/serials", []byte(`{"values":{}}`))
	c.Params = gin.Params{{Key: "institutionId", Value: "42"}, {Key: "year", Value: "2025"}, {Key: "category", Value: "serials"}}

	handler.Submit(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "WINDOW_CLOSED")
}

func TestCategoryHandlerRejectsBadPath(t *testing.T) {
	handler := NewCategoryHandler(&submissionServiceMock{}, nil, nil)

	c, w := newGinContext(http.MethodPut, "/institutions/abc/years/2025/categories/serials", []byte(`{"values":{}}`))
	c.Params = gin.Params{{Key: "institutionId", Value: "abc"}, {Key: "year", Value: "2025"}}

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

type eventServiceMock struct {
	scheduleErr error
	lastFilter  models.ScheduledEventFilter
}

func (m *eventServiceMock) Schedule(ctx context.Context, actor *models.JWTClaims, req dto.ScheduleEventRequest) (*models.ScheduledEvent, error) {
	if m.scheduleErr != nil {
		return nil, m.scheduleErr
	}
	return &models.ScheduledEvent{ID: 1, EventType: models.EventType(req.EventType), Year: req.Year, Status: models.EventStatusPending}, nil
}

func (m *eventServiceMock) Get(ctx context.Context, actor *models.JWTClaims, id int64) (*models.ScheduledEvent, error) {
	return &models.ScheduledEvent{ID: id}, nil
}

func (m *eventServiceMock) List(ctx context.Context, actor *models.JWTClaims, filter models.ScheduledEventFilter) ([]models.ScheduledEvent, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.ScheduledEvent{{ID: 1}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *eventServiceMock) Cancel(ctx context.Context, actor *models.JWTClaims, id int64) (*models.ScheduledEvent, error) {
	return &models.ScheduledEvent{ID: id, Status: models.EventStatusCancelled}, nil
}

func (m *eventServiceMock) Execute(ctx context.Context, actor *models.JWTClaims, id int64) (*dto.EventExecution, error) {
	return &dto.EventExecution{Event: &models.ScheduledEvent{ID: id}, Outcome: dto.ExecutionApplied}, nil
}

func (m *eventServiceMock) RunDue(ctx context.Context, actor *models.JWTClaims) (*dto.RunDueResponse, error) {
	return &dto.RunDueResponse{RanAt: time.Now()}, nil
}

func TestEventHandlerScheduleConflict(t *testing.T) {
	existing := &models.ScheduledEvent{ID: 3, EventType: models.EventTypeFormOpening, Year: 2025}
	handler := NewEventHandler(&eventServiceMock{scheduleErr: appErrors.WithDetails(appErrors.ErrConflict, "pending event exists", existing)})

	payload := []byte(`{"eventType":"FORM_OPENING","year":2025,"scheduledDate":"2025-03-01T00:00:00Z"}`)
	c, w := newGinContext(http.MethodPost, "/events", payload)
	c.Set(middleware.ContextUserKey, superAdminClaims())

	handler.Schedule(c)
	require.Equal(t, http.StatusConflict, w.Code)
	envelope := decodeEnvelope(t, w)
	var appErr struct {
		Details models.ScheduledEvent `json:"details"`
	}
	require.NoError(t, json.Unmarshal(envelope["error"], &appErr))
	assert.Equal(t, int64(3), appErr.Details.ID)
}

func TestEventHandlerListParsesFilter(t *testing.T) {
	mockSvc := &eventServiceMock{}
	handler := NewEventHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/events?status=PENDING&eventType=form_closing&year=2025&page=2", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.Status)
	assert.Equal(t, models.EventStatusPending, *mockSvc.lastFilter.Status)
	assert.Equal(t, models.EventTypeFormClosing, *mockSvc.lastFilter.EventType)
	assert.Equal(t, 2025, *mockSvc.lastFilter.Year)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Contains(t, w.Body.String(), `"pagination"`)

	c, w = newGinContext(http.MethodGet, "/events?eventType=PARTY", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type aggregateServiceMock struct{}

func (aggregateServiceMock) Aggregate(ctx context.Context, actor *models.JWTClaims, year int, category string) (*models.Aggregate, error) {
	return &models.Aggregate{Year: year, Category: models.Category(category), Participants: 2, Filtered: true}, nil
}

func TestAggregateHandlerAddsMeta(t *testing.T) {
	handler := NewAggregateHandler(aggregateServiceMock{})
	c, w := newGinContext(http.MethodGet, "/aggregates/2024/serials", nil)
	c.Params = gin.Params{{Key: "year", Value: "2024"}, {Key: "category", Value: "serials"}}

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope["meta"], &meta))
	assert.Equal(t, 2.0, meta["participants"])
	assert.Equal(t, true, meta["filtered"])
}

type exportServiceMock struct {
	download    *service.ExportDownload
	downloadErr error
}

func (m *exportServiceMock) Request(ctx context.Context, actor *models.JWTClaims, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	return &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}, nil
}

func (m *exportServiceMock) Status(ctx context.Context, actor *models.JWTClaims, id string) (*dto.ExportStatusResponse, error) {
	return &dto.ExportStatusResponse{ID: id, Status: models.ExportStatusFinished}, nil
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

func TestExportHandlerRequestAccepted(t *testing.T) {
	handler := NewExportHandler(&exportServiceMock{}, nil)
	c, w := newGinContext(http.MethodPost, "/exports", []byte(`{"category":"serials","year":2024,"format":"csv"}`))
	c.Set(middleware.ContextUserKey, superAdminClaims())

	handler.Request(c)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	handler := NewExportHandler(&exportServiceMock{download: &service.ExportDownload{
		Body:        io.NopCloser(strings.NewReader("Institution,grand_total\n")),
		Filename:    "serials_2024.csv",
		ContentType: "text/csv",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}, nil)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "serials_2024.csv")
	assert.Equal(t, "Institution,grand_total\n", w.Body.String())
}

func TestExportHandlerDownloadForbidden(t *testing.T) {
	handler := NewExportHandler(&exportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")}, nil)
	c, w := newGinContext(http.MethodGet, "/export/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestCategoryHandlerDefinitions(t *testing.T) {
	handler := NewCategoryHandler(nil, nil, nil)
	c, w := newGinContext(http.MethodGet, "/categories", nil)

	handler.Definitions(c)
	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data []categoryDescriptor `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, len(models.Categories()))
	for _, item := range envelope.Data {
		assert.NotEmpty(t, item.InputFields, item.Category)
	}
}
