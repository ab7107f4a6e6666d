package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/progress-dashboard/internal/dto"
	"github.com/noah-isme/progress-dashboard/internal/middleware"
	"github.com/noah-isme/progress-dashboard/internal/models"
	"github.com/noah-isme/progress-dashboard/internal/progress"
	"github.com/noah-isme/progress-dashboard/internal/service"
	appErrors "github.com/noah-isme/progress-dashboard/pkg/errors"
)

type fakeDashboardSrv struct {
	courses    []models.CourseRef
	catalog    *dto.CatalogResponse
	payload    *dto.DashboardResponse
	hit        bool
	err        error
	lastInputs service.DashboardInputs
	lastModule string
}

func (f *fakeDashboardSrv) Courses(context.Context) ([]models.CourseRef, error) {
	return f.courses, f.err
}

func (f *fakeDashboardSrv) Catalog(_ context.Context, _ string, itemModuleID string) (*dto.CatalogResponse, error) {
	f.lastModule = itemModuleID
	return f.catalog, f.err
}

func (f *fakeDashboardSrv) Snapshot(_ context.Context, in service.DashboardInputs) (*dto.DashboardResponse, bool, error) {
	f.lastInputs = in
	return f.payload, f.hit, f.err
}

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *appErrors.Error       `json:"error"`
}

func newTestContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, rec
}

func TestDashboardHandlerRequiresCourse(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := newTestContext("/dashboard")

	handler.Dashboard(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandlerParsesSelection(t *testing.T) {
	srv := &fakeDashboardSrv{payload: &dto.DashboardResponse{StoreID: "store-1"}, hit: true}
	handler := NewDashboardHandler(srv)
	c, rec := newTestContext("/dashboard?course_id=1&module_ids=&student_id=X&item_ids=a,+b&from=2024-01-01&to=2024-02-01")

	handler.Dashboard(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", srv.lastInputs.CourseID)
	assert.NotNil(t, srv.lastInputs.ModuleIDs)
	assert.Empty(t, srv.lastInputs.ModuleIDs)
	assert.Equal(t, []string{"a", "b"}, srv.lastInputs.ItemIDs)
	assert.Equal(t, "X", srv.lastInputs.StudentID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), srv.lastInputs.From)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "store-1", envelope.Data["storeId"])
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestDashboardHandlerAbsentListsSelectDefaults(t *testing.T) {
	srv := &fakeDashboardSrv{payload: &dto.DashboardResponse{}}
	handler := NewDashboardHandler(srv)
	c, rec := newTestContext("/dashboard?course_id=1")
	middleware.WithResponseMeta()(c)

	handler.Dashboard(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, srv.lastInputs.ModuleIDs)
	assert.Nil(t, srv.lastInputs.ItemIDs)
	assert.True(t, srv.lastInputs.From.IsZero())
}

func TestDashboardHandlerInvalidDate(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := newTestContext("/dashboard?course_id=1&from=01-01-2024")

	handler.Dashboard(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandlerDataInconsistency(t *testing.T) {
	cause := &progress.DataInconsistencyError{CourseID: "1", Detail: "two start dates"}
	srv := &fakeDashboardSrv{err: appErrors.Wrap(cause, appErrors.ErrDataInconsistency.Code, appErrors.ErrDataInconsistency.Status, cause.Error())}
	handler := NewDashboardHandler(srv)
	c, rec := newTestContext("/dashboard?course_id=1")

	handler.Dashboard(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "DATA_INCONSISTENCY", envelope.Error.Code)
}

func TestDashboardHandlerCatalog(t *testing.T) {
	srv := &fakeDashboardSrv{catalog: &dto.CatalogResponse{CourseID: "1", ItemModuleID: "m2"}}
	handler := NewDashboardHandler(srv)
	c, rec := newTestContext("/courses/1/catalog?item_module_id=m2")
	c.Params = gin.Params{{Key: "courseId", Value: "1"}}

	handler.Catalog(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m2", srv.lastModule)
}

func TestDashboardHandlerCoursesNotLoaded(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.ErrStoreNotLoaded})
	c, rec := newTestContext("/courses")

	handler.Courses(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
