package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/progress-dashboard/internal/dto"
	"github.com/noah-isme/progress-dashboard/internal/middleware"
	"github.com/noah-isme/progress-dashboard/internal/models"
	"github.com/noah-isme/progress-dashboard/internal/service"
	appErrors "github.com/noah-isme/progress-dashboard/pkg/errors"
	"github.com/noah-isme/progress-dashboard/pkg/response"
)

type dashboardService interface {
	Courses(ctx context.Context) ([]models.CourseRef, error)
	Catalog(ctx context.Context, courseID, itemModuleID string) (*dto.CatalogResponse, error)
	Snapshot(ctx context.Context, inputs service.DashboardInputs) (*dto.DashboardResponse, bool, error)
}

// DashboardHandler wires the dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Courses godoc
// @Summary List courses
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /courses [get]
func (h *DashboardHandler) Courses(c *gin.Context) {
	courses, err := h.service.Courses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, courses)
}

// Catalog godoc
// @Summary Selectable modules, items and students of a course
// @Tags Dashboard
// @Produce json
// @Param courseId path string true "Course ID"
// @Param item_module_id query string false "Module whose items are listed. Defaults to the first module"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/catalog [get]
func (h *DashboardHandler) Catalog(c *gin.Context) {
	catalog, err := h.service.Catalog(c.Request.Context(), c.Param("courseId"), strings.TrimSpace(c.Query("item_module_id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, catalog)
}

// Dashboard godoc
// @Summary Dashboard statistics for a selection
// @Tags Dashboard
// @Produce json
// @Param course_id query string true "Course ID"
// @Param module_ids query string false "Comma separated module ids. Absent selects every module, empty selects none"
// @Param student_id query string false "Student ID or All"
// @Param item_module_id query string false "Module of the item tab. Defaults to the first module"
// @Param item_ids query string false "Comma separated item ids. Absent selects every item of the item module"
// @Param table_student_id query string false "Student of the item table"
// @Param from query string false "Timeline start (YYYY-MM-DD)"
// @Param to query string false "Timeline end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	var query dto.DashboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "course_id is required"))
		return
	}
	inputs, err := dashboardInputs(c, query)
	if err != nil {
		response.Error(c, err)
		return
	}

	start := time.Now()
	payload, cacheHit, err := h.service.Snapshot(c.Request.Context(), inputs)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.OK(c, payload, meta)
}

func dashboardInputs(c *gin.Context, q dto.DashboardQuery) (service.DashboardInputs, error) {
	inputs := service.DashboardInputs{
		CourseID:       strings.TrimSpace(q.CourseID),
		ModuleIDs:      listParam(c, "module_ids"),
		StudentID:      strings.TrimSpace(q.StudentID),
		FocusModuleID:  strings.TrimSpace(q.ItemModuleID),
		ItemIDs:        listParam(c, "item_ids"),
		TableStudentID: strings.TrimSpace(q.TableStudentID),
	}
	var err error
	if inputs.From, err = dateParam("from", q.From); err != nil {
		return inputs, err
	}
	if inputs.To, err = dateParam("to", q.To); err != nil {
		return inputs, err
	}
	return inputs, nil
}

// listParam distinguishes an absent list (nil) from a present but empty one.
func listParam(c *gin.Context, name string) []string {
	raw, ok := c.GetQuery(name)
	if !ok {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dateParam(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dto.DateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid "+name+" date, expected YYYY-MM-DD")
	}
	return t, nil
}
