package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/progress-dashboard/internal/service"
	"github.com/noah-isme/progress-dashboard/pkg/response"
)

type exportService interface {
	StudentTableCSV(ctx context.Context, courseID, studentID string) (*service.ExportResult, error)
}

// ExportHandler serves file downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// StudentTable godoc
// @Summary Download the item table of a student as CSV
// @Tags Export
// @Produce text/csv
// @Param courseId path string true "Course ID"
// @Param studentId path string true "Student ID"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /courses/{courseId}/students/{studentId}/table.csv [get]
func (h *ExportHandler) StudentTable(c *gin.Context) {
	result, err := h.service.StudentTableCSV(c.Request.Context(), c.Param("courseId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}
