package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/progress-dashboard/internal/models"
	"github.com/noah-isme/progress-dashboard/internal/progress"
	appErrors "github.com/noah-isme/progress-dashboard/pkg/errors"
	"github.com/noah-isme/progress-dashboard/pkg/export"
)

var studentTableHeaders = []string{"module_name", "item_title", "item_type", "status"}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportResult is a rendered file ready to be served or written.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders engine outputs as downloadable files.
type ExportService struct {
	stores storeProvider
	csv    tableRenderer
	logger *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(stores storeProvider, csv tableRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{stores: stores, csv: csv, logger: logger}
}

// StudentTableCSV renders the item table of one student in a course. Unknown ids yield
// a header-only file.
func (s *ExportService) StudentTableCSV(ctx context.Context, courseID, studentID string) (*ExportResult, error) {
	if strings.TrimSpace(courseID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	if strings.TrimSpace(studentID) == "" || studentID == models.AllStudents {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a single student id is required")
	}
	store, err := s.stores.Current()
	if err != nil {
		return nil, err
	}

	view := progress.Narrow(store.view(), models.SelectionScope{CourseID: courseID, StudentID: studentID})
	rows := progress.StudentTable(view)
	table := export.Table{Headers: studentTableHeaders, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{r.ModuleName, r.ItemTitle, r.ItemType, string(r.Status)})
	}

	data, err := s.csv.Render(table)
	if err != nil {
		return nil, fmt.Errorf("render student table: %w", err)
	}

	courseName := progress.NormalizeCourseName(progress.BuildCatalog(view).Courses.Label(courseID))
	if courseName == "" {
		courseName = "course" + progress.NormalizeCourseName(courseID)
	}
	filename := fmt.Sprintf("%s_%s_items.csv", courseName, progress.NormalizeCourseName(studentID))

	s.logger.Info("student table exported",
		zap.String("course_id", courseID),
		zap.String("student_id", studentID),
		zap.Int("rows", len(rows)),
	)
	return &ExportResult{Filename: filename, ContentType: "text/csv", Data: data, Rows: len(rows)}, nil
}
