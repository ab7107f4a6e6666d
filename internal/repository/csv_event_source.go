package repository

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/noah-isme/progress-dashboard/internal/models"
)

// ProgressColumns lists the columns every progress export must carry.
var ProgressColumns = []string{
	"course_id",
	"course_name",
	"module_id",
	"module_name",
	"items_id",
	"items_title",
	"items_type",
	"items_position",
	"item_cp_req_type",
	"item_cp_req_completed",
	"state",
	"completed_at",
	"student_id",
	"student_name",
	"course_start_date",
}

// CSVEventSource reads raw progress rows from a CSV export with a header line. Columns
// are located by header name; extra columns are ignored.
type CSVEventSource struct {
	path   string
	reader io.Reader
}

// NewCSVEventSource reads from the file at path on every Load.
func NewCSVEventSource(path string) *CSVEventSource {
	return &CSVEventSource{path: path}
}

// NewCSVReaderSource reads once from r.
func NewCSVReaderSource(r io.Reader) *CSVEventSource {
	return &CSVEventSource{reader: r}
}

// Name identifies the source in logs.
func (s *CSVEventSource) Name() string {
	if s.path != "" {
		return "csv:" + s.path
	}
	return "csv:reader"
}

// Load returns every data row. A missing required column fails the whole load; values
// are not validated here.
func (s *CSVEventSource) Load(ctx context.Context) ([]models.RawProgressRow, error) {
	r := s.reader
	if r == nil {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("open progress csv: %w", err)
		}
		defer f.Close()
		r = f
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("progress csv is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	var missing []string
	for _, col := range ProgressColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("progress csv missing columns: %s", strings.Join(missing, ", "))
	}

	var rows []models.RawProgressRow
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		field := func(col string) sql.NullString {
			i := index[col]
			if i >= len(record) || record[i] == "" {
				return sql.NullString{}
			}
			return sql.NullString{String: record[i], Valid: true}
		}
		rows = append(rows, models.RawProgressRow{
			CourseID:               field("course_id"),
			CourseName:             field("course_name"),
			ModuleID:               field("module_id"),
			ModuleName:             field("module_name"),
			ItemID:                 field("items_id"),
			ItemTitle:              field("items_title"),
			ItemType:               field("items_type"),
			ItemPosition:           field("items_position"),
			CompletionReqType:      field("item_cp_req_type"),
			CompletionReqCompleted: field("item_cp_req_completed"),
			State:                  field("state"),
			CompletedAt:            field("completed_at"),
			StudentID:              field("student_id"),
			StudentName:            field("student_name"),
			CourseStartDate:        field("course_start_date"),
		})
	}
	return rows, nil
}
