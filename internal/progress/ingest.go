package progress

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/progress-dashboard/internal/models"
)

// TimestampLayout is the day-month-year hour:minute layout of completed_at values.
const TimestampLayout = "02-01-2006 15:04"

var (
	errRequired       = errors.New("value is required")
	errUnknownState   = errors.New("unknown module state")
	errBadTimestamp   = errors.New("timestamp does not match " + TimestampLayout)
	errBadRequirement = errors.New("completion flag must be 1, 0 or empty")
	errBadPosition    = errors.New("position must be a non-negative integer")
)

// ParseRow converts a raw source row into an event. rowNum is only used to locate the
// row in a returned IngestError.
func ParseRow(raw models.RawProgressRow, rowNum int) (models.ProgressEvent, error) {
	fail := func(column string, v sql.NullString, err error) (models.ProgressEvent, error) {
		return models.ProgressEvent{}, &IngestError{Row: rowNum, Column: column, Value: v.String, Err: err}
	}

	required := []struct {
		column string
		value  sql.NullString
	}{
		{"course_id", raw.CourseID},
		{"course_name", raw.CourseName},
		{"module_id", raw.ModuleID},
		{"items_id", raw.ItemID},
		{"student_id", raw.StudentID},
		{"state", raw.State},
		{"course_start_date", raw.CourseStartDate},
	}
	for _, r := range required {
		if text(r.value) == "" {
			return fail(r.column, r.value, errRequired)
		}
	}

	state := models.ModuleState(strings.ToLower(text(raw.State)))
	if !state.Valid() {
		return fail("state", raw.State, errUnknownState)
	}

	start, err := parseCourseStart(text(raw.CourseStartDate))
	if err != nil {
		return fail("course_start_date", raw.CourseStartDate, err)
	}

	event := models.ProgressEvent{
		CourseID:        text(raw.CourseID),
		CourseName:      text(raw.CourseName),
		CourseKey:       NormalizeCourseName(text(raw.CourseName)),
		ModuleID:        text(raw.ModuleID),
		ModuleName:      text(raw.ModuleName),
		ItemID:          text(raw.ItemID),
		ItemTitle:       text(raw.ItemTitle),
		ItemType:        text(raw.ItemType),
		State:           state,
		StudentID:       text(raw.StudentID),
		StudentName:     text(raw.StudentName),
		CourseStartDate: start,
	}

	if v := text(raw.CompletedAt); v != "" {
		ts, err := time.Parse(TimestampLayout, v)
		if err != nil {
			return fail("completed_at", raw.CompletedAt, errBadTimestamp)
		}
		event.CompletedAt = &ts
	}

	if v := text(raw.ItemPosition); v != "" {
		pos, err := parsePosition(v)
		if err != nil {
			return fail("items_position", raw.ItemPosition, err)
		}
		event.ItemPosition = pos
	}

	if v := text(raw.CompletionReqType); v != "" {
		event.CompletionReqType = &v
	}

	if v := text(raw.CompletionReqCompleted); v != "" {
		flag, err := strconv.ParseFloat(v, 64)
		if err != nil || (flag != 0 && flag != 1) {
			return fail("item_cp_req_completed", raw.CompletionReqCompleted, errBadRequirement)
		}
		event.CompletionReqCompleted = &flag
	}

	return event, nil
}

func text(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return strings.TrimSpace(v.String)
}

func parseCourseStart(v string) (time.Time, error) {
	if ts, err := time.Parse(TimestampLayout, v); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("course start must be %q or RFC3339", TimestampLayout)
}

func parsePosition(v string) (int, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f != math.Trunc(f) {
		return 0, errBadPosition
	}
	return int(f), nil
}
