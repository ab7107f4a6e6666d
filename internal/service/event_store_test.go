package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/progress-dashboard/internal/models"
	"github.com/noah-isme/progress-dashboard/internal/progress"
	appErrors "github.com/noah-isme/progress-dashboard/pkg/errors"
)

type staticSource struct {
	rows []models.RawProgressRow
	err  error
}

func (s staticSource) Name() string { return "static" }

func (s staticSource) Load(context.Context) ([]models.RawProgressRow, error) {
	return s.rows, s.err
}

func text(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func rawRow(course, student, completedAt string) models.RawProgressRow {
	return models.RawProgressRow{
		CourseID:        text(course),
		CourseName:      text("Course " + course),
		ModuleID:        text("m1"),
		ModuleName:      text("Module 1: Start"),
		ItemID:          text("i1"),
		ItemTitle:       text("Intro"),
		ItemType:        text("Page"),
		ItemPosition:    text("1"),
		State:           text("completed"),
		CompletedAt:     text(completedAt),
		StudentID:       text(student),
		StudentName:     text("Student " + student),
		CourseStartDate: text("01-01-2024 09:00"),
	}
}

func TestLoadEventsSkipsAndReportsBadRows(t *testing.T) {
	source := staticSource{rows: []models.RawProgressRow{
		rawRow("1", "s1", "05-01-2024 10:00"),
		rawRow("1", "s2", "2024-01-05"),
		rawRow("2", "s3", ""),
	}}

	store, report, err := LoadEvents(context.Background(), source, IngestSkip)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 1, report.Dropped)
	require.Len(t, report.Errors, 1)

	var ingestErr *progress.IngestError
	require.True(t, errors.As(report.Errors[0], &ingestErr))
	assert.Equal(t, 3, ingestErr.Row)
	assert.Equal(t, "completed_at", ingestErr.Column)

	assert.Equal(t, 2, store.Len())
	assert.NotEmpty(t, store.ID())
	assert.Equal(t, []models.CourseRef{{ID: "1", Name: "Course 1"}, {ID: "2", Name: "Course 2"}}, store.Courses())
}

func TestLoadEventsAbortPolicy(t *testing.T) {
	source := staticSource{rows: []models.RawProgressRow{
		rawRow("1", "s1", "05-01-2024 10:00"),
		rawRow("1", "s2", "not a date"),
	}}

	store, report, err := NewIngestService(nil, NewMetricsService()).Load(context.Background(), source, IngestAbort)
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Equal(t, appErrors.ErrIngest.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 2, report.Dropped)
	assert.Zero(t, report.Loaded)
	assert.Equal(t, 2, report.Rows)
	require.Len(t, report.Errors, 1)
}

func TestLoadEventsAbortPolicyCountsRowsParsedBeforeFailure(t *testing.T) {
	source := staticSource{rows: []models.RawProgressRow{
		rawRow("1", "s1", "05-01-2024 10:00"),
		rawRow("1", "s2", "06-01-2024 10:00"),
		rawRow("1", "s3", "07-01-2024 10:00"),
		rawRow("1", "s4", "not a date"),
		rawRow("1", "s5", "08-01-2024 10:00"),
	}}

	_, report, err := LoadEvents(context.Background(), source, IngestAbort)
	require.Error(t, err)
	assert.Equal(t, 5, report.Dropped)
	assert.Zero(t, report.Loaded)

	var ingestErr *progress.IngestError
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, 5, ingestErr.Row)
}

func TestLoadEventsSourceFailure(t *testing.T) {
	_, _, err := LoadEvents(context.Background(), staticSource{err: errors.New("disk gone")}, IngestSkip)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIngest.Status, appErrors.FromError(err).Status)
}

func TestEventStoreIsImmutable(t *testing.T) {
	events := fixtureEvents()
	store := NewEventStore(events)
	events[0].StudentID = "mutated"

	copied := store.Events()
	assert.Equal(t, "X", copied[0].StudentID)
	copied[0].StudentID = "mutated again"
	assert.Equal(t, "X", store.Events()[0].StudentID)
	assert.True(t, store.HasCourse("1"))
	assert.False(t, store.HasCourse("2"))
}

func TestStoreRegistrySwap(t *testing.T) {
	registry := NewStoreRegistry()
	assert.False(t, registry.Ready())
	_, err := registry.Current()
	assert.ErrorIs(t, err, appErrors.ErrStoreNotLoaded)

	first := NewEventStore(nil)
	assert.Nil(t, registry.Swap(first))
	second := NewEventStore(nil)
	assert.Same(t, first, registry.Swap(second))
	current, err := registry.Current()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), current.ID())
}
