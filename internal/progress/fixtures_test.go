package progress

import (
	"time"

	"github.com/noah-isme/progress-dashboard/internal/models"
)

var courseStart = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func at(y int, m time.Month, d, hh, mm int) *time.Time {
	t := time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
	return &t
}

func flag(v float64) *float64 {
	return &v
}

func reqType(v string) *string {
	return &v
}

type eventOpt func(*models.ProgressEvent)

func withState(s models.ModuleState) eventOpt {
	return func(e *models.ProgressEvent) { e.State = s }
}

func completedOn(ts *time.Time) eventOpt {
	return func(e *models.ProgressEvent) {
		e.State = models.StateCompleted
		e.CompletedAt = ts
	}
}

func withItem(id, title string, position int) eventOpt {
	return func(e *models.ProgressEvent) {
		e.ItemID = id
		e.ItemTitle = title
		e.ItemPosition = position
	}
}

func withRequirement(done *float64) eventOpt {
	return func(e *models.ProgressEvent) {
		e.CompletionReqType = reqType("must_submit")
		e.CompletionReqCompleted = done
	}
}

func withCourse(id, name string) eventOpt {
	return func(e *models.ProgressEvent) {
		e.CourseID = id
		e.CourseName = name
		e.CourseKey = NormalizeCourseName(name)
	}
}

func withStart(t time.Time) eventOpt {
	return func(e *models.ProgressEvent) { e.CourseStartDate = t }
}

func event(module, student string, opts ...eventOpt) models.ProgressEvent {
	e := models.ProgressEvent{
		CourseID:        "1",
		CourseName:      "Intro to Data: Fall",
		CourseKey:       NormalizeCourseName("Intro to Data: Fall"),
		ModuleID:        module,
		ModuleName:      "Module 1: " + module + " basics",
		ItemID:          module + "-item",
		ItemTitle:       module + " reading",
		ItemType:        "Page",
		State:           models.StateStarted,
		StudentID:       student,
		StudentName:     "Student " + student,
		CourseStartDate: courseStart,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// scenarioView is the two-student module A view used by several aggregate tests.
func scenarioView() []models.ProgressEvent {
	return []models.ProgressEvent{
		event("A", "X", completedOn(at(2024, 1, 10, 14, 30))),
		event("A", "Y", withState(models.StateStarted)),
	}
}
