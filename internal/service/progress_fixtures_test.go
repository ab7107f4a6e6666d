package service

import (
	"time"

	"github.com/noah-isme/progress-dashboard/internal/models"
	"github.com/noah-isme/progress-dashboard/internal/progress"
)

var fixtureStart = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func ts(y int, m time.Month, d, hh int) *time.Time {
	t := time.Date(y, m, d, hh, 0, 0, 0, time.UTC)
	return &t
}

func req(v float64) *float64 {
	return &v
}

func row(module, item, student string, state models.ModuleState, completed *time.Time, done *float64) models.ProgressEvent {
	e := models.ProgressEvent{
		CourseID:        "1",
		CourseName:      "Intro: Data",
		CourseKey:       progress.NormalizeCourseName("Intro: Data"),
		ModuleID:        module,
		ModuleName:      "Module 9: " + module + " unit",
		ItemID:          item,
		ItemTitle:       item + " title",
		ItemType:        "Assignment",
		State:           state,
		CompletedAt:     completed,
		StudentID:       student,
		StudentName:     "Student " + student,
		CourseStartDate: fixtureStart,
	}
	if done != nil {
		kind := "must_submit"
		e.CompletionReqType = &kind
		e.CompletionReqCompleted = done
	}
	return e
}

// fixtureEvents is a two-module, two-student course.
func fixtureEvents() []models.ProgressEvent {
	return []models.ProgressEvent{
		row("A", "A1", "X", models.StateCompleted, ts(2024, 1, 10, 10), req(1)),
		row("A", "A2", "X", models.StateCompleted, ts(2024, 1, 10, 10), req(0)),
		row("B", "B1", "X", models.StateStarted, nil, nil),
		row("A", "A1", "Y", models.StateStarted, nil, req(0)),
		row("A", "A2", "Y", models.StateStarted, nil, nil),
		row("B", "B1", "Y", models.StateCompleted, ts(2024, 1, 20, 12), nil),
	}
}

func registryWith(events []models.ProgressEvent) *StoreRegistry {
	registry := NewStoreRegistry()
	registry.Swap(NewEventStore(events))
	return registry
}
