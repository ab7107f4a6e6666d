package progress

import (
	"sort"
	"time"

	"github.com/noah-isme/progress-dashboard/internal/models"
)

// Timeline returns the cumulative completion share of a module on every distinct date a
// completion was observed within [start, end], in ascending date order. Calendar days
// without an observed completion are not sampled; connecting the points is left to the
// caller. A zero start or end leaves that side unbounded.
func Timeline(view []models.ProgressEvent, moduleID string, start, end time.Time) []models.TimelinePoint {
	seen := make(map[time.Time]struct{})
	dates := make([]time.Time, 0)
	for _, e := range view {
		if e.ModuleID != moduleID || e.CompletedAt == nil {
			continue
		}
		d := dateOf(*e.CompletedAt)
		if !start.IsZero() && d.Before(dateOf(start)) {
			continue
		}
		if !end.IsZero() && d.After(dateOf(end)) {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	points := make([]models.TimelinePoint, 0, len(dates))
	for _, d := range dates {
		points = append(points, models.TimelinePoint{Date: d, Percentage: CompletionPercentageByDate(view, moduleID, d)})
	}
	return points
}

// CourseTimeline builds the timeline of every module in view, ordered and labelled by
// catalog. Modules without points in range are omitted.
func CourseTimeline(view []models.ProgressEvent, catalog Catalog, start, end time.Time) []models.ModuleTimeline {
	present := BuildCatalog(view)
	out := make([]models.ModuleTimeline, 0, present.Modules.Len())
	for _, id := range orderedBy(catalog.Modules, present.Modules) {
		points := Timeline(view, id, start, end)
		if len(points) == 0 {
			continue
		}
		label := catalog.ModuleLabel(id)
		if label == "" {
			label = present.ModuleLabel(id)
		}
		out = append(out, models.ModuleTimeline{ModuleID: id, Label: label, Points: points})
	}
	return out
}

// StudentTable lists every row of view as module, item, type and requirement status.
func StudentTable(view []models.ProgressEvent) []models.StudentItemRow {
	rows := make([]models.StudentItemRow, 0, len(view))
	for _, e := range view {
		status := models.ItemStatusNoRequirement
		switch {
		case e.CompletionReqCompleted == nil:
		case e.RequirementMet():
			status = models.ItemStatusCompleted
		default:
			status = models.ItemStatusIncomplete
		}
		rows = append(rows, models.StudentItemRow{
			ModuleName: e.ModuleName,
			ItemTitle:  e.ItemTitle,
			ItemType:   e.ItemType,
			Status:     status,
		})
	}
	return rows
}
