package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/progress-dashboard/internal/models"
)

// StatePercentage returns, among students with any row for moduleID, the fraction whose
// module state equals state. It returns 0 when the module has no students in view.
func StatePercentage(view []models.ProgressEvent, moduleID string, state models.ModuleState) float64 {
	total := make(map[string]struct{})
	matched := make(map[string]struct{})
	for _, e := range view {
		if e.ModuleID != moduleID {
			continue
		}
		total[e.StudentID] = struct{}{}
		if e.State == state {
			matched[e.StudentID] = struct{}{}
		}
	}
	return ratio(len(matched), len(total))
}

// StatePercentages returns the share of every module state, in models.ModuleStates order.
func StatePercentages(view []models.ProgressEvent, moduleID string) []models.StatePercentage {
	out := make([]models.StatePercentage, 0, len(models.ModuleStates))
	for _, s := range models.ModuleStates {
		out = append(out, models.StatePercentage{State: s, Percentage: StatePercentage(view, moduleID, s)})
	}
	return out
}

// ModuleStateMatrix returns the state breakdown of every module present in view, ordered
// and labelled by catalog. Modules the catalog does not know are labelled by view order.
func ModuleStateMatrix(view []models.ProgressEvent, catalog Catalog) []models.ModuleStateBreakdown {
	present := BuildCatalog(view)
	out := make([]models.ModuleStateBreakdown, 0, present.Modules.Len())
	for _, id := range orderedBy(catalog.Modules, present.Modules) {
		label := catalog.ModuleLabel(id)
		name := catalog.Modules.Label(id)
		if label == "" {
			label = present.ModuleLabel(id)
			name = present.Modules.Label(id)
		}
		out = append(out, models.ModuleStateBreakdown{
			ModuleID:    id,
			Label:       label,
			Name:        name,
			Percentages: StatePercentages(view, id),
		})
	}
	return out
}

// CompletionPercentageByDate returns the fraction of the module's students whose state
// is completed and whose completed_at date is on or before asOf. Only the calendar date
// of asOf is considered. It returns 0 when no row of the module has a completed_at value.
func CompletionPercentageByDate(view []models.ProgressEvent, moduleID string, asOf time.Time) float64 {
	bound := dateOf(asOf)
	total := make(map[string]struct{})
	done := make(map[string]struct{})
	anyTimestamp := false
	for _, e := range view {
		if e.ModuleID != moduleID {
			continue
		}
		total[e.StudentID] = struct{}{}
		if e.CompletedAt == nil {
			continue
		}
		anyTimestamp = true
		if e.State == models.StateCompleted && !dateOf(*e.CompletedAt).After(bound) {
			done[e.StudentID] = struct{}{}
		}
	}
	if !anyTimestamp {
		return 0
	}
	return ratio(len(done), len(total))
}

// ItemCompletionPercentage returns the fraction of students associated with itemID whose
// requirement flag equals 1.
//
// Precondition: items without any completion requirement must be removed by the caller
// (see ExcludeItemsWithoutRequirement). For such an item every null flag counts as
// incomplete and the result is 0.
func ItemCompletionPercentage(view []models.ProgressEvent, itemID string) float64 {
	total := make(map[string]struct{})
	done := make(map[string]struct{})
	for _, e := range view {
		if e.ItemID != itemID {
			continue
		}
		total[e.StudentID] = struct{}{}
		if e.RequirementMet() {
			done[e.StudentID] = struct{}{}
		}
	}
	return ratio(len(done), len(total))
}

// ItemsWithRequirement returns the ids of items that carry a completion flag on at least
// one row, in first-seen order.
func ItemsWithRequirement(view []models.ProgressEvent) []string {
	var keep Labels
	for _, e := range view {
		if e.CompletionReqCompleted != nil {
			keep.set(e.ItemID, "")
		}
	}
	return keep.Keys()
}

// ExcludeItemsWithoutRequirement drops rows of items whose completion flag is null on
// every row.
func ExcludeItemsWithoutRequirement(view []models.ProgressEvent) []models.ProgressEvent {
	keep := toSet(ItemsWithRequirement(view))
	out := make([]models.ProgressEvent, 0, len(view))
	for _, e := range view {
		if _, ok := keep[e.ItemID]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ItemCompletionRates excludes items without requirement, then computes the completion
// share of every remaining item labelled by catalog under mode.
func ItemCompletionRates(view []models.ProgressEvent, catalog Catalog, mode ItemLabelMode) []models.ItemCompletion {
	eligible := ExcludeItemsWithoutRequirement(view)
	present := BuildCatalog(eligible)
	out := make([]models.ItemCompletion, 0, present.Items.Len())
	for _, id := range orderedBy(catalog.Items, present.Items) {
		label := catalog.ItemLabel(id, mode)
		if label == "" {
			label = present.ItemLabel(id, mode)
		}
		out = append(out, models.ItemCompletion{
			ItemID:     id,
			Label:      label,
			Title:      present.Items.Label(id),
			Percentage: ItemCompletionPercentage(eligible, id),
		})
	}
	return out
}

// CourseStartDate returns the single start date shared by every row of courseID in view.
// A course with more than one distinct start date is a DataInconsistencyError.
func CourseStartDate(view []models.ProgressEvent, courseID string) (time.Time, bool, error) {
	var start time.Time
	found := false
	for _, e := range view {
		if e.CourseID != courseID {
			continue
		}
		if !found {
			start, found = e.CourseStartDate, true
			continue
		}
		if !e.CourseStartDate.Equal(start) {
			return time.Time{}, false, &DataInconsistencyError{
				CourseID: courseID,
				Detail:   fmt.Sprintf("more than one course start date (%s, %s)", start.Format(time.RFC3339), e.CourseStartDate.Format(time.RFC3339)),
			}
		}
	}
	return start, found, nil
}

// MeanDurationDays returns, per module, the mean number of whole days between the course
// start date and completion, over completed rows. Each (module, student) pair counts once
// using its latest completed_at. Rows without completed_at are ignored. A course in view
// carrying more than one start date fails with DataInconsistencyError.
func MeanDurationDays(view []models.ProgressEvent) (map[string]float64, error) {
	starts := make(map[string]time.Time)
	for _, courseID := range BuildCatalog(view).Courses.Keys() {
		start, _, err := CourseStartDate(view, courseID)
		if err != nil {
			return nil, err
		}
		starts[courseID] = start
	}

	type pair struct{ module, student string }
	latest := make(map[pair]models.ProgressEvent)
	for _, e := range view {
		if e.State != models.StateCompleted || e.CompletedAt == nil {
			continue
		}
		k := pair{e.ModuleID, e.StudentID}
		if prev, ok := latest[k]; ok && !e.CompletedAt.After(*prev.CompletedAt) {
			continue
		}
		latest[k] = e
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for k, e := range latest {
		sums[k.module] += float64(WholeDays(e.CompletedAt.Sub(starts[e.CourseID])))
		counts[k.module]++
	}
	out := make(map[string]float64, len(sums))
	for module, sum := range sums {
		out[module] = sum / float64(counts[module])
	}
	return out, nil
}

// WholeDays floors a duration to whole days; negative durations floor away from zero.
func WholeDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// orderedBy lists the ids of present in the order of reference, followed by any ids the
// reference does not know in their own order.
func orderedBy(reference, present Labels) []string {
	out := make([]string, 0, present.Len())
	for _, id := range reference.keys {
		if present.Has(id) {
			out = append(out, id)
		}
	}
	for _, id := range present.keys {
		if !reference.Has(id) {
			out = append(out, id)
		}
	}
	return out
}
