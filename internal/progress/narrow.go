package progress

import "github.com/noah-isme/progress-dashboard/internal/models"

// Narrow returns the events satisfying scope. The course is matched on the normalized
// course name of the selected course id; a course id absent from events, an empty
// course id, or an empty module/item set all yield an empty, non-nil view.
//
// When the student sentinel is selected the student predicate is skipped entirely, so
// rows of students that never appeared in any catalog are kept.
func Narrow(events []models.ProgressEvent, scope models.SelectionScope) []models.ProgressEvent {
	out := make([]models.ProgressEvent, 0)
	if scope.CourseID == "" {
		return out
	}
	key, ok := courseKey(events, scope.CourseID)
	if !ok {
		return out
	}

	modules := toSet(scope.ModuleIDs)
	items := toSet(scope.ItemIDs)
	allStudents := scope.AllStudentsSelected()

	for _, e := range events {
		if e.CourseKey != key {
			continue
		}
		if modules != nil {
			if _, ok := modules[e.ModuleID]; !ok {
				continue
			}
		}
		if scope.ModuleID != "" && e.ModuleID != scope.ModuleID {
			continue
		}
		if items != nil {
			if _, ok := items[e.ItemID]; !ok {
				continue
			}
		}
		if !allStudents && e.StudentID != scope.StudentID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CourseEvents returns every event of the course, for catalog building.
func CourseEvents(events []models.ProgressEvent, courseID string) []models.ProgressEvent {
	return Narrow(events, models.SelectionScope{CourseID: courseID, StudentID: models.AllStudents})
}

// IdentityScope returns a scope that matches every row already present in view.
func IdentityScope(view []models.ProgressEvent) models.SelectionScope {
	if len(view) == 0 {
		return models.SelectionScope{StudentID: models.AllStudents}
	}
	catalog := BuildCatalog(view)
	return models.SelectionScope{
		CourseID:  view[0].CourseID,
		ModuleIDs: catalog.Modules.Keys(),
		ItemIDs:   catalog.Items.Keys(),
		StudentID: models.AllStudents,
	}
}

func courseKey(events []models.ProgressEvent, courseID string) (string, bool) {
	for _, e := range events {
		if e.CourseID == courseID {
			return e.CourseKey, true
		}
	}
	return "", false
}

func toSet(ids []string) map[string]struct{} {
	if ids == nil {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
