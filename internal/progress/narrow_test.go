package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/progress-dashboard/internal/models"
)

func narrowFixture() []models.ProgressEvent {
	return []models.ProgressEvent{
		event("A", "X", withItem("a1", "A one", 1)),
		event("A", "Y", withItem("a2", "A two", 2)),
		event("B", "X", withItem("b1", "B one", 1)),
		event("C", "Z", withCourse("2", "Other Course"), withItem("c1", "C one", 1)),
		// Same normalized name as course 1, different id.
		event("D", "W", withCourse("1b", "Intro to Data Fall"), withItem("d1", "D one", 1)),
	}
}

func TestNarrowCourseUsesNormalizedName(t *testing.T) {
	view := Narrow(narrowFixture(), models.SelectionScope{CourseID: "1", StudentID: models.AllStudents})
	assert.Len(t, view, 4)
	for _, e := range view {
		assert.NotEqual(t, "2", e.CourseID)
	}
}

func TestNarrowModulesItemsStudent(t *testing.T) {
	events := narrowFixture()

	view := Narrow(events, models.SelectionScope{CourseID: "1", ModuleIDs: []string{"A"}, StudentID: models.AllStudents})
	assert.Len(t, view, 2)

	view = Narrow(events, models.SelectionScope{CourseID: "1", ModuleID: "A", ItemIDs: []string{"a2"}})
	assert.Len(t, view, 1)
	assert.Equal(t, "Y", view[0].StudentID)

	view = Narrow(events, models.SelectionScope{CourseID: "1", StudentID: "X"})
	assert.Len(t, view, 2)
}

func TestNarrowMissingSelectionsYieldEmpty(t *testing.T) {
	events := narrowFixture()
	cases := map[string]models.SelectionScope{
		"no course":        {},
		"unknown course":   {CourseID: "404"},
		"unknown module":   {CourseID: "1", ModuleIDs: []string{"nope"}},
		"empty module set": {CourseID: "1", ModuleIDs: []string{}},
		"unknown student":  {CourseID: "1", StudentID: "ghost"},
	}
	for name, scope := range cases {
		view := Narrow(events, scope)
		assert.NotNil(t, view, name)
		assert.Empty(t, view, name)
	}
}

func TestNarrowAllStudentsKeepsUncataloguedStudents(t *testing.T) {
	events := narrowFixture()
	catalog := BuildCatalog(events[:2])
	late := event("A", "late-joiner")
	events = append(events, late)

	assert.False(t, catalog.Students.Has("late-joiner"))
	view := Narrow(events, models.SelectionScope{CourseID: "1", ModuleIDs: []string{"A"}, StudentID: models.AllStudents})
	assert.Contains(t, view, late)
}

func TestNarrowIdentityRoundTrip(t *testing.T) {
	events := narrowFixture()
	scopes := []models.SelectionScope{
		{CourseID: "1", StudentID: models.AllStudents},
		{CourseID: "1", ModuleIDs: []string{"A"}, StudentID: "X"},
		{CourseID: "2"},
		{CourseID: "missing"},
	}
	for _, scope := range scopes {
		first := Narrow(events, scope)
		second := Narrow(first, IdentityScope(first))
		assert.Equal(t, first, second)
	}
}
