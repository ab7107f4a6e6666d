package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardGraphTopologicalOrder(t *testing.T) {
	g := DashboardGraph()
	order := g.Artifacts()
	require.Len(t, order, len(DashboardEdges))

	pos := make(map[Node]int)
	for i, n := range order {
		pos[n] = i
	}
	for _, e := range DashboardEdges {
		for _, dep := range e.From {
			if depPos, ok := pos[dep]; ok {
				assert.Less(t, depPos, pos[e.Artifact], "%s must follow %s", e.Artifact, dep)
			}
		}
	}
}

func TestDirtyCourseChangeInvalidatesEverythingButNothingElse(t *testing.T) {
	g := DashboardGraph()
	dirty := g.Dirty(InputCourse)
	assert.ElementsMatch(t, g.Artifacts(), dirty)
}

func TestDirtyItemSelectionIsNarrow(t *testing.T) {
	g := DashboardGraph()
	assert.Equal(t, []Node{ArtifactItemView, ArtifactItemCompletion}, g.Dirty(InputItems))
}

func TestDirtyStudentSelectionLeavesCatalogsAndTable(t *testing.T) {
	g := DashboardGraph()
	dirty := g.Dirty(InputStudent)

	assert.Contains(t, dirty, ArtifactCourseView)
	assert.Contains(t, dirty, ArtifactStatePercentages)
	assert.Contains(t, dirty, ArtifactMeanDurations)
	assert.Contains(t, dirty, ArtifactTimeline)
	assert.Contains(t, dirty, ArtifactItemCompletion)
	assert.NotContains(t, dirty, ArtifactModuleCatalog)
	assert.NotContains(t, dirty, ArtifactStudentCatalog)
	assert.NotContains(t, dirty, ArtifactStudentTable)
}

func TestDirtyTimelineRange(t *testing.T) {
	g := DashboardGraph()
	assert.Equal(t, []Node{ArtifactTimeline}, g.Dirty(InputTimelineRange))
	assert.Empty(t, g.Dirty())
}

func TestLevelsSeparateDependentArtifacts(t *testing.T) {
	g := DashboardGraph()
	dirty := g.Dirty(InputCourse)
	levels := g.Levels(dirty)

	levelOf := make(map[Node]int)
	total := 0
	for i, batch := range levels {
		for _, n := range batch {
			levelOf[n] = i
			total++
		}
	}
	assert.Equal(t, len(dirty), total)
	for _, n := range dirty {
		for _, dep := range g.DependenciesOf(n) {
			if l, ok := levelOf[dep]; ok {
				assert.Less(t, l, levelOf[n])
			}
		}
	}
	assert.ElementsMatch(t, []Node{ArtifactModuleCatalog, ArtifactStudentCatalog, ArtifactStudentView}, levels[0])
	assert.Empty(t, g.Levels(nil))
}

func TestNewGraphRejectsInvalidEdges(t *testing.T) {
	_, err := NewGraph([]Node{"in"}, []Edge{{"a", []Node{"b"}}, {"b", []Node{"a"}}})
	assert.Error(t, err)

	_, err = NewGraph([]Node{"in"}, []Edge{{"a", []Node{"missing"}}})
	assert.Error(t, err)

	_, err = NewGraph([]Node{"in"}, []Edge{{"a", []Node{"in"}}, {"a", []Node{"in"}}})
	assert.Error(t, err)

	assert.Panics(t, func() { MustGraph(nil, []Edge{{"a", []Node{"a"}}}) })
}
