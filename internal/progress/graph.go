package progress

import (
	"fmt"
	"sort"
)

// Node names a selection input or a derived artifact of the dashboard.
type Node string

// Selection inputs.
const (
	InputCourse        Node = "course_selection"
	InputModules       Node = "module_selection"
	InputFocusModule   Node = "focus_module_selection"
	InputItems         Node = "item_selection"
	InputStudent       Node = "student_selection"
	InputTableStudent  Node = "table_student_selection"
	InputTimelineRange Node = "timeline_range"
)

// Derived artifacts.
const (
	ArtifactModuleCatalog    Node = "module_catalog"
	ArtifactStudentCatalog   Node = "student_catalog"
	ArtifactModuleDefault    Node = "module_selection_default"
	ArtifactCourseView       Node = "filtered_view_course_scope"
	ArtifactItemCatalog      Node = "item_catalog"
	ArtifactItemDefault      Node = "item_selection_default"
	ArtifactItemView         Node = "filtered_view_item_scope"
	ArtifactStatePercentages Node = "state_percentages"
	ArtifactMeanDurations    Node = "mean_durations"
	ArtifactTimeline         Node = "timeline_points"
	ArtifactItemCompletion   Node = "item_completion_percentages"
	ArtifactStudentView      Node = "filtered_view_student_scope"
	ArtifactStudentTable     Node = "student_table"
)

// Inputs lists every selection input.
var Inputs = []Node{InputCourse, InputModules, InputFocusModule, InputItems, InputStudent, InputTableStudent, InputTimelineRange}

// Edge declares that Artifact is derived from every node in From.
type Edge struct {
	Artifact Node
	From     []Node
}

// DashboardEdges is the recomputation graph of the dashboard.
var DashboardEdges = []Edge{
	{ArtifactModuleCatalog, []Node{InputCourse}},
	{ArtifactStudentCatalog, []Node{InputCourse}},
	{ArtifactModuleDefault, []Node{ArtifactModuleCatalog}},
	{ArtifactCourseView, []Node{InputCourse, InputModules, ArtifactModuleDefault, InputStudent}},
	{ArtifactItemCatalog, []Node{InputCourse, InputFocusModule, ArtifactModuleCatalog}},
	{ArtifactItemDefault, []Node{ArtifactItemCatalog}},
	{ArtifactItemView, []Node{ArtifactCourseView, ArtifactItemCatalog, InputItems, ArtifactItemDefault}},
	{ArtifactStatePercentages, []Node{ArtifactCourseView, ArtifactModuleCatalog}},
	{ArtifactMeanDurations, []Node{ArtifactCourseView}},
	{ArtifactTimeline, []Node{ArtifactCourseView, ArtifactModuleCatalog, InputTimelineRange}},
	{ArtifactItemCompletion, []Node{ArtifactItemView, ArtifactItemCatalog}},
	{ArtifactStudentView, []Node{InputCourse, InputTableStudent}},
	{ArtifactStudentTable, []Node{ArtifactStudentView}},
}

// Graph is a validated directed acyclic graph of artifacts over inputs.
type Graph struct {
	order      []Node
	deps       map[Node][]Node
	dependents map[Node][]Node
	rank       map[Node]int
}

// NewGraph validates edges and returns the graph. Every dependency must be an input or
// an artifact declared earlier or later in edges; cycles are rejected.
func NewGraph(inputs []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		deps:       make(map[Node][]Node),
		dependents: make(map[Node][]Node),
		rank:       make(map[Node]int),
	}
	known := make(map[Node]bool)
	for _, in := range inputs {
		known[in] = true
	}
	for _, e := range edges {
		if known[e.Artifact] {
			return nil, fmt.Errorf("node %s declared twice", e.Artifact)
		}
		known[e.Artifact] = true
	}
	for _, e := range edges {
		for _, from := range e.From {
			if !known[from] {
				return nil, fmt.Errorf("artifact %s depends on unknown node %s", e.Artifact, from)
			}
			g.dependents[from] = append(g.dependents[from], e.Artifact)
		}
		g.deps[e.Artifact] = append([]Node(nil), e.From...)
	}

	// Kahn's algorithm in declaration order keeps the result deterministic.
	indegree := make(map[Node]int)
	for _, e := range edges {
		for _, from := range e.From {
			if _, isArtifact := g.deps[from]; isArtifact {
				indegree[e.Artifact]++
			}
		}
	}
	for len(g.order) < len(edges) {
		progressed := false
		for _, e := range edges {
			if _, done := g.rank[e.Artifact]; done || indegree[e.Artifact] > 0 {
				continue
			}
			g.rank[e.Artifact] = len(g.order)
			g.order = append(g.order, e.Artifact)
			for _, next := range g.dependents[e.Artifact] {
				indegree[next]--
			}
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among artifacts")
		}
	}
	return g, nil
}

// MustGraph is NewGraph for static graphs; it panics on invalid edges.
func MustGraph(inputs []Node, edges []Edge) *Graph {
	g, err := NewGraph(inputs, edges)
	if err != nil {
		panic(err)
	}
	return g
}

// DashboardGraph returns the dashboard recomputation graph.
func DashboardGraph() *Graph {
	return MustGraph(Inputs, DashboardEdges)
}

// Artifacts returns every artifact in topological order.
func (g *Graph) Artifacts() []Node {
	return append([]Node(nil), g.order...)
}

// DependenciesOf returns the direct dependencies of an artifact.
func (g *Graph) DependenciesOf(n Node) []Node {
	return append([]Node(nil), g.deps[n]...)
}

// Dirty returns the artifacts transitively derived from the changed nodes, in
// topological order.
func (g *Graph) Dirty(changed ...Node) []Node {
	marked := make(map[Node]bool)
	queue := append([]Node(nil), changed...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range g.dependents[n] {
			if !marked[next] {
				marked[next] = true
				queue = append(queue, next)
			}
		}
	}
	out := make([]Node, 0, len(marked))
	for n := range marked {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return g.rank[out[i]] < g.rank[out[j]] })
	return out
}

// Levels splits artifacts into batches. No artifact depends on another artifact of its
// own batch or of a later batch, so each batch may be computed concurrently once the
// previous batches are complete.
func (g *Graph) Levels(artifacts []Node) [][]Node {
	member := make(map[Node]bool, len(artifacts))
	for _, n := range artifacts {
		member[n] = true
	}
	level := make(map[Node]int)
	maxLevel := -1
	for _, n := range g.order {
		if !member[n] {
			continue
		}
		l := 0
		for _, dep := range g.deps[n] {
			if member[dep] && level[dep]+1 > l {
				l = level[dep] + 1
			}
		}
		level[n] = l
		if l > maxLevel {
			maxLevel = l
		}
	}
	out := make([][]Node, maxLevel+1)
	for _, n := range g.order {
		if member[n] {
			out[level[n]] = append(out[level[n]], n)
		}
	}
	return out
}
