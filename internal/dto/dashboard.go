package dto

import (
	"math"
	"time"

	"github.com/noah-isme/progress-dashboard/internal/models"
)

// DateLayout renders timeline dates and parses range bounds.
const DateLayout = "2006-01-02"

// DashboardQuery binds the dashboard query string. List parameters are comma separated;
// a present but empty list selects nothing while an absent one selects the default.
type DashboardQuery struct {
	CourseID       string `form:"course_id" binding:"required"`
	ModuleIDs      string `form:"module_ids"`
	StudentID      string `form:"student_id"`
	ItemModuleID   string `form:"item_module_id"`
	ItemIDs        string `form:"item_ids"`
	TableStudentID string `form:"table_student_id"`
	From           string `form:"from"`
	To             string `form:"to"`
}

// Option is one entry of a selection list.
type Option struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	Ordinal string `json:"ordinal,omitempty"`
}

// StateShare is a module state percentage in 0..100.
type StateShare struct {
	State      models.ModuleState `json:"state"`
	Percentage float64            `json:"percentage"`
}

// ModuleStates is the stacked state chart entry of one module.
type ModuleStates struct {
	ModuleID string       `json:"moduleId"`
	Label    string       `json:"label"`
	Name     string       `json:"name"`
	States   []StateShare `json:"states"`
}

// ModuleDuration is the mean completion time of one module.
type ModuleDuration struct {
	ModuleID string  `json:"moduleId"`
	Label    string  `json:"label"`
	Name     string  `json:"name"`
	MeanDays float64 `json:"meanDays"`
}

// TimelinePoint is a completion percentage in 0..100 on a date.
type TimelinePoint struct {
	Date       string  `json:"date"`
	Percentage float64 `json:"percentage"`
}

// ModuleTimeline is the completion curve of one module.
type ModuleTimeline struct {
	ModuleID string          `json:"moduleId"`
	Label    string          `json:"label"`
	Points   []TimelinePoint `json:"points"`
}

// ItemCompletion is an item completion percentage in 0..100.
type ItemCompletion struct {
	ItemID     string  `json:"itemId"`
	Label      string  `json:"label"`
	Title      string  `json:"title"`
	Percentage float64 `json:"percentage"`
}

// DashboardSelection echoes the effective selection after defaults were applied.
type DashboardSelection struct {
	CourseID       string   `json:"courseId"`
	ModuleIDs      []string `json:"moduleIds"`
	StudentID      string   `json:"studentId"`
	ItemModuleID   string   `json:"itemModuleId"`
	ItemIDs        []string `json:"itemIds"`
	TableStudentID string   `json:"tableStudentId"`
	From           string   `json:"from,omitempty"`
	To             string   `json:"to,omitempty"`
}

// DashboardResponse is the complete dashboard payload for one selection.
type DashboardResponse struct {
	StoreID        string             `json:"storeId"`
	Selection      DashboardSelection `json:"selection"`
	Modules        []Option           `json:"modules"`
	Students       []Option           `json:"students"`
	Items          []Option           `json:"items"`
	StateBreakdown []ModuleStates     `json:"stateBreakdown"`
	MeanDurations  []ModuleDuration   `json:"meanDurations"`
	Timeline       []ModuleTimeline   `json:"timeline"`
	ItemCompletion []ItemCompletion   `json:"itemCompletion"`
	StudentTable   []StudentTableRow  `json:"studentTable"`
	GeneratedAt    time.Time          `json:"generatedAt"`
}

// StudentTableRow is one line of the student item table.
type StudentTableRow struct {
	ModuleName string            `json:"moduleName"`
	ItemTitle  string            `json:"itemTitle"`
	ItemType   string            `json:"itemType"`
	Status     models.ItemStatus `json:"status"`
}

// CatalogResponse lists the selectable entities of a course.
type CatalogResponse struct {
	CourseID     string   `json:"courseId"`
	CourseName   string   `json:"courseName"`
	Modules      []Option `json:"modules"`
	ItemModuleID string   `json:"itemModuleId"`
	Items        []Option `json:"items"`
	Students     []Option `json:"students"`
}

// Percent converts a fraction to a percentage rounded to decimals places.
func Percent(fraction float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(fraction*100*scale) / scale
}

// StateShares renders a state vector.
func StateShares(in []models.StatePercentage) []StateShare {
	out := make([]StateShare, 0, len(in))
	for _, s := range in {
		out = append(out, StateShare{State: s.State, Percentage: Percent(s.Percentage, 1)})
	}
	return out
}

// ModuleStatesFrom renders the state matrix.
func ModuleStatesFrom(in []models.ModuleStateBreakdown) []ModuleStates {
	out := make([]ModuleStates, 0, len(in))
	for _, m := range in {
		out = append(out, ModuleStates{ModuleID: m.ModuleID, Label: m.Label, Name: m.Name, States: StateShares(m.Percentages)})
	}
	return out
}

// TimelineFrom renders completion curves.
func TimelineFrom(in []models.ModuleTimeline) []ModuleTimeline {
	out := make([]ModuleTimeline, 0, len(in))
	for _, m := range in {
		points := make([]TimelinePoint, 0, len(m.Points))
		for _, p := range m.Points {
			points = append(points, TimelinePoint{Date: p.Date.Format(DateLayout), Percentage: Percent(p.Percentage, 1)})
		}
		out = append(out, ModuleTimeline{ModuleID: m.ModuleID, Label: m.Label, Points: points})
	}
	return out
}

// ItemCompletionFrom renders item completion rates.
func ItemCompletionFrom(in []models.ItemCompletion) []ItemCompletion {
	out := make([]ItemCompletion, 0, len(in))
	for _, i := range in {
		out = append(out, ItemCompletion{ItemID: i.ItemID, Label: i.Label, Title: i.Title, Percentage: Percent(i.Percentage, 2)})
	}
	return out
}

// StudentTableFrom renders the student table.
func StudentTableFrom(in []models.StudentItemRow) []StudentTableRow {
	out := make([]StudentTableRow, 0, len(in))
	for _, r := range in {
		out = append(out, StudentTableRow{ModuleName: r.ModuleName, ItemTitle: r.ItemTitle, ItemType: r.ItemType, Status: r.Status})
	}
	return out
}
