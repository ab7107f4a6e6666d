package models

import (
	"database/sql"
	"time"
)

// ModuleState enumerates the progress states a student can hold for a module.
type ModuleState string

const (
	StateLocked    ModuleState = "locked"
	StateUnlocked  ModuleState = "unlocked"
	StateStarted   ModuleState = "started"
	StateCompleted ModuleState = "completed"
)

// ModuleStates lists every state in the order dashboards stack them.
var ModuleStates = []ModuleState{StateCompleted, StateStarted, StateUnlocked, StateLocked}

// Valid reports whether the state is one of the known module states.
func (s ModuleState) Valid() bool {
	switch s {
	case StateLocked, StateUnlocked, StateStarted, StateCompleted:
		return true
	default:
		return false
	}
}

// AllStudents is the student selection sentinel that disables the student predicate.
const AllStudents = "All"

// ProgressEvent is one student×item progress record. Values are immutable once loaded.
type ProgressEvent struct {
	CourseID   string `json:"course_id"`
	CourseName string `json:"course_name"`
	// CourseKey is CourseName with every non-alphanumeric character removed.
	CourseKey string `json:"course_key"`

	ModuleID   string `json:"module_id"`
	ModuleName string `json:"module_name"`

	ItemID       string `json:"items_id"`
	ItemTitle    string `json:"items_title"`
	ItemType     string `json:"items_type"`
	ItemPosition int    `json:"items_position"`

	CompletionReqType      *string  `json:"item_cp_req_type,omitempty"`
	CompletionReqCompleted *float64 `json:"item_cp_req_completed,omitempty"`

	State       ModuleState `json:"state"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`

	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`

	CourseStartDate time.Time `json:"course_start_date"`
}

// RequirementMet reports whether the item completion requirement is recorded as fulfilled.
func (e ProgressEvent) RequirementMet() bool {
	return e.CompletionReqCompleted != nil && *e.CompletionReqCompleted == 1.0
}

// RawProgressRow is an unparsed row as exported by the course progress extractor.
type RawProgressRow struct {
	CourseID               sql.NullString `db:"course_id"`
	CourseName             sql.NullString `db:"course_name"`
	ModuleID               sql.NullString `db:"module_id"`
	ModuleName             sql.NullString `db:"module_name"`
	ItemID                 sql.NullString `db:"items_id"`
	ItemTitle              sql.NullString `db:"items_title"`
	ItemType               sql.NullString `db:"items_type"`
	ItemPosition           sql.NullString `db:"items_position"`
	CompletionReqType      sql.NullString `db:"item_cp_req_type"`
	CompletionReqCompleted sql.NullString `db:"item_cp_req_completed"`
	State                  sql.NullString `db:"state"`
	CompletedAt            sql.NullString `db:"completed_at"`
	StudentID              sql.NullString `db:"student_id"`
	StudentName            sql.NullString `db:"student_name"`
	CourseStartDate        sql.NullString `db:"course_start_date"`
}

// SelectionScope captures the current course → module → item → student selection.
//
// A nil ModuleIDs or ItemIDs slice leaves that dimension unconstrained while an empty,
// non-nil slice selects nothing. ModuleID narrows to a single module and is combined
// with ModuleIDs when both are set.
type SelectionScope struct {
	CourseID  string   `json:"course_id"`
	ModuleIDs []string `json:"module_ids,omitempty"`
	ModuleID  string   `json:"module_id,omitempty"`
	ItemIDs   []string `json:"item_ids,omitempty"`
	StudentID string   `json:"student_id,omitempty"`
}

// AllStudentsSelected reports whether the student predicate should be omitted.
func (s SelectionScope) AllStudentsSelected() bool {
	return s.StudentID == "" || s.StudentID == AllStudents
}

// StatePercentage is the share of a module's students holding a state.
type StatePercentage struct {
	State      ModuleState `json:"state"`
	Percentage float64     `json:"percentage"`
}

// ModuleStateBreakdown holds the per-state shares for a single module.
type ModuleStateBreakdown struct {
	ModuleID    string            `json:"module_id"`
	Label       string            `json:"label"`
	Name        string            `json:"name"`
	Percentages []StatePercentage `json:"percentages"`
}

// TimelinePoint is a cumulative completion share observed on a date.
type TimelinePoint struct {
	Date       time.Time `json:"date"`
	Percentage float64   `json:"percentage"`
}

// ModuleTimeline groups the completion curve of one module.
type ModuleTimeline struct {
	ModuleID string          `json:"module_id"`
	Label    string          `json:"label"`
	Points   []TimelinePoint `json:"points"`
}

// ItemCompletion is the share of students who fulfilled an item requirement.
type ItemCompletion struct {
	ItemID     string  `json:"item_id"`
	Label      string  `json:"label"`
	Title      string  `json:"title"`
	Percentage float64 `json:"percentage"`
}

// ItemStatus classifies an item row for the student table.
type ItemStatus string

const (
	ItemStatusCompleted     ItemStatus = "completed"
	ItemStatusIncomplete    ItemStatus = "incomplete"
	ItemStatusNoRequirement ItemStatus = "no_requirement"
)

// StudentItemRow is one line of the per-student item table.
type StudentItemRow struct {
	ModuleName string     `json:"module_name"`
	ItemTitle  string     `json:"item_title"`
	ItemType   string     `json:"item_type"`
	Status     ItemStatus `json:"status"`
}

// CourseRef identifies a course for selection lists.
type CourseRef struct {
	ID   string `db:"course_id" json:"id"`
	Name string `db:"course_name" json:"name"`
}
