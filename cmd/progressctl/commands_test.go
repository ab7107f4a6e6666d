package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const progressCSV = "course_id,course_name,module_id,module_name,items_id,items_title,items_type,items_position,item_cp_req_type,item_cp_req_completed,state,completed_at,student_id,student_name,course_start_date\n" +
	"1,Intro,m1,Module 1: Basics,i1,Quiz,Quiz,1,min_score,1.0,completed,02-01-2024 10:00,s1,Ada,2024-01-01T09:00:00Z\n" +
	"1,Intro,m1,Module 1: Basics,i1,Quiz,Quiz,1,min_score,0.0,started,,s2,Bob,2024-01-01T09:00:00Z\n"

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.csv")
	require.NoError(t, os.WriteFile(path, []byte(progressCSV), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCoursesCommand(t *testing.T) {
	out, err := execute(t, "--csv", writeCSV(t), "courses")
	require.NoError(t, err)

	var courses []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &courses))
	require.Len(t, courses, 1)
	assert.Equal(t, "1", courses[0]["id"])
	assert.Equal(t, "Intro", courses[0]["name"])
}

func TestStatsCommandRendersSelection(t *testing.T) {
	out, err := execute(t, "--csv", writeCSV(t), "stats", "--course", "1", "--student", "All", "--from", "2024-01-01")
	require.NoError(t, err)

	var payload struct {
		Selection struct {
			CourseID string `json:"courseId"`
			From     string `json:"from"`
		} `json:"selection"`
		ItemCompletion []struct {
			ItemID     string  `json:"itemId"`
			Percentage float64 `json:"percentage"`
		} `json:"itemCompletion"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "1", payload.Selection.CourseID)
	assert.Equal(t, "2024-01-01", payload.Selection.From)
	require.Len(t, payload.ItemCompletion, 1)
	assert.Equal(t, 50.0, payload.ItemCompletion[0].Percentage)
}

type studentStats struct {
	Selection struct {
		StudentID string `json:"studentId"`
	} `json:"selection"`
	StateBreakdown json.RawMessage `json:"stateBreakdown"`
	MeanDurations  json.RawMessage `json:"meanDurations"`
	Timeline       json.RawMessage `json:"timeline"`
	ItemCompletion json.RawMessage `json:"itemCompletion"`
}

func TestStatsCommandPerStudentMatchesFreshRuns(t *testing.T) {
	path := writeCSV(t)
	out, err := execute(t, "--csv", path, "stats", "--course", "1", "--student", "s1", "--student", "s2,All")
	require.NoError(t, err)

	var series []studentStats
	require.NoError(t, json.Unmarshal([]byte(out), &series))
	require.Len(t, series, 3)
	assert.Equal(t, "s1", series[0].Selection.StudentID)
	assert.Equal(t, "s2", series[1].Selection.StudentID)
	assert.Equal(t, "All", series[2].Selection.StudentID)
	assert.NotEqual(t, string(series[0].ItemCompletion), string(series[1].ItemCompletion))

	for _, got := range series {
		single, err := execute(t, "--csv", path, "stats", "--course", "1", "--student", got.Selection.StudentID)
		require.NoError(t, err)

		var fresh studentStats
		require.NoError(t, json.Unmarshal([]byte(single), &fresh))
		assert.JSONEq(t, string(fresh.StateBreakdown), string(got.StateBreakdown), got.Selection.StudentID)
		assert.JSONEq(t, string(fresh.MeanDurations), string(got.MeanDurations), got.Selection.StudentID)
		assert.JSONEq(t, string(fresh.Timeline), string(got.Timeline), got.Selection.StudentID)
		assert.JSONEq(t, string(fresh.ItemCompletion), string(got.ItemCompletion), got.Selection.StudentID)
	}
}

func TestStatsCommandRejectsBadDate(t *testing.T) {
	_, err := execute(t, "--csv", writeCSV(t), "stats", "--course", "1", "--to", "01/02/2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--to")
}

func TestExportTableCommandWritesStdout(t *testing.T) {
	out, err := execute(t, "--csv", writeCSV(t), "export-table", "--course", "1", "--student", "s1", "--out", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Quiz")
	assert.Contains(t, out, "completed")
}

func TestExportTableCommandRequiresStudent(t *testing.T) {
	_, err := execute(t, "--csv", writeCSV(t), "export-table", "--course", "1")
	require.Error(t, err)
}
