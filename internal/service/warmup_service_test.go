package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/progress-dashboard/internal/dto"
	"github.com/noah-isme/progress-dashboard/internal/models"
	appErrors "github.com/noah-isme/progress-dashboard/pkg/errors"
)

type recordingSnapshotter struct {
	mu      sync.Mutex
	courses []string
	failFor string
}

func (r *recordingSnapshotter) Snapshot(_ context.Context, in DashboardInputs) (*dto.DashboardResponse, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses = append(r.courses, in.CourseID)
	if in.CourseID == r.failFor {
		return nil, false, errors.New("boom")
	}
	return &dto.DashboardResponse{}, false, nil
}

func twoCourseEvents() []models.ProgressEvent {
	events := fixtureEvents()
	other := row("C", "C1", "Z", models.StateLocked, nil, nil)
	other.CourseID = "2"
	other.CourseName = "Stats"
	other.CourseKey = "Stats"
	return append(events, other)
}

func TestWarmupRunsOneJobPerCourse(t *testing.T) {
	snap := &recordingSnapshotter{}
	svc := NewWarmupService(snap, registryWith(twoCourseEvents()), nil, WarmupConfig{Workers: 2})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Courses)
	assert.Equal(t, int64(2), report.Warmed)
	assert.ElementsMatch(t, []string{"1", "2"}, snap.courses)
}

func TestWarmupCountsFailures(t *testing.T) {
	snap := &recordingSnapshotter{failFor: "2"}
	svc := NewWarmupService(snap, registryWith(twoCourseEvents()), nil, WarmupConfig{Workers: 1, MaxRetries: 0})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Warmed)
	assert.Equal(t, int64(1), report.Failed)
}

func TestWarmupRequiresStore(t *testing.T) {
	svc := NewWarmupService(&recordingSnapshotter{}, NewStoreRegistry(), nil, WarmupConfig{})
	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrStoreNotLoaded)
}

func TestWarmupWithRealDashboard(t *testing.T) {
	registry := registryWith(fixtureEvents())
	repo := newMemoryCache()
	dashboard := newTestDashboard(registry, NewCacheService(repo, nil, 0, nil, true))

	report, err := NewWarmupService(dashboard, registry, nil, WarmupConfig{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Warmed)

	_, hit, err := dashboard.Snapshot(context.Background(), DashboardInputs{CourseID: "1"})
	require.NoError(t, err)
	assert.True(t, hit)
}
