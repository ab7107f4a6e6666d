package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/progress-dashboard/internal/dto"
	"github.com/noah-isme/progress-dashboard/pkg/jobs"
)

const warmupJobType = "dashboard_warmup"

type dashboardSnapshotter interface {
	Snapshot(ctx context.Context, inputs DashboardInputs) (*dto.DashboardResponse, bool, error)
}

// WarmupConfig tunes the warmup worker pool.
type WarmupConfig struct {
	Workers    int
	MaxRetries int
	Timeout    time.Duration
}

// WarmupReport summarises one warmup pass.
type WarmupReport struct {
	Courses int
	Warmed  int64
	Failed  int64
}

// WarmupService pre-computes and caches the default dashboard of every course.
type WarmupService struct {
	dashboard dashboardSnapshotter
	stores    storeProvider
	logger    *zap.Logger
	cfg       WarmupConfig
}

// NewWarmupService constructs the warmup service.
func NewWarmupService(dashboard dashboardSnapshotter, stores storeProvider, logger *zap.Logger, cfg WarmupConfig) *WarmupService {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WarmupService{dashboard: dashboard, stores: stores, logger: logger, cfg: cfg}
}

// Run queues one job per course of the current store and waits for all of them. The
// default dashboard selects every module, the first module's items and all students.
func (s *WarmupService) Run(ctx context.Context) (*WarmupReport, error) {
	store, err := s.stores.Current()
	if err != nil {
		return nil, err
	}
	courses := store.Courses()
	report := &WarmupReport{Courses: len(courses)}

	queue := jobs.NewQueue(warmupJobType, func(ctx context.Context, job jobs.Job) error {
		courseID, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected warmup payload %T", job.Payload)
		}
		if _, _, err := s.dashboard.Snapshot(ctx, DashboardInputs{CourseID: courseID}); err != nil {
			if job.Attempt >= s.cfg.MaxRetries {
				atomic.AddInt64(&report.Failed, 1)
			}
			return err
		}
		atomic.AddInt64(&report.Warmed, 1)
		return nil
	}, jobs.QueueConfig{
		Workers:    s.cfg.Workers,
		BufferSize: len(courses) + 1,
		MaxRetries: s.cfg.MaxRetries,
		RetryDelay: 200 * time.Millisecond,
		Logger:     s.logger,
	})

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	queue.Start(runCtx)
	defer queue.Stop()

	for _, c := range courses {
		if err := queue.Enqueue(jobs.Job{ID: store.ID() + ":" + c.ID, Type: warmupJobType, Payload: c.ID}); err != nil {
			return report, err
		}
	}
	if err := queue.Wait(runCtx); err != nil {
		return report, fmt.Errorf("warmup interrupted: %w", err)
	}

	s.logger.Info("dashboard warmup finished",
		zap.String("store_id", store.ID()),
		zap.Int("courses", report.Courses),
		zap.Int64("warmed", report.Warmed),
		zap.Int64("failed", report.Failed),
	)
	return report, nil
}
