package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/progress-dashboard/internal/models"
	"github.com/noah-isme/progress-dashboard/internal/progress"
	"github.com/noah-isme/progress-dashboard/pkg/config"
	appErrors "github.com/noah-isme/progress-dashboard/pkg/errors"
)

// maxReportedErrors caps LoadReport.Errors; Dropped still counts every rejected row.
const maxReportedErrors = 100

// EventSource yields raw progress rows.
type EventSource interface {
	Name() string
	Load(ctx context.Context) ([]models.RawProgressRow, error)
}

// IngestPolicy decides what happens to rows that fail to parse.
type IngestPolicy string

const (
	// IngestSkip drops rejected rows and reports them.
	IngestSkip IngestPolicy = config.IngestSkip
	// IngestAbort fails the load on the first rejected row.
	IngestAbort IngestPolicy = config.IngestAbort
)

// LoadReport summarises one load.
type LoadReport struct {
	Source   string        `json:"source"`
	Rows     int           `json:"rows"`
	Loaded   int           `json:"loaded"`
	Dropped  int           `json:"dropped"`
	Errors   []error       `json:"-"`
	Duration time.Duration `json:"duration"`
}

// EventStore is an immutable snapshot of loaded progress events.
type EventStore struct {
	id       string
	loadedAt time.Time
	events   []models.ProgressEvent
	courses  []models.CourseRef
}

// NewEventStore snapshots events. The slice is copied.
func NewEventStore(events []models.ProgressEvent) *EventStore {
	owned := make([]models.ProgressEvent, len(events))
	copy(owned, events)

	catalog := progress.BuildCatalog(owned)
	courses := make([]models.CourseRef, 0, catalog.Courses.Len())
	for _, p := range catalog.Courses.Pairs() {
		courses = append(courses, models.CourseRef{ID: p.ID, Name: p.Label})
	}

	return &EventStore{
		id:       uuid.NewString(),
		loadedAt: time.Now().UTC(),
		events:   owned,
		courses:  courses,
	}
}

// ID identifies this snapshot; a reload always yields a new id.
func (s *EventStore) ID() string { return s.id }

// LoadedAt is when the snapshot was taken.
func (s *EventStore) LoadedAt() time.Time { return s.loadedAt }

// Len is the number of events.
func (s *EventStore) Len() int { return len(s.events) }

// Events returns a copy of every event.
func (s *EventStore) Events() []models.ProgressEvent {
	out := make([]models.ProgressEvent, len(s.events))
	copy(out, s.events)
	return out
}

// view exposes the backing slice to engine calls, which never write to their input.
func (s *EventStore) view() []models.ProgressEvent {
	return s.events
}

// Courses lists the courses in first-seen order.
func (s *EventStore) Courses() []models.CourseRef {
	out := make([]models.CourseRef, len(s.courses))
	copy(out, s.courses)
	return out
}

// HasCourse reports whether the course id is present.
func (s *EventStore) HasCourse(courseID string) bool {
	for _, c := range s.courses {
		if c.ID == courseID {
			return true
		}
	}
	return false
}

// IngestService converts source rows into an EventStore.
type IngestService struct {
	logger  *zap.Logger
	metrics *MetricsService
}

// NewIngestService constructs the loader.
func NewIngestService(logger *zap.Logger, metrics *MetricsService) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{logger: logger, metrics: metrics}
}

// LoadEvents loads source with a silent logger and no metrics.
func LoadEvents(ctx context.Context, source EventSource, policy IngestPolicy) (*EventStore, *LoadReport, error) {
	return NewIngestService(nil, nil).Load(ctx, source, policy)
}

// Load reads every row from source and parses it. Under IngestSkip rejected rows are
// logged and counted; under IngestAbort the first rejected row fails the load. The report
// is returned even when the load fails.
func (s *IngestService) Load(ctx context.Context, source EventSource, policy IngestPolicy) (*EventStore, *LoadReport, error) {
	start := time.Now()
	report := &LoadReport{Source: source.Name()}

	rows, err := source.Load(ctx)
	if err != nil {
		return nil, report, appErrors.Wrap(err, appErrors.ErrIngest.Code, appErrors.ErrIngest.Status, fmt.Sprintf("load %s", source.Name()))
	}
	report.Rows = len(rows)

	events := make([]models.ProgressEvent, 0, len(rows))
	for i, raw := range rows {
		// Row numbers match the source file, where line 1 is the header.
		event, err := progress.ParseRow(raw, i+2)
		if err != nil {
			if policy == IngestAbort {
				// Nothing is loaded on abort, including rows parsed before the failure.
				report.Loaded = 0
				report.Dropped = len(rows)
				report.Errors = append(report.Errors, err)
				return nil, report, appErrors.Wrap(err, appErrors.ErrIngest.Code, appErrors.ErrIngest.Status, "ingestion aborted")
			}
			s.logRejected(err)
			report.Dropped++
			if len(report.Errors) < maxReportedErrors {
				report.Errors = append(report.Errors, err)
			}
			continue
		}
		events = append(events, event)
	}

	store := NewEventStore(events)
	report.Loaded = len(events)
	report.Duration = time.Since(start)
	s.metrics.RecordLoad(report.Loaded, report.Dropped)

	s.logger.Info("progress events loaded",
		zap.String("source", report.Source),
		zap.String("store_id", store.ID()),
		zap.Int("rows", report.Rows),
		zap.Int("loaded", report.Loaded),
		zap.Int("dropped", report.Dropped),
		zap.Int("courses", len(store.courses)),
		zap.Duration("duration", report.Duration),
	)
	return store, report, nil
}

func (s *IngestService) logRejected(err error) {
	var ingestErr *progress.IngestError
	if errors.As(err, &ingestErr) {
		s.logger.Warn("progress row rejected",
			zap.Int("row", ingestErr.Row),
			zap.String("column", ingestErr.Column),
			zap.String("value", ingestErr.Value),
			zap.Error(ingestErr.Err),
		)
		return
	}
	s.logger.Warn("progress row rejected", zap.Error(err))
}

// StoreRegistry holds the current EventStore. Readers always see a complete snapshot.
type StoreRegistry struct {
	current atomic.Pointer[EventStore]
}

// NewStoreRegistry returns an empty registry.
func NewStoreRegistry() *StoreRegistry {
	return &StoreRegistry{}
}

// Swap installs store and returns the previous one.
func (r *StoreRegistry) Swap(store *EventStore) *EventStore {
	return r.current.Swap(store)
}

// Current returns the installed store or ErrStoreNotLoaded.
func (r *StoreRegistry) Current() (*EventStore, error) {
	store := r.current.Load()
	if store == nil {
		return nil, appErrors.ErrStoreNotLoaded
	}
	return store, nil
}

// Ready reports whether a store is installed.
func (r *StoreRegistry) Ready() bool {
	return r.current.Load() != nil
}
