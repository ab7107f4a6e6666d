package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/progress-dashboard/internal/dto"
	"github.com/noah-isme/progress-dashboard/internal/models"
	"github.com/noah-isme/progress-dashboard/internal/progress"
	appErrors "github.com/noah-isme/progress-dashboard/pkg/errors"
)

const dashboardKeyPrefix = "dashboard"

type storeProvider interface {
	Current() (*EventStore, error)
}

// DashboardInputs is the full selection tuple of one dashboard. A nil ModuleIDs or
// ItemIDs selects the catalog default (every module of the course, every item of the
// item module); an empty non-nil slice selects nothing. An empty FocusModuleID selects
// the first module of the course. An empty TableStudentID leaves the student table empty.
// A zero From or To leaves the timeline unbounded on that side.
type DashboardInputs struct {
	CourseID       string    `json:"course_id" validate:"max=256"`
	ModuleIDs      []string  `json:"module_ids" validate:"omitempty,dive,required,max=256"`
	StudentID      string    `json:"student_id" validate:"max=256"`
	FocusModuleID  string    `json:"item_module_id" validate:"max=256"`
	ItemIDs        []string  `json:"item_ids" validate:"omitempty,dive,required,max=256"`
	TableStudentID string    `json:"table_student_id" validate:"max=256"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
}

func (in DashboardInputs) clone() DashboardInputs {
	out := in
	if in.ModuleIDs != nil {
		out.ModuleIDs = append([]string{}, in.ModuleIDs...)
	}
	if in.ItemIDs != nil {
		out.ItemIDs = append([]string{}, in.ItemIDs...)
	}
	return out
}

// changedInputs lists the graph inputs whose value differs between a and b.
func changedInputs(a, b DashboardInputs) []progress.Node {
	var changed []progress.Node
	if a.CourseID != b.CourseID {
		changed = append(changed, progress.InputCourse)
	}
	if !sameSelection(a.ModuleIDs, b.ModuleIDs) {
		changed = append(changed, progress.InputModules)
	}
	if a.FocusModuleID != b.FocusModuleID {
		changed = append(changed, progress.InputFocusModule)
	}
	if !sameSelection(a.ItemIDs, b.ItemIDs) {
		changed = append(changed, progress.InputItems)
	}
	if a.StudentID != b.StudentID {
		changed = append(changed, progress.InputStudent)
	}
	if a.TableStudentID != b.TableStudentID {
		changed = append(changed, progress.InputTableStudent)
	}
	if !a.From.Equal(b.From) || !a.To.Equal(b.To) {
		changed = append(changed, progress.InputTimelineRange)
	}
	return changed
}

func sameSelection(a, b []string) bool {
	if (a == nil) != (b == nil) || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Dashboard holds every artifact of the dependency graph for one selection. Artifacts
// are fractions in [0,1]; a Dashboard is never modified after Recompute returns it.
type Dashboard struct {
	StoreID    string
	Inputs     DashboardInputs
	Recomputed []progress.Node

	ModuleCatalog    progress.Catalog
	StudentCatalog   progress.Labels
	ModuleDefault    []string
	ModuleSelection  []string
	CourseView       []models.ProgressEvent
	FocusModuleID    string
	ItemCatalog      progress.Catalog
	ItemDefault      []string
	ItemSelection    []string
	ItemView         []models.ProgressEvent
	StatePercentages []models.ModuleStateBreakdown
	MeanDurations    map[string]float64
	Timeline         []models.ModuleTimeline
	ItemCompletion   []models.ItemCompletion
	StudentView      []models.ProgressEvent
	StudentTable     []models.StudentItemRow
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	Workers       int
	ItemLabelMode progress.ItemLabelMode
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Stores  storeProvider
	Cache   *CacheService
	Metrics *MetricsService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// DashboardService recomputes dashboards over the current event store.
type DashboardService struct {
	stores   storeProvider
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	graph    *progress.Graph
	validate *validator.Validate
	now      func() time.Time
	cfg      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ItemLabelMode == "" {
		cfg.ItemLabelMode = progress.ItemLabelPosition
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		stores:   params.Stores,
		cache:    params.Cache,
		metrics:  params.Metrics,
		logger:   logger,
		graph:    progress.DashboardGraph(),
		validate: validator.New(),
		now:      time.Now,
		cfg:      cfg,
	}
}

func (s *DashboardService) checkInputs(in DashboardInputs) error {
	if err := s.validate.Struct(in); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dashboard selection")
	}
	if !in.From.IsZero() && !in.To.IsZero() && in.To.Before(in.From) {
		return appErrors.Clone(appErrors.ErrValidation, "timeline range ends before it starts")
	}
	return nil
}

// Recompute derives the dashboard for inputs. With a prev computed over the same store,
// only artifacts downstream of the inputs that differ are recomputed and every other
// artifact is shared with prev; prev itself is left untouched. Each level of the
// dependency graph runs concurrently.
func (s *DashboardService) Recompute(ctx context.Context, prev *Dashboard, inputs DashboardInputs) (*Dashboard, error) {
	if err := s.checkInputs(inputs); err != nil {
		return nil, err
	}
	store, err := s.stores.Current()
	if err != nil {
		return nil, err
	}

	next := &Dashboard{}
	var dirty []progress.Node
	if prev == nil || prev.StoreID != store.ID() {
		dirty = s.graph.Artifacts()
	} else {
		*next = *prev
		dirty = s.graph.Dirty(changedInputs(prev.Inputs, inputs)...)
	}
	next.StoreID = store.ID()
	next.Inputs = inputs.clone()
	next.Recomputed = dirty

	events := store.view()
	start := time.Now()
	for _, level := range s.graph.Levels(dirty) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Workers)
		for _, artifact := range level {
			artifact := artifact
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				t := time.Now()
				err := s.compute(artifact, next, events)
				s.metrics.ObserveArtifact(artifact, time.Since(t))
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, s.classify(err)
		}
	}
	s.metrics.ObserveRecompute(time.Since(start))
	s.logger.Debug("dashboard recomputed",
		zap.String("course_id", inputs.CourseID),
		zap.Int("artifacts", len(dirty)),
		zap.Duration("duration", time.Since(start)),
	)
	return next, nil
}

// compute derives one artifact into d. Artifacts of one level write disjoint fields.
func (s *DashboardService) compute(artifact progress.Node, d *Dashboard, events []models.ProgressEvent) error {
	in := d.Inputs
	switch artifact {
	case progress.ArtifactModuleCatalog:
		d.ModuleCatalog = progress.BuildCatalog(progress.CourseEvents(events, in.CourseID))
	case progress.ArtifactStudentCatalog:
		d.StudentCatalog = progress.BuildCatalog(progress.CourseEvents(events, in.CourseID)).Students
	case progress.ArtifactModuleDefault:
		d.ModuleDefault = d.ModuleCatalog.Modules.Keys()
	case progress.ArtifactCourseView:
		d.ModuleSelection = in.ModuleIDs
		if d.ModuleSelection == nil {
			d.ModuleSelection = d.ModuleDefault
		}
		d.CourseView = progress.Narrow(events, models.SelectionScope{
			CourseID:  in.CourseID,
			ModuleIDs: d.ModuleSelection,
			StudentID: in.StudentID,
		})
	case progress.ArtifactItemCatalog:
		d.FocusModuleID = in.FocusModuleID
		if d.FocusModuleID == "" {
			if keys := d.ModuleCatalog.Modules.Keys(); len(keys) > 0 {
				d.FocusModuleID = keys[0]
			}
		}
		d.ItemCatalog = progress.BuildCatalog(focusEvents(events, in.CourseID, d.FocusModuleID))
	case progress.ArtifactItemDefault:
		d.ItemDefault = d.ItemCatalog.Items.Keys()
	case progress.ArtifactItemView:
		d.ItemSelection = in.ItemIDs
		if d.ItemSelection == nil {
			d.ItemSelection = d.ItemDefault
		}
		d.ItemView = progress.Narrow(focusEvents(d.CourseView, in.CourseID, d.FocusModuleID), models.SelectionScope{
			CourseID:  in.CourseID,
			ItemIDs:   d.ItemSelection,
			StudentID: models.AllStudents,
		})
	case progress.ArtifactStatePercentages:
		d.StatePercentages = progress.ModuleStateMatrix(d.CourseView, d.ModuleCatalog)
	case progress.ArtifactMeanDurations:
		durations, err := progress.MeanDurationDays(d.CourseView)
		if err != nil {
			return err
		}
		d.MeanDurations = durations
	case progress.ArtifactTimeline:
		d.Timeline = progress.CourseTimeline(d.CourseView, d.ModuleCatalog, in.From, in.To)
	case progress.ArtifactItemCompletion:
		d.ItemCompletion = progress.ItemCompletionRates(d.ItemView, d.ItemCatalog, s.cfg.ItemLabelMode)
	case progress.ArtifactStudentView:
		d.StudentView = make([]models.ProgressEvent, 0)
		if in.TableStudentID != "" {
			d.StudentView = progress.Narrow(events, models.SelectionScope{CourseID: in.CourseID, StudentID: in.TableStudentID})
		}
	case progress.ArtifactStudentTable:
		d.StudentTable = progress.StudentTable(d.StudentView)
	default:
		return fmt.Errorf("no computation for artifact %s", artifact)
	}
	return nil
}

// focusEvents narrows events to one module of the course. No module yields no rows.
func focusEvents(events []models.ProgressEvent, courseID, moduleID string) []models.ProgressEvent {
	if moduleID == "" {
		return make([]models.ProgressEvent, 0)
	}
	return progress.Narrow(events, models.SelectionScope{CourseID: courseID, ModuleID: moduleID, StudentID: models.AllStudents})
}

func (s *DashboardService) classify(err error) error {
	var inconsistency *progress.DataInconsistencyError
	if errors.As(err, &inconsistency) {
		s.logger.Error("progress data inconsistent", zap.String("course_id", inconsistency.CourseID), zap.String("detail", inconsistency.Detail))
		return appErrors.Wrap(err, appErrors.ErrDataInconsistency.Code, appErrors.ErrDataInconsistency.Status, inconsistency.Error())
	}
	return err
}

// Present renders d into the presentation payload.
func (s *DashboardService) Present(d *Dashboard) *dto.DashboardResponse {
	in := d.Inputs
	selection := dto.DashboardSelection{
		CourseID:       in.CourseID,
		ModuleIDs:      nonNil(d.ModuleSelection),
		StudentID:      in.StudentID,
		ItemModuleID:   d.FocusModuleID,
		ItemIDs:        nonNil(d.ItemSelection),
		TableStudentID: in.TableStudentID,
	}
	if selection.StudentID == "" {
		selection.StudentID = models.AllStudents
	}
	if !in.From.IsZero() {
		selection.From = in.From.Format(dto.DateLayout)
	}
	if !in.To.IsZero() {
		selection.To = in.To.Format(dto.DateLayout)
	}

	return &dto.DashboardResponse{
		StoreID:        d.StoreID,
		Selection:      selection,
		Modules:        moduleOptions(d.ModuleCatalog),
		Students:       studentOptions(d.StudentCatalog),
		Items:          itemOptions(d.ItemCatalog, s.cfg.ItemLabelMode),
		StateBreakdown: dto.ModuleStatesFrom(d.StatePercentages),
		MeanDurations:  durationRows(d.MeanDurations, d.ModuleCatalog),
		Timeline:       dto.TimelineFrom(d.Timeline),
		ItemCompletion: dto.ItemCompletionFrom(d.ItemCompletion),
		StudentTable:   dto.StudentTableFrom(d.StudentTable),
		GeneratedAt:    s.now().UTC(),
	}
}

// Snapshot computes the dashboard for inputs from scratch and memoizes the payload under
// a key covering every input, the store snapshot and the item label mode.
func (s *DashboardService) Snapshot(ctx context.Context, inputs DashboardInputs) (*dto.DashboardResponse, bool, error) {
	if err := s.checkInputs(inputs); err != nil {
		return nil, false, err
	}
	store, err := s.stores.Current()
	if err != nil {
		return nil, false, err
	}
	key, err := s.cacheKey(store.ID(), inputs)
	if err != nil {
		return nil, false, err
	}
	return Remember(ctx, s.cache, key, func(ctx context.Context) (*dto.DashboardResponse, error) {
		d, err := s.Recompute(ctx, nil, inputs)
		if err != nil {
			return nil, err
		}
		return s.Present(d), nil
	})
}

// InvalidateStore drops every memoized payload computed over the store.
func (s *DashboardService) InvalidateStore(ctx context.Context, storeID string) error {
	return s.cache.Invalidate(ctx, fmt.Sprintf("%s:%s:*", dashboardKeyPrefix, storeID))
}

func (s *DashboardService) cacheKey(storeID string, in DashboardInputs) (string, error) {
	tuple := struct {
		Inputs DashboardInputs        `json:"inputs"`
		Mode   progress.ItemLabelMode `json:"mode"`
	}{in, s.cfg.ItemLabelMode}
	raw, err := json.Marshal(tuple)
	if err != nil {
		return "", fmt.Errorf("encode dashboard key: %w", err)
	}
	return fmt.Sprintf("%s:%s:%s", dashboardKeyPrefix, storeID, uuid.NewSHA1(uuid.NameSpaceURL, raw)), nil
}

// Courses lists the courses of the current store.
func (s *DashboardService) Courses(ctx context.Context) ([]models.CourseRef, error) {
	store, err := s.stores.Current()
	if err != nil {
		return nil, err
	}
	return store.Courses(), nil
}

// Catalog lists the modules, students and the items of one module of a course. An empty
// itemModuleID selects the first module. Unknown ids yield empty lists.
func (s *DashboardService) Catalog(ctx context.Context, courseID, itemModuleID string) (*dto.CatalogResponse, error) {
	store, err := s.stores.Current()
	if err != nil {
		return nil, err
	}
	course := progress.BuildCatalog(progress.CourseEvents(store.view(), courseID))
	focus := itemModuleID
	if focus == "" {
		if keys := course.Modules.Keys(); len(keys) > 0 {
			focus = keys[0]
		}
	}
	items := progress.BuildCatalog(focusEvents(store.view(), courseID, focus))

	return &dto.CatalogResponse{
		CourseID:     courseID,
		CourseName:   course.Courses.Label(courseID),
		Modules:      moduleOptions(course),
		ItemModuleID: focus,
		Items:        itemOptions(items, s.cfg.ItemLabelMode),
		Students:     studentOptions(course.Students),
	}, nil
}

func moduleOptions(c progress.Catalog) []dto.Option {
	out := make([]dto.Option, 0, c.Modules.Len())
	for _, p := range c.Modules.Pairs() {
		out = append(out, dto.Option{Value: p.ID, Label: p.Label, Ordinal: c.ModuleLabel(p.ID)})
	}
	return out
}

func itemOptions(c progress.Catalog, mode progress.ItemLabelMode) []dto.Option {
	out := make([]dto.Option, 0, c.Items.Len())
	for _, p := range c.Items.Pairs() {
		out = append(out, dto.Option{Value: p.ID, Label: p.Label, Ordinal: c.ItemLabel(p.ID, mode)})
	}
	return out
}

// studentOptions prepends the all-students sentinel.
func studentOptions(students progress.Labels) []dto.Option {
	out := make([]dto.Option, 0, students.Len()+1)
	out = append(out, dto.Option{Value: models.AllStudents, Label: models.AllStudents})
	for _, p := range students.Pairs() {
		out = append(out, dto.Option{Value: p.ID, Label: p.Label})
	}
	return out
}

func durationRows(durations map[string]float64, c progress.Catalog) []dto.ModuleDuration {
	out := make([]dto.ModuleDuration, 0, len(durations))
	for _, id := range c.Modules.Keys() {
		days, ok := durations[id]
		if !ok {
			continue
		}
		out = append(out, dto.ModuleDuration{
			ModuleID: id,
			Label:    c.ModuleLabel(id),
			Name:     c.Modules.Label(id),
			MeanDays: math.Round(days*10) / 10,
		})
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
