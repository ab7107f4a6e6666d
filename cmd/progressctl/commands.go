package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/progress-dashboard/internal/dto"
	"github.com/noah-isme/progress-dashboard/internal/models"
	"github.com/noah-isme/progress-dashboard/internal/progress"
	"github.com/noah-isme/progress-dashboard/internal/repository"
	"github.com/noah-isme/progress-dashboard/internal/service"
	"github.com/noah-isme/progress-dashboard/pkg/config"
	"github.com/noah-isme/progress-dashboard/pkg/export"
	"github.com/noah-isme/progress-dashboard/pkg/logger"
)

// app holds the services shared by every subcommand. It is built lazily so --help
// never touches the event source.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	dashboard *service.DashboardService
	export    *service.ExportService
}

func newRootCmd() *cobra.Command {
	var (
		source string
		csv    string
		policy string
	)
	a := &app{}

	root := &cobra.Command{
		Use:           "progressctl",
		Short:         "Inspect course progress statistics from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context(), source, csv, policy)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&source, "source", "", "Event source: csv or postgres (overrides EVENTS_SOURCE)")
	root.PersistentFlags().StringVar(&csv, "csv", "", "Path to the progress CSV (overrides EVENTS_CSV_PATH)")
	root.PersistentFlags().StringVar(&policy, "ingest-policy", "", "Malformed row handling: skip or abort (overrides INGEST_POLICY)")

	root.AddCommand(
		newCoursesCmd(a),
		newCatalogCmd(a),
		newStatsCmd(a),
		newExportTableCmd(a),
	)
	return root
}

func (a *app) init(ctx context.Context, source, csvPath, policy string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if source != "" {
		cfg.Events.Source = strings.ToLower(source)
	}
	if csvPath != "" {
		cfg.Events.Source = config.SourceCSV
		cfg.Events.CSVPath = csvPath
	}
	if policy != "" {
		cfg.Events.IngestPolicy = strings.ToLower(policy)
	}
	// zap logs to stderr; stdout carries only command output.
	cfg.Log.Format = "console"

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	src, closeSource, err := repository.OpenEventSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource() //nolint:errcheck

	store, _, err := service.NewIngestService(logr, nil).Load(ctx, src, service.IngestPolicy(cfg.Events.IngestPolicy))
	if err != nil {
		return err
	}

	registry := service.NewStoreRegistry()
	registry.Swap(store)

	a.cfg = cfg
	a.logger = logr
	a.dashboard = service.NewDashboardService(service.DashboardServiceParams{
		Stores: registry,
		Cache:  service.NewCacheService(nil, nil, 0, logr, false),
		Logger: logr,
		Config: service.DashboardServiceConfig{
			Workers:       cfg.Dashboard.RecomputeWorkers,
			ItemLabelMode: progress.ParseItemLabelMode(cfg.Dashboard.ItemLabelMode),
		},
	})
	a.export = service.NewExportService(registry, export.NewCSVExporter(), logr)
	return nil
}

func newCoursesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List the courses of the loaded events",
		RunE: func(cmd *cobra.Command, args []string) error {
			courses, err := a.dashboard.Courses(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), courses)
		},
	}
}

func newCatalogCmd(a *app) *cobra.Command {
	var course, module string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the modules, items and students of a course",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.dashboard.Catalog(cmd.Context(), course, module)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), catalog)
		},
	}
	cmd.Flags().StringVar(&course, "course", "", "Course id")
	cmd.Flags().StringVar(&module, "module", "", "Module whose items are listed (default first module)")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var (
		in       service.DashboardInputs
		modules  []string
		items    []string
		students []string
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute the dashboard statistics of a selection",
		Long: "Compute the dashboard statistics of a selection. With several --student values one\n" +
			"dashboard is printed per student, each derived from the previous one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("modules") {
				in.ModuleIDs = nonNil(modules)
			}
			if cmd.Flags().Changed("items") {
				in.ItemIDs = nonNil(items)
			}
			var err error
			if in.From, err = parseDate(from); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if in.To, err = parseDate(to); err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			payloads, err := statsPerStudent(cmd.Context(), a.dashboard, in, students)
			if err != nil {
				return err
			}
			if len(payloads) == 1 {
				return printJSON(cmd.OutOrStdout(), payloads[0])
			}
			return printJSON(cmd.OutOrStdout(), payloads)
		},
	}
	cmd.Flags().StringVar(&in.CourseID, "course", "", "Course id")
	cmd.Flags().StringSliceVar(&modules, "modules", nil, "Selected module ids (default every module)")
	cmd.Flags().StringSliceVar(&students, "student", nil, "Student id or All, repeatable (default All)")
	cmd.Flags().StringVar(&in.FocusModuleID, "item-module", "", "Module whose items are charted (default first module)")
	cmd.Flags().StringSliceVar(&items, "items", nil, "Selected item ids (default every item)")
	cmd.Flags().StringVar(&in.TableStudentID, "table-student", "", "Student whose item table is rendered")
	cmd.Flags().StringVar(&from, "from", "", "Timeline start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Timeline end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

// statsPerStudent computes one dashboard per student. After the first, each dashboard
// only recomputes the artifacts that depend on the student selection.
func statsPerStudent(ctx context.Context, dashboard *service.DashboardService, in service.DashboardInputs, students []string) ([]*dto.DashboardResponse, error) {
	if len(students) == 0 {
		students = []string{models.AllStudents}
	}
	payloads := make([]*dto.DashboardResponse, 0, len(students))
	var prev *service.Dashboard
	for _, student := range students {
		in.StudentID = strings.TrimSpace(student)
		next, err := dashboard.Recompute(ctx, prev, in)
		if err != nil {
			return nil, fmt.Errorf("student %s: %w", in.StudentID, err)
		}
		payloads = append(payloads, dashboard.Present(next))
		prev = next
	}
	return payloads, nil
}

func newExportTableCmd(a *app) *cobra.Command {
	var course, student, out string
	cmd := &cobra.Command{
		Use:   "export-table",
		Short: "Write the item table of one student as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.export.StudentTableCSV(cmd.Context(), course, student)
			if err != nil {
				return err
			}
			if out == "" {
				out = result.Filename
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(result.Data)
				return err
			}
			if err := os.WriteFile(out, result.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			a.logger.Info("student table exported", zap.String("path", out), zap.Int("rows", result.Rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&course, "course", "", "Course id")
	cmd.Flags().StringVar(&student, "student", "", "Student id")
	cmd.Flags().StringVar(&out, "out", "", "Output path, - for stdout (default derived from course and student)")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dto.DateLayout, raw, time.UTC)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
