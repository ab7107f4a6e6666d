package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/progress-dashboard/internal/models"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ProgressEventRepository reads raw progress rows from a PostgreSQL staging table whose
// columns mirror the CSV export. The table needs a monotonically increasing id column so
// rows come back in export order.
type ProgressEventRepository struct {
	db    *sqlx.DB
	table string
}

// NewProgressEventRepository instantiates the repository. table may be schema-qualified.
func NewProgressEventRepository(db *sqlx.DB, table string) (*ProgressEventRepository, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid progress table name %q", table)
	}
	return &ProgressEventRepository{db: db, table: table}, nil
}

// Name identifies the source in logs.
func (r *ProgressEventRepository) Name() string {
	return "postgres:" + r.table
}

// Load selects every row in export order.
func (r *ProgressEventRepository) Load(ctx context.Context) ([]models.RawProgressRow, error) {
	cols := make([]string, len(ProgressColumns))
	for i, c := range ProgressColumns {
		cols[i] = c + "::text AS " + c
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(cols, ", "), r.table)

	var rows []models.RawProgressRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query progress rows: %w", err)
	}
	return rows, nil
}

// Courses lists distinct course ids and names without loading every row.
func (r *ProgressEventRepository) Courses(ctx context.Context) ([]models.CourseRef, error) {
	query := fmt.Sprintf("SELECT course_id::text AS course_id, MIN(course_name::text) AS course_name FROM %s GROUP BY course_id ORDER BY MIN(id)", r.table)
	var refs []models.CourseRef
	if err := r.db.SelectContext(ctx, &refs, query); err != nil {
		return nil, fmt.Errorf("query progress courses: %w", err)
	}
	return refs, nil
}
