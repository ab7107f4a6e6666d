package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/progress-dashboard/internal/models"
	"github.com/noah-isme/progress-dashboard/pkg/config"
	"github.com/noah-isme/progress-dashboard/pkg/database"
)

// EventSource yields raw progress rows.
type EventSource interface {
	Name() string
	Load(ctx context.Context) ([]models.RawProgressRow, error)
}

// OpenEventSource builds the source selected by cfg. The returned close function
// releases any connection the source holds.
func OpenEventSource(ctx context.Context, cfg *config.Config) (EventSource, func() error, error) {
	switch cfg.Events.Source {
	case config.SourceCSV:
		return NewCSVEventSource(cfg.Events.CSVPath), func() error { return nil }, nil
	case config.SourcePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo, err := NewProgressEventRepository(db, cfg.Events.Table)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown event source %q", cfg.Events.Source)
	}
}
