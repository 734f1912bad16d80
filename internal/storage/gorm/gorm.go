// Package gormstorage implements the route store on top of GORM. The same
// backend serves SQLite (glebarez/sqlite) and Postgres connections.
package gormstorage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vrflight/routes/internal/database"
	"github.com/vrflight/routes/internal/model"
	"github.com/vrflight/routes/pkg/core"
	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend reads route records from the routes table
type Backend struct {
	db  *gorm.DB
	log *slog.Logger
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{db: deps.DB, log: log}
}

// Init migrates the route schema.
func (b *Backend) Init() error {
	return database.Migrate(b.log, b.db)
}

// GetRoutes returns every row in primary key order.
func (b *Backend) GetRoutes(ctx context.Context) ([]core.RouteRecord, error) {
	var rows []model.Route
	if err := b.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}

	out := make([]core.RouteRecord, len(rows))
	for i, r := range rows {
		out[i] = r.ToCore()
	}
	b.log.Debug("Loaded route records", "count", len(out), "dialect", b.db.Dialector.Name())
	return out, nil
}

// Seed inserts records in a single transaction.
func (b *Backend) Seed(ctx context.Context, records []core.RouteRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]model.Route, len(records))
	for i, r := range records {
		rows[i] = model.RouteFromCore(r)
	}
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, 500).Error
	})
	if err != nil {
		return fmt.Errorf("failed to seed routes: %w", err)
	}
	b.log.Info("Seeded route records", "count", len(rows))
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	return database.Close(b.db)
}
