package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/warp/standing-orders/carrier"
	"github.com/warp/standing-orders/config"
	"github.com/warp/standing-orders/documents"
	"github.com/warp/standing-orders/ledger"
	"github.com/warp/standing-orders/masterdata"
	"github.com/warp/standing-orders/recurring"
	"github.com/warp/standing-orders/scheduler"
	"github.com/warp/standing-orders/store/sqlite"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg       config.Config
	db        *sqlite.Store
	clock     recurring.Clock
	templates *recurring.Store
	carriers  *carrier.Registry
	sched     *scheduler.Scheduler
}

// openApp opens the database, seeds master data and wires the scheduler.
func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	db, err := sqlite.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	catalog := masterdata.Default()
	if cfg.MasterData != "" {
		catalog, err = masterdata.Load(cfg.MasterData)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := catalog.SeedInto(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed master data: %w", err)
	}

	clock := recurring.SystemClock{Location: cfg.Location()}
	ids := recurring.UUIDv7Generator{}
	carriers := carrier.NewRegistry(cfg.CarrierAliases())
	logger := slog.Default()

	templates := recurring.NewStore(db, clock, ids)
	mat := &ledger.Materializer{
		Tables:    db,
		IDs:       ids,
		Carriers:  carriers,
		Codes:     db,
		Documents: documents.NewQueueRenderer(db, ids),
		Logger:    logger,
	}
	sched := scheduler.New(templates, mat, db)
	sched.TemplateTimeout = cfg.Scheduler.TemplateTimeout
	sched.Logger = logger
	sched.Now = clock.Now

	return &app{
		cfg:       cfg,
		db:        db,
		clock:     clock,
		templates: templates,
		carriers:  carriers,
		sched:     sched,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
