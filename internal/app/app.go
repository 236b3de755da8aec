package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"tasktracker/internal/config"
	"tasktracker/internal/db"
	"tasktracker/internal/engine"
	"tasktracker/internal/migrate"
	"tasktracker/internal/repo"
	"tasktracker/internal/seed"
	"tasktracker/internal/telemetry"
)

// Deps are the process-wide collaborators handed to the engine. Zero values
// fall back to no-op implementations.
type Deps struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Metrics
}

// Runtime is an opened, migrated and seeded store with its engine.
type Runtime struct {
	DB     *sql.DB
	Engine engine.Engine
	Seeded seed.Result
}

// Open opens the store named by cfg, applies migrations and seeds the
// canonical checklist when the store is empty.
func Open(ctx context.Context, cfg *config.Config, deps Deps) (*Runtime, error) {
	conn, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	seeded, err := EnsureSeeded(ctx, conn, cfg.Seed.File)
	if err != nil {
		conn.Close()
		return nil, err
	}
	e := engine.New(conn)
	if deps.Logger != nil {
		e.Logger = deps.Logger
	}
	if deps.Tracer != nil {
		e.Tracer = deps.Tracer
	}
	e.Metrics = deps.Metrics
	if seeded.Tasks > 0 {
		e.Logger.Info("seeded store", "path", db.Path(db.Config{Path: cfg.Store.Path}), "stages", seeded.Stages, "repositories", seeded.Repositories, "tasks", seeded.Tasks)
	}
	return &Runtime{DB: conn, Engine: e, Seeded: seeded}, nil
}

// OpenStore opens and migrates the store without seeding it.
func OpenStore(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Path: cfg.Store.Path})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

func (r *Runtime) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// EnsureSeeded loads the checklist (file, or the embedded default when file is
// empty) if the store holds no stages yet. A populated store is left alone.
func EnsureSeeded(ctx context.Context, conn *sql.DB, file string) (seed.Result, error) {
	counts, err := repo.Repo{DB: conn}.Counts(ctx, nil)
	if err != nil {
		return seed.Result{}, fmt.Errorf("count hierarchy: %w", err)
	}
	if counts.Stages > 0 {
		return seed.Result{}, nil
	}
	checklist, err := Checklist(file)
	if err != nil {
		return seed.Result{}, err
	}
	res, err := seed.Load(ctx, conn, checklist)
	if err != nil {
		return seed.Result{}, fmt.Errorf("seed: %w", err)
	}
	return res, nil
}

// Checklist resolves the seed source: a file path, or the embedded default.
func Checklist(file string) (seed.Checklist, error) {
	if file == "" {
		return seed.Default()
	}
	c, err := seed.FromFile(file)
	if err != nil {
		return seed.Checklist{}, fmt.Errorf("load checklist %s: %w", file, err)
	}
	return c, nil
}
