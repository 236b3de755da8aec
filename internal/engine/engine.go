package engine

import (
	"database/sql"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"tasktracker/internal/repo"
	"tasktracker/internal/telemetry"
)

// Engine computes progress summaries and applies task progress updates.
// It holds the pool only; every call acquires and releases its own handle.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Metrics
	Now     func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Logger: telemetry.Discard(),
		Tracer: telemetry.NoopTracer(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return telemetry.Discard()
}

func (e Engine) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return telemetry.NoopTracer()
}
