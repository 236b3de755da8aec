package repo

import (
	"context"
	"database/sql"
	"errors"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx, so callers pick the
// handle scope and the repo stays agnostic.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) on(q Querier) Querier {
	if q != nil {
		return q
	}
	return r.DB
}

// Counts reports the size of the seeded hierarchy.
type Counts struct {
	Stages       int `json:"stages"`
	Repositories int `json:"repositories"`
	Tasks        int `json:"tasks"`
	Completed    int `json:"completed"`
}

func (r Repo) Counts(ctx context.Context, q Querier) (Counts, error) {
	var c Counts
	err := r.on(q).QueryRowContext(ctx, `SELECT
  (SELECT COUNT(*) FROM stages),
  (SELECT COUNT(*) FROM repositories),
  (SELECT COUNT(*) FROM tasks),
  (SELECT COUNT(*) FROM task_progress WHERE completed = 1)`).Scan(&c.Stages, &c.Repositories, &c.Tasks, &c.Completed)
	return c, err
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
