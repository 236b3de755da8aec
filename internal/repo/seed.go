package repo

import (
	"context"
	"database/sql"

	"tasktracker/internal/domain"
)

// Seed inserts never overwrite: rows already present keep their values.

func (r Repo) InsertStage(ctx context.Context, q Querier, s domain.Stage) (bool, error) {
	res, err := r.on(q).ExecContext(ctx, `INSERT INTO stages(id, title, description, ordering) VALUES (?,?,?,?)
ON CONFLICT(id) DO NOTHING`, s.ID, s.Title, nullable(s.Description), s.Ordering)
	return inserted(res, err)
}

func (r Repo) InsertRepository(ctx context.Context, q Querier, rp domain.Repository) (bool, error) {
	res, err := r.on(q).ExecContext(ctx, `INSERT INTO repositories(id, stage_id, title, description, ordering) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO NOTHING`, rp.ID, rp.StageID, rp.Title, nullable(rp.Description), rp.Ordering)
	return inserted(res, err)
}

func (r Repo) InsertTask(ctx context.Context, q Querier, t domain.Task) (bool, error) {
	res, err := r.on(q).ExecContext(ctx, `INSERT INTO tasks(id, repository_id, title, description, ordering) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO NOTHING`, t.ID, t.RepositoryID, t.Title, nullable(t.Description), t.Ordering)
	return inserted(res, err)
}

// EnsureProgress creates a not-started row for the task if none exists.
func (r Repo) EnsureProgress(ctx context.Context, q Querier, taskID string) error {
	_, err := r.on(q).ExecContext(ctx, `INSERT INTO task_progress(task_id, completed, completed_at, link) VALUES (?, 0, NULL, NULL)
ON CONFLICT(task_id) DO NOTHING`, taskID)
	return err
}

func inserted(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
