package repo

import (
	"context"
	"database/sql"
	"errors"

	"tasktracker/internal/domain"
)

// GetTask returns the task's static fields; ErrNotFound if the id is unknown.
func (r Repo) GetTask(ctx context.Context, q Querier, id string) (domain.Task, error) {
	var (
		t    domain.Task
		desc sql.NullString
	)
	err := r.on(q).QueryRowContext(ctx, `SELECT id, repository_id, title, description, ordering FROM tasks WHERE id=?`, id).
		Scan(&t.ID, &t.RepositoryID, &t.Title, &desc, &t.Ordering)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	t.Description = stringPtr(desc)
	return t, nil
}

// CountIncompleteBefore counts tasks of the repository that precede the given
// position in (ordering, id) sequence and are not completed. A task without a
// progress row counts as not completed.
func (r Repo) CountIncompleteBefore(ctx context.Context, q Querier, repoID string, ordering int, taskID string) (int, error) {
	var n int
	err := r.on(q).QueryRowContext(ctx, `SELECT COUNT(*)
FROM tasks t
LEFT JOIN task_progress tp ON tp.task_id = t.id
WHERE t.repository_id = ?
  AND (t.ordering < ? OR (t.ordering = ? AND t.id < ?))
  AND COALESCE(tp.completed, 0) = 0`, repoID, ordering, ordering, taskID).Scan(&n)
	return n, err
}

// GetProgress returns the stored progress row; ErrNotFound when absent.
func (r Repo) GetProgress(ctx context.Context, q Querier, taskID string) (domain.TaskProgress, error) {
	var (
		p                 domain.TaskProgress
		completedAt, link sql.NullString
	)
	err := r.on(q).QueryRowContext(ctx, `SELECT task_id, completed, completed_at, link FROM task_progress WHERE task_id=?`, taskID).
		Scan(&p.TaskID, &p.Completed, &completedAt, &link)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TaskProgress{}, ErrNotFound
	}
	if err != nil {
		return domain.TaskProgress{}, err
	}
	p.CompletedAt = stringPtr(completedAt)
	p.Link = stringPtr(link)
	return p, nil
}

// UpsertProgress writes the row as given; callers decide link/timestamp semantics.
func (r Repo) UpsertProgress(ctx context.Context, q Querier, p domain.TaskProgress) error {
	_, err := r.on(q).ExecContext(ctx, `INSERT INTO task_progress(task_id, completed, completed_at, link) VALUES (?,?,?,?)
ON CONFLICT(task_id) DO UPDATE SET completed=excluded.completed, completed_at=excluded.completed_at, link=excluded.link`,
		p.TaskID, p.Completed, nullable(p.CompletedAt), nullable(p.Link))
	return err
}
