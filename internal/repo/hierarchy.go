package repo

import (
	"context"
	"database/sql"

	"tasktracker/internal/domain"
)

// HierarchyRow is one (stage, repository, task, progress) tuple. Progress is
// nil when the task has no stored progress row.
type HierarchyRow struct {
	Stage      domain.Stage
	Repository domain.Repository
	Task       domain.Task
	Progress   *domain.TaskProgress
}

const hierarchyQuery = `SELECT
  s.id, s.title, s.description, s.ordering,
  r.id, r.title, r.description, r.ordering,
  t.id, t.title, t.description, t.ordering,
  tp.task_id, tp.completed, tp.completed_at, tp.link
FROM stages s
JOIN repositories r ON r.stage_id = s.id
JOIN tasks t ON t.repository_id = r.id
LEFT JOIN task_progress tp ON tp.task_id = t.id
ORDER BY s.ordering, s.id, r.ordering, r.id, t.ordering, t.id`

// ListHierarchy returns every task joined with its repository, stage and
// optional progress. A single statement, so the rows form one snapshot.
func (r Repo) ListHierarchy(ctx context.Context, q Querier) ([]HierarchyRow, error) {
	rows, err := r.on(q).QueryContext(ctx, hierarchyQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []HierarchyRow
	for rows.Next() {
		var (
			row                       HierarchyRow
			stageDesc, repoDesc       sql.NullString
			taskDesc                  sql.NullString
			progressTask, completedAt sql.NullString
			link                      sql.NullString
			completed                 sql.NullBool
		)
		if err := rows.Scan(
			&row.Stage.ID, &row.Stage.Title, &stageDesc, &row.Stage.Ordering,
			&row.Repository.ID, &row.Repository.Title, &repoDesc, &row.Repository.Ordering,
			&row.Task.ID, &row.Task.Title, &taskDesc, &row.Task.Ordering,
			&progressTask, &completed, &completedAt, &link,
		); err != nil {
			return nil, err
		}
		row.Stage.Description = stringPtr(stageDesc)
		row.Repository.StageID = row.Stage.ID
		row.Repository.Description = stringPtr(repoDesc)
		row.Task.RepositoryID = row.Repository.ID
		row.Task.Description = stringPtr(taskDesc)
		if progressTask.Valid {
			row.Progress = &domain.TaskProgress{
				TaskID:      progressTask.String,
				Completed:   completed.Valid && completed.Bool,
				CompletedAt: stringPtr(completedAt),
				Link:        stringPtr(link),
			}
		}
		res = append(res, row)
	}
	return res, rows.Err()
}
