package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"tasktracker/internal/domain"
	"tasktracker/internal/repo"
)

// FetchProgressSummary reads the whole hierarchy and returns it with
// completion metrics and per-task enabled flags. It never writes.
func (e Engine) FetchProgressSummary(ctx context.Context) (domain.ProgressSummary, error) {
	ctx, span := e.tracer().Start(ctx, "progress.fetch_summary")
	defer span.End()

	conn, err := e.DB.Conn(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.ProgressSummary{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := e.Repo.ListHierarchy(ctx, conn)
	if err != nil {
		span.RecordError(err)
		return domain.ProgressSummary{}, fmt.Errorf("list hierarchy: %w", err)
	}
	e.Metrics.ObserveSummary()
	return BuildSummary(rows), nil
}

// BuildSummary groups joined rows into the stage -> repository -> task tree,
// sorts every level by (ordering, id) and fills in the derived fields.
// Input order does not matter.
func BuildSummary(rows []repo.HierarchyRow) domain.ProgressSummary {
	stages := map[string]*domain.Stage{}
	repos := map[string]*domain.Repository{}
	reposByStage := map[string][]string{}

	for _, row := range rows {
		if _, ok := stages[row.Stage.ID]; !ok {
			s := row.Stage
			s.Repositories = nil
			stages[s.ID] = &s
		}
		r, ok := repos[row.Repository.ID]
		if !ok {
			rp := row.Repository
			rp.StageID = row.Stage.ID
			rp.Tasks = nil
			r = &rp
			repos[rp.ID] = r
			reposByStage[row.Stage.ID] = append(reposByStage[row.Stage.ID], rp.ID)
		}
		progress := domain.NotStarted(row.Task.ID)
		if row.Progress != nil {
			progress = *row.Progress
		}
		t := row.Task
		t.RepositoryID = r.ID
		t.Completed = progress.Completed
		t.Link = progress.Link
		t.CompletedAt = progress.CompletedAt
		r.Tasks = append(r.Tasks, t)
	}

	summary := domain.ProgressSummary{Stages: make([]domain.Stage, 0, len(stages))}
	var overallDone, overallTotal int
	for id, s := range stages {
		stage := *s
		stage.Repositories = make([]domain.Repository, 0, len(reposByStage[id]))
		for _, repoID := range reposByStage[id] {
			stage.Repositories = append(stage.Repositories, finishRepository(*repos[repoID]))
		}
		sort.Slice(stage.Repositories, func(i, j int) bool {
			return before(stage.Repositories[i].Ordering, stage.Repositories[i].ID, stage.Repositories[j].Ordering, stage.Repositories[j].ID)
		})
		var done, total int
		for _, r := range stage.Repositories {
			done += r.Progress.Completed
			total += r.Progress.Total
		}
		stage.Progress = metrics(done, total)
		summary.Stages = append(summary.Stages, stage)
		overallDone += done
		overallTotal += total
	}
	sort.Slice(summary.Stages, func(i, j int) bool {
		return before(summary.Stages[i].Ordering, summary.Stages[i].ID, summary.Stages[j].Ordering, summary.Stages[j].ID)
	})
	summary.OverallProgress = percent(overallDone, overallTotal)
	return summary
}

// finishRepository orders the tasks, threads the unlock flag through them and
// computes the repository metrics.
func finishRepository(r domain.Repository) domain.Repository {
	tasks := append([]domain.Task(nil), r.Tasks...)
	sort.Slice(tasks, func(i, j int) bool {
		return before(tasks[i].Ordering, tasks[i].ID, tasks[j].Ordering, tasks[j].ID)
	})
	unlocked := true
	done := 0
	for i := range tasks {
		tasks[i].Enabled = unlocked || tasks[i].Completed
		unlocked = unlocked && tasks[i].Completed
		if tasks[i].Completed {
			done++
		}
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	r.Tasks = tasks
	r.Progress = metrics(done, len(tasks))
	return r
}

func before(ordA int, idA string, ordB int, idB string) bool {
	if ordA != ordB {
		return ordA < ordB
	}
	return idA < idB
}

func metrics(done, total int) domain.ProgressMetrics {
	return domain.ProgressMetrics{Completed: done, Total: total, Percent: percent(done, total)}
}

// percent is done/total*100 rounded to one decimal from its exact binary
// value, so ties are decided the way round(x, 1) decides them. 0 for an
// empty set.
func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	x := float64(done) / float64(total) * 100
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 1, 64), 64)
	return v
}
