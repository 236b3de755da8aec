package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/domain"
	"tasktracker/internal/repo"
)

func row(stage string, stageOrd int, repoID string, repoOrd int, task string, taskOrd int, completed *bool) repo.HierarchyRow {
	r := repo.HierarchyRow{
		Stage:      domain.Stage{ID: stage, Title: stage, Ordering: stageOrd},
		Repository: domain.Repository{ID: repoID, Title: repoID, Ordering: repoOrd},
		Task:       domain.Task{ID: task, Title: task, Ordering: taskOrd},
	}
	if completed != nil {
		p := domain.NotStarted(task)
		p.Completed = *completed
		if p.Completed {
			link := "https://example.com/" + task
			p.Link = &link
		}
		r.Progress = &p
	}
	return r
}

func yes() *bool { b := true; return &b }
func no() *bool  { b := false; return &b }

func TestBuildSummaryEmpty(t *testing.T) {
	s := BuildSummary(nil)
	require.NotNil(t, s.Stages)
	assert.Empty(t, s.Stages)
	assert.Equal(t, 0.0, s.OverallProgress)
}

func TestBuildSummaryIgnoresInputOrder(t *testing.T) {
	rows := []repo.HierarchyRow{
		row("s2", 2, "r3", 1, "t5", 1, nil),
		row("s1", 1, "r2", 2, "t4", 1, no()),
		row("s1", 1, "r1", 1, "t3", 3, nil),
		row("s1", 1, "r1", 1, "t1", 1, yes()),
		row("s1", 1, "r1", 1, "t2", 2, yes()),
	}
	s := BuildSummary(rows)

	require.Len(t, s.Stages, 2)
	assert.Equal(t, "s1", s.Stages[0].ID)
	assert.Equal(t, "s2", s.Stages[1].ID)
	require.Len(t, s.Stages[0].Repositories, 2)
	r1 := s.Stages[0].Repositories[0]
	assert.Equal(t, "r1", r1.ID)
	assert.Equal(t, "s1", r1.StageID)

	var ids []string
	var enabled []bool
	for _, task := range r1.Tasks {
		ids = append(ids, task.ID)
		enabled = append(enabled, task.Enabled)
		assert.Equal(t, "r1", task.RepositoryID)
	}
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids)
	assert.Equal(t, []bool{true, true, true}, enabled)
	assert.Equal(t, domain.ProgressMetrics{Completed: 2, Total: 3, Percent: 66.7}, r1.Progress)
	assert.Equal(t, domain.ProgressMetrics{Completed: 2, Total: 4, Percent: 50}, s.Stages[0].Progress)
	assert.Equal(t, 40.0, s.OverallProgress)

	shuffled := []repo.HierarchyRow{rows[3], rows[0], rows[4], rows[2], rows[1]}
	assert.Equal(t, s, BuildSummary(shuffled))
}

func TestBuildSummaryEnabledFlags(t *testing.T) {
	s := BuildSummary([]repo.HierarchyRow{
		row("s", 1, "r", 1, "a", 1, no()),
		row("s", 1, "r", 1, "b", 2, yes()),
		row("s", 1, "r", 1, "c", 3, nil),
	})
	tasks := s.Stages[0].Repositories[0].Tasks
	require.Len(t, tasks, 3)
	assert.True(t, tasks[0].Enabled, "first task is always enabled")
	assert.True(t, tasks[1].Enabled, "completed tasks stay enabled")
	assert.False(t, tasks[2].Enabled)
	assert.Nil(t, tasks[2].Link)
}

func TestBuildSummaryTieBreaksOnID(t *testing.T) {
	s := BuildSummary([]repo.HierarchyRow{
		row("s", 1, "r", 1, "zeta", 1, nil),
		row("s", 1, "r", 1, "alpha", 1, nil),
	})
	tasks := s.Stages[0].Repositories[0].Tasks
	assert.Equal(t, "alpha", tasks[0].ID)
	assert.True(t, tasks[0].Enabled)
	assert.False(t, tasks[1].Enabled)
}

func TestPercentRounding(t *testing.T) {
	cases := []struct {
		done, total int
		want        float64
	}{
		{0, 0, 0},
		{0, 5, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{1, 8, 12.5},
		{1, 16, 6.2},
		{3, 16, 18.8},
		{5, 5, 100},
		{23, 80, 28.7},
		{49, 80, 61.3},
		{51, 80, 63.7},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, percent(tc.done, tc.total), "%d/%d", tc.done, tc.total)
	}
}
