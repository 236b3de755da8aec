package domain

type Stage struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  *string         `json:"description"`
	Ordering     int             `json:"ordering"`
	Repositories []Repository    `json:"repositories"`
	Progress     ProgressMetrics `json:"progress"`
}

type Repository struct {
	ID          string          `json:"id"`
	StageID     string          `json:"stage_id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Ordering    int             `json:"ordering"`
	Tasks       []Task          `json:"tasks"`
	Progress    ProgressMetrics `json:"progress"`
}

type Task struct {
	ID           string  `json:"id"`
	RepositoryID string  `json:"repository_id"`
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	Ordering     int     `json:"ordering"`
	Completed    bool    `json:"completed"`
	Enabled      bool    `json:"enabled"`
	Link         *string `json:"link"`
	CompletedAt  *string `json:"completed_at" format:"date-time"`
}

// TaskProgress is the only mutable record; a task without one has not been started.
type TaskProgress struct {
	TaskID      string  `json:"task_id"`
	Completed   bool    `json:"completed"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	Link        *string `json:"link,omitempty"`
}

// NotStarted is the progress of a task that has no stored row.
func NotStarted(taskID string) TaskProgress {
	return TaskProgress{TaskID: taskID}
}

type ProgressMetrics struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent" minimum:"0" maximum:"100"`
}

type ProgressSummary struct {
	Stages          []Stage `json:"stages"`
	OverallProgress float64 `json:"overall_progress" minimum:"0" maximum:"100"`
}
