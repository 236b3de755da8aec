package server

import "tasktracker/internal/domain"

// UpdateProgressRequest is the body of POST /progress/{repo_id}/{task_id}.
// Unknown fields are ignored.
type UpdateProgressRequest struct {
	_         struct{} `json:"-" additionalProperties:"true"`
	Completed bool     `json:"completed" doc:"Target completion state"`
	Link      *string  `json:"link,omitempty" nullable:"true" doc:"Evidence link; required and non-blank when completing" example:"https://github.com/me/repo/pull/1"`
}

type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

type updateProgressInput struct {
	RepoID string `path:"repo_id" doc:"Repository id"`
	TaskID string `path:"task_id" doc:"Task id"`
	Body   UpdateProgressRequest
}

type statusOutput struct {
	Body StatusResponse
}

type summaryOutput struct {
	Body domain.ProgressSummary
}

func ok() *statusOutput {
	return &statusOutput{Body: StatusResponse{Status: "ok"}}
}
