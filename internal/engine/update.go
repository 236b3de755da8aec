package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tasktracker/internal/domain"
	"tasktracker/internal/repo"
	"tasktracker/internal/telemetry"
)

const (
	msgTaskNotFound     = "Task not found."
	msgTaskRepoMismatch = "Task does not belong to repository."
	msgSequentialLock   = "Complete previous tasks before unlocking this item."
	msgMissingLink      = "Provide a work link to mark complete."
)

// UpdateTaskOptions describe a single completion-state change.
type UpdateTaskOptions struct {
	RepoID    string
	TaskID    string
	Completed bool
	Link      *string
}

// UpdateTaskProgress validates and applies a completion change to one task.
// Checks and write share one immediate transaction, so concurrent updates
// against the same repository serialize. The first failing check wins and
// nothing is written; failures are *ValidationError, anything else is a store
// fault.
func (e Engine) UpdateTaskProgress(ctx context.Context, opts UpdateTaskOptions) error {
	ctx, span := e.tracer().Start(ctx, "progress.update_task", trace.WithAttributes(
		telemetry.AttrRepoID.String(opts.RepoID),
		telemetry.AttrTaskID.String(opts.TaskID),
		telemetry.AttrCompleted.Bool(opts.Completed),
	))
	defer span.End()

	err := e.updateTaskProgress(ctx, opts)
	outcome := outcomeOf(err)
	span.SetAttributes(telemetry.AttrOutcome.String(outcome))
	e.Metrics.ObserveUpdate(outcome)
	switch {
	case err == nil:
		e.logger().Info("task progress updated", "repo_id", opts.RepoID, "task_id", opts.TaskID, "completed", opts.Completed)
	case IsValidation(err):
		e.logger().Debug("task progress rejected", "repo_id", opts.RepoID, "task_id", opts.TaskID, "reason", err.Error())
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (e Engine) updateTaskProgress(ctx context.Context, opts UpdateTaskOptions) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	task, err := e.Repo.GetTask(ctx, tx, opts.TaskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return newValidationError(ErrTaskNotFound, msgTaskNotFound)
		}
		return fmt.Errorf("load task: %w", err)
	}
	if task.RepositoryID != opts.RepoID {
		return newValidationError(ErrTaskRepositoryMismatch, msgTaskRepoMismatch)
	}

	progress := domain.NotStarted(task.ID)
	if opts.Completed {
		blocking, err := e.Repo.CountIncompleteBefore(ctx, tx, task.RepositoryID, task.Ordering, task.ID)
		if err != nil {
			return fmt.Errorf("count previous tasks: %w", err)
		}
		if blocking > 0 {
			return newValidationError(ErrSequentialLock, msgSequentialLock)
		}
		if opts.Link == nil || strings.TrimSpace(*opts.Link) == "" {
			return newValidationError(ErrMissingEvidenceLink, msgMissingLink)
		}
		completedAt := e.now().UTC().Format(time.RFC3339)
		link := *opts.Link
		progress.Completed = true
		progress.CompletedAt = &completedAt
		progress.Link = &link
	}

	if err := e.Repo.UpsertProgress(ctx, tx, progress); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return tx.Commit()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTaskNotFound):
		return "task_not_found"
	case errors.Is(err, ErrTaskRepositoryMismatch):
		return "repository_mismatch"
	case errors.Is(err, ErrSequentialLock):
		return "sequential_lock"
	case errors.Is(err, ErrMissingEvidenceLink):
		return "missing_link"
	default:
		return "error"
	}
}
