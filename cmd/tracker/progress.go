package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tasktracker/internal/app"
	"tasktracker/internal/config"
	"tasktracker/internal/domain"
	"tasktracker/internal/engine"
	trackersdk "tasktracker/sdk/go"
)

// progressBackend is either the local store or a running server.
type progressBackend interface {
	Summary(ctx context.Context) (domain.ProgressSummary, error)
	SetTask(ctx context.Context, repoID, taskID string, completed bool, link *string) error
}

type localBackend struct {
	engine engine.Engine
}

func (b localBackend) Summary(ctx context.Context) (domain.ProgressSummary, error) {
	return b.engine.FetchProgressSummary(ctx)
}

func (b localBackend) SetTask(ctx context.Context, repoID, taskID string, completed bool, link *string) error {
	return b.engine.UpdateTaskProgress(ctx, engine.UpdateTaskOptions{RepoID: repoID, TaskID: taskID, Completed: completed, Link: link})
}

type remoteBackend struct {
	client *trackersdk.Client
}

func (b remoteBackend) Summary(ctx context.Context) (domain.ProgressSummary, error) {
	s, err := b.client.Progress(ctx)
	if err != nil {
		return domain.ProgressSummary{}, err
	}
	return fromSDK(s), nil
}

func (b remoteBackend) SetTask(ctx context.Context, repoID, taskID string, completed bool, link *string) error {
	return b.client.SetTaskProgress(ctx, repoID, taskID, completed, link)
}

func withBackend(ctx context.Context, fn func(context.Context, progressBackend) error) error {
	if remote := viper.GetString("remote"); remote != "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := newRemoteClient(remote, viper.GetString("remote-base-path"), cfg)
		return fn(ctx, remoteBackend{client: client})
	}
	return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
		return fn(ctx, localBackend{engine: rt.Engine})
	})
}

// newRemoteClient targets the server's API prefix: an explicit basePath, else
// server.base_path from the config.
func newRemoteClient(remote, basePath string, cfg *config.Config) *trackersdk.Client {
	client := trackersdk.New(remote)
	switch {
	case basePath != "":
		client.BasePath = basePath
	case cfg != nil && cfg.Server.BasePath != "":
		client.BasePath = cfg.Server.BasePath
	}
	return client
}

func progressCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "progress", Short: "Show and update task progress"}
	cmd.AddCommand(progressShowCmd())
	cmd.AddCommand(progressCompleteCmd())
	cmd.AddCommand(progressReopenCmd())
	return cmd
}

func progressShowCmd() *cobra.Command {
	var tasks bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the progress hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), func(ctx context.Context, b progressBackend) error {
				summary, err := b.Summary(ctx)
				if err != nil {
					return err
				}
				if wantJSON() {
					return printJSON(summary)
				}
				if tasks {
					printTaskTree(summary)
					return nil
				}
				printSummaryTable(summary)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&tasks, "tasks", false, "list every task with its state")
	return cmd
}

func progressCompleteCmd() *cobra.Command {
	var link string
	cmd := &cobra.Command{
		Use:   "complete <repo-id> <task-id>",
		Short: "Mark a task complete",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), func(ctx context.Context, b progressBackend) error {
				if err := b.SetTask(ctx, args[0], args[1], true, &link); err != nil {
					return err
				}
				fmt.Printf("%s %s\n", color.GreenString("completed"), args[1])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&link, "link", "", "evidence link (required)")
	return cmd
}

func progressReopenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <repo-id> <task-id>",
		Short: "Mark a task incomplete and clear its link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), func(ctx context.Context, b progressBackend) error {
				if err := b.SetTask(ctx, args[0], args[1], false, nil); err != nil {
					return err
				}
				fmt.Printf("%s %s\n", color.YellowString("reopened"), args[1])
				return nil
			})
		},
	}
}

func printSummaryTable(s domain.ProgressSummary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Stage", "Repository", "Done", "Total", "%"})
	for _, st := range s.Stages {
		for _, r := range st.Repositories {
			tw.AppendRow(table.Row{st.Title, r.Title, r.Progress.Completed, r.Progress.Total, fmt.Sprintf("%.1f", r.Progress.Percent)})
		}
		tw.AppendSeparator()
	}
	tw.AppendFooter(table.Row{"", "Overall", "", "", fmt.Sprintf("%.1f", s.OverallProgress)})
	tw.Render()
}

func printTaskTree(s domain.ProgressSummary) {
	done := color.New(color.FgGreen).SprintFunc()
	open := color.New(color.FgYellow).SprintFunc()
	locked := color.New(color.Faint).SprintFunc()
	for _, st := range s.Stages {
		fmt.Printf("%s (%.1f%%)\n", color.New(color.Bold).Sprint(st.Title), st.Progress.Percent)
		for i, r := range st.Repositories {
			connector, prefix := "├── ", "│   "
			if i == len(st.Repositories)-1 {
				connector, prefix = "└── ", "    "
			}
			fmt.Printf("%s%s [%s] %d/%d\n", connector, r.Title, r.ID, r.Progress.Completed, r.Progress.Total)
			for _, t := range r.Tasks {
				switch {
				case t.Completed:
					link := ""
					if t.Link != nil {
						link = " " + *t.Link
					}
					fmt.Printf("%s  %s %s%s\n", prefix, done("[x]"), t.ID, link)
				case t.Enabled:
					fmt.Printf("%s  %s %s\n", prefix, open("[ ]"), t.ID)
				default:
					fmt.Printf("%s  %s\n", prefix, locked("[-] "+t.ID))
				}
			}
		}
	}
}

func fromSDK(s trackersdk.Summary) domain.ProgressSummary {
	out := domain.ProgressSummary{OverallProgress: s.OverallProgress, Stages: make([]domain.Stage, 0, len(s.Stages))}
	for _, st := range s.Stages {
		stage := domain.Stage{
			ID: st.ID, Title: st.Title, Description: st.Description, Ordering: st.Ordering,
			Progress: domain.ProgressMetrics(st.Progress),
		}
		for _, r := range st.Repositories {
			rp := domain.Repository{
				ID: r.ID, StageID: r.StageID, Title: r.Title, Description: r.Description, Ordering: r.Ordering,
				Progress: domain.ProgressMetrics(r.Progress),
			}
			for _, t := range r.Tasks {
				rp.Tasks = append(rp.Tasks, domain.Task(t))
			}
			stage.Repositories = append(stage.Repositories, rp)
		}
		out.Stages = append(out.Stages, stage)
	}
	return out
}
