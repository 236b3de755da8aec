package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tasktracker/internal/app"
	"tasktracker/internal/seed"
)

func seedCmd() *cobra.Command {
	var file string
	var check bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the stage/repository/task checklist into the store",
		Long: `Seed inserts the checklist into the store. Rows that already exist are kept
as they are, so running it twice is harmless and never resets progress.
Without --file the embedded default checklist is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			checklist, err := app.Checklist(file)
			if err != nil {
				return err
			}
			if check {
				counts := checklist.Counts()
				if wantJSON() {
					return printJSON(counts)
				}
				fmt.Printf("valid checklist: %d stages, %d repositories, %d tasks\n", counts.Stages, counts.Repositories, counts.Tasks)
				return nil
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			res, err := seed.Load(cmd.Context(), conn, checklist)
			if err != nil {
				return err
			}
			if wantJSON() {
				return printJSON(res)
			}
			fmt.Printf("inserted %d stages, %d repositories, %d tasks into %s\n", res.Stages, res.Repositories, res.Tasks, cfg.Store.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "checklist YAML file (default: embedded checklist)")
	cmd.Flags().BoolVar(&check, "check", false, "validate the checklist without touching the store")
	return cmd
}
