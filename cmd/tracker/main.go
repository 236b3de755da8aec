package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tasktracker/internal/app"
	"tasktracker/internal/config"
	"tasktracker/internal/telemetry"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Sequential progress tracker",
	Long: `Tracker stores a fixed hierarchy of stages, repositories and tasks and
records which tasks are complete.

- Tasks inside a repository unlock in order: a task can only be completed once
  every earlier task of the same repository is complete.
- Completing a task requires an evidence link (a PR, notebook or report URL).
- Reopening a task clears its link and completion time.
- The hierarchy itself is seed data: it is loaded once from the embedded
  checklist (or --file) and never edited.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKTRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", config.DefaultFile, "config file (missing file means defaults)")
	rootCmd.PersistentFlags().String("db-path", "", "store file, overrides config (env TASKTRACKER_DB_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("remote", "", "base URL of a running tracker; progress commands go through its API")
	rootCmd.PersistentFlags().String("remote-base-path", "", "API prefix of the --remote server (default: server.base_path from config)")
	for _, name := range []string{"config", "db-path", "log-level", "json", "remote", "remote-base-path"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(progressCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())
}

// loadConfig resolves flag > env > file > default.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if p := viper.GetString("db-path"); p != "" {
		cfg.Store.Path = p
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withRuntime opens the local store for the duration of fn.
func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := telemetry.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	rt, err := app.Open(ctx, cfg, app.Deps{Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if wantJSON() {
				return printJSON(cfg)
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

// wantJSON is true with --json or when stdout is not a terminal.
func wantJSON() bool {
	if viper.GetBool("json") {
		return true
	}
	fd := os.Stdout.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
