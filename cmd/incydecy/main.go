package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/incydecy/internal/config"
	"github.com/TobiSchelling/incydecy/internal/database"
	"github.com/TobiSchelling/incydecy/internal/logging"
	"github.com/TobiSchelling/incydecy/internal/pipeline"
	"github.com/TobiSchelling/incydecy/internal/report"
	"github.com/TobiSchelling/incydecy/internal/schedule"
	"github.com/TobiSchelling/incydecy/internal/server"
	"github.com/TobiSchelling/incydecy/internal/source"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "incydecy",
	Short:   "Karma tallies for a chat archive",
	Long:    "incydecy scans a chat archive for thing++ and thing-- messages and keeps per-thing karma scores in SQLite.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup("info", "console", verbose)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logging.Setup(cfg.Logging.Level, cfg.Logging.Format, verbose)
		log.Debug().Str("config", path).Str("guild", cfg.GuildID).Msg("config loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "incydecy", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/incydecy/",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Fprintf(out, "Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(out, "Created config: %s\n", target)
		fmt.Fprintln(out, "Edit it to point at your archive and set the guild id.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show destination and source status",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(ctx, cfg.GuildID)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Fprintf(out, "Guild: %s\n", cfg.GuildID)
		fmt.Fprintf(out, "Database: %s\n\n", db.Path())
		fmt.Fprintln(out, "Karma:")
		fmt.Fprintf(out, "  Things: %d\n", stats.Things)
		fmt.Fprintf(out, "  Messages: %d (%d up, %d down)\n",
			stats.Messages, stats.PositiveMessages, stats.NegativeMessages)
		fmt.Fprintf(out, "  Runs: %d\n", stats.Runs)
		if stats.LastRun != nil {
			fmt.Fprintf(out, "  Last run: %s (%d scanned)\n", stats.LastRun.FinishedAt, stats.LastRun.Scanned)
		}

		fmt.Fprintln(out, "\nSource:")
		fmt.Fprintf(out, "  Driver: %s\n", cfg.Source.Driver)
		fmt.Fprintf(out, "  Table: %s\n", cfg.Source.Table)
		src, err := openSource()
		if err != nil {
			fmt.Fprintf(out, "  Unavailable: %v\n", err)
			return nil
		}
		defer src.Close()
		n, err := src.Count(ctx)
		if err != nil {
			fmt.Fprintf(out, "  Unavailable: %v\n", err)
			return nil
		}
		fmt.Fprintf(out, "  Messages: %d\n", n)
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan the archive and reconcile karma into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		// A dry run never touches the destination, not even to create it.
		var db *database.DB
		if !dryRun {
			var err error
			db, err = openDB()
			if err != nil {
				return err
			}
			defer db.Close()
		}

		result, err := runOnce(cmd.Context(), db, dryRun)
		if result != nil {
			for i, step := range result.Steps {
				fmt.Fprintf(out, "\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
				if step.Err != nil {
					fmt.Fprintf(out, "  Error: %v\n", step.Err)
				} else {
					fmt.Fprintf(out, "  %s\n", step.Summary)
				}
			}
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(out)
		if err := report.FromTally(cfg.GuildID, result.Tally, cfg.Report.Top).Write(out, "table"); err != nil {
			return err
		}
		if !dryRun {
			fmt.Fprintln(out, "\nRun complete! Run 'incydecy serve' to browse the leaderboard.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Scan and tally without writing to the database")
}

// runOnce opens the archive and runs the pipeline against db, which is nil
// for dry runs. The source is closed by the pipeline once the scan ends.
func runOnce(ctx context.Context, db *database.DB, dry bool) (*pipeline.Result, error) {
	src, err := openSource()
	if err != nil {
		return nil, err
	}
	pipe := pipeline.New(pipeline.Options{
		GuildID:  cfg.GuildID,
		PageSize: cfg.Source.PageSize,
	}, db, src)

	if dry {
		return pipe.DryRun(ctx)
	}
	return pipe.Run(ctx)
}

// --- top command ---

var (
	topFormat string
	topLimit  int
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Print the karma leaderboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		limit := cfg.Report.Top
		if cmd.Flags().Changed("limit") {
			limit = topLimit
		}
		values, err := db.GetTopValues(cmd.Context(), cfg.GuildID, limit)
		if err != nil {
			return fmt.Errorf("loading leaderboard: %w", err)
		}
		return report.FromValues(cfg.GuildID, values).Write(cmd.OutOrStdout(), topFormat)
	},
}

func init() {
	topCmd.Flags().StringVarP(&topFormat, "format", "f", "table",
		"Output format: "+strings.Join(report.Formats, ", "))
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", 10, "Number of things to show (0 for all)")
}

// --- show command ---

var showLimit int

var showCmd = &cobra.Command{
	Use:   "show <thing>",
	Short: "Show a thing's karma and the messages that moved it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		thing := args[0]

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		value, err := db.GetValue(ctx, cfg.GuildID, thing)
		if errors.Is(err, database.ErrNotFound) {
			fmt.Fprintf(out, "No karma recorded for %q.\n", thing)
			return nil
		}
		if err != nil {
			return err
		}

		messages, err := db.GetMessagesForThing(ctx, cfg.GuildID, thing, showLimit)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s: %d\n\n", value.Thing, value.CurrentValue)
		if len(messages) == 0 {
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Sent", "Author", "", "Message"})
		for _, m := range messages {
			effect := "--"
			if m.Effect > 0 {
				effect = "++"
			}
			t.AppendRow(table.Row{deref(m.TimeSent), deref(m.AuthorID), effect, deref(m.Content)})
		}
		t.Render()
		return nil
	},
}

func init() {
	showCmd.Flags().IntVarP(&showLimit, "limit", "n", 20, "Number of messages to show (0 for all)")
}

// --- schedule command ---

var scheduleNow bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Re-run the scan on the configured cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Scheduling runs on %q. Press Ctrl+C to stop.\n", cfg.Schedule.Cron)
		return schedule.Run(ctx, schedule.Options{
			Spec:       cfg.Schedule.Cron,
			RunAtStart: scheduleNow,
		}, func(ctx context.Context) error {
			result, err := runOnce(ctx, db, false)
			if err != nil {
				return err
			}
			log.Info().
				Int("messages", result.Reconciled.Messages).
				Int("things", result.Reconciled.Things).
				Msg("karma reconciled")
			return nil
		})
	},
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleNow, "now", false, "Also run once immediately")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Starting server at http://localhost:%d\n", port)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")
		return server.Serve(db, cfg.GuildID, cfg.Report.Top, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- helpers ---

func openDB() (*database.DB, error) {
	return database.Open(cfg.GetDBPath())
}

func openSource() (*source.Store, error) {
	return source.Open(source.Options{
		Driver:  cfg.Source.Driver,
		Path:    cfg.Source.Path,
		DSN:     cfg.Source.DSN,
		Table:   cfg.Source.Table,
		OrderBy: cfg.Source.OrderBy,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
