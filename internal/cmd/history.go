package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/testflow/internal/history"
)

// NewHistoryCommand creates the history subcommand
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded test sessions",
		Long: `List sessions recorded in the history database, newest first.

Examples:
  testflow history
  testflow history --limit 5
  testflow history --session <id>`,
		RunE: historyCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .testflow/config.yaml)")
	cmd.Flags().Int("limit", 20, "Maximum number of sessions to list (0 = all)")
	cmd.Flags().String("session", "", "Show suite results for one session")

	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
		return showSession(store, sessionID, cmd.OutOrStdout())
	}

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := store.ListSessions(limit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s  %-20s  %-9s  %7s  %6s  %7s  %9s\n",
		"SESSION", "CONFIGURATION", "STATUS", "SUITES", "FAILED", "SKIPPED", "DURATION")
	for _, rec := range records {
		fmt.Fprintf(out, "%-36s  %-20s  %-9s  %7d  %6d  %7d  %9s\n",
			rec.ID, rec.ConfigurationID, rec.Status,
			rec.TotalSuites, rec.FailedSuites, rec.SkippedSuites,
			rec.Execution.Round(time.Millisecond))
	}
	return nil
}

// showSession prints one session with its per-suite results.
func showSession(store *history.Store, sessionID string, out io.Writer) error {
	rec, err := store.GetSession(sessionID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Session %s (%s)\n", rec.ID, rec.Status)
	fmt.Fprintf(out, "  Configuration: %s\n", rec.ConfigurationID)
	fmt.Fprintf(out, "  Suites: %d total, %d passed, %d failed, %d skipped\n",
		rec.TotalSuites, rec.PassedSuites, rec.FailedSuites, rec.SkippedSuites)
	fmt.Fprintf(out, "  Pass rate: %.0f%%\n", rec.PassRate*100)
	fmt.Fprintf(out, "  Queue wait: %s\n", rec.QueueWait.Round(time.Millisecond))
	fmt.Fprintf(out, "  Duration: %s\n", rec.Execution.Round(time.Millisecond))

	results, err := store.SuiteResults(sessionID)
	if err != nil {
		return err
	}
	if len(results) > 0 {
		fmt.Fprintf(out, "  Results:\n")
		for _, r := range results {
			line := fmt.Sprintf("    %-9s %s (%s)", r.Status, r.SuiteID, r.Duration.Round(time.Millisecond))
			if r.Message != "" {
				line += " - " + r.Message
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
