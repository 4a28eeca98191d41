package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harrison/testflow/internal/config"
	"github.com/harrison/testflow/internal/filelock"
	"github.com/harrison/testflow/internal/history"
	"github.com/harrison/testflow/internal/logger"
	"github.com/harrison/testflow/internal/models"
	"github.com/harrison/testflow/internal/orchestrator"
	"github.com/harrison/testflow/internal/parser"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Execute a test suite manifest",
		Long: `Execute a manifest by scheduling its suites as one test session.

The run command parses the manifest (Markdown or YAML), resolves suite
dependencies into phases, admits the session against the configured
resource pool, and runs independent suites of each phase in parallel.

Suites are rehearsed: each one sleeps its estimated duration scaled down
by --speedup and reports success. Wiring a real suite runner replaces the
rehearsal behavior.

Configuration is loaded from .testflow/config.yaml if present.

Examples:
  testflow run suites.yaml
  testflow run suites.md --timeout 1h
  testflow run suites.yaml --verbose --no-history
  testflow run suites.yaml --speedup 600`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .testflow/config.yaml)")
	cmd.Flags().String("timeout", "", "Session timeout, overrides the manifest (e.g. 30m, 2h)")
	cmd.Flags().Bool("verbose", false, "Show per-suite results")
	cmd.Flags().Bool("no-history", false, "Do not record the session to the history database")
	cmd.Flags().Int("speedup", 60, "Divide suite estimated durations by this factor")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	noHistory, _ := cmd.Flags().GetBool("no-history")
	speedup, _ := cmd.Flags().GetInt("speedup")
	if speedup < 1 {
		speedup = 1
	}

	manifest, err := parser.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	if timeoutStr, _ := cmd.Flags().GetString("timeout"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid timeout format %q: %w", timeoutStr, err)
		}
		manifest.Timeout = timeout
	}

	// One run per state directory at a time; the history database is not
	// meant to be shared mid-write.
	lock, err := filelock.Acquire(cfg.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	logLevel := cfg.LogLevel
	if verbose {
		logLevel = "debug"
	}
	consoleLog := logger.NewConsoleLogger(cmd.OutOrStdout(), logLevel)

	orch := orchestrator.New(newRehearsalRunner(speedup), orchestrator.Options{
		MaxConcurrentSessions:  cfg.MaxConcurrentSessions,
		MaxConcurrencyPerPhase: cfg.MaxConcurrencyPerPhase,
		QueueSize:              cfg.QueueSize,
		AdmissionRetryLimit:    cfg.AdmissionRetryLimit,
		AdmissionRetryDelay:    cfg.AdmissionRetryDelay,
		Limits:                 cfg.Resources.Requirements(),
	}, consoleLog)
	defer orch.Close()

	if cfg.History.Enabled && !noHistory {
		store, err := history.NewStore(cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer store.Close()
		orch.SetRecorder(store)
	}

	events := orch.Subscribe()

	sessionID, err := orch.StartTestSession(*manifest)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	session, err := waitForSession(cmd.Context(), orch, consoleLog, events, sessionID)
	if err != nil {
		return err
	}

	consoleLog.LogSessionSummary(session)
	if err := writeLastRun(cfg.StateDir, session); err != nil {
		consoleLog.Warnf("failed to write last-run summary: %v", err)
	}

	switch session.Status {
	case models.SessionFailed:
		return fmt.Errorf("session %s failed: %s", session.ID, lastError(session))
	case models.SessionCancelled:
		return fmt.Errorf("session %s cancelled", session.ID)
	}
	if session.Progress.FailedSuites > 0 {
		return fmt.Errorf("%d suite(s) failed", session.Progress.FailedSuites)
	}
	return nil
}

// waitForSession consumes lifecycle events until the session reaches a
// terminal state. An interrupt requests cooperative cancellation; the
// session still finishes at the next suite boundary.
func waitForSession(ctx context.Context, orch *orchestrator.Orchestrator, consoleLog *logger.ConsoleLogger, events <-chan orchestrator.Event, sessionID string) (models.TestSession, error) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	interrupt := sigCtx.Done()

	for {
		select {
		case <-interrupt:
			consoleLog.Warnf("interrupt received, stopping session %s", sessionID)
			if err := orch.StopTestSession(sessionID); err != nil {
				consoleLog.Warnf("failed to stop session: %v", err)
			}
			interrupt = nil

		case ev, ok := <-events:
			if !ok {
				// Bus closed; fall back to the registry.
				return orch.GetTestSession(sessionID)
			}
			switch e := ev.(type) {
			case orchestrator.ProgressUpdated:
				if e.SessionID == sessionID {
					consoleLog.LogProgress(e.Progress)
				}
			case orchestrator.SessionCompleted:
				if e.SessionID == sessionID {
					return e.Session, nil
				}
			case orchestrator.SessionCancelled:
				if e.SessionID == sessionID {
					return e.Session, nil
				}
			}
		}
	}
}

// lastRun is the yaml shape of the last-run summary kept in the state
// directory.
type lastRun struct {
	SessionID     string `yaml:"session_id"`
	Status        string `yaml:"status"`
	TotalSuites   int    `yaml:"total_suites"`
	PassedSuites  int    `yaml:"passed_suites"`
	FailedSuites  int    `yaml:"failed_suites"`
	SkippedSuites int    `yaml:"skipped_suites"`
	EndedAt       string `yaml:"ended_at,omitempty"`
}

// writeLastRun records the terminal session summary atomically so other
// tooling can read it without racing a partial write.
func writeLastRun(stateDir string, session models.TestSession) error {
	summary := lastRun{
		SessionID:     session.ID,
		Status:        string(session.Status),
		TotalSuites:   session.Progress.TotalSuites,
		PassedSuites:  session.Progress.CompletedSuites,
		FailedSuites:  session.Progress.FailedSuites,
		SkippedSuites: session.Progress.SkippedSuites,
	}
	if session.EndedAt != nil {
		summary.EndedAt = session.EndedAt.Format(time.RFC3339)
	}

	data, err := yaml.Marshal(summary)
	if err != nil {
		return err
	}
	return filelock.AtomicWrite(filepath.Join(stateDir, "last-run.yaml"), data)
}

func lastError(session models.TestSession) string {
	if len(session.Errors) == 0 {
		return "unknown error"
	}
	return session.Errors[len(session.Errors)-1].Message
}

// loadConfig loads the runtime configuration honoring the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// rehearsalRunner stands in for a real suite runner: it sleeps each
// suite's estimated duration divided by the speedup factor and reports
// success, honoring cooperative cancellation.
type rehearsalRunner struct {
	speedup int
}

func newRehearsalRunner(speedup int) *rehearsalRunner {
	return &rehearsalRunner{speedup: speedup}
}

func (r *rehearsalRunner) RunSuite(ctx context.Context, suite models.TestSuiteConfig) (models.TestResult, error) {
	wait := suite.EstimatedDuration / time.Duration(r.speedup)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.TestResult{}, ctx.Err()
		case <-timer.C:
		}
	}
	return models.TestResult{
		SuiteID: suite.ID,
		Status:  models.SuitePassed,
		Message: "rehearsed",
	}, nil
}
