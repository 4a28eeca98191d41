package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for testflow
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "testflow",
		Short: "Dependency-aware test suite batch scheduler",
		Long: `Testflow schedules batches of test suites for execution. It resolves
suite dependencies into sequential phases, admits sessions against a
shared resource pool by priority, and runs independent suites of a phase
in parallel.

Manifests are Markdown or YAML files describing the suites, their
dependencies, priorities, and resource needs.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
