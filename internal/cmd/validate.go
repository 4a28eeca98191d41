package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/testflow/internal/parser"
	"github.com/harrison/testflow/internal/resolver"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a manifest and show its execution plan",
		Long: `Parse and validate a manifest, checking for:
  - Suite validation (ids, names, resource values)
  - Duplicate suite ids
  - Circular dependencies
  - Dependencies on unknown or disabled suites

On success, prints the resolved execution phases and the critical path.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateManifest(args[0], cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	return cmd
}

// validateManifest parses the manifest, runs dependency resolution, and
// prints the resulting phase plan.
func validateManifest(path string, output io.Writer) error {
	manifest, err := parser.ParseFile(path)
	if err != nil {
		fmt.Fprintf(output, "✗ Failed to parse manifest %s\n", path)
		fmt.Fprintf(output, "  Error: %v\n", err)
		return fmt.Errorf("parse error: %w", err)
	}

	enabled := manifest.EnabledSuites()
	fmt.Fprintf(output, "✓ Parsed %d suites (%d enabled) from %s\n", len(manifest.Suites), len(enabled), path)

	if cycle := resolver.DetectCycles(manifest.Suites); len(cycle) > 0 {
		fmt.Fprintf(output, "✗ Circular dependency detected: %s\n", strings.Join(cycle, " -> "))
		return fmt.Errorf("circular dependency: %s", strings.Join(cycle, " -> "))
	}
	fmt.Fprintf(output, "✓ No circular dependencies detected\n")

	graph, err := resolver.BuildGraph(manifest.Suites)
	if err != nil {
		fmt.Fprintf(output, "✗ Dependency resolution failed: %v\n", err)
		return fmt.Errorf("resolution error: %w", err)
	}
	fmt.Fprintf(output, "✓ All dependencies resolve to enabled suites\n")

	concurrency := manifest.ConcurrencyLevel
	if concurrency <= 0 {
		concurrency = resolver.DefaultMaxConcurrencyPerPhase
	}
	phases := resolver.BuildPhases(graph, concurrency)

	fmt.Fprintf(output, "\nExecution plan (%d phases):\n", len(phases))
	for _, phase := range phases {
		fmt.Fprintf(output, "  %s: %s (est %s, concurrency %d)\n",
			phase.Name, strings.Join(phase.Suites, ", "), phase.EstimatedDuration, phase.MaxConcurrency)
	}

	if critical := resolver.CriticalPath(graph); len(critical) > 0 {
		fmt.Fprintf(output, "\nCritical path: %s (%s)\n",
			strings.Join(critical, " -> "), resolver.PathDuration(graph, critical))
	}

	fmt.Fprintf(output, "\n✓ Manifest is valid!\n")
	return nil
}
