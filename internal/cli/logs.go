package cli

import (
	"fmt"
	"path/filepath"

	"github.com/apfelbeet/crs/internal/runlog"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs <log-dir> [run-id]",
	Short: "Stream or dump a past run's query log",
	Long: `logs tails the "queries" file of a run directory written by --log,
the way "tail -f" would: it prints every completed job as it's appended
and keeps streaming until interrupted.

If run-id is omitted, the most recently started run under log-dir is
used. Use --no-follow to print the current content and exit immediately
instead of streaming.`,
	Example: `  # Stream the most recent run under ./runs
  crs logs ./runs

  # Dump one specific run and exit
  crs logs ./runs 20260115_093000 --no-follow`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().Bool("no-follow", false, "print the current content and exit instead of streaming")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	baseDir := args[0]
	runDir := ""
	if len(args) == 2 {
		runDir = filepath.Join(baseDir, args[1])
	} else {
		// ListRuns returns full run directory paths, most recent first.
		runs, err := runlog.ListRuns(baseDir)
		if err != nil {
			return fmt.Errorf("listing runs under %s: %w", baseDir, err)
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs found under %s", baseDir)
		}
		runDir = runs[0]
	}

	queriesPath := filepath.Join(runDir, "queries")

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cyan("Log:"), queriesPath)

	tailer, err := runlog.NewLogTailer(queriesPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", queriesPath, err)
	}
	defer tailer.Close()

	noFollow, _ := cmd.Flags().GetBool("no-follow")
	lines, err := tailer.Tail(cmd.Context(), !noFollow)
	if err != nil {
		return fmt.Errorf("tailing %s: %w", queriesPath, err)
	}

	for line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
