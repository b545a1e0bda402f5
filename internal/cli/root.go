// Package cli implements the crs command line: a single root command
// that runs a commit regression search, plus a "logs" companion command
// for inspecting a past run's on-disk record.
package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	crserrors "github.com/apfelbeet/crs/internal/errors"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crs <repository> <test-script> [-- test-args...]",
	Short: "Find the commit that introduced a regression",
	Long: `crs searches the commit graph of a git repository for the commit that
introduced a regression: given one or more known-good source commits and
one or more known-bad target commits, it repeatedly runs a test script
against candidate commits between them until it isolates, for every
target, the earliest commit on its history that fails.

Several search strategies are available via --search-mode: RPA-based
interval search (binary, linear, or multiplying sampling) over either the
longest or shortest source-to-target path, Extended RPA's additional
parent-verification pass, or speculative BISECT, which explores several
branches of the commit tree at once instead of committing to one path.`,
	Example: `  # Binary search the longest path from a known-good tag to HEAD
  crs . ./run-tests.sh --source v1.0.0 --target HEAD

  # Bisect with four parallel worktrees, logging to ./runs
  crs . ./run-tests.sh -s v1.0.0 -t HEAD -p 4 --search-mode bisect -l ./runs

  # Multiple sources and targets, propagation disabled
  crs /path/to/repo ./check.sh -s a1b2c3,d4e5f6 -t HEAD,release --no-propagate`,
	Args:          cobra.MinimumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSearch,
}

func init() {
	flags := rootCmd.Flags()
	flags.IntP("processes", "p", 0, "number of worker worktrees to run concurrently (default from config, usually 1)")
	flags.StringSliceP("source", "s", nil, "known-good commit(s), comma-separated")
	flags.StringSliceP("target", "t", nil, "known-bad commit(s), comma-separated")
	flags.Bool("no-propagate", false, "don't report a confirmed regression point as the answer for every target reachable from it")
	flags.String("worktree-location", "", "directory to create worker worktrees under (default: .crs/ inside the repository)")
	flags.String("search-mode", "", "exrpa-{long,short}-{bin,lin,mul} or bisect (default from config)")
	flags.Bool("interrupt", false, "cancel an in-flight test whose result the algorithm no longer needs")
	flags.Bool("no-extended", false, "disable Extended RPA's parent-verification pass")
	flags.StringP("log", "l", "", "directory to write a timestamped run log under")
	flags.String("config", "", "explicit config file, overriding .crs/config.yml")
	flags.BoolP("verbose", "v", false, "log DVCS and scheduler internals")
	flags.Bool("dry-run", false, "print the computed commit graph's summary and exit without testing anything")

	rootCmd.AddCommand(logsCmd)
}

// Execute runs the crs CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		printTopLevelError(os.Stderr, err)
		return exitCodeForErr(err)
	}
	return ExitSuccess
}

func printTopLevelError(w io.Writer, err error) {
	var cliErr *crserrors.CLIError
	if stderrors.As(err, &cliErr) {
		crserrors.FprintError(w, cliErr)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
