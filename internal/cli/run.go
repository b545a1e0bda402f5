package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/apfelbeet/crs/internal/adag"
	crsconfig "github.com/apfelbeet/crs/internal/crsconfig"
	dvcsgit "github.com/apfelbeet/crs/internal/dvcs/git"
	crserrors "github.com/apfelbeet/crs/internal/errors"
	"github.com/apfelbeet/crs/internal/progress"
	"github.com/apfelbeet/crs/internal/regression"
	"github.com/apfelbeet/crs/internal/runlog"
	"github.com/apfelbeet/crs/internal/scheduler"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	repository := args[0]
	script := args[1]
	scriptArgs := args[2:]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sources, _ := cmd.Flags().GetStringSlice("source")
	targets, _ := cmd.Flags().GetStringSlice("target")
	if len(sources) == 0 || len(targets) == 0 {
		return crserrors.MissingSourcesOrTargets()
	}

	info, statErr := os.Stat(script)
	switch {
	case statErr != nil:
		return crserrors.TestScriptUnreadable(script, statErr)
	case info.IsDir():
		return crserrors.TestScriptUnreadable(script, fmt.Errorf("%s is a directory", script))
	}

	repoRoot, err := repositoryRoot(ctx, repository)
	if err != nil {
		return err
	}

	sourceHashes, err := resolveCommits(ctx, repoRoot, sources)
	if err != nil {
		return err
	}
	targetHashes, err := resolveCommits(ctx, repoRoot, targets)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		dvcsgit.SetDebugLogger(func(format string, a ...any) { fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", a...) })
	}

	d := dvcsgit.New(repoRoot)
	graph, err := d.CommitGraph(ctx, sourceHashes, targetHashes)
	if err != nil {
		return crserrors.Wrap(err, crserrors.Runtime, "confirm the source and target commits share history")
	}
	if len(graph.Sources) == 0 || len(graph.Targets) == 0 {
		return crserrors.DisconnectedHistory(sourceHashes, targetHashes)
	}

	if cfg.DryRun {
		return printDryRun(cmd.OutOrStdout(), graph)
	}

	alg, err := buildAlgorithm(cfg.SearchMode, graph, cfg.Propagate, cfg.ExtendedSearch)
	if err != nil {
		return err
	}

	var run *runlog.Run
	if cfg.LogDir != "" {
		run, err = runlog.NewRun(cfg.LogDir, runlog.ArgsSummary{
			Repository:       repoRoot,
			Test:             script,
			WorktreeLocation: cfg.WorktreeLocation,
			Processes:        cfg.Processes,
			Propagate:        cfg.Propagate,
			Interrupt:        cfg.Interrupt,
			ExtendedSearch:   cfg.ExtendedSearch,
			SearchMode:       cfg.SearchMode,
			Sources:          sourceHashes,
			Targets:          targetHashes,
		})
		if err != nil {
			return crserrors.LogDirUnwritable(cfg.LogDir, err)
		}
	}

	expectedJobs := graph.NodeCount() - len(graph.Sources) - len(graph.Targets)
	if expectedJobs < 1 {
		expectedJobs = 1
	}
	tracker := progress.NewTracker(expectedJobs)
	reporter := progress.NewReporter(tracker, cmd.ErrOrStderr())

	runner := &scheduler.ProcessRunner{
		DVCS:       d,
		Script:     script,
		ScriptArgs: scriptArgs,
		Output:     jobOutputAdapter(run),
	}

	pool := scheduler.New(d, alg, runner, scheduler.Settings{
		MaxWorkers:       cfg.Processes,
		WorktreeLocation: cfg.WorktreeLocation,
		Interrupt:        cfg.Interrupt,
	}, cmd.ErrOrStderr())

	pool.OnResult = func(result scheduler.JobResult) {
		onJobResult(run, tracker, result)
	}

	reporter.Start()
	start := time.Now()
	runErr := pool.Run(ctx)
	overall := time.Since(start)
	reporter.Stop()

	points := alg.Results()
	if run != nil {
		if finishErr := run.Finish(overall, points); finishErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "crs: failed to finalize run log: %v\n", finishErr)
		}
	}

	printSummary(ctx, cmd.OutOrStdout(), d, overall, points)

	if runErr != nil {
		return crserrors.Wrap(runErr, crserrors.Runtime)
	}
	return nil
}

// loadConfig loads layered configuration and applies every flag the user
// set explicitly, which always wins over config file and environment
// values.
func loadConfig(cmd *cobra.Command) (*crsconfig.Configuration, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, crserrors.ConfigFileNotFound(configPath)
		}
	}

	cfg, err := crsconfig.LoadWithOptions(crsconfig.LoadOptions{ProjectConfigPath: configPath})
	if err != nil {
		return nil, crserrors.ConfigParseError(configPath, err)
	}

	flags := cmd.Flags()
	if flags.Changed("processes") {
		cfg.Processes, _ = flags.GetInt("processes")
	}
	if flags.Changed("no-propagate") {
		cfg.Propagate = false
	}
	if flags.Changed("worktree-location") {
		cfg.WorktreeLocation, _ = flags.GetString("worktree-location")
	}
	if flags.Changed("search-mode") {
		cfg.SearchMode, _ = flags.GetString("search-mode")
	}
	if flags.Changed("interrupt") {
		cfg.Interrupt, _ = flags.GetBool("interrupt")
	}
	if flags.Changed("no-extended") {
		cfg.ExtendedSearch = false
	}
	if flags.Changed("log") {
		cfg.LogDir, _ = flags.GetString("log")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("dry-run") {
		cfg.DryRun, _ = flags.GetBool("dry-run")
	}

	if cfg.WorktreeLocation != "" && !filepath.IsAbs(cfg.WorktreeLocation) {
		abs, err := filepath.Abs(cfg.WorktreeLocation)
		if err != nil {
			return nil, crserrors.InvalidWorktreeLocation(cfg.WorktreeLocation)
		}
		cfg.WorktreeLocation = abs
	}

	if err := crsconfig.Validate(cfg); err != nil {
		return nil, crserrors.NewConfigError(err.Error())
	}
	return cfg, nil
}

// jobOutputAdapter bridges runlog.Run's *JobWriter pair onto the
// scheduler's generic OutputFunc signature. When run is nil (no --log
// directory configured), job output is discarded.
func jobOutputAdapter(run *runlog.Run) scheduler.OutputFunc {
	return func(commit string) (stdout, stderr io.Writer, closeFn func()) {
		if run == nil {
			return io.Discard, io.Discard, func() {}
		}
		out, errOut, err := run.JobOutput(commit)
		if err != nil {
			return io.Discard, io.Discard, func() {}
		}
		return out, errOut, func() {
			out.Close()
			errOut.Close()
		}
	}
}

// onJobResult is the scheduler.Pool.OnResult callback: it updates the
// live progress tracker and, if run logging is enabled, records the
// job's outcome to disk.
func onJobResult(run *runlog.Run, tracker *progress.Tracker, result scheduler.JobResult) {
	switch {
	case result.Err != nil:
		if run != nil {
			run.RecordError(result.WorkerID, result.Commit, result.Err)
		}
		tracker.MarkFailed()
	case result.Interrupted:
		tracker.MarkSkipped()
	default:
		if run != nil {
			run.RecordJob(result.WorkerID, result.Commit, result.Result, result.Total, result.Setup, result.Query)
		}
		switch result.Result {
		case regression.Pass:
			tracker.MarkPassed()
		case regression.Fail:
			tracker.MarkFailed()
		default:
			tracker.MarkSkipped()
		}
	}
}

func printSummary(ctx context.Context, w io.Writer, d *dvcsgit.Git, overall time.Duration, points []regression.RegressionPoint) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()

	fmt.Fprintf(w, "\nSearch finished in %s.\n", overall.Round(time.Millisecond))
	if len(points) == 0 {
		fmt.Fprintln(w, green("No regression points found."))
		return
	}

	fmt.Fprintf(w, "%s\n", red(fmt.Sprintf("%d regression point(s) found:", len(points))))
	for _, p := range points {
		info, err := d.GetCommitInfo(ctx, p.RegressionPoint)
		if err != nil {
			fmt.Fprintf(w, "  target %s -> %s\n", p.Target, p.RegressionPoint)
			continue
		}
		fmt.Fprintf(w, "  target %s -> %s (%s)\n", p.Target, p.RegressionPoint, info)
	}
}

func printDryRun(w io.Writer, graph *adag.Adag[struct{}]) error {
	fmt.Fprintf(w, "commit graph: %d commits, %d source(s), %d target(s)\n",
		graph.NodeCount(), len(graph.Sources), len(graph.Targets))
	return nil
}
