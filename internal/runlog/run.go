// Package runlog writes the on-disk record of one crs invocation: a
// timestamped run directory holding the resolved arguments, a CSV of
// every completed job, per-job captured test-script output, and
// per-iteration search-state summaries.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apfelbeet/crs/internal/regression"
)

const queriesHeader = "pid,commit,status,seconds_all,seconds_setup,seconds_query"

// ArgsSummary is the resolved configuration dumped into a run directory's
// "arguments" file, so a run can be reproduced or audited after the fact.
type ArgsSummary struct {
	Repository       string
	Test             string
	WorktreeLocation string
	Processes        int
	Propagate        bool
	Interrupt        bool
	ExtendedSearch   bool
	SearchMode       string
	Sources          []string
	Targets          []string
}

// Run is one invocation's on-disk log. It is safe for concurrent use by
// multiple scheduler workers.
type Run struct {
	dir string

	mu       sync.Mutex
	queries  *os.File
	allSum   float64
	setupSum float64
	querySum float64
	count    int

	iterCounters map[string]int
}

// NewRun creates a fresh, timestamped run directory under baseDir and
// writes the "arguments" file and the "queries" CSV header. baseDir is
// created if it does not already exist.
func NewRun(baseDir string, args ArgsSummary) (*Run, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run log base directory: %w", err)
	}

	dir := filepath.Join(baseDir, time.Now().UTC().Format("20060102_150405"))
	if err := os.MkdirAll(filepath.Join(dir, "output"), 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	if err := writeArguments(dir, args); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(dir, "queries"))
	if err != nil {
		return nil, fmt.Errorf("creating queries log: %w", err)
	}
	if _, err := fmt.Fprintln(f, queriesHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing queries header: %w", err)
	}

	return &Run{dir: dir, queries: f, iterCounters: make(map[string]int)}, nil
}

// Dir returns the run directory's path.
func (r *Run) Dir() string {
	return r.dir
}

func writeArguments(dir string, a ArgsSummary) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "date: %s\n", time.Now().UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "repository: %s\n", a.Repository)
	fmt.Fprintf(&sb, "test: %s\n", a.Test)
	fmt.Fprintf(&sb, "worktree_location: %s\n", a.WorktreeLocation)
	fmt.Fprintf(&sb, "processes: %d\n", a.Processes)
	fmt.Fprintf(&sb, "propagate: %t\n", a.Propagate)
	fmt.Fprintf(&sb, "interrupt: %t\n", a.Interrupt)
	fmt.Fprintf(&sb, "extended_search: %t\n", a.ExtendedSearch)
	fmt.Fprintf(&sb, "search_mode: %s\n", a.SearchMode)
	fmt.Fprintf(&sb, "sources: %s\n", strings.Join(a.Sources, ","))
	fmt.Fprintf(&sb, "targets: %s\n", strings.Join(a.Targets, ","))

	return os.WriteFile(filepath.Join(dir, "arguments"), []byte(sb.String()), 0o644)
}

// RecordJob appends one completed job's outcome to the queries CSV and
// folds its durations into the run's running totals for the trailer
// written by Finish.
func (r *Run) RecordJob(pid int, commit string, result regression.TestResult, all, setup, query time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.allSum += all.Seconds()
	r.setupSum += setup.Seconds()
	r.querySum += query.Seconds()
	r.count++

	_, err := fmt.Fprintf(r.queries, "%d,%s,%s,%f,%f,%f\n",
		pid, commit, result, all.Seconds(), setup.Seconds(), query.Seconds())
	return err
}

// RecordError appends a job that failed before producing a TestResult
// (e.g. the DVCS could not check out the commit).
func (r *Run) RecordError(pid int, commit string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := fmt.Fprintf(r.queries, "%d,%s,%s\n", pid, commit, cause)
	return err
}

// Finish writes the trailer block (regression points, aggregate sum and
// mean durations, overall wall-clock time) and closes the queries file.
func (r *Run) Finish(overall time.Duration, points []regression.RegressionPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.queries.Close()

	fmt.Fprintln(r.queries, "---")
	fmt.Fprintln(r.queries, "regression point,target")
	for _, p := range points {
		fmt.Fprintf(r.queries, "%s,%s\n", p.RegressionPoint, p.Target)
	}
	fmt.Fprintln(r.queries, "---")

	if r.count == 0 {
		fmt.Fprintf(r.queries, "overall execution time: %f\n", overall.Seconds())
		return nil
	}

	fmt.Fprintf(r.queries, "-,-,-,%f,%f,%f\n", r.allSum, r.setupSum, r.querySum)
	fmt.Fprintf(r.queries, "-,-,-,%f,%f,%f\n",
		r.allSum/float64(r.count), r.setupSum/float64(r.count), r.querySum/float64(r.count))
	fmt.Fprintf(r.queries, "overall execution time: %f\n", overall.Seconds())
	return nil
}

// JobOutput opens (creating if necessary) the stdout/stderr capture
// files for one job's commit, each wrapped in a TimestampedWriter so a
// long-running test script's output lines are individually timestamped.
// Callers must call Close on both writers once the job completes.
func (r *Run) JobOutput(commit string) (stdout, stderr *JobWriter, err error) {
	dir := filepath.Join(r.dir, "output")
	name := sanitizeName(commit)

	stdout, err = newJobWriter(filepath.Join(dir, name+"_stdout"))
	if err != nil {
		return nil, nil, err
	}
	stderr, err = newJobWriter(filepath.Join(dir, name+"_stderr"))
	if err != nil {
		stdout.Close()
		return nil, nil, err
	}
	return stdout, stderr, nil
}

// JobWriter is a per-job output capture file wrapped in a
// TimestampedWriter.
type JobWriter struct {
	file *os.File
	ts   *TimestampedWriter
}

func newJobWriter(path string) (*JobWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating job output file %s: %w", path, err)
	}
	return &JobWriter{file: f, ts: NewTimestampedWriter(f)}, nil
}

// Write implements io.Writer.
func (j *JobWriter) Write(p []byte) (int, error) {
	return j.ts.Write(p)
}

// Close flushes any buffered partial line and closes the underlying file.
func (j *JobWriter) Close() error {
	flushErr := j.ts.Flush()
	closeErr := j.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// IterationWriter writes content as the next per-iteration summary
// file under the run's "exrpa" or "bisect" subdirectory, numbered
// sequentially starting at 1 (kind is typically "exrpa" or "bisect").
func (r *Run) IterationWriter(kind, content string) error {
	r.mu.Lock()
	r.iterCounters[kind]++
	n := r.iterCounters[kind]
	r.mu.Unlock()

	dir := filepath.Join(r.dir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s summary directory: %w", kind, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%04d", n))
	return os.WriteFile(path, []byte(content), 0o644)
}

// sanitizeName replaces path separators in a commit reference so it is
// safe to use as a filename, even though commit hashes from git rev-parse
// are already plain hex and never need it in practice.
func sanitizeName(ref string) string {
	cleaned := filepath.Clean(ref)
	if filepath.IsAbs(cleaned) {
		cleaned = filepath.Base(cleaned)
	}
	return strings.ReplaceAll(cleaned, string(filepath.Separator), "-")
}

// ListRuns returns every run directory under baseDir, most recent first,
// for `crs logs` without an explicit run-id argument.
func ListRuns(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading run log base directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(baseDir, n)
	}
	return out, nil
}
