package errors

import "fmt"

// Common error constructors for the crs CLI. These templates ensure
// consistent, actionable error messages across commands.

// NotAGitRepository creates an error for a search invoked outside a
// git working tree.
func NotAGitRepository() *CLIError {
	return NewPrerequisiteError(
		"current directory is not inside a git repository",
		"Run crs from within a git working tree",
		"Or pass the repository path explicitly as the first argument",
	)
}

// MissingSourcesOrTargets creates an error for a search with no usable
// starting or ending points.
func MissingSourcesOrTargets() *CLIError {
	return NewArgumentErrorWithUsage(
		"at least one --source and one --target commit are required",
		"crs <repository> <test-script> --source <good-commit> --target <bad-commit>",
		"Pass one or more known-good commits with --source",
		"Pass one or more known-bad commits with --target",
	)
}

// MissingTestScript creates an error for a search with no test command.
func MissingTestScript() *CLIError {
	return NewArgumentErrorWithUsage(
		"a test script is required as the second argument",
		"crs <repository> <test-script> --source <good-commit> --target <bad-commit>",
		"Provide the command to run against each candidate commit",
	)
}

// UnresolvableCommit creates an error for a commit reference git cannot resolve.
func UnresolvableCommit(ref string) *CLIError {
	return NewArgumentError(
		fmt.Sprintf("could not resolve commit reference %q", ref),
		"Check the commit hash, tag, or branch name for typos",
		"Run 'git rev-parse <ref>' to confirm it resolves in this repository",
	)
}

// DisconnectedHistory creates an error for sources and targets that share
// no common ancestor, so no commit graph can be built between them.
func DisconnectedHistory(sources, targets []string) *CLIError {
	return NewRuntimeError(
		fmt.Sprintf("no common ancestor found between sources %v and targets %v", sources, targets),
		"Confirm the source and target commits belong to the same history",
		"Fetch any missing branches or tags and try again",
	)
}

// UnknownSearchMode creates an error for an unrecognized --search-mode value.
func UnknownSearchMode(mode string) *CLIError {
	return NewArgumentErrorWithUsage(
		fmt.Sprintf("unknown search mode %q", mode),
		"crs <repository> <test-script> --search-mode exrpa-long-bin ...",
		"Valid modes: exrpa-long-bin, exrpa-long-lin, exrpa-long-mul, "+
			"exrpa-short-bin, exrpa-short-lin, exrpa-short-mul, bisect",
	)
}

// InvalidWorktreeLocation creates an error for a --worktree-location that
// is not usable as a worker worktree root.
func InvalidWorktreeLocation(path string) *CLIError {
	return NewConfigError(
		fmt.Sprintf("worktree location %q must be an absolute path", path),
		"Pass an absolute path to --worktree-location, or omit it to use .crs/ inside the repository",
	)
}

// WorktreeCreationFailed creates an error for a worker worktree that
// could not be created.
func WorktreeCreationFailed(name string, cause error) *CLIError {
	return WrapWithMessage(cause, Runtime,
		fmt.Sprintf("failed to create worktree %q", name),
		"Check that the worktree location has free disk space and is writable",
		"Remove any stale worker worktree (under .crs/ in the repository by default) left behind by a previous run",
	)
}

// TestScriptUnreadable creates an error for a test script that could not
// be executed at all (as opposed to one that ran and reported a result).
func TestScriptUnreadable(script string, cause error) *CLIError {
	return WrapWithMessage(cause, Runtime,
		fmt.Sprintf("could not execute test script %q", script),
		"Confirm the script path is correct and executable",
		"Check the script's shebang line if it is not a compiled binary",
	)
}

// LogDirUnwritable creates an error for a --log directory that could
// not be created or written to.
func LogDirUnwritable(dir string, cause error) *CLIError {
	return WrapWithMessage(cause, Runtime,
		fmt.Sprintf("could not create run log directory %q", dir),
		"Check that the parent directory exists and is writable",
		"Pass a different path with --log",
	)
}

// ConfigFileNotFound creates an error for a config file named explicitly
// via --config that does not exist.
func ConfigFileNotFound(path string) *CLIError {
	return NewConfigError(
		fmt.Sprintf("config file not found: %s", path),
		"Check the path passed to --config",
		"Or omit --config to fall back to .crs/config.yml and user defaults",
	)
}

// ConfigParseError creates an error for an invalid config file format.
func ConfigParseError(path string, err error) *CLIError {
	return WrapWithMessage(err, Configuration,
		fmt.Sprintf("failed to parse config file: %s", path),
		"Check the file for YAML syntax errors",
		"Confirm keys match the documented Configuration fields",
	)
}

// InvalidFlagCombination creates an error for incompatible flag combinations.
func InvalidFlagCombination(flags string, reason string) *CLIError {
	return NewArgumentError(
		fmt.Sprintf("invalid flag combination: %s", flags),
		reason,
		"Run 'crs --help' to see valid options",
	)
}

// FatalTestExit creates an error for a test script whose exit status
// signals the run itself should abort, rather than reporting a result
// for the current commit (exit code >= 128).
func FatalTestExit(commit string, exitCode int) *CLIError {
	return NewRuntimeError(
		fmt.Sprintf("test script exited with fatal status %d on commit %s", exitCode, commit),
		"Exit codes >= 128 abort the whole search rather than reporting a Fail",
		"Fix the test script, or have it exit 1 to report a genuine Fail",
	)
}
