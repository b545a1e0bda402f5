package cli

import (
	stderrors "errors"

	crserrors "github.com/apfelbeet/crs/internal/errors"
)

// Exit codes for the crs CLI. These support scripting a search from CI
// and distinguishing "no regression found" from the ways a run can fail
// before or during the search.
const (
	// ExitSuccess indicates the search completed, whether or not a
	// regression point was found for every target.
	ExitSuccess = 0

	// ExitInternal indicates an unclassified error.
	ExitInternal = 1

	// ExitArgument indicates invalid command-line arguments, including a
	// commit reference that doesn't resolve.
	ExitArgument = 2

	// ExitConfiguration indicates a malformed or unreadable config file.
	ExitConfiguration = 3

	// ExitPrerequisite indicates a missing prerequisite (not a git
	// repository).
	ExitPrerequisite = 4

	// ExitRuntime indicates a failure during the search itself (sources
	// and targets with disconnected history, a DVCS operation failed, the
	// test script couldn't run, or it exited with a fatal status).
	ExitRuntime = 5
)

// exitCodeForErr maps err onto a process exit code: CLIErrors map by
// category, anything else is ExitInternal.
func exitCodeForErr(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var cliErr *crserrors.CLIError
	if !stderrors.As(err, &cliErr) {
		return ExitInternal
	}
	switch cliErr.Category {
	case crserrors.Argument:
		return ExitArgument
	case crserrors.Configuration:
		return ExitConfiguration
	case crserrors.Prerequisite:
		return ExitPrerequisite
	case crserrors.Runtime:
		return ExitRuntime
	default:
		return ExitInternal
	}
}
