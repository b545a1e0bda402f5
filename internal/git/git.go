// Package git provides repository discovery used before a dvcs.DVCS is
// constructed: finding the repository root from the current directory and
// checking whether a path is inside a git repository at all. It uses
// go-git for this rather than shelling out, since these checks run before
// CRS knows it even has a valid repository to hand to git CLI commands.
package git

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
)

// debugLogger is a function that logs debug messages when debug mode is
// enabled. By default it's a no-op.
var debugLogger func(format string, args ...any)

// SetDebugLogger configures the debug logger for git operations. Pass nil
// to disable debug logging.
func SetDebugLogger(logger func(format string, args ...any)) {
	debugLogger = logger
}

func logDebug(format string, args ...any) {
	if debugLogger != nil {
		debugLogger(format, args...)
	}
}

// openRepo opens a git repository at path, or the current working
// directory if path is empty, traversing up the directory tree to find
// the repository root.
func openRepo(path string) (*git.Repository, error) {
	if path == "" {
		var err error
		path, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
	}

	logDebug("[git] opening repository at %s", path)

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}

	logDebug("[git] repository opened successfully")
	return repo, nil
}

// GetRepositoryRoot returns the absolute path to the repository root
// containing the current directory.
func GetRepositoryRoot() (string, error) {
	repo, err := openRepo("")
	if err != nil {
		return "", err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	root := worktree.Filesystem.Root()
	logDebug("[git] GetRepositoryRoot: %s", root)
	return root, nil
}

// IsGitRepository reports whether the current directory is within a git
// repository.
func IsGitRepository() bool {
	_, err := openRepo("")
	result := err == nil
	logDebug("[git] IsGitRepository: %v", result)
	return result
}
