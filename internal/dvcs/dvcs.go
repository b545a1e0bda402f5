// Package dvcs defines the version-control abstraction RPA and BISECT run
// on top of: building the commit graph between sources and targets,
// materializing a commit into a worktree for a job to run against, and
// reporting how far apart two commits are (for nearest-worktree
// scheduling). internal/dvcs/git provides the only implementation.
package dvcs

import (
	"context"

	"github.com/apfelbeet/crs/internal/adag"
)

// Worktree identifies a checkout a job can run its test script against.
type Worktree struct {
	// Location is the filesystem path of the worktree.
	Location string
	// Name is the identifier the DVCS implementation uses to refer back
	// to this worktree (its branch name, or a generated one).
	Name string
}

// CommitInfo is the short, human-readable description of a commit used in
// run logs and CLI output (subject line, author, date — whatever the
// DVCS's native "one-line reference" format produces).
type CommitInfo string

// DVCS is the version-control operations RPA/BISECT need. An
// implementation owns exactly one repository.
type DVCS interface {
	// CommitGraph builds the DAG spanning every ancestor of targets down
	// to (and including) the nearest common ancestors with sources,
	// pruned so only nodes reachable from a source remain. Every
	// id/hash the graph references can be passed back into Checkout,
	// GetCommitInfo, and Distance.
	CommitGraph(ctx context.Context, sources, targets []string) (*adag.Adag[struct{}], error)

	// CreateWorktree materializes a detached, unchecked-out worktree for
	// running jobs against. If location is empty, the implementation
	// picks a default path under its own repository.
	CreateWorktree(ctx context.Context, name, location string) (Worktree, error)

	// RemoveWorktree tears down a worktree created by CreateWorktree,
	// discarding any local modifications first.
	RemoveWorktree(ctx context.Context, wt Worktree) error

	// Checkout moves a worktree to commit, discarding any local
	// modifications first.
	Checkout(ctx context.Context, wt Worktree, commit string) error

	// GetCommitInfo returns a one-line human-readable description of
	// commit.
	GetCommitInfo(ctx context.Context, commit string) (CommitInfo, error)

	// Distance estimates how expensive it is to move a worktree
	// currently at commit `from` to commit `to` — used by the scheduler
	// to assign jobs to the worktree that needs the smallest change.
	Distance(ctx context.Context, from, to string) (int, error)
}
