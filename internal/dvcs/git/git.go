// Package git implements internal/dvcs.DVCS by shelling out to the git
// CLI. go-git has no equivalent of "git worktree add --no-checkout" or
// "git merge-base --octopus", so unlike internal/git (go-git primary, used
// only for repository-root discovery), every operation here goes through
// the CLI — the commit graph walk included, since rev-list's
// "--not <lca>" boundary is cheaper to let git compute than to
// reimplement over a go-git object walk.
package git

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"os/exec"
	"strconv"
	"strings"

	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/dvcs"
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

// Git is a dvcs.DVCS backed by a single repository checkout.
type Git struct {
	repository string
}

var _ dvcs.DVCS = (*Git)(nil)

// New returns a Git DVCS rooted at repository (the main checkout's path,
// used as the working directory for commands that don't run inside a
// worktree).
func New(repository string) *Git {
	return &Git{repository: repository}
}

// run executes git with args inside dir, returning trimmed stdout. Stderr
// is folded into the error on failure.
func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	logDebug("[git] %s $ git %s", dir, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CommitGraph implements dvcs.DVCS.
func (g *Git) CommitGraph(ctx context.Context, sources, targets []string) (*adag.Adag[struct{}], error) {
	var lca string
	switch {
	case len(sources) > 1:
		args := append([]string{"merge-base", "--octopus"}, sources...)
		out, err := g.run(ctx, g.repository, args...)
		if err != nil {
			return nil, fmt.Errorf("finding common ancestor of sources: %w", err)
		}
		lca = out
	case len(sources) == 1:
		lca = sources[0]
	default:
		return nil, fmt.Errorf("commit graph: at least one source is required")
	}

	args := append([]string{"rev-list", "--parents"}, targets...)
	args = append(args, "--not", lca)
	revList, err := g.run(ctx, g.repository, args...)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}

	graph := adag.New[struct{}]()
	for _, line := range strings.Split(revList, "\n") {
		if line == "" {
			continue
		}
		hashes := strings.Fields(line)
		child := mustNode(graph, hashes[0])
		for _, parentHash := range hashes[1:] {
			parent := mustNode(graph, parentHash)
			graph.AddEdge(parent, child)
		}
	}

	var sourceIDs []adag.NodeID
	for _, h := range sources {
		if id, ok := graph.Index(h); ok {
			sourceIDs = append(sourceIDs, id)
		}
	}

	kept := adag.PruneDownwards(graph, sourceIDs)
	pruned := adag.FilterMap(graph, func(id adag.NodeID, payload struct{}) (struct{}, bool) {
		return payload, kept[id]
	})

	for _, h := range sources {
		if id, ok := pruned.Index(h); ok {
			pruned.Sources = append(pruned.Sources, id)
		}
	}
	for _, h := range targets {
		if id, ok := pruned.Index(h); ok {
			pruned.Targets = append(pruned.Targets, id)
		}
	}

	return pruned, nil
}

// mustNode returns the NodeID for hash, adding it to graph first if this
// is the first time it's seen.
func mustNode(graph *adag.Adag[struct{}], hash string) adag.NodeID {
	if id, ok := graph.Index(hash); ok {
		return id
	}
	return graph.AddNode(hash, struct{}{})
}

// CreateWorktree implements dvcs.DVCS. Worktrees are created detached and
// uncommitted, ready for Checkout to move them onto a commit.
func (g *Git) CreateWorktree(ctx context.Context, name, location string) (dvcs.Worktree, error) {
	wtName := name
	path := fmt.Sprintf("%s/.crs/%s", g.repository, wtName)
	if location != "" {
		wtName = fmt.Sprintf("%s_%s", hashLocation(location), name)
		path = fmt.Sprintf("%s/%s", location, wtName)
	}

	wt := dvcs.Worktree{Location: path, Name: wtName}

	exists, err := g.worktreeExists(ctx, wtName)
	if err != nil {
		return dvcs.Worktree{}, err
	}
	if exists {
		return wt, nil
	}

	if _, err := g.run(ctx, g.repository, "worktree", "add", "--detach", path, "--no-checkout"); err != nil {
		return dvcs.Worktree{}, fmt.Errorf("creating worktree %s: %w", wtName, err)
	}
	return wt, nil
}

// hashLocation derives a short, stable prefix for an externally-supplied
// worktree root, so two runs pointed at the same location reuse the same
// worktree name instead of colliding on name alone.
func hashLocation(location string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(location))
	return strconv.FormatUint(h.Sum64(), 10)
}

func (g *Git) worktreeExists(ctx context.Context, name string) (bool, error) {
	out, err := g.run(ctx, g.repository, "worktree", "list", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("listing worktrees: %w", err)
	}
	return strings.Contains(out, name), nil
}

// RemoveWorktree implements dvcs.DVCS.
func (g *Git) RemoveWorktree(ctx context.Context, wt dvcs.Worktree) error {
	if err := g.worktreeClean(ctx, wt); err != nil {
		return err
	}
	if _, err := g.run(ctx, wt.Location, "worktree", "remove", wt.Name); err != nil {
		return fmt.Errorf("removing worktree %s: %w", wt.Name, err)
	}
	return nil
}

// Checkout implements dvcs.DVCS.
func (g *Git) Checkout(ctx context.Context, wt dvcs.Worktree, commit string) error {
	if err := g.worktreeClean(ctx, wt); err != nil {
		return err
	}
	if _, err := g.run(ctx, wt.Location, "checkout", "-f", commit); err != nil {
		return fmt.Errorf("checking out %s in %s: %w", commit, wt.Name, err)
	}
	return nil
}

// worktreeClean discards local modifications in a worktree before it's
// reused for the next checkout or torn down.
func (g *Git) worktreeClean(ctx context.Context, wt dvcs.Worktree) error {
	if _, err := g.run(ctx, wt.Location, "clean", "-d", "-f", "-x"); err != nil {
		return fmt.Errorf("cleaning worktree %s: %w", wt.Name, err)
	}
	if _, err := g.run(ctx, wt.Location, "reset", "--hard"); err != nil {
		return fmt.Errorf("resetting worktree %s: %w", wt.Name, err)
	}
	return nil
}

// GetCommitInfo implements dvcs.DVCS.
func (g *Git) GetCommitInfo(ctx context.Context, commit string) (dvcs.CommitInfo, error) {
	out, err := g.run(ctx, g.repository, "log", "--pretty=reference", "-n", "1", commit)
	if err != nil {
		return "", fmt.Errorf("fetching commit info for %s: %w", commit, err)
	}
	return dvcs.CommitInfo(out), nil
}

// Distance implements dvcs.DVCS by summing the added/removed line counts
// git diff --numstat reports between from's checkout and commit — a
// cheap proxy for how much work rewriting the worktree onto commit will
// take.
func (g *Git) Distance(ctx context.Context, from, to string) (int, error) {
	out, err := g.run(ctx, g.repository, "diff", "--numstat", from, to)
	if err != nil {
		return 0, fmt.Errorf("diffing %s..%s: %w", from, to, err)
	}

	sum := 0
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		for i, field := range fields {
			if i > 1 {
				break
			}
			if n, err := strconv.Atoi(field); err == nil {
				sum += n
			}
		}
	}
	return sum, nil
}
