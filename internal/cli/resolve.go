package cli

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	crserrors "github.com/apfelbeet/crs/internal/errors"
	gitdiscover "github.com/apfelbeet/crs/internal/git"
)

// repositoryRoot resolves repoArg to an absolute repository root. A
// missing or "." argument is resolved against the current directory
// using gitdiscover (go-git); any other path is checked by shelling out,
// since go-git has no equivalent of "rev-parse --show-toplevel" relative
// to an arbitrary directory without opening it first.
func repositoryRoot(ctx context.Context, repoArg string) (string, error) {
	if repoArg == "" || repoArg == "." {
		if !gitdiscover.IsGitRepository() {
			return "", crserrors.NotAGitRepository()
		}
		return gitdiscover.GetRepositoryRoot()
	}

	abs, err := filepath.Abs(repoArg)
	if err != nil {
		return "", crserrors.NotAGitRepository()
	}

	cmd := exec.CommandContext(ctx, "git", "-C", abs, "rev-parse", "--show-toplevel")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", crserrors.NotAGitRepository()
	}
	return strings.TrimSpace(stdout.String()), nil
}

// resolveCommit resolves ref to a full commit hash inside repoRoot.
func resolveCommit(ctx context.Context, repoRoot, ref string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repoRoot, "rev-parse", "--verify", ref+"^{commit}")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", crserrors.UnresolvableCommit(ref)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// resolveCommits resolves every ref in refs, in order.
func resolveCommits(ctx context.Context, repoRoot string, refs []string) ([]string, error) {
	hashes := make([]string, 0, len(refs))
	for _, ref := range refs {
		hash, err := resolveCommit(ctx, repoRoot, ref)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}
