package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a temporary git repository with user config ready
// for commits.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, runGit(dir, "init", "-b", "main"))
	require.NoError(t, runGit(dir, "config", "user.email", "test@example.com"))
	require.NoError(t, runGit(dir, "config", "user.name", "Test User"))

	return dir
}

func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	return cmd.Run()
}

func commitFile(t *testing.T, repo, name, content, message string) string {
	t.Helper()
	path := filepath.Join(repo, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, runGit(repo, "add", name))
	require.NoError(t, runGit(repo, "commit", "-m", message))

	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = repo
	out, err := cmd.Output()
	require.NoError(t, err)
	return string(out[:len(out)-1])
}

func TestCommitGraph_LinearHistory(t *testing.T) {
	repo := setupTestRepo(t)
	source := commitFile(t, repo, "a.txt", "1", "initial")
	target := commitFile(t, repo, "a.txt", "2", "second")

	g := New(repo)
	graph, err := g.CommitGraph(context.Background(), []string{source}, []string{target})
	require.NoError(t, err)

	targetID, ok := graph.Index(target)
	require.True(t, ok)
	require.Len(t, graph.Parents(targetID), 1)
	assert.Equal(t, source, graph.Hash(graph.Parents(targetID)[0]))
}

func TestCommitGraph_RequiresASource(t *testing.T) {
	g := New(setupTestRepo(t))
	_, err := g.CommitGraph(context.Background(), nil, []string{"deadbeef"})
	assert.Error(t, err)
}

func TestCreateWorktree_IsIdempotent(t *testing.T) {
	repo := setupTestRepo(t)
	commitFile(t, repo, "a.txt", "1", "initial")

	g := New(repo)
	wt1, err := g.CreateWorktree(context.Background(), "job-1", "")
	require.NoError(t, err)

	wt2, err := g.CreateWorktree(context.Background(), "job-1", "")
	require.NoError(t, err)
	assert.Equal(t, wt1, wt2)
}

func TestCheckoutAndRemoveWorktree(t *testing.T) {
	repo := setupTestRepo(t)
	first := commitFile(t, repo, "a.txt", "1", "initial")
	second := commitFile(t, repo, "a.txt", "2", "second")

	g := New(repo)
	ctx := context.Background()
	wt, err := g.CreateWorktree(ctx, "job-1", "")
	require.NoError(t, err)

	require.NoError(t, g.Checkout(ctx, wt, first))
	content, err := os.ReadFile(filepath.Join(wt.Location, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(content))

	require.NoError(t, g.Checkout(ctx, wt, second))
	content, err = os.ReadFile(filepath.Join(wt.Location, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(content))

	require.NoError(t, g.RemoveWorktree(ctx, wt))
	_, err = os.Stat(wt.Location)
	assert.True(t, os.IsNotExist(err))
}

func TestDistance_SumsNumstatColumns(t *testing.T) {
	repo := setupTestRepo(t)
	first := commitFile(t, repo, "a.txt", "one\ntwo\n", "initial")
	second := commitFile(t, repo, "a.txt", "one\ntwo\nthree\nfour\n", "second")

	g := New(repo)
	distance, err := g.Distance(context.Background(), first, second)
	require.NoError(t, err)
	assert.Equal(t, 2, distance)
}

func TestGetCommitInfo(t *testing.T) {
	repo := setupTestRepo(t)
	commit := commitFile(t, repo, "a.txt", "1", "initial commit")

	g := New(repo)
	info, err := g.GetCommitInfo(context.Background(), commit)
	require.NoError(t, err)
	assert.Contains(t, string(info), "initial commit")
}
