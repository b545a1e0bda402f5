package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRepositoryRoot_Real(t *testing.T) {
	root, err := GetRepositoryRoot()
	require.NoError(t, err)
	assert.NotEmpty(t, root)
}

func TestIsGitRepository_Real(t *testing.T) {
	assert.True(t, IsGitRepository())
}

func TestIsGitRepository_NotARepo(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { require.NoError(t, os.Chdir(wd)) }()

	require.NoError(t, os.Chdir(dir))
	assert.False(t, IsGitRepository())
}

func TestGetRepositoryRoot_SubdirectoryFindsRoot(t *testing.T) {
	root, err := GetRepositoryRoot()
	require.NoError(t, err)

	sub := filepath.Join(root, "internal", "git")
	if _, statErr := os.Stat(sub); statErr != nil {
		t.Skip("package directory not present under repository root")
	}

	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { require.NoError(t, os.Chdir(wd)) }()

	require.NoError(t, os.Chdir(sub))
	foundRoot, err := GetRepositoryRoot()
	require.NoError(t, err)
	assert.Equal(t, root, foundRoot)
}
